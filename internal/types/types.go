package types

import (
	"fmt"
	"strings"
	"time"
)

// FilingStatus is a raw filing status as supplied by the caller.
type FilingStatus string

const (
	FilingSingle                  FilingStatus = "single"
	FilingMarriedJoint            FilingStatus = "married_joint"
	FilingMarriedFilingJointly    FilingStatus = "married_filing_jointly"
	FilingMarriedSeparate         FilingStatus = "married_separate"
	FilingMarriedFilingSeparately FilingStatus = "married_filing_separately"
	FilingHeadOfHousehold         FilingStatus = "head_of_household"
)

// IsValid checks if the filing status is one of the accepted raw values
func (f FilingStatus) IsValid() bool {
	switch FilingStatus(strings.ToLower(string(f))) {
	case FilingSingle, FilingMarriedJoint, FilingMarriedFilingJointly,
		FilingMarriedSeparate, FilingMarriedFilingSeparately, FilingHeadOfHousehold:
		return true
	}
	return false
}

// FilingCategory is a normalized filing category used as a rule-table key.
// Every raw filing status maps onto exactly one of these two.
type FilingCategory string

const (
	CategorySingle       FilingCategory = "single"
	CategoryMarriedJoint FilingCategory = "married_joint"
)

// Normalize maps a raw filing status onto its rule-table category.
// Married filing separately and head of household use the single tables.
// Unrecognized statuses fall back to single rather than erroring; the HTTP
// layer rejects unknown values before they reach the engine, so the fallback
// only applies to direct library callers.
func (f FilingStatus) Normalize() FilingCategory {
	switch FilingStatus(strings.ToLower(string(f))) {
	case FilingMarriedJoint, FilingMarriedFilingJointly:
		return CategoryMarriedJoint
	default:
		return CategorySingle
	}
}

// TaxpayerFacts holds the financial and household inputs for one
// determination request. Ages are pointers because they are optional and
// only consulted when QualifyingChildren is zero.
type TaxpayerFacts struct {
	FilingStatus        FilingStatus `json:"filing_status"`
	AdjustedGrossIncome float64      `json:"adjusted_gross_income"`
	EarnedIncome        float64      `json:"earned_income"`
	InvestmentIncome    float64      `json:"investment_income"`
	QualifyingChildren  int          `json:"qualifying_children"`
	ChildrenAges        []int        `json:"children_ages,omitempty"`
	TaxpayerAge         *int         `json:"taxpayer_age,omitempty"`
	SpouseAge           *int         `json:"spouse_age,omitempty"`
}

// Validate checks that the facts are in-domain. It reports the first
// offending field; the engine turns a validation failure into an ineligible
// result rather than an error so bad input never produces a nonsense credit.
func (t *TaxpayerFacts) Validate() error {
	if t.AdjustedGrossIncome < 0 {
		return fmt.Errorf("adjusted_gross_income cannot be negative (got %.2f)", t.AdjustedGrossIncome)
	}
	if t.EarnedIncome < 0 {
		return fmt.Errorf("earned_income cannot be negative (got %.2f)", t.EarnedIncome)
	}
	if t.InvestmentIncome < 0 {
		return fmt.Errorf("investment_income cannot be negative (got %.2f)", t.InvestmentIncome)
	}
	if t.QualifyingChildren < 0 {
		return fmt.Errorf("qualifying_children cannot be negative (got %d)", t.QualifyingChildren)
	}
	return nil
}

// ChildBucket clamps the qualifying-child count to the rule-table key range.
// The tables treat three or more children identically.
func (t *TaxpayerFacts) ChildBucket() int {
	if t.QualifyingChildren > 3 {
		return 3
	}
	return t.QualifyingChildren
}

// Names of the eligibility checks reported in Determination.RequirementsMet.
// All five are always present regardless of which ones fail.
const (
	CheckInvestmentIncomeOK       = "investment_income_ok"
	CheckAGIWithinLimits          = "agi_within_limits"
	CheckEarnedIncomeWithinLimits = "earned_income_within_limits"
	CheckAgeRequirementMet        = "age_requirement_met"
	CheckHasEarnedIncome          = "has_earned_income"
)

// AllChecks lists the check names in their fixed reporting order
func AllChecks() []string {
	return []string{
		CheckInvestmentIncomeOK,
		CheckAGIWithinLimits,
		CheckEarnedIncomeWithinLimits,
		CheckAgeRequirementMet,
		CheckHasEarnedIncome,
	}
}

// Determination is the result of one EITC determination. It is constructed
// fresh per request and never persisted by the engine itself.
type Determination struct {
	Eligible        bool            `json:"eligible"`
	CreditAmount    float64         `json:"credit_amount"`
	RequirementsMet map[string]bool `json:"requirements_met"`
	Explanation     []string        `json:"explanation"`
	TaxYear         int             `json:"tax_year"`
	Err             string          `json:"error,omitempty"`
}

// AllRequirementsMet reports whether every eligibility check passed
func (d *Determination) AllRequirementsMet() bool {
	for _, met := range d.RequirementsMet {
		if !met {
			return false
		}
	}
	return true
}

// Conversation is one stored user/assistant exchange
type Conversation struct {
	ID                int64     `json:"id"`
	SessionID         string    `json:"session_id"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	Language          string    `json:"language"`
	ModelUsed         string    `json:"model_used,omitempty"`
	ResponseTimeMs    int64     `json:"response_time_ms,omitempty"`
	SafetyFlagged     bool      `json:"safety_flagged"`
	Timestamp         time.Time `json:"timestamp"`
}

// Session tracks one user's chat session
type Session struct {
	ID                string    `json:"session_id"`
	Language          string    `json:"language"`
	IsActive          bool      `json:"is_active"`
	ConversationCount int       `json:"conversation_count"`
	CreatedAt         time.Time `json:"created_at"`
	LastActivity      time.Time `json:"last_activity"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry time
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Feedback is a user rating of the service, 1-5
type Feedback struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Rating       int       `json:"rating"`
	FeedbackText string    `json:"feedback_text,omitempty"`
	Language     string    `json:"language"`
	Timestamp    time.Time `json:"timestamp"`
}

// Validate checks the feedback fields
func (f *Feedback) Validate() error {
	if f.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if f.Rating < 1 || f.Rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5 (got %d)", f.Rating)
	}
	return nil
}

// CalculationRecord is an audit record of one determination served over the
// API. Persisting these is the server's concern, not the engine's.
type CalculationRecord struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id,omitempty"`
	TaxYear      int       `json:"tax_year"`
	FilingStatus string    `json:"filing_status"`
	Eligible     bool      `json:"eligible"`
	CreditAmount float64   `json:"credit_amount"`
	Timestamp    time.Time `json:"timestamp"`
}
