package eitc

import (
	"github.com/taxintel/taxintel/internal/rules"
	"github.com/taxintel/taxintel/internal/types"
)

// Limits summarizes the ceilings and maximum credit that apply to one filing
// status and child count.
type Limits struct {
	EarnedIncomeLimit float64 `json:"earned_income_limit"`
	AGILimit          float64 `json:"agi_limit"`
	MaxCreditAmount   float64 `json:"max_credit_amount"`
	PhaseOutStart     float64 `json:"phase_out_start"`
}

// IncomeLimits returns the applicable limits for a filing status and
// qualifying-child count.
func IncomeLimits(taxYear int, status types.FilingStatus, qualifyingChildren int) (*Limits, error) {
	rs, err := rules.ForYear(taxYear)
	if err != nil {
		return nil, err
	}

	category := status.Normalize()
	bucket := qualifyingChildren
	if bucket > 3 {
		bucket = 3
	}
	if bucket < 0 {
		bucket = 0
	}

	limit := rs.IncomeLimits[category][bucket]
	return &Limits{
		EarnedIncomeLimit: limit.Earned,
		AGILimit:          limit.AGI,
		MaxCreditAmount:   rs.MaxCredit[bucket],
		PhaseOutStart:     rs.PhaseOutStart[category][bucket],
	}, nil
}

// SchedulePoint is the estimated credit at one income level, assuming earned
// income equals AGI and all non-income requirements are met.
type SchedulePoint struct {
	Income       float64 `json:"income"`
	CreditAmount float64 `json:"credit_amount"`
	Eligible     bool    `json:"eligible"`
}

// EstimateByIncome computes the credit schedule across the given income
// levels for a filing status and child count. Taxpayer age is pinned inside
// the eligible range so the schedule reflects only the income dimension.
func EstimateByIncome(taxYear int, status types.FilingStatus, qualifyingChildren int, incomes []float64) ([]SchedulePoint, error) {
	rs, err := rules.ForYear(taxYear)
	if err != nil {
		return nil, err
	}

	age := rs.MinAgeNoChildren
	points := make([]SchedulePoint, 0, len(incomes))
	for _, income := range incomes {
		det, err := Determine(taxYear, types.TaxpayerFacts{
			FilingStatus:        status,
			AdjustedGrossIncome: income,
			EarnedIncome:        income,
			QualifyingChildren:  qualifyingChildren,
			TaxpayerAge:         &age,
		})
		if err != nil {
			return nil, err
		}
		points = append(points, SchedulePoint{
			Income:       income,
			CreditAmount: det.CreditAmount,
			Eligible:     det.Eligible,
		})
	}
	return points, nil
}
