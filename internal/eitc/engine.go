// Package eitc implements the Earned Income Tax Credit determination engine:
// eligibility evaluation and the phase-in/phase-out credit formula from IRS
// Publication 596, parameterized by the per-year tables in internal/rules.
//
// Determine is a pure function of its inputs. It holds no state, performs no
// I/O, and is safe to call concurrently.
package eitc

import (
	"math"

	"github.com/taxintel/taxintel/internal/rules"
	"github.com/taxintel/taxintel/internal/types"
)

// Determine evaluates EITC eligibility and credit amount for one taxpayer.
//
// It returns an error only when no rule table exists for the tax year
// (*rules.ErrUnsupportedTaxYear). Out-of-domain taxpayer facts do not error:
// they produce an ineligible Determination whose Err and Explanation name the
// offending field.
func Determine(taxYear int, facts types.TaxpayerFacts) (*types.Determination, error) {
	rs, err := rules.ForYear(taxYear)
	if err != nil {
		return nil, err
	}

	result := &types.Determination{
		RequirementsMet: make(map[string]bool),
		TaxYear:         taxYear,
	}

	if err := facts.Validate(); err != nil {
		result.Err = err.Error()
		for _, check := range types.AllChecks() {
			result.RequirementsMet[check] = false
		}
		result.Explanation = []string{
			"The provided information could not be used: " + err.Error(),
			"Please verify your inputs and try again.",
		}
		return result, nil
	}

	category := facts.FilingStatus.Normalize()
	bucket := facts.ChildBucket()

	checks := evaluateEligibility(rs, category, bucket, facts)
	result.RequirementsMet = checks

	if !result.AllRequirementsMet() {
		result.Explanation = ineligibilityExplanation(rs, checks)
		return result, nil
	}

	result.Eligible = true
	result.CreditAmount = creditAmount(rs, category, bucket, facts)
	result.Explanation = eligibilityExplanation(result.CreditAmount, facts.QualifyingChildren)
	return result, nil
}

// evaluateEligibility computes all five checks. Every check is evaluated even
// when an earlier one already disqualifies, so callers can report every
// reason for ineligibility rather than just the first.
func evaluateEligibility(rs *rules.RuleSet, category types.FilingCategory, bucket int, facts types.TaxpayerFacts) map[string]bool {
	checks := make(map[string]bool, 5)

	checks[types.CheckInvestmentIncomeOK] = facts.InvestmentIncome <= rs.InvestmentIncomeLimit

	limits := rs.IncomeLimits[category][bucket]
	checks[types.CheckAGIWithinLimits] = facts.AdjustedGrossIncome <= limits.AGI
	checks[types.CheckEarnedIncomeWithinLimits] = facts.EarnedIncome <= limits.Earned

	checks[types.CheckAgeRequirementMet] = ageRequirementMet(rs, category, facts)

	checks[types.CheckHasEarnedIncome] = facts.EarnedIncome > 0

	return checks
}

// ageRequirementMet applies the childless-filer age rule. With qualifying
// children the check always passes. A missing age counts as not meeting it;
// for joint filers either spouse in range suffices.
func ageRequirementMet(rs *rules.RuleSet, category types.FilingCategory, facts types.TaxpayerFacts) bool {
	if facts.QualifyingChildren > 0 {
		return true
	}

	inRange := func(age *int) bool {
		return age != nil && *age >= rs.MinAgeNoChildren && *age <= rs.MaxAgeNoChildren
	}

	if category == types.CategoryMarriedJoint {
		return inRange(facts.TaxpayerAge) || inRange(facts.SpouseAge)
	}
	return inRange(facts.TaxpayerAge)
}

// creditAmount applies the two-segment piecewise-linear EITC schedule: the
// credit rises with income at the phase-in rate until it hits the bucket's
// maximum, then above the phase-out start it is reduced at the phase-out
// rate. The reduction subtracts from the already-capped phase-in credit.
func creditAmount(rs *rules.RuleSet, category types.FilingCategory, bucket int, facts types.TaxpayerFacts) float64 {
	incomeForCalc := math.Min(facts.AdjustedGrossIncome, facts.EarnedIncome)

	phaseInCredit := incomeForCalc * rs.PhaseInRate[bucket]
	credit := math.Min(phaseInCredit, rs.MaxCredit[bucket])

	phaseOutStart := rs.PhaseOutStart[category][bucket]
	if incomeForCalc > phaseOutStart {
		phaseOutAmount := (incomeForCalc - phaseOutStart) * rs.PhaseOutRate[bucket]
		credit = math.Max(0, credit-phaseOutAmount)
	}

	return roundCents(credit)
}

// roundCents rounds to two decimal places using half-up rounding
func roundCents(amount float64) float64 {
	return math.Floor(amount*100+0.5) / 100
}
