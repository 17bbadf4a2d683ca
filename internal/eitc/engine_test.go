package eitc

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxintel/taxintel/internal/rules"
	"github.com/taxintel/taxintel/internal/types"
)

func intPtr(v int) *int { return &v }

func singleFacts(income float64, children int, age *int) types.TaxpayerFacts {
	return types.TaxpayerFacts{
		FilingStatus:        types.FilingSingle,
		AdjustedGrossIncome: income,
		EarnedIncome:        income,
		QualifyingChildren:  children,
		TaxpayerAge:         age,
	}
}

func TestSingleNoChildrenEligible(t *testing.T) {
	det, err := Determine(2023, singleFacts(15000, 0, intPtr(30)))
	require.NoError(t, err)

	assert.True(t, det.Eligible)
	assert.Greater(t, det.CreditAmount, 0.0)
	assert.Equal(t, 2023, det.TaxYear)

	// 15000 * 0.0765 capped at 600, then (15000-9800) * 0.0765 phased out
	assert.InDelta(t, 202.20, det.CreditAmount, 0.001)
}

func TestSingleNoChildrenTooYoung(t *testing.T) {
	det, err := Determine(2023, singleFacts(15000, 0, intPtr(20)))
	require.NoError(t, err)

	assert.False(t, det.Eligible)
	assert.Equal(t, 0.0, det.CreditAmount)
	assert.Contains(t, strings.ToLower(strings.Join(det.Explanation, " ")), "age requirements")
}

func TestAgeMissingNoChildren(t *testing.T) {
	det, err := Determine(2023, singleFacts(15000, 0, nil))
	require.NoError(t, err)

	assert.False(t, det.Eligible)
	assert.False(t, det.RequirementsMet[types.CheckAgeRequirementMet])
}

func TestMarriedJointAgeEitherSpouse(t *testing.T) {
	facts := types.TaxpayerFacts{
		FilingStatus:        types.FilingMarriedJoint,
		AdjustedGrossIncome: 15000,
		EarnedIncome:        15000,
		TaxpayerAge:         intPtr(70),
		SpouseAge:           intPtr(40),
	}
	det, err := Determine(2023, facts)
	require.NoError(t, err)
	assert.True(t, det.RequirementsMet[types.CheckAgeRequirementMet])

	facts.SpouseAge = intPtr(70)
	det, err = Determine(2023, facts)
	require.NoError(t, err)
	assert.False(t, det.RequirementsMet[types.CheckAgeRequirementMet])
}

func TestIncomeTooHigh(t *testing.T) {
	det, err := Determine(2023, singleFacts(60000, 1, nil))
	require.NoError(t, err)

	assert.False(t, det.Eligible)
	assert.Contains(t, strings.ToLower(strings.Join(det.Explanation, " ")), "income exceeds")
}

func TestInvestmentIncomeTooHigh(t *testing.T) {
	facts := singleFacts(25000, 1, nil)
	facts.InvestmentIncome = 15000

	det, err := Determine(2023, facts)
	require.NoError(t, err)

	assert.False(t, det.Eligible)
	assert.Contains(t, strings.ToLower(strings.Join(det.Explanation, " ")), "investment income")
}

// The investment-income cutoff is inclusive: exactly at the limit passes,
// one cent over fails.
func TestInvestmentIncomeCutoffInclusive(t *testing.T) {
	facts := singleFacts(25000, 1, nil)

	facts.InvestmentIncome = 11000
	det, err := Determine(2023, facts)
	require.NoError(t, err)
	assert.True(t, det.RequirementsMet[types.CheckInvestmentIncomeOK])
	assert.True(t, det.Eligible)

	facts.InvestmentIncome = 11000.01
	det, err = Determine(2023, facts)
	require.NoError(t, err)
	assert.False(t, det.RequirementsMet[types.CheckInvestmentIncomeOK])
	assert.False(t, det.Eligible)
}

func TestMarriedFilingJointlyUsesJointTable(t *testing.T) {
	facts := types.TaxpayerFacts{
		FilingStatus:        types.FilingMarriedJoint,
		AdjustedGrossIncome: 35000,
		EarnedIncome:        35000,
		QualifyingChildren:  1,
	}
	det, err := Determine(2023, facts)
	require.NoError(t, err)

	assert.True(t, det.Eligible)
	assert.Greater(t, det.CreditAmount, 0.0)

	// The joint phase-out starts at 17370 rather than the single table's
	// 11750, so the joint credit must exceed the single credit at the same
	// income.
	assert.InDelta(t, 1177.73, det.CreditAmount, 0.001)

	single, err := Determine(2023, singleFacts(35000, 1, nil))
	require.NoError(t, err)
	assert.Greater(t, det.CreditAmount, single.CreditAmount)
}

func TestUnsupportedTaxYear(t *testing.T) {
	det, err := Determine(1999, singleFacts(15000, 0, intPtr(30)))
	require.Error(t, err)
	assert.Nil(t, det)

	var unsupported *rules.ErrUnsupportedTaxYear
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, 1999, unsupported.Year)
}

func TestDeterminism(t *testing.T) {
	facts := singleFacts(25000, 2, nil)
	first, err := Determine(2023, facts)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := Determine(2023, facts)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// Below the phase-out start the credit strictly increases with income until
// the maximum is reached, then stays flat up to the phase-out start.
func TestMonotonicPhaseIn(t *testing.T) {
	// Bucket 0 single: cap of 600 is reached near 7843, phase-out starts
	// at 9800, leaving a flat plateau between them.
	prev := -1.0
	for income := 500.0; income <= 7500; income += 500 {
		det, err := Determine(2023, singleFacts(income, 0, intPtr(30)))
		require.NoError(t, err)
		require.True(t, det.Eligible)
		assert.Greater(t, det.CreditAmount, prev, "income %v", income)
		prev = det.CreditAmount
	}

	for _, income := range []float64{8000, 8500, 9000, 9500, 9800} {
		det, err := Determine(2023, singleFacts(income, 0, intPtr(30)))
		require.NoError(t, err)
		assert.Equal(t, 600.0, det.CreditAmount, "income %v", income)
	}
}

func TestMonotonicPhaseOut(t *testing.T) {
	prev := 1e18
	for _, income := range []float64{12000, 15000, 20000, 25000, 30000, 35000, 40000} {
		det, err := Determine(2023, singleFacts(income, 1, nil))
		require.NoError(t, err)
		require.True(t, det.Eligible)
		assert.Less(t, det.CreditAmount, prev, "income %v", income)
		prev = det.CreditAmount
	}

	// Fully phased out but still under the income ceiling: floored at 0.
	det, err := Determine(2023, singleFacts(46000, 1, nil))
	require.NoError(t, err)
	assert.True(t, det.Eligible)
	assert.Equal(t, 0.0, det.CreditAmount)
}

// At exactly the phase-out start there is zero phase-out subtraction.
func TestPhaseOutBoundaryExact(t *testing.T) {
	det, err := Determine(2023, singleFacts(11750, 1, nil))
	require.NoError(t, err)

	// 11750 * 0.34 = 3995 = the bucket-1 maximum, untouched by phase-out.
	assert.Equal(t, 3995.0, det.CreditAmount)
}

// The phase-out subtracts from the capped credit, not from income.
func TestPhaseOutSubtractsFromCappedCredit(t *testing.T) {
	det, err := Determine(2023, singleFacts(20000, 1, nil))
	require.NoError(t, err)

	// min(20000*0.34, 3995) = 3995; (20000-11750)*0.1598 = 1318.35
	assert.InDelta(t, 2676.65, det.CreditAmount, 0.001)
}

func TestIncomeForCalcUsesLesserOfAGIAndEarned(t *testing.T) {
	facts := types.TaxpayerFacts{
		FilingStatus:        types.FilingSingle,
		AdjustedGrossIncome: 30000,
		EarnedIncome:        10000,
		QualifyingChildren:  1,
	}
	det, err := Determine(2023, facts)
	require.NoError(t, err)

	// incomeForCalc = 10000, below the phase-out start: 10000 * 0.34.
	assert.InDelta(t, 3400.0, det.CreditAmount, 0.001)
}

// All five checks appear in the report regardless of which ones fail.
func TestFullReportInvariant(t *testing.T) {
	cases := []types.TaxpayerFacts{
		singleFacts(15000, 0, intPtr(30)),
		singleFacts(60000, 1, nil),
		{FilingStatus: types.FilingSingle, EarnedIncome: 0, QualifyingChildren: 0},
		{FilingStatus: types.FilingSingle, AdjustedGrossIncome: -5, EarnedIncome: 100},
	}
	for _, facts := range cases {
		det, err := Determine(2023, facts)
		require.NoError(t, err)
		for _, check := range types.AllChecks() {
			_, present := det.RequirementsMet[check]
			assert.True(t, present, "check %s missing", check)
		}
		assert.Len(t, det.RequirementsMet, 5)
	}
}

func TestNoEarnedIncome(t *testing.T) {
	facts := types.TaxpayerFacts{
		FilingStatus:        types.FilingSingle,
		AdjustedGrossIncome: 5000,
		EarnedIncome:        0,
		QualifyingChildren:  1,
	}
	det, err := Determine(2023, facts)
	require.NoError(t, err)

	assert.False(t, det.Eligible)
	assert.False(t, det.RequirementsMet[types.CheckHasEarnedIncome])
	assert.Contains(t, strings.Join(det.Explanation, " "), "Must have earned income")
}

func TestNegativeIncomeRejected(t *testing.T) {
	facts := singleFacts(15000, 0, intPtr(30))
	facts.AdjustedGrossIncome = -1000

	det, err := Determine(2023, facts)
	require.NoError(t, err)

	assert.False(t, det.Eligible)
	assert.Equal(t, 0.0, det.CreditAmount)
	assert.Contains(t, det.Err, "adjusted_gross_income")
}

func TestNegativeChildCountRejected(t *testing.T) {
	facts := singleFacts(15000, 0, intPtr(30))
	facts.QualifyingChildren = -1

	det, err := Determine(2023, facts)
	require.NoError(t, err)

	assert.False(t, det.Eligible)
	assert.Contains(t, det.Err, "qualifying_children")
}

func TestFourChildrenUsesThreePlusBucket(t *testing.T) {
	three, err := Determine(2023, singleFacts(20000, 3, nil))
	require.NoError(t, err)
	five, err := Determine(2023, singleFacts(20000, 5, nil))
	require.NoError(t, err)

	assert.Equal(t, three.CreditAmount, five.CreditAmount)
}

func TestEligibleExplanationContent(t *testing.T) {
	det, err := Determine(2023, singleFacts(20000, 2, nil))
	require.NoError(t, err)
	require.True(t, det.Eligible)

	joined := strings.Join(det.Explanation, " ")
	assert.Contains(t, joined, "eligible for the Earned Income Tax Credit")
	assert.Contains(t, joined, formatCurrency(det.CreditAmount))
	assert.Contains(t, joined, "2 qualifying child(ren)")
	assert.Contains(t, joined, "This is an estimate")
}

func TestTaxYear2024Tables(t *testing.T) {
	det, err := Determine(2024, singleFacts(15000, 0, intPtr(30)))
	require.NoError(t, err)

	// 15000 * 0.0765 capped at 632, then (15000-10330) * 0.0765 phased out.
	assert.True(t, det.Eligible)
	assert.InDelta(t, 274.75, det.CreditAmount, 0.01)
}

func TestInvestmentLimitExplainedInWholeDollars(t *testing.T) {
	facts := singleFacts(15000, 0, intPtr(30))
	facts.InvestmentIncome = 15000

	det, err := Determine(2023, facts)
	require.NoError(t, err)
	require.False(t, det.Eligible)

	joined := strings.Join(det.Explanation, " ")
	assert.Contains(t, joined, "Investment income exceeds $11,000")
	assert.NotContains(t, joined, "$11,000.00")
}

func TestFormatDollars(t *testing.T) {
	assert.Equal(t, "$0", formatDollars(0))
	assert.Equal(t, "$600", formatDollars(600))
	assert.Equal(t, "$11,000", formatDollars(11000))
	assert.Equal(t, "$1,234,568", formatDollars(1234567.6))
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "$0.00", formatCurrency(0))
	assert.Equal(t, "$600.00", formatCurrency(600))
	assert.Equal(t, "$3,995.50", formatCurrency(3995.5))
	assert.Equal(t, "$1,234,567.89", formatCurrency(1234567.89))
}

func TestRoundCentsHalfUp(t *testing.T) {
	assert.Equal(t, 1.35, roundCents(1.346))
	assert.Equal(t, 1.34, roundCents(1.344))
	assert.Equal(t, 202.2, roundCents(202.19999999999999))
	assert.Equal(t, 2676.65, roundCents(2676.6500000001))
}
