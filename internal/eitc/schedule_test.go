package eitc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxintel/taxintel/internal/types"
)

func TestIncomeLimits(t *testing.T) {
	limits, err := IncomeLimits(2023, types.FilingSingle, 1)
	require.NoError(t, err)

	assert.Equal(t, 46560.0, limits.EarnedIncomeLimit)
	assert.Equal(t, 46560.0, limits.AGILimit)
	assert.Equal(t, 3995.0, limits.MaxCreditAmount)
	assert.Equal(t, 11750.0, limits.PhaseOutStart)
}

func TestIncomeLimitsClampsChildCount(t *testing.T) {
	three, err := IncomeLimits(2023, types.FilingSingle, 3)
	require.NoError(t, err)
	seven, err := IncomeLimits(2023, types.FilingSingle, 7)
	require.NoError(t, err)

	assert.Equal(t, three, seven)
}

func TestIncomeLimitsUnsupportedYear(t *testing.T) {
	_, err := IncomeLimits(1999, types.FilingSingle, 0)
	assert.Error(t, err)
}

func TestEstimateByIncome(t *testing.T) {
	incomes := []float64{10000, 20000, 30000, 40000}
	points, err := EstimateByIncome(2023, types.FilingSingle, 1, incomes)
	require.NoError(t, err)
	require.Len(t, points, len(incomes))

	for i, p := range points {
		assert.Equal(t, incomes[i], p.Income)
		assert.True(t, p.Eligible)
		assert.GreaterOrEqual(t, p.CreditAmount, 0.0)
	}

	// 10000 is in the phase-in segment, 20000 onward in the phase-out.
	assert.Greater(t, points[1].CreditAmount, 0.0)
	assert.Greater(t, points[1].CreditAmount, points[2].CreditAmount)
}

func TestEstimateByIncomeAboveCeiling(t *testing.T) {
	points, err := EstimateByIncome(2023, types.FilingSingle, 1, []float64{60000})
	require.NoError(t, err)
	require.Len(t, points, 1)

	assert.False(t, points[0].Eligible)
	assert.Equal(t, 0.0, points[0].CreditAmount)
}
