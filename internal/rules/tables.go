package rules

import "github.com/taxintel/taxintel/internal/types"

// Parameter tables from IRS Publication 596. Buckets: 0 = no qualifying
// children, 1, 2, 3 = three or more.

func taxYear2023() *RuleSet {
	return &RuleSet{
		TaxYear: 2023,
		IncomeLimits: map[types.FilingCategory]map[int]IncomeLimit{
			types.CategorySingle: {
				0: {Earned: 17640, AGI: 17640},
				1: {Earned: 46560, AGI: 46560},
				2: {Earned: 52918, AGI: 52918},
				3: {Earned: 56838, AGI: 56838},
			},
			types.CategoryMarriedJoint: {
				0: {Earned: 23260, AGI: 23260},
				1: {Earned: 52180, AGI: 52180},
				2: {Earned: 58538, AGI: 58538},
				3: {Earned: 62458, AGI: 62458},
			},
		},
		MaxCredit: map[int]float64{
			0: 600,
			1: 3995,
			2: 6604,
			3: 7430,
		},
		PhaseInRate: map[int]float64{
			0: 0.0765,
			1: 0.34,
			2: 0.40,
			3: 0.45,
		},
		PhaseOutRate: map[int]float64{
			0: 0.0765,
			1: 0.1598,
			2: 0.2106,
			3: 0.2106,
		},
		PhaseOutStart: map[types.FilingCategory]map[int]float64{
			types.CategorySingle: {
				0: 9800,
				1: 11750,
				2: 11750,
				3: 11750,
			},
			types.CategoryMarriedJoint: {
				0: 15420,
				1: 17370,
				2: 17370,
				3: 17370,
			},
		},
		InvestmentIncomeLimit: 11000,
		MinAgeNoChildren:      25,
		MaxAgeNoChildren:      64,
	}
}

// 2024 parameters per Rev. Proc. 2023-34.
func taxYear2024() *RuleSet {
	return &RuleSet{
		TaxYear: 2024,
		IncomeLimits: map[types.FilingCategory]map[int]IncomeLimit{
			types.CategorySingle: {
				0: {Earned: 18591, AGI: 18591},
				1: {Earned: 49084, AGI: 49084},
				2: {Earned: 55768, AGI: 55768},
				3: {Earned: 59899, AGI: 59899},
			},
			types.CategoryMarriedJoint: {
				0: {Earned: 25511, AGI: 25511},
				1: {Earned: 56004, AGI: 56004},
				2: {Earned: 62688, AGI: 62688},
				3: {Earned: 66819, AGI: 66819},
			},
		},
		MaxCredit: map[int]float64{
			0: 632,
			1: 4213,
			2: 6960,
			3: 7830,
		},
		PhaseInRate: map[int]float64{
			0: 0.0765,
			1: 0.34,
			2: 0.40,
			3: 0.45,
		},
		PhaseOutRate: map[int]float64{
			0: 0.0765,
			1: 0.1598,
			2: 0.2106,
			3: 0.2106,
		},
		PhaseOutStart: map[types.FilingCategory]map[int]float64{
			types.CategorySingle: {
				0: 10330,
				1: 22720,
				2: 22720,
				3: 22720,
			},
			types.CategoryMarriedJoint: {
				0: 17250,
				1: 29640,
				2: 29640,
				3: 29640,
			},
		},
		InvestmentIncomeLimit: 11600,
		MinAgeNoChildren:      25,
		MaxAgeNoChildren:      64,
	}
}
