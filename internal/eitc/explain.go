package eitc

import (
	"fmt"

	"github.com/taxintel/taxintel/internal/rules"
	"github.com/taxintel/taxintel/internal/types"
)

// formatCurrency renders a dollar amount with thousands separators,
// e.g. 3995.5 -> "$3,995.50".
func formatCurrency(amount float64) string {
	cents := int64(amount*100 + 0.5)
	dollars := cents / 100
	remainder := cents % 100

	s := fmt.Sprintf("%d", dollars)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return fmt.Sprintf("$%s.%02d", s, remainder)
}

// formatDollars renders a whole-dollar amount with thousands separators and
// no cents, e.g. 11000 -> "$11,000".
func formatDollars(amount float64) string {
	s := fmt.Sprintf("%d", int64(amount+0.5))
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return "$" + s
}

// eligibilityExplanation builds the explanation for the eligible path:
// eligibility, the computed amount, the child-bucket basis, and an estimate
// disclaimer.
func eligibilityExplanation(creditAmount float64, qualifyingChildren int) []string {
	basis := "This calculation is for taxpayers with no qualifying children"
	if qualifyingChildren > 0 {
		basis = fmt.Sprintf("This calculation is based on %d qualifying child(ren)", qualifyingChildren)
	}

	return []string{
		"You are eligible for the Earned Income Tax Credit!",
		fmt.Sprintf("Your estimated EITC amount is %s", formatCurrency(creditAmount)),
		basis,
		"Please note: This is an estimate. Your actual credit may vary based on " +
			"other factors not included in this calculation.",
	}
}

// ineligibilityExplanation enumerates a message for each failing check in
// fixed order, followed by a closing referral line.
func ineligibilityExplanation(rs *rules.RuleSet, checks map[string]bool) []string {
	explanation := []string{"You do not appear to be eligible for the EITC based on the following:"}

	if !checks[types.CheckInvestmentIncomeOK] {
		explanation = append(explanation,
			fmt.Sprintf("• Investment income exceeds %s", formatDollars(rs.InvestmentIncomeLimit)))
	}
	if !checks[types.CheckAGIWithinLimits] {
		explanation = append(explanation, "• Adjusted gross income exceeds EITC limits")
	}
	if !checks[types.CheckEarnedIncomeWithinLimits] {
		explanation = append(explanation, "• Earned income exceeds EITC limits")
	}
	if !checks[types.CheckAgeRequirementMet] {
		explanation = append(explanation,
			fmt.Sprintf("• Age requirements not met (must be %d-%d with no qualifying children)",
				rs.MinAgeNoChildren, rs.MaxAgeNoChildren))
	}
	if !checks[types.CheckHasEarnedIncome] {
		explanation = append(explanation, "• Must have earned income to qualify for EITC")
	}

	explanation = append(explanation,
		"Please consult IRS Publication 596 or a tax professional for more information.")
	return explanation
}
