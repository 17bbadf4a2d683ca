package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/taxintel/taxintel/internal/eitc"
	"github.com/taxintel/taxintel/internal/types"
)

var calcFlags struct {
	taxYear          int
	filingStatus     string
	agi              float64
	earnedIncome     float64
	investmentIncome float64
	children         int
	age              int
	spouseAge        int
	record           bool
}

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Determine EITC eligibility from the command line",
	Long: `Run one EITC determination and print the result, including every
eligibility check and the estimated credit amount.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		status := types.FilingStatus(calcFlags.filingStatus)
		if !status.IsValid() {
			return fmt.Errorf("unknown filing status %q", calcFlags.filingStatus)
		}

		taxYear := calcFlags.taxYear
		if taxYear == 0 {
			taxYear = cfg.DefaultTaxYear
		}

		facts := types.TaxpayerFacts{
			FilingStatus:        status,
			AdjustedGrossIncome: calcFlags.agi,
			EarnedIncome:        calcFlags.earnedIncome,
			InvestmentIncome:    calcFlags.investmentIncome,
			QualifyingChildren:  calcFlags.children,
		}
		if cmd.Flags().Changed("age") {
			facts.TaxpayerAge = &calcFlags.age
		}
		if cmd.Flags().Changed("spouse-age") {
			facts.SpouseAge = &calcFlags.spouseAge
		}

		det, err := eitc.Determine(taxYear, facts)
		if err != nil {
			return err
		}

		printDetermination(det)

		if calcFlags.record {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			rec := &types.CalculationRecord{
				TaxYear:      taxYear,
				FilingStatus: string(status),
				Eligible:     det.Eligible,
				CreditAmount: det.CreditAmount,
				Timestamp:    time.Now().UTC(),
			}
			if err := store.AddCalculation(context.Background(), rec); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to record calculation: %v\n", err)
			}
		}
		return nil
	},
}

func printDetermination(det *types.Determination) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("=== EITC Determination (tax year %d) ===", det.TaxYear)))

	for _, check := range types.AllChecks() {
		mark := red("✗")
		if det.RequirementsMet[check] {
			mark = green("✓")
		}
		fmt.Printf("  %s %s\n", mark, check)
	}
	fmt.Println()

	if det.Eligible {
		fmt.Printf("  %s estimated credit $%.2f\n", green("ELIGIBLE:"), det.CreditAmount)
	} else {
		fmt.Printf("  %s\n", red("NOT ELIGIBLE"))
	}
	fmt.Println()

	for _, line := range det.Explanation {
		fmt.Printf("  %s\n", line)
	}
	fmt.Println()
}

func init() {
	calcCmd.Flags().IntVar(&calcFlags.taxYear, "tax-year", 0, "tax year (defaults to the configured year)")
	calcCmd.Flags().StringVar(&calcFlags.filingStatus, "filing-status", "single", "filing status")
	calcCmd.Flags().Float64Var(&calcFlags.agi, "agi", 0, "adjusted gross income")
	calcCmd.Flags().Float64Var(&calcFlags.earnedIncome, "earned-income", 0, "earned income")
	calcCmd.Flags().Float64Var(&calcFlags.investmentIncome, "investment-income", 0, "investment income")
	calcCmd.Flags().IntVar(&calcFlags.children, "children", 0, "number of qualifying children")
	calcCmd.Flags().IntVar(&calcFlags.age, "age", 0, "taxpayer age")
	calcCmd.Flags().IntVar(&calcFlags.spouseAge, "spouse-age", 0, "spouse age (married filing jointly)")
	calcCmd.Flags().BoolVar(&calcFlags.record, "record", false, "store the calculation in the database")
}
