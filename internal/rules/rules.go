// Package rules holds the per-year EITC parameter tables from IRS
// Publication 596. A RuleSet is immutable after construction; adding a tax
// year means adding a complete table, and partial tables fail validation at
// package init rather than mid-request.
package rules

import (
	"fmt"
	"sort"

	"github.com/taxintel/taxintel/internal/types"
)

// ErrUnsupportedTaxYear is returned by ForYear when no rule table exists for
// the requested year. It is a configuration/input error, distinct from an
// ineligibility outcome.
type ErrUnsupportedTaxYear struct {
	Year int
}

func (e *ErrUnsupportedTaxYear) Error() string {
	return fmt.Sprintf("EITC tables not available for tax year %d", e.Year)
}

// IncomeLimit pairs the earned-income and AGI ceilings for one filing
// category and child bucket.
type IncomeLimit struct {
	Earned float64
	AGI    float64
}

// RuleSet is the complete set of numeric parameters governing EITC
// computation for one tax year. Maps are keyed by normalized filing category
// and by child bucket (0-3, where 3 means three or more).
type RuleSet struct {
	TaxYear int

	IncomeLimits  map[types.FilingCategory]map[int]IncomeLimit
	MaxCredit     map[int]float64
	PhaseInRate   map[int]float64
	PhaseOutRate  map[int]float64
	PhaseOutStart map[types.FilingCategory]map[int]float64

	InvestmentIncomeLimit float64
	MinAgeNoChildren      int
	MaxAgeNoChildren      int
}

var categories = []types.FilingCategory{types.CategorySingle, types.CategoryMarriedJoint}

// Validate checks exhaustive key coverage: every filing category and every
// child bucket 0-3 must be present in every table.
func (r *RuleSet) Validate() error {
	if r.TaxYear <= 0 {
		return fmt.Errorf("tax year must be positive (got %d)", r.TaxYear)
	}
	for _, cat := range categories {
		limits, ok := r.IncomeLimits[cat]
		if !ok {
			return fmt.Errorf("tax year %d: income limits missing category %q", r.TaxYear, cat)
		}
		starts, ok := r.PhaseOutStart[cat]
		if !ok {
			return fmt.Errorf("tax year %d: phase-out starts missing category %q", r.TaxYear, cat)
		}
		for bucket := 0; bucket <= 3; bucket++ {
			if _, ok := limits[bucket]; !ok {
				return fmt.Errorf("tax year %d: income limits missing bucket %d for %q", r.TaxYear, bucket, cat)
			}
			if _, ok := starts[bucket]; !ok {
				return fmt.Errorf("tax year %d: phase-out starts missing bucket %d for %q", r.TaxYear, bucket, cat)
			}
		}
	}
	for bucket := 0; bucket <= 3; bucket++ {
		if _, ok := r.MaxCredit[bucket]; !ok {
			return fmt.Errorf("tax year %d: max credits missing bucket %d", r.TaxYear, bucket)
		}
		rin, ok := r.PhaseInRate[bucket]
		if !ok {
			return fmt.Errorf("tax year %d: phase-in rates missing bucket %d", r.TaxYear, bucket)
		}
		if rin <= 0 || rin >= 1 {
			return fmt.Errorf("tax year %d: phase-in rate for bucket %d out of range: %v", r.TaxYear, bucket, rin)
		}
		rout, ok := r.PhaseOutRate[bucket]
		if !ok {
			return fmt.Errorf("tax year %d: phase-out rates missing bucket %d", r.TaxYear, bucket)
		}
		if rout <= 0 || rout >= 1 {
			return fmt.Errorf("tax year %d: phase-out rate for bucket %d out of range: %v", r.TaxYear, bucket, rout)
		}
	}
	if r.InvestmentIncomeLimit <= 0 {
		return fmt.Errorf("tax year %d: investment income limit must be positive", r.TaxYear)
	}
	if r.MinAgeNoChildren <= 0 || r.MaxAgeNoChildren < r.MinAgeNoChildren {
		return fmt.Errorf("tax year %d: invalid age bounds [%d, %d]", r.TaxYear, r.MinAgeNoChildren, r.MaxAgeNoChildren)
	}
	return nil
}

// ForYear returns the rule set for the given tax year, or
// *ErrUnsupportedTaxYear when none exists. The returned RuleSet is shared and
// must not be mutated.
func ForYear(year int) (*RuleSet, error) {
	rs, ok := ruleSets[year]
	if !ok {
		return nil, &ErrUnsupportedTaxYear{Year: year}
	}
	return rs, nil
}

// SupportedYears returns the tax years with rule tables, ascending
func SupportedYears() []int {
	years := make([]int, 0, len(ruleSets))
	for y := range ruleSets {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

var ruleSets = map[int]*RuleSet{}

// register validates a rule set and adds it to the lookup table. A partial
// table is a data-authoring error, so it panics at init time.
func register(rs *RuleSet) {
	if err := rs.Validate(); err != nil {
		panic(fmt.Sprintf("invalid EITC rule set: %v", err))
	}
	if _, exists := ruleSets[rs.TaxYear]; exists {
		panic(fmt.Sprintf("duplicate EITC rule set for tax year %d", rs.TaxYear))
	}
	ruleSets[rs.TaxYear] = rs
}

func init() {
	register(taxYear2023())
	register(taxYear2024())
}
