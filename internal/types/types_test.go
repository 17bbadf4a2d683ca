package types

import (
	"testing"
	"time"
)

func TestFilingStatusNormalize(t *testing.T) {
	cases := []struct {
		status FilingStatus
		want   FilingCategory
	}{
		{FilingSingle, CategorySingle},
		{FilingMarriedJoint, CategoryMarriedJoint},
		{FilingMarriedFilingJointly, CategoryMarriedJoint},
		{FilingMarriedSeparate, CategorySingle},
		{FilingMarriedFilingSeparately, CategorySingle},
		{FilingHeadOfHousehold, CategorySingle},
		{FilingStatus("MARRIED_JOINT"), CategoryMarriedJoint},
		// Unknown statuses fall back to single.
		{FilingStatus("garbled"), CategorySingle},
		{FilingStatus(""), CategorySingle},
	}
	for _, tc := range cases {
		if got := tc.status.Normalize(); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

// Normalizing an already-normalized category returns it unchanged.
func TestNormalizeIdempotent(t *testing.T) {
	for _, cat := range []FilingCategory{CategorySingle, CategoryMarriedJoint} {
		if got := FilingStatus(cat).Normalize(); got != cat {
			t.Errorf("Normalize(%q) = %q, want unchanged", cat, got)
		}
	}
}

func TestFilingStatusIsValid(t *testing.T) {
	valid := []FilingStatus{
		FilingSingle, FilingMarriedJoint, FilingMarriedFilingJointly,
		FilingMarriedSeparate, FilingMarriedFilingSeparately, FilingHeadOfHousehold,
		FilingStatus("Single"),
	}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", s)
		}
	}
	if FilingStatus("garbled").IsValid() {
		t.Error("IsValid(garbled) = true, want false")
	}
}

func TestTaxpayerFactsValidate(t *testing.T) {
	facts := TaxpayerFacts{
		FilingStatus:        FilingSingle,
		AdjustedGrossIncome: 15000,
		EarnedIncome:        15000,
	}
	if err := facts.Validate(); err != nil {
		t.Errorf("valid facts failed validation: %v", err)
	}

	bad := []TaxpayerFacts{
		{AdjustedGrossIncome: -1},
		{EarnedIncome: -1},
		{InvestmentIncome: -1},
		{QualifyingChildren: -1},
	}
	for i, facts := range bad {
		if err := facts.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestChildBucketClamped(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 2: 2, 3: 3, 4: 3, 10: 3}
	for children, want := range cases {
		facts := TaxpayerFacts{QualifyingChildren: children}
		if got := facts.ChildBucket(); got != want {
			t.Errorf("ChildBucket(%d) = %d, want %d", children, got, want)
		}
	}
}

func TestAllChecksOrder(t *testing.T) {
	checks := AllChecks()
	if len(checks) != 5 {
		t.Fatalf("expected 5 checks, got %d", len(checks))
	}
	if checks[0] != CheckInvestmentIncomeOK || checks[4] != CheckHasEarnedIncome {
		t.Errorf("unexpected check ordering: %v", checks)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := Session{ExpiresAt: now.Add(time.Hour)}
	if s.Expired(now) {
		t.Error("session should not be expired before ExpiresAt")
	}
	if !s.Expired(now.Add(2 * time.Hour)) {
		t.Error("session should be expired after ExpiresAt")
	}
}

func TestFeedbackValidate(t *testing.T) {
	fb := Feedback{SessionID: "s1", Rating: 5}
	if err := fb.Validate(); err != nil {
		t.Errorf("valid feedback failed validation: %v", err)
	}

	fb = Feedback{SessionID: "s1", Rating: 0}
	if err := fb.Validate(); err == nil {
		t.Error("rating 0 should fail validation")
	}
	fb = Feedback{SessionID: "s1", Rating: 6}
	if err := fb.Validate(); err == nil {
		t.Error("rating 6 should fail validation")
	}
	fb = Feedback{Rating: 3}
	if err := fb.Validate(); err == nil {
		t.Error("missing session_id should fail validation")
	}
}
