// Package safety implements content moderation for the assistant: PII
// detection, unsafe-content screening, topic relevance, and response checks.
package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Filter screens user inputs and assistant outputs. It is immutable after
// construction and safe for concurrent use.
type Filter struct {
	piiPatterns    map[string]*regexp.Regexp
	unsafePatterns map[string]*regexp.Regexp
	advicePatterns []*regexp.Regexp
	disclaimers    []*regexp.Regexp
	taxKeywords    []string
}

// New builds a filter with the standard pattern set
func New() *Filter {
	return &Filter{
		piiPatterns: map[string]*regexp.Regexp{
			"ssn":           regexp.MustCompile(`\b\d{3}-?\d{2}-?\d{4}\b`),
			"ssn_full":      regexp.MustCompile(`\b\d{9}\b`),
			"phone":         regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
			"email":         regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
			"credit_card":   regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
			"bank_account":  regexp.MustCompile(`\b\d{8,17}\b`),
			"address":       regexp.MustCompile(`(?i)\b\d+\s+[A-Za-z\s]+(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Lane|Ln|Boulevard|Blvd)\b`),
			"zip_code":      regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`),
			"date_of_birth": regexp.MustCompile(`\b(?:0[1-9]|1[0-2])[/-](?:0[1-9]|[12]\d|3[01])[/-](?:19|20)\d{2}\b`),
			"ein":           regexp.MustCompile(`\b\d{2}-?\d{7}\b`),
		},
		unsafePatterns: map[string]*regexp.Regexp{
			"tax_evasion":         regexp.MustCompile(`(?i)\b(?:hide|conceal|evade|avoid paying|not report|under report|cash only|off the books)\s+(?:income|taxes|earnings)\b`),
			"illegal_advice":      regexp.MustCompile(`(?i)\b(?:illegal|fraudulent|fake|false)\s+(?:deduction|credit|return|claim)\b`),
			"aggressive_language": regexp.MustCompile(`(?i)\b(?:damn|hell|stupid|idiot|moron|scam|rip-?off)\b`),
			"non_tax_requests":    regexp.MustCompile(`(?i)\b(?:medical|legal|investment|relationship|personal)\s+advice\b`),
		},
		advicePatterns: []*regexp.Regexp{
			regexp.MustCompile(`\byou should claim\b`),
			regexp.MustCompile(`\byou should deduct\b`),
			regexp.MustCompile(`\byou should file\b`),
			regexp.MustCompile(`\byou are eligible for exactly\b`),
			regexp.MustCompile(`\byour tax liability is\b`),
			regexp.MustCompile(`\byou owe \$\d+\b`),
			regexp.MustCompile(`\byou will receive \$\d+\b`),
		},
		disclaimers: []*regexp.Regexp{
			regexp.MustCompile(`consult.*tax professional`),
			regexp.MustCompile(`this is.*estimate`),
			regexp.MustCompile(`general.*information`),
			regexp.MustCompile(`not.*substitute.*professional advice`),
			regexp.MustCompile(`irs publication`),
			regexp.MustCompile(`verify.*current.*information`),
		},
		taxKeywords: []string{
			"eitc", "earned income tax credit", "tax credit", "refund", "irs", "taxes",
			"income", "filing", "deduction", "w-2", "1040", "adjusted gross income",
			"qualifying child", "dependent", "tax return", "withholding", "standard deduction",
			"itemized deduction", "tax liability", "tax year", "publication 596",
		},
	}
}

// PIIMatch describes occurrences of one PII kind. Matched values are never
// retained in the clear; only a truncated hash for log correlation.
type PIIMatch struct {
	Count        int      `json:"count"`
	HashedValues []string `json:"hashed_values"`
}

// PIIResult is the outcome of a PII scan
type PIIResult struct {
	HasPII   bool                `json:"has_pii"`
	Types    map[string]PIIMatch `json:"pii_types"`
	TotalPII int                 `json:"total_pii_items"`
}

// DetectPII scans text for personally identifiable information
func (f *Filter) DetectPII(text string) PIIResult {
	found := make(map[string]PIIMatch)
	total := 0

	for kind, pattern := range f.piiPatterns {
		matches := pattern.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		hashed := make([]string, len(matches))
		for i, m := range matches {
			sum := sha256.Sum256([]byte(m))
			hashed[i] = hex.EncodeToString(sum[:])[:8]
		}
		found[kind] = PIIMatch{Count: len(matches), HashedValues: hashed}
		total += len(matches)
	}

	return PIIResult{HasPII: len(found) > 0, Types: found, TotalPII: total}
}

// UnsafeResult is the outcome of an unsafe-content scan
type UnsafeResult struct {
	IsUnsafe bool                `json:"is_unsafe"`
	Types    map[string][]string `json:"unsafe_types"`
}

// DetectUnsafe scans text for content the assistant must not engage with
func (f *Filter) DetectUnsafe(text string) UnsafeResult {
	found := make(map[string][]string)
	for kind, pattern := range f.unsafePatterns {
		matches := pattern.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		// Keep at most three examples for logging.
		if len(matches) > 3 {
			matches = matches[:3]
		}
		found[kind] = matches
	}
	return UnsafeResult{IsUnsafe: len(found) > 0, Types: found}
}

// IsTaxRelated reports whether text appears relevant to tax topics. General
// greetings and question openers count as relevant so the assistant can
// respond to conversation starters.
func (f *Filter) IsTaxRelated(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range f.taxKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, general := range []string{"hello", "hi", "help", "question", "how", "what", "can you"} {
		if strings.Contains(lower, general) {
			return true
		}
	}
	return false
}

// SafeInput reports whether a user message may be processed
func (f *Filter) SafeInput(text string) bool {
	if f.DetectPII(text).HasPII {
		return false
	}
	if f.DetectUnsafe(text).IsUnsafe {
		return false
	}
	return true
}

// SafeOutput reports whether an assistant response may be returned. A
// response is rejected when it leaks PII or gives specific tax advice.
func (f *Filter) SafeOutput(text string) bool {
	if f.DetectPII(text).HasPII {
		return false
	}
	if f.containsSpecificAdvice(text) {
		return false
	}
	return true
}

func (f *Filter) containsSpecificAdvice(text string) bool {
	lower := strings.ToLower(text)
	for _, pattern := range f.advicePatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}

// HasDisclaimer reports whether a response carries an appropriate
// disclaimer. Short responses (under 50 words) are exempt.
func (f *Filter) HasDisclaimer(text string) bool {
	if len(strings.Fields(text)) < 50 {
		return true
	}
	lower := strings.ToLower(text)
	for _, pattern := range f.disclaimers {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}

// Sanitize masks PII in text, preserving surrounding content
func (f *Filter) Sanitize(text string) string {
	replacements := []struct {
		kind string
		mask string
	}{
		{"ssn", "XXX-XX-XXXX"},
		{"phone", "XXX-XXX-XXXX"},
		{"email", "[EMAIL]"},
		{"credit_card", "XXXX-XXXX-XXXX-XXXX"},
		{"bank_account", "[ACCOUNT_NUMBER]"},
		{"address", "[ADDRESS]"},
		{"zip_code", "XXXXX"},
		{"date_of_birth", "XX/XX/XXXX"},
		{"ein", "XX-XXXXXXX"},
	}
	sanitized := text
	for _, r := range replacements {
		sanitized = f.piiPatterns[r.kind].ReplaceAllString(sanitized, r.mask)
	}
	return sanitized
}

// Report is a combined safety analysis of one text
type Report struct {
	TextLength   int          `json:"text_length"`
	WordCount    int          `json:"word_count"`
	PII          PIIResult    `json:"pii_analysis"`
	Unsafe       UnsafeResult `json:"unsafe_content_analysis"`
	IsTaxRelated bool         `json:"is_tax_related"`
	SafeInput    bool         `json:"is_safe_input"`
	Sanitized    string       `json:"sanitized_text"`
}

// Analyze produces a full safety report for text
func (f *Filter) Analyze(text string) Report {
	return Report{
		TextLength:   len(text),
		WordCount:    len(strings.Fields(text)),
		PII:          f.DetectPII(text),
		Unsafe:       f.DetectUnsafe(text),
		IsTaxRelated: f.IsTaxRelated(text),
		SafeInput:    f.SafeInput(text),
		Sanitized:    f.Sanitize(text),
	}
}
