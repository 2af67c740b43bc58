package reconcile

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Tolerances are expressed in whole currency units. TaxTolerance is wider to
// absorb rounding differences between dealer tax engines.
var (
	DefaultTolerance = decimal.Zero
	LineTolerance    = decimal.NewFromInt(1)
	TaxTolerance     = decimal.NewFromInt(2)
)

// LineItem is a named monetary line (fee, incentive or addon amount).
type LineItem struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// CollectionOptions controls CompareCollections behavior.
type CollectionOptions struct {
	Tolerance    decimal.Decimal
	AllowMissing bool
}

// CompareAmounts reports whether actual agrees with expected within tolerance.
// A nil expected means the quote never recorded a figure; the contract must not
// introduce one, so the check passes only when |actual| <= tolerance.
func CompareAmounts(expected *decimal.Decimal, actual, tolerance decimal.Decimal) bool {
	if expected == nil {
		return actual.Abs().LessThanOrEqual(tolerance)
	}
	return expected.Sub(actual).Abs().LessThanOrEqual(tolerance)
}

// NormalizeKey produces the case-insensitive, trimmed map key for a line name.
func NormalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeMap(items []LineItem) map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(items))
	for _, item := range items {
		// Collisions overwrite; last write wins.
		m[NormalizeKey(item.Name)] = item.Amount
	}
	return m
}

// CompareCollections reconciles two keyed collections irrespective of order and
// returns the normalized names of every key that is missing, undisclosed or out
// of tolerance. Keys are sorted for stable reports.
func CompareCollections(expected, actual []LineItem, opts CollectionOptions) []string {
	expectedMap := normalizeMap(expected)
	actualMap := normalizeMap(actual)

	var failures []string
	for name, want := range expectedMap {
		got, ok := actualMap[name]
		if !ok {
			if !opts.AllowMissing {
				failures = append(failures, name)
			}
			continue
		}
		if want.Sub(got).Abs().GreaterThan(opts.Tolerance) {
			failures = append(failures, name)
		}
	}
	for name := range actualMap {
		if _, ok := expectedMap[name]; !ok {
			failures = append(failures, name)
		}
	}

	sort.Strings(failures)
	return failures
}
