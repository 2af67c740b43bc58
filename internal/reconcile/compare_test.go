package reconcile

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func decPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func TestCompareAmounts(t *testing.T) {
	tests := []struct {
		name      string
		expected  *decimal.Decimal
		actual    decimal.Decimal
		tolerance decimal.Decimal
		want      bool
	}{
		{"exact match", decPtr(100), dec(100), DefaultTolerance, true},
		{"within tolerance", decPtr(100), dec(101), dec(2), true},
		{"at tolerance boundary", decPtr(100), dec(102), dec(2), true},
		{"beyond tolerance", decPtr(100), dec(103), dec(2), false},
		{"negative diff within", decPtr(100), dec(99), dec(2), true},
		{"cent difference zero tolerance", decPtr(100), dec(100.01), DefaultTolerance, false},
		{"nil expected zero actual", nil, dec(0), DefaultTolerance, true},
		{"nil expected within tolerance", nil, dec(2), TaxTolerance, true},
		{"nil expected introduces value", nil, dec(500), TaxTolerance, false},
		{"nil expected negative actual", nil, dec(-1), LineTolerance, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CompareAmounts(tc.expected, tc.actual, tc.tolerance); got != tc.want {
				t.Fatalf("expected %v got %v", tc.want, got)
			}
		})
	}
}

func TestCompareCollectionsDetectsMismatches(t *testing.T) {
	expected := []LineItem{
		{Name: "docFee", Amount: dec(150)},
		{Name: "dmvFee", Amount: dec(180)},
		{Name: "tireBatteryFee", Amount: dec(25)},
	}
	actual := []LineItem{
		{Name: "docFee", Amount: dec(150)},
		{Name: "dmvFee", Amount: dec(195)},
		{Name: "tireBatteryFee", Amount: dec(25)},
	}

	failures := CompareCollections(expected, actual, CollectionOptions{Tolerance: LineTolerance})
	if !reflect.DeepEqual(failures, []string{"dmvfee"}) {
		t.Fatalf("expected [dmvfee] got %v", failures)
	}
}

func TestCompareCollectionsOrderIndependent(t *testing.T) {
	expected := []LineItem{
		{Name: "Toyota Cash", Amount: dec(-750)},
		{Name: "Holiday Bonus", Amount: dec(-250)},
	}
	actual := []LineItem{
		{Name: "Holiday Bonus", Amount: dec(-250)},
		{Name: "Toyota Cash", Amount: dec(-750)},
	}

	if failures := CompareCollections(expected, actual, CollectionOptions{Tolerance: LineTolerance}); len(failures) != 0 {
		t.Fatalf("expected no failures got %v", failures)
	}
}

func TestCompareCollectionsNormalizesNames(t *testing.T) {
	expected := []LineItem{{Name: "Doc Fee", Amount: dec(150)}}
	actual := []LineItem{{Name: "doc fee ", Amount: dec(150)}}

	if failures := CompareCollections(expected, actual, CollectionOptions{}); len(failures) != 0 {
		t.Fatalf("expected no failures got %v", failures)
	}
}

func TestCompareCollectionsUndisclosedItem(t *testing.T) {
	expected := []LineItem{{Name: "Doc Fee", Amount: dec(150)}}
	actual := []LineItem{
		{Name: "Doc Fee", Amount: dec(150)},
		{Name: "Market Adjustment", Amount: dec(2500)},
	}

	failures := CompareCollections(expected, actual, CollectionOptions{Tolerance: LineTolerance})
	if !reflect.DeepEqual(failures, []string{"market adjustment"}) {
		t.Fatalf("expected [market adjustment] got %v", failures)
	}
}

func TestCompareCollectionsMissingItem(t *testing.T) {
	expected := []LineItem{
		{Name: "Doc Fee", Amount: dec(150)},
		{Name: "Holiday Bonus", Amount: dec(-250)},
	}
	actual := []LineItem{{Name: "Doc Fee", Amount: dec(150)}}

	failures := CompareCollections(expected, actual, CollectionOptions{})
	if !reflect.DeepEqual(failures, []string{"holiday bonus"}) {
		t.Fatalf("expected [holiday bonus] got %v", failures)
	}

	if failures := CompareCollections(expected, actual, CollectionOptions{AllowMissing: true}); len(failures) != 0 {
		t.Fatalf("expected no failures with AllowMissing got %v", failures)
	}
}

func TestCompareCollectionsLastWriteWins(t *testing.T) {
	expected := []LineItem{
		{Name: "Doc Fee", Amount: dec(100)},
		{Name: "doc fee", Amount: dec(150)},
	}
	actual := []LineItem{{Name: "Doc Fee", Amount: dec(150)}}

	if failures := CompareCollections(expected, actual, CollectionOptions{}); len(failures) != 0 {
		t.Fatalf("expected collision to resolve to last write got %v", failures)
	}
}
