package scoring

import (
	"testing"

	"github.com/shopspring/decimal"
)

func baseQuote() DealerQuoteInput {
	return DealerQuoteInput{
		Vin:            "1ABCDEFG2H3I45678",
		StockNumber:    "EVE123",
		Year:           2025,
		Make:           "Toyota",
		Model:          "Grand Highlander",
		Trim:           "Limited",
		ExtColor:       "Gray",
		IntColor:       "Black",
		Msrp:           decimal.NewFromInt(50000),
		DealerDiscount: decimal.NewFromInt(-1500),
		DocFee:         decimal.NewFromInt(150),
		DmvFee:         decimal.NewFromInt(180),
		TireBatteryFee: decimal.NewFromInt(25),
		TaxRate:        decimal.NewFromFloat(0.1025),
		TaxAmount:      decimal.NewFromInt(5000),
		OTDTotal:       decimal.NewFromInt(52000),
		Confirmations: Confirmations{
			NoUnapprovedAddons: true,
			IncentivesVerified: true,
			OTDIncludesAllFees: true,
		},
	}
}

func TestCleanQuoteScoresZero(t *testing.T) {
	if score := CalculateShadinessScore(baseQuote()); score != 0 {
		t.Fatalf("expected 0 got %d", score)
	}
}

func TestMissingItemizationPenalized(t *testing.T) {
	quote := baseQuote()
	quote.OTDTotal = decimal.NewFromInt(48000)
	quote.DocFee = decimal.Zero
	quote.DmvFee = decimal.Zero
	quote.TireBatteryFee = decimal.Zero

	score := CalculateShadinessScore(quote)
	if score < 10 {
		t.Fatalf("expected score >= 10 got %d", score)
	}
}

func TestItemizedZeroFeesNotPenalizedWhenTotalExplained(t *testing.T) {
	quote := baseQuote()
	quote.DocFee = decimal.Zero
	quote.DmvFee = decimal.Zero
	quote.TireBatteryFee = decimal.Zero
	// 50000 - 1500 + 5000
	quote.OTDTotal = decimal.NewFromInt(53500)

	if score := CalculateShadinessScore(quote); score != 0 {
		t.Fatalf("expected 0 got %d", score)
	}
}

func TestForcedAddonsAndCreditPullPenalized(t *testing.T) {
	quote := baseQuote()
	quote.Addons = []AddonInput{
		{Name: "Nitrogen package", Amount: decimal.NewFromInt(899), IsOptional: false},
	}
	quote.RequiresCreditPullForCash = true

	score := CalculateShadinessScore(quote)
	if score < 25 {
		t.Fatalf("expected score >= 25 got %d", score)
	}
}

func TestOptionalAddonNotPenalized(t *testing.T) {
	quote := baseQuote()
	quote.Addons = []AddonInput{
		{Name: "All-weather mats", Amount: decimal.NewFromInt(249), IsOptional: true},
		{Name: "Free wash", Amount: decimal.Zero, IsOptional: false},
	}

	if score := CalculateShadinessScore(quote); score != 0 {
		t.Fatalf("expected 0 got %d", score)
	}
}

func TestHonoringAdvertisedPriceOverridesPenalties(t *testing.T) {
	quote := baseQuote()
	quote.OTDTotal = decimal.NewFromInt(48000)
	quote.DocFee = decimal.Zero
	quote.DmvFee = decimal.Zero
	quote.TireBatteryFee = decimal.Zero
	quote.Addons = []AddonInput{
		{Name: "Nitrogen package", Amount: decimal.NewFromInt(899), IsOptional: false},
	}
	quote.RequiresCreditPullForCash = true
	quote.HonorsAdvertisedVinPrice = true

	if score := CalculateShadinessScore(quote); score != 0 {
		t.Fatalf("expected override to 0 got %d", score)
	}
}

func TestApplyContractPassRewardFloorsAtZero(t *testing.T) {
	tests := []struct {
		name     string
		score    int
		expected int
	}{
		{"above reward", 25, 10},
		{"equal to reward", 15, 0},
		{"below reward", 10, 0},
		{"already zero", 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ApplyContractPassReward(tc.score); got != tc.expected {
				t.Fatalf("expected %d got %d", tc.expected, got)
			}
		})
	}
}

func TestLevelBuckets(t *testing.T) {
	tests := []struct {
		score    int
		expected string
	}{
		{0, "low"},
		{25, "low"},
		{26, "medium"},
		{60, "medium"},
		{61, "high"},
	}
	for _, tc := range tests {
		if got := Level(tc.score); got != tc.expected {
			t.Fatalf("score %d: expected %q got %q", tc.score, tc.expected, got)
		}
	}
}
