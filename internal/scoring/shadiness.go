package scoring

import "github.com/shopspring/decimal"

// Additive penalties for the shadiness rubric. ContractPassReward is subtracted
// from a quote's score when a signed contract checks out against it.
const (
	MissingItemizationPenalty = 10
	ForcedAddonPenalty        = 15
	CreditPullPenalty         = 10
	ContractPassReward        = 15
)

var itemizationTolerance = decimal.Zero

// AddonInput is a dealer-submitted addon line.
type AddonInput struct {
	Name       string
	Amount     decimal.Decimal
	IsOptional bool
}

// LineInput is a named amount on the dealer submission (fee or incentive).
type LineInput struct {
	Name   string
	Amount decimal.Decimal
}

// Confirmations are the dealer's self-attestations captured on submission.
type Confirmations struct {
	NoUnapprovedAddons bool
	IncentivesVerified bool
	OTDIncludesAllFees bool
}

// DealerQuoteInput is the raw submission payload, prior to any validation
// against authoritative records. Attestation flags are consumed only here.
type DealerQuoteInput struct {
	Vin            string
	StockNumber    string
	Year           int
	Make           string
	Model          string
	Trim           string
	ExtColor       string
	IntColor       string
	Msrp           decimal.Decimal
	DealerDiscount decimal.Decimal
	DocFee         decimal.Decimal
	DmvFee         decimal.Decimal
	TireBatteryFee decimal.Decimal
	OtherFees      []LineInput
	Incentives     []LineInput
	Addons         []AddonInput
	TaxRate        decimal.Decimal
	TaxAmount      decimal.Decimal
	OTDTotal       decimal.Decimal
	Confirmations  Confirmations

	RequiresCreditPullForCash bool
	HonorsAdvertisedVinPrice  bool
}

// CalculateShadinessScore applies the predatory-pricing rubric to a dealer
// submission and returns a non-negative risk score. Pure; evaluated at
// submission and publish time. Advisory only — a high score never blocks the
// quote, it just surfaces on the ops/buyer view.
func CalculateShadinessScore(input DealerQuoteInput) int {
	// Honoring the advertised VIN price is an absolute trust signal that
	// overrides every other penalty.
	if input.HonorsAdvertisedVinPrice {
		return 0
	}

	score := 0

	if missingItemization(input) {
		score += MissingItemizationPenalty
	}
	if hasForcedAddon(input.Addons) {
		score += ForcedAddonPenalty
	}
	if input.RequiresCreditPullForCash {
		score += CreditPullPenalty
	}

	if score < 0 {
		score = 0
	}
	return score
}

// missingItemization flags quotes that fold real fees into an opaque total:
// all three canonical fee fields are zero while the OTD total cannot be
// explained by MSRP + discount + tax alone.
func missingItemization(input DealerQuoteInput) bool {
	if !input.DocFee.IsZero() || !input.DmvFee.IsZero() || !input.TireBatteryFee.IsZero() {
		return false
	}
	explained := input.Msrp.Add(input.DealerDiscount).Add(input.TaxAmount)
	return input.OTDTotal.Sub(explained).Abs().GreaterThan(itemizationTolerance)
}

func hasForcedAddon(addons []AddonInput) bool {
	for _, addon := range addons {
		if !addon.IsOptional && !addon.Amount.IsZero() {
			return true
		}
	}
	return false
}

// Level buckets a score for display (the buyer-facing pill).
func Level(score int) string {
	switch {
	case score <= 25:
		return "low"
	case score <= 60:
		return "medium"
	default:
		return "high"
	}
}

// ApplyContractPassReward returns the score after the truthful-contract reward,
// floored at zero. This is the only path by which a score decreases.
func ApplyContractPassReward(score int) int {
	score -= ContractPassReward
	if score < 0 {
		return 0
	}
	return score
}
