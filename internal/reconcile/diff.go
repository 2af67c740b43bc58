package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Canonical fee names on quote lines. These are carried by dedicated scalar
// fields, so matching lines are excluded from the open-ended fee set to avoid
// double-counting.
var canonicalFeeNames = map[string]struct{}{
	"Doc Fee":            {},
	"DMV / Registration": {},
	"Tire & Battery":     {},
}

// AddonLine is a quote-side addon with its buyer approval state.
type AddonLine struct {
	Name            string `json:"name"`
	ApprovedByBuyer bool   `json:"approvedByBuyer"`
}

// QuoteFigures is the authoritative snapshot of a quote used for diffing.
// Nil amounts mean the quote never recorded a figure for that field.
type QuoteFigures struct {
	Vin            string
	Year           int
	Make           string
	Model          string
	Trim           string
	Msrp           *decimal.Decimal
	DealerDiscount *decimal.Decimal
	DocFee         *decimal.Decimal
	DmvFee         *decimal.Decimal
	TireBatteryFee *decimal.Decimal
	TaxRate        *decimal.Decimal
	TaxAmount      *decimal.Decimal
	OTDTotal       *decimal.Decimal
	Incentives     []LineItem
	FeeLines       []LineItem
	Addons         []AddonLine
}

// ClaimedAddon is an addon as stated on the signed contract.
type ClaimedAddon struct {
	Name            string          `json:"name"`
	Amount          decimal.Decimal `json:"amount"`
	ApprovedByBuyer bool            `json:"approvedByBuyer"`
}

// ClaimedFees groups the contract's fee figures.
type ClaimedFees struct {
	DocFee         decimal.Decimal `json:"docFee"`
	DmvFee         decimal.Decimal `json:"dmvFee"`
	TireBatteryFee decimal.Decimal `json:"tireBatteryFee"`
	OtherFees      []LineItem      `json:"otherFees"`
}

// ContractClaim is the dealer's contract payload submitted for verification.
type ContractClaim struct {
	Vin            string
	Year           int
	Make           string
	Model          string
	Trim           string
	Msrp           decimal.Decimal
	DealerDiscount decimal.Decimal
	Incentives     []LineItem
	Fees           ClaimedFees
	Addons         []ClaimedAddon
	TaxRate        decimal.Decimal
	TaxAmount      decimal.Decimal
	OTDTotal       decimal.Decimal
}

func amountSnapshot(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return *v
}

func orZero(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}

// BuildReport runs the full ordered field-by-field comparison between a quote
// and a contract claim. It is pure; status changes and score adjustments are
// the caller's responsibility.
func BuildReport(quote QuoteFigures, claim ContractClaim) Report {
	var report Report

	exact := func(field string, expected, actual any) {
		report = append(report, CheckResult{
			Field:    field,
			Pass:     expected == actual,
			Expected: expected,
			Actual:   actual,
		})
	}

	exact("vin", quote.Vin, claim.Vin)
	exact("year", quote.Year, claim.Year)
	exact("make", quote.Make, claim.Make)
	exact("model", quote.Model, claim.Model)
	exact("trim", quote.Trim, claim.Trim)

	report = append(report, CheckResult{
		Field:    "msrp",
		Pass:     CompareAmounts(quote.Msrp, claim.Msrp, DefaultTolerance),
		Expected: amountSnapshot(quote.Msrp),
		Actual:   claim.Msrp,
	})
	report = append(report, CheckResult{
		Field:    "dealerDiscount",
		Pass:     CompareAmounts(quote.DealerDiscount, claim.DealerDiscount, DefaultTolerance),
		Expected: amountSnapshot(quote.DealerDiscount),
		Actual:   claim.DealerDiscount,
	})

	incentiveFailures := CompareCollections(quote.Incentives, claim.Incentives, CollectionOptions{Tolerance: LineTolerance})
	report = append(report, CheckResult{
		Field:    "incentives",
		Pass:     len(incentiveFailures) == 0,
		Expected: quote.Incentives,
		Actual:   claim.Incentives,
		Notes:    mismatchNote(incentiveFailures),
	})

	expectedFees := []LineItem{
		{Name: "docFee", Amount: orZero(quote.DocFee)},
		{Name: "dmvFee", Amount: orZero(quote.DmvFee)},
		{Name: "tireBatteryFee", Amount: orZero(quote.TireBatteryFee)},
	}
	for _, line := range quote.FeeLines {
		if _, canonical := canonicalFeeNames[line.Name]; canonical {
			continue
		}
		expectedFees = append(expectedFees, line)
	}
	actualFees := []LineItem{
		{Name: "docFee", Amount: claim.Fees.DocFee},
		{Name: "dmvFee", Amount: claim.Fees.DmvFee},
		{Name: "tireBatteryFee", Amount: claim.Fees.TireBatteryFee},
	}
	actualFees = append(actualFees, claim.Fees.OtherFees...)

	feeFailures := CompareCollections(expectedFees, actualFees, CollectionOptions{Tolerance: LineTolerance})
	report = append(report, CheckResult{
		Field:    "fees",
		Pass:     len(feeFailures) == 0,
		Expected: expectedFees,
		Actual:   claim.Fees,
		Notes:    mismatchNote(feeFailures),
	})

	unapproved := 0
	for _, addon := range claim.Addons {
		if !addon.ApprovedByBuyer {
			unapproved++
		}
	}
	addonCheck := CheckResult{
		Field:    "addons",
		Pass:     unapproved == 0,
		Expected: quote.Addons,
		Actual:   claim.Addons,
	}
	if unapproved > 0 {
		addonCheck.Notes = "Unapproved addons present"
	}
	report = append(report, addonCheck)

	report = append(report, CheckResult{
		Field:    "taxRate",
		Pass:     CompareAmounts(quote.TaxRate, claim.TaxRate, DefaultTolerance),
		Expected: amountSnapshot(quote.TaxRate),
		Actual:   claim.TaxRate,
	})
	report = append(report, CheckResult{
		Field:    "taxAmount",
		Pass:     CompareAmounts(quote.TaxAmount, claim.TaxAmount, TaxTolerance),
		Expected: amountSnapshot(quote.TaxAmount),
		Actual:   claim.TaxAmount,
		Notes:    fmt.Sprintf("Allowed tolerance $%s", TaxTolerance),
	})
	report = append(report, CheckResult{
		Field:    "otdTotal",
		Pass:     CompareAmounts(quote.OTDTotal, claim.OTDTotal, DefaultTolerance),
		Expected: amountSnapshot(quote.OTDTotal),
		Actual:   claim.OTDTotal,
	})

	return report
}

func mismatchNote(failures []string) string {
	if len(failures) == 0 {
		return ""
	}
	return "Mismatch: " + strings.Join(failures, ", ")
}
