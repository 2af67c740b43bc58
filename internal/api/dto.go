package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"outthedoor/backend/internal/reconcile"
	"outthedoor/backend/internal/scoring"
	"outthedoor/backend/internal/store"
)

// BriefRequest creates a buyer purchase brief.
type BriefRequest struct {
	BuyerID     string          `json:"buyer_id" binding:"required"`
	Zipcode     string          `json:"zipcode" binding:"required,min=5,max=10"`
	PaymentType string          `json:"payment_type" binding:"required,oneof=cash finance lease"`
	MaxOTD      decimal.Decimal `json:"max_otd"`
	Makes       []string        `json:"makes" binding:"required,min=1"`
	Models      []string        `json:"models"`
}

// Validate covers the constraints binding tags cannot express.
func (r *BriefRequest) Validate() error {
	if r.MaxOTD.IsNegative() {
		return fmt.Errorf("max_otd must not be negative")
	}
	return nil
}

// InviteRequest asks named dealers to quote on a brief.
type InviteRequest struct {
	DealerIDs []string `json:"dealer_ids" binding:"required,min=1"`
}

// DealerRequest registers a dealership contact.
type DealerRequest struct {
	Name         string `json:"name" binding:"required"`
	City         string `json:"city"`
	State        string `json:"state" binding:"omitempty,len=2"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email" binding:"omitempty,email"`
	Phone        string `json:"phone"`
}

// LineDTO is a named amount on a submission.
type LineDTO struct {
	Name   string          `json:"name" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// AddonDTO is a dealer addon line on a submission.
type AddonDTO struct {
	Name       string          `json:"name" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
	IsOptional bool            `json:"is_optional"`
}

// ConfirmationsDTO carries the dealer's submission attestations.
type ConfirmationsDTO struct {
	NoUnapprovedAddons bool `json:"no_unapproved_addons"`
	IncentivesVerified bool `json:"incentives_verified"`
	OTDIncludesAllFees bool `json:"otd_includes_all_fees"`
}

// QuoteSubmitRequest is a dealer's quote form payload.
type QuoteSubmitRequest struct {
	DealerID       string           `json:"dealer_id" binding:"required"`
	Source         string           `json:"source" binding:"omitempty,oneof=dealer_form ops_ingest"`
	Vin            string           `json:"vin" binding:"required,min=6,max=17,vin"`
	StockNumber    string           `json:"stock_number"`
	Year           int              `json:"year" binding:"required,gte=1990,lte=2100"`
	Make           string           `json:"make" binding:"required"`
	Model          string           `json:"model" binding:"required"`
	Trim           string           `json:"trim"`
	ExtColor       string           `json:"ext_color"`
	IntColor       string           `json:"int_color"`
	Msrp           decimal.Decimal  `json:"msrp"`
	DealerDiscount decimal.Decimal  `json:"dealer_discount"`
	DocFee         decimal.Decimal  `json:"doc_fee"`
	DmvFee         decimal.Decimal  `json:"dmv_fee"`
	TireBatteryFee decimal.Decimal  `json:"tire_battery_fee"`
	OtherFees      []LineDTO        `json:"other_fees" binding:"omitempty,dive"`
	Incentives     []LineDTO        `json:"incentives" binding:"omitempty,dive"`
	Addons         []AddonDTO       `json:"addons" binding:"omitempty,dive"`
	TaxRate        decimal.Decimal  `json:"tax_rate"`
	TaxAmount      decimal.Decimal  `json:"tax_amount"`
	OTDTotal       decimal.Decimal  `json:"otd_total"`
	Confirmations  ConfirmationsDTO `json:"confirmations"`

	RequiresCreditPullForCash bool `json:"requires_credit_pull_for_cash"`
	HonorsAdvertisedVinPrice  bool `json:"honors_advertised_vin_price"`
}

// Validate enforces the money and rate constraints binding tags cannot.
func (r *QuoteSubmitRequest) Validate() error {
	nonNegative := map[string]decimal.Decimal{
		"msrp":             r.Msrp,
		"doc_fee":          r.DocFee,
		"dmv_fee":          r.DmvFee,
		"tire_battery_fee": r.TireBatteryFee,
		"tax_amount":       r.TaxAmount,
		"otd_total":        r.OTDTotal,
	}
	for field, amount := range nonNegative {
		if amount.IsNegative() {
			return fmt.Errorf("%s must not be negative", field)
		}
	}
	if r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax_rate must be between 0 and 1")
	}
	for _, fee := range r.OtherFees {
		if fee.Amount.IsNegative() {
			return fmt.Errorf("fee %q must not be negative", fee.Name)
		}
	}
	for _, addon := range r.Addons {
		if addon.Amount.IsNegative() {
			return fmt.Errorf("addon %q must not be negative", addon.Name)
		}
	}
	return nil
}

// Input converts the request into the scoring engine's submission shape.
func (r *QuoteSubmitRequest) Input() scoring.DealerQuoteInput {
	input := scoring.DealerQuoteInput{
		Vin:            r.Vin,
		StockNumber:    r.StockNumber,
		Year:           r.Year,
		Make:           r.Make,
		Model:          r.Model,
		Trim:           r.Trim,
		ExtColor:       r.ExtColor,
		IntColor:       r.IntColor,
		Msrp:           r.Msrp,
		DealerDiscount: r.DealerDiscount,
		DocFee:         r.DocFee,
		DmvFee:         r.DmvFee,
		TireBatteryFee: r.TireBatteryFee,
		TaxRate:        r.TaxRate,
		TaxAmount:      r.TaxAmount,
		OTDTotal:       r.OTDTotal,
		Confirmations: scoring.Confirmations{
			NoUnapprovedAddons: r.Confirmations.NoUnapprovedAddons,
			IncentivesVerified: r.Confirmations.IncentivesVerified,
			OTDIncludesAllFees: r.Confirmations.OTDIncludesAllFees,
		},
		RequiresCreditPullForCash: r.RequiresCreditPullForCash,
		HonorsAdvertisedVinPrice:  r.HonorsAdvertisedVinPrice,
	}
	for _, fee := range r.OtherFees {
		input.OtherFees = append(input.OtherFees, scoring.LineInput{Name: fee.Name, Amount: fee.Amount})
	}
	for _, inc := range r.Incentives {
		input.Incentives = append(input.Incentives, scoring.LineInput{Name: inc.Name, Amount: inc.Amount})
	}
	for _, addon := range r.Addons {
		input.Addons = append(input.Addons, scoring.AddonInput{Name: addon.Name, Amount: addon.Amount, IsOptional: addon.IsOptional})
	}
	return input
}

// CounterRequestDTO carries the buyer's counter terms.
type CounterRequestDTO struct {
	Type       string          `json:"type" binding:"required,oneof=remove_addons match_target"`
	AddonNames []string        `json:"addon_names"`
	TargetOTD  decimal.Decimal `json:"target_otd"`
}

// ContractCheckRequest is the contract claim submitted for verification.
type ContractCheckRequest struct {
	Vin            string          `json:"vin" binding:"required,min=6,max=17,vin"`
	Year           int             `json:"year" binding:"required,gte=1990,lte=2100"`
	Make           string          `json:"make" binding:"required"`
	Model          string          `json:"model" binding:"required"`
	Trim           string          `json:"trim"`
	Msrp           decimal.Decimal `json:"msrp"`
	DealerDiscount decimal.Decimal `json:"dealer_discount"`
	Incentives     []LineDTO       `json:"incentives" binding:"omitempty,dive"`
	DocFee         decimal.Decimal `json:"doc_fee"`
	DmvFee         decimal.Decimal `json:"dmv_fee"`
	TireBatteryFee decimal.Decimal `json:"tire_battery_fee"`
	OtherFees      []LineDTO       `json:"other_fees" binding:"omitempty,dive"`
	Addons         []ContractAddon `json:"addons" binding:"omitempty,dive"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	OTDTotal       decimal.Decimal `json:"otd_total"`
}

// Validate enforces the money and rate constraints binding tags cannot.
func (r *ContractCheckRequest) Validate() error {
	nonNegative := map[string]decimal.Decimal{
		"msrp":             r.Msrp,
		"doc_fee":          r.DocFee,
		"dmv_fee":          r.DmvFee,
		"tire_battery_fee": r.TireBatteryFee,
		"tax_amount":       r.TaxAmount,
		"otd_total":        r.OTDTotal,
	}
	for field, amount := range nonNegative {
		if amount.IsNegative() {
			return fmt.Errorf("%s must not be negative", field)
		}
	}
	if r.TaxRate.IsNegative() || r.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("tax_rate must be between 0 and 1")
	}
	for _, fee := range r.OtherFees {
		if fee.Amount.IsNegative() {
			return fmt.Errorf("fee %q must not be negative", fee.Name)
		}
	}
	for _, addon := range r.Addons {
		if addon.Amount.IsNegative() {
			return fmt.Errorf("addon %q must not be negative", addon.Name)
		}
	}
	return nil
}

// ContractAddon is an addon line as printed on the contract.
type ContractAddon struct {
	Name            string          `json:"name" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	ApprovedByBuyer bool            `json:"approved_by_buyer"`
}

// Claim converts the request into the diff engine's claim shape.
func (r *ContractCheckRequest) Claim() reconcile.ContractClaim {
	claim := reconcile.ContractClaim{
		Vin:            r.Vin,
		Year:           r.Year,
		Make:           r.Make,
		Model:          r.Model,
		Trim:           r.Trim,
		Msrp:           r.Msrp,
		DealerDiscount: r.DealerDiscount,
		Fees: reconcile.ClaimedFees{
			DocFee:         r.DocFee,
			DmvFee:         r.DmvFee,
			TireBatteryFee: r.TireBatteryFee,
		},
		TaxRate:   r.TaxRate,
		TaxAmount: r.TaxAmount,
		OTDTotal:  r.OTDTotal,
	}
	for _, inc := range r.Incentives {
		claim.Incentives = append(claim.Incentives, reconcile.LineItem{Name: inc.Name, Amount: inc.Amount})
	}
	for _, fee := range r.OtherFees {
		claim.Fees.OtherFees = append(claim.Fees.OtherFees, reconcile.LineItem{Name: fee.Name, Amount: fee.Amount})
	}
	for _, addon := range r.Addons {
		claim.Addons = append(claim.Addons, reconcile.ClaimedAddon{
			Name:            addon.Name,
			Amount:          addon.Amount,
			ApprovedByBuyer: addon.ApprovedByBuyer,
		})
	}
	return claim
}

// BriefDTO is the API representation of a brief.
type BriefDTO struct {
	ID          string          `json:"id"`
	BuyerID     string          `json:"buyer_id"`
	Status      string          `json:"status"`
	Zipcode     string          `json:"zipcode"`
	PaymentType string          `json:"payment_type"`
	MaxOTD      decimal.Decimal `json:"max_otd"`
	Makes       []string        `json:"makes"`
	Models      []string        `json:"models"`
	Quotes      []QuoteDTO      `json:"quotes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// BriefFromModel maps a stored brief, including any preloaded quotes.
func BriefFromModel(brief *store.Brief) BriefDTO {
	dto := BriefDTO{
		ID:          brief.ID,
		BuyerID:     brief.BuyerID,
		Status:      brief.Status,
		Zipcode:     brief.Zipcode,
		PaymentType: brief.PaymentType,
		MaxOTD:      brief.MaxOTD,
		Makes:       brief.Makes(),
		Models:      brief.Models(),
		CreatedAt:   brief.CreatedAt,
	}
	for i := range brief.Quotes {
		dto.Quotes = append(dto.Quotes, QuoteFromModel(&brief.Quotes[i]))
	}
	return dto
}

// QuoteLineDTO is an itemized quote entry.
type QuoteLineDTO struct {
	Kind            string          `json:"kind"`
	Name            string          `json:"name"`
	Amount          decimal.Decimal `json:"amount"`
	IsOptional      bool            `json:"is_optional,omitempty"`
	ApprovedByBuyer bool            `json:"approved_by_buyer,omitempty"`
}

// QuoteDTO is the API representation of a quote.
type QuoteDTO struct {
	ID             string           `json:"id"`
	BriefID        string           `json:"brief_id"`
	DealerID       string           `json:"dealer_id"`
	Status         string           `json:"status"`
	Source         string           `json:"source"`
	Vin            string           `json:"vin"`
	StockNumber    string           `json:"stock_number,omitempty"`
	Year           int              `json:"year"`
	Make           string           `json:"make"`
	Model          string           `json:"model"`
	Trim           string           `json:"trim,omitempty"`
	ExtColor       string           `json:"ext_color,omitempty"`
	IntColor       string           `json:"int_color,omitempty"`
	Msrp           *decimal.Decimal `json:"msrp"`
	DealerDiscount *decimal.Decimal `json:"dealer_discount"`
	DocFee         *decimal.Decimal `json:"doc_fee"`
	DmvFee         *decimal.Decimal `json:"dmv_fee"`
	TireBatteryFee *decimal.Decimal `json:"tire_battery_fee"`
	TaxRate        *decimal.Decimal `json:"tax_rate"`
	TaxAmount      *decimal.Decimal `json:"tax_amount"`
	OTDTotal       *decimal.Decimal `json:"otd_total"`
	ShadinessScore int              `json:"shadiness_score"`
	ShadinessLevel string           `json:"shadiness_level"`
	Lines          []QuoteLineDTO   `json:"lines,omitempty"`
	Contract       *ContractDTO     `json:"contract,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// QuoteFromModel maps a stored quote with its lines and contract.
func QuoteFromModel(quote *store.Quote) QuoteDTO {
	dto := QuoteDTO{
		ID:             quote.ID,
		BriefID:        quote.BriefID,
		DealerID:       quote.DealerID,
		Status:         quote.Status,
		Source:         quote.Source,
		Vin:            quote.Vin,
		StockNumber:    quote.StockNumber,
		Year:           quote.Year,
		Make:           quote.Make,
		Model:          quote.Model,
		Trim:           quote.Trim,
		ExtColor:       quote.ExtColor,
		IntColor:       quote.IntColor,
		Msrp:           quote.Msrp,
		DealerDiscount: quote.DealerDiscount,
		DocFee:         quote.DocFee,
		DmvFee:         quote.DmvFee,
		TireBatteryFee: quote.TireBatteryFee,
		TaxRate:        quote.TaxRate,
		TaxAmount:      quote.TaxAmount,
		OTDTotal:       quote.OTDTotal,
		ShadinessScore: quote.ShadinessScore,
		ShadinessLevel: scoring.Level(quote.ShadinessScore),
		CreatedAt:      quote.CreatedAt,
	}
	for _, line := range quote.Lines {
		dto.Lines = append(dto.Lines, QuoteLineDTO{
			Kind:            line.Kind,
			Name:            line.Name,
			Amount:          line.Amount,
			IsOptional:      line.IsOptional,
			ApprovedByBuyer: line.ApprovedByBuyer,
		})
	}
	if quote.Contract != nil {
		contract := ContractFromModel(quote.Contract)
		dto.Contract = &contract
	}
	return dto
}

// ContractDTO is the API representation of a contract and its latest report.
type ContractDTO struct {
	ID        string           `json:"id"`
	QuoteID   string           `json:"quote_id"`
	Status    string           `json:"status"`
	Checks    reconcile.Report `json:"checks"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ContractFromModel maps a stored contract.
func ContractFromModel(contract *store.Contract) ContractDTO {
	return ContractDTO{
		ID:        contract.ID,
		QuoteID:   contract.QuoteID,
		Status:    contract.Status,
		Checks:    contract.Checks(),
		CreatedAt: contract.CreatedAt,
		UpdatedAt: contract.UpdatedAt,
	}
}

// DealerDTO is the API representation of a dealer.
type DealerDTO struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state,omitempty"`
	ContactName  string    `json:"contact_name,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DealerFromModel maps a stored dealer.
func DealerFromModel(dealer *store.Dealer) DealerDTO {
	return DealerDTO{
		ID:           dealer.ID,
		Name:         dealer.Name,
		City:         dealer.City,
		State:        dealer.State,
		ContactName:  dealer.ContactName,
		ContactEmail: dealer.ContactEmail,
		Phone:        dealer.Phone,
		CreatedAt:    dealer.CreatedAt,
	}
}

// TimelineEventDTO is one audit entry on a brief.
type TimelineEventDTO struct {
	ID        uint            `json:"id"`
	QuoteID   *string         `json:"quote_id,omitempty"`
	Type      string          `json:"type"`
	Actor     string          `json:"actor"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// TimelineFromModel maps stored timeline events.
func TimelineFromModel(events []store.TimelineEvent) []TimelineEventDTO {
	dtos := make([]TimelineEventDTO, 0, len(events))
	for i := range events {
		event := &events[i]
		dtos = append(dtos, TimelineEventDTO{
			ID:        event.ID,
			QuoteID:   event.QuoteID,
			Type:      event.Type,
			Actor:     event.Actor,
			Payload:   event.Payload(),
			CreatedAt: event.CreatedAt,
		})
	}
	return dtos
}
