package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"outthedoor/backend/internal/reconcile"
)

// Brief lifecycle statuses.
const (
	BriefStatusDraft       = "draft"
	BriefStatusSourcing    = "sourcing"
	BriefStatusQuoting     = "quoting"
	BriefStatusNegotiating = "negotiating"
	BriefStatusPurchase    = "purchase"
	BriefStatusCompleted   = "completed"
	BriefStatusArchived    = "archived"
)

// Quote lifecycle statuses.
const (
	QuoteStatusDraft     = "draft"
	QuoteStatusPublished = "published"
	QuoteStatusCountered = "countered"
	QuoteStatusAccepted  = "accepted"
	QuoteStatusRejected  = "rejected"
	QuoteStatusWithdrawn = "withdrawn"
)

// Contract statuses. A contract starts as uploaded and moves to checked_ok or
// mismatch after each diff run.
const (
	ContractStatusUploaded  = "uploaded"
	ContractStatusCheckedOK = "checked_ok"
	ContractStatusMismatch  = "mismatch"
)

// Quote line kinds.
const (
	LineKindFee       = "fee"
	LineKindIncentive = "incentive"
	LineKindAddon     = "addon"
)

// Quote sources.
const (
	QuoteSourceDealerForm = "dealer_form"
	QuoteSourceOpsIngest  = "ops_ingest"
)

// Timeline actors.
const (
	ActorBuyer  = "buyer"
	ActorDealer = "dealer"
	ActorOps    = "ops"
	ActorSystem = "system"
)

// Timeline event types.
const (
	EventBriefCreated     = "brief_created"
	EventDealersInvited   = "dealers_invited"
	EventQuoteSubmitted   = "quote_submitted"
	EventQuotePublished   = "quote_published"
	EventCounterSent      = "counter_sent"
	EventQuoteAccepted    = "quote_accepted"
	EventContractUploaded = "contract_uploaded"
	EventContractPass     = "contract_pass"
	EventContractMismatch = "contract_mismatch"
)

// Brief is a buyer's purchase brief owning quotes and timeline events.
type Brief struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	BuyerID     string          `gorm:"size:36;index" json:"buyer_id"`
	Status      string          `gorm:"size:32;index" json:"status"`
	Zipcode     string          `gorm:"size:16" json:"zipcode"`
	PaymentType string          `gorm:"size:16" json:"payment_type"`
	MaxOTD      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"max_otd"`
	MakesJSON   string          `gorm:"type:text" json:"-"`
	ModelsJSON  string          `gorm:"type:text" json:"-"`
	Quotes      []Quote         `gorm:"foreignKey:BriefID" json:"quotes,omitempty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// SetMakes stores the requested makes as JSON.
func (b *Brief) SetMakes(makes []string) {
	b.MakesJSON = marshalStrings(makes)
}

// Makes returns the decoded make list.
func (b *Brief) Makes() []string {
	return unmarshalStrings(b.MakesJSON)
}

// SetModels stores the requested models as JSON.
func (b *Brief) SetModels(models []string) {
	b.ModelsJSON = marshalStrings(models)
}

// Models returns the decoded model list.
func (b *Brief) Models() []string {
	return unmarshalStrings(b.ModelsJSON)
}

// Dealer is a dealership contact record.
type Dealer struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Name         string    `gorm:"size:128;index" json:"name"`
	City         string    `gorm:"size:64" json:"city"`
	State        string    `gorm:"size:8" json:"state"`
	ContactName  string    `gorm:"size:128" json:"contact_name"`
	ContactEmail string    `gorm:"size:128" json:"contact_email"`
	Phone        string    `gorm:"size:32" json:"phone"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Quote is the authoritative, ops-approved record of a dealer's offer. Pricing
// pointers are nil when the quote never recorded a figure for the field; the
// diff engine treats absence as "expected to be zero". Quotes are retained for
// audit and never deleted.
type Quote struct {
	ID             string           `gorm:"primaryKey;size:36" json:"id"`
	BriefID        string           `gorm:"size:36;index" json:"brief_id"`
	DealerID       string           `gorm:"size:36;index" json:"dealer_id"`
	Status         string           `gorm:"size:32;index" json:"status"`
	Source         string           `gorm:"size:32" json:"source"`
	Vin            string           `gorm:"size:32;index" json:"vin"`
	StockNumber    string           `gorm:"size:64" json:"stock_number"`
	Year           int              `json:"year"`
	Make           string           `gorm:"size:64" json:"make"`
	Model          string           `gorm:"size:64" json:"model"`
	Trim           string           `gorm:"size:64" json:"trim"`
	ExtColor       string           `gorm:"size:64" json:"ext_color"`
	IntColor       string           `gorm:"size:64" json:"int_color"`
	Msrp           *decimal.Decimal `gorm:"type:decimal(20,4)" json:"msrp"`
	DealerDiscount *decimal.Decimal `gorm:"type:decimal(20,4)" json:"dealer_discount"`
	DocFee         *decimal.Decimal `gorm:"type:decimal(20,4)" json:"doc_fee"`
	DmvFee         *decimal.Decimal `gorm:"type:decimal(20,4)" json:"dmv_fee"`
	TireBatteryFee *decimal.Decimal `gorm:"type:decimal(20,4)" json:"tire_battery_fee"`
	TaxRate        *decimal.Decimal `gorm:"type:decimal(10,6)" json:"tax_rate"`
	TaxAmount      *decimal.Decimal `gorm:"type:decimal(20,4)" json:"tax_amount"`
	OTDTotal       *decimal.Decimal `gorm:"type:decimal(20,4)" json:"otd_total"`
	// Submission attestations, retained so the score can be recomputed later.
	RequiresCreditPull  bool        `json:"requires_credit_pull"`
	HonorsAdvertisedVin bool        `json:"honors_advertised_vin"`
	ShadinessScore      int         `gorm:"default:0" json:"shadiness_score"`
	Lines               []QuoteLine `gorm:"foreignKey:QuoteID" json:"lines,omitempty"`
	Contract            *Contract   `gorm:"foreignKey:QuoteID" json:"contract,omitempty"`
	CreatedAt           time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// LinesOfKind filters the preloaded lines by kind, preserving order.
func (q *Quote) LinesOfKind(kind string) []QuoteLine {
	var out []QuoteLine
	for _, line := range q.Lines {
		if line.Kind == kind {
			out = append(out, line)
		}
	}
	return out
}

// QuoteLine is one itemized entry on a quote: a fee, an incentive, or an
// addon. IsOptional and ApprovedByBuyer only apply to addons.
type QuoteLine struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	QuoteID         string          `gorm:"size:36;index" json:"quote_id"`
	Kind            string          `gorm:"size:16;index" json:"kind"`
	Name            string          `gorm:"size:128" json:"name"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	IsOptional      bool            `json:"is_optional"`
	ApprovedByBuyer bool            `json:"approved_by_buyer"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Contract holds the latest diff check report for an accepted quote. One per
// quote; re-uploads reset the status, re-checks replace the report.
type Contract struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	QuoteID    string    `gorm:"size:36;uniqueIndex" json:"quote_id"`
	Status     string    `gorm:"size:32;index" json:"status"`
	ChecksJSON string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SetChecks persists the ordered check report as JSON.
func (c *Contract) SetChecks(report reconcile.Report) {
	if report == nil {
		c.ChecksJSON = "[]"
		return
	}
	payload, _ := json.Marshal(report)
	c.ChecksJSON = string(payload)
}

// Checks returns the decoded check report.
func (c *Contract) Checks() reconcile.Report {
	if strings.TrimSpace(c.ChecksJSON) == "" {
		return nil
	}
	var out reconcile.Report
	if err := json.Unmarshal([]byte(c.ChecksJSON), &out); err != nil {
		return nil
	}
	return out
}

// TimelineEvent is an append-only audit entry on a brief.
type TimelineEvent struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	BriefID     string    `gorm:"size:36;index" json:"brief_id"`
	QuoteID     *string   `gorm:"size:36;index" json:"quote_id,omitempty"`
	Type        string    `gorm:"size:32;index" json:"type"`
	Actor       string    `gorm:"size:16" json:"actor"`
	PayloadJSON string    `gorm:"type:text" json:"-"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// SetPayload stores the event payload as JSON.
func (e *TimelineEvent) SetPayload(payload any) {
	if payload == nil {
		e.PayloadJSON = "{}"
		return
	}
	data, _ := json.Marshal(payload)
	e.PayloadJSON = string(data)
}

// Payload returns the raw JSON payload for API responses.
func (e *TimelineEvent) Payload() json.RawMessage {
	if strings.TrimSpace(e.PayloadJSON) == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(e.PayloadJSON)
}

func marshalStrings(values []string) string {
	if values == nil {
		return "[]"
	}
	payload, _ := json.Marshal(values)
	return string(payload)
}

func unmarshalStrings(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
