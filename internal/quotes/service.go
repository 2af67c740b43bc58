// Package quotes manages dealer quote submissions and their lifecycle up to
// acceptance.
package quotes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"outthedoor/backend/internal/notify"
	"outthedoor/backend/internal/scoring"
	"outthedoor/backend/internal/store"
	"outthedoor/backend/internal/timeline"
)

var (
	// ErrNotFound reports a missing brief, dealer or quote.
	ErrNotFound = errors.New("record not found")
	// ErrPrecondition reports a lifecycle transition from the wrong status.
	ErrPrecondition = errors.New("precondition failed")
)

// Counter types.
const (
	CounterRemoveAddons = "remove_addons"
	CounterMatchTarget  = "match_target"
)

// CounterRequest asks the dealer to revise a published quote.
type CounterRequest struct {
	Type       string
	AddonNames []string
	TargetOTD  decimal.Decimal
}

// Service owns quote state transitions and trust scoring on the way in.
type Service struct {
	db         *store.Database
	events     *timeline.Recorder
	mailer     notify.Mailer
	appBaseURL string
}

// NewService builds the quote service. mailer may be nil to disable counter
// notifications.
func NewService(db *store.Database, events *timeline.Recorder, mailer notify.Mailer, appBaseURL string) *Service {
	return &Service{db: db, events: events, mailer: mailer, appBaseURL: appBaseURL}
}

// Submit records a dealer's quote against a brief as a draft pending ops
// review. The shadiness score is computed from the raw submission and stored
// with the quote.
func (s *Service) Submit(ctx context.Context, briefID, dealerID, source string, input scoring.DealerQuoteInput) (*store.Quote, error) {
	brief, err := s.db.GetBrief(briefID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: brief %s", ErrNotFound, briefID)
		}
		return nil, err
	}
	if brief.Status == store.BriefStatusCompleted || brief.Status == store.BriefStatusArchived {
		return nil, fmt.Errorf("%w: brief %s is %s and no longer accepts quotes", ErrPrecondition, briefID, brief.Status)
	}
	if _, err := s.db.GetDealer(dealerID); err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: dealer %s", ErrNotFound, dealerID)
		}
		return nil, err
	}
	if source == "" {
		source = store.QuoteSourceDealerForm
	}

	quote := &store.Quote{
		ID:             uuid.NewString(),
		BriefID:        briefID,
		DealerID:       dealerID,
		Status:         store.QuoteStatusDraft,
		Source:         source,
		Vin:            input.Vin,
		StockNumber:    input.StockNumber,
		Year:           input.Year,
		Make:           input.Make,
		Model:          input.Model,
		Trim:           input.Trim,
		ExtColor:       input.ExtColor,
		IntColor:       input.IntColor,
		Msrp:           amountPtr(input.Msrp),
		DealerDiscount: amountPtr(input.DealerDiscount),
		DocFee:         amountPtr(input.DocFee),
		DmvFee:         amountPtr(input.DmvFee),
		TireBatteryFee: amountPtr(input.TireBatteryFee),
		TaxRate:        amountPtr(input.TaxRate),
		TaxAmount:      amountPtr(input.TaxAmount),
		OTDTotal:       amountPtr(input.OTDTotal),

		RequiresCreditPull:  input.RequiresCreditPullForCash,
		HonorsAdvertisedVin: input.HonorsAdvertisedVinPrice,
		ShadinessScore:      scoring.CalculateShadinessScore(input),

		Lines: buildLines(input),
	}
	if err := s.db.CreateQuote(quote); err != nil {
		return nil, fmt.Errorf("create quote: %w", err)
	}

	if brief.Status == store.BriefStatusSourcing {
		if err := s.db.UpdateBriefStatus(briefID, store.BriefStatusQuoting); err != nil {
			logrus.WithError(err).WithField("brief_id", briefID).Warn("advance brief to quoting")
		}
	}

	s.events.Record(briefID, store.EventQuoteSubmitted, store.ActorDealer, map[string]any{
		"dealer_id":       dealerID,
		"vin":             quote.Vin,
		"shadiness_score": quote.ShadinessScore,
	}, quote.ID)

	logrus.WithFields(logrus.Fields{
		"quote_id":        quote.ID,
		"brief_id":        briefID,
		"dealer_id":       dealerID,
		"shadiness_score": quote.ShadinessScore,
	}).Info("quote submitted")
	return quote, nil
}

// Publish makes a reviewed draft visible to the buyer. The score is recomputed
// from the stored quote in case ops edited lines during review.
func (s *Service) Publish(ctx context.Context, quoteID string) (*store.Quote, error) {
	quote, err := s.get(quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status != store.QuoteStatusDraft {
		return nil, fmt.Errorf("%w: quote %s is %s, only drafts can be published", ErrPrecondition, quoteID, quote.Status)
	}

	if score := scoring.CalculateShadinessScore(Rescore(quote)); score != quote.ShadinessScore {
		if err := s.db.UpdateQuoteScore(quoteID, score); err != nil {
			return nil, fmt.Errorf("update score: %w", err)
		}
		quote.ShadinessScore = score
	}
	if err := s.db.UpdateQuoteStatus(quoteID, store.QuoteStatusPublished); err != nil {
		return nil, err
	}
	quote.Status = store.QuoteStatusPublished

	s.events.Record(quote.BriefID, store.EventQuotePublished, store.ActorOps, map[string]any{
		"shadiness_score": quote.ShadinessScore,
		"shadiness_level": scoring.Level(quote.ShadinessScore),
	}, quote.ID)
	return quote, nil
}

// Accept locks in a published or countered quote and moves the brief into the
// purchase stage. Contract upload becomes available from here.
func (s *Service) Accept(ctx context.Context, quoteID string) (*store.Quote, error) {
	quote, err := s.get(quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status != store.QuoteStatusPublished && quote.Status != store.QuoteStatusCountered {
		return nil, fmt.Errorf("%w: quote %s is %s, only published or countered quotes can be accepted", ErrPrecondition, quoteID, quote.Status)
	}

	if err := s.db.UpdateQuoteStatus(quoteID, store.QuoteStatusAccepted); err != nil {
		return nil, err
	}
	quote.Status = store.QuoteStatusAccepted
	if err := s.db.UpdateBriefStatus(quote.BriefID, store.BriefStatusPurchase); err != nil {
		logrus.WithError(err).WithField("brief_id", quote.BriefID).Warn("advance brief to purchase")
	}

	s.events.Record(quote.BriefID, store.EventQuoteAccepted, store.ActorBuyer, map[string]any{
		"dealer_id": quote.DealerID,
		"vin":       quote.Vin,
	}, quote.ID)

	logrus.WithFields(logrus.Fields{
		"quote_id": quote.ID,
		"brief_id": quote.BriefID,
	}).Info("quote accepted")
	return quote, nil
}

// Counter sends the buyer's counter terms back to the dealer and marks the
// quote countered. A countered quote can still be accepted as-is.
func (s *Service) Counter(ctx context.Context, quoteID string, req CounterRequest) (*store.Quote, error) {
	if req.Type != CounterRemoveAddons && req.Type != CounterMatchTarget {
		return nil, fmt.Errorf("%w: unknown counter type %q", ErrPrecondition, req.Type)
	}
	quote, err := s.get(quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Status != store.QuoteStatusPublished {
		return nil, fmt.Errorf("%w: quote %s is %s, only published quotes can be countered", ErrPrecondition, quoteID, quote.Status)
	}

	if err := s.db.UpdateQuoteStatus(quoteID, store.QuoteStatusCountered); err != nil {
		return nil, err
	}
	quote.Status = store.QuoteStatusCountered

	payload := map[string]any{"counter_type": req.Type}
	if req.Type == CounterRemoveAddons {
		payload["addon_names"] = req.AddonNames
	} else {
		payload["target_otd"] = req.TargetOTD
	}
	s.events.Record(quote.BriefID, store.EventCounterSent, store.ActorBuyer, payload, quote.ID)

	s.notifyCounter(quote, req)
	return quote, nil
}

func (s *Service) get(quoteID string) (*store.Quote, error) {
	quote, err := s.db.GetQuote(quoteID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: quote %s", ErrNotFound, quoteID)
		}
		return nil, err
	}
	return quote, nil
}

func (s *Service) notifyCounter(quote *store.Quote, req CounterRequest) {
	if s.mailer == nil {
		return
	}
	dealer, err := s.db.GetDealer(quote.DealerID)
	if err != nil || dealer.ContactEmail == "" {
		if err != nil {
			logrus.WithError(err).WithField("quote_id", quote.ID).Warn("load dealer for counter notice")
		}
		return
	}

	summary := fmt.Sprintf("%d %s %s", quote.Year, quote.Make, quote.Model)
	if quote.Trim != "" {
		summary += " " + quote.Trim
	}
	link := fmt.Sprintf("%s/quotes/%s", s.appBaseURL, quote.ID)

	var msg notify.Message
	if req.Type == CounterRemoveAddons {
		msg = notify.CounterAddonRemoval(dealer.ContactEmail, dealer.Name, summary, req.AddonNames, link)
	} else {
		msg = notify.CounterMatchTarget(dealer.ContactEmail, dealer.Name, summary, req.TargetOTD, link)
	}
	go func() {
		if err := s.mailer.Send(context.Background(), msg); err != nil {
			logrus.WithError(err).WithField("quote_id", quote.ID).Warn("send counter notice")
		}
	}()
}

// Rescore rebuilds the scorer input from a stored quote and its lines.
func Rescore(q *store.Quote) scoring.DealerQuoteInput {
	input := scoring.DealerQuoteInput{
		Vin:                       q.Vin,
		StockNumber:               q.StockNumber,
		Year:                      q.Year,
		Make:                      q.Make,
		Model:                     q.Model,
		Trim:                      q.Trim,
		Msrp:                      orZero(q.Msrp),
		DealerDiscount:            orZero(q.DealerDiscount),
		DocFee:                    orZero(q.DocFee),
		DmvFee:                    orZero(q.DmvFee),
		TireBatteryFee:            orZero(q.TireBatteryFee),
		TaxRate:                   orZero(q.TaxRate),
		TaxAmount:                 orZero(q.TaxAmount),
		OTDTotal:                  orZero(q.OTDTotal),
		RequiresCreditPullForCash: q.RequiresCreditPull,
		HonorsAdvertisedVinPrice:  q.HonorsAdvertisedVin,
	}
	for _, line := range q.LinesOfKind(store.LineKindFee) {
		input.OtherFees = append(input.OtherFees, scoring.LineInput{Name: line.Name, Amount: line.Amount})
	}
	for _, line := range q.LinesOfKind(store.LineKindIncentive) {
		input.Incentives = append(input.Incentives, scoring.LineInput{Name: line.Name, Amount: line.Amount})
	}
	for _, line := range q.LinesOfKind(store.LineKindAddon) {
		input.Addons = append(input.Addons, scoring.AddonInput{Name: line.Name, Amount: line.Amount, IsOptional: line.IsOptional})
	}
	return input
}

func orZero(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}

func buildLines(input scoring.DealerQuoteInput) []store.QuoteLine {
	var lines []store.QuoteLine
	for _, fee := range input.OtherFees {
		lines = append(lines, store.QuoteLine{
			Kind:   store.LineKindFee,
			Name:   fee.Name,
			Amount: fee.Amount,
		})
	}
	for _, inc := range input.Incentives {
		lines = append(lines, store.QuoteLine{
			Kind:   store.LineKindIncentive,
			Name:   inc.Name,
			Amount: inc.Amount,
		})
	}
	for _, addon := range input.Addons {
		lines = append(lines, store.QuoteLine{
			Kind:       store.LineKindAddon,
			Name:       addon.Name,
			Amount:     addon.Amount,
			IsOptional: addon.IsOptional,
			// Optional addons are treated as buyer-approved at submission;
			// forced addons stay unapproved until the buyer signs off.
			ApprovedByBuyer: addon.IsOptional,
		})
	}
	return lines
}

func amountPtr(v decimal.Decimal) *decimal.Decimal {
	return &v
}
