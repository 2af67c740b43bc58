// Package contracts verifies signed purchase contracts against the quotes
// they were written from.
package contracts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"outthedoor/backend/internal/notify"
	"outthedoor/backend/internal/reconcile"
	"outthedoor/backend/internal/scoring"
	"outthedoor/backend/internal/store"
	"outthedoor/backend/internal/timeline"
	"outthedoor/backend/internal/util"
)

var (
	// ErrNotFound reports a missing quote or contract.
	ErrNotFound = errors.New("record not found")
	// ErrPrecondition reports an operation attempted in the wrong lifecycle
	// state, such as uploading a contract for a quote that was never accepted.
	ErrPrecondition = errors.New("precondition failed")
)

// Service owns the contract lifecycle: upload, diff, status transitions and
// the trust-score reward for a clean contract.
type Service struct {
	db         *store.Database
	events     *timeline.Recorder
	mailer     notify.Mailer
	locker     Locker
	appBaseURL string
}

// NewService builds the contract service. rdb may be nil; disputes are then
// serialized with an in-process lock, which is only safe for a single replica.
// mailer may be nil to disable mismatch notifications.
func NewService(db *store.Database, events *timeline.Recorder, mailer notify.Mailer, rdb *redis.Client, appBaseURL string) *Service {
	var locker Locker
	if rdb != nil {
		locker = newRedisLocker(rdb)
	} else {
		locker = newMutexLocker()
	}
	return &Service{
		db:         db,
		events:     events,
		mailer:     mailer,
		locker:     locker,
		appBaseURL: appBaseURL,
	}
}

// Upload registers a signed contract for an accepted quote. Re-uploading
// resets the existing contract to uploaded and clears the previous report; the
// quote keeps any reward it already earned until the next check overwrites the
// status.
func (s *Service) Upload(ctx context.Context, quoteID string) (*store.Contract, error) {
	quote, err := s.db.GetQuote(quoteID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: quote %s", ErrNotFound, quoteID)
		}
		return nil, err
	}
	if quote.Status != store.QuoteStatusAccepted {
		return nil, fmt.Errorf("%w: quote %s is %s, contracts require an accepted quote", ErrPrecondition, quoteID, quote.Status)
	}

	contract := quote.Contract
	if contract != nil {
		contract.Status = store.ContractStatusUploaded
		contract.SetChecks(nil)
		if err := s.db.SaveContract(contract); err != nil {
			return nil, fmt.Errorf("reset contract: %w", err)
		}
	} else {
		contract = &store.Contract{
			ID:      uuid.NewString(),
			QuoteID: quote.ID,
			Status:  store.ContractStatusUploaded,
		}
		contract.SetChecks(nil)
		if err := s.db.CreateContract(contract); err != nil {
			return nil, fmt.Errorf("create contract: %w", err)
		}
	}

	s.events.Record(quote.BriefID, store.EventContractUploaded, store.ActorDealer, map[string]any{
		"contract_id": contract.ID,
	}, quote.ID)

	logrus.WithFields(logrus.Fields{
		"contract_id": contract.ID,
		"quote_id":    quote.ID,
	}).Info("contract uploaded")
	return contract, nil
}

// Check diffs a contract claim against its quote and persists the outcome.
// The status update, report and any score reward commit atomically. The pass
// reward applies only on the transition into checked_ok, so re-running a
// passing check never compounds it.
func (s *Service) Check(ctx context.Context, contractID string, claim reconcile.ContractClaim) (*store.Contract, error) {
	timer := util.StartTimer()
	release, err := s.locker.Acquire(ctx, contractID)
	if err != nil {
		return nil, err
	}
	defer release()

	contract, err := s.db.GetContract(contractID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: contract %s", ErrNotFound, contractID)
		}
		return nil, err
	}
	quote, err := s.db.GetQuote(contract.QuoteID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: quote %s", ErrNotFound, contract.QuoteID)
		}
		return nil, err
	}

	report := reconcile.BuildReport(QuoteFigures(quote), claim)
	allPass := report.AllPass()

	wasOK := contract.Status == store.ContractStatusCheckedOK
	newStatus := store.ContractStatusMismatch
	if allPass {
		newStatus = store.ContractStatusCheckedOK
	}
	contract.Status = newStatus
	contract.SetChecks(report)

	rewarded := allPass && !wasOK
	newScore := quote.ShadinessScore
	if rewarded {
		newScore = scoring.ApplyContractPassReward(quote.ShadinessScore)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(contract).Error; err != nil {
			return fmt.Errorf("save contract: %w", err)
		}
		if rewarded {
			if err := tx.Model(&store.Quote{}).Where("id = ?", quote.ID).
				Update("shadiness_score", newScore).Error; err != nil {
				return fmt.Errorf("apply pass reward: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	quote.ShadinessScore = newScore

	eventType := store.EventContractMismatch
	if allPass {
		eventType = store.EventContractPass
	}
	s.events.Record(quote.BriefID, eventType, store.ActorSystem, map[string]any{
		"contract_id": contract.ID,
		"checks":      report,
	}, quote.ID)

	logrus.WithFields(logrus.Fields{
		"contract_id": contract.ID,
		"quote_id":    quote.ID,
		"status":      newStatus,
		"rewarded":    rewarded,
		"duration_ms": timer.ElapsedMs(),
	}).Info("contract checked")

	if !allPass {
		s.notifyMismatch(quote, report.Failing())
	}
	return contract, nil
}

// CheckContract satisfies the diff queue's checker contract.
func (s *Service) CheckContract(ctx context.Context, contractID string, claim reconcile.ContractClaim) error {
	_, err := s.Check(ctx, contractID, claim)
	return err
}

func (s *Service) notifyMismatch(quote *store.Quote, failing reconcile.Report) {
	if s.mailer == nil {
		return
	}
	dealer, err := s.db.GetDealer(quote.DealerID)
	if err != nil {
		logrus.WithError(err).WithField("quote_id", quote.ID).Warn("load dealer for mismatch notice")
		return
	}
	if dealer.ContactEmail == "" {
		return
	}

	msg := notify.ContractMismatch(
		dealer.ContactEmail,
		dealer.Name,
		QuoteSummary(quote),
		failing,
		fmt.Sprintf("%s/quotes/%s", s.appBaseURL, quote.ID),
	)
	go func() {
		if err := s.mailer.Send(context.Background(), msg); err != nil {
			logrus.WithError(err).WithField("quote_id", quote.ID).Warn("send mismatch notice")
		}
	}()
}

// QuoteFigures projects a stored quote into the diff engine's input shape.
func QuoteFigures(q *store.Quote) reconcile.QuoteFigures {
	figures := reconcile.QuoteFigures{
		Vin:            q.Vin,
		Year:           q.Year,
		Make:           q.Make,
		Model:          q.Model,
		Trim:           q.Trim,
		Msrp:           q.Msrp,
		DealerDiscount: q.DealerDiscount,
		DocFee:         q.DocFee,
		DmvFee:         q.DmvFee,
		TireBatteryFee: q.TireBatteryFee,
		TaxRate:        q.TaxRate,
		TaxAmount:      q.TaxAmount,
		OTDTotal:       q.OTDTotal,
	}
	for _, line := range q.LinesOfKind(store.LineKindIncentive) {
		figures.Incentives = append(figures.Incentives, reconcile.LineItem{Name: line.Name, Amount: line.Amount})
	}
	for _, line := range q.LinesOfKind(store.LineKindFee) {
		figures.FeeLines = append(figures.FeeLines, reconcile.LineItem{Name: line.Name, Amount: line.Amount})
	}
	for _, line := range q.LinesOfKind(store.LineKindAddon) {
		figures.Addons = append(figures.Addons, reconcile.AddonLine{Name: line.Name, ApprovedByBuyer: line.ApprovedByBuyer})
	}
	return figures
}

// QuoteSummary renders a short human-readable vehicle description.
func QuoteSummary(q *store.Quote) string {
	summary := fmt.Sprintf("%d %s %s", q.Year, q.Make, q.Model)
	if q.Trim != "" {
		summary += " " + q.Trim
	}
	return summary
}
