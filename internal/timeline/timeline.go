// Package timeline appends audit events to a brief's activity feed.
package timeline

import (
	"github.com/sirupsen/logrus"

	"outthedoor/backend/internal/store"
)

// Recorder appends timeline events. Recording is fire-and-forget: a failed
// append is logged and never propagated, so it cannot affect the operation
// that produced the event.
type Recorder struct {
	db *store.Database
}

// NewRecorder constructs a recorder over the store.
func NewRecorder(db *store.Database) *Recorder {
	return &Recorder{db: db}
}

// Record appends one event. quoteID may be empty for brief-level events.
func (r *Recorder) Record(briefID, eventType, actor string, payload any, quoteID string) {
	if r == nil || r.db == nil {
		return
	}
	event := store.TimelineEvent{
		BriefID: briefID,
		Type:    eventType,
		Actor:   actor,
	}
	if quoteID != "" {
		event.QuoteID = &quoteID
	}
	event.SetPayload(payload)

	if err := r.db.CreateTimelineEvent(&event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"brief_id": briefID,
			"type":     eventType,
		}).Warn("record timeline event")
	}
}
