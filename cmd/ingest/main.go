// Command ingest bulk-loads dealers, briefs and quotes from a JSON file into
// the database. Used by ops to backfill quotes received outside the dealer
// form (email, phone, screenshots).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"outthedoor/backend/internal/api"
	"outthedoor/backend/internal/quotes"
	"outthedoor/backend/internal/store"
	"outthedoor/backend/internal/timeline"
)

type briefEntry struct {
	ID          string          `json:"id"`
	BuyerID     string          `json:"buyer_id"`
	Zipcode     string          `json:"zipcode"`
	PaymentType string          `json:"payment_type"`
	MaxOTD      decimal.Decimal `json:"max_otd"`
	Makes       []string        `json:"makes"`
	Models      []string        `json:"models"`
}

type quoteEntry struct {
	BriefID string `json:"brief_id"`
	api.QuoteSubmitRequest
}

type ingestFile struct {
	Dealers []store.Dealer `json:"dealers"`
	Briefs  []briefEntry   `json:"briefs"`
	Quotes  []quoteEntry   `json:"quotes"`
}

func main() {
	var (
		dbPath   = flag.String("db", filepath.FromSlash("data/outthedoor.db"), "Path to SQLite database")
		filePath = flag.String("file", "", "Path to ingest JSON file")
		publish  = flag.Bool("publish", false, "Publish ingested quotes immediately")
	)
	flag.Parse()

	if *filePath == "" {
		logrus.Fatal("missing -file")
	}

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		logrus.Fatalf("read ingest file: %v", err)
	}
	var payload ingestFile
	if err := json.Unmarshal(raw, &payload); err != nil {
		logrus.Fatalf("parse ingest file: %v", err)
	}

	db, err := store.Open(*dbPath, true)
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close database")
		}
	}()

	events := timeline.NewRecorder(db)
	quoteSvc := quotes.NewService(db, events, nil, "")
	ctx := context.Background()

	dealers := 0
	for i := range payload.Dealers {
		dealer := payload.Dealers[i]
		if dealer.ID == "" {
			logrus.WithField("name", dealer.Name).Fatal("dealer entry missing id")
		}
		if _, err := db.GetDealer(dealer.ID); err == nil {
			continue
		} else if !store.IsNotFound(err) {
			logrus.Fatalf("lookup dealer %s: %v", dealer.ID, err)
		}
		if err := db.CreateDealer(&dealer); err != nil {
			logrus.Fatalf("create dealer %s: %v", dealer.ID, err)
		}
		dealers++
	}

	briefs := 0
	for _, entry := range payload.Briefs {
		if entry.ID == "" {
			logrus.WithField("buyer_id", entry.BuyerID).Fatal("brief entry missing id")
		}
		if _, err := db.GetBrief(entry.ID); err == nil {
			continue
		} else if !store.IsNotFound(err) {
			logrus.Fatalf("lookup brief %s: %v", entry.ID, err)
		}
		brief := &store.Brief{
			ID:          entry.ID,
			BuyerID:     entry.BuyerID,
			Status:      store.BriefStatusSourcing,
			Zipcode:     entry.Zipcode,
			PaymentType: entry.PaymentType,
			MaxOTD:      entry.MaxOTD,
		}
		brief.SetMakes(entry.Makes)
		brief.SetModels(entry.Models)
		if err := db.CreateBrief(brief); err != nil {
			logrus.Fatalf("create brief %s: %v", entry.ID, err)
		}
		events.Record(brief.ID, store.EventBriefCreated, store.ActorOps, map[string]any{
			"makes": entry.Makes,
		}, "")
		briefs++
	}

	ingested := 0
	published := 0
	for _, entry := range payload.Quotes {
		if err := entry.Validate(); err != nil {
			logrus.WithField("vin", entry.Vin).Fatalf("invalid quote entry: %v", err)
		}
		quote, err := quoteSvc.Submit(ctx, entry.BriefID, entry.DealerID, store.QuoteSourceOpsIngest, entry.Input())
		if err != nil {
			logrus.WithField("vin", entry.Vin).Fatalf("ingest quote: %v", err)
		}
		ingested++
		if *publish {
			if _, err := quoteSvc.Publish(ctx, quote.ID); err != nil {
				logrus.WithField("quote_id", quote.ID).Fatalf("publish quote: %v", err)
			}
			published++
		}
	}

	logrus.WithFields(logrus.Fields{
		"dealers":   dealers,
		"briefs":    briefs,
		"quotes":    ingested,
		"published": published,
	}).Info("ingest complete")
}
