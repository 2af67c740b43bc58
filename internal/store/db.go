package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM DB handle and exposes repository helpers. Writes are
// serialized through a mutex; SQLite has a single writer anyway and the diff
// engine requires a coherent read-modify-write per contract.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Brief{}, &Dealer{}, &Quote{}, &QuoteLine{}, &Contract{}, &TimelineEvent{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn inside a single write transaction while holding the
// writer lock, giving callers an all-or-nothing persistence boundary.
func (d *Database) Transaction(fn func(tx *gorm.DB) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(fn)
}

// CreateBrief inserts a brief row.
func (d *Database) CreateBrief(brief *Brief) error {
	if brief == nil {
		return errors.New("brief is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(brief).Error
}

// GetBrief loads a brief with its quotes, lines and contracts.
func (d *Database) GetBrief(id string) (*Brief, error) {
	var brief Brief
	err := d.gorm.
		Preload("Quotes", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("Quotes.Lines").
		Preload("Quotes.Contract").
		First(&brief, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &brief, nil
}

// UpdateBriefStatus moves a brief to the given lifecycle status.
func (d *Database) UpdateBriefStatus(id, status string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&Brief{}).Where("id = ?", id).Update("status", status).Error
}

// CreateDealer inserts a dealer record.
func (d *Database) CreateDealer(dealer *Dealer) error {
	if dealer == nil {
		return errors.New("dealer is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(dealer).Error
}

// GetDealer loads a dealer by id.
func (d *Database) GetDealer(id string) (*Dealer, error) {
	var dealer Dealer
	if err := d.gorm.First(&dealer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &dealer, nil
}

// CreateQuote inserts a quote together with its lines.
func (d *Database) CreateQuote(quote *Quote) error {
	if quote == nil {
		return errors.New("quote is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(quote).Error
}

// GetQuote loads a quote with its lines and contract.
func (d *Database) GetQuote(id string) (*Quote, error) {
	var quote Quote
	err := d.gorm.Preload("Lines").Preload("Contract").First(&quote, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// UpdateQuoteStatus moves a quote to the given lifecycle status.
func (d *Database) UpdateQuoteStatus(id, status string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&Quote{}).Where("id = ?", id).Update("status", status).Error
}

// UpdateQuoteScore persists a recomputed shadiness score.
func (d *Database) UpdateQuoteScore(id string, score int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&Quote{}).Where("id = ?", id).Update("shadiness_score", score).Error
}

// CreateContract inserts a contract row.
func (d *Database) CreateContract(contract *Contract) error {
	if contract == nil {
		return errors.New("contract is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(contract).Error
}

// SaveContract persists contract status and check report changes.
func (d *Database) SaveContract(contract *Contract) error {
	if contract == nil {
		return errors.New("contract is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Save(contract).Error
}

// GetContract loads a contract by id.
func (d *Database) GetContract(id string) (*Contract, error) {
	var contract Contract
	if err := d.gorm.First(&contract, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// GetContractByQuote loads a quote's contract, if one exists.
func (d *Database) GetContractByQuote(quoteID string) (*Contract, error) {
	var contract Contract
	if err := d.gorm.First(&contract, "quote_id = ?", quoteID).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// CreateTimelineEvent appends an event row.
func (d *Database) CreateTimelineEvent(event *TimelineEvent) error {
	if event == nil {
		return errors.New("event is nil")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(event).Error
}

// ListTimeline returns a brief's events, newest first.
func (d *Database) ListTimeline(briefID string) ([]TimelineEvent, error) {
	var events []TimelineEvent
	err := d.gorm.Where("brief_id = ?", briefID).Order("created_at DESC, id DESC").Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// IsNotFound reports whether err is a record-not-found lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
