// Package audit keeps an append-only SQL trail of committed ledger events.
// Each record carries a blake3 digest chained to its predecessor so that
// tampering with any stored row is detectable by Verify.
package audit

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"proplend/core/events"
)

// ErrChainBroken reports a stored record whose digest does not match its contents.
var ErrChainBroken = errors.New("audit: digest chain broken")

// Record is one persisted event.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq        uint64    `gorm:"uniqueIndex;not null"`
	Type       string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	PrevDigest string    `gorm:"size:64"`
	Digest     string    `gorm:"size:64;uniqueIndex"`
	CreatedAt  time.Time
}

// TableName pins the table name independent of gorm's pluralisation rules.
func (Record) TableName() string { return "audit_records" }

// Store appends committed events. It implements events.Emitter.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu   sync.Mutex
	seq  uint64
	tail string
}

// Open connects to dsn. DSNs beginning with postgres:// or postgresql:// use
// the Postgres driver; anything else is treated as a SQLite path (":memory:"
// included).
func Open(dsn string, log *slog.Logger) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("audit: dsn required")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	var (
		db  *gorm.DB
		err error
	)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
	} else {
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
		if err == nil {
			// A single connection keeps ":memory:" databases coherent.
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.SetMaxOpenConns(1)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	return New(db, log)
}

// New wraps an existing gorm handle, migrating the schema and loading the
// chain tail.
func New(db *gorm.DB, log *slog.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("audit: nil database")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	store := &Store{db: db, logger: log, now: time.Now}
	var last Record
	err := db.Order("seq desc").Limit(1).Find(&last).Error
	if err != nil {
		return nil, fmt.Errorf("audit: load tail: %w", err)
	}
	if last.Digest != "" {
		store.seq = last.Seq
		store.tail = last.Digest
	}
	return store, nil
}

// SetNowFunc overrides the clock used for CreatedAt.
func (s *Store) SetNowFunc(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Emit implements events.Emitter. Persistence failures are logged; the
// ledger state they describe has already been committed.
func (s *Store) Emit(evt events.Event) {
	if _, err := s.Append(context.Background(), evt); err != nil {
		s.logger.Error("audit append failed", "type", evt.EventType(), "error", err)
	}
}

// Append persists evt and returns the stored record.
func (s *Store) Append(ctx context.Context, evt events.Event) (*Record, error) {
	if evt == nil {
		return nil, fmt.Errorf("audit: nil event")
	}
	canonical := events.Canonical(evt)
	attrs, err := json.Marshal(canonical.Attributes)
	if err != nil {
		return nil, fmt.Errorf("audit: encode attributes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := Record{
		ID:         uuid.New(),
		Seq:        s.seq + 1,
		Type:       canonical.Type,
		Attributes: string(attrs),
		PrevDigest: s.tail,
		CreatedAt:  s.now().UTC(),
	}
	record.Digest = digest(record.Seq, record.PrevDigest, canonical.Type, canonical.Attributes)
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("audit: insert: %w", err)
	}
	s.seq = record.Seq
	s.tail = record.Digest
	return &record, nil
}

// List returns records in sequence order, optionally filtered by event type.
func (s *Store) List(ctx context.Context, eventType string, limit int) ([]Record, error) {
	query := s.db.WithContext(ctx).Order("seq asc")
	if eventType = strings.TrimSpace(eventType); eventType != "" {
		query = query.Where("type = ?", eventType)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var records []Record
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return records, nil
}

// Verify recomputes every digest in order and reports the first mismatch.
func (s *Store) Verify(ctx context.Context) error {
	var records []Record
	if err := s.db.WithContext(ctx).Order("seq asc").Find(&records).Error; err != nil {
		return fmt.Errorf("audit: load: %w", err)
	}
	prev := ""
	for i, record := range records {
		if record.Seq != uint64(i+1) {
			return fmt.Errorf("%w: sequence gap at %d", ErrChainBroken, record.Seq)
		}
		if record.PrevDigest != prev {
			return fmt.Errorf("%w: record %d does not link to its predecessor", ErrChainBroken, record.Seq)
		}
		attrs := map[string]string{}
		if record.Attributes != "" {
			if err := json.Unmarshal([]byte(record.Attributes), &attrs); err != nil {
				return fmt.Errorf("%w: record %d attributes: %v", ErrChainBroken, record.Seq, err)
			}
		}
		if digest(record.Seq, record.PrevDigest, record.Type, attrs) != record.Digest {
			return fmt.Errorf("%w: record %d digest mismatch", ErrChainBroken, record.Seq)
		}
		prev = record.Digest
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func digest(seq uint64, prev, eventType string, attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := blake3.New(32, nil)
	h.Write([]byte(strconv.FormatUint(seq, 10)))
	h.Write([]byte{0})
	h.Write([]byte(prev))
	h.Write([]byte{0})
	h.Write([]byte(eventType))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(attrs[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}
