package server

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"
)

const headerIdempotencyKey = "Idempotency-Key"

// ErrIdempotencyMismatch is returned when a key is reused with a different payload.
var ErrIdempotencyMismatch = errors.New("idempotency key reuse with different request body")

// idempotencyRecord is one cached response.
type idempotencyRecord struct {
	Caller         string `gorm:"primaryKey;size:128"`
	IdempotencyKey string `gorm:"primaryKey;size:256"`
	RequestHash    string `gorm:"size:64;not null"`
	ResponseStatus int    `gorm:"not null"`
	ResponseBody   []byte
	CreatedAt      int64 `gorm:"index;not null"`
}

func (idempotencyRecord) TableName() string { return "idempotency_keys" }

// IdempotencyStore caches the responses of POST requests by caller and key.
type IdempotencyStore struct {
	db    *gorm.DB
	ttl   time.Duration
	nowFn func() time.Time
}

// StoredResponse represents a cached response for an idempotency key.
type StoredResponse struct {
	Status int
	Body   []byte
}

// NewIdempotencyStore opens the SQLite file at path; ":memory:" keeps keys
// for the life of the process.
func NewIdempotencyStore(path string, ttl time.Duration) (*IdempotencyStore, error) {
	if strings.TrimSpace(path) == "" {
		path = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("idempotency: open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&idempotencyRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("idempotency: migrate: %w", err)
	}
	return &IdempotencyStore{db: db, ttl: ttl, nowFn: time.Now}, nil
}

func (s *IdempotencyStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Lookup returns the cached response, nil when the key is unknown or expired.
func (s *IdempotencyStore) Lookup(ctx context.Context, caller, key, requestHash string) (*StoredResponse, error) {
	var rec idempotencyRecord
	err := s.db.WithContext(ctx).
		Where("caller = ? AND idempotency_key = ?", caller, key).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 && s.nowFn().Sub(time.Unix(rec.CreatedAt, 0)) > s.ttl {
		return nil, nil
	}
	if rec.RequestHash != requestHash {
		return nil, ErrIdempotencyMismatch
	}
	return &StoredResponse{Status: rec.ResponseStatus, Body: rec.ResponseBody}, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, caller, key, requestHash string, status int, body []byte) error {
	rec := idempotencyRecord{
		Caller:         caller,
		IdempotencyKey: key,
		RequestHash:    requestHash,
		ResponseStatus: status,
		ResponseBody:   body,
		CreatedAt:      s.nowFn().Unix(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

// Prune drops entries older than the TTL.
func (s *IdempotencyStore) Prune(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := s.nowFn().Add(-s.ttl).Unix()
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&idempotencyRecord{})
	return res.RowsAffected, res.Error
}

// Middleware replays the stored response for a repeated Idempotency-Key.
// Requests without the header pass through. Only responses below 500 are
// cached.
func (s *IdempotencyStore) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
		if s == nil || key == "" || r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		caller, err := CallerFrom(r.Context())
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "read body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		requestHash := hashRequest(r.Method, r.URL.Path, body)

		cached, err := s.Lookup(r.Context(), caller.String(), key, requestHash)
		if errors.Is(err, ErrIdempotencyMismatch) {
			writeError(w, r, http.StatusConflict, "idempotency_mismatch", err.Error())
			return
		}
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal", "idempotency lookup failed")
			return
		}
		if cached != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replay", "true")
			w.WriteHeader(cached.Status)
			_, _ = w.Write(cached.Body)
			return
		}

		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status < http.StatusInternalServerError {
			_ = s.Save(r.Context(), caller.String(), key, requestHash, rec.status, rec.body.Bytes())
		}
	})
}

func hashRequest(method, path string, body []byte) string {
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(method))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(path))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// responseRecorder tees the response into a buffer.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
	wrote  bool
}

func (r *responseRecorder) WriteHeader(status int) {
	if !r.wrote {
		r.status = status
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if !r.wrote {
		r.wrote = true
	}
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}
