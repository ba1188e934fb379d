// Package history records finished ticket checks in Redis so the admin
// dashboard can show recent searches. The core checker never reads this
// data back; losing it costs nothing but the dashboard view.
package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"takarakuji"
)

const (
	// RecentKey is the Redis list holding the newest records first.
	RecentKey = takarakuji.HistoryKeyPrefix + "recent"

	// MaxRecordSize caps one serialized record. Anything bigger means a
	// bug upstream, not a big search.
	MaxRecordSize = 64 * 1024

	retryBaseDelay = 100 * time.Millisecond
	retryMaxDelay  = 5 * time.Second
)

type ctxKey int

const clientIPKey ctxKey = 0

// WithClientIP stores the caller's IP on the context so records can
// carry its hash. The raw address is never persisted.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

func clientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// hashIP reduces an address to a short stable token for the dashboard.
func hashIP(ip string) string {
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:6])
}

// Record is one persisted search.
type Record struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"` // Unix millis
	ClientKey string `json:"client_key,omitempty"`
	Game      string `json:"game"`
	Period    int    `json:"period"`
	Ticket    string `json:"ticket"`
	Winning   bool   `json:"winning"`
	Rank      string `json:"rank,omitempty"`
	TotalYen  int64  `json:"total_yen"`
	Summary   string `json:"summary"`
}

// Time converts the stored millisecond timestamp back to a time.Time.
func (r Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Store keeps recent search records in a capped Redis list. After a
// hard backend failure the store disables itself and stops touching
// Redis, so a broken history backend cannot slow down checking.
type Store struct {
	client        *redis.Client
	logger        takarakuji.Logger
	keep          int
	ttl           time.Duration
	retryAttempts int
	clock         func() time.Time

	disabled    int32
	disableOnce sync.Once
}

var _ takarakuji.HistoryRecorder = (*Store)(nil)

// NewStore creates a history store. A nil client returns a store that
// is disabled from the start.
func NewStore(client *redis.Client, config *takarakuji.HistoryConfig, logger takarakuji.Logger) *Store {
	if config == nil {
		config = takarakuji.DefaultHistoryConfig()
	}
	if logger == nil {
		logger = &takarakuji.DefaultLogger{}
	}

	store := &Store{
		client:        client,
		logger:        logger,
		keep:          config.Keep,
		ttl:           time.Duration(config.TTLDays) * 24 * time.Hour,
		retryAttempts: takarakuji.DefaultRedisMaxRetries,
		clock:         time.Now,
	}
	if client == nil || !config.Enabled {
		atomic.StoreInt32(&store.disabled, 1)
	}
	return store
}

// Enabled reports whether the store still writes to Redis.
func (s *Store) Enabled() bool {
	return atomic.LoadInt32(&s.disabled) == 0
}

// RecordResult persists one finished check. Implements the checker's
// HistoryRecorder interface.
func (s *Store) RecordResult(ctx context.Context, result *takarakuji.TicketResult) error {
	if result == nil {
		return takarakuji.ErrInvalidParameters.WithDetails("result is required")
	}

	return s.Add(ctx, Record{
		ClientKey: hashIP(clientIPFrom(ctx)),
		Game:      string(result.Game),
		Period:    result.Period,
		Ticket:    result.Ticket.String(),
		Winning:   result.Winning,
		Rank:      result.Rank,
		TotalYen:  result.TotalYen,
		Summary:   fmt.Sprintf("%s | %s", result.Ticket.String(), result.TotalDisplay()),
	})
}

// Add pushes one record onto the recent list, trimming it to the
// configured length.
func (s *Store) Add(ctx context.Context, rec Record) error {
	if !s.Enabled() {
		return nil
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = s.clock().UnixMilli()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return takarakuji.ErrSystemError.WithDetails("history record does not serialize").WithCause(err)
	}
	if len(data) > MaxRecordSize {
		return takarakuji.ErrSystemError.WithDetailsf("history record is %d bytes, cap is %d", len(data), MaxRecordSize)
	}

	err = s.executeWithRetry(ctx, "add", func() error {
		if err := s.client.LPush(ctx, RecentKey, string(data)).Err(); err != nil {
			return err
		}
		if err := s.client.LTrim(ctx, RecentKey, 0, int64(s.keep-1)).Err(); err != nil {
			return err
		}
		return s.client.Expire(ctx, RecentKey, s.ttl).Err()
	})
	if err != nil {
		s.disable(err)
		return takarakuji.ErrRedisConnectionFailed.WithDetails("history write failed").WithCause(err)
	}
	return nil
}

// Recent returns up to n newest records, newest first. Entries that no
// longer unmarshal are skipped rather than failing the whole page.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	if !s.Enabled() {
		return nil, nil
	}
	if n <= 0 || n > s.keep {
		n = s.keep
	}

	var raw []string
	err := s.executeWithRetry(ctx, "recent", func() error {
		var err error
		raw, err = s.client.LRange(ctx, RecentKey, 0, int64(n-1)).Result()
		return err
	})
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		s.disable(err)
		return nil, takarakuji.ErrRedisConnectionFailed.WithDetails("history read failed").WithCause(err)
	}

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			s.logger.Debug("skipping unreadable history entry: %v", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// executeWithRetry retries transient Redis failures with exponential
// backoff. Non-transient failures come back immediately.
func (s *Store) executeWithRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= s.retryAttempts; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay * time.Duration(1<<(attempt-1))
			if delay > retryMaxDelay {
				delay = retryMaxDelay
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			s.logger.Debug("retrying history %s (attempt %d/%d)", operation, attempt, s.retryAttempts)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if lastErr == redis.Nil || !takarakuji.IsRetryableError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// disable turns the store off after a hard failure. Logged once; every
// later call is a cheap no-op.
func (s *Store) disable(cause error) {
	if cause == redis.Nil {
		return
	}
	s.disableOnce.Do(func() {
		atomic.StoreInt32(&s.disabled, 1)
		s.logger.Error("history store disabled after backend failure: %v", cause)
	})
}
