// Package failureledger is the advisory record of messages the pipeline
// could not process: a per-key retry counter, a failure record describing
// the last error, and a dead-letter escalation once the retry budget is
// exhausted or a failure is classified as permanent. The ledger never
// re-injects messages onto the bus; it only accumulates evidence for an
// operator to act on.
package failureledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wisbric/orderenrich/internal/telemetry"
)

// Record is a single failed-message entry.
type Record struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	Message    string    `json:"message"`
	Error      string    `json:"error"`
	RetryCount int       `json:"retryCount"`
	MaxRetries int       `json:"maxRetries"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status,omitempty"`
}

const statusDeadLetter = "dead_letter"

// Ledger records transient and permanent message failures to Redis.
type Ledger struct {
	rdb        *redis.Client
	logger     *slog.Logger
	maxRetries int
	ttl        time.Duration
}

// New creates a Ledger. maxRetries is the number of transient failures
// tolerated before a key is escalated to dead-letter; ttl bounds how long
// records and counters survive.
func New(rdb *redis.Client, logger *slog.Logger, maxRetries int, ttl time.Duration) *Ledger {
	return &Ledger{rdb: rdb, logger: logger, maxRetries: maxRetries, ttl: ttl}
}

func messageKey(key string) string    { return "failed:message:" + key }
func retryKey(key string) string      { return "failed:retry:" + key }
func deadLetterKey(key string) string { return "dead:letter:" + key }

// RecordTransient fetches the current retry count for key, and either
// escalates to a dead-letter record (if the count has reached maxRetries)
// or writes an incremented failure record. Returns true if the key was
// escalated to dead-letter on this call.
func (l *Ledger) RecordTransient(ctx context.Context, key, message string, cause error) (bool, error) {
	count, err := l.retryCount(ctx, key)
	if err != nil {
		return false, err
	}

	if count >= l.maxRetries {
		if err := l.writeDeadLetter(ctx, key, message, cause, count); err != nil {
			return false, err
		}
		return true, nil
	}

	return false, l.writeFailure(ctx, key, message, cause, count+1)
}

// RecordPermanent writes a dead-letter record directly, bypassing the
// retry counter: a permanent failure (NotFound, malformed payload,
// business rejection) is never worth retrying.
func (l *Ledger) RecordPermanent(ctx context.Context, key, message string, cause error) error {
	count, err := l.retryCount(ctx, key)
	if err != nil {
		count = 0
	}
	return l.writeDeadLetter(ctx, key, message, cause, count)
}

func (l *Ledger) retryCount(ctx context.Context, key string) (int, error) {
	n, err := l.rdb.Get(ctx, retryKey(key)).Int()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failureledger: reading retry count for %s: %w", key, err)
	}
	return n, nil
}

func (l *Ledger) writeFailure(ctx context.Context, key, message string, cause error, retryCount int) error {
	rec := Record{
		ID:         uuid.NewString(),
		Key:        key,
		Message:    message,
		Error:      errString(cause),
		RetryCount: retryCount,
		MaxRetries: l.maxRetries,
		Timestamp:  time.Now().UTC(),
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failureledger: marshaling record for %s: %w", key, err)
	}

	pipe := l.rdb.TxPipeline()
	pipe.Set(ctx, messageKey(key), raw, l.ttl)
	pipe.Set(ctx, retryKey(key), retryCount, l.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failureledger: writing failure record for %s: %w", key, err)
	}

	telemetry.LedgerRecordsTotal.WithLabelValues("retry").Inc()
	l.logger.Warn("message failure recorded", "key", key, "retryCount", retryCount, "maxRetries", l.maxRetries, "error", errString(cause))
	return nil
}

func (l *Ledger) writeDeadLetter(ctx context.Context, key, message string, cause error, retryCount int) error {
	rec := Record{
		ID:         uuid.NewString(),
		Key:        key,
		Message:    message,
		Error:      errString(cause),
		RetryCount: retryCount,
		MaxRetries: l.maxRetries,
		Timestamp:  time.Now().UTC(),
		Status:     statusDeadLetter,
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failureledger: marshaling dead-letter record for %s: %w", key, err)
	}

	if err := l.rdb.Set(ctx, deadLetterKey(key), raw, l.ttl).Err(); err != nil {
		return fmt.Errorf("failureledger: writing dead-letter record for %s: %w", key, err)
	}

	telemetry.LedgerRecordsTotal.WithLabelValues("dead_letter").Inc()
	l.logger.Error("message escalated to dead-letter", "key", key, "retryCount", retryCount, "error", errString(cause))
	return nil
}

// IsDeadLettered reports whether key currently has a dead-letter record.
func (l *Ledger) IsDeadLettered(ctx context.Context, key string) (bool, error) {
	n, err := l.rdb.Exists(ctx, deadLetterKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failureledger: checking dead-letter status for %s: %w", key, err)
	}
	return n > 0, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
