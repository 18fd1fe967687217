package failureledger

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLedger(t *testing.T, maxRetries int) *Ledger {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, slog.New(slog.DiscardHandler), maxRetries, 24*time.Hour)
}

func TestRecordTransientIncrementsUntilDeadLetter(t *testing.T) {
	l := newTestLedger(t, 2)
	ctx := context.Background()
	key := "order-XYZ"
	cause := errors.New("timeout")

	for i := 1; i <= 2; i++ {
		escalated, err := l.RecordTransient(ctx, key, "{}", cause)
		if err != nil {
			t.Fatalf("RecordTransient() attempt %d error = %v", i, err)
		}
		if escalated {
			t.Fatalf("RecordTransient() attempt %d escalated early", i)
		}
	}

	dead, err := l.IsDeadLettered(ctx, key)
	if err != nil {
		t.Fatalf("IsDeadLettered() error = %v", err)
	}
	if dead {
		t.Fatal("IsDeadLettered() = true before exhausting retries")
	}

	escalated, err := l.RecordTransient(ctx, key, "{}", cause)
	if err != nil {
		t.Fatalf("final RecordTransient() error = %v", err)
	}
	if !escalated {
		t.Fatal("final RecordTransient() did not escalate to dead-letter")
	}

	dead, err = l.IsDeadLettered(ctx, key)
	if err != nil {
		t.Fatalf("IsDeadLettered() error = %v", err)
	}
	if !dead {
		t.Error("IsDeadLettered() = false after exhausting retries")
	}
}

func TestRecordPermanentEscalatesImmediately(t *testing.T) {
	l := newTestLedger(t, 5)
	ctx := context.Background()
	key := "order-ABC"

	if err := l.RecordPermanent(ctx, key, "{}", errors.New("not found")); err != nil {
		t.Fatalf("RecordPermanent() error = %v", err)
	}

	dead, err := l.IsDeadLettered(ctx, key)
	if err != nil {
		t.Fatalf("IsDeadLettered() error = %v", err)
	}
	if !dead {
		t.Error("IsDeadLettered() = false after RecordPermanent")
	}
}

func TestIsDeadLetteredFalseForUnknownKey(t *testing.T) {
	l := newTestLedger(t, 5)
	dead, err := l.IsDeadLettered(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("IsDeadLettered() error = %v", err)
	}
	if dead {
		t.Error("IsDeadLettered() = true for unknown key")
	}
}
