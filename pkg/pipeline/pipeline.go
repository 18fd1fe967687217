// Package pipeline drives a single order intent end-to-end: acquire its
// lock, check for prior processing, enrich, validate, persist, and
// guarantee the lock is released on every exit path.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wisbric/orderenrich/internal/telemetry"
	"github.com/wisbric/orderenrich/pkg/enrichment"
	"github.com/wisbric/orderenrich/pkg/lock"
	"github.com/wisbric/orderenrich/pkg/order"
	"github.com/wisbric/orderenrich/pkg/orderstore"
	"github.com/wisbric/orderenrich/pkg/validator"
)

// Outcome classifies how a pipeline run terminated.
type Outcome string

const (
	OutcomePersisted         Outcome = "persisted"
	OutcomeSkippedExisting   Outcome = "skipped_existing"
	OutcomeSkippedLocked     Outcome = "skipped_locked"
	OutcomeDroppedValidation Outcome = "dropped_validation"
	OutcomeEnrichmentFailed  Outcome = "enrichment_failed"
	OutcomeEnrichmentDenied  Outcome = "enrichment_denied"
	OutcomeStoreConflict     Outcome = "store_conflict"
)

const leaseExtendInterval = 20 * time.Second

// Locker is the distributed-lock dependency Run needs. Satisfied by
// *lock.Lock.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (lock.Lease, bool, error)
	Release(ctx context.Context, lease lock.Lease)
	Extend(ctx context.Context, lease lock.Lease, ttl time.Duration) bool
}

// Enricher resolves an intent's customer and products. Satisfied by
// *enrichment.Stage.
type Enricher interface {
	Enrich(ctx context.Context, customerID string, productIDs []string) (enrichment.Result, error)
}

// Store persists and looks up order documents. Satisfied by
// *orderstore.Store.
type Store interface {
	Save(ctx context.Context, o order.Order) error
	ExistsByOrderID(ctx context.Context, orderID string) (bool, error)
}

// Pipeline wires the lock, enrichment stage, validator, and order store
// into the single end-to-end run described by Run.
type Pipeline struct {
	locks   Locker
	enrich  Enricher
	store   Store
	logger  *slog.Logger
	now     func() time.Time
	lockTTL time.Duration
}

// New creates a Pipeline. lockTTL governs both the initial lease duration
// and the duration each background extend resets it to.
func New(locks Locker, enrich Enricher, store Store, logger *slog.Logger, lockTTL time.Duration) *Pipeline {
	return &Pipeline{locks: locks, enrich: enrich, store: store, logger: logger, now: time.Now, lockTTL: lockTTL}
}

// Run drives intent through the full pipeline and returns a terminal
// Outcome. The enrichment_failed, enrichment_denied and dropped_validation
// outcomes carry their cause as the returned error; an empty Outcome with
// a non-nil error means the lock service itself failed before any
// classification was possible.
func (p *Pipeline) Run(ctx context.Context, intent order.Intent) (Outcome, error) {
	start := p.now()
	outcome, err := p.run(ctx, intent)
	elapsed := p.now().Sub(start)

	if outcome != "" {
		telemetry.OrdersProcessedTotal.WithLabelValues(string(outcome)).Inc()
		telemetry.PipelineDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
		p.logger.Info("order pipeline finished", "order_id", intent.OrderID, "outcome", string(outcome), "latency", elapsed)
	}
	if err != nil && (outcome == OutcomeEnrichmentFailed || outcome == OutcomeEnrichmentDenied) {
		telemetry.EnrichmentFailuresTotal.WithLabelValues(string(outcome)).Inc()
	}
	return outcome, err
}

func (p *Pipeline) run(ctx context.Context, intent order.Intent) (Outcome, error) {
	name := lock.OrderLockName(intent.OrderID)
	lease, ok, err := p.locks.Acquire(ctx, name, p.lockTTL)
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeSkippedLocked, nil
	}
	defer p.locks.Release(ctx, lease)

	exists, err := p.store.ExistsByOrderID(ctx, intent.OrderID)
	if err != nil {
		return OutcomeEnrichmentFailed, err
	}
	if exists {
		return OutcomeSkippedExisting, nil
	}

	extendCtx, cancelExtend := context.WithCancel(ctx)
	go p.extendLease(extendCtx, lease)
	result, err := p.enrich.Enrich(ctx, intent.CustomerID, intent.ProductIDs)
	cancelExtend()
	if err != nil {
		if errors.Is(err, enrichment.ErrDenied) {
			return OutcomeEnrichmentDenied, err
		}
		return OutcomeEnrichmentFailed, err
	}

	if len(result.Lines) == 0 {
		return OutcomeDroppedValidation, fmt.Errorf("validation_rejected: no enrichable lines resolved for order %s", intent.OrderID)
	}

	if err := validator.Validate(result.Customer, result.Lines); err != nil {
		return OutcomeDroppedValidation, fmt.Errorf("validation_rejected: %w", err)
	}

	o := order.NewCompletedOrder(intent, result.Lines, result.Customer, p.now().UTC())
	if err := p.store.Save(ctx, o); err != nil {
		if errors.Is(err, orderstore.ErrConflict) {
			// A unique-index conflict means another run already persisted
			// this orderId; ack without a ledger write, same as
			// skipped_existing, but reported under its own outcome.
			return OutcomeStoreConflict, nil
		}
		return OutcomeEnrichmentFailed, err
	}

	return OutcomePersisted, nil
}

// extendLease resets lease's TTL every leaseExtendInterval until ctx is
// canceled, so a lease acquired for p.lockTTL survives an enrichment that
// runs longer than that without another worker stealing the order mid-run.
func (p *Pipeline) extendLease(ctx context.Context, lease lock.Lease) {
	ticker := time.NewTicker(leaseExtendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.locks.Extend(ctx, lease, p.lockTTL)
		}
	}
}
