// Package enrichment resolves an order intent's customer and product ids
// into the snapshots persisted on the final order document. Customer
// resolution and the product fan-out run concurrently via errgroup; each
// subtask is cache-aside over the reference clients, retrying transient
// failures with exponential backoff.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/wisbric/orderenrich/pkg/cache"
	"github.com/wisbric/orderenrich/pkg/order"
	"github.com/wisbric/orderenrich/pkg/refclient"
)

// ErrDenied wraps a NotFound or Permanent failure from a reference
// service: the enrichment stage aborts immediately and is not retryable.
var ErrDenied = errors.New("enrichment: denied")

// ErrExhausted wraps a transient failure whose retry budget ran out.
var ErrExhausted = errors.New("enrichment: retries exhausted")

const (
	retryInitialInterval = time.Second
	retryMultiplier      = 2
	retryMaxAttempts     = 3
)

// stageDeadline bounds the whole Enrich call, not just a single HTTP
// attempt, so an exhausted retry budget on a slow reference service can't
// hold a pipeline run open indefinitely.
const stageDeadline = 60 * time.Second

func productCacheKey(id string) string  { return "product:" + id }
func customerCacheKey(id string) string { return "customer:" + id }

// Stage resolves customer and product reference data for an intent.
type Stage struct {
	cache       *cache.Cache
	products    *refclient.ProductClient
	customers   *refclient.CustomerClient
	productTTL  time.Duration
	customerTTL time.Duration
}

// New creates an enrichment Stage. productTTL and customerTTL govern how
// long resolved reference data stays cached before the next lookup falls
// through to the reference services again.
func New(c *cache.Cache, products *refclient.ProductClient, customers *refclient.CustomerClient, productTTL, customerTTL time.Duration) *Stage {
	return &Stage{cache: c, products: products, customers: customers, productTTL: productTTL, customerTTL: customerTTL}
}

// Result is the aggregate output of a successful enrichment.
type Result struct {
	Customer order.Customer
	Lines    []order.Line
}

// Enrich resolves customerId and productIds concurrently. A NotFound or
// Permanent failure from either subtask aborts the stage with ErrDenied;
// a transient failure surviving the retry budget aborts with ErrExhausted.
func (s *Stage) Enrich(ctx context.Context, customerID string, productIDs []string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, stageDeadline)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	var customer order.Customer
	g.Go(func() error {
		c, err := s.enrichCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		customer = c
		return nil
	})

	lines := make([]order.Line, len(productIDs))
	for i, id := range productIDs {
		i, id := i, id
		g.Go(func() error {
			line, err := s.enrichProduct(ctx, id)
			if err != nil {
				return err
			}
			lines[i] = line
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return Result{Customer: customer, Lines: lines}, nil
}

func (s *Stage) enrichCustomer(ctx context.Context, id string) (order.Customer, error) {
	key := customerCacheKey(id)

	var cached order.Customer
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	c, err := retry(ctx, func() (order.Customer, error) {
		return s.customers.Fetch(ctx, id)
	})
	if err != nil {
		return order.Customer{}, classify(err)
	}

	s.cache.Set(ctx, key, c, s.customerTTL)
	return c, nil
}

func (s *Stage) enrichProduct(ctx context.Context, id string) (order.Line, error) {
	key := productCacheKey(id)

	var cached order.Product
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return order.LineFromProduct(cached), nil
	}

	p, err := retry(ctx, func() (order.Product, error) {
		return s.products.Fetch(ctx, id)
	})
	if err != nil {
		return order.Line{}, classify(err)
	}

	s.cache.Set(ctx, key, p, s.productTTL)
	return order.LineFromProduct(p), nil
}

// retry applies the caller-side retry policy: exponential backoff
// starting at 1s, factor 2, at most 3 attempts, retrying only transient
// reference-client failures.
func retry[T any](ctx context.Context, fetch func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.Multiplier = retryMultiplier

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fetch()
		if err != nil && refclient.IsTransient(err) {
			return v, err
		}
		if err != nil {
			return v, backoff.Permanent(err)
		}
		return v, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(retryMaxAttempts))
}

func classify(err error) error {
	if refclient.IsPermanent(err) {
		return fmt.Errorf("%w: %v", ErrDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrExhausted, err)
}
