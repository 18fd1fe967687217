// Package refclient implements the HTTP client contract for the product
// and customer reference services. Each client is wrapped in its own
// circuit breaker; retrying transient failures is the caller's
// responsibility (the enrichment stage), not the client's.
package refclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

const requestTimeout = 10 * time.Second

// breakerSettings approximates a sliding window of 10 calls with a 50%
// failure threshold and a 60s open-state cooldown, using gobreaker's
// closed-state counters: ReadyToTrip fires once at least 10 calls have
// been observed in the current closed-state interval and at least half
// of them failed. The Interval bounds how long those counts accumulate
// before resetting, which is the nearest gobreaker equivalent of a
// fixed-size sliding window.
func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.5
		},
	}
}

// Client calls a single reference service resource (products or
// customers) over HTTP, classifying every outcome into a found value,
// a not-found, a transient failure, or a permanent failure.
type Client struct {
	name       string
	baseURL    string
	resource   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// New creates a Client for the given resource path ("products" or
// "customers") against baseURL, e.g. "http://product-service:8080".
func New(name, baseURL, resource string) *Client {
	return &Client{
		name:     name,
		baseURL:  baseURL,
		resource: resource,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		breaker: gobreaker.NewCircuitBreaker(breakerSettings(name)),
	}
}

// fetchBody performs one attempt: build the request, run it through the
// circuit breaker, and classify the response by status code. An open
// breaker surfaces as ErrTransient, since a tripped breaker should be
// retried the same way an actual transient failure would be.
func (c *Client) fetchBody(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("refclient(%s): id must not be empty", c.name)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, id)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("refclient(%s): %w: %v", c.name, ErrTransient, err)
		}
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) doRequest(ctx context.Context, id string) ([]byte, error) {
	url := fmt.Sprintf("%s/api/%s/%s", c.baseURL, c.resource, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("refclient(%s): building request: %w", c.name, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection errors are transient.
		return nil, fmt.Errorf("refclient(%s): %w: %v", c.name, ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("refclient(%s): %w: reading body: %v", c.name, ErrTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("refclient(%s): %s/%s: %w", c.name, c.resource, id, ErrNotFound)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("refclient(%s): status %d: %w", c.name, resp.StatusCode, ErrTransient)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("refclient(%s): status %d: %w", c.name, resp.StatusCode, ErrPermanent)
	default:
		return nil, fmt.Errorf("refclient(%s): unexpected status %d", c.name, resp.StatusCode)
	}
}

// decode unmarshals a fetched body into T, reporting a permanent error on
// malformed JSON (the client is not expected to retry a parse failure).
func decode[T any](c *Client, body []byte) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("refclient(%s): %w: decoding response: %v", c.name, ErrPermanent, err)
	}
	return v, nil
}
