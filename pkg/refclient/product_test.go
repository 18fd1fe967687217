package refclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/wisbric/orderenrich/pkg/order"
)

func TestProductClientFetchOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(order.Product{ID: "p-1", Name: "Widget", Price: decimal.NewFromFloat(9.99), Active: true})
	}))
	defer srv.Close()

	c := NewProductClient(srv.URL)
	p, err := c.Fetch(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if p.ID != "p-1" || p.Name != "Widget" {
		t.Errorf("Fetch() = %+v, want id p-1 name Widget", p)
	}
}

func TestProductClientFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewProductClient(srv.URL)
	_, err := c.Fetch(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch() error = %v, want ErrNotFound", err)
	}
}

func TestProductClientFetchServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewProductClient(srv.URL)
	_, err := c.Fetch(context.Background(), "p-1")
	if !IsTransient(err) {
		t.Errorf("Fetch() error = %v, want transient", err)
	}
}

func TestProductClientFetchBadRequestIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewProductClient(srv.URL)
	_, err := c.Fetch(context.Background(), "p-1")
	if !IsPermanent(err) {
		t.Errorf("Fetch() error = %v, want permanent", err)
	}
}

func TestProductClientFetchMalformedBodyIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewProductClient(srv.URL)
	_, err := c.Fetch(context.Background(), "p-1")
	if !IsPermanent(err) {
		t.Errorf("Fetch() error = %v, want permanent on malformed body", err)
	}
}

func TestProductClientFetchEmptyIDRejected(t *testing.T) {
	c := NewProductClient("http://unused.invalid")
	_, err := c.Fetch(context.Background(), "")
	if err == nil {
		t.Fatal("Fetch() with empty id, want error")
	}
}

func TestProductClientFetchOpensBreakerAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewProductClient(srv.URL)
	for i := 0; i < 10; i++ {
		if _, err := c.Fetch(context.Background(), "p-1"); !IsTransient(err) {
			t.Fatalf("call %d: Fetch() error = %v, want transient", i, err)
		}
	}

	_, err := c.Fetch(context.Background(), "p-1")
	if !IsTransient(err) {
		t.Errorf("Fetch() after tripped breaker error = %v, want transient (open breaker)", err)
	}
	if st := c.breaker.State(); st != gobreaker.StateOpen {
		t.Errorf("breaker state = %v, want open after 10 consecutive failures", st)
	}
}
