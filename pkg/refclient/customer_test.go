package refclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wisbric/orderenrich/pkg/order"
)

func TestCustomerClientFetchOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(order.Customer{ID: "c-1", Name: "Ada", Status: order.CustomerActive, CreditLimit: decimal.NewFromInt(500)})
	}))
	defer srv.Close()

	c := NewCustomerClient(srv.URL)
	cust, err := c.Fetch(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if cust.ID != "c-1" || cust.Status != order.CustomerActive {
		t.Errorf("Fetch() = %+v, want id c-1 status active", cust)
	}
}

func TestCustomerClientFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewCustomerClient(srv.URL)
	_, err := c.Fetch(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch() error = %v, want ErrNotFound", err)
	}
	if !IsPermanent(err) {
		t.Errorf("Fetch() error = %v, want classified as permanent", err)
	}
}

func TestCustomerClientFetchConnectionFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // closed before use: connection refused

	c := NewCustomerClient(srv.URL)
	_, err := c.Fetch(context.Background(), "c-1")
	if !IsTransient(err) {
		t.Errorf("Fetch() error = %v, want transient on connection failure", err)
	}
}
