package orderstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wisbric/orderenrich/internal/platform"
	"github.com/wisbric/orderenrich/pkg/order"
)

// newTestStore requires a live Postgres reachable at ORDERSTORE_TEST_DATABASE_URL
// and applies the orders migration to it. Skipped otherwise, since no
// pgx-compatible mocking library is available to exercise real SQL here.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("ORDERSTORE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ORDERSTORE_TEST_DATABASE_URL not set, skipping orderstore integration test")
	}

	ctx := context.Background()
	pool, err := platform.NewPostgresPool(ctx, url)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := platform.RunMigrations(url, "../../migrations/orders"); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, "TRUNCATE orders")
	})

	return New(pool)
}

func testOrder(id string) order.Order {
	now := time.Now().UTC().Truncate(time.Second)
	return order.Order{
		OrderID:    id,
		CustomerID: "customer-001",
		Products: []order.Line{
			{ProductID: "product-001", Name: "Widget", Price: decimal.NewFromInt(10), Active: true},
		},
		TotalAmount: decimal.NewFromInt(10),
		Status:      order.StatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSaveAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	o := testOrder("order-1")

	if err := s.Save(ctx, o); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.FindByOrderID(ctx, o.OrderID)
	if err != nil {
		t.Fatalf("FindByOrderID() error = %v", err)
	}
	if got.OrderID != o.OrderID || !got.TotalAmount.Equal(o.TotalAmount) {
		t.Errorf("FindByOrderID() = %+v, want %+v", got, o)
	}
}

func TestSaveConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	o := testOrder("order-2")

	if err := s.Save(ctx, o); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}

	err := s.Save(ctx, o)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("second Save() error = %v, want ErrConflict", err)
	}
}

func TestExistsByOrderID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	o := testOrder("order-3")

	exists, err := s.ExistsByOrderID(ctx, o.OrderID)
	if err != nil {
		t.Fatalf("ExistsByOrderID() error = %v", err)
	}
	if exists {
		t.Fatal("ExistsByOrderID() = true before Save")
	}

	if err := s.Save(ctx, o); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	exists, err = s.ExistsByOrderID(ctx, o.OrderID)
	if err != nil {
		t.Fatalf("ExistsByOrderID() error = %v", err)
	}
	if !exists {
		t.Error("ExistsByOrderID() = false after Save")
	}
}
