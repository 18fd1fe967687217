// Package order defines the data model shared across the enrichment
// pipeline: the inbound intent, the reference snapshots it resolves to,
// and the denormalized document written to the order store.
package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerStatus is the lifecycle state of a customer account.
type CustomerStatus string

const (
	CustomerActive    CustomerStatus = "active"
	CustomerInactive  CustomerStatus = "inactive"
	CustomerSuspended CustomerStatus = "suspended"
	CustomerBlocked   CustomerStatus = "blocked"
)

// Status is the lifecycle state of a persisted order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Intent is the inbound message consumed from the bus topic.
type Intent struct {
	OrderID    string     `json:"orderId"`
	CustomerID string     `json:"customerId"`
	ProductIDs []string   `json:"productIds"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// Validate checks the structural invariants the intent schema is supposed
// to guarantee. The consumer calls it before running the pipeline and
// sends a violation to the failure ledger rather than trusting the
// producer.
func (i Intent) Validate() error {
	if i.OrderID == "" {
		return ErrInvalidIntent{Field: "orderId", Reason: "must not be empty"}
	}
	if i.CustomerID == "" {
		return ErrInvalidIntent{Field: "customerId", Reason: "must not be empty"}
	}
	if len(i.ProductIDs) == 0 {
		return ErrInvalidIntent{Field: "productIds", Reason: "must not be empty"}
	}
	return nil
}

// ErrInvalidIntent describes a structurally malformed intent.
type ErrInvalidIntent struct {
	Field  string
	Reason string
}

func (e ErrInvalidIntent) Error() string {
	return "invalid intent field " + e.Field + ": " + e.Reason
}

// Product is the reference record resolved from the product service.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Customer is the reference record resolved from the customer service.
type Customer struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Status         CustomerStatus  `json:"status"`
	CreditLimit    decimal.Decimal `json:"creditLimit"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Available returns the customer's remaining credit. Expected to be
// non-negative but not enforced here.
func (c Customer) Available() decimal.Decimal {
	return c.CreditLimit.Sub(c.CurrentBalance)
}

// Line is a snapshot of a Product at enrichment time, embedded in the
// persisted order in input-preserving order.
type Line struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Active      bool            `json:"active"`
}

// LineFromProduct snapshots a Product into an order Line.
func LineFromProduct(p Product) Line {
	return Line{
		ProductID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Active:      p.Active,
	}
}

// CustomerSnapshot is the customer Order.customerDetails embed: the
// Customer record minus derived fields (Available is derived, so it is
// never stored).
type CustomerSnapshot struct {
	CustomerID     string          `json:"customerId"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Status         CustomerStatus  `json:"status"`
	CreditLimit    decimal.Decimal `json:"creditLimit"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
}

// SnapshotCustomer builds the persisted customer snapshot from a resolved
// Customer record.
func SnapshotCustomer(c Customer) CustomerSnapshot {
	return CustomerSnapshot{
		CustomerID:     c.ID,
		Name:           c.Name,
		Email:          c.Email,
		Status:         c.Status,
		CreditLimit:    c.CreditLimit,
		CurrentBalance: c.CurrentBalance,
	}
}

// Order is the fully-denormalized document persisted to the order store.
type Order struct {
	OrderID         string           `json:"orderId"`
	CustomerID      string           `json:"customerId"`
	Products        []Line           `json:"products"`
	TotalAmount     decimal.Decimal  `json:"totalAmount"`
	Status          Status           `json:"status"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	CustomerDetails CustomerSnapshot `json:"customerDetails"`
}

// TotalOf sums the price of each line using exact decimal arithmetic, so
// the stored total never drifts from a plain sum of the line prices the
// way float64 addition would. Shared by validator.Validate's credit check
// and NewCompletedOrder, so both use the same total.
func TotalOf(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price)
	}
	return total
}

// NewCompletedOrder builds the Order document the pipeline persists on its
// single successful write path; pending/processing states are never
// separately persisted by this worker.
func NewCompletedOrder(intent Intent, lines []Line, customer Customer, now time.Time) Order {
	return Order{
		OrderID:         intent.OrderID,
		CustomerID:      intent.CustomerID,
		Products:        lines,
		TotalAmount:     TotalOf(lines),
		Status:          StatusCompleted,
		CreatedAt:       now,
		UpdatedAt:       now,
		CustomerDetails: SnapshotCustomer(customer),
	}
}
