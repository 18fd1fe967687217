// Package validator applies the business rules that gate persistence of
// an enriched order: the customer must be active, every resolved product
// must be active, and the order total must fit within the customer's
// remaining credit.
package validator

import (
	"fmt"

	"github.com/wisbric/orderenrich/pkg/order"
)

// Reason names which rule rejected an order.
type Reason string

const (
	ReasonCustomerInactive   Reason = "CustomerInactive"
	ReasonProductInactive    Reason = "ProductInactive"
	ReasonInsufficientCredit Reason = "InsufficientCredit"
)

// Rejection describes a failed validation rule.
type Rejection struct {
	Reason Reason
	Detail string
}

func (r Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Detail)
}

// Validate checks the business rules against a resolved customer and
// product lines, in order, stopping at the first failure.
func Validate(customer order.Customer, lines []order.Line) error {
	if customer.Status != order.CustomerActive {
		return Rejection{Reason: ReasonCustomerInactive, Detail: string(customer.Status)}
	}

	for _, l := range lines {
		if !l.Active {
			return Rejection{Reason: ReasonProductInactive, Detail: l.ProductID}
		}
	}

	total := order.TotalOf(lines)
	available := customer.Available()
	if total.GreaterThan(available) {
		return Rejection{Reason: ReasonInsufficientCredit, Detail: fmt.Sprintf("total=%s available=%s", total.StringFixed(2), available.StringFixed(2))}
	}

	return nil
}
