package refclient

import (
	"context"

	"github.com/wisbric/orderenrich/pkg/order"
)

// CustomerClient resolves customer ids against the customer reference
// service.
type CustomerClient struct {
	*Client
}

// NewCustomerClient creates a CustomerClient targeting baseURL.
func NewCustomerClient(baseURL string) *CustomerClient {
	return &CustomerClient{Client: New("customer", baseURL, "customers")}
}

// Fetch resolves a single customer by id.
func (c *CustomerClient) Fetch(ctx context.Context, id string) (order.Customer, error) {
	body, err := c.fetchBody(ctx, id)
	if err != nil {
		return order.Customer{}, err
	}
	return decode[order.Customer](c.Client, body)
}
