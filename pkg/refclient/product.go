package refclient

import (
	"context"

	"github.com/wisbric/orderenrich/pkg/order"
)

// ProductClient resolves product ids against the product reference
// service.
type ProductClient struct {
	*Client
}

// NewProductClient creates a ProductClient targeting baseURL.
func NewProductClient(baseURL string) *ProductClient {
	return &ProductClient{Client: New("product", baseURL, "products")}
}

// Fetch resolves a single product by id.
func (c *ProductClient) Fetch(ctx context.Context, id string) (order.Product, error) {
	body, err := c.fetchBody(ctx, id)
	if err != nil {
		return order.Product{}, err
	}
	return decode[order.Product](c.Client, body)
}
