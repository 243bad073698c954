package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/orderdesk/internal/customers"
	"github.com/odyssey-erp/orderdesk/internal/orders"
	"github.com/odyssey-erp/orderdesk/internal/products"
)

// CountFunc returns the number of stored records of one kind.
type CountFunc func(ctx context.Context) (int, error)

// Dashboard loads the home page counters.
type Dashboard struct {
	Orders    CountFunc
	Customers CountFunc
	Products  CountFunc
}

// Counts holds one value per entity.
type Counts struct {
	Orders    int
	Customers int
	Products  int
}

// NewDashboard counts through the services' list totals.
func NewDashboard(c *customers.Service, p *products.Service, o *orders.Service) *Dashboard {
	return &Dashboard{
		Orders: func(ctx context.Context) (int, error) {
			_, total, err := o.List(ctx, orders.ListOrdersRequest{Limit: 1})
			return total, err
		},
		Customers: func(ctx context.Context) (int, error) {
			_, total, err := c.List(ctx, customers.ListCustomersRequest{Limit: 1})
			return total, err
		},
		Products: func(ctx context.Context) (int, error) {
			_, total, err := p.List(ctx, products.ListProductsRequest{Limit: 1})
			return total, err
		},
	}
}

// Load runs the three counts concurrently.
func (d *Dashboard) Load(ctx context.Context) (Counts, error) {
	var counts Counts
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range []struct {
		name string
		fn   CountFunc
		dst  *int
	}{
		{"orders", d.Orders, &counts.Orders},
		{"customers", d.Customers, &counts.Customers},
		{"products", d.Products, &counts.Products},
	} {
		g.Go(func() error {
			n, err := job.fn(ctx)
			if err != nil {
				return fmt.Errorf("count %s: %w", job.name, err)
			}
			*job.dst = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Counts{}, err
	}
	return counts, nil
}
