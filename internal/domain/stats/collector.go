// Package stats aggregates completed-order events into sales counters. The
// collector is a passive subscriber: the pipeline never consults it for
// decisions.
package stats

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xenking/localshop/internal/domain/checkout"
)

// Collector accumulates order count, revenue, and per-product unit counts.
// Safe for concurrent use: completed-order events arrive on checkout
// goroutines while HTTP handlers read the snapshot.
type Collector struct {
	mu           sync.Mutex
	totalOrders  int
	totalRevenue decimal.Decimal
	productSales map[string]int
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{
		totalRevenue: decimal.Zero,
		productSales: make(map[string]int),
	}
}

// OrderCompleted records a completed order. Register it with
// Pipeline.Subscribe.
func (c *Collector) OrderCompleted(event checkout.OrderCompleted) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalOrders++
	c.totalRevenue = c.totalRevenue.Add(event.Order.Total)
	for _, item := range event.Order.Items {
		c.productSales[item.Product.Name] += item.Quantity
	}
}

// TotalOrders returns the number of completed orders seen.
func (c *Collector) TotalOrders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalOrders
}

// TotalRevenue returns the sum of completed order totals.
func (c *Collector) TotalRevenue() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalRevenue
}

// ProductSales returns a copy of the units-sold counters keyed by product
// name.
func (c *Collector) ProductSales() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.productSales))
	for name, qty := range c.productSales {
		out[name] = qty
	}
	return out
}

// Seller is one row of the top-sellers report.
type Seller struct {
	Name  string
	Units int
}

// TopSellers returns up to n products by units sold, descending. Ties break
// by name so the report is stable.
func (c *Collector) TopSellers(n int) []Seller {
	c.mu.Lock()
	sellers := make([]Seller, 0, len(c.productSales))
	for name, units := range c.productSales {
		sellers = append(sellers, Seller{Name: name, Units: units})
	}
	c.mu.Unlock()

	sort.Slice(sellers, func(i, j int) bool {
		if sellers[i].Units != sellers[j].Units {
			return sellers[i].Units > sellers[j].Units
		}
		return sellers[i].Name < sellers[j].Name
	})
	if n < len(sellers) {
		sellers = sellers[:n]
	}
	return sellers
}
