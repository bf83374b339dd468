package stats

import (
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/localshop/internal/domain/checkout"
	"github.com/xenking/localshop/internal/domain/order"
	"github.com/xenking/localshop/internal/domain/product"
)

func completedOrder(id string, total string, lines ...order.Item) checkout.OrderCompleted {
	return checkout.OrderCompleted{
		Order: &order.Order{
			ID:     id,
			Items:  lines,
			Total:  decimal.RequireFromString(total),
			Status: order.StatusConfirmed,
		},
	}
}

func line(name string, qty int) order.Item {
	return order.Item{
		Product:  product.Product{ID: name, Name: name},
		Quantity: qty,
	}
}

func TestCollector_Aggregates(t *testing.T) {
	c := NewCollector()

	c.OrderCompleted(completedOrder("ORD-1", "33.00", line("Widget", 3)))
	c.OrderCompleted(completedOrder("ORD-2", "11.00", line("Widget", 1), line("Gadget", 2)))

	assert.Equal(t, 2, c.TotalOrders())
	assert.True(t, decimal.RequireFromString("44.00").Equal(c.TotalRevenue()))
	assert.Equal(t, map[string]int{"Widget": 4, "Gadget": 2}, c.ProductSales())
}

func TestCollector_TopSellers(t *testing.T) {
	c := NewCollector()
	c.OrderCompleted(completedOrder("ORD-1", "1.00",
		line("Widget", 5), line("Gadget", 2), line("Doohickey", 5), line("Gizmo", 1)))

	top := c.TopSellers(3)
	require.Len(t, top, 3)
	// Ties (Widget/Doohickey at 5) break alphabetically.
	assert.Equal(t, Seller{Name: "Doohickey", Units: 5}, top[0])
	assert.Equal(t, Seller{Name: "Widget", Units: 5}, top[1])
	assert.Equal(t, Seller{Name: "Gadget", Units: 2}, top[2])

	assert.Len(t, c.TopSellers(10), 4)
}

func TestCollector_ConcurrentEvents(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.OrderCompleted(completedOrder(fmt.Sprintf("ORD-%d", i), "10.00", line("Widget", 2)))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.TotalOrders())
	assert.True(t, decimal.RequireFromString("500.00").Equal(c.TotalRevenue()))
	assert.Equal(t, 100, c.ProductSales()["Widget"])
}
