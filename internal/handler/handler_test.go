package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/localshop/internal/domain/cart"
	"github.com/xenking/localshop/internal/domain/checkout"
	"github.com/xenking/localshop/internal/domain/customer"
	"github.com/xenking/localshop/internal/domain/inventory"
	"github.com/xenking/localshop/internal/domain/order"
	"github.com/xenking/localshop/internal/domain/product"
	"github.com/xenking/localshop/internal/domain/stats"
)

type mockCatalog struct {
	products map[string]product.Product
}

func (m *mockCatalog) List(context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockCatalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockCatalog) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockCatalog) UpdateQuantity(_ context.Context, id string, quantity int) error {
	p, ok := m.products[id]
	if !ok {
		return product.ErrNotFound
	}
	p.Quantity = quantity
	m.products[id] = p
	return nil
}

type mockCustomers struct {
	byUsername map[string]*customer.Customer
}

func (m *mockCustomers) GetByUsername(_ context.Context, username string) (*customer.Customer, error) {
	c, ok := m.byUsername[username]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

func (m *mockCustomers) Upsert(_ context.Context, c *customer.Customer) error {
	m.byUsername[c.Username] = c
	return nil
}

type mockOrderRepo struct{}
type mockShipmentRepo struct{}
type mockInvoiceRepo struct{}

func (mockOrderRepo) Create(context.Context, *order.Order) error       { return nil }
func (mockShipmentRepo) Create(context.Context, *order.Shipment) error { return nil }
func (mockInvoiceRepo) Create(context.Context, *order.Invoice) error   { return nil }

type fixture struct {
	handler *Handler
	router  chi.Router
	catalog *mockCatalog
	ledger  *inventory.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog := &mockCatalog{products: map[string]product.Product{
		"p1": {ID: "p1", Name: "Apple", Category: "fruit", Price: decimal.RequireFromString("2.50"), Quantity: 10},
		"p2": {ID: "p2", Name: "Bread", Category: "bakery", Price: decimal.RequireFromString("4.00"), Quantity: 3},
	}}
	ledger := inventory.NewLedger(inventory.WithStockWriter(catalog))
	for id, p := range catalog.products {
		ledger.SetStock(id, p.Quantity)
	}

	customers := &mockCustomers{byUsername: make(map[string]*customer.Customer)}
	pipeline := checkout.NewPipeline(ledger, catalog, mockOrderRepo{}, mockShipmentRepo{}, mockInvoiceRepo{}, nil)
	collector := stats.NewCollector()
	pipeline.Subscribe(collector.OrderCompleted)

	h := NewHandler(
		catalog,
		customers,
		cart.NewRegistry(ledger, catalog, time.Hour),
		pipeline,
		checkout.NewCreditCard(nil),
		ledger,
		collector,
	)
	return &fixture{handler: h, router: h.Routes(), catalog: catalog, ledger: ledger}
}

func (f *fixture) do(t *testing.T, method, target, session string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestListProducts(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/products", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	products := decode[[]productResponse](t, w)
	require.Len(t, products, 2)
}

func TestGetProduct(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/products/p1", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	p := decode[productResponse](t, w)
	assert.Equal(t, "Apple", p.Name)
	assert.Equal(t, 2.5, p.Price)
	assert.Equal(t, 10, p.Available)
}

func TestGetProduct_NotFound(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/products/nope", "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCart_RequiresSession(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/cart", "", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[errorResponse](t, w)
	assert.Contains(t, resp.Message, sessionHeader)
}

func TestAddCartItem(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/cart/items", "s1", addItemRequest{ProductID: "p1", Quantity: 3})

	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[cartResponse](t, w)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 3, resp.Items[0].Quantity)
	assert.Equal(t, 15, resp.Items[0].ExpiresInMinutes)
	assert.InDelta(t, 7.5, resp.Total, 0.001)

	// Reservation visible in availability.
	assert.Equal(t, 7, f.ledger.Available("p1"))
}

func TestAddCartItem_InsufficientStock(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/cart/items", "s1", addItemRequest{ProductID: "p2", Quantity: 5})

	require.Equal(t, http.StatusConflict, w.Code)
	resp := decode[errorResponse](t, w)
	assert.Equal(t, "p2", resp.ProductID)
	assert.Equal(t, 5, resp.Requested)
	assert.Equal(t, 3, resp.Available)
}

func TestAddCartItem_UnknownProduct(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/cart/items", "s1", addItemRequest{ProductID: "nope", Quantity: 1})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddCartItem_BadRequest(t *testing.T) {
	f := newFixture(t)

	for _, req := range []addItemRequest{
		{ProductID: "", Quantity: 1},
		{ProductID: "p1", Quantity: 0},
		{ProductID: "p1", Quantity: -2},
	} {
		w := f.do(t, http.MethodPost, "/cart/items", "s1", req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestRemoveCartItem(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/cart/items", "s1", addItemRequest{ProductID: "p1", Quantity: 3}).Code)

	w := f.do(t, http.MethodDelete, "/cart/items/p1", "s1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[cartResponse](t, w)
	assert.Empty(t, resp.Items)
	assert.Equal(t, 10, f.ledger.Available("p1"))
}

func TestRemoveCartItem_NotInCart(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodDelete, "/cart/items/p1", "s1", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCarts_IsolatedPerSession(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/cart/items", "alice", addItemRequest{ProductID: "p1", Quantity: 2}).Code)

	w := f.do(t, http.MethodGet, "/cart", "bob", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[cartResponse](t, w)
	assert.Empty(t, resp.Items)
}

func checkoutBody() checkoutRequest {
	return checkoutRequest{Customer: customerPayload{
		Username: "alice",
		Name:     "Alice Smith",
		Email:    "alice@example.com",
		Address:  "1 Main St",
	}}
}

func TestCheckout_Success(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/cart/items", "s1", addItemRequest{ProductID: "p1", Quantity: 4}).Code)

	w := f.do(t, http.MethodPost, "/checkout", "s1", checkoutBody())

	require.Equal(t, http.StatusCreated, w.Code)
	inv := decode[invoiceResponse](t, w)
	assert.Equal(t, "alice", inv.Customer)
	assert.Equal(t, string(order.StatusConfirmed), inv.Order.Status)
	assert.InDelta(t, 10.00, inv.Order.Subtotal, 0.001)
	assert.InDelta(t, 1.00, inv.Order.Tax, 0.001)
	assert.InDelta(t, 11.00, inv.Order.Total, 0.001)
	require.NotNil(t, inv.Shipment)
	assert.Equal(t, "1 Main St", inv.Shipment.DeliveryAddress)

	// Stock consumed, cart drained.
	assert.Equal(t, 6, f.ledger.TotalStock("p1"))
	assert.Equal(t, 0, f.ledger.Reserved("p1"))
	empty := decode[cartResponse](t, f.do(t, http.MethodGet, "/cart", "s1", nil))
	assert.Empty(t, empty.Items)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/checkout", "s1", checkoutBody())

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckout_MissingUsername(t *testing.T) {
	f := newFixture(t)

	body := checkoutBody()
	body.Customer.Username = ""
	w := f.do(t, http.MethodPost, "/checkout", "s1", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckout_MissingAddress(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/cart/items", "s1", addItemRequest{ProductID: "p1", Quantity: 1}).Code)

	body := checkoutBody()
	body.Customer.Address = ""
	w := f.do(t, http.MethodPost, "/checkout", "s1", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	// Nothing charged or committed.
	assert.Equal(t, 10, f.ledger.TotalStock("p1"))
}

func TestCheckout_ReusesCustomerRecord(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/cart/items", "s1", addItemRequest{ProductID: "p1", Quantity: 1}).Code)
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/checkout", "s1", checkoutBody()).Code)

	// Second checkout for the same username omits the address; the stored
	// record fills it in.
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/cart/items", "s2", addItemRequest{ProductID: "p1", Quantity: 1}).Code)
	body := checkoutRequest{Customer: customerPayload{Username: "alice"}}
	w := f.do(t, http.MethodPost, "/checkout", "s2", body)

	require.Equal(t, http.StatusCreated, w.Code)
	inv := decode[invoiceResponse](t, w)
	require.NotNil(t, inv.Shipment)
	assert.Equal(t, "1 Main St", inv.Shipment.DeliveryAddress)
}

func TestStats_ReflectCompletedOrders(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/cart/items", "s1", addItemRequest{ProductID: "p1", Quantity: 2}).Code)
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/checkout", "s1", checkoutBody()).Code)

	w := f.do(t, http.MethodGet, "/stats", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[statsResponse](t, w)
	assert.Equal(t, 1, resp.TotalOrders)
	assert.InDelta(t, 5.50, resp.TotalRevenue, 0.001)
	require.Len(t, resp.TopSellers, 1)
	assert.Equal(t, "Apple", resp.TopSellers[0].Name)
	assert.Equal(t, 2, resp.TopSellers[0].Units)
}

func TestInventorySnapshot(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/cart/items", "s1", addItemRequest{ProductID: "p1", Quantity: 3}).Code)

	w := f.do(t, http.MethodGet, "/inventory", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	rows := decode[[]inventoryRowResponse](t, w)
	require.Len(t, rows, 2)
	assert.Equal(t, inventoryRowResponse{ProductID: "p1", Total: 10, Reserved: 3, Available: 7}, rows[0])
	assert.Equal(t, inventoryRowResponse{ProductID: "p2", Total: 3, Reserved: 0, Available: 3}, rows[1])
}
