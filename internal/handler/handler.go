package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/localshop/internal/domain/cart"
	"github.com/xenking/localshop/internal/domain/checkout"
	"github.com/xenking/localshop/internal/domain/customer"
	"github.com/xenking/localshop/internal/domain/inventory"
	"github.com/xenking/localshop/internal/domain/order"
	"github.com/xenking/localshop/internal/domain/product"
	"github.com/xenking/localshop/internal/domain/stats"
)

// sessionHeader identifies the shopper. Carts are keyed by its value.
const sessionHeader = "X-Session-ID"

// Handler serves the shop API, delegating business logic to the cart
// registry, checkout pipeline, and domain repositories.
type Handler struct {
	catalog   product.Repository
	customers customer.Repository
	carts     *cart.Registry
	pipeline  *checkout.Pipeline
	payment   checkout.PaymentMethod
	ledger    *inventory.Ledger
	stats     *stats.Collector
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	catalog product.Repository,
	customers customer.Repository,
	carts *cart.Registry,
	pipeline *checkout.Pipeline,
	payment checkout.PaymentMethod,
	ledger *inventory.Ledger,
	collector *stats.Collector,
) *Handler {
	return &Handler{
		catalog:   catalog,
		customers: customers,
		carts:     carts,
		pipeline:  pipeline,
		payment:   payment,
		ledger:    ledger,
		stats:     collector,
	}
}

// Routes returns the API router. Mount it under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)

	r.Get("/cart", h.getCart)
	r.Post("/cart/items", h.addCartItem)
	r.Delete("/cart/items/{productId}", h.removeCartItem)

	r.Post("/checkout", h.checkout)

	r.Get("/stats", h.getStats)
	r.Get("/inventory", h.getInventory)

	return r
}

// errorResponse is the body of every error reply. Extra stock detail is
// attached for reservation conflicts.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`

	ProductID string `json:"productId,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available int    `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorResponse{Code: code, Message: message})
}

// writeDomainError maps domain failures onto HTTP statuses: reservation
// conflicts are 409, declined payments 402, invalid requests 400, internal
// inconsistencies 500, unknown references 404.
func writeDomainError(w http.ResponseWriter, err error) {
	var stockErr *inventory.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Code:      http.StatusConflict,
			Message:   stockErr.Error(),
			ProductID: stockErr.ProductID,
			Requested: stockErr.Requested,
			Available: stockErr.Available,
		})
		return
	}

	var payErr *checkout.PaymentFailedError
	if errors.As(err, &payErr) {
		writeError(w, http.StatusPaymentRequired, payErr.Error())
		return
	}

	var stateErr *order.InvalidStateError
	if errors.As(err, &stateErr) {
		if stateErr.Internal {
			writeError(w, http.StatusInternalServerError, "order could not be completed")
			return
		}
		writeError(w, http.StatusBadRequest, stateErr.Error())
		return
	}

	if errors.Is(err, product.ErrNotFound) || errors.Is(err, customer.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeError(w, http.StatusInternalServerError, "internal error")
}

// sessionCart resolves the caller's cart from the session header. A missing
// header is a client error; carts are created on first use.
func (h *Handler) sessionCart(w http.ResponseWriter, r *http.Request) (*cart.Cart, bool) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing "+sessionHeader+" header")
		return nil, false
	}
	return h.carts.Get(sessionID), true
}
