package handler

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/localshop/internal/domain/cart"
	"github.com/xenking/localshop/internal/domain/product"
)

type cartItemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`

	// ExpiresInMinutes is how long the reservation holds, rounded up.
	ExpiresInMinutes int `json:"expiresInMinutes"`
}

type cartResponse struct {
	Items []cartItemResponse `json:"items"`
	Total float64            `json:"total"`
}

func (h *Handler) cartResponse(r *http.Request, c *cart.Cart) (cartResponse, error) {
	items := c.Items()
	total, err := c.Total(r.Context())
	if err != nil {
		return cartResponse{}, err
	}

	resp := cartResponse{
		Items: make([]cartItemResponse, len(items)),
		Total: total.InexactFloat64(),
	}
	now := time.Now()
	for i, item := range items {
		minutes := int(math.Ceil(item.ExpiresAt.Sub(now).Minutes()))
		if minutes < 0 {
			minutes = 0
		}
		resp.Items[i] = cartItemResponse{
			ProductID:        item.Product.ID,
			Name:             item.Product.Name,
			Quantity:         item.Quantity,
			UnitPrice:        item.Product.DiscountedPrice().InexactFloat64(),
			ExpiresInMinutes: minutes,
		}
	}
	return resp, nil
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}

	resp, err := h.cartResponse(r, c)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	p, err := h.catalog.GetByID(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeDomainError(w, err)
		return
	}

	if err := c.AddItem(p, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}

	resp, err := h.cartResponse(r, c)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}

	productID := chi.URLParam(r, "productId")
	if err := c.RemoveItem(productID); err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			writeError(w, http.StatusNotFound, "item not in cart")
			return
		}
		writeDomainError(w, err)
		return
	}

	resp, err := h.cartResponse(r, c)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
