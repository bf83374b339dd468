package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/localshop/internal/domain/product"
)

// productResponse is the wire form of a catalog product.
type productResponse struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Category           string  `json:"category"`
	Description        string  `json:"description,omitempty"`
	Price              float64 `json:"price"`
	DiscountPercentage float64 `json:"discountPercentage,omitempty"`
	DiscountedPrice    float64 `json:"discountedPrice"`
	Quantity           int     `json:"quantity"`
	Available          int     `json:"available"`
}

// toProductResponse merges catalog data with the live availability the
// ledger tracks, so clients see stock net of open reservations.
func (h *Handler) toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:                 p.ID,
		Name:               p.Name,
		Category:           p.Category,
		Description:        p.Description,
		Price:              p.Price.InexactFloat64(),
		DiscountPercentage: p.DiscountPercentage.InexactFloat64(),
		DiscountedPrice:    p.DiscountedPrice().InexactFloat64(),
		Quantity:           p.Quantity,
		Available:          h.ledger.Available(p.ID),
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = h.toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.catalog.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toProductResponse(*p))
}
