package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/localshop/internal/domain/customer"
	"github.com/xenking/localshop/internal/domain/order"
)

type checkoutRequest struct {
	Customer customerPayload `json:"customer"`
}

type customerPayload struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

type orderItemResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type orderResponse struct {
	ID       string              `json:"id"`
	Status   string              `json:"status"`
	Items    []orderItemResponse `json:"items"`
	Subtotal float64             `json:"subtotal"`
	Tax      float64             `json:"tax"`
	Total    float64             `json:"total"`
}

type shipmentResponse struct {
	ID              string `json:"id"`
	TrackingNumber  string `json:"trackingNumber"`
	Carrier         string `json:"carrier"`
	Status          string `json:"status"`
	DeliveryAddress string `json:"deliveryAddress"`
}

type invoiceResponse struct {
	ID       string            `json:"id"`
	IssuedAt time.Time         `json:"issuedAt"`
	Customer string            `json:"customer"`
	Order    orderResponse     `json:"order"`
	Shipment *shipmentResponse `json:"shipment,omitempty"`
}

func toInvoiceResponse(inv *order.Invoice) invoiceResponse {
	o := inv.Order
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ProductID: item.Product.ID,
			Name:      item.Product.Name,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal.InexactFloat64(),
		}
	}

	resp := invoiceResponse{
		ID:       inv.ID,
		IssuedAt: inv.IssuedAt,
		Customer: inv.Customer.Username,
		Order: orderResponse{
			ID:       o.ID,
			Status:   string(o.Status),
			Items:    items,
			Subtotal: o.Subtotal.InexactFloat64(),
			Tax:      o.Tax.InexactFloat64(),
			Total:    o.Total.InexactFloat64(),
		},
	}
	if s := inv.Shipment; s != nil {
		resp.Shipment = &shipmentResponse{
			ID:              s.ID,
			TrackingNumber:  s.TrackingNumber,
			Carrier:         s.Carrier,
			Status:          string(s.Status),
			DeliveryAddress: s.DeliveryAddress,
		}
	}
	return resp
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Customer.Username == "" {
		writeError(w, http.StatusBadRequest, "customer.username is required")
		return
	}

	cust, err := h.resolveCustomer(r.Context(), req.Customer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// The pipeline needs somewhere to ship; reject before charging anyone.
	if cust.Address == "" {
		writeError(w, http.StatusBadRequest, "customer.address is required")
		return
	}

	invoice, err := h.pipeline.Process(r.Context(), c, cust, h.payment)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toInvoiceResponse(invoice))
}

// resolveCustomer looks the customer up by username, registering a new
// account on first checkout. Contact fields from the request refresh the
// stored record either way.
func (h *Handler) resolveCustomer(ctx context.Context, p customerPayload) (*customer.Customer, error) {
	cust, err := h.customers.GetByUsername(ctx, p.Username)
	switch {
	case errors.Is(err, customer.ErrNotFound):
		cust = &customer.Customer{ID: uuid.NewString(), Username: p.Username}
	case err != nil:
		return nil, errors.Wrap(err, "get customer")
	}

	if p.Name != "" {
		cust.Name = p.Name
	}
	if p.Email != "" {
		cust.Email = p.Email
	}
	if p.Phone != "" {
		cust.Phone = p.Phone
	}
	if p.Address != "" {
		cust.Address = p.Address
	}

	if err := h.customers.Upsert(ctx, cust); err != nil {
		return nil, errors.Wrap(err, "upsert customer")
	}
	return cust, nil
}
