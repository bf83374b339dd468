package handler

import (
	"net/http"
)

type sellerResponse struct {
	Name  string `json:"name"`
	Units int    `json:"units"`
}

type statsResponse struct {
	TotalOrders  int              `json:"totalOrders"`
	TotalRevenue float64          `json:"totalRevenue"`
	TopSellers   []sellerResponse `json:"topSellers"`
}

func (h *Handler) getStats(w http.ResponseWriter, _ *http.Request) {
	top := h.stats.TopSellers(5)
	sellers := make([]sellerResponse, len(top))
	for i, s := range top {
		sellers[i] = sellerResponse{Name: s.Name, Units: s.Units}
	}

	writeJSON(w, http.StatusOK, statsResponse{
		TotalOrders:  h.stats.TotalOrders(),
		TotalRevenue: h.stats.TotalRevenue().InexactFloat64(),
		TopSellers:   sellers,
	})
}

type inventoryRowResponse struct {
	ProductID string `json:"productId"`
	Total     int    `json:"total"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

func (h *Handler) getInventory(w http.ResponseWriter, _ *http.Request) {
	rows := h.ledger.Snapshot()
	resp := make([]inventoryRowResponse, len(rows))
	for i, row := range rows {
		resp[i] = inventoryRowResponse{
			ProductID: row.ProductID,
			Total:     row.Total,
			Reserved:  row.Reserved,
			Available: row.Available,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
