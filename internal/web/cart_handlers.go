package web

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/yohannesjx/jsfashion-frontend/internal/cart"
	"github.com/yohannesjx/jsfashion-frontend/internal/cartsync"
)

// CartHandlers is the HTTP surface of the local cart engine: the store for
// state, the syncer for mutations that must reach the remote order.
type CartHandlers struct {
	store  *cart.Store
	syncer *cartsync.Syncer
	log    logrus.FieldLogger
}

// NewCartHandlers constructor
func NewCartHandlers(store *cart.Store, syncer *cartsync.Syncer, log logrus.FieldLogger) *CartHandlers {
	return &CartHandlers{store: store, syncer: syncer, log: log}
}

type cartView struct {
	Items       []cart.Item `json:"items"`
	Total       int64       `json:"total"`
	TotalItems  int         `json:"totalItems"`
	Discount    int64       `json:"discount"`
	DeliveryFee int64       `json:"deliveryFee"`
	CartOpen    bool        `json:"cartOpen"`
}

func (h *CartHandlers) view() cartView {
	snap := h.store.Snapshot()
	return cartView{
		Items:       snap.Items,
		Total:       snap.Total,
		TotalItems:  snap.TotalItems,
		Discount:    h.syncer.Discount(),
		DeliveryFee: h.syncer.DeliveryFee(),
		CartOpen:    h.store.CartOpen(),
	}
}

// GetCart handles GET /api/cart.
func (h *CartHandlers) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view())
}

// AddItem handles POST /api/cart/items: optimistic local add plus remote
// sync.
func (h *CartHandlers) AddItem(w http.ResponseWriter, r *http.Request) {
	var item cart.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if item.ID == "" || item.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id and a positive quantity are required"})
		return
	}

	if err := h.syncer.SyncAdd(r.Context(), item); err != nil {
		h.log.WithError(err).Error("cart: add failed")
	}
	writeJSON(w, http.StatusOK, h.view())
}

// UpdateQuantity handles PUT /api/cart/items/{id}: optimistic local update
// plus remote sync. Quantity zero removes the line.
func (h *CartHandlers) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.syncer.SyncQuantity(r.Context(), id, in.Quantity); err != nil {
		h.log.WithError(err).Error("cart: quantity update failed")
	}
	writeJSON(w, http.StatusOK, h.view())
}

// RemoveItem handles DELETE /api/cart/items/{id}. Removing an unknown id
// is a no-op.
func (h *CartHandlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.RemoveItem(r.Context(), id); err != nil {
		h.log.WithError(err).Error("cart: remove failed")
	}
	writeJSON(w, http.StatusOK, h.view())
}

// ApplyPromo handles POST /api/cart/promo: applies a promotion code to the
// remote order and reflects the resulting discount in the cart view.
func (h *CartHandlers) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if in.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code is required"})
		return
	}

	if err := h.syncer.ApplyCoupon(r.Context(), in.Code); err != nil {
		h.log.WithError(err).Error("cart: promo apply failed")
	}
	writeJSON(w, http.StatusOK, h.view())
}

// ClearCart handles POST /api/cart/clear.
func (h *CartHandlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		h.log.WithError(err).Error("cart: clear failed")
	}
	writeJSON(w, http.StatusOK, h.view())
}

// SetCartOpen handles POST /api/cart/open: the cart panel flag. Transient,
// nothing hits storage.
func (h *CartHandlers) SetCartOpen(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Open bool `json:"open"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	h.store.SetCartOpen(in.Open)
	writeJSON(w, http.StatusOK, h.view())
}
