package web

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/yohannesjx/jsfashion-frontend/internal/checkout"
	"github.com/yohannesjx/jsfashion-frontend/internal/commerce"
)

// CheckoutHandlers is the HTTP surface of the checkout flow.
type CheckoutHandlers struct {
	flow *checkout.Flow
	log  logrus.FieldLogger
}

// NewCheckoutHandlers constructor
func NewCheckoutHandlers(flow *checkout.Flow, log logrus.FieldLogger) *CheckoutHandlers {
	return &CheckoutHandlers{flow: flow, log: log}
}

type checkoutView struct {
	Stage       string                    `json:"stage"`
	Message     string                    `json:"message,omitempty"`
	Methods     []commerce.ShippingMethod `json:"shippingMethods,omitempty"`
	RedirectURL string                    `json:"redirectUrl,omitempty"`
}

func (h *CheckoutHandlers) view() checkoutView {
	return checkoutView{
		Stage:       h.flow.Stage().String(),
		Message:     h.flow.Message(),
		Methods:     h.flow.ShippingMethods(),
		RedirectURL: h.flow.RedirectURL(),
	}
}

// State handles GET /api/checkout.
func (h *CheckoutHandlers) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view())
}

// SubmitAddress handles POST /api/checkout/address.
func (h *CheckoutHandlers) SubmitAddress(w http.ResponseWriter, r *http.Request) {
	var addr commerce.Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	h.flow.SubmitAddress(r.Context(), addr)
	writeJSON(w, http.StatusOK, h.view())
}

// SelectShippingMethod handles POST /api/checkout/shipping-method.
func (h *CheckoutHandlers) SelectShippingMethod(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ShippingMethodID string `json:"shippingMethodId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	h.flow.SelectShippingMethod(r.Context(), in.ShippingMethodID)
	writeJSON(w, http.StatusOK, h.view())
}

// SelectPaymentOption handles POST /api/checkout/payment-option.
func (h *CheckoutHandlers) SelectPaymentOption(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Option string `json:"option"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	h.flow.SelectPaymentOption(in.Option)
	writeJSON(w, http.StatusOK, h.view())
}

// PlaceOrder handles POST /api/checkout/place-order.
func (h *CheckoutHandlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var contact checkout.Contact
	if err := json.NewDecoder(r.Body).Decode(&contact); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	h.flow.PlaceOrder(r.Context(), contact)
	writeJSON(w, http.StatusOK, h.view())
}
