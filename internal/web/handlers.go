// Package web exposes the storefront's backend proxy: thin handlers that
// reshape JSON between the browser and the external commerce and payment
// APIs. Nothing here retries; failures are logged and surfaced as HTTP
// errors scoped to the single request.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yohannesjx/jsfashion-frontend/internal/commerce"
	"github.com/yohannesjx/jsfashion-frontend/internal/payment"
)

// CommerceAPI is the slice of the commerce client the handlers need.
type CommerceAPI interface {
	AddItemToOrder(ctx context.Context, cookie, variantID string, quantity int) (*commerce.Response, *commerce.OrderResult, error)
	ActiveOrder(ctx context.Context, cookie string) (*commerce.Response, *commerce.Order, error)
	EligibleShippingMethods(ctx context.Context, cookie string) (*commerce.Response, []commerce.ShippingMethod, error)
	SetOrderShippingAddress(ctx context.Context, cookie string, addr commerce.Address) (*commerce.Response, *commerce.OrderResult, error)
	SetOrderShippingMethod(ctx context.Context, cookie, methodID string) (*commerce.Response, *commerce.OrderResult, error)
	TransitionOrderToState(ctx context.Context, cookie, state string) error
	AddPaymentToOrder(ctx context.Context, cookie, method string, metadata map[string]string) error
}

// Gateway initiates hosted payments.
type Gateway interface {
	Initialize(ctx context.Context, in payment.InitRequest) (*payment.InitResult, error)
}

// Handlers is the proxy handler set.
type Handlers struct {
	commerce CommerceAPI
	gateway  Gateway
	log      logrus.FieldLogger
}

// NewHandlers constructor
func NewHandlers(c CommerceAPI, g Gateway, log logrus.FieldLogger) *Handlers {
	return &Handlers{commerce: c, gateway: g, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// forwardUpstream writes an upstream body verbatim, carrying any session
// cookie the commerce API set along to the browser.
func forwardUpstream(w http.ResponseWriter, status int, res *commerce.Response) {
	w.Header().Set("Content-Type", "application/json")
	if res.SetCookie != "" {
		w.Header().Set("Set-Cookie", res.SetCookie)
	}
	w.WriteHeader(status)
	_, _ = w.Write(res.Body)
}

// AddToCart handles POST /api/cart/add: forwards the add-to-order mutation
// and relays the authoritative response, session cookie included.
func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ProductVariantID any `json:"productVariantId"`
		Quantity         int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	res, _, err := h.commerce.AddItemToOrder(r.Context(), r.Header.Get("Cookie"), idString(in.ProductVariantID), in.Quantity)
	if err != nil {
		h.log.WithError(err).Error("cart/add: upstream call failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to add item"})
		return
	}

	forwardUpstream(w, http.StatusOK, res)
}

// CartSummary handles GET /api/cart/summary: the current active order.
func (h *Handlers) CartSummary(w http.ResponseWriter, r *http.Request) {
	res, _, err := h.commerce.ActiveOrder(r.Context(), r.Header.Get("Cookie"))
	if err != nil {
		h.log.WithError(err).Error("cart/summary: upstream call failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch cart summary"})
		return
	}
	forwardUpstream(w, http.StatusOK, res)
}

// ShippingMethods handles GET|POST /api/shipping: the order's eligible
// shipping methods.
func (h *Handlers) ShippingMethods(w http.ResponseWriter, r *http.Request) {
	res, _, err := h.commerce.EligibleShippingMethods(r.Context(), r.Header.Get("Cookie"))
	if err != nil {
		h.log.WithError(err).Error("shipping: upstream call failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load shipping methods"})
		return
	}
	forwardUpstream(w, http.StatusOK, res)
}

// SetAddress handles POST /api/shipping/set-address. The upstream response
// is forwarded verbatim with its own status; a body the commerce API
// returns that is not JSON comes back as 502.
func (h *Handlers) SetAddress(w http.ResponseWriter, r *http.Request) {
	var addr commerce.Address
	if err := json.NewDecoder(r.Body).Decode(&addr); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	if addr.FullName == "" || addr.StreetLine1 == "" || addr.City == "" || addr.CountryCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required shipping address fields"})
		return
	}

	res, _, err := h.commerce.SetOrderShippingAddress(r.Context(), r.Header.Get("Cookie"), addr)
	switch {
	case err != nil && commerce.IsMalformed(err):
		h.log.Error("shipping/set-address: non-JSON upstream response")
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "Invalid upstream response",
			"raw":   string(res.Body),
		})
		return
	case err != nil:
		h.log.WithError(err).Error("shipping/set-address: upstream call failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to set shipping address"})
		return
	}

	forwardUpstream(w, res.Status, res)
}

// SetShippingMethod handles POST /api/shipping/set-method.
func (h *Handlers) SetShippingMethod(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ShippingMethodID any `json:"shippingMethodId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	res, _, err := h.commerce.SetOrderShippingMethod(r.Context(), r.Header.Get("Cookie"), idString(in.ShippingMethodID))
	if err != nil {
		h.log.WithError(err).Error("shipping/set-method: upstream call failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to set shipping method"})
		return
	}
	forwardUpstream(w, http.StatusOK, res)
}

// idString renders an id the browser may have sent as either a JSON string
// or a number.
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return decimal.NewFromFloat(id).String()
	default:
		return ""
	}
}

// amountString renders an amount sent as either a JSON string or a number.
func amountString(v any) string {
	switch a := v.(type) {
	case string:
		return a
	case float64:
		return decimal.NewFromFloat(a).String()
	default:
		return ""
	}
}

// InitializePayment handles POST /api/payment/initialize. Missing order
// code or amount fall back to the active order; email and amount are
// required after that. Gateway rejections come back as 400 with the
// gateway's own body in details.
func (h *Handlers) InitializePayment(w http.ResponseWriter, r *http.Request) {
	var in struct {
		OrderCode string `json:"orderCode"`
		Amount    any    `json:"amount"`
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Phone     string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	code := in.OrderCode
	amount := amountString(in.Amount)

	if code == "" || amount == "" {
		_, order, err := h.commerce.ActiveOrder(r.Context(), r.Header.Get("Cookie"))
		if err != nil {
			h.log.WithError(err).Warn("payment/initialize: active order lookup failed")
		} else if order != nil {
			code = order.Code
			amount = payment.MinorToAmount(order.TotalWithTax)
		}
	}

	if in.Email == "" || amount == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Missing required fields",
			"details": map[string]any{
				"required": []string{"email", "amount"},
				"received": map[string]any{"email": in.Email, "amount": in.Amount},
			},
		})
		return
	}

	result, err := h.gateway.Initialize(r.Context(), payment.InitRequest{
		OrderCode: code,
		Amount:    amount,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
	})
	if err != nil {
		var gwErr *payment.GatewayError
		if errors.As(err, &gwErr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "Payment initialization failed",
				"details": gwErr.Raw,
			})
			return
		}
		h.log.WithError(err).Error("payment/initialize: gateway call failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Payment initialization failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"checkoutUrl": result.CheckoutURL,
		"txRef":       result.TxRef,
		"amount":      result.Amount,
		"orderCode":   result.OrderCode,
	})
}

// PaymentWebhook handles POST /api/payment/webhook: the gateway's callback.
// A successful payment walks the order through ArrangingPayment, payment
// record and PaymentSettled; each step failure is logged and the sequence
// continues, since the gateway will not retry a 200.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Data struct {
			TxRef  string `json:"tx_ref"`
			Status string `json:"status"`
		} `json:"data"`
	}
	raw := json.RawMessage{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.log.WithError(err).Error("payment/webhook: unreadable payload")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Webhook processing failed"})
		return
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.log.WithError(err).Error("payment/webhook: unexpected payload shape")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Webhook processing failed"})
		return
	}

	if payload.Data.TxRef == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing tx_ref"})
		return
	}

	if payload.Data.Status == "success" {
		h.settleOrder(r.Context(), payload.Data.TxRef, raw)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// settleOrder marks the commerce order paid: transition to
// ArrangingPayment, attach the payment record, transition to
// PaymentSettled.
func (h *Handlers) settleOrder(ctx context.Context, txRef string, raw json.RawMessage) {
	orderCode := orderCodeFromTxRef(txRef)
	log := h.log.WithFields(logrus.Fields{"tx_ref": txRef, "order": orderCode})

	if err := h.commerce.TransitionOrderToState(ctx, "", "ArrangingPayment"); err != nil {
		log.WithError(err).Error("payment/webhook: ArrangingPayment transition failed")
	}
	if err := h.commerce.AddPaymentToOrder(ctx, "", "chapa", map[string]string{
		"tx_ref": txRef,
		"raw":    string(raw),
	}); err != nil {
		log.WithError(err).Error("payment/webhook: adding payment record failed")
	}
	if err := h.commerce.TransitionOrderToState(ctx, "", "PaymentSettled"); err != nil {
		log.WithError(err).Error("payment/webhook: PaymentSettled transition failed")
	}

	log.Info("payment/webhook: order marked as paid")
}

// orderCodeFromTxRef recovers the order code from a
// "jsfashion-<code>-<timestamp>" transaction reference.
func orderCodeFromTxRef(txRef string) string {
	parts := strings.Split(txRef, "-")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
