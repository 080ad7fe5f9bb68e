package web

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// NewRouter wires the proxy, cart and checkout routes with tracing and
// request logging.
func NewRouter(h *Handlers, ch *CartHandlers, co *CheckoutHandlers, log logrus.FieldLogger) *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("storefront"))
	r.Use(requestLogger(log))

	// Proxy routes: thin reshaping in front of the external APIs.
	r.HandleFunc("/api/cart/add", h.AddToCart).Methods(http.MethodPost)
	r.HandleFunc("/api/cart/summary", h.CartSummary).Methods(http.MethodGet)
	r.HandleFunc("/api/shipping", h.ShippingMethods).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/api/shipping/set-address", h.SetAddress).Methods(http.MethodPost)
	r.HandleFunc("/api/shipping/set-method", h.SetShippingMethod).Methods(http.MethodPost)
	r.HandleFunc("/api/payment/initialize", h.InitializePayment).Methods(http.MethodPost)
	r.HandleFunc("/api/payment/webhook", h.PaymentWebhook).Methods(http.MethodPost)

	// Cart engine routes: the local mirror of the remote order.
	r.HandleFunc("/api/cart", ch.GetCart).Methods(http.MethodGet)
	r.HandleFunc("/api/cart/items", ch.AddItem).Methods(http.MethodPost)
	r.HandleFunc("/api/cart/items/{id}", ch.UpdateQuantity).Methods(http.MethodPut)
	r.HandleFunc("/api/cart/items/{id}", ch.RemoveItem).Methods(http.MethodDelete)
	r.HandleFunc("/api/cart/promo", ch.ApplyPromo).Methods(http.MethodPost)
	r.HandleFunc("/api/cart/clear", ch.ClearCart).Methods(http.MethodPost)
	r.HandleFunc("/api/cart/open", ch.SetCartOpen).Methods(http.MethodPost)

	// Checkout flow routes.
	r.HandleFunc("/api/checkout", co.State).Methods(http.MethodGet)
	r.HandleFunc("/api/checkout/address", co.SubmitAddress).Methods(http.MethodPost)
	r.HandleFunc("/api/checkout/shipping-method", co.SelectShippingMethod).Methods(http.MethodPost)
	r.HandleFunc("/api/checkout/payment-option", co.SelectPaymentOption).Methods(http.MethodPost)
	r.HandleFunc("/api/checkout/place-order", co.PlaceOrder).Methods(http.MethodPost)

	return r
}
