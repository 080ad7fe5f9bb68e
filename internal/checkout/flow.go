// Package checkout sequences address entry, shipping method selection and
// payment initiation over the cart's current state.
package checkout

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yohannesjx/jsfashion-frontend/internal/cart"
	"github.com/yohannesjx/jsfashion-frontend/internal/commerce"
	"github.com/yohannesjx/jsfashion-frontend/internal/payment"
)

// CommerceAPI is the slice of the commerce client the flow needs.
type CommerceAPI interface {
	SetOrderShippingAddress(ctx context.Context, cookie string, addr commerce.Address) (*commerce.Response, *commerce.OrderResult, error)
	EligibleShippingMethods(ctx context.Context, cookie string) (*commerce.Response, []commerce.ShippingMethod, error)
	SetOrderShippingMethod(ctx context.Context, cookie, methodID string) (*commerce.Response, *commerce.OrderResult, error)
	ActiveOrder(ctx context.Context, cookie string) (*commerce.Response, *commerce.Order, error)
}

// Gateway initiates a hosted payment and returns the redirect URL.
type Gateway interface {
	Initialize(ctx context.Context, in payment.InitRequest) (*payment.InitResult, error)
}

// Contact is who is paying, passed through to the gateway.
type Contact struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
}

// Flow is the checkout state machine for one shopper session. Every
// transition records a user-facing message; failures keep the shopper where
// they are rather than crashing out of checkout.
type Flow struct {
	api     CommerceAPI
	gateway Gateway
	store   *cart.Store
	log     logrus.FieldLogger

	mu               sync.Mutex
	stage            Stage
	message          string
	cookie           string
	methods          []commerce.ShippingMethod
	shippingMethodID string
	paymentOption    string
	redirectURL      string
}

// NewFlow starts a flow at the address stage.
func NewFlow(api CommerceAPI, gateway Gateway, store *cart.Store, log logrus.FieldLogger) *Flow {
	return &Flow{
		api:     api,
		gateway: gateway,
		store:   store,
		log:     log,
		stage:   StageAddress,
	}
}

// SubmitAddress validates and records the shipping address. All of full
// name, street, city and country code are required; a missing field keeps
// the flow at the address stage with a validation message and makes no
// network call. On success the eligible shipping methods are fetched and
// the flow advances.
func (f *Flow) SubmitAddress(ctx context.Context, addr commerce.Address) Stage {
	if missing := missingAddressFields(addr); len(missing) > 0 {
		f.setMessage("Please fill in: " + strings.Join(missing, ", "))
		return f.Stage()
	}

	f.mu.Lock()
	cookie := f.cookie
	f.mu.Unlock()

	res, result, err := f.api.SetOrderShippingAddress(ctx, cookie, addr)
	if err != nil {
		f.log.WithError(err).Error("checkout: setting address failed")
		f.setMessage("Error saving address.")
		return f.Stage()
	}
	f.rememberCookie(res)

	if result.Err != nil {
		f.log.WithField("error_code", result.Err.ErrorCode).Warn("checkout: address rejected")
		f.setMessage("Please add an item to your cart first.")
		return f.Stage()
	}

	methods := f.fetchShippingMethods(ctx)

	f.mu.Lock()
	f.methods = methods
	f.stage = StageShippingMethod
	f.message = "Shipping address saved!"
	f.mu.Unlock()
	return StageShippingMethod
}

// SelectShippingMethod records the chosen method server-side. Failure
// leaves the flow where it is with an error message; there is no retry.
func (f *Flow) SelectShippingMethod(ctx context.Context, methodID string) Stage {
	f.mu.Lock()
	cookie := f.cookie
	f.mu.Unlock()

	res, result, err := f.api.SetOrderShippingMethod(ctx, cookie, methodID)
	if err != nil {
		f.log.WithError(err).Error("checkout: setting shipping method failed")
		f.setMessage("Failed to set shipping method.")
		return f.Stage()
	}
	f.rememberCookie(res)

	if result.Err != nil {
		f.log.WithField("error_code", result.Err.ErrorCode).Warn("checkout: shipping method rejected")
		f.setMessage("Failed to set shipping method.")
		return f.Stage()
	}

	f.mu.Lock()
	f.shippingMethodID = methodID
	f.stage = StagePaymentMethod
	f.message = "Shipping method selected!"
	f.mu.Unlock()
	return StagePaymentMethod
}

// SelectPaymentOption records the shopper's payment choice.
func (f *Flow) SelectPaymentOption(option string) {
	f.mu.Lock()
	f.paymentOption = option
	f.mu.Unlock()
}

// PlaceOrder runs the final transition. Both a shipping method and a
// payment option must be chosen. The gateway option initiates a hosted
// payment and, given a checkout URL, the flow ends in the redirect; cash on
// delivery completes immediately with no external call.
func (f *Flow) PlaceOrder(ctx context.Context, contact Contact) Stage {
	f.mu.Lock()
	methodID := f.shippingMethodID
	option := f.paymentOption
	cookie := f.cookie
	f.mu.Unlock()

	if methodID == "" || option == "" {
		f.setMessage("Please select a shipping and payment method first.")
		return f.Stage()
	}

	if option == OptionCashOnDelivery {
		if err := f.store.Clear(ctx); err != nil {
			f.log.WithError(err).Warn("checkout: cart not cleared after order")
		}
		f.mu.Lock()
		f.stage = StageSuccess
		f.message = "Order placed successfully."
		f.mu.Unlock()
		return StageSuccess
	}

	// Amount and order code come from the active order when there is one;
	// the local cart total is the fallback.
	amount := payment.MinorToAmount(f.store.Total())
	orderCode := ""
	if res, order, err := f.api.ActiveOrder(ctx, cookie); err == nil && order != nil {
		f.rememberCookie(res)
		orderCode = order.Code
		amount = payment.MinorToAmount(order.TotalWithTax)
	} else if err != nil {
		f.log.WithError(err).Warn("checkout: active order lookup failed")
	}

	first, last := splitName(contact.FullName)
	result, err := f.gateway.Initialize(ctx, payment.InitRequest{
		OrderCode: orderCode,
		Amount:    amount,
		Email:     contact.Email,
		FirstName: first,
		LastName:  last,
		Phone:     contact.Phone,
	})
	if err != nil {
		f.log.WithError(err).Error("checkout: payment initialization failed")
		f.mu.Lock()
		f.stage = StageFailed
		f.message = "Payment initialization failed."
		f.mu.Unlock()
		return StageFailed
	}

	f.mu.Lock()
	f.stage = StagePaymentInitiated
	f.redirectURL = result.CheckoutURL
	f.message = ""
	f.mu.Unlock()
	return StagePaymentInitiated
}

// Stage returns the current stage.
func (f *Flow) Stage() Stage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stage
}

// Message returns the last user-facing message.
func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// ShippingMethods returns the methods fetched after the address was saved.
func (f *Flow) ShippingMethods() []commerce.ShippingMethod {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]commerce.ShippingMethod, len(f.methods))
	copy(out, f.methods)
	return out
}

// RedirectURL returns the gateway checkout URL once payment is initiated.
func (f *Flow) RedirectURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.redirectURL
}

func (f *Flow) fetchShippingMethods(ctx context.Context) []commerce.ShippingMethod {
	f.mu.Lock()
	cookie := f.cookie
	f.mu.Unlock()

	res, methods, err := f.api.EligibleShippingMethods(ctx, cookie)
	if err != nil {
		f.log.WithError(err).Error("checkout: fetching shipping methods failed")
		return nil
	}
	f.rememberCookie(res)
	return methods
}

func (f *Flow) setMessage(msg string) {
	f.mu.Lock()
	f.message = msg
	f.mu.Unlock()
}

func (f *Flow) rememberCookie(res *commerce.Response) {
	if res == nil || res.SetCookie == "" {
		return
	}
	pair := res.SetCookie
	if i := strings.IndexByte(pair, ';'); i >= 0 {
		pair = pair[:i]
	}
	f.mu.Lock()
	f.cookie = pair
	f.mu.Unlock()
}

func missingAddressFields(addr commerce.Address) []string {
	var missing []string
	if strings.TrimSpace(addr.FullName) == "" {
		missing = append(missing, "full name")
	}
	if strings.TrimSpace(addr.StreetLine1) == "" {
		missing = append(missing, "street address")
	}
	if strings.TrimSpace(addr.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(addr.CountryCode) == "" {
		missing = append(missing, "country")
	}
	return missing
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
