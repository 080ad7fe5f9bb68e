package checkout

// Stage is where the shopper is in the checkout flow.
type Stage string

const (
	// StageAddress collects the shipping address.
	StageAddress Stage = "address"
	// StageShippingMethod lets the shopper pick among eligible methods.
	StageShippingMethod Stage = "shipping_method"
	// StagePaymentMethod lets the shopper pick a payment option.
	StagePaymentMethod Stage = "payment_method"
	// StagePaymentInitiated means the gateway accepted the transaction and
	// the shopper is being redirected; the gateway's flow takes over.
	StagePaymentInitiated Stage = "payment_initiated"
	// StageSuccess is a completed order.
	StageSuccess Stage = "success"
	// StageFailed is a payment that could not be initiated.
	StageFailed Stage = "failed"
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	return string(s)
}

// Payment options offered at checkout.
const (
	// OptionGateway pays through the hosted gateway page.
	OptionGateway = "chapa"
	// OptionCashOnDelivery settles on delivery, with no external call.
	OptionCashOnDelivery = "cod"
)
