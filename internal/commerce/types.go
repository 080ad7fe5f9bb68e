// Package commerce is the client for the remote commerce platform's shop
// API (GraphQL over HTTP POST). The platform owns the authoritative order;
// everything here is request plumbing and boundary validation.
package commerce

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Order is the authoritative order snapshot the shop API returns after any
// mutating call. Prices are in minor currency units.
type Order struct {
	ID            string      `json:"id"`
	Code          string      `json:"code"`
	State         string      `json:"state"`
	TotalWithTax  int64       `json:"totalWithTax"`
	TotalQuantity int         `json:"totalQuantity"`
	Lines         []OrderLine `json:"lines"`
	Discounts     []Discount  `json:"discounts"`
}

// Discount is a promotion applied to the order, e.g. by a coupon code.
type Discount struct {
	AmountWithTax int64 `json:"amountWithTax"`
}

// OrderLine is one product variant and quantity within an order.
type OrderLine struct {
	ID               string         `json:"id"`
	Quantity         int            `json:"quantity"`
	LinePriceWithTax int64          `json:"linePriceWithTax"`
	ProductVariant   ProductVariant `json:"productVariant"`
}

// ProductVariant identifies the purchasable configuration on a line.
type ProductVariant struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	FeaturedAsset *Asset `json:"featuredAsset"`
	Product       *struct {
		Slug string `json:"slug"`
	} `json:"product"`
}

// Asset is an image reference.
type Asset struct {
	Preview string `json:"preview"`
}

// ShippingMethod is one eligible shipping option for the active order.
type ShippingMethod struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        int64  `json:"price"`
	PriceWithTax int64  `json:"priceWithTax"`
}

// ErrorResult is the shop API's typed domain error, returned in place of an
// Order when a mutation is rejected.
type ErrorResult struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

func (e *ErrorResult) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
}

// Address is the shipping address input for setOrderShippingAddress.
type Address struct {
	FullName    string `json:"fullName"`
	StreetLine1 string `json:"streetLine1"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode"`
	CountryCode string `json:"countryCode"`
}

// OrderResult is the union the shop API returns from order mutations:
// either an Order or an ErrorResult, discriminated on __typename. Exactly
// one of the two fields is set.
type OrderResult struct {
	Order *Order
	Err   *ErrorResult
}

// UnmarshalJSON decodes the union by inspecting __typename. An Order
// typename yields Order; anything else is treated as an ErrorResult, which
// matches how the shop API tags its error hierarchy.
func (r *OrderResult) UnmarshalJSON(data []byte) error {
	var tag struct {
		Typename string `json:"__typename"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	if tag.Typename == "Order" {
		r.Order = &Order{}
		return json.Unmarshal(data, r.Order)
	}
	r.Err = &ErrorResult{}
	return json.Unmarshal(data, r.Err)
}

// MalformedResponseError reports a shop API body that could not be parsed
// as JSON. The raw body is kept so handlers can surface it.
type MalformedResponseError struct {
	Raw []byte
}

func (e *MalformedResponseError) Error() string {
	return "malformed shop API response"
}

// IsMalformed reports whether err is a MalformedResponseError.
func IsMalformed(err error) bool {
	var m *MalformedResponseError
	return errors.As(err, &m)
}
