package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	addItemQuery = `
		mutation AddItem($variantId: ID!, $qty: Int!) {
			addItemToOrder(productVariantId: $variantId, quantity: $qty) {
				__typename
				... on Order {
					id
					code
					state
					totalWithTax
					totalQuantity
					lines {
						id
						quantity
						linePriceWithTax
						productVariant {
							id
							name
							featuredAsset { preview }
							product { slug }
						}
					}
				}
				... on ErrorResult {
					errorCode
					message
				}
			}
		}`

	activeOrderQuery = `
		query {
			activeOrder {
				id
				code
				totalWithTax
				totalQuantity
				lines {
					id
					quantity
					linePriceWithTax
					productVariant {
						id
						name
						featuredAsset { preview }
						product { slug }
					}
				}
			}
		}`

	shippingMethodsQuery = `
		query {
			eligibleShippingMethods {
				id
				code
				name
				description
				price
				priceWithTax
			}
		}`

	setAddressQuery = `
		mutation SetOrderShippingAddress($input: CreateAddressInput!) {
			setOrderShippingAddress(input: $input) {
				__typename
				... on Order {
					id
					code
					shippingAddress {
						fullName
						city
						postalCode
						country
					}
				}
				... on ErrorResult {
					errorCode
					message
				}
			}
		}`

	setShippingMethodQuery = `
		mutation SetOrderShippingMethod($id: ID!) {
			setOrderShippingMethod(shippingMethodId: $id) {
				__typename
				... on Order {
					id
					shippingLines {
						shippingMethod { name }
						priceWithTax
					}
				}
				... on ErrorResult {
					errorCode
					message
				}
			}
		}`

	applyCouponQuery = `
		mutation ApplyCoupon($couponCode: String!) {
			applyCouponCode(couponCode: $couponCode) {
				__typename
				... on Order {
					id
					totalWithTax
					discounts {
						amountWithTax
					}
				}
				... on ErrorResult {
					errorCode
					message
				}
			}
		}`

	transitionStateQuery = `
		mutation TransitionOrder($state: String!) {
			transitionOrderToState(state: $state) {
				__typename
			}
		}`

	addPaymentQuery = `
		mutation AddPayment($input: PaymentInput!) {
			addPaymentToOrder(input: $input) {
				__typename
			}
		}`
)

// Client talks to the shop API. It is stateless with respect to sessions:
// the caller passes the shopper's session cookie in and gets any Set-Cookie
// issued by the API back, so handlers can forward it to the browser.
type Client struct {
	apiURL    string
	authToken string
	http      *http.Client
	log       logrus.FieldLogger
}

// Response carries the transport-level facts of a shop API call alongside
// the full response body, for handlers that forward upstream responses
// verbatim.
type Response struct {
	Status    int
	SetCookie string
	Body      []byte
}

// NewClient constructor. authToken may be empty for APIs without channel
// token auth.
func NewClient(apiURL, authToken string, log logrus.FieldLogger) *Client {
	return &Client{
		apiURL:    apiURL,
		authToken: authToken,
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       log,
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type envelope struct {
	Data map[string]json.RawMessage `json:"data"`
}

// query posts a GraphQL document and returns the raw response. Only
// transport failures are errors here; body parsing is the typed methods'
// job.
func (c *Client) query(ctx context.Context, cookie, query string, variables map[string]any) (*Response, error) {
	payload, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, errors.Wrap(err, "encoding shop API request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "building shop API request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("vendure-auth-token", c.authToken)
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling shop API")
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading shop API response")
	}

	return &Response{
		Status:    res.StatusCode,
		SetCookie: res.Header.Get("Set-Cookie"),
		Body:      body,
	}, nil
}

// field extracts one data field from the response body, reporting a
// MalformedResponseError when the body is not valid JSON.
func (c *Client) field(res *Response, name string) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(res.Body, &env); err != nil {
		return nil, &MalformedResponseError{Raw: res.Body}
	}
	return env.Data[name], nil
}

func (c *Client) orderMutation(ctx context.Context, cookie, query string, variables map[string]any, fieldName string) (*Response, *OrderResult, error) {
	res, err := c.query(ctx, cookie, query, variables)
	if err != nil {
		return nil, nil, err
	}
	raw, err := c.field(res, fieldName)
	if err != nil {
		return res, nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return res, nil, &MalformedResponseError{Raw: res.Body}
	}
	var result OrderResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return res, nil, &MalformedResponseError{Raw: res.Body}
	}
	return res, &result, nil
}

// AddItemToOrder adds (or sets) the given variant quantity on the active
// order. The API merges by variant: repeating a variant id adjusts the
// existing line.
func (c *Client) AddItemToOrder(ctx context.Context, cookie, variantID string, quantity int) (*Response, *OrderResult, error) {
	return c.orderMutation(ctx, cookie, addItemQuery, map[string]any{
		"variantId": variantID,
		"qty":       quantity,
	}, "addItemToOrder")
}

// ActiveOrder fetches the current active order, or nil when the session has
// none.
func (c *Client) ActiveOrder(ctx context.Context, cookie string) (*Response, *Order, error) {
	res, err := c.query(ctx, cookie, activeOrderQuery, nil)
	if err != nil {
		return nil, nil, err
	}
	raw, err := c.field(res, "activeOrder")
	if err != nil {
		return res, nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return res, nil, nil
	}
	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return res, nil, &MalformedResponseError{Raw: res.Body}
	}
	return res, &order, nil
}

// EligibleShippingMethods returns the shipping options the order's
// destination currently permits.
func (c *Client) EligibleShippingMethods(ctx context.Context, cookie string) (*Response, []ShippingMethod, error) {
	res, err := c.query(ctx, cookie, shippingMethodsQuery, nil)
	if err != nil {
		return nil, nil, err
	}
	raw, err := c.field(res, "eligibleShippingMethods")
	if err != nil {
		return res, nil, err
	}
	var methods []ShippingMethod
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &methods); err != nil {
			return res, nil, &MalformedResponseError{Raw: res.Body}
		}
	}
	return res, methods, nil
}

// SetOrderShippingAddress records the shipping address on the active order.
// Required before EligibleShippingMethods returns anything.
func (c *Client) SetOrderShippingAddress(ctx context.Context, cookie string, addr Address) (*Response, *OrderResult, error) {
	return c.orderMutation(ctx, cookie, setAddressQuery, map[string]any{
		"input": addr,
	}, "setOrderShippingAddress")
}

// SetOrderShippingMethod selects a shipping method on the active order.
func (c *Client) SetOrderShippingMethod(ctx context.Context, cookie, methodID string) (*Response, *OrderResult, error) {
	return c.orderMutation(ctx, cookie, setShippingMethodQuery, map[string]any{
		"id": methodID,
	}, "setOrderShippingMethod")
}

// ApplyCouponCode applies a promotion code to the active order. An invalid
// or expired code comes back as an ErrorResult.
func (c *Client) ApplyCouponCode(ctx context.Context, cookie, code string) (*Response, *OrderResult, error) {
	return c.orderMutation(ctx, cookie, applyCouponQuery, map[string]any{
		"couponCode": code,
	}, "applyCouponCode")
}

// TransitionOrderToState moves the active order to the named state.
func (c *Client) TransitionOrderToState(ctx context.Context, cookie, state string) error {
	res, err := c.query(ctx, cookie, transitionStateQuery, map[string]any{"state": state})
	if err != nil {
		return err
	}
	if _, err := c.field(res, "transitionOrderToState"); err != nil {
		return err
	}
	return nil
}

// AddPaymentToOrder records a payment against the active order.
func (c *Client) AddPaymentToOrder(ctx context.Context, cookie, method string, metadata map[string]string) error {
	res, err := c.query(ctx, cookie, addPaymentQuery, map[string]any{
		"input": map[string]any{
			"method":   method,
			"metadata": metadata,
		},
	})
	if err != nil {
		return err
	}
	if _, err := c.field(res, "addPaymentToOrder"); err != nil {
		return err
	}
	return nil
}
