// Package payment is the client for the Chapa payment gateway's REST API.
// The gateway hosts the actual payment page; this side only initializes a
// transaction and hands the shopper the checkout redirect URL.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// InitRequest is the input to Initialize. Amount is in major currency units
// as a decimal string; OrderCode ties the transaction back to the commerce
// order. FirstName, LastName and Phone fall back to placeholder values when
// empty, matching what the gateway requires.
type InitRequest struct {
	OrderCode string
	Amount    string
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// InitResult is a successful initialization: the URL to redirect the
// shopper to, and the transaction reference to match the webhook against.
type InitResult struct {
	CheckoutURL string
	TxRef       string
	Amount      string
	OrderCode   string
}

// GatewayError is a non-success answer from the gateway. Raw is the
// gateway's response body, surfaced to the caller untouched.
type GatewayError struct {
	Status int
	Raw    json.RawMessage
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway returned failure (HTTP %d)", e.Status)
}

// Client talks to the gateway. now is injectable for deterministic
// transaction references in tests.
type Client struct {
	baseURL   string
	secretKey string
	appBase   string
	http      *http.Client
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewClient constructs a gateway client. appBase is this storefront's
// public base URL, used for the webhook callback and the post-payment
// return page.
func NewClient(baseURL, secretKey, appBase string, log logrus.FieldLogger) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		appBase:   appBase,
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       log,
		now:       time.Now,
	}
}

// MinorToAmount converts a minor-unit price to the gateway's major-unit
// decimal string with two fraction digits.
func MinorToAmount(minor int64) string {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// TxRef builds the transaction reference for an order. The webhook extracts
// the order code back out of this, so the format is load-bearing.
func (c *Client) TxRef(orderCode string) string {
	if orderCode == "" {
		orderCode = "order"
	}
	return fmt.Sprintf("jsfashion-%s-%d", orderCode, c.now().UnixMilli())
}

type initResponse struct {
	Status string `json:"status"`
	Data   *struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

// Initialize posts a transaction to the gateway and returns the checkout
// redirect URL. A transport failure is returned as-is; any gateway-level
// failure (non-2xx, status != "success", missing checkout URL, or an
// unparseable body) is a *GatewayError carrying the raw response.
func (c *Client) Initialize(ctx context.Context, in InitRequest) (*InitResult, error) {
	txRef := c.TxRef(in.OrderCode)

	firstName := in.FirstName
	if firstName == "" {
		firstName = "Customer"
	}
	lastName := in.LastName
	if lastName == "" {
		lastName = "User"
	}
	phone := in.Phone
	if phone == "" {
		phone = "0912345678"
	}

	payload := map[string]any{
		"amount":       in.Amount,
		"currency":     "ETB",
		"email":        in.Email,
		"first_name":   firstName,
		"last_name":    lastName,
		"phone_number": phone,
		"tx_ref":       txRef,
		"callback_url": c.appBase + "/api/payment/webhook",
		"return_url":   c.appBase + "/checkout/success",

		"customization[title]":       "JSFashion Payment",
		"customization[description]": "Order payment on JSFashion",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encoding gateway request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building gateway request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "calling payment gateway")
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading gateway response")
	}

	var parsed initResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		c.log.WithField("body", string(raw)).Error("payment: non-JSON gateway response")
		return nil, &GatewayError{Status: res.StatusCode, Raw: json.RawMessage(fmt.Sprintf("{%q:%q}", "raw", string(raw)))}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 || parsed.Status != "success" || parsed.Data == nil || parsed.Data.CheckoutURL == "" {
		c.log.WithFields(logrus.Fields{"status": res.StatusCode, "gateway_status": parsed.Status}).Error("payment: initialization rejected")
		return nil, &GatewayError{Status: res.StatusCode, Raw: raw}
	}

	return &InitResult{
		CheckoutURL: parsed.Data.CheckoutURL,
		TxRef:       txRef,
		Amount:      in.Amount,
		OrderCode:   in.OrderCode,
	}, nil
}
