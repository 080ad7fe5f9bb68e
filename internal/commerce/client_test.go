package commerce

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

// shopStub serves a canned body and records what the client sent.
type shopStub struct {
	status    int
	body      string
	setCookie string

	gotCookie string
	gotAuth   string
	gotQuery  string
	gotVars   map[string]any
}

func (s *shopStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.gotCookie = r.Header.Get("Cookie")
		s.gotAuth = r.Header.Get("vendure-auth-token")

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.gotQuery = req.Query
		s.gotVars = req.Variables

		if s.setCookie != "" {
			w.Header().Set("Set-Cookie", s.setCookie)
		}
		w.Header().Set("Content-Type", "application/json")
		if s.status != 0 {
			w.WriteHeader(s.status)
		}
		_, _ = w.Write([]byte(s.body))
	}))
}

// TestAddItemToOrder_DecodesOrder verifies the union decodes an Order and
// the session cookie round-trips.
func TestAddItemToOrder_DecodesOrder(t *testing.T) {
	t.Parallel()
	stub := &shopStub{
		body: `{"data":{"addItemToOrder":{
			"__typename":"Order","id":"7","code":"ABC123","state":"AddingItems",
			"totalWithTax":4500,"totalQuantity":3,
			"lines":[{"id":"1","quantity":3,"linePriceWithTax":4500,
				"productVariant":{"id":"v1","name":"Linen Shirt",
					"featuredAsset":{"preview":"https://cdn/shirt.jpg"},
					"product":{"slug":"linen-shirt"}}}]}}}`,
		setCookie: "session=abc123; Path=/; HttpOnly",
	}
	srv := stub.server(t)
	defer srv.Close()

	c := NewClient(srv.URL, "channel-token", testLogger())
	res, result, err := c.AddItemToOrder(context.Background(), "session=old", "v1", 3)
	require.NoError(t, err)

	require.NotNil(t, result.Order)
	assert.Nil(t, result.Err)
	assert.Equal(t, "ABC123", result.Order.Code)
	assert.Equal(t, int64(4500), result.Order.TotalWithTax)
	require.Len(t, result.Order.Lines, 1)
	assert.Equal(t, "v1", result.Order.Lines[0].ProductVariant.ID)
	assert.Equal(t, "https://cdn/shirt.jpg", result.Order.Lines[0].ProductVariant.FeaturedAsset.Preview)

	assert.Equal(t, "session=abc123; Path=/; HttpOnly", res.SetCookie)
	assert.Equal(t, "session=old", stub.gotCookie)
	assert.Equal(t, "channel-token", stub.gotAuth)
	assert.Equal(t, "v1", stub.gotVars["variantId"])
	assert.Equal(t, float64(3), stub.gotVars["qty"])
}

// TestAddItemToOrder_DecodesErrorResult verifies a non-Order typename comes
// back as a typed domain error, not a transport failure.
func TestAddItemToOrder_DecodesErrorResult(t *testing.T) {
	t.Parallel()
	stub := &shopStub{
		body: `{"data":{"addItemToOrder":{
			"__typename":"InsufficientStockError",
			"errorCode":"INSUFFICIENT_STOCK_ERROR","message":"Only 2 left"}}}`,
	}
	srv := stub.server(t)
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	_, result, err := c.AddItemToOrder(context.Background(), "", "v1", 99)
	require.NoError(t, err)

	assert.Nil(t, result.Order)
	require.NotNil(t, result.Err)
	assert.Equal(t, "INSUFFICIENT_STOCK_ERROR", result.Err.ErrorCode)
}

// TestAddItemToOrder_MalformedBody verifies a non-JSON body is reported as
// a MalformedResponseError carrying the raw bytes.
func TestAddItemToOrder_MalformedBody(t *testing.T) {
	t.Parallel()
	stub := &shopStub{body: `<html>upstream exploded</html>`}
	srv := stub.server(t)
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	res, _, err := c.AddItemToOrder(context.Background(), "", "v1", 1)

	require.Error(t, err)
	assert.True(t, IsMalformed(err))
	var m *MalformedResponseError
	require.ErrorAs(t, err, &m)
	assert.Contains(t, string(m.Raw), "upstream exploded")
	require.NotNil(t, res)
	assert.Equal(t, http.StatusOK, res.Status)
}

// TestActiveOrder_NullMeansNoOrder verifies a null activeOrder is nil, not
// an error.
func TestActiveOrder_NullMeansNoOrder(t *testing.T) {
	t.Parallel()
	stub := &shopStub{body: `{"data":{"activeOrder":null}}`}
	srv := stub.server(t)
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	_, order, err := c.ActiveOrder(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, order)
}

// TestApplyCouponCode_DecodesDiscounts verifies the coupon mutation sends
// the code and parses the order's discount entries.
func TestApplyCouponCode_DecodesDiscounts(t *testing.T) {
	t.Parallel()
	stub := &shopStub{
		body: `{"data":{"applyCouponCode":{"__typename":"Order","id":"1","totalWithTax":40000,"discounts":[{"amountWithTax":5000}]}}}`,
	}
	srv := stub.server(t)
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	_, result, err := c.ApplyCouponCode(context.Background(), "", "SAVE50")
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	require.Len(t, result.Order.Discounts, 1)
	assert.Equal(t, int64(5000), result.Order.Discounts[0].AmountWithTax)
	assert.Equal(t, "SAVE50", stub.gotVars["couponCode"])
}

// TestEligibleShippingMethods_Decodes verifies the methods list parses with
// prices intact.
func TestEligibleShippingMethods_Decodes(t *testing.T) {
	t.Parallel()
	stub := &shopStub{
		body: `{"data":{"eligibleShippingMethods":[
			{"id":"1","code":"standard","name":"Standard","price":4000,"priceWithTax":5000},
			{"id":"2","code":"express","name":"Express","price":10000,"priceWithTax":12000}]}}`,
	}
	srv := stub.server(t)
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	_, methods, err := c.EligibleShippingMethods(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, methods, 2)
	assert.Equal(t, "Standard", methods[0].Name)
	assert.Equal(t, int64(5000), methods[0].PriceWithTax)
}

// TestSetOrderShippingAddress_SendsInput verifies the address goes out as
// the mutation input and the upstream status is surfaced.
func TestSetOrderShippingAddress_SendsInput(t *testing.T) {
	t.Parallel()
	stub := &shopStub{
		status: http.StatusOK,
		body: `{"data":{"setOrderShippingAddress":{
			"__typename":"Order","id":"7","code":"ABC123"}}}`,
	}
	srv := stub.server(t)
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	res, result, err := c.SetOrderShippingAddress(context.Background(), "", Address{
		FullName:    "Abebe Bikila",
		StreetLine1: "Bole Road",
		City:        "Addis Ababa",
		PostalCode:  "1000",
		CountryCode: "ET",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.Equal(t, http.StatusOK, res.Status)

	input, ok := stub.gotVars["input"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Abebe Bikila", input["fullName"])
	assert.Equal(t, "ET", input["countryCode"])
}

// TestTransitionOrderToState verifies the state variable is passed through.
func TestTransitionOrderToState(t *testing.T) {
	t.Parallel()
	stub := &shopStub{body: `{"data":{"transitionOrderToState":{"__typename":"Order"}}}`}
	srv := stub.server(t)
	defer srv.Close()

	c := NewClient(srv.URL, "", testLogger())
	require.NoError(t, c.TransitionOrderToState(context.Background(), "", "ArrangingPayment"))
	assert.Equal(t, "ArrangingPayment", stub.gotVars["state"])
}

// TestOrderResult_UnmarshalJSON covers the union tag handling directly.
func TestOrderResult_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	var asOrder OrderResult
	require.NoError(t, json.Unmarshal([]byte(`{"__typename":"Order","code":"X1"}`), &asOrder))
	require.NotNil(t, asOrder.Order)
	assert.Equal(t, "X1", asOrder.Order.Code)

	var asErr OrderResult
	require.NoError(t, json.Unmarshal([]byte(`{"__typename":"NoActiveOrderError","errorCode":"NO_ACTIVE_ORDER_ERROR","message":"none"}`), &asErr))
	assert.Nil(t, asErr.Order)
	require.NotNil(t, asErr.Err)
	assert.Equal(t, "NO_ACTIVE_ORDER_ERROR", asErr.Err.ErrorCode)
}
