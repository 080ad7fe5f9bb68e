package payment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

func fixedClock() time.Time {
	return time.UnixMilli(1700000000000)
}

// TestMinorToAmount verifies minor units render as a two-decimal string.
func TestMinorToAmount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "50.00", MinorToAmount(5000))
	assert.Equal(t, "0.05", MinorToAmount(5))
	assert.Equal(t, "123.45", MinorToAmount(12345))
	assert.Equal(t, "0.00", MinorToAmount(0))
}

// TestTxRef verifies the reference format the webhook depends on.
func TestTxRef(t *testing.T) {
	t.Parallel()
	c := NewClient("https://gw", "sk", "https://shop", testLogger())
	c.now = fixedClock

	assert.Equal(t, "jsfashion-ABC123-1700000000000", c.TxRef("ABC123"))
	assert.Equal(t, "jsfashion-order-1700000000000", c.TxRef(""))
}

// TestInitialize_Success verifies the payload shape and the parsed result.
func TestInitialize_Success(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"checkout_url":"https://checkout.chapa.co/pay/xyz"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", "https://jsfashion.et", testLogger())
	c.now = fixedClock

	result, err := c.Initialize(context.Background(), InitRequest{
		OrderCode: "ABC123",
		Amount:    "450.00",
		Email:     "abebe@example.et",
		FirstName: "Abebe",
		LastName:  "Bikila",
		Phone:     "0911000000",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.chapa.co/pay/xyz", result.CheckoutURL)
	assert.Equal(t, "jsfashion-ABC123-1700000000000", result.TxRef)
	assert.Equal(t, "450.00", result.Amount)
	assert.Equal(t, "ABC123", result.OrderCode)

	assert.Equal(t, "/transaction/initialize", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "450.00", gotPayload["amount"])
	assert.Equal(t, "ETB", gotPayload["currency"])
	assert.Equal(t, "abebe@example.et", gotPayload["email"])
	assert.Equal(t, "Abebe", gotPayload["first_name"])
	assert.Equal(t, "https://jsfashion.et/api/payment/webhook", gotPayload["callback_url"])
	assert.Equal(t, "https://jsfashion.et/checkout/success", gotPayload["return_url"])
}

// TestInitialize_ContactFallbacks verifies the placeholder contact values
// the gateway requires are filled in when absent.
func TestInitialize_ContactFallbacks(t *testing.T) {
	t.Parallel()

	var gotPayload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"status":"success","data":{"checkout_url":"https://checkout/x"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk", "https://shop", testLogger())
	_, err := c.Initialize(context.Background(), InitRequest{Amount: "10.00", Email: "a@b.c"})
	require.NoError(t, err)

	assert.Equal(t, "Customer", gotPayload["first_name"])
	assert.Equal(t, "User", gotPayload["last_name"])
	assert.Equal(t, "0912345678", gotPayload["phone_number"])
}

// TestInitialize_GatewayRejections verifies every non-success shape becomes
// a GatewayError carrying the raw body.
func TestInitialize_GatewayRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"failed status", http.StatusOK, `{"status":"failed","message":"Invalid API key"}`},
		{"http error", http.StatusUnauthorized, `{"status":"failed","message":"unauthorized"}`},
		{"missing checkout url", http.StatusOK, `{"status":"success","data":{}}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "sk", "https://shop", testLogger())
			_, err := c.Initialize(context.Background(), InitRequest{Amount: "10.00", Email: "a@b.c"})

			var gwErr *GatewayError
			require.ErrorAs(t, err, &gwErr)
			assert.JSONEq(t, tc.body, string(gwErr.Raw))
		})
	}
}

// TestInitialize_NonJSONBody verifies an unparseable gateway body still
// comes back as a GatewayError with the raw text captured.
func TestInitialize_NonJSONBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway down</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk", "https://shop", testLogger())
	_, err := c.Initialize(context.Background(), InitRequest{Amount: "10.00", Email: "a@b.c"})

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Contains(t, string(gwErr.Raw), "gateway down")
}

// TestInitialize_TransportError verifies a dead gateway is a plain error,
// not a GatewayError.
func TestInitialize_TransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, "sk", "https://shop", testLogger())
	_, err := c.Initialize(context.Background(), InitRequest{Amount: "10.00", Email: "a@b.c"})

	require.Error(t, err)
	var gwErr *GatewayError
	assert.False(t, strings.Contains(err.Error(), "gateway returned failure"))
	assert.NotErrorAs(t, err, &gwErr)
}
