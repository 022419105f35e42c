package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(message, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	r := NewRazorpay("key_id", "key_secret", "hook_secret", nil, RetryPolicy{Attempts: 1})

	good := sign("order_abc|pay_xyz", "key_secret")
	assert.True(t, r.VerifySignature("order_abc", "pay_xyz", good))

	// Wrong secret, swapped ids, truncated and empty signatures all fail.
	assert.False(t, r.VerifySignature("order_abc", "pay_xyz", sign("order_abc|pay_xyz", "other")))
	assert.False(t, r.VerifySignature("pay_xyz", "order_abc", good))
	assert.False(t, r.VerifySignature("order_abc", "pay_xyz", good[:10]))
	assert.False(t, r.VerifySignature("order_abc", "pay_xyz", ""))
	assert.False(t, r.VerifySignature("", "pay_xyz", good))
}

func TestVerifyWebhookSignature(t *testing.T) {
	r := NewRazorpay("key_id", "key_secret", "hook_secret", nil, RetryPolicy{Attempts: 1})
	payload := []byte(`{"event":"payment.captured"}`)

	assert.True(t, r.VerifyWebhookSignature(payload, sign(string(payload), "hook_secret")))
	// The webhook secret is distinct from the key secret.
	assert.False(t, r.VerifyWebhookSignature(payload, sign(string(payload), "key_secret")))
	assert.False(t, r.VerifyWebhookSignature(payload, ""))
	assert.False(t, r.VerifyWebhookSignature(nil, sign("", "hook_secret")))
}

func TestCreateOrder(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		user, pass, ok := req.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key_id", user)
		assert.Equal(t, "key_secret", pass)
		assert.Equal(t, "/orders", req.URL.Path)
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       "order_test123",
			"amount":   got["amount"],
			"currency": got["currency"],
			"receipt":  got["receipt"],
		})
	}))
	defer srv.Close()

	r := NewRazorpay("key_id", "key_secret", "hook_secret", srv.Client(), RetryPolicy{Attempts: 1})
	r.baseURL = srv.URL

	order, err := r.CreateOrder(context.Background(), 62540, "INR", "BOOK-20260829-00042", map[string]string{"booking_id": "9"})
	require.NoError(t, err)
	assert.Equal(t, "order_test123", order.ID)
	assert.Equal(t, int64(62540), order.AmountCents)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "BOOK-20260829-00042", order.Receipt)

	assert.Equal(t, float64(62540), got["amount"])
	assert.Equal(t, float64(1), got["payment_capture"])
	assert.Equal(t, map[string]interface{}{"booking_id": "9"}, got["notes"])
}

func TestCreateOrderRetriesThenUnavailable(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		http.Error(w, `{"error":"server busy"}`, http.StatusBadGateway)
	}))
	defer srv.Close()

	// Use an instant sleeper so the test does not wait out real backoff.
	r := NewRazorpay("key_id", "key_secret", "hook_secret", srv.Client(),
		RetryPolicy{Attempts: 3, Sleep: noSleep})
	r.baseURL = srv.URL

	_, err := r.CreateOrder(context.Background(), 100, "INR", "r1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, calls)
}

func TestFetchPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/payments/pay_77", req.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       "pay_77",
			"order_id": "order_5",
			"amount":   33040,
			"status":   "captured",
			"method":   "upi",
		})
	}))
	defer srv.Close()

	r := NewRazorpay("key_id", "key_secret", "hook_secret", srv.Client(), RetryPolicy{Attempts: 1})
	r.baseURL = srv.URL

	p, err := r.FetchPayment(context.Background(), "pay_77")
	require.NoError(t, err)
	assert.Equal(t, "pay_77", p.ID)
	assert.Equal(t, "order_5", p.OrderID)
	assert.Equal(t, int64(33040), p.AmountCents)
	assert.Equal(t, "captured", p.Status)
	assert.Equal(t, "upi", p.Method)
}
