package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const razorpayBaseURL = "https://api.razorpay.com/v1"

// Razorpay is the real provider client.  Requests use basic auth with
// the key pair; order amounts are sent in paise.  Transient HTTP
// failures are retried under the configured RetryPolicy, after which
// errors wrap ErrUnavailable so callers can distinguish "try again
// later" from a rejected request.
type Razorpay struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	httpc         *http.Client
	retry         RetryPolicy
}

// NewRazorpay builds a client for the given credentials.  A nil httpc
// uses a client with a ten second timeout; a zero retry policy falls
// back to DefaultRetryPolicy.
func NewRazorpay(keyID, keySecret, webhookSecret string, httpc *http.Client, retry RetryPolicy) *Razorpay {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	if retry.Attempts == 0 {
		retry = DefaultRetryPolicy()
	}
	return &Razorpay{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		baseURL:       razorpayBaseURL,
		httpc:         httpc,
		retry:         retry,
	}
}

// Name identifies this implementation in payment_method and audit rows.
func (r *Razorpay) Name() string { return "RAZORPAY" }

// CreateOrder registers an order with payment auto-capture enabled.
func (r *Razorpay) CreateOrder(ctx context.Context, amountCents int64, currency, receipt string, notes map[string]string) (*Order, error) {
	body := map[string]interface{}{
		"amount":          amountCents,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}
	if len(notes) > 0 {
		body["notes"] = notes
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var created struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
	}
	err = r.retry.Do(ctx, func() error {
		return r.post(ctx, "/orders", payload, &created)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Order{
		ID:          created.ID,
		AmountCents: created.Amount,
		Currency:    created.Currency,
		Receipt:     created.Receipt,
	}, nil
}

// VerifySignature checks the checkout callback signature: the hex HMAC
// SHA-256 of "order_id|payment_id" under the key secret.  Comparison is
// constant time.
func (r *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return verifyHMAC([]byte(orderID+"|"+paymentID), signature, r.keySecret)
}

// VerifyWebhookSignature checks the webhook payload signature under the
// dedicated webhook secret.
func (r *Razorpay) VerifyWebhookSignature(payload []byte, signature string) bool {
	if len(payload) == 0 || signature == "" {
		return false
	}
	return verifyHMAC(payload, signature, r.webhookSecret)
}

// FetchPayment retrieves a payment entity.
func (r *Razorpay) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var fetched struct {
		ID      string `json:"id"`
		OrderID string `json:"order_id"`
		Amount  int64  `json:"amount"`
		Status  string `json:"status"`
		Method  string `json:"method"`
	}
	err := r.retry.Do(ctx, func() error {
		return r.get(ctx, "/payments/"+paymentID, &fetched)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Payment{
		ID:          fetched.ID,
		OrderID:     fetched.OrderID,
		AmountCents: fetched.Amount,
		Status:      fetched.Status,
		Method:      fetched.Method,
	}, nil
}

func (r *Razorpay) post(ctx context.Context, path string, payload []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(r.keyID, r.keySecret)
	return r.send(req, out)
}

func (r *Razorpay) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(r.keyID, r.keySecret)
	return r.send(req, out)
}

func (r *Razorpay) send(req *http.Request, out interface{}) error {
	resp, err := r.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}

func verifyHMAC(message []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
