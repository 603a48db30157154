package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	paystackwebhook "github.com/farmgatehq/farmgate-backend/internal/webhooks/paystack"
	"github.com/farmgatehq/farmgate-backend/pkg/paystack"
)

type fakeWebhookService struct {
	calls int
	err   error
	last  *paystackwebhook.Event
}

func (f *fakeWebhookService) HandleEvent(ctx context.Context, payload json.RawMessage, event *paystackwebhook.Event) error {
	if f.err != nil {
		return f.err
	}
	f.calls++
	f.last = event
	return nil
}

type fakeVerifier struct {
	secret string
}

func (f *fakeVerifier) ValidSignature(payload []byte, header string) bool {
	return paystack.ValidSignature(payload, f.secret, header)
}

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackWebhook_validEventDispatched(t *testing.T) {
	payload := []byte(`{"event":"charge.success","data":{"reference":"FG-ref","status":"success"}}`)
	service := &fakeWebhookService{}
	handler := PaystackWebhook(service, &fakeVerifier{secret: "sk_test_secret"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set("X-Paystack-Signature", signPayload(payload, "sk_test_secret"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}
	if service.last.Data.Reference != "FG-ref" {
		t.Fatalf("unexpected reference: %s", service.last.Data.Reference)
	}
}

func TestPaystackWebhook_invalidSignatureRejected(t *testing.T) {
	payload := []byte(`{"event":"charge.success","data":{"reference":"FG-ref","status":"success"}}`)
	service := &fakeWebhookService{}
	handler := PaystackWebhook(service, &fakeVerifier{secret: "sk_test_secret"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set("X-Paystack-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
}

func TestPaystackWebhook_missingSignatureRejected(t *testing.T) {
	payload := []byte(`{"event":"charge.success","data":{"reference":"FG-ref"}}`)
	service := &fakeWebhookService{}
	handler := PaystackWebhook(service, &fakeVerifier{secret: "sk_test_secret"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing signature, got %d", rec.Code)
	}
}

func TestPaystackWebhook_malformedBodyAcknowledged(t *testing.T) {
	payload := []byte(`{"event":`)
	service := &fakeWebhookService{}
	handler := PaystackWebhook(service, &fakeVerifier{secret: "sk_test_secret"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/paystack", bytes.NewReader(payload))
	req.Header.Set("X-Paystack-Signature", signPayload(payload, "sk_test_secret"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// A signed but undecodable body is acked so the gateway stops retrying.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for malformed signed body, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on malformed body")
	}
}
