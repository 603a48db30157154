package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmgatehq/farmgate-backend/pkg/config"
	pkgerrors "github.com/farmgatehq/farmgate-backend/pkg/errors"
	"github.com/farmgatehq/farmgate-backend/pkg/logger"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.PaystackConfig{
		SecretKey:      "sk_test_secret",
		BaseURL:        server.URL,
		RequestTimeout: 2 * time.Second,
	}, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return client, server
}

func TestInitializeChargeSendsMinorUnits(t *testing.T) {
	var captured map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/initialize", r.URL.Path)
		require.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"authorization_url": "https://checkout.example/abc",
				"access_code":       "abc",
				"reference":         "FG-1",
			},
		})
	}))

	auth, err := client.InitializeCharge(context.Background(), ChargeParams{
		Email:     "buyer@example.com",
		Amount:    decimal.NewFromInt(500),
		Currency:  "NGN",
		Reference: "FG-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/abc", auth.AuthorizationURL)
	assert.Equal(t, float64(50000), captured["amount"])
	assert.Equal(t, 1, client.RequestsThisMonth())
}

func TestServerErrorMapsToGatewayUnavailable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.VerifyCharge(context.Background(), "FG-2")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayUnavailable))
	assert.True(t, pkgerrors.Retryable(err))
}

func TestDeclineMapsToGatewayRejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  false,
			"message": "Insufficient funds",
		})
	}))

	_, err := client.Refund(context.Background(), "FG-3", nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGatewayRejected))
	assert.False(t, pkgerrors.Retryable(err))
}

func TestVerifyChargeParsesAmountAndPaidAt(t *testing.T) {
	paidAt := "2026-02-11T10:30:00Z"
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/verify/FG-4", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"reference": "FG-4",
				"status":    "success",
				"amount":    75050,
				"channel":   "card",
				"paid_at":   paidAt,
			},
		})
	}))

	result, err := client.VerifyCharge(context.Background(), "FG-4")
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("750.5")))
	require.NotNil(t, result.PaidAt)
	assert.Equal(t, 2026, result.PaidAt.Year())
}

func TestValidSignature(t *testing.T) {
	payload := []byte(`{"event":"charge.success"}`)
	mac := hmac.New(sha512.New, []byte("sk_test_secret"))
	mac.Write(payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, ValidSignature(payload, "sk_test_secret", signature))
	assert.False(t, ValidSignature(payload, "sk_test_secret", "deadbeef"))
	assert.False(t, ValidSignature(payload, "", signature))
}

func TestRequestBudgetEnforcesAndResets(t *testing.T) {
	budget := newRequestBudget(2)
	current := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	budget.now = func() time.Time { return current }

	require.NoError(t, budget.Take())
	require.NoError(t, budget.Take())
	err := budget.Take()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, 2, budget.Used())

	current = current.AddDate(0, 1, 0)
	require.NoError(t, budget.Take())
	assert.Equal(t, 1, budget.Used())
}
