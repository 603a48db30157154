package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/farmgatehq/farmgate-backend/pkg/config"
	pkgerrors "github.com/farmgatehq/farmgate-backend/pkg/errors"
	"github.com/farmgatehq/farmgate-backend/pkg/logger"
)

// Client wraps the Paystack REST API with bounded timeouts, error mapping,
// and minor-unit conversion. This is the only place amounts leave whole
// currency units.
type Client struct {
	httpClient *http.Client
	secretKey  string
	baseURL    string
	callback   string
	logger     *logger.Logger
	budget     *requestBudget
}

var (
	errSecretKeyRequired = errors.New("paystack secret key is required")
	errLoggerRequired    = errors.New("paystack logger is required")
)

// NewClient initializes the Paystack wrapper and validates the credentials.
func NewClient(cfg config.PaystackConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errSecretKeyRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		secretKey:  secret,
		baseURL:    baseURL,
		callback:   cfg.CallbackURL,
		logger:     logg,
		budget:     newRequestBudget(cfg.MonthlyBudget),
	}, nil
}

// SigningSecret returns the secret used for webhook HMAC verification.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.secretKey
}

// RequestsThisMonth reports the number of outbound API calls made during the
// current calendar month.
func (c *Client) RequestsThisMonth() int {
	if c == nil {
		return 0
	}
	return c.budget.Used()
}

// ChargeParams describes a charge initialization.
type ChargeParams struct {
	Email          string
	Amount         decimal.Decimal
	Currency       string
	Reference      string
	SubaccountCode string
}

// ChargeAuthorization is the redirect data returned by the gateway.
type ChargeAuthorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// VerifyResult is the authoritative charge state reported by the gateway.
type VerifyResult struct {
	Reference string
	Status    string
	Amount    decimal.Decimal
	Channel   string
	PaidAt    *time.Time
}

// SubaccountParams describes a settlement subaccount for a farmer.
type SubaccountParams struct {
	BusinessName     string
	BankCode         string
	AccountNumber    string
	PercentageCharge decimal.Decimal
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// InitializeCharge creates a pending charge and returns the redirect data.
func (c *Client) InitializeCharge(ctx context.Context, params ChargeParams) (*ChargeAuthorization, error) {
	body := map[string]any{
		"email":     params.Email,
		"amount":    toMinorUnits(params.Amount),
		"currency":  params.Currency,
		"reference": params.Reference,
	}
	if params.SubaccountCode != "" {
		body["subaccount"] = params.SubaccountCode
	}
	if c.callback != "" {
		body["callback_url"] = c.callback
	}

	var auth ChargeAuthorization
	if err := c.post(ctx, "/transaction/initialize", body, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// VerifyCharge re-queries the authoritative status of a charge by reference.
func (c *Client) VerifyCharge(ctx context.Context, reference string) (*VerifyResult, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}

	var payload struct {
		Reference string  `json:"reference"`
		Status    string  `json:"status"`
		Amount    int64   `json:"amount"`
		Channel   string  `json:"channel"`
		PaidAt    *string `json:"paid_at"`
	}
	if err := c.get(ctx, "/transaction/verify/"+url.PathEscape(reference), &payload); err != nil {
		return nil, err
	}

	result := &VerifyResult{
		Reference: payload.Reference,
		Status:    payload.Status,
		Amount:    fromMinorUnits(payload.Amount),
		Channel:   payload.Channel,
	}
	if payload.PaidAt != nil {
		if ts, err := time.Parse(time.RFC3339, *payload.PaidAt); err == nil {
			result.PaidAt = &ts
		}
	}
	return result, nil
}

// CreateSubaccount registers a settlement split target and returns its code.
func (c *Client) CreateSubaccount(ctx context.Context, params SubaccountParams) (string, error) {
	body := map[string]any{
		"business_name":     params.BusinessName,
		"settlement_bank":   params.BankCode,
		"account_number":    params.AccountNumber,
		"percentage_charge": params.PercentageCharge.InexactFloat64(),
	}

	var payload struct {
		SubaccountCode string `json:"subaccount_code"`
	}
	if err := c.post(ctx, "/subaccount", body, &payload); err != nil {
		return "", err
	}
	return payload.SubaccountCode, nil
}

// Refund asks the gateway to reverse a charge. A nil amount refunds in full.
func (c *Client) Refund(ctx context.Context, reference string, amount *decimal.Decimal) (string, error) {
	body := map[string]any{"transaction": reference}
	if amount != nil {
		body["amount"] = toMinorUnits(*amount)
	}

	var payload struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := c.post(ctx, "/refund", body, &payload); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", payload.ID), nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(encoded), out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	if err := c.budget.Take(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "gateway unreachable")
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if decodeErr := json.NewDecoder(resp.Body).Decode(&envelope); decodeErr != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return pkgerrors.New(pkgerrors.CodeGatewayUnavailable, fmt.Sprintf("gateway returned %d", resp.StatusCode))
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, decodeErr, "decode gateway response")
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return pkgerrors.New(pkgerrors.CodeGatewayUnavailable, fmt.Sprintf("gateway returned %d", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest || !envelope.Status:
		msg := envelope.Message
		if msg == "" {
			msg = fmt.Sprintf("gateway rejected request with %d", resp.StatusCode)
		}
		return pkgerrors.New(pkgerrors.CodeGatewayRejected, msg)
	}

	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway payload")
	}
	return nil
}

// toMinorUnits converts whole currency units to the gateway's integer
// subunits, truncating anything beyond two decimal places.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromMinorUnits(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100))
}
