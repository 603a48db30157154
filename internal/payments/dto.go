package payments

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmgatehq/farmgate-backend/pkg/db/models"
	"github.com/farmgatehq/farmgate-backend/pkg/types"
)

// InitializeInput starts a new charge.
type InitializeInput struct {
	BuyerID    uuid.UUID
	BuyerEmail string
	Amount     decimal.Decimal
	FarmerID   *uuid.UUID
	OrderID    *uuid.UUID
}

// InitializeResult carries the pending transaction plus the gateway redirect.
type InitializeResult struct {
	Transaction      *models.PaymentTransaction
	AuthorizationURL string
	AccessCode       string
}

// WebhookEventInput is one authenticated, parsed gateway event.
type WebhookEventInput struct {
	EventType string
	Reference string
	Status    string
	Channel   *string
	PaidAt    *time.Time
	Payload   json.RawMessage
}

// RefundInput requests a reversal of a successful transaction. A nil amount
// refunds the remaining balance in full.
type RefundInput struct {
	TransactionID uuid.UUID
	Amount        *decimal.Decimal
	Reason        string
	Actor         types.Actor
}

// RegisterFarmerAccountInput onboards a farmer's settlement target.
type RegisterFarmerAccountInput struct {
	FarmerID      uuid.UUID
	BusinessName  string
	BankName      string
	BankCode      string
	AccountNumber string
}
