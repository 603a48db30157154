package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/farmgatehq/farmgate-backend/pkg/db/models"
	"github.com/farmgatehq/farmgate-backend/pkg/enums"
)

// Repository covers payment ledger persistence. Terminalization is a
// compare-and-swap on the pending status, which is what makes webhook
// processing idempotent without deduplicating events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateTransaction(ctx context.Context, txn *models.PaymentTransaction) (*models.PaymentTransaction, error)
	FindTransaction(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error)
	FindTransactionByReference(ctx context.Context, reference string) (*models.PaymentTransaction, error)
	HasSuccessfulByOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentTransaction, error)

	// TerminalizeIfPending flips the transaction out of pending and reports
	// whether this call won the race.
	TerminalizeIfPending(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, channel *string, paidAt *time.Time) (bool, error)
	// MarkRefunded moves a fully refunded transaction out of success.
	MarkRefunded(ctx context.Context, id uuid.UUID) (bool, error)

	AppendWebhookEvent(ctx context.Context, event *models.WebhookEvent) error

	FindFarmerAccount(ctx context.Context, farmerID uuid.UUID) (*models.FarmerPaymentAccount, error)
	CreateFarmerAccount(ctx context.Context, account *models.FarmerPaymentAccount) (*models.FarmerPaymentAccount, error)
	SetFarmerAccountVerification(ctx context.Context, farmerID uuid.UUID, status enums.VerificationStatus) error
	// AccrueFarmerEarnings adds the farmer share with a single atomic UPDATE.
	AccrueFarmerEarnings(ctx context.Context, farmerID uuid.UUID, amount decimal.Decimal) error

	CreateRefund(ctx context.Context, refund *models.Refund) (*models.Refund, error)
	UpdateRefundStatus(ctx context.Context, id uuid.UUID, status enums.RefundStatus, gatewayReference *string) error
	// SumOutstandingRefunds totals every refund that is not failed, so
	// in-flight refunds hold their share of the balance until they resolve.
	SumOutstandingRefunds(ctx context.Context, transactionID uuid.UUID) (decimal.Decimal, error)
}
