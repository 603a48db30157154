package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/farmgatehq/farmgate-backend/pkg/db/models"
	"github.com/farmgatehq/farmgate-backend/pkg/enums"
	pkgerrors "github.com/farmgatehq/farmgate-backend/pkg/errors"
	"github.com/farmgatehq/farmgate-backend/pkg/logger"
	"github.com/farmgatehq/farmgate-backend/pkg/paystack"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Gateway is the settlement-gateway surface this ledger depends on.
type Gateway interface {
	InitializeCharge(ctx context.Context, params paystack.ChargeParams) (*paystack.ChargeAuthorization, error)
	VerifyCharge(ctx context.Context, reference string) (*paystack.VerifyResult, error)
	CreateSubaccount(ctx context.Context, params paystack.SubaccountParams) (string, error)
	Refund(ctx context.Context, reference string, amount *decimal.Decimal) (string, error)
}

// Service defines payment ledger operations.
type Service interface {
	Initialize(ctx context.Context, input InitializeInput) (*InitializeResult, error)
	ApplyWebhookEvent(ctx context.Context, input WebhookEventInput) error
	Verify(ctx context.Context, reference string) (*models.PaymentTransaction, error)
	Refund(ctx context.Context, input RefundInput) (*models.Refund, error)

	RegisterFarmerAccount(ctx context.Context, input RegisterFarmerAccountInput) (*models.FarmerPaymentAccount, error)
	SetFarmerAccountVerification(ctx context.Context, farmerID uuid.UUID, status enums.VerificationStatus) error

	// HasSuccessfulPayment answers the order ledger's confirmation and
	// cancellation gates.
	HasSuccessfulPayment(ctx context.Context, orderID uuid.UUID) (bool, error)

	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentTransaction, error)
	Abandon(ctx context.Context, reference string) (bool, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	gateway Gateway
	logger  *logger.Logger
}

// NewService builds a payment service with the required dependencies.
func NewService(repo Repository, tx txRunner, gateway Gateway, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, gateway: gateway, logger: logg}, nil
}

func (s *service) Initialize(ctx context.Context, input InitializeInput) (*InitializeResult, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if strings.TrimSpace(input.BuyerEmail) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer email required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	var subaccountCode string
	split := input.FarmerID != nil
	if split {
		account, err := s.repo.FindFarmerAccount(ctx, *input.FarmerID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "farmer payment account not verified")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farmer account")
		}
		if !account.Active || account.VerificationStatus != enums.VerificationStatusVerified {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "farmer payment account not verified")
		}
		subaccountCode = account.SubaccountCode
	}

	platformFee, farmerAmount := ComputeSplit(input.Amount, split)
	txn := &models.PaymentTransaction{
		Reference:    newReference(),
		BuyerID:      input.BuyerID,
		BuyerEmail:   input.BuyerEmail,
		FarmerID:     input.FarmerID,
		OrderID:      input.OrderID,
		Amount:       input.Amount,
		Currency:     "NGN",
		PlatformFee:  platformFee,
		FarmerAmount: farmerAmount,
		Status:       enums.PaymentStatusPending,
	}

	// The pending row is persisted before the gateway is contacted, so a
	// webhook racing the response always finds its transaction.
	if _, err := s.repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist transaction")
	}

	auth, err := s.gateway.InitializeCharge(ctx, paystack.ChargeParams{
		Email:          input.BuyerEmail,
		Amount:         input.Amount,
		Currency:       txn.Currency,
		Reference:      txn.Reference,
		SubaccountCode: subaccountCode,
	})
	if err != nil {
		// The transaction stays pending; the sweep job abandons it if the
		// buyer never retries.
		return nil, err
	}

	return &InitializeResult{
		Transaction:      txn,
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
	}, nil
}

func (s *service) ApplyWebhookEvent(ctx context.Context, input WebhookEventInput) error {
	if strings.TrimSpace(input.Reference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event reference required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		txn, err := repo.FindTransactionByReference(ctx, input.Reference)
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up transaction")
		}

		event := &models.WebhookEvent{
			Reference: input.Reference,
			EventType: input.EventType,
			Payload:   input.Payload,
			Orphan:    txn == nil,
		}
		if txn != nil {
			event.TransactionID = &txn.ID
		}
		// Audit row first, unconditionally. Duplicates and orphans land here
		// too; only the pending guard below decides whether state moves.
		if err := repo.AppendWebhookEvent(ctx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
		}

		if txn == nil {
			s.logger.Warn(s.logger.WithReference(ctx, input.Reference), "orphan webhook event acknowledged")
			return nil
		}

		status, terminal := mapGatewayStatus(input.Status)
		if !terminal {
			return nil
		}
		applied, err := s.applyOutcome(ctx, repo, txn, status, input.Channel, input.PaidAt)
		if err != nil {
			return err
		}
		if !applied {
			s.logger.Info(s.logger.WithReference(ctx, input.Reference), "webhook event arrived after terminal status, no-op")
		}
		return nil
	})
}

func (s *service) Verify(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference required")
	}

	result, err := s.gateway.VerifyCharge(ctx, reference)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		txn, err := repo.FindTransactionByReference(ctx, reference)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up transaction")
		}

		status, terminal := mapGatewayStatus(result.Status)
		if !terminal {
			return nil
		}
		var channel *string
		if result.Channel != "" {
			channel = &result.Channel
		}
		_, err = s.applyOutcome(ctx, repo, txn, status, channel, result.PaidAt)
		return err
	})
	if err != nil {
		return nil, err
	}

	txn, err := s.repo.FindTransactionByReference(ctx, reference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload transaction")
	}
	return txn, nil
}

// applyOutcome terminalizes the transaction if it is still pending and, on a
// winning success, accrues the farmer share exactly once. Callers run it
// inside a transaction so the status flip and the accrual commit together.
func (s *service) applyOutcome(ctx context.Context, repo Repository, txn *models.PaymentTransaction, status enums.PaymentStatus, channel *string, paidAt *time.Time) (bool, error) {
	won, err := repo.TerminalizeIfPending(ctx, txn.ID, status, channel, paidAt)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "terminalize transaction")
	}
	if !won {
		return false, nil
	}

	if status == enums.PaymentStatusSuccess && txn.FarmerID != nil && txn.FarmerAmount.IsPositive() {
		if err := repo.AccrueFarmerEarnings(ctx, *txn.FarmerID, txn.FarmerAmount); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accrue farmer earnings")
		}
	}
	return true, nil
}

func (s *service) Refund(ctx context.Context, input RefundInput) (*models.Refund, error) {
	if input.TransactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund reason required")
	}
	if input.Amount != nil && !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	var (
		refund *models.Refund
		txn    *models.PaymentTransaction
		full   bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.FindTransaction(ctx, input.TransactionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
		}
		txn = found
		if txn.Status != enums.PaymentStatusSuccess {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only successful transactions can be refunded")
		}

		// In-flight refunds count against the balance too, so a retried or
		// concurrent refund can never jointly exceed the charge.
		refunded, err := repo.SumOutstandingRefunds(ctx, txn.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum prior refunds")
		}
		remaining := txn.Amount.Sub(refunded)
		if !remaining.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no refundable balance remaining")
		}
		requested := remaining
		if input.Amount != nil {
			requested = *input.Amount
		}
		if requested.GreaterThan(remaining) {
			return pkgerrors.New(pkgerrors.CodeValidation, "refund exceeds remaining balance").
				WithDetails(map[string]any{"remaining": remaining.String()})
		}
		full = requested.Equal(remaining)

		refund = &models.Refund{
			TransactionID: txn.ID,
			Amount:        requested,
			Reason:        input.Reason,
			Status:        enums.RefundStatusPending,
		}
		_, err = repo.CreateRefund(ctx, refund)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist refund")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	gatewayRef, err := s.gateway.Refund(ctx, txn.Reference, &refund.Amount)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeGatewayRejected) {
			if markErr := s.repo.UpdateRefundStatus(ctx, refund.ID, enums.RefundStatusFailed, nil); markErr != nil {
				s.logger.Error(ctx, "mark refund failed", markErr)
			}
		}
		// Gateway unavailability leaves the refund pending for a retry.
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateRefundStatus(ctx, refund.ID, enums.RefundStatusSuccess, &gatewayRef); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark refund success")
		}
		if full {
			if _, err := repo.MarkRefunded(ctx, txn.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark transaction refunded")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	refund.Status = enums.RefundStatusSuccess
	refund.GatewayReference = &gatewayRef
	return refund, nil
}

func (s *service) RegisterFarmerAccount(ctx context.Context, input RegisterFarmerAccountInput) (*models.FarmerPaymentAccount, error) {
	if input.FarmerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "farmer id required")
	}
	if strings.TrimSpace(input.BusinessName) == "" || strings.TrimSpace(input.BankCode) == "" || strings.TrimSpace(input.AccountNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business name, bank code and account number required")
	}

	if _, err := s.repo.FindFarmerAccount(ctx, input.FarmerID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "farmer payment account already exists")
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing account")
	}

	percentage := splitFeeRate.Mul(decimal.NewFromInt(100))
	code, err := s.gateway.CreateSubaccount(ctx, paystack.SubaccountParams{
		BusinessName:     input.BusinessName,
		BankCode:         input.BankCode,
		AccountNumber:    input.AccountNumber,
		PercentageCharge: percentage,
	})
	if err != nil {
		return nil, err
	}

	account := &models.FarmerPaymentAccount{
		FarmerID:           input.FarmerID,
		SubaccountCode:     code,
		BankName:           input.BankName,
		AccountNumber:      input.AccountNumber,
		PercentageCharge:   percentage,
		VerificationStatus: enums.VerificationStatusPending,
		Active:             true,
		TotalEarnings:      decimal.Zero,
	}
	if _, err := s.repo.CreateFarmerAccount(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist farmer account")
	}
	return account, nil
}

func (s *service) SetFarmerAccountVerification(ctx context.Context, farmerID uuid.UUID, status enums.VerificationStatus) error {
	if farmerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "farmer id required")
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid verification status")
	}
	if err := s.repo.SetFarmerAccountVerification(ctx, farmerID, status); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update verification status")
	}
	return nil
}

func (s *service) HasSuccessfulPayment(ctx context.Context, orderID uuid.UUID) (bool, error) {
	if orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ok, err := s.repo.HasSuccessfulByOrder(ctx, orderID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order payments")
	}
	return ok, nil
}

func (s *service) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentTransaction, error) {
	txns, err := s.repo.ListStalePending(ctx, olderThan, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale pending transactions")
	}
	return txns, nil
}

func (s *service) Abandon(ctx context.Context, reference string) (bool, error) {
	txn, err := s.repo.FindTransactionByReference(ctx, reference)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up transaction")
	}
	won, err := s.repo.TerminalizeIfPending(ctx, txn.ID, enums.PaymentStatusAbandoned, nil, nil)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "abandon transaction")
	}
	return won, nil
}

// mapGatewayStatus translates the gateway's charge status into a terminal
// ledger status. Anything unrecognized or still in flight maps to no-op.
func mapGatewayStatus(status string) (enums.PaymentStatus, bool) {
	switch strings.ToLower(status) {
	case "success":
		return enums.PaymentStatusSuccess, true
	case "failed":
		return enums.PaymentStatusFailed, true
	case "abandoned":
		return enums.PaymentStatusAbandoned, true
	default:
		return "", false
	}
}

func newReference() string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("FG-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}
