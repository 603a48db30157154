package payments

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmgatehq/farmgate-backend/api/middleware"
	"github.com/farmgatehq/farmgate-backend/api/responses"
	"github.com/farmgatehq/farmgate-backend/api/validators"
	internalpayments "github.com/farmgatehq/farmgate-backend/internal/payments"
	"github.com/farmgatehq/farmgate-backend/pkg/enums"
	pkgerrors "github.com/farmgatehq/farmgate-backend/pkg/errors"
	"github.com/farmgatehq/farmgate-backend/pkg/logger"
)

type initializeRequest struct {
	BuyerEmail string  `json:"buyer_email" validate:"required,email"`
	Amount     string  `json:"amount" validate:"required"`
	FarmerID   *string `json:"farmer_id" validate:"omitempty,uuid"`
	OrderID    *string `json:"order_id" validate:"omitempty,uuid"`
}

// Initialize starts a charge with the gateway and returns the redirect URL.
func Initialize(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor := middleware.ActorFromContext(ctx)
		if actor.Role != enums.ActorRoleBuyer {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers initialize payments"))
			return
		}

		var req initializeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		input := internalpayments.InitializeInput{
			BuyerID:    actor.ID,
			BuyerEmail: req.BuyerEmail,
			Amount:     amount,
		}
		if req.FarmerID != nil {
			farmerID, err := uuid.Parse(*req.FarmerID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid farmer id"))
				return
			}
			input.FarmerID = &farmerID
		}
		if req.OrderID != nil {
			orderID, err := uuid.Parse(*req.OrderID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
				return
			}
			input.OrderID = &orderID
		}

		result, err := svc.Initialize(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// Verify asks the gateway for a transaction's real outcome and applies it.
func Verify(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		reference := strings.TrimSpace(chi.URLParam(r, "reference"))
		if reference == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "reference is required"))
			return
		}

		txn, err := svc.Verify(ctx, reference)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, txn)
	}
}

type refundRequest struct {
	Amount *string `json:"amount"`
	Reason string  `json:"reason" validate:"required,min=3,max=2000"`
}

// Refund reverses a successful transaction, fully or partially.
func Refund(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor := middleware.ActorFromContext(ctx)
		if actor.Role != enums.ActorRoleAdmin {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only admins issue refunds"))
			return
		}

		transactionID, err := validators.ParseURLUUID(r, "transactionId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req refundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := internalpayments.RefundInput{
			TransactionID: transactionID,
			Reason:        req.Reason,
			Actor:         actor,
		}
		if req.Amount != nil {
			amount, err := decimal.NewFromString(*req.Amount)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
				return
			}
			input.Amount = &amount
		}

		refund, err := svc.Refund(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, refund)
	}
}

type registerAccountRequest struct {
	BusinessName  string `json:"business_name" validate:"required,min=2,max=200"`
	BankName      string `json:"bank_name" validate:"required,min=2,max=200"`
	BankCode      string `json:"bank_code" validate:"required,min=2,max=10"`
	AccountNumber string `json:"account_number" validate:"required,min=6,max=20"`
}

// RegisterFarmerAccount creates the farmer's settlement subaccount.
func RegisterFarmerAccount(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor := middleware.ActorFromContext(ctx)
		if actor.Role != enums.ActorRoleFarmer {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only farmers register payment accounts"))
			return
		}

		var req registerAccountRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		account, err := svc.RegisterFarmerAccount(ctx, internalpayments.RegisterFarmerAccountInput{
			FarmerID:      actor.ID,
			BusinessName:  req.BusinessName,
			BankName:      req.BankName,
			BankCode:      req.BankCode,
			AccountNumber: req.AccountNumber,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, account)
	}
}

type verificationRequest struct {
	Status string `json:"status" validate:"required"`
}

// SetFarmerAccountVerification lets operators approve or reject a farmer's
// settlement account.
func SetFarmerAccountVerification(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor := middleware.ActorFromContext(ctx)
		if actor.Role != enums.ActorRoleAdmin {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only admins verify payment accounts"))
			return
		}

		farmerID, err := validators.ParseURLUUID(r, "farmerId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req verificationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, err := enums.ParseVerificationStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid verification status"))
			return
		}

		if err := svc.SetFarmerAccountVerification(ctx, farmerID, status); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}
