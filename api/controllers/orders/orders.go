package orders

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/farmgatehq/farmgate-backend/api/middleware"
	"github.com/farmgatehq/farmgate-backend/api/responses"
	"github.com/farmgatehq/farmgate-backend/api/validators"
	internalorders "github.com/farmgatehq/farmgate-backend/internal/orders"
	"github.com/farmgatehq/farmgate-backend/pkg/db/models"
	"github.com/farmgatehq/farmgate-backend/pkg/enums"
	pkgerrors "github.com/farmgatehq/farmgate-backend/pkg/errors"
	"github.com/farmgatehq/farmgate-backend/pkg/logger"
	"github.com/farmgatehq/farmgate-backend/pkg/types"
)

type createRequest struct {
	PaymentMethod   string             `json:"payment_method" validate:"required"`
	DeliveryMethod  string             `json:"delivery_method" validate:"required"`
	DeliveryAddress *types.Address     `json:"delivery_address"`
	Items           []createLineItem   `json:"items" validate:"required,min=1,dive"`
}

type createLineItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Qty       int    `json:"qty" validate:"required,min=1"`
}

// Create places a new order for the calling buyer.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor := middleware.ActorFromContext(ctx)
		if actor.Role != enums.ActorRoleBuyer {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers place orders"))
			return
		}

		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		paymentMethod, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		deliveryMethod, err := enums.ParseDeliveryMethod(req.DeliveryMethod)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery method"))
			return
		}

		items := make([]internalorders.CreateOrderItem, 0, len(req.Items))
		for _, item := range req.Items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
				return
			}
			items = append(items, internalorders.CreateOrderItem{ProductID: productID, Qty: item.Qty})
		}

		order, err := svc.Create(ctx, internalorders.CreateOrderInput{
			BuyerID:         actor.ID,
			PaymentMethod:   paymentMethod,
			DeliveryMethod:  deliveryMethod,
			DeliveryAddress: req.DeliveryAddress,
			Items:           items,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// Detail returns the full order with line items and timeline.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		order, err := svc.Get(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !canView(order, middleware.ActorFromContext(ctx)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller"))
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ListMine returns the calling buyer's orders, newest first.
func ListMine(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor := middleware.ActorFromContext(ctx)
		if actor.Role != enums.ActorRoleBuyer {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers list their orders"))
			return
		}
		orders, err := svc.ListByBuyer(ctx, actor.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}

type transitionRequest struct {
	Status string  `json:"status" validate:"required"`
	Note   *string `json:"note"`
}

// Transition requests an order status change on behalf of the caller.
func Transition(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req transitionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status"))
			return
		}

		if err := svc.TransitionStatus(ctx, internalorders.TransitionInput{
			OrderID:   orderID,
			Actor:     middleware.ActorFromContext(ctx),
			NewStatus: status,
			Note:      req.Note,
		}); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

type cancelRequest struct {
	Note *string `json:"note"`
}

// Cancel cancels an order and restores its reserved inventory.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req cancelRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		if err := svc.Cancel(ctx, internalorders.CancelInput{
			OrderID: orderID,
			Actor:   middleware.ActorFromContext(ctx),
			Note:    req.Note,
		}); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

type reportIssueRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=2000"`
}

// ReportIssue opens a dispute on an order.
func ReportIssue(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req reportIssueRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.ReportIssue(ctx, internalorders.ReportIssueInput{
			OrderID: orderID,
			Actor:   middleware.ActorFromContext(ctx),
			Reason:  req.Reason,
		}); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

func canView(order *models.Order, actor types.Actor) bool {
	switch actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return true
	case enums.ActorRoleBuyer:
		return order.BuyerID == actor.ID
	case enums.ActorRoleFarmer:
		for _, item := range order.Items {
			if item.FarmerID == actor.ID {
				return true
			}
		}
	case enums.ActorRoleLogistics:
		return order.DeliveryProviderID != nil && *order.DeliveryProviderID == actor.ID
	}
	return false
}
