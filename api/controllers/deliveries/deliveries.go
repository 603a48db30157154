package deliveries

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/farmgatehq/farmgate-backend/api/middleware"
	"github.com/farmgatehq/farmgate-backend/api/responses"
	"github.com/farmgatehq/farmgate-backend/api/validators"
	internaldeliveries "github.com/farmgatehq/farmgate-backend/internal/deliveries"
	"github.com/farmgatehq/farmgate-backend/pkg/enums"
	pkgerrors "github.com/farmgatehq/farmgate-backend/pkg/errors"
	"github.com/farmgatehq/farmgate-backend/pkg/logger"
)

type assignRequest struct {
	ProviderID string `json:"provider_id" validate:"required,uuid"`
}

// Assign hands an order's delivery to a logistics provider.
func Assign(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req assignRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid provider id"))
			return
		}

		delivery, err := svc.Assign(ctx, internaldeliveries.AssignInput{
			OrderID:    orderID,
			ProviderID: providerID,
			Actor:      middleware.ActorFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, delivery)
	}
}

type updateStatusRequest struct {
	Status   string  `json:"status" validate:"required"`
	Location *string `json:"location"`
	Note     *string `json:"note"`
}

// UpdateStatus advances a delivery through its lifecycle.
func UpdateStatus(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, err := enums.ParseDeliveryStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery status"))
			return
		}

		if err := svc.UpdateStatus(ctx, internaldeliveries.UpdateStatusInput{
			OrderID:  orderID,
			Actor:    middleware.ActorFromContext(ctx),
			Status:   status,
			Location: req.Location,
			Note:     req.Note,
		}); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// Detail returns the delivery attached to an order.
func Detail(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		delivery, err := svc.GetByOrder(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, delivery)
	}
}

type rateRequest struct {
	Score int `json:"score" validate:"required,min=1,max=5"`
}

// Rate records the buyer's rating for a completed delivery.
func Rate(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := validators.ParseURLUUID(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req rateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.RateProvider(ctx, internaldeliveries.RateInput{
			OrderID: orderID,
			Actor:   middleware.ActorFromContext(ctx),
			Score:   req.Score,
		}); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

// ListProviders returns active providers, best rated first.
func ListProviders(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		onlyAvailable := strings.EqualFold(r.URL.Query().Get("available"), "true")
		providers, err := svc.ListProviders(ctx, onlyAvailable)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, providers)
	}
}

type registerProviderRequest struct {
	Name  string  `json:"name" validate:"required,min=2,max=200"`
	Phone *string `json:"phone" validate:"omitempty,min=6,max=20"`
}

// RegisterProvider onboards a logistics provider.
func RegisterProvider(svc internaldeliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor := middleware.ActorFromContext(ctx)
		if actor.Role != enums.ActorRoleAdmin {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only admins register providers"))
			return
		}

		var req registerProviderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		provider, err := svc.RegisterProvider(ctx, req.Name, req.Phone)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, provider)
	}
}
