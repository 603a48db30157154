package deliveries

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmgatehq/farmgate-backend/internal/orders"
	"github.com/farmgatehq/farmgate-backend/pkg/db"
	"github.com/farmgatehq/farmgate-backend/pkg/db/models"
	"github.com/farmgatehq/farmgate-backend/pkg/enums"
	pkgerrors "github.com/farmgatehq/farmgate-backend/pkg/errors"
	"github.com/farmgatehq/farmgate-backend/pkg/logger"
	"github.com/farmgatehq/farmgate-backend/pkg/types"
)

// maxActiveDeliveries caps how many open deliveries one provider may hold.
const maxActiveDeliveries = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines logistics aggregate operations.
type Service interface {
	Assign(ctx context.Context, input AssignInput) (*models.Delivery, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) error
	RateProvider(ctx context.Context, input RateInput) error
	GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	ListProviders(ctx context.Context, onlyAvailable bool) ([]models.LogisticsProvider, error)
	RegisterProvider(ctx context.Context, name string, phone *string) (*models.LogisticsProvider, error)

	// RepairDanglingAssignments is the periodic pass that fixes deliveries
	// whose paired order update never landed.
	RepairDanglingAssignments(ctx context.Context, limit int) (*RepairReport, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	bridge orders.Bridge
	logger *logger.Logger
}

// NewService builds a deliveries service with the required dependencies.
func NewService(repo Repository, tx txRunner, bridge orders.Bridge, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("deliveries repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if bridge == nil {
		return nil, fmt.Errorf("orders bridge required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, bridge: bridge, logger: logg}, nil
}

func (s *service) Assign(ctx context.Context, input AssignInput) (*models.Delivery, error) {
	if input.OrderID == uuid.Nil || input.ProviderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and provider id required")
	}
	if input.Actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	var delivery *models.Delivery
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !assignmentEligible(order, input.Actor) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "actor not eligible to assign this order")
		}
		if order.DeliveryMethod != enums.DeliveryMethodHomeDelivery {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "pickup orders do not take delivery assignments")
		}
		if order.Status != enums.OrderStatusReadyForPickup {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not ready for pickup").
				WithDetails(map[string]any{"status": order.Status})
		}

		provider, err := repo.FindProvider(ctx, input.ProviderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "provider not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load provider")
		}
		if !provider.Active || !provider.Available {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "provider is not available")
		}

		active, err := repo.CountActiveByProvider(ctx, provider.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active deliveries")
		}
		if active >= maxActiveDeliveries {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "provider is at delivery capacity").
				WithDetails(map[string]any{"active": active, "max": maxActiveDeliveries})
		}

		pickup, err := s.derivePickup(ctx, repo, order)
		if err != nil {
			return err
		}

		delivery = &models.Delivery{
			ProviderID: provider.ID,
			OrderID:    order.ID,
			Status:     enums.DeliveryStatusAssigned,
			Pickup:     pickup,
			Dropoff:    order.DeliveryAddress,
		}
		if _, err := repo.CreateDelivery(ctx, delivery); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "order already has a delivery")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist delivery")
		}
		if err := repo.AppendTimeline(ctx, &models.DeliveryTimelineEntry{
			DeliveryID: delivery.ID,
			Status:     enums.DeliveryStatusAssigned,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append delivery timeline")
		}

		// Both aggregates move inside this one transaction.
		return s.bridge.AttachProvider(ctx, tx, order.ID, provider.ID)
	})
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// derivePickup resolves the farm location of the order's single farmer.
func (s *service) derivePickup(ctx context.Context, repo Repository, order *models.Order) (*types.Address, error) {
	if len(order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no items to pick up")
	}
	product, err := repo.FindProduct(ctx, order.Items[0].ProductID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pickup product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pickup product")
	}
	return product.FarmLocation, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.IsZero() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery status")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		delivery, err := repo.FindDeliveryByOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}
		if !updateEligible(delivery, input.Actor) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned provider may update this delivery")
		}
		if !nextDeliveryStatus(delivery.Status, input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid delivery status transition").
				WithDetails(map[string]any{"from": delivery.Status, "to": input.Status})
		}

		now := time.Now().UTC()
		var deliveredAt *time.Time
		if input.Status == enums.DeliveryStatusDelivered {
			deliveredAt = &now
		}

		won, err := repo.UpdateDeliveryStatus(ctx, delivery.ID, delivery.Status, input.Status, deliveredAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeConflict, "delivery changed concurrently")
		}

		if err := repo.AppendTimeline(ctx, &models.DeliveryTimelineEntry{
			DeliveryID: delivery.ID,
			Status:     input.Status,
			Location:   input.Location,
			Note:       input.Note,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append delivery timeline")
		}

		if err := s.bridge.ApplyDeliveryUpdate(ctx, tx, input.OrderID, delivery.ProviderID, input.Status, now); err != nil {
			return err
		}

		if input.Status.IsTerminal() {
			return s.recomputePerformance(ctx, repo, delivery.ProviderID, input.Status == enums.DeliveryStatusDelivered)
		}
		return nil
	})
}

func (s *service) recomputePerformance(ctx context.Context, repo Repository, providerID uuid.UUID, successful bool) error {
	if err := repo.IncrementProviderCounters(ctx, providerID, successful); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment provider counters")
	}
	provider, err := repo.FindProvider(ctx, providerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload provider")
	}
	bounds, err := repo.ListDeliveredTimelineBounds(ctx, providerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery durations")
	}
	rate := onTimeRate(provider.SuccessfulDeliveries, provider.TotalDeliveries)
	if err := repo.UpdateProviderPerformance(ctx, providerID, rate, averageMinutes(bounds)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update provider performance")
	}
	return nil
}

func (s *service) RateProvider(ctx context.Context, input RateInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.IsZero() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if input.Score < 1 || input.Score > 5 {
		return pkgerrors.New(pkgerrors.CodeValidation, "score must be between 1 and 5")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		delivery, err := repo.FindDeliveryByOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}
		if delivery.Status != enums.DeliveryStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only completed deliveries can be rated")
		}

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if input.Actor.Role != enums.ActorRoleBuyer || order.BuyerID != input.Actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the order's buyer may rate the delivery")
		}

		rating := &models.ProviderRating{
			ProviderID: delivery.ProviderID,
			OrderID:    order.ID,
			BuyerID:    input.Actor.ID,
			Score:      input.Score,
		}
		if err := repo.CreateRating(ctx, rating); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "delivery already rated")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist rating")
		}
		if err := repo.ApplyRating(ctx, delivery.ProviderID, input.Score); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply rating")
		}
		return nil
	})
}

func (s *service) GetByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	delivery, err := s.repo.FindDeliveryByOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return delivery, nil
}

func (s *service) ListProviders(ctx context.Context, onlyAvailable bool) ([]models.LogisticsProvider, error) {
	providers, err := s.repo.ListProviders(ctx, onlyAvailable)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list providers")
	}
	return providers, nil
}

func (s *service) RegisterProvider(ctx context.Context, name string, phone *string) (*models.LogisticsProvider, error) {
	if strings.TrimSpace(name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider name required")
	}
	provider := &models.LogisticsProvider{
		Name:      name,
		Phone:     phone,
		Active:    true,
		Available: true,
	}
	if _, err := s.repo.CreateProvider(ctx, provider); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist provider")
	}
	return provider, nil
}

func (s *service) RepairDanglingAssignments(ctx context.Context, limit int) (*RepairReport, error) {
	report := &RepairReport{}

	unlinked, err := s.repo.ListUnlinkedDeliveries(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unlinked deliveries")
	}
	for _, delivery := range unlinked {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.bridge.AttachProvider(ctx, tx, delivery.OrderID, delivery.ProviderID)
		})
		if err != nil {
			lctx := s.logger.WithOrderID(ctx, delivery.OrderID.String())
			s.logger.Warn(lctx, "could not re-link delivery to order, flagged for operator")
			report.Flagged++
			continue
		}
		report.Repaired++
	}

	orphans, err := s.repo.ListOrphanOrderAssignments(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orphan order assignments")
	}
	for _, order := range orphans {
		lctx := s.logger.WithOrderID(ctx, order.ID.String())
		s.logger.Warn(lctx, "order references a provider but has no delivery, flagged for operator")
		report.Flagged++
	}

	return report, nil
}

func assignmentEligible(order *models.Order, actor types.Actor) bool {
	switch actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return true
	case enums.ActorRoleFarmer:
		for _, item := range order.Items {
			if item.FarmerID == actor.ID {
				return true
			}
		}
	}
	return false
}

func updateEligible(delivery *models.Delivery, actor types.Actor) bool {
	switch actor.Role {
	case enums.ActorRoleAdmin, enums.ActorRoleSystem:
		return true
	case enums.ActorRoleLogistics:
		return delivery.ProviderID == actor.ID
	}
	return false
}

// nextDeliveryStatus validates the delivery sub-machine: assigned ->
// picked_up -> in_transit -> delivered, with failed reachable from any
// non-terminal state.
func nextDeliveryStatus(from, to enums.DeliveryStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == enums.DeliveryStatusFailed {
		return true
	}
	switch from {
	case enums.DeliveryStatusAssigned:
		return to == enums.DeliveryStatusPickedUp
	case enums.DeliveryStatusPickedUp:
		return to == enums.DeliveryStatusInTransit
	case enums.DeliveryStatusInTransit:
		return to == enums.DeliveryStatusDelivered
	default:
		return false
	}
}
