package orders

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

	"github.com/farmgatehq/farmgate-backend/internal/inventory"
	"github.com/farmgatehq/farmgate-backend/pkg/db/models"
	"github.com/farmgatehq/farmgate-backend/pkg/enums"
	pkgerrors "github.com/farmgatehq/farmgate-backend/pkg/errors"
	"github.com/farmgatehq/farmgate-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentChecker reports whether an order already has a successful payment.
// It gates both the prepaid confirmation step and the cancel-vs-refund fork.
type PaymentChecker interface {
	HasSuccessfulPayment(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// Service defines order aggregate operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	TransitionStatus(ctx context.Context, input TransitionInput) error
	Cancel(ctx context.Context, input CancelInput) error
	ReportIssue(ctx context.Context, input ReportIssueInput) error
}

// Bridge is the only path other aggregates may use to mutate an order. The
// delivery flow calls these inside its own transaction so both aggregates
// commit or roll back together.
type Bridge interface {
	AttachProvider(ctx context.Context, tx *gorm.DB, orderID, providerID uuid.UUID) error
	ApplyDeliveryUpdate(ctx context.Context, tx *gorm.DB, orderID, providerID uuid.UUID, status enums.DeliveryStatus, at time.Time) error
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory inventory.Adjuster
	payments  PaymentChecker
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, adjuster inventory.Adjuster, payments PaymentChecker) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if adjuster == nil {
		return nil, fmt.Errorf("inventory adjuster required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment checker required")
	}
	return &service{repo: repo, tx: tx, inventory: adjuster, payments: payments}, nil
}

// NewBridge exposes the delivery-facing mutation surface of the same service.
func NewBridge(repo Repository, adjuster inventory.Adjuster) (Bridge, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if adjuster == nil {
		return nil, fmt.Errorf("inventory adjuster required")
	}
	return &service{repo: repo, inventory: adjuster}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if !input.DeliveryMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method")
	}
	if input.DeliveryMethod == enums.DeliveryMethodHomeDelivery && (input.DeliveryAddress == nil || input.DeliveryAddress.IsZero()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required for home delivery")
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item product id required")
		}
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		lineItems := make([]models.OrderLineItem, 0, len(input.Items))
		total := decimal.Zero
		for _, item := range input.Items {
			product, err := repo.FindProduct(ctx, item.ProductID)
			if err != nil {
				if err == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if !product.Active {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "product unavailable")
			}

			reserved, err := s.inventory.Reserve(ctx, tx, product.ID, item.Qty)
			if err != nil {
				return err
			}
			if !reserved {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient quantity").
					WithDetails(map[string]any{"product_id": product.ID, "requested": item.Qty})
			}

			subtotal := product.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty)))
			total = total.Add(subtotal)
			lineItems = append(lineItems, models.OrderLineItem{
				ProductID: product.ID,
				FarmerID:  product.FarmerID,
				Name:      product.Name,
				Qty:       item.Qty,
				UnitPrice: product.UnitPrice,
				Subtotal:  subtotal,
			})
		}

		order := &models.Order{
			OrderNumber:     newOrderNumber(),
			BuyerID:         input.BuyerID,
			Status:          enums.OrderStatusPending,
			PaymentMethod:   input.PaymentMethod,
			Currency:        "NGN",
			TotalAmount:     total,
			DeliveryMethod:  input.DeliveryMethod,
			DeliveryAddress: input.DeliveryAddress,
			Items:           lineItems,
		}
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}

		entry := &models.OrderTimelineEntry{
			OrderID:   order.ID,
			Status:    enums.OrderStatusPending,
			ActorID:   input.BuyerID,
			ActorRole: enums.ActorRoleBuyer,
		}
		if err := repo.AppendTimeline(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append timeline entry")
		}

		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	orders, err := s.repo.FindOrdersByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) TransitionStatus(ctx context.Context, input TransitionInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.IsZero() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.NewStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if input.NewStatus == enums.OrderStatusCancelled {
		return s.Cancel(ctx, CancelInput{OrderID: input.OrderID, Actor: input.Actor, Note: input.Note})
	}
	if input.NewStatus == enums.OrderStatusDisputed {
		return pkgerrors.New(pkgerrors.CodeValidation, "disputes are opened through report issue")
	}
	if IsCoordinatorOnly(input.NewStatus) && input.Actor.Role != enums.ActorRoleSystem {
		return pkgerrors.New(pkgerrors.CodeForbidden, "status is set by the delivery flow")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !actorEligible(order, input.Actor) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "actor not eligible for this order")
		}
		if !CanTransition(order.Status, input.NewStatus) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status transition").
				WithDetails(map[string]any{"from": order.Status, "to": input.NewStatus})
		}

		if input.NewStatus == enums.OrderStatusConfirmed && order.PaymentMethod == enums.PaymentMethodPrepaid {
			paid, err := s.payments.HasSuccessfulPayment(ctx, order.ID)
			if err != nil {
				return err
			}
			if !paid {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "prepaid order requires a successful payment before confirmation")
			}
		}

		fromStatus := order.Status
		won, err := repo.UpdateOrderStatus(ctx, order.ID, fromStatus, input.NewStatus)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}

		// Leaving disputed closes the dispute in the same transaction.
		if fromStatus == enums.OrderStatusDisputed {
			if err := repo.ResolveDispute(ctx, order.ID, time.Now().UTC()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
			}
		}

		return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			OrderID:   order.ID,
			Status:    input.NewStatus,
			Note:      input.Note,
			ActorID:   input.Actor.ID,
			ActorRole: input.Actor.Role,
		})
	})
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.IsZero() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !actorEligible(order, input.Actor) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "actor not eligible for this order")
		}
		if !cancellable(order.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"status": order.Status})
		}

		paid, err := s.payments.HasSuccessfulPayment(ctx, order.ID)
		if err != nil {
			return err
		}
		if paid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has a successful payment; request a refund instead")
		}

		fromStatus := order.Status
		won, err := repo.UpdateOrderStatus(ctx, order.ID, fromStatus, enums.OrderStatusCancelled)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}

		if fromStatus == enums.OrderStatusDisputed {
			// Disputes open post-delivery; the goods already left the farm and
			// their reserved units were consumed, so there is nothing to put
			// back on the shelf.
			if err := repo.ResolveDispute(ctx, order.ID, time.Now().UTC()); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
			}
		} else {
			// Restoration and cancellation commit in the same transaction.
			for _, item := range order.Items {
				if err := s.inventory.Release(ctx, tx, item.ProductID, item.Qty); err != nil {
					return err
				}
			}
		}

		return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			OrderID:   order.ID,
			Status:    enums.OrderStatusCancelled,
			Note:      input.Note,
			ActorID:   input.Actor.ID,
			ActorRole: input.Actor.Role,
		})
	})
}

func (s *service) ReportIssue(ctx context.Context, input ReportIssueInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.IsZero() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "dispute reason required")
	}
	if input.Actor.Role != enums.ActorRoleBuyer && input.Actor.Role != enums.ActorRoleFarmer && input.Actor.Role != enums.ActorRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only buyer or farmer may report an issue")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !actorEligible(order, input.Actor) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "actor not eligible for this order")
		}
		// The graph's only entry into disputed is from delivered.
		if order.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be disputed").
				WithDetails(map[string]any{"status": order.Status})
		}

		won, err := repo.OpenDispute(ctx, order.ID, order.Status, input.Reason, time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open dispute")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
		}

		reason := input.Reason
		return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			OrderID:   order.ID,
			Status:    enums.OrderStatusDisputed,
			Note:      &reason,
			ActorID:   input.Actor.ID,
			ActorRole: input.Actor.Role,
		})
	})
}

func (s *service) AttachProvider(ctx context.Context, tx *gorm.DB, orderID, providerID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required to attach provider")
	}
	repo := s.repo.WithTx(tx)

	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer receive a delivery assignment")
	}
	if order.DeliveryProviderID != nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "order already has a delivery provider")
	}

	if err := repo.SetDeliveryProvider(ctx, orderID, providerID, enums.DeliveryStatusAssigned); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach delivery provider")
	}

	note := "delivery provider assigned"
	return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
		OrderID:   orderID,
		Status:    order.Status,
		Note:      &note,
		ActorID:   providerID,
		ActorRole: enums.ActorRoleSystem,
	})
}

func (s *service) ApplyDeliveryUpdate(ctx context.Context, tx *gorm.DB, orderID, providerID uuid.UUID, status enums.DeliveryStatus, at time.Time) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for delivery update")
	}
	repo := s.repo.WithTx(tx)

	switch status {
	case enums.DeliveryStatusDelivered:
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		won, err := repo.ForceDelivered(ctx, orderID, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order delivered")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already terminal")
		}
		// The goods left the farm; the hold on them is spent, not returned.
		for _, item := range order.Items {
			if err := s.inventory.Consume(ctx, tx, item.ProductID, item.Qty); err != nil {
				return err
			}
		}
		return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
			OrderID:   orderID,
			Status:    enums.OrderStatusDelivered,
			ActorID:   providerID,
			ActorRole: enums.ActorRoleSystem,
		})
	case enums.DeliveryStatusInTransit, enums.DeliveryStatusPickedUp:
		if err := repo.SetDeliveryStatus(ctx, orderID, status, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror delivery status")
		}
		// The order only leaves ready_for_pickup once; a lost race here just
		// means the move already happened.
		won, err := repo.UpdateOrderStatus(ctx, orderID, enums.OrderStatusReadyForPickup, enums.OrderStatusInTransit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move order in transit")
		}
		if won {
			return repo.AppendTimeline(ctx, &models.OrderTimelineEntry{
				OrderID:   orderID,
				Status:    enums.OrderStatusInTransit,
				ActorID:   providerID,
				ActorRole: enums.ActorRoleSystem,
			})
		}
		return nil
	default:
		if err := repo.SetDeliveryStatus(ctx, orderID, status, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror delivery status")
		}
		return nil
	}
}

func actorEligible(order *models.Order, actor types.Actor) bool {
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
	}
	return false
}

func cancellable(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusInTransit, enums.OrderStatusDelivered, enums.OrderStatusCompleted, enums.OrderStatusCancelled:
		return false
	default:
		return true
	}
}

func newOrderNumber() string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("FGO-%s-%s", time.Now().UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(suffix)))
}
