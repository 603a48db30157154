package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmgatehq/farmgate-backend/pkg/db/models"
	"github.com/farmgatehq/farmgate-backend/pkg/enums"
)

// Repository covers order aggregate persistence. Status changes go through
// compare-and-swap updates so concurrent transitions cannot both win.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)

	// UpdateOrderStatus flips status from->to and reports whether this call
	// was the one that won.
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
	OpenDispute(ctx context.Context, id uuid.UUID, from enums.OrderStatus, reason string, openedAt time.Time) (bool, error)
	ResolveDispute(ctx context.Context, id uuid.UUID, resolvedAt time.Time) error

	SetDeliveryProvider(ctx context.Context, id uuid.UUID, providerID uuid.UUID, status enums.DeliveryStatus) error
	SetDeliveryStatus(ctx context.Context, id uuid.UUID, status enums.DeliveryStatus, deliveredAt *time.Time) error

	// ForceDelivered stamps delivered state unless the order already reached
	// a terminal status. Reports whether a row changed.
	ForceDelivered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	AppendTimeline(ctx context.Context, entry *models.OrderTimelineEntry) error
}
