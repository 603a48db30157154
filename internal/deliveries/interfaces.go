package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmgatehq/farmgate-backend/pkg/db/models"
	"github.com/farmgatehq/farmgate-backend/pkg/enums"
)

// TimelineBounds holds the first and last timeline timestamps of one
// delivered delivery, used for the average delivery time aggregate.
type TimelineBounds struct {
	First time.Time
	Last  time.Time
}

// Repository covers logistics aggregate persistence. The order aggregate is
// read here but only ever mutated through the orders bridge.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindProvider(ctx context.Context, id uuid.UUID) (*models.LogisticsProvider, error)
	ListProviders(ctx context.Context, onlyAvailable bool) ([]models.LogisticsProvider, error)
	CreateProvider(ctx context.Context, provider *models.LogisticsProvider) (*models.LogisticsProvider, error)
	CountActiveByProvider(ctx context.Context, providerID uuid.UUID) (int64, error)

	CreateDelivery(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error)
	FindDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	// UpdateDeliveryStatus flips status from->to and reports whether this
	// call won.
	UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, from, to enums.DeliveryStatus, deliveredAt *time.Time) (bool, error)
	AppendTimeline(ctx context.Context, entry *models.DeliveryTimelineEntry) error

	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)

	CreateRating(ctx context.Context, rating *models.ProviderRating) error
	// ApplyRating folds one score into the provider's running average with a
	// single atomic UPDATE.
	ApplyRating(ctx context.Context, providerID uuid.UUID, score int) error

	IncrementProviderCounters(ctx context.Context, providerID uuid.UUID, successful bool) error
	UpdateProviderPerformance(ctx context.Context, providerID uuid.UUID, onTimeRate, averageMinutes float64) error
	ListDeliveredTimelineBounds(ctx context.Context, providerID uuid.UUID) ([]TimelineBounds, error)

	// ListUnlinkedDeliveries returns deliveries whose order row lost the
	// provider link, produced by a crash between the two halves of an
	// assignment.
	ListUnlinkedDeliveries(ctx context.Context, limit int) ([]models.Delivery, error)
	// ListOrphanOrderAssignments returns orders that reference a provider
	// but have no delivery row.
	ListOrphanOrderAssignments(ctx context.Context, limit int) ([]models.Order, error)
}
