package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmgatehq/farmgate-backend/pkg/db/models"
	"github.com/farmgatehq/farmgate-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a deliveries repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProvider(ctx context.Context, id uuid.UUID) (*models.LogisticsProvider, error) {
	var provider models.LogisticsProvider
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&provider).Error
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

func (r *repository) ListProviders(ctx context.Context, onlyAvailable bool) ([]models.LogisticsProvider, error) {
	query := r.db.WithContext(ctx).Where("active = ?", true)
	if onlyAvailable {
		query = query.Where("available = ?", true)
	}
	var providers []models.LogisticsProvider
	if err := query.Order("rating_average DESC").Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}

func (r *repository) CreateProvider(ctx context.Context, provider *models.LogisticsProvider) (*models.LogisticsProvider, error) {
	if err := r.db.WithContext(ctx).Create(provider).Error; err != nil {
		return nil, err
	}
	return provider, nil
}

func (r *repository) CountActiveByProvider(ctx context.Context, providerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("provider_id = ? AND status NOT IN ?", providerID, []enums.DeliveryStatus{
			enums.DeliveryStatusDelivered,
			enums.DeliveryStatusFailed,
		}).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateDelivery(ctx context.Context, delivery *models.Delivery) (*models.Delivery, error) {
	if err := r.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

func (r *repository) FindDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Preload("Timeline", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("order_id = ?", orderID).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, from, to enums.DeliveryStatus, deliveredAt *time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now().UTC(),
	}
	if deliveredAt != nil {
		updates["delivered_at"] = *deliveredAt
	}
	res := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) AppendTimeline(ctx context.Context, entry *models.DeliveryTimelineEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) CreateRating(ctx context.Context, rating *models.ProviderRating) error {
	return r.db.WithContext(ctx).Create(rating).Error
}

func (r *repository) ApplyRating(ctx context.Context, providerID uuid.UUID, score int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE logistics_providers
		SET rating_average = (rating_average * rating_count + ?) / (rating_count + 1),
			rating_count = rating_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, score, providerID).Error
}

func (r *repository) IncrementProviderCounters(ctx context.Context, providerID uuid.UUID, successful bool) error {
	success := 0
	if successful {
		success = 1
	}
	return r.db.WithContext(ctx).Exec(`
		UPDATE logistics_providers
		SET total_deliveries = total_deliveries + 1,
			successful_deliveries = successful_deliveries + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, success, providerID).Error
}

func (r *repository) UpdateProviderPerformance(ctx context.Context, providerID uuid.UUID, onTimeRate, averageMinutes float64) error {
	return r.db.WithContext(ctx).
		Model(&models.LogisticsProvider{}).
		Where("id = ?", providerID).
		Updates(map[string]any{
			"on_time_delivery_rate":    onTimeRate,
			"average_delivery_minutes": averageMinutes,
			"updated_at":               time.Now().UTC(),
		}).Error
}

func (r *repository) ListDeliveredTimelineBounds(ctx context.Context, providerID uuid.UUID) ([]TimelineBounds, error) {
	rows, err := r.db.WithContext(ctx).Raw(`
		SELECT MIN(e.created_at) AS first, MAX(e.created_at) AS last
		FROM delivery_timeline_entries e
		JOIN deliveries d ON d.id = e.delivery_id
		WHERE d.provider_id = ? AND d.status = ?
		GROUP BY e.delivery_id
	`, providerID, enums.DeliveryStatusDelivered).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bounds []TimelineBounds
	for rows.Next() {
		var b TimelineBounds
		if err := rows.Scan(&b.First, &b.Last); err != nil {
			return nil, err
		}
		bounds = append(bounds, b)
	}
	return bounds, rows.Err()
}

func (r *repository) ListUnlinkedDeliveries(ctx context.Context, limit int) ([]models.Delivery, error) {
	query := r.db.WithContext(ctx).
		Where(`order_id IN (SELECT id FROM orders WHERE delivery_provider_id IS NULL)`).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var deliveries []models.Delivery
	if err := query.Find(&deliveries).Error; err != nil {
		return nil, err
	}
	return deliveries, nil
}

func (r *repository) ListOrphanOrderAssignments(ctx context.Context, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Where(`delivery_provider_id IS NOT NULL AND id NOT IN (SELECT order_id FROM deliveries)`).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
