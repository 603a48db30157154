package deliveries

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/farmgatehq/farmgate-backend/pkg/db/models"
	"github.com/farmgatehq/farmgate-backend/pkg/enums"
)

func setupDeliveriesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	providers := `
CREATE TABLE IF NOT EXISTS logistics_providers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  available INTEGER NOT NULL DEFAULT 1,
  rating_average NUMERIC NOT NULL DEFAULT 0,
  rating_count INTEGER NOT NULL DEFAULT 0,
  total_deliveries INTEGER NOT NULL DEFAULT 0,
  successful_deliveries INTEGER NOT NULL DEFAULT 0,
  on_time_delivery_rate NUMERIC NOT NULL DEFAULT 0,
  average_delivery_minutes NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	deliveries := `
CREATE TABLE IF NOT EXISTS deliveries (
  id TEXT PRIMARY KEY,
  provider_id TEXT NOT NULL,
  order_id TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'assigned',
  pickup TEXT,
  dropoff TEXT,
  delivered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	timeline := `
CREATE TABLE IF NOT EXISTS delivery_timeline_entries (
  id TEXT PRIMARY KEY,
  delivery_id TEXT NOT NULL,
  status TEXT NOT NULL,
  location TEXT,
  note TEXT,
  created_at DATETIME
);`
	ratings := `
CREATE TABLE IF NOT EXISTS provider_ratings (
  id TEXT PRIMARY KEY,
  provider_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  score INTEGER NOT NULL,
  created_at DATETIME,
  UNIQUE (order_id, buyer_id)
);`
	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  status TEXT NOT NULL,
  payment_method TEXT NOT NULL,
  currency TEXT NOT NULL,
  total_amount NUMERIC NOT NULL,
  delivery_method TEXT NOT NULL,
  delivery_address TEXT,
  delivery_provider_id TEXT,
  delivery_status TEXT,
  actual_delivery_date DATETIME,
  dispute_reason TEXT,
  dispute_status TEXT,
  dispute_opened_at DATETIME,
  dispute_resolved_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(providers).Error)
	require.NoError(t, db.Exec(deliveries).Error)
	require.NoError(t, db.Exec(timeline).Error)
	require.NoError(t, db.Exec(ratings).Error)
	require.NoError(t, db.Exec(orders).Error)
	return db
}

func seedProvider(t *testing.T, db *gorm.DB) *models.LogisticsProvider {
	t.Helper()

	provider := &models.LogisticsProvider{
		ID:        uuid.New(),
		Name:      "Swift Riders",
		Active:    true,
		Available: true,
	}
	require.NoError(t, db.Create(provider).Error)
	return provider
}

func seedDelivery(t *testing.T, db *gorm.DB, providerID uuid.UUID, status enums.DeliveryStatus) *models.Delivery {
	t.Helper()

	delivery := &models.Delivery{
		ID:         uuid.New(),
		ProviderID: providerID,
		OrderID:    uuid.New(),
		Status:     status,
	}
	require.NoError(t, db.Create(delivery).Error)
	return delivery
}

func TestRepositoryCountActiveByProvider(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	provider := seedProvider(t, db)
	seedDelivery(t, db, provider.ID, enums.DeliveryStatusAssigned)
	seedDelivery(t, db, provider.ID, enums.DeliveryStatusInTransit)
	seedDelivery(t, db, provider.ID, enums.DeliveryStatusDelivered)
	seedDelivery(t, db, provider.ID, enums.DeliveryStatusFailed)

	count, err := repo.CountActiveByProvider(ctx, provider.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRepositoryUpdateDeliveryStatus_singleWinner(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	provider := seedProvider(t, db)
	delivery := seedDelivery(t, db, provider.ID, enums.DeliveryStatusInTransit)
	at := time.Now().UTC()

	won, err := repo.UpdateDeliveryStatus(ctx, delivery.ID, enums.DeliveryStatusInTransit, enums.DeliveryStatusDelivered, &at)
	require.NoError(t, err)
	assert.True(t, won)

	// The competing update from the same starting status loses.
	won, err = repo.UpdateDeliveryStatus(ctx, delivery.ID, enums.DeliveryStatusInTransit, enums.DeliveryStatusFailed, nil)
	require.NoError(t, err)
	assert.False(t, won)

	var reloaded models.Delivery
	require.NoError(t, db.Where("id = ?", delivery.ID).First(&reloaded).Error)
	assert.Equal(t, enums.DeliveryStatusDelivered, reloaded.Status)
	require.NotNil(t, reloaded.DeliveredAt)
}

func TestRepositoryApplyRating(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	provider := seedProvider(t, db)

	require.NoError(t, repo.ApplyRating(ctx, provider.ID, 4))
	require.NoError(t, repo.ApplyRating(ctx, provider.ID, 2))

	var reloaded models.LogisticsProvider
	require.NoError(t, db.Where("id = ?", provider.ID).First(&reloaded).Error)
	assert.Equal(t, int64(2), reloaded.RatingCount)
	assert.InDelta(t, 3.0, reloaded.RatingAverage, 0.001)
}

func TestRepositoryCreateRating_duplicateOrder(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	provider := seedProvider(t, db)
	orderID := uuid.New()
	buyerID := uuid.New()

	first := &models.ProviderRating{ID: uuid.New(), ProviderID: provider.ID, OrderID: orderID, BuyerID: buyerID, Score: 5}
	require.NoError(t, repo.CreateRating(ctx, first))

	second := &models.ProviderRating{ID: uuid.New(), ProviderID: provider.ID, OrderID: orderID, BuyerID: buyerID, Score: 1}
	err := repo.CreateRating(ctx, second)
	require.Error(t, err)
}

func TestRepositoryListDeliveredTimelineBounds(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	provider := seedProvider(t, db)
	delivery := seedDelivery(t, db, provider.ID, enums.DeliveryStatusDelivered)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, offset := range []time.Duration{0, 20 * time.Minute, 45 * time.Minute} {
		entry := &models.DeliveryTimelineEntry{
			ID:         uuid.New(),
			DeliveryID: delivery.ID,
			Status:     enums.DeliveryStatusAssigned,
			CreatedAt:  base.Add(offset),
		}
		require.NoError(t, db.Create(entry).Error, "entry %d", i)
	}

	// Timeline rows for a still-open delivery stay out of the aggregate.
	open := seedDelivery(t, db, provider.ID, enums.DeliveryStatusInTransit)
	require.NoError(t, db.Create(&models.DeliveryTimelineEntry{
		ID:         uuid.New(),
		DeliveryID: open.ID,
		Status:     enums.DeliveryStatusAssigned,
		CreatedAt:  base,
	}).Error)

	bounds, err := repo.ListDeliveredTimelineBounds(ctx, provider.ID)
	require.NoError(t, err)
	require.Len(t, bounds, 1)
	assert.Equal(t, float64(45), bounds[0].Last.Sub(bounds[0].First).Minutes())
}

func TestRepositoryDanglingLookups(t *testing.T) {
	db := setupDeliveriesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	provider := seedProvider(t, db)

	// A delivery whose order never got its provider link.
	unlinkedOrder := uuid.New()
	require.NoError(t, db.Exec(`
		INSERT INTO orders (id, order_number, buyer_id, status, payment_method, currency, total_amount, delivery_method)
		VALUES (?, 'FGO-TEST-1', ?, 'processing', 'prepaid', 'NGN', 100, 'home_delivery')
	`, unlinkedOrder, uuid.New()).Error)
	delivery := &models.Delivery{ID: uuid.New(), ProviderID: provider.ID, OrderID: unlinkedOrder, Status: enums.DeliveryStatusAssigned}
	require.NoError(t, db.Create(delivery).Error)

	// An order pointing at a provider with no delivery row behind it.
	orphanOrder := uuid.New()
	require.NoError(t, db.Exec(`
		INSERT INTO orders (id, order_number, buyer_id, status, payment_method, currency, total_amount, delivery_method, delivery_provider_id)
		VALUES (?, 'FGO-TEST-2', ?, 'processing', 'prepaid', 'NGN', 100, 'home_delivery', ?)
	`, orphanOrder, uuid.New(), provider.ID).Error)

	unlinked, err := repo.ListUnlinkedDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unlinked, 1)
	assert.Equal(t, unlinkedOrder, unlinked[0].OrderID)

	orphans, err := repo.ListOrphanOrderAssignments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, orphanOrder, orphans[0].ID)
}
