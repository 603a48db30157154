package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/farmgatehq/farmgate-backend/pkg/db/models"
	"github.com/farmgatehq/farmgate-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	products := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  farmer_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  available_qty INTEGER NOT NULL DEFAULT 0,
  reserved_qty INTEGER NOT NULL DEFAULT 0,
  active INTEGER NOT NULL DEFAULT 1,
  farm_location TEXT,
  created_at DATETIME,
  updated_at DATETIME
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
	lineItems := `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  farmer_id TEXT NOT NULL,
  name TEXT NOT NULL,
  qty INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  subtotal NUMERIC NOT NULL,
  created_at DATETIME
);`
	timeline := `
CREATE TABLE IF NOT EXISTS order_timeline_entries (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  status TEXT NOT NULL,
  note TEXT,
  actor_id TEXT NOT NULL,
  actor_role TEXT NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(products).Error)
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(lineItems).Error)
	require.NoError(t, db.Exec(timeline).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:             uuid.New(),
		OrderNumber:    "FGO-TEST-" + uuid.NewString()[:8],
		BuyerID:        uuid.New(),
		Status:         status,
		PaymentMethod:  enums.PaymentMethodPrepaid,
		Currency:       "NGN",
		TotalAmount:    decimal.NewFromInt(100),
		DeliveryMethod: enums.DeliveryMethodHomeDelivery,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepositoryUpdateOrderStatus_singleWinner(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPending)

	won, err := repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
	require.NoError(t, err)
	assert.True(t, won)

	// The competing transition from the same starting status loses.
	won, err = repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled)
	require.NoError(t, err)
	assert.False(t, won)

	var reloaded models.Order
	require.NoError(t, db.Where("id = ?", order.ID).First(&reloaded).Error)
	assert.Equal(t, enums.OrderStatusConfirmed, reloaded.Status)
}

func TestRepositoryForceDelivered(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusInTransit)
	at := time.Now().UTC()

	won, err := repo.ForceDelivered(ctx, order.ID, at)
	require.NoError(t, err)
	assert.True(t, won)

	var reloaded models.Order
	require.NoError(t, db.Where("id = ?", order.ID).First(&reloaded).Error)
	assert.Equal(t, enums.OrderStatusDelivered, reloaded.Status)
	require.NotNil(t, reloaded.DeliveryStatus)
	assert.Equal(t, enums.DeliveryStatusDelivered, *reloaded.DeliveryStatus)
	require.NotNil(t, reloaded.ActualDeliveryDate)

	terminal := seedOrder(t, db, enums.OrderStatusCompleted)
	won, err = repo.ForceDelivered(ctx, terminal.ID, at)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestRepositoryOpenDispute(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusDelivered)
	openedAt := time.Now().UTC()

	won, err := repo.OpenDispute(ctx, order.ID, enums.OrderStatusDelivered, "wrong produce delivered", openedAt)
	require.NoError(t, err)
	assert.True(t, won)

	var reloaded models.Order
	require.NoError(t, db.Where("id = ?", order.ID).First(&reloaded).Error)
	assert.Equal(t, enums.OrderStatusDisputed, reloaded.Status)
	require.NotNil(t, reloaded.DisputeStatus)
	assert.Equal(t, enums.DisputeStatusOpen, *reloaded.DisputeStatus)
	require.NotNil(t, reloaded.DisputeReason)
	assert.Equal(t, "wrong produce delivered", *reloaded.DisputeReason)

	// The stale-from guard rejects a second open.
	won, err = repo.OpenDispute(ctx, order.ID, enums.OrderStatusDelivered, "again", openedAt)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestRepositoryFindOrder_preloads(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPending)
	item := &models.OrderLineItem{
		ID:        uuid.New(),
		OrderID:   order.ID,
		ProductID: uuid.New(),
		FarmerID:  uuid.New(),
		Name:      "Yams",
		Qty:       5,
		UnitPrice: decimal.NewFromInt(10),
		Subtotal:  decimal.NewFromInt(50),
	}
	require.NoError(t, db.Create(item).Error)
	entry := &models.OrderTimelineEntry{
		ID:        uuid.New(),
		OrderID:   order.ID,
		Status:    enums.OrderStatusPending,
		ActorID:   order.BuyerID,
		ActorRole: enums.ActorRoleBuyer,
	}
	require.NoError(t, db.Create(entry).Error)

	found, err := repo.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Yams", found.Items[0].Name)
	require.Len(t, found.Timeline, 1)
	assert.Equal(t, enums.OrderStatusPending, found.Timeline[0].Status)
}
