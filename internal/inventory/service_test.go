package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`
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
);`).Error)
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, available, reserved int, active bool) uuid.UUID {
	t.Helper()

	id := uuid.New()
	require.NoError(t, db.Exec(`
		INSERT INTO products (id, farmer_id, name, unit_price, available_qty, reserved_qty, active)
		VALUES (?, ?, 'Cassava', 10, ?, ?, ?)
	`, id, uuid.New(), available, reserved, active).Error)
	return id
}

func counts(t *testing.T, db *gorm.DB, id uuid.UUID) (available, reserved int) {
	t.Helper()

	row := db.Raw(`SELECT available_qty, reserved_qty FROM products WHERE id = ?`, id).Row()
	require.NoError(t, row.Scan(&available, &reserved))
	return available, reserved
}

func TestAdjusterReserve(t *testing.T) {
	db := setupInventoryTestDB(t)
	adj := NewAdjuster()
	ctx := context.Background()

	productID := seedProduct(t, db, 10, 0, true)

	ok, err := adj.Reserve(ctx, db, productID, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	available, reserved := counts(t, db, productID)
	assert.Equal(t, 6, available)
	assert.Equal(t, 4, reserved)

	// More than remaining stock is refused without changing counters.
	ok, err = adj.Reserve(ctx, db, productID, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	available, reserved = counts(t, db, productID)
	assert.Equal(t, 6, available)
	assert.Equal(t, 4, reserved)
}

func TestAdjusterReserve_inactiveProduct(t *testing.T) {
	db := setupInventoryTestDB(t)
	adj := NewAdjuster()

	productID := seedProduct(t, db, 10, 0, false)

	ok, err := adj.Reserve(context.Background(), db, productID, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdjusterReleaseAndConsume(t *testing.T) {
	db := setupInventoryTestDB(t)
	adj := NewAdjuster()
	ctx := context.Background()

	productID := seedProduct(t, db, 3, 7, true)

	require.NoError(t, adj.Release(ctx, db, productID, 5))
	available, reserved := counts(t, db, productID)
	assert.Equal(t, 8, available)
	assert.Equal(t, 2, reserved)

	require.NoError(t, adj.Consume(ctx, db, productID, 2))
	available, reserved = counts(t, db, productID)
	assert.Equal(t, 8, available)
	assert.Equal(t, 0, reserved)
}
