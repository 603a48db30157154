package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/farmgatehq/farmgate-backend/pkg/types"
)

// Product is a farmer's catalog entry with its inventory counters. Quantity
// adjustments go through single conditional UPDATE statements, never a
// read-modify-write round trip.
type Product struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FarmerID     uuid.UUID       `gorm:"column:farmer_id;type:uuid;not null;index"`
	Name         string          `gorm:"column:name;not null"`
	Categories   pq.StringArray  `gorm:"column:categories;type:text[]"`
	UnitPrice    decimal.Decimal `gorm:"column:unit_price;type:numeric;not null"`
	AvailableQty int             `gorm:"column:available_qty;not null;default:0"`
	ReservedQty  int             `gorm:"column:reserved_qty;not null;default:0"`
	Active       bool            `gorm:"column:active;not null;default:true"`
	FarmLocation *types.Address  `gorm:"column:farm_location;type:jsonb;serializer:json"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
