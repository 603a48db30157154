package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/farmgatehq/farmgate-backend/pkg/enums"
	"github.com/farmgatehq/farmgate-backend/pkg/types"
)

// Delivery is one active delivery held by a provider, correlated 1:1 with an
// order through OrderID.
type Delivery struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderID  uuid.UUID            `gorm:"column:provider_id;type:uuid;not null;index"`
	OrderID     uuid.UUID            `gorm:"column:order_id;type:uuid;not null;unique"`
	Status      enums.DeliveryStatus `gorm:"column:status;type:text;not null;default:'assigned'"`
	Pickup      *types.Address       `gorm:"column:pickup;type:jsonb;serializer:json"`
	Dropoff     *types.Address       `gorm:"column:dropoff;type:jsonb;serializer:json"`
	DeliveredAt *time.Time           `gorm:"column:delivered_at"`

	Timeline []DeliveryTimelineEntry `gorm:"foreignKey:DeliveryID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
