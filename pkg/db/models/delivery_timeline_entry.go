package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/farmgatehq/farmgate-backend/pkg/enums"
)

// DeliveryTimelineEntry is the append-only trail of one delivery.
type DeliveryTimelineEntry struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DeliveryID uuid.UUID            `gorm:"column:delivery_id;type:uuid;not null;index"`
	Status     enums.DeliveryStatus `gorm:"column:status;type:text;not null"`
	Location   *string              `gorm:"column:location"`
	Note       *string              `gorm:"column:note"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}
