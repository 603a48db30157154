package models

import (
	"time"

	"github.com/google/uuid"
)

// LogisticsProvider is a delivery partner. Performance fields are derived and
// recomputed when one of its deliveries reaches a terminal status.
type LogisticsProvider struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Phone     *string   `gorm:"column:phone"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	Available bool      `gorm:"column:available;not null;default:true"`

	RatingAverage float64 `gorm:"column:rating_average;not null;default:0"`
	RatingCount   int64   `gorm:"column:rating_count;not null;default:0"`

	TotalDeliveries        int64   `gorm:"column:total_deliveries;not null;default:0"`
	SuccessfulDeliveries   int64   `gorm:"column:successful_deliveries;not null;default:0"`
	OnTimeDeliveryRate     float64 `gorm:"column:on_time_delivery_rate;not null;default:0"`
	AverageDeliveryMinutes float64 `gorm:"column:average_delivery_minutes;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
