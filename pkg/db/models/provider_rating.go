package models

import (
	"time"

	"github.com/google/uuid"
)

// ProviderRating is one buyer rating of a provider for a delivered order.
// One rating per order per buyer.
type ProviderRating struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderID uuid.UUID `gorm:"column:provider_id;type:uuid;not null;index"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_provider_ratings_order_buyer"`
	BuyerID    uuid.UUID `gorm:"column:buyer_id;type:uuid;not null;uniqueIndex:idx_provider_ratings_order_buyer"`
	Score      int       `gorm:"column:score;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
