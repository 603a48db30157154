package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmgatehq/farmgate-backend/pkg/enums"
	"github.com/farmgatehq/farmgate-backend/pkg/types"
)

// Order is the buyer-facing order aggregate. TotalAmount is derived from the
// line subtotals and recomputed explicitly at the end of every mutating
// operation.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber   string              `gorm:"column:order_number;not null;unique"`
	BuyerID       uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null;default:'prepaid'"`
	Currency      string              `gorm:"column:currency;not null;default:'NGN'"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:numeric;not null"`

	DeliveryMethod     enums.DeliveryMethod  `gorm:"column:delivery_method;type:text;not null;default:'home_delivery'"`
	DeliveryAddress    *types.Address        `gorm:"column:delivery_address;type:jsonb;serializer:json"`
	DeliveryProviderID *uuid.UUID            `gorm:"column:delivery_provider_id;type:uuid"`
	DeliveryStatus     *enums.DeliveryStatus `gorm:"column:delivery_status;type:text"`
	ActualDeliveryDate *time.Time            `gorm:"column:actual_delivery_date"`

	DisputeReason     *string              `gorm:"column:dispute_reason"`
	DisputeStatus     *enums.DisputeStatus `gorm:"column:dispute_status;type:text"`
	DisputeOpenedAt   *time.Time           `gorm:"column:dispute_opened_at"`
	DisputeResolvedAt *time.Time           `gorm:"column:dispute_resolved_at"`

	Items    []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Timeline []OrderTimelineEntry `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
