package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmgatehq/farmgate-backend/pkg/enums"
)

// PaymentTransaction tracks one charge attempt end-to-end. Reference is the
// idempotency key shared with the settlement gateway. Amounts are whole
// currency units; PlatformFee + FarmerAmount == Amount when a split applies.
type PaymentTransaction struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Reference   string              `gorm:"column:reference;not null;unique"`
	BuyerID     uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null;index"`
	BuyerEmail  string              `gorm:"column:buyer_email;not null"`
	FarmerID    *uuid.UUID          `gorm:"column:farmer_id;type:uuid;index"`
	OrderID     *uuid.UUID          `gorm:"column:order_id;type:uuid;index"`
	Amount      decimal.Decimal     `gorm:"column:amount;type:numeric;not null"`
	Currency    string              `gorm:"column:currency;not null;default:'NGN'"`
	PlatformFee decimal.Decimal     `gorm:"column:platform_fee;type:numeric;not null"`
	FarmerAmount decimal.Decimal    `gorm:"column:farmer_amount;type:numeric;not null"`
	Status      enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Channel     *string             `gorm:"column:channel"`
	PaidAt      *time.Time          `gorm:"column:paid_at"`

	WebhookEvents []WebhookEvent `gorm:"foreignKey:TransactionID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
