package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmgatehq/farmgate-backend/pkg/enums"
)

// Refund reverses part or all of a successful transaction. Amount never
// exceeds the transaction amount minus prior successful refunds.
type Refund struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID    uuid.UUID          `gorm:"column:transaction_id;type:uuid;not null;index"`
	GatewayReference *string            `gorm:"column:gateway_reference"`
	Amount           decimal.Decimal    `gorm:"column:amount;type:numeric;not null"`
	Reason           string             `gorm:"column:reason;not null"`
	Status           enums.RefundStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
