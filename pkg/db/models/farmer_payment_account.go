package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmgatehq/farmgate-backend/pkg/enums"
)

// FarmerPaymentAccount holds a farmer's settlement target. TotalEarnings and
// TotalTransactions only ever increase, exactly once per successful
// transaction, gated by the pending-status compare-and-swap on the
// transaction row.
type FarmerPaymentAccount struct {
	ID                 uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FarmerID           uuid.UUID                `gorm:"column:farmer_id;type:uuid;not null;unique"`
	SubaccountCode     string                   `gorm:"column:subaccount_code;not null"`
	BankName           string                   `gorm:"column:bank_name;not null"`
	AccountNumber      string                   `gorm:"column:account_number;not null"`
	PercentageCharge   decimal.Decimal          `gorm:"column:percentage_charge;type:numeric;not null"`
	VerificationStatus enums.VerificationStatus `gorm:"column:verification_status;type:text;not null;default:'pending'"`
	Active             bool                     `gorm:"column:active;not null;default:true"`
	TotalEarnings      decimal.Decimal          `gorm:"column:total_earnings;type:numeric;not null;default:0"`
	TotalTransactions  int64                    `gorm:"column:total_transactions;not null;default:0"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
