package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/movilpay/vendorpay-backend/pkg/enums"
)

// PaymentBatch groups multiple vendors' payable commissions into one payout
// run. Number is unique per day (sequence resets daily); completion is an
// explicit administrative action taken after funds actually move.
type PaymentBatch struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Number      string                   `gorm:"column:number;not null;uniqueIndex:uniq_payment_batches_number"`
	PeriodStart time.Time                `gorm:"column:period_start;not null"`
	PeriodEnd   time.Time                `gorm:"column:period_end;not null"`
	PaymentType enums.PaymentType        `gorm:"column:payment_type;type:text;not null"`
	Total       decimal.Decimal          `gorm:"column:total;type:numeric(14,2);not null"`
	VendorCount int                      `gorm:"column:vendor_count;not null"`
	Status      enums.PaymentBatchStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	TransferRef *string                  `gorm:"column:transfer_ref"`
	CompletedAt *time.Time               `gorm:"column:completed_at"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
