package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/movilpay/vendorpay-backend/pkg/enums"
)

// Commission is the money owed to a vendor for one approved sale. The unique
// index on sale_id enforces exactly-one-commission-per-sale at the storage
// layer; the amount is computed once at approval and never recalculated.
type Commission struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SaleID           uuid.UUID              `gorm:"column:sale_id;type:uuid;not null;uniqueIndex:uniq_commissions_sale"`
	VendorID         uuid.UUID              `gorm:"column:vendor_id;type:uuid;not null"`
	ProductID        uuid.UUID              `gorm:"column:product_id;type:uuid;not null"`
	BaseAmount       decimal.Decimal        `gorm:"column:base_amount;type:numeric(12,2);not null"`
	Amount           decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Status           enums.CommissionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentRequestID *uuid.UUID             `gorm:"column:payment_request_id;type:uuid"`
	PaymentBatchID   *uuid.UUID             `gorm:"column:payment_batch_id;type:uuid"`
	Sale             *Sale                  `gorm:"foreignKey:SaleID"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
