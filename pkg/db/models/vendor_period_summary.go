package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/movilpay/vendorpay-backend/pkg/enums"
)

// VendorPeriodSummary is the running per-vendor, per-month aggregate used
// for batch eligibility. It is an additive projection incremented on every
// commission creation; Recalculate re-derives a period from approved sales
// and is safe to re-run.
type VendorPeriodSummary struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID        uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null;uniqueIndex:uniq_vendor_period,priority:1"`
	Period          string              `gorm:"column:period;type:char(7);not null;uniqueIndex:uniq_vendor_period,priority:2"`
	SalesCount      int                 `gorm:"column:sales_count;not null;default:0"`
	SalesTotal      decimal.Decimal     `gorm:"column:sales_total;type:numeric(14,2);not null;default:0"`
	CommissionTotal decimal.Decimal     `gorm:"column:commission_total;type:numeric(14,2);not null;default:0"`
	Status          enums.SummaryStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentBatchID  *uuid.UUID          `gorm:"column:payment_batch_id;type:uuid"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// PeriodOf formats t as the YYYY-MM period key summaries aggregate by.
func PeriodOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}
