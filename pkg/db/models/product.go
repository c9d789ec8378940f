package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable device model with its commission scheme. Percent and
// fixed amount are mutually exclusive; percent wins when both are set.
type Product struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string           `gorm:"column:name;not null"`
	ModelTag          string           `gorm:"column:model_tag;not null"`
	ListPrice         decimal.Decimal  `gorm:"column:list_price;type:numeric(12,2);not null"`
	CommissionPercent *decimal.Decimal `gorm:"column:commission_percent;type:numeric(5,2)"`
	CommissionFixed   *decimal.Decimal `gorm:"column:commission_fixed;type:numeric(12,2)"`
	// No default tag: gorm would skip an explicit false on insert. The
	// column default lives in the migration.
	Active bool `gorm:"column:active;not null"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// CommissionFor applies the product's scheme to the given sale price.
// Percentage takes precedence over the fixed amount; with neither set the
// commission is zero.
func (p Product) CommissionFor(price decimal.Decimal) decimal.Decimal {
	if p.CommissionPercent != nil && p.CommissionPercent.IsPositive() {
		return price.Mul(*p.CommissionPercent).Div(decimal.NewFromInt(100)).Round(2)
	}
	if p.CommissionFixed != nil && p.CommissionFixed.IsPositive() {
		return p.CommissionFixed.Round(2)
	}
	return decimal.Zero
}
