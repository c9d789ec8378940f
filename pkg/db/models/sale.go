package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/movilpay/vendorpay-backend/pkg/enums"
)

// Sale represents one reported device transaction. A partial unique index on
// (imei) WHERE status='approved' guarantees an IMEI is consumed by at most
// one approved sale; the human-readable number carries its own unique index
// and is regenerated on insert conflicts.
type Sale struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Number             string                `gorm:"column:number;not null;uniqueIndex:uniq_sales_number"`
	VendorID           uuid.UUID             `gorm:"column:vendor_id;type:uuid;not null"`
	ProductID          uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	IMEI               string                `gorm:"column:imei;type:char(15);not null"`
	Price              decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null"`
	SaleDate           time.Time             `gorm:"column:sale_date;not null"`
	Channel            enums.SaleChannel     `gorm:"column:channel;type:text;not null"`
	Status             enums.SaleStatus      `gorm:"column:status;type:text;not null;default:'pending'"`
	RiskTier           enums.RiskTier        `gorm:"column:risk_tier;type:text;not null;default:'low'"`
	RiskSignals        json.RawMessage       `gorm:"column:risk_signals;type:jsonb"`
	InventoryStatus    enums.InventoryStatus `gorm:"column:inventory_status;type:text;not null"`
	InventorySnapshot  json.RawMessage       `gorm:"column:inventory_snapshot;type:jsonb"`
	CommissionAmount   decimal.Decimal       `gorm:"column:commission_amount;type:numeric(12,2);not null;default:0"`
	RejectionReason    *string               `gorm:"column:rejection_reason"`
	ValidatedBy        *uuid.UUID            `gorm:"column:validated_by;type:uuid"`
	ValidatedAt        *time.Time            `gorm:"column:validated_at"`
	EvidenceRef        string                `gorm:"column:evidence_ref;not null"`
	Vendor             *Vendor               `gorm:"foreignKey:VendorID"`
	Product            *Product              `gorm:"foreignKey:ProductID"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
