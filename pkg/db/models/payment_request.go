package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/movilpay/vendorpay-backend/pkg/db/types"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
)

// PaymentRequest is a vendor's cash-out instruction over a snapshot of their
// pending commissions. The partial unique index uniq_payment_requests_open
// on (vendor_id) WHERE status='pending' is what actually enforces the
// one-open-request-per-vendor rule under concurrent writers; the application
// check only produces a friendlier error first.
type PaymentRequest struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID      uuid.UUID                  `gorm:"column:vendor_id;type:uuid;not null"`
	Total         decimal.Decimal            `gorm:"column:total;type:numeric(12,2);not null"`
	CommissionIDs dbtypes.UUIDArray          `gorm:"column:commission_ids;type:uuid[];not null"`
	Status        enums.PaymentRequestStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Reason        *string                    `gorm:"column:reason"`
	ApproverID    *uuid.UUID                 `gorm:"column:approver_id;type:uuid"`
	ResolvedAt    *time.Time                 `gorm:"column:resolved_at"`
	ReceiptRef    *string                    `gorm:"column:receipt_ref"`
	BankAccountID *uuid.UUID                 `gorm:"column:bank_account_id;type:uuid"`
	Vendor        *Vendor                    `gorm:"foreignKey:VendorID"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
