package models

import (
	"time"

	"github.com/google/uuid"
)

// BankAccount is a payout destination owned by a vendor. Verification is
// performed outside this system; only verified primary accounts are eligible
// for payment approval and batching.
type BankAccount struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	VendorID      uuid.UUID  `gorm:"column:vendor_id;type:uuid;not null"`
	BankName      string     `gorm:"column:bank_name;not null"`
	AccountNumber string     `gorm:"column:account_number;not null"`
	HolderName    string     `gorm:"column:holder_name;not null"`
	IsPrimary     bool       `gorm:"column:is_primary;not null;default:false"`
	VerifiedAt    *time.Time `gorm:"column:verified_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// IsVerified reports whether the account passed external verification.
func (a BankAccount) IsVerified() bool {
	return a.VerifiedAt != nil
}
