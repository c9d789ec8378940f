package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/movilpay/vendorpay-backend/pkg/enums"
)

// Vendor is a commissioned seller registered with the platform.
type Vendor struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string             `gorm:"column:name;not null"`
	Phone     *string            `gorm:"column:phone"`
	Email     *string            `gorm:"column:email"`
	Status    enums.VendorStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
