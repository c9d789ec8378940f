package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/movilpay/vendorpay-backend/pkg/enums"
)

// Notification records a settlement lifecycle event addressed to a vendor or
// to staff. Delivery is best effort and never blocks the owning transition.
type Notification struct {
	ID        uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Audience  enums.NotificationAudience `gorm:"column:audience;type:text;not null"`
	VendorID  *uuid.UUID                 `gorm:"column:vendor_id;type:uuid"`
	Kind      enums.NotificationKind     `gorm:"column:kind;type:text;not null"`
	Body      json.RawMessage            `gorm:"column:body;type:jsonb"`
	ReadAt    *time.Time                 `gorm:"column:read_at"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
