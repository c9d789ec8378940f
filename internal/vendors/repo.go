package vendors

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/movilpay/vendorpay-backend/pkg/db/models"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
)

// Stats summarizes a vendor's submission history over a trailing window.
type Stats struct {
	Submitted int64
	Rejected  int64
}

// RejectionRate returns the fraction of submitted sales that were rejected.
func (s Stats) RejectionRate() float64 {
	if s.Submitted == 0 {
		return 0
	}
	return float64(s.Rejected) / float64(s.Submitted)
}

// Repository manages vendor directory reads and history stats.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	RejectionStats(ctx context.Context, vendorID uuid.UUID, since time.Time) (Stats, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a vendor repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).First(&vendor, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

func (r *repository) RejectionStats(ctx context.Context, vendorID uuid.UUID, since time.Time) (Stats, error) {
	var stats Stats

	base := r.db.WithContext(ctx).Model(&models.Sale{}).
		Where("vendor_id = ? AND created_at >= ?", vendorID, since)

	if err := base.Session(&gorm.Session{}).Count(&stats.Submitted).Error; err != nil {
		return Stats{}, err
	}
	if err := base.Session(&gorm.Session{}).
		Where("status = ?", enums.SaleStatusRejected).
		Count(&stats.Rejected).Error; err != nil {
		return Stats{}, err
	}
	return stats, nil
}
