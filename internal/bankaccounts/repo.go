package bankaccounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/movilpay/vendorpay-backend/pkg/db/models"
)

// Repository is the read-only directory of payout destinations. Account CRUD
// and verification happen in another system; settlement only asks whether a
// vendor has a verified primary account and where to send funds.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.BankAccount, error)
	FindVerifiedPrimary(ctx context.Context, vendorID uuid.UUID) (*models.BankAccount, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.BankAccount, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a bank account repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.BankAccount, error) {
	var account models.BankAccount
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) FindVerifiedPrimary(ctx context.Context, vendorID uuid.UUID) (*models.BankAccount, error) {
	var account models.BankAccount
	if err := r.db.WithContext(ctx).
		First(&account, "vendor_id = ? AND is_primary = ? AND verified_at IS NOT NULL", vendorID, true).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.BankAccount, error) {
	var accounts []models.BankAccount
	if err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("is_primary DESC, created_at ASC").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}
