package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/movilpay/vendorpay-backend/pkg/db/models"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	"github.com/movilpay/vendorpay-backend/pkg/pagination"
)

// Repository manages persistence for sales.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sale *models.Sale) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	ExistsApprovedIMEI(ctx context.Context, imei string) (bool, error)
	MaxNumber(ctx context.Context) (string, error)
	ApplyValidation(ctx context.Context, saleID uuid.UUID, updates map[string]any) (int64, error)
	List(ctx context.Context, params listParams) ([]models.Sale, *pagination.Cursor, error)
}

type listParams struct {
	VendorID uuid.UUID
	Status   *enums.SaleStatus
	Limit    int
	Cursor   *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a sale repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	if err := r.db.WithContext(ctx).First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) ExistsApprovedIMEI(ctx context.Context, imei string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("imei = ? AND status = ?", imei, enums.SaleStatusApproved).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// MaxNumber returns the highest assigned sale number, or "" when none exist.
// Longer numbers sort first so the sequence keeps advancing once it outgrows
// its zero padding.
func (r *repository) MaxNumber(ctx context.Context) (string, error) {
	var number string
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select("number").
		Order("length(number) DESC, number DESC").
		Limit(1).
		Scan(&number).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return number, err
}

// ApplyValidation performs the single guarded pending-to-terminal update.
// Zero rows affected means the sale was not pending anymore.
func (r *repository) ApplyValidation(ctx context.Context, saleID uuid.UUID, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND status = ?", saleID, enums.SaleStatusPending).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.Sale, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Sale{})
	if params.VendorID != uuid.Nil {
		query = query.Where("vendor_id = ?", params.VendorID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var sales []models.Sale
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&sales).Error; err != nil {
		return nil, nil, err
	}

	if len(sales) > normalized {
		sales = sales[:normalized]
		last := sales[len(sales)-1]
		return sales, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return sales, nil, nil
}
