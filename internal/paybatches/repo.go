package paybatches

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/movilpay/vendorpay-backend/pkg/db/models"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	"github.com/movilpay/vendorpay-backend/pkg/pagination"
)

// Repository manages persistence for payment batches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, batch *models.PaymentBatch) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentBatch, error)
	MaxNumberForPrefix(ctx context.Context, prefix string) (string, error)
	ApplyStatus(ctx context.Context, batchID uuid.UUID, from, to enums.PaymentBatchStatus, extra map[string]any) (int64, error)
	SetTransferRef(ctx context.Context, batchID uuid.UUID, ref string) error
	List(ctx context.Context, params listParams) ([]models.PaymentBatch, *pagination.Cursor, error)
}

type listParams struct {
	Status *enums.PaymentBatchStatus
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment batch repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, batch *models.PaymentBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentBatch, error) {
	var batch models.PaymentBatch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

// MaxNumberForPrefix returns the highest batch number starting with prefix,
// or "" when none exist. Longer numbers sort first so the daily sequence
// keeps advancing once it outgrows its zero padding.
func (r *repository) MaxNumberForPrefix(ctx context.Context, prefix string) (string, error) {
	var number string
	err := r.db.WithContext(ctx).
		Model(&models.PaymentBatch{}).
		Select("number").
		Where("number LIKE ?", prefix+"%").
		Order("length(number) DESC, number DESC").
		Limit(1).
		Scan(&number).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	return number, err
}

// ApplyStatus performs a guarded batch status update. Zero rows affected
// means the batch was not in the expected status.
func (r *repository) ApplyStatus(ctx context.Context, batchID uuid.UUID, from, to enums.PaymentBatchStatus, extra map[string]any) (int64, error) {
	updates := map[string]any{"status": to}
	for key, value := range extra {
		updates[key] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.PaymentBatch{}).
		Where("id = ? AND status = ?", batchID, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) SetTransferRef(ctx context.Context, batchID uuid.UUID, ref string) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentBatch{}).
		Where("id = ?", batchID).
		Update("transfer_ref", ref).Error
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.PaymentBatch, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.PaymentBatch{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var batches []models.PaymentBatch
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&batches).Error; err != nil {
		return nil, nil, err
	}
	if len(batches) > normalized {
		batches = batches[:normalized]
		last := batches[len(batches)-1]
		return batches, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return batches, nil, nil
}
