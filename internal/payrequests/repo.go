package payrequests

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/movilpay/vendorpay-backend/pkg/db/models"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	"github.com/movilpay/vendorpay-backend/pkg/pagination"
)

// Repository manages persistence for payment requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.PaymentRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error)
	FindOpenByVendor(ctx context.Context, vendorID uuid.UUID) (*models.PaymentRequest, error)
	ApplyResolution(ctx context.Context, requestID uuid.UUID, updates map[string]any) (int64, error)
	List(ctx context.Context, params listParams) ([]models.PaymentRequest, *pagination.Cursor, error)
}

type listParams struct {
	VendorID uuid.UUID
	Status   *enums.PaymentRequestStatus
	Limit    int
	Cursor   *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.PaymentRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error) {
	var request models.PaymentRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// FindOpenByVendor returns the vendor's pending request, or ErrRecordNotFound.
// The uniq_payment_requests_open partial index guarantees at most one exists.
func (r *repository) FindOpenByVendor(ctx context.Context, vendorID uuid.UUID) (*models.PaymentRequest, error) {
	var request models.PaymentRequest
	err := r.db.WithContext(ctx).
		First(&request, "vendor_id = ? AND status = ?", vendorID, enums.PaymentRequestStatusPending).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// ApplyResolution performs the single guarded pending-to-terminal update.
// Zero rows affected means another actor already resolved the request.
func (r *repository) ApplyResolution(ctx context.Context, requestID uuid.UUID, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentRequest{}).
		Where("id = ? AND status = ?", requestID, enums.PaymentRequestStatusPending).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.PaymentRequest, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.PaymentRequest{})
	if params.VendorID != uuid.Nil {
		query = query.Where("vendor_id = ?", params.VendorID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var requests []models.PaymentRequest
	if err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&requests).Error; err != nil {
		return nil, nil, err
	}
	if len(requests) > normalized {
		requests = requests[:normalized]
		last := requests[len(requests)-1]
		return requests, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return requests, nil, nil
}
