package commissions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/movilpay/vendorpay-backend/pkg/db/models"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	"github.com/movilpay/vendorpay-backend/pkg/pagination"
)

// PeriodAggregate is one vendor's totals re-derived from approved sales.
type PeriodAggregate struct {
	VendorID        uuid.UUID       `gorm:"column:vendor_id"`
	SalesCount      int             `gorm:"column:sales_count"`
	SalesTotal      decimal.Decimal `gorm:"column:sales_total"`
	CommissionTotal decimal.Decimal `gorm:"column:commission_total"`
}

// Repository manages persistence for commissions and the per-vendor period
// summaries they feed.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, commission *models.Commission) error
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Commission, error)
	ListPendingByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Commission, error)
	List(ctx context.Context, params listParams) ([]models.Commission, *pagination.Cursor, error)
	MarkStatus(ctx context.Context, ids []uuid.UUID, from, to enums.CommissionStatus, extra map[string]any) (int64, error)
	MarkStatusByBatch(ctx context.Context, batchID uuid.UUID, from, to enums.CommissionStatus) (int64, error)
	PendingInPeriodForVendor(ctx context.Context, vendorID uuid.UUID, periodStart, periodEnd time.Time) ([]models.Commission, error)

	IncrementPeriodSummary(ctx context.Context, vendorID uuid.UUID, period string, saleAmount, commissionAmount decimal.Decimal) error
	ReplacePeriodSummary(ctx context.Context, vendorID uuid.UUID, period string, agg PeriodAggregate) error
	ApprovedSalesAggregates(ctx context.Context, periodStart, periodEnd time.Time) ([]PeriodAggregate, error)
	PendingSummariesInRange(ctx context.Context, fromPeriod, toPeriod string) ([]models.VendorPeriodSummary, error)
	ListSummaries(ctx context.Context, vendorID uuid.UUID, period string) ([]models.VendorPeriodSummary, error)
	MarkSummariesStatus(ctx context.Context, ids []uuid.UUID, from, to enums.SummaryStatus, batchID *uuid.UUID) (int64, error)
	MarkSummariesStatusByBatch(ctx context.Context, batchID uuid.UUID, from, to enums.SummaryStatus) (int64, error)
}

type listParams struct {
	VendorID uuid.UUID
	Status   *enums.CommissionStatus
	Limit    int
	Cursor   *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a commission repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, commission *models.Commission) error {
	return r.db.WithContext(ctx).Create(commission).Error
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Commission, error) {
	var commissions []models.Commission
	if len(ids) == 0 {
		return commissions, nil
	}
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at ASC").
		Find(&commissions).Error; err != nil {
		return nil, err
	}
	return commissions, nil
}

func (r *repository) ListPendingByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Commission, error) {
	var commissions []models.Commission
	if err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND status = ?", vendorID, enums.CommissionStatusPending).
		Order("created_at ASC").
		Find(&commissions).Error; err != nil {
		return nil, err
	}
	return commissions, nil
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.Commission, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Commission{})
	if params.VendorID != uuid.Nil {
		query = query.Where("vendor_id = ?", params.VendorID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var commissions []models.Commission
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&commissions).Error; err != nil {
		return nil, nil, err
	}

	if len(commissions) > normalized {
		commissions = commissions[:normalized]
		last := commissions[len(commissions)-1]
		return commissions, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return commissions, nil, nil
}

// MarkStatus applies one guarded set-based transition and returns how many
// rows actually moved. Callers compare against len(ids) and roll back when
// the set was not uniformly in the source state.
func (r *repository) MarkStatus(ctx context.Context, ids []uuid.UUID, from, to enums.CommissionStatus, extra map[string]any) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updates := map[string]any{"status": to}
	for column, value := range extra {
		updates[column] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.Commission{}).
		Where("id IN ? AND status = ?", ids, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) MarkStatusByBatch(ctx context.Context, batchID uuid.UUID, from, to enums.CommissionStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Commission{}).
		Where("payment_batch_id = ? AND status = ?", batchID, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}

func (r *repository) PendingInPeriodForVendor(ctx context.Context, vendorID uuid.UUID, periodStart, periodEnd time.Time) ([]models.Commission, error) {
	var commissions []models.Commission
	if err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
			vendorID, enums.CommissionStatusPending, periodStart, periodEnd).
		Order("created_at ASC").
		Find(&commissions).Error; err != nil {
		return nil, err
	}
	return commissions, nil
}

// IncrementPeriodSummary additively upserts one vendor-period row. The
// uniq_vendor_period constraint resolves concurrent first-write races.
func (r *repository) IncrementPeriodSummary(ctx context.Context, vendorID uuid.UUID, period string, saleAmount, commissionAmount decimal.Decimal) error {
	summary := models.VendorPeriodSummary{
		ID:              uuid.New(),
		VendorID:        vendorID,
		Period:          period,
		SalesCount:      1,
		SalesTotal:      saleAmount,
		CommissionTotal: commissionAmount,
		Status:          enums.SummaryStatusPending,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vendor_id"}, {Name: "period"}},
		DoUpdates: clause.Assignments(map[string]any{
			"sales_count":      gorm.Expr("vendor_period_summaries.sales_count + 1"),
			"sales_total":      gorm.Expr("vendor_period_summaries.sales_total + ?", saleAmount),
			"commission_total": gorm.Expr("vendor_period_summaries.commission_total + ?", commissionAmount),
		}),
	}).Create(&summary).Error
}

// ReplacePeriodSummary writes absolute re-derived totals, leaving batch
// linkage and status untouched for rows already swept into a batch.
func (r *repository) ReplacePeriodSummary(ctx context.Context, vendorID uuid.UUID, period string, agg PeriodAggregate) error {
	summary := models.VendorPeriodSummary{
		ID:              uuid.New(),
		VendorID:        vendorID,
		Period:          period,
		SalesCount:      agg.SalesCount,
		SalesTotal:      agg.SalesTotal,
		CommissionTotal: agg.CommissionTotal,
		Status:          enums.SummaryStatusPending,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "vendor_id"}, {Name: "period"}},
		DoUpdates: clause.Assignments(map[string]any{
			"sales_count":      agg.SalesCount,
			"sales_total":      agg.SalesTotal,
			"commission_total": agg.CommissionTotal,
		}),
	}).Create(&summary).Error
}

func (r *repository) ApprovedSalesAggregates(ctx context.Context, periodStart, periodEnd time.Time) ([]PeriodAggregate, error) {
	var aggregates []PeriodAggregate
	if err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select("vendor_id, COUNT(*) AS sales_count, SUM(price) AS sales_total, SUM(commission_amount) AS commission_total").
		Where("status = ? AND sale_date >= ? AND sale_date < ?", enums.SaleStatusApproved, periodStart, periodEnd).
		Group("vendor_id").
		Find(&aggregates).Error; err != nil {
		return nil, err
	}
	return aggregates, nil
}

func (r *repository) PendingSummariesInRange(ctx context.Context, fromPeriod, toPeriod string) ([]models.VendorPeriodSummary, error) {
	var summaries []models.VendorPeriodSummary
	if err := r.db.WithContext(ctx).
		Where("status = ? AND period >= ? AND period <= ?", enums.SummaryStatusPending, fromPeriod, toPeriod).
		Order("vendor_id ASC, period ASC").
		Find(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *repository) ListSummaries(ctx context.Context, vendorID uuid.UUID, period string) ([]models.VendorPeriodSummary, error) {
	query := r.db.WithContext(ctx).Model(&models.VendorPeriodSummary{})
	if vendorID != uuid.Nil {
		query = query.Where("vendor_id = ?", vendorID)
	}
	if period != "" {
		query = query.Where("period = ?", period)
	}

	var summaries []models.VendorPeriodSummary
	if err := query.Order("period DESC, vendor_id ASC").Find(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *repository) MarkSummariesStatus(ctx context.Context, ids []uuid.UUID, from, to enums.SummaryStatus, batchID *uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updates := map[string]any{"status": to}
	if batchID != nil {
		updates["payment_batch_id"] = *batchID
	}
	result := r.db.WithContext(ctx).
		Model(&models.VendorPeriodSummary{}).
		Where("id IN ? AND status = ?", ids, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) MarkSummariesStatusByBatch(ctx context.Context, batchID uuid.UUID, from, to enums.SummaryStatus) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.VendorPeriodSummary{}).
		Where("payment_batch_id = ? AND status = ?", batchID, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}
