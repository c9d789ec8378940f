package commissions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/movilpay/vendorpay-backend/pkg/db/models"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
	"github.com/movilpay/vendorpay-backend/pkg/pagination"
)

// Service owns commission records, their set-based status transitions, and
// the per-vendor period aggregates. Transition methods take the caller's
// open transaction because they are always one half of a larger atomic unit
// (sale approval, request creation, batch completion).
type Service interface {
	CreateForSale(ctx context.Context, tx *gorm.DB, sale *models.Sale, amount decimal.Decimal) (*models.Commission, error)
	MarkProcessing(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, requestID uuid.UUID) error
	MarkPaid(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	RevertToPending(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	ListPendingByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Commission, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	ListSummaries(ctx context.Context, vendorID uuid.UUID, period string) ([]models.VendorPeriodSummary, error)
	Recalculate(ctx context.Context, period string) error
}

type service struct {
	repo   Repository
	logger *logger.Logger
}

// ListParams configures a paginated commission listing.
type ListParams struct {
	VendorID uuid.UUID
	Status   *enums.CommissionStatus
	Limit    int
	Cursor   string
}

// ListResult wraps returned commissions and the cursor for the next page.
type ListResult struct {
	Items  []models.Commission `json:"items"`
	Cursor string              `json:"cursor"`
}

// NewService wires the commission ledger.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("commissions repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("commissions logger required")
	}
	return &service{repo: repo, logger: logg}, nil
}

// CreateForSale records the commission for an approved sale and increments
// the vendor's period aggregate. Must run inside the approval transaction;
// the uniq_commissions_sale index rejects a second commission for the sale.
func (s *service) CreateForSale(ctx context.Context, tx *gorm.DB, sale *models.Sale, amount decimal.Decimal) (*models.Commission, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission creation requires a transaction")
	}
	if sale == nil || sale.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale required")
	}
	if amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission amount cannot be negative")
	}

	repo := s.repo.WithTx(tx)
	commission := &models.Commission{
		SaleID:     sale.ID,
		VendorID:   sale.VendorID,
		ProductID:  sale.ProductID,
		BaseAmount: sale.Price,
		Amount:     amount,
		Status:     enums.CommissionStatusPending,
	}
	if err := repo.Create(ctx, commission); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create commission")
	}

	period := models.PeriodOf(sale.SaleDate)
	if err := repo.IncrementPeriodSummary(ctx, sale.VendorID, period, sale.Price, amount); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment period summary")
	}
	return commission, nil
}

func (s *service) MarkProcessing(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, requestID uuid.UUID) error {
	return s.transition(ctx, tx, ids,
		enums.CommissionStatusPending, enums.CommissionStatusProcessing,
		map[string]any{"payment_request_id": requestID})
}

func (s *service) MarkPaid(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	return s.transition(ctx, tx, ids,
		enums.CommissionStatusProcessing, enums.CommissionStatusPaid, nil)
}

func (s *service) RevertToPending(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	return s.transition(ctx, tx, ids,
		enums.CommissionStatusProcessing, enums.CommissionStatusPending,
		map[string]any{"payment_request_id": nil})
}

// transition applies one guarded bulk move. Either every referenced
// commission moves or the surrounding transaction rolls back.
func (s *service) transition(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, from, to enums.CommissionStatus, extra map[string]any) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "commission transition requires a transaction")
	}
	if len(ids) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "commission id set required")
	}
	if !from.CanTransitionTo(to) {
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("illegal commission transition %s -> %s", from, to))
	}

	moved, err := s.repo.WithTx(tx).MarkStatus(ctx, ids, from, to, extra)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bulk commission transition")
	}
	if moved != int64(len(ids)) {
		return pkgerrors.New(pkgerrors.CodePrecondition,
			fmt.Sprintf("expected %d commissions in status %q, moved %d", len(ids), from, moved))
	}
	return nil
}

func (s *service) ListPendingByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Commission, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	commissions, err := s.repo.ListPendingByVendor(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending commissions")
	}
	return commissions, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listParams{
		VendorID: params.VendorID,
		Status:   params.Status,
		Limit:    params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list commissions")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) ListSummaries(ctx context.Context, vendorID uuid.UUID, period string) ([]models.VendorPeriodSummary, error) {
	summaries, err := s.repo.ListSummaries(ctx, vendorID, period)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list period summaries")
	}
	return summaries, nil
}

// Recalculate re-derives every vendor's aggregate for one YYYY-MM period
// from approved sales. Idempotent; failures are collected per vendor so one
// bad row does not hide the rest.
func (s *service) Recalculate(ctx context.Context, period string) error {
	start, end, err := periodRange(period)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid period")
	}

	aggregates, err := s.repo.ApprovedSalesAggregates(ctx, start, end)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "derive period aggregates")
	}

	var errs error
	for _, agg := range aggregates {
		if err := s.repo.ReplacePeriodSummary(ctx, agg.VendorID, period, agg); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("vendor %s: %w", agg.VendorID, err))
		}
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "recalculate period summaries")
	}

	s.logger.Info(s.logger.WithField(ctx, "period", period), "period summaries recalculated")
	return nil
}

func periodRange(period string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", period)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.AddDate(0, 1, 0), nil
}
