package commissions

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/movilpay/vendorpay-backend/pkg/db/models"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
	"github.com/movilpay/vendorpay-backend/pkg/pagination"
)

type stubRepo struct {
	created       []*models.Commission
	createErr     error
	increments    []string
	incrementErr  error
	markMoved     int64
	markErr       error
	markCalls     []markCall
	aggregates    []PeriodAggregate
	aggregatesErr error
	replaced      []uuid.UUID
	replaceErr    map[uuid.UUID]error
	pending       []models.Commission
}

type markCall struct {
	ids  []uuid.UUID
	from enums.CommissionStatus
	to   enums.CommissionStatus
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Create(ctx context.Context, commission *models.Commission) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, commission)
	return nil
}

func (s *stubRepo) FindByIDs(context.Context, []uuid.UUID) ([]models.Commission, error) {
	return nil, nil
}

func (s *stubRepo) ListPendingByVendor(context.Context, uuid.UUID) ([]models.Commission, error) {
	return s.pending, nil
}

func (s *stubRepo) List(context.Context, listParams) ([]models.Commission, *pagination.Cursor, error) {
	return s.pending, nil, nil
}

func (s *stubRepo) MarkStatus(_ context.Context, ids []uuid.UUID, from, to enums.CommissionStatus, _ map[string]any) (int64, error) {
	s.markCalls = append(s.markCalls, markCall{ids: ids, from: from, to: to})
	return s.markMoved, s.markErr
}

func (s *stubRepo) MarkStatusByBatch(context.Context, uuid.UUID, enums.CommissionStatus, enums.CommissionStatus) (int64, error) {
	return 0, nil
}

func (s *stubRepo) PendingInPeriodForVendor(context.Context, uuid.UUID, time.Time, time.Time) ([]models.Commission, error) {
	return nil, nil
}

func (s *stubRepo) IncrementPeriodSummary(_ context.Context, _ uuid.UUID, period string, _, _ decimal.Decimal) error {
	if s.incrementErr != nil {
		return s.incrementErr
	}
	s.increments = append(s.increments, period)
	return nil
}

func (s *stubRepo) ReplacePeriodSummary(_ context.Context, vendorID uuid.UUID, _ string, _ PeriodAggregate) error {
	if err, ok := s.replaceErr[vendorID]; ok {
		return err
	}
	s.replaced = append(s.replaced, vendorID)
	return nil
}

func (s *stubRepo) ApprovedSalesAggregates(context.Context, time.Time, time.Time) ([]PeriodAggregate, error) {
	return s.aggregates, s.aggregatesErr
}

func (s *stubRepo) PendingSummariesInRange(context.Context, string, string) ([]models.VendorPeriodSummary, error) {
	return nil, nil
}

func (s *stubRepo) ListSummaries(context.Context, uuid.UUID, string) ([]models.VendorPeriodSummary, error) {
	return nil, nil
}

func (s *stubRepo) MarkSummariesStatus(context.Context, []uuid.UUID, enums.SummaryStatus, enums.SummaryStatus, *uuid.UUID) (int64, error) {
	return 0, nil
}

func (s *stubRepo) MarkSummariesStatusByBatch(context.Context, uuid.UUID, enums.SummaryStatus, enums.SummaryStatus) (int64, error) {
	return 0, nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, logger.New(logger.Options{Output: io.Discard}))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func testSale() *models.Sale {
	return &models.Sale{
		ID:        uuid.New(),
		VendorID:  uuid.New(),
		ProductID: uuid.New(),
		Price:     decimal.NewFromInt(10000),
		SaleDate:  time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateForSale(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{}
	svc := newTestService(t, repo)
	sale := testSale()

	commission, err := svc.CreateForSale(context.Background(), &gorm.DB{}, sale, decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("CreateForSale: %v", err)
	}
	if commission.SaleID != sale.ID || commission.VendorID != sale.VendorID {
		t.Fatalf("commission not linked to sale: %+v", commission)
	}
	if !commission.BaseAmount.Equal(sale.Price) {
		t.Fatalf("base amount should be sale price, got %s", commission.BaseAmount)
	}
	if !commission.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected amount %s", commission.Amount)
	}
	if commission.Status != enums.CommissionStatusPending {
		t.Fatalf("new commissions start pending, got %s", commission.Status)
	}
	if len(repo.increments) != 1 || repo.increments[0] != "2026-08" {
		t.Fatalf("period summary not incremented: %v", repo.increments)
	}
}

func TestCreateForSaleRequiresTransaction(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubRepo{})
	if _, err := svc.CreateForSale(context.Background(), nil, testSale(), decimal.NewFromInt(1)); !pkgerrors.HasCode(err, pkgerrors.CodeInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestCreateForSaleAggregateFailureFailsCreation(t *testing.T) {
	t.Parallel()

	repo := &stubRepo{incrementErr: errors.New("conflict")}
	svc := newTestService(t, repo)
	if _, err := svc.CreateForSale(context.Background(), &gorm.DB{}, testSale(), decimal.NewFromInt(500)); !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestMarkProcessingAllRowsMove(t *testing.T) {
	t.Parallel()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	repo := &stubRepo{markMoved: 3}
	svc := newTestService(t, repo)

	if err := svc.MarkProcessing(context.Background(), &gorm.DB{}, ids, uuid.New()); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if len(repo.markCalls) != 1 {
		t.Fatalf("expected one bulk update, got %d", len(repo.markCalls))
	}
	call := repo.markCalls[0]
	if call.from != enums.CommissionStatusPending || call.to != enums.CommissionStatusProcessing {
		t.Fatalf("unexpected transition %s -> %s", call.from, call.to)
	}
}

func TestTransitionFailsWhenSetIsMixed(t *testing.T) {
	t.Parallel()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	repo := &stubRepo{markMoved: 2}
	svc := newTestService(t, repo)

	err := svc.MarkPaid(context.Background(), &gorm.DB{}, ids)
	if !pkgerrors.HasCode(err, pkgerrors.CodePrecondition) {
		t.Fatalf("partial move must be a precondition error, got %v", err)
	}
}

func TestTransitionRejectsEmptySet(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubRepo{})
	err := svc.RevertToPending(context.Background(), &gorm.DB{}, nil)
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecalculateCollectsPerVendorErrors(t *testing.T) {
	t.Parallel()

	good := uuid.New()
	bad := uuid.New()
	repo := &stubRepo{
		aggregates: []PeriodAggregate{
			{VendorID: good, SalesCount: 2, SalesTotal: decimal.NewFromInt(20000), CommissionTotal: decimal.NewFromInt(1000)},
			{VendorID: bad, SalesCount: 1, SalesTotal: decimal.NewFromInt(5000), CommissionTotal: decimal.NewFromInt(250)},
		},
		replaceErr: map[uuid.UUID]error{bad: errors.New("write failed")},
	}
	svc := newTestService(t, repo)

	err := svc.Recalculate(context.Background(), "2026-08")
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(repo.replaced) != 1 || repo.replaced[0] != good {
		t.Fatalf("healthy vendor should still be recalculated: %v", repo.replaced)
	}
}

func TestRecalculateRejectsBadPeriod(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, &stubRepo{})
	if err := svc.Recalculate(context.Background(), "August 2026"); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
