package paybatches

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/movilpay/vendorpay-backend/internal/bankaccounts"
	"github.com/movilpay/vendorpay-backend/internal/commissions"
	"github.com/movilpay/vendorpay-backend/internal/notifications"
	"github.com/movilpay/vendorpay-backend/pkg/db/models"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
	"github.com/movilpay/vendorpay-backend/pkg/pagination"
)

type stubBatchRepo struct {
	batches      map[uuid.UUID]*models.PaymentBatch
	maxNumber    string
	createErrs   []error
	created      []*models.PaymentBatch
	applyRows    int64
	applyErr     error
	transferRefs map[uuid.UUID]string
}

func newStubBatchRepo() *stubBatchRepo {
	return &stubBatchRepo{
		batches:      make(map[uuid.UUID]*models.PaymentBatch),
		applyRows:    1,
		transferRefs: make(map[uuid.UUID]string),
	}
}

func (s *stubBatchRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubBatchRepo) Create(ctx context.Context, batch *models.PaymentBatch) error {
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		if err != nil {
			return err
		}
	}
	s.created = append(s.created, batch)
	s.batches[batch.ID] = batch
	s.maxNumber = batch.Number
	return nil
}

func (s *stubBatchRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentBatch, error) {
	batch, ok := s.batches[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *batch
	return &copied, nil
}

func (s *stubBatchRepo) MaxNumberForPrefix(ctx context.Context, prefix string) (string, error) {
	if strings.HasPrefix(s.maxNumber, prefix) {
		return s.maxNumber, nil
	}
	return "", nil
}

func (s *stubBatchRepo) ApplyStatus(ctx context.Context, batchID uuid.UUID, from, to enums.PaymentBatchStatus, extra map[string]any) (int64, error) {
	if s.applyErr != nil {
		return 0, s.applyErr
	}
	return s.applyRows, nil
}

func (s *stubBatchRepo) SetTransferRef(ctx context.Context, batchID uuid.UUID, ref string) error {
	s.transferRefs[batchID] = ref
	return nil
}

func (s *stubBatchRepo) List(ctx context.Context, params listParams) ([]models.PaymentBatch, *pagination.Cursor, error) {
	return nil, nil, nil
}

type stubLedgerRepo struct {
	commissions.Repository

	summaries       []models.VendorPeriodSummary
	pendingByVendor map[uuid.UUID][]models.Commission

	summariesMoved     []uuid.UUID
	summariesBatchID   *uuid.UUID
	commissionsMoved   []uuid.UUID
	byBatchTransitions []string
}

func (s *stubLedgerRepo) WithTx(tx *gorm.DB) commissions.Repository { return s }

func (s *stubLedgerRepo) PendingSummariesInRange(ctx context.Context, fromPeriod, toPeriod string) ([]models.VendorPeriodSummary, error) {
	return s.summaries, nil
}

func (s *stubLedgerRepo) MarkSummariesStatus(ctx context.Context, ids []uuid.UUID, from, to enums.SummaryStatus, batchID *uuid.UUID) (int64, error) {
	s.summariesMoved = append(s.summariesMoved, ids...)
	s.summariesBatchID = batchID
	return int64(len(ids)), nil
}

func (s *stubLedgerRepo) PendingInPeriodForVendor(ctx context.Context, vendorID uuid.UUID, periodStart, periodEnd time.Time) ([]models.Commission, error) {
	return s.pendingByVendor[vendorID], nil
}

func (s *stubLedgerRepo) MarkStatus(ctx context.Context, ids []uuid.UUID, from, to enums.CommissionStatus, extra map[string]any) (int64, error) {
	s.commissionsMoved = append(s.commissionsMoved, ids...)
	return int64(len(ids)), nil
}

func (s *stubLedgerRepo) MarkStatusByBatch(ctx context.Context, batchID uuid.UUID, from, to enums.CommissionStatus) (int64, error) {
	s.byBatchTransitions = append(s.byBatchTransitions, "commissions:"+string(from)+">"+string(to))
	return 2, nil
}

func (s *stubLedgerRepo) MarkSummariesStatusByBatch(ctx context.Context, batchID uuid.UUID, from, to enums.SummaryStatus) (int64, error) {
	s.byBatchTransitions = append(s.byBatchTransitions, "summaries:"+string(from)+">"+string(to))
	return 1, nil
}

type stubAccountsRepo struct {
	verified map[uuid.UUID]*models.BankAccount
}

func (s *stubAccountsRepo) WithTx(tx *gorm.DB) bankaccounts.Repository { return s }

func (s *stubAccountsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.BankAccount, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubAccountsRepo) FindVerifiedPrimary(ctx context.Context, vendorID uuid.UUID) (*models.BankAccount, error) {
	account, ok := s.verified[vendorID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return account, nil
}

func (s *stubAccountsRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.BankAccount, error) {
	return nil, nil
}

type stubTransferStore struct {
	objects map[string][]byte
	err     error
}

func (s *stubTransferStore) UploadObject(ctx context.Context, bucket, object, contentType string, body io.Reader) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[object] = data
	return "gs://payouts/" + object, nil
}

func (s *stubTransferStore) SignedReadURL(bucket, object string, ttl time.Duration) (string, error) {
	return "https://storage.googleapis.com/" + bucket + "/" + object + "?signed", nil
}

type stubNotifier struct {
	events []notifications.NotifyInput
}

func (s *stubNotifier) Notify(ctx context.Context, input notifications.NotifyInput) {
	s.events = append(s.events, input)
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type batchFixture struct {
	repo      *stubBatchRepo
	ledger    *stubLedgerRepo
	accounts  *stubAccountsRepo
	transfers *stubTransferStore
	notifier  *stubNotifier
	service   Service
}

func newBatchFixture(t *testing.T) *batchFixture {
	t.Helper()
	f := &batchFixture{
		repo:      newStubBatchRepo(),
		ledger:    &stubLedgerRepo{pendingByVendor: make(map[uuid.UUID][]models.Commission)},
		accounts:  &stubAccountsRepo{verified: make(map[uuid.UUID]*models.BankAccount)},
		transfers: &stubTransferStore{},
		notifier:  &stubNotifier{},
	}
	logg := logger.New(logger.Options{Output: io.Discard})
	svc, err := NewService(f.repo, stubTx{}, f.ledger, f.accounts, f.transfers, f.notifier, nil, logg)
	require.NoError(t, err)
	f.service = svc
	return f
}

func (f *batchFixture) addEligibleVendor(t *testing.T, period string, total int64) uuid.UUID {
	t.Helper()
	vendorID := uuid.New()
	now := time.Now().UTC()
	f.ledger.summaries = append(f.ledger.summaries, models.VendorPeriodSummary{
		ID:              uuid.New(),
		VendorID:        vendorID,
		Period:          period,
		SalesCount:      2,
		CommissionTotal: decimal.NewFromInt(total),
		Status:          enums.SummaryStatusPending,
	})
	f.accounts.verified[vendorID] = &models.BankAccount{
		ID:            uuid.New(),
		VendorID:      vendorID,
		BankName:      "Banorte",
		AccountNumber: "646180111812345678",
		HolderName:    "Vendor " + vendorID.String()[:8],
		IsPrimary:     true,
		VerifiedAt:    &now,
	}
	f.ledger.pendingByVendor[vendorID] = []models.Commission{
		{ID: uuid.New(), VendorID: vendorID, Amount: decimal.NewFromInt(total), Status: enums.CommissionStatusPending},
	}
	return vendorID
}

func buildInput() BuildInput {
	return BuildInput{FromPeriod: "2026-07", ToPeriod: "2026-07", PaymentType: enums.PaymentTypeTransfer}
}

func TestBuildSweepsEligibleVendors(t *testing.T) {
	f := newBatchFixture(t)
	f.addEligibleVendor(t, "2026-07", 700)
	f.addEligibleVendor(t, "2026-07", 300)

	batch, err := f.service.Build(context.Background(), buildInput())
	require.NoError(t, err)

	assert.Regexp(t, `^BATCH-\d{8}-001$`, batch.Number)
	assert.Equal(t, enums.PaymentBatchStatusProcessing, batch.Status)
	assert.Equal(t, 2, batch.VendorCount)
	assert.True(t, batch.Total.Equal(decimal.NewFromInt(1000)), "got %s", batch.Total)

	assert.Len(t, f.ledger.summariesMoved, 2)
	require.NotNil(t, f.ledger.summariesBatchID)
	assert.Equal(t, batch.ID, *f.ledger.summariesBatchID)
	assert.Len(t, f.ledger.commissionsMoved, 2)

	require.NotNil(t, batch.TransferRef)
	file, ok := f.transfers.objects["transfers/"+batch.Number+".csv"]
	require.True(t, ok)
	content := string(file)
	assert.Contains(t, content, "account_number,holder_name,bank_name,amount,period")
	assert.Contains(t, content, "700.00")
	assert.Contains(t, content, "300.00")
	assert.Contains(t, content, "2026-07")
}

func TestBuildSkipsVendorsWithoutVerifiedAccount(t *testing.T) {
	f := newBatchFixture(t)
	f.addEligibleVendor(t, "2026-07", 500)
	// A summary with no bank account at all.
	f.ledger.summaries = append(f.ledger.summaries, models.VendorPeriodSummary{
		ID:              uuid.New(),
		VendorID:        uuid.New(),
		Period:          "2026-07",
		CommissionTotal: decimal.NewFromInt(999),
		Status:          enums.SummaryStatusPending,
	})

	batch, err := f.service.Build(context.Background(), buildInput())
	require.NoError(t, err)

	assert.Equal(t, 1, batch.VendorCount)
	assert.True(t, batch.Total.Equal(decimal.NewFromInt(500)))
	assert.Len(t, f.ledger.summariesMoved, 1)
}

func TestBuildTotalsFollowPendingCommissions(t *testing.T) {
	f := newBatchFixture(t)
	vendorID := f.addEligibleVendor(t, "2026-07", 1000)
	// 600 of the summary's total already went out through an approved
	// payment request; only 400 is still pending.
	f.ledger.pendingByVendor[vendorID] = []models.Commission{
		{ID: uuid.New(), VendorID: vendorID, Amount: decimal.NewFromInt(400), Status: enums.CommissionStatusPending},
	}

	batch, err := f.service.Build(context.Background(), buildInput())
	require.NoError(t, err)

	assert.True(t, batch.Total.Equal(decimal.NewFromInt(400)), "got %s", batch.Total)
	assert.Equal(t, 1, batch.VendorCount)

	file, ok := f.transfers.objects["transfers/"+batch.Number+".csv"]
	require.True(t, ok)
	content := string(file)
	assert.Contains(t, content, "400.00")
	assert.NotContains(t, content, "1000.00")
}

func TestBuildSkipsVendorsWithNothingPending(t *testing.T) {
	f := newBatchFixture(t)
	f.addEligibleVendor(t, "2026-07", 250)
	drained := f.addEligibleVendor(t, "2026-07", 900)
	f.ledger.pendingByVendor[drained] = nil

	batch, err := f.service.Build(context.Background(), buildInput())
	require.NoError(t, err)

	assert.Equal(t, 1, batch.VendorCount)
	assert.True(t, batch.Total.Equal(decimal.NewFromInt(250)), "got %s", batch.Total)
	require.Len(t, f.ledger.summariesMoved, 1)
	assert.Equal(t, f.ledger.summaries[0].ID, f.ledger.summariesMoved[0])
	assert.NotContains(t, string(f.transfers.objects["transfers/"+batch.Number+".csv"]), "900.00")
}

func TestBuildFailsWhenEverythingAlreadyPaid(t *testing.T) {
	f := newBatchFixture(t)
	vendorID := f.addEligibleVendor(t, "2026-07", 500)
	f.ledger.pendingByVendor[vendorID] = nil

	_, err := f.service.Build(context.Background(), buildInput())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePrecondition))
	assert.Empty(t, f.repo.created)
}

func TestBuildFailsWhenNobodyQualifies(t *testing.T) {
	f := newBatchFixture(t)
	f.ledger.summaries = []models.VendorPeriodSummary{{
		ID:              uuid.New(),
		VendorID:        uuid.New(),
		Period:          "2026-07",
		CommissionTotal: decimal.NewFromInt(999),
		Status:          enums.SummaryStatusPending,
	}}

	_, err := f.service.Build(context.Background(), buildInput())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePrecondition))
	assert.Empty(t, f.repo.created)
}

func TestBuildValidatesInput(t *testing.T) {
	f := newBatchFixture(t)
	f.addEligibleVendor(t, "2026-07", 100)

	_, err := f.service.Build(context.Background(), BuildInput{FromPeriod: "July", ToPeriod: "2026-07", PaymentType: enums.PaymentTypeTransfer})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = f.service.Build(context.Background(), BuildInput{FromPeriod: "2026-07", ToPeriod: "2026-01", PaymentType: enums.PaymentTypeTransfer})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = f.service.Build(context.Background(), BuildInput{FromPeriod: "2026-07", ToPeriod: "2026-07", PaymentType: "cash"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestBuildRetriesNumberConflicts(t *testing.T) {
	f := newBatchFixture(t)
	f.addEligibleVendor(t, "2026-07", 100)
	conflict := errors.New(`duplicate key value violates unique constraint "uniq_payment_batches_number"`)
	f.repo.createErrs = []error{conflict, nil}

	batch, err := f.service.Build(context.Background(), buildInput())
	require.NoError(t, err)
	assert.NotEmpty(t, batch.Number)
}

func TestBuildUploadFailureAborts(t *testing.T) {
	f := newBatchFixture(t)
	f.addEligibleVendor(t, "2026-07", 100)
	f.transfers.err = errors.New("storage unavailable")

	_, err := f.service.Build(context.Background(), buildInput())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestCompleteMarksEverythingPaid(t *testing.T) {
	f := newBatchFixture(t)
	ref := "gs://payouts/transfers/BATCH-20260815-001.csv"
	batch := &models.PaymentBatch{
		ID:          uuid.New(),
		Number:      "BATCH-20260815-001",
		Status:      enums.PaymentBatchStatusProcessing,
		Total:       decimal.NewFromInt(1000),
		VendorCount: 2,
		TransferRef: &ref,
	}
	f.repo.batches[batch.ID] = batch

	completed, err := f.service.Complete(context.Background(), batch.ID)
	require.NoError(t, err)

	assert.Equal(t, enums.PaymentBatchStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, []string{
		"commissions:processing>paid",
		"summaries:processing>paid",
	}, f.ledger.byBatchTransitions)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, enums.NotificationKindBatchCompleted, f.notifier.events[0].Kind)
}

func TestCompleteRequiresProcessing(t *testing.T) {
	f := newBatchFixture(t)
	batch := &models.PaymentBatch{
		ID:     uuid.New(),
		Number: "BATCH-20260815-001",
		Status: enums.PaymentBatchStatusCompleted,
	}
	f.repo.batches[batch.ID] = batch

	_, err := f.service.Complete(context.Background(), batch.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePrecondition))
	assert.Empty(t, f.ledger.byBatchTransitions)
}

func TestTransferFileURL(t *testing.T) {
	f := newBatchFixture(t)
	ref := "gs://payouts/transfers/BATCH-20260815-001.csv"
	batch := &models.PaymentBatch{
		ID:          uuid.New(),
		Number:      "BATCH-20260815-001",
		Status:      enums.PaymentBatchStatusProcessing,
		TransferRef: &ref,
	}
	f.repo.batches[batch.ID] = batch

	url, err := f.service.TransferFileURL(context.Background(), batch.ID, time.Hour)
	require.NoError(t, err)
	assert.Contains(t, url, "payouts/transfers/BATCH-20260815-001.csv")

	bare := &models.PaymentBatch{ID: uuid.New(), Number: "BATCH-20260815-002", Status: enums.PaymentBatchStatusProcessing}
	f.repo.batches[bare.ID] = bare
	_, err = f.service.TransferFileURL(context.Background(), bare.ID, time.Hour)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePrecondition))
}
