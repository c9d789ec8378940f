package paybatches

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/movilpay/vendorpay-backend/internal/bankaccounts"
	"github.com/movilpay/vendorpay-backend/internal/commissions"
	"github.com/movilpay/vendorpay-backend/internal/notifications"
	"github.com/movilpay/vendorpay-backend/pkg/db"
	"github.com/movilpay/vendorpay-backend/pkg/db/models"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
	"github.com/movilpay/vendorpay-backend/pkg/metrics"
	"github.com/movilpay/vendorpay-backend/pkg/pagination"
)

const (
	batchNumberPrefix = "BATCH-"
	batchNumberWidth  = 3
	maxBuildAttempts  = 3
	periodLayout      = "2006-01"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, input notifications.NotifyInput)
}

type transferStore interface {
	UploadObject(ctx context.Context, bucket, object, contentType string, body io.Reader) (string, error)
	SignedReadURL(bucket, object string, ttl time.Duration) (string, error)
}

// Service builds payout batches from per-vendor period summaries and marks
// them complete once funds have actually moved.
type Service interface {
	Build(ctx context.Context, input BuildInput) (*models.PaymentBatch, error)
	Complete(ctx context.Context, batchID uuid.UUID) (*models.PaymentBatch, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentBatch, error)
	TransferFileURL(ctx context.Context, batchID uuid.UUID, ttl time.Duration) (string, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	ledger    commissions.Repository
	accounts  bankaccounts.Repository
	transfers transferStore
	notify    notifier
	metrics   *metrics.SettlementMetrics
	logger    *logger.Logger
}

// BuildInput selects the settlement periods a batch sweeps.
type BuildInput struct {
	FromPeriod  string
	ToPeriod    string
	PaymentType enums.PaymentType
}

// ListParams configures a paginated batch listing.
type ListParams struct {
	Status *enums.PaymentBatchStatus
	Limit  int
	Cursor string
}

// ListResult wraps returned batches and the cursor for the next page.
type ListResult struct {
	Items  []models.PaymentBatch `json:"items"`
	Cursor string                `json:"cursor"`
}

type eligibleVendor struct {
	summary models.VendorPeriodSummary
	account *models.BankAccount
}

// sweptVendor is one vendor period actually included in a batch: the pending
// commissions the sweep moved and their sum. Summary totals are a derived
// projection that keeps growing after request-path payouts, so the money the
// batch instructs the bank to move always comes from here.
type sweptVendor struct {
	summary models.VendorPeriodSummary
	account *models.BankAccount
	ids     []uuid.UUID
	total   decimal.Decimal
}

// NewService wires the batch builder.
func NewService(
	repo Repository,
	tx txRunner,
	ledger commissions.Repository,
	accounts bankaccounts.Repository,
	transfers transferStore,
	notify notifier,
	m *metrics.SettlementMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment batch repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("bank account repository required")
	}
	if transfers == nil {
		return nil, fmt.Errorf("transfer store required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		ledger:    ledger,
		accounts:  accounts,
		transfers: transfers,
		notify:    notify,
		metrics:   m,
		logger:    logg,
	}, nil
}

// Build sweeps the pending commissions behind every pending vendor period
// summary in the range into one batch. Vendors without a verified primary
// bank account, or with nothing left pending, are skipped silently; the
// build fails only when nobody qualifies. The batch total is the sum of the
// swept commission amounts. The transfer file upload runs inside the
// transaction so a storage failure rolls the whole batch back.
func (s *service) Build(ctx context.Context, input BuildInput) (*models.PaymentBatch, error) {
	started := time.Now()

	fromStart, _, err := periodRange(input.FromPeriod)
	if err != nil {
		s.observeFailure("build_payment_batch", err)
		return nil, err
	}
	_, toEnd, err := periodRange(input.ToPeriod)
	if err != nil {
		s.observeFailure("build_payment_batch", err)
		return nil, err
	}
	if toEnd.Before(fromStart) {
		err := pkgerrors.New(pkgerrors.CodeValidation, "period range is inverted")
		s.observeFailure("build_payment_batch", err)
		return nil, err
	}
	if !input.PaymentType.IsValid() {
		err := pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment type %q", input.PaymentType))
		s.observeFailure("build_payment_batch", err)
		return nil, err
	}

	summaries, err := s.ledger.PendingSummariesInRange(ctx, input.FromPeriod, input.ToPeriod)
	if err != nil {
		s.observeFailure("build_payment_batch", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending summaries")
	}

	eligible := make([]eligibleVendor, 0, len(summaries))
	for _, summary := range summaries {
		account, err := s.accounts.FindVerifiedPrimary(ctx, summary.VendorID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				s.logger.Info(s.logger.WithVendorID(ctx, summary.VendorID.String()),
					"vendor skipped from batch, no verified primary bank account")
				continue
			}
			s.observeFailure("build_payment_batch", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bank account")
		}
		eligible = append(eligible, eligibleVendor{summary: summary, account: account})
	}
	if len(eligible) == 0 {
		err := pkgerrors.New(pkgerrors.CodePrecondition, "no eligible vendors in the period range")
		s.observeFailure("build_payment_batch", err)
		return nil, err
	}

	batch := &models.PaymentBatch{
		ID:          uuid.New(),
		PeriodStart: fromStart,
		PeriodEnd:   toEnd,
		PaymentType: input.PaymentType,
		Status:      enums.PaymentBatchStatusProcessing,
	}

	var lastErr error
	for attempt := 1; attempt <= maxBuildAttempts; attempt++ {
		number, err := s.nextNumber(ctx, time.Now().UTC())
		if err != nil {
			s.observeFailure("build_payment_batch", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "derive next batch number")
		}
		batch.Number = number

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.buildInTx(ctx, tx, batch, eligible)
		})
		if err == nil {
			lastErr = nil
			break
		}
		if !db.IsUniqueViolation(err, "uniq_payment_batches_number") {
			s.observeFailure("build_payment_batch", err)
			return nil, err
		}
		lastErr = err
		s.logger.Warn(ctx, fmt.Sprintf("batch number %s already taken, retrying (%d/%d)", number, attempt, maxBuildAttempts))
	}
	if lastErr != nil {
		err := pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "exhausted batch number retries")
		s.observeFailure("build_payment_batch", err)
		return nil, err
	}

	s.logger.Info(ctx, fmt.Sprintf("payment batch %s built for %d vendors, total %s", batch.Number, batch.VendorCount, batch.Total))
	s.observeSuccess("build_payment_batch", started)
	return batch, nil
}

func (s *service) buildInTx(ctx context.Context, tx *gorm.DB, batch *models.PaymentBatch, eligible []eligibleVendor) error {
	repo := s.repo.WithTx(tx)
	ledger := s.ledger.WithTx(tx)

	// Collect the pending commissions each sweep actually moves. A vendor
	// whose summary is still pending but whose commissions were already paid
	// through the request path contributes nothing and is left out entirely.
	swept := make([]sweptVendor, 0, len(eligible))
	for _, candidate := range eligible {
		periodStart, nextPeriod, err := periodRange(candidate.summary.Period)
		if err != nil {
			return err
		}
		pending, err := ledger.PendingInPeriodForVendor(ctx, candidate.summary.VendorID, periodStart, nextPeriod)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor commissions")
		}
		if len(pending) == 0 {
			s.logger.Info(s.logger.WithVendorID(ctx, candidate.summary.VendorID.String()),
				"vendor skipped from batch, no pending commissions in period")
			continue
		}
		entry := sweptVendor{summary: candidate.summary, account: candidate.account, total: decimal.Zero}
		for _, commission := range pending {
			entry.ids = append(entry.ids, commission.ID)
			entry.total = entry.total.Add(commission.Amount)
		}
		swept = append(swept, entry)
	}
	if len(swept) == 0 {
		return pkgerrors.New(pkgerrors.CodePrecondition, "no pending commissions in the period range")
	}

	total := decimal.Zero
	vendors := make(map[uuid.UUID]struct{}, len(swept))
	for _, entry := range swept {
		total = total.Add(entry.total)
		vendors[entry.summary.VendorID] = struct{}{}
	}
	batch.Total = total
	batch.VendorCount = len(vendors)

	if err := repo.Create(ctx, batch); err != nil {
		return err
	}

	summaryIDs := make([]uuid.UUID, 0, len(swept))
	for _, entry := range swept {
		summaryIDs = append(summaryIDs, entry.summary.ID)
	}
	moved, err := ledger.MarkSummariesStatus(ctx, summaryIDs, enums.SummaryStatusPending, enums.SummaryStatusProcessing, &batch.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark summaries processing")
	}
	if moved != int64(len(summaryIDs)) {
		return pkgerrors.New(pkgerrors.CodePrecondition,
			fmt.Sprintf("expected %d pending summaries, moved %d", len(summaryIDs), moved))
	}

	for _, entry := range swept {
		moved, err := ledger.MarkStatus(ctx, entry.ids, enums.CommissionStatusPending, enums.CommissionStatusProcessing,
			map[string]any{"payment_batch_id": batch.ID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark commissions processing")
		}
		if moved != int64(len(entry.ids)) {
			return pkgerrors.New(pkgerrors.CodePrecondition,
				fmt.Sprintf("expected %d pending commissions for vendor %s, moved %d",
					len(entry.ids), entry.summary.VendorID, moved))
		}
	}

	file, err := transferFile(swept)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render transfer file")
	}
	object := fmt.Sprintf("transfers/%s.csv", batch.Number)
	ref, err := s.transfers.UploadObject(ctx, "", object, "text/csv", bytes.NewReader(file))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload transfer file")
	}
	if err := repo.SetTransferRef(ctx, batch.ID, ref); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transfer reference")
	}
	batch.TransferRef = &ref
	return nil
}

// Complete is the explicit administrative acknowledgement that funds moved.
// It flips the batch and everything it swept to their final paid states.
func (s *service) Complete(ctx context.Context, batchID uuid.UUID) (*models.PaymentBatch, error) {
	started := time.Now()
	if batchID == uuid.Nil {
		err := pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
		s.observeFailure("complete_payment_batch", err)
		return nil, err
	}

	batch, err := s.repo.FindByID(ctx, batchID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			err = pkgerrors.New(pkgerrors.CodeNotFound, "payment batch not found")
		} else {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment batch")
		}
		s.observeFailure("complete_payment_batch", err)
		return nil, err
	}
	if batch.Status != enums.PaymentBatchStatusProcessing {
		err := pkgerrors.New(pkgerrors.CodePrecondition,
			fmt.Sprintf("payment batch %s is %s, not processing", batch.Number, batch.Status))
		s.observeFailure("complete_payment_batch", err)
		return nil, err
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		moved, err := repo.ApplyStatus(ctx, batch.ID, enums.PaymentBatchStatusProcessing, enums.PaymentBatchStatusCompleted,
			map[string]any{"completed_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payment batch")
		}
		if moved == 0 {
			return pkgerrors.New(pkgerrors.CodePrecondition, "payment batch is no longer processing")
		}
		if _, err := ledger.MarkStatusByBatch(ctx, batch.ID, enums.CommissionStatusProcessing, enums.CommissionStatusPaid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark commissions paid")
		}
		if _, err := ledger.MarkSummariesStatusByBatch(ctx, batch.ID, enums.SummaryStatusProcessing, enums.SummaryStatusPaid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark summaries paid")
		}
		return nil
	})
	if err != nil {
		s.observeFailure("complete_payment_batch", err)
		return nil, err
	}

	batch.Status = enums.PaymentBatchStatusCompleted
	batch.CompletedAt = &now

	s.notify.Notify(ctx, notifications.NotifyInput{
		Audience: enums.NotificationAudienceStaff,
		Kind:     enums.NotificationKindBatchCompleted,
		Body: map[string]any{
			"batch_number": batch.Number,
			"total":        batch.Total,
			"vendor_count": batch.VendorCount,
		},
	})
	s.observeSuccess("complete_payment_batch", started)
	return batch, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentBatch, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	}
	batch, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment batch not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment batch")
	}
	return batch, nil
}

// TransferFileURL signs a short-lived read link for the batch's transfer file.
func (s *service) TransferFileURL(ctx context.Context, batchID uuid.UUID, ttl time.Duration) (string, error) {
	batch, err := s.FindByID(ctx, batchID)
	if err != nil {
		return "", err
	}
	if batch.TransferRef == nil {
		return "", pkgerrors.New(pkgerrors.CodePrecondition, "payment batch has no transfer file")
	}
	bucket, object, err := splitObjectRef(*batch.TransferRef)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse transfer reference")
	}
	url, err := s.transfers.SignedReadURL(bucket, object, ttl)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign transfer url")
	}
	return url, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listParams{
		Status: params.Status,
		Limit:  params.Limit,
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment batches")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) nextNumber(ctx context.Context, day time.Time) (string, error) {
	prefix := batchNumberPrefix + day.Format("20060102") + "-"
	current, err := s.repo.MaxNumberForPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	next := 1
	if trimmed := strings.TrimPrefix(current, prefix); trimmed != current {
		if parsed, err := strconv.Atoi(trimmed); err == nil {
			next = parsed + 1
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, batchNumberWidth, next), nil
}

// transferFile renders the bank upload CSV: one row per swept vendor period
// with the payout destination and the sum of the commissions the batch moved.
func transferFile(swept []sweptVendor) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"account_number", "holder_name", "bank_name", "amount", "period"}); err != nil {
		return nil, err
	}
	for _, candidate := range swept {
		row := []string{
			candidate.account.AccountNumber,
			candidate.account.HolderName,
			candidate.account.BankName,
			candidate.total.StringFixed(2),
			candidate.summary.Period,
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}

// periodRange resolves a YYYY-MM key to [start, nextMonth).
func periodRange(period string) (time.Time, time.Time, error) {
	start, err := time.Parse(periodLayout, period)
	if err != nil {
		return time.Time{}, time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err,
			fmt.Sprintf("invalid period %q, want YYYY-MM", period))
	}
	return start, start.AddDate(0, 1, 0), nil
}

func splitObjectRef(ref string) (string, string, error) {
	trimmed := strings.TrimPrefix(ref, "gs://")
	if trimmed == ref {
		return "", "", fmt.Errorf("unexpected object reference %q", ref)
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("unexpected object reference %q", ref)
	}
	return parts[0], parts[1], nil
}

func (s *service) observeSuccess(op string, started time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(op, time.Since(started))
	s.metrics.IncSuccess(op)
}

func (s *service) observeFailure(op string, err error) {
	if s.metrics == nil {
		return
	}
	code := string(pkgerrors.CodeInternal)
	if typed := pkgerrors.As(err); typed != nil {
		code = string(typed.Code())
	}
	s.metrics.IncFailure(op, code)
}
