package payrequests

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/movilpay/vendorpay-backend/internal/bankaccounts"
	"github.com/movilpay/vendorpay-backend/internal/notifications"
	"github.com/movilpay/vendorpay-backend/pkg/db"
	"github.com/movilpay/vendorpay-backend/pkg/db/models"
	dbtypes "github.com/movilpay/vendorpay-backend/pkg/db/types"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
	"github.com/movilpay/vendorpay-backend/pkg/metrics"
	"github.com/movilpay/vendorpay-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type commissionLedger interface {
	ListPendingByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Commission, error)
	MarkProcessing(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, requestID uuid.UUID) error
	MarkPaid(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	RevertToPending(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type notifier interface {
	Notify(ctx context.Context, input notifications.NotifyInput)
}

type receiptStore interface {
	UploadObject(ctx context.Context, bucket, object, contentType string, body io.Reader) (string, error)
}

// Service owns the payment request lifecycle: a vendor opens at most one
// request over their pending commissions, then staff approves or rejects it.
type Service interface {
	Create(ctx context.Context, vendorID uuid.UUID) (*models.PaymentRequest, error)
	Approve(ctx context.Context, input ApproveInput) (*models.PaymentRequest, error)
	Reject(ctx context.Context, input RejectInput) (*models.PaymentRequest, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	ledger   commissionLedger
	accounts bankaccounts.Repository
	receipts receiptStore
	notify   notifier
	metrics  *metrics.SettlementMetrics
	logger   *logger.Logger
}

// ApproveInput resolves a pending request in the vendor's favor.
type ApproveInput struct {
	RequestID     uuid.UUID
	ApproverID    uuid.UUID
	BankAccountID *uuid.UUID
	Receipt       io.Reader
	ReceiptType   string
}

// RejectInput turns a pending request down and releases its commissions.
type RejectInput struct {
	RequestID  uuid.UUID
	ApproverID uuid.UUID
	Reason     string
}

// ListParams configures a paginated request listing.
type ListParams struct {
	VendorID uuid.UUID
	Status   *enums.PaymentRequestStatus
	Limit    int
	Cursor   string
}

// ListResult wraps returned requests and the cursor for the next page.
type ListResult struct {
	Items  []models.PaymentRequest `json:"items"`
	Cursor string                  `json:"cursor"`
}

// NewService wires the payment request manager. The receipt store may be nil
// when object storage is not configured; receipts degrade to unset.
func NewService(
	repo Repository,
	tx txRunner,
	ledger commissionLedger,
	accounts bankaccounts.Repository,
	receipts receiptStore,
	notify notifier,
	m *metrics.SettlementMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment request repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("commission ledger required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("bank account repository required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		ledger:   ledger,
		accounts: accounts,
		receipts: receipts,
		notify:   notify,
		metrics:  m,
		logger:   logg,
	}, nil
}

// Create opens a request over every commission currently pending for the
// vendor, snapshots their ids, and moves them to processing in the same
// transaction so later-approved sales never leak into an open request.
func (s *service) Create(ctx context.Context, vendorID uuid.UUID) (*models.PaymentRequest, error) {
	started := time.Now()
	if vendorID == uuid.Nil {
		err := pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
		s.observeFailure("create_payment_request", err)
		return nil, err
	}
	ctx = s.logger.WithVendorID(ctx, vendorID.String())

	if _, err := s.repo.FindOpenByVendor(ctx, vendorID); err == nil {
		err := pkgerrors.New(pkgerrors.CodeConflict, "vendor already has an open payment request")
		s.observeFailure("create_payment_request", err)
		return nil, err
	} else if err != gorm.ErrRecordNotFound {
		s.observeFailure("create_payment_request", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open request")
	}

	commissions, err := s.ledger.ListPendingByVendor(ctx, vendorID)
	if err != nil {
		s.observeFailure("create_payment_request", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending commissions")
	}
	if len(commissions) == 0 {
		err := pkgerrors.New(pkgerrors.CodePrecondition, "no pending commissions to request")
		s.observeFailure("create_payment_request", err)
		return nil, err
	}

	ids := make(dbtypes.UUIDArray, 0, len(commissions))
	total := decimal.Zero
	for _, commission := range commissions {
		ids = append(ids, commission.ID)
		total = total.Add(commission.Amount)
	}

	request := &models.PaymentRequest{
		ID:            uuid.New(),
		VendorID:      vendorID,
		Total:         total,
		CommissionIDs: ids,
		Status:        enums.PaymentRequestStatusPending,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			if db.IsUniqueViolation(err, "uniq_payment_requests_open") {
				return pkgerrors.New(pkgerrors.CodeConflict, "vendor already has an open payment request")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist payment request")
		}
		return s.ledger.MarkProcessing(ctx, tx, ids, request.ID)
	})
	if err != nil {
		s.observeFailure("create_payment_request", err)
		return nil, err
	}

	s.notify.Notify(ctx, notifications.NotifyInput{
		Audience: enums.NotificationAudienceVendor,
		VendorID: &vendorID,
		Kind:     enums.NotificationKindPaymentProcessing,
		Body: map[string]any{
			"request_id": request.ID,
			"total":      request.Total,
		},
	})
	s.observeSuccess("create_payment_request", started)
	return request, nil
}

// Approve pays the request out. A verified bank account is mandatory; the
// receipt upload is best effort and never blocks approval.
func (s *service) Approve(ctx context.Context, input ApproveInput) (*models.PaymentRequest, error) {
	started := time.Now()
	if input.RequestID == uuid.Nil || input.ApproverID == uuid.Nil {
		err := pkgerrors.New(pkgerrors.CodeValidation, "request id and approver id required")
		s.observeFailure("approve_payment_request", err)
		return nil, err
	}

	request, err := s.loadPending(ctx, input.RequestID)
	if err != nil {
		s.observeFailure("approve_payment_request", err)
		return nil, err
	}

	account, err := s.resolveAccount(ctx, request.VendorID, input.BankAccountID)
	if err != nil {
		s.observeFailure("approve_payment_request", err)
		return nil, err
	}

	receiptRef := s.uploadReceipt(ctx, request.ID, input.Receipt, input.ReceiptType)

	now := time.Now().UTC()
	updates := map[string]any{
		"status":          enums.PaymentRequestStatusApproved,
		"approver_id":     input.ApproverID,
		"resolved_at":     now,
		"bank_account_id": account.ID,
	}
	if receiptRef != nil {
		updates["receipt_ref"] = *receiptRef
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).ApplyResolution(ctx, request.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve payment request")
		}
		if moved == 0 {
			return pkgerrors.New(pkgerrors.CodePrecondition, "payment request is no longer pending")
		}
		return s.ledger.MarkPaid(ctx, tx, request.CommissionIDs)
	})
	if err != nil {
		s.observeFailure("approve_payment_request", err)
		return nil, err
	}

	request.Status = enums.PaymentRequestStatusApproved
	request.ApproverID = &input.ApproverID
	request.ResolvedAt = &now
	request.BankAccountID = &account.ID
	request.ReceiptRef = receiptRef

	s.notify.Notify(ctx, notifications.NotifyInput{
		Audience: enums.NotificationAudienceVendor,
		VendorID: &request.VendorID,
		Kind:     enums.NotificationKindPaymentApproved,
		Body: map[string]any{
			"request_id": request.ID,
			"total":      request.Total,
			"bank_name":  account.BankName,
		},
	})
	s.observeSuccess("approve_payment_request", started)
	return request, nil
}

// Reject closes the request and returns its commissions to pending so the
// vendor can fix the problem and request again.
func (s *service) Reject(ctx context.Context, input RejectInput) (*models.PaymentRequest, error) {
	started := time.Now()
	if input.RequestID == uuid.Nil || input.ApproverID == uuid.Nil {
		err := pkgerrors.New(pkgerrors.CodeValidation, "request id and approver id required")
		s.observeFailure("reject_payment_request", err)
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		err := pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
		s.observeFailure("reject_payment_request", err)
		return nil, err
	}

	request, err := s.loadPending(ctx, input.RequestID)
	if err != nil {
		s.observeFailure("reject_payment_request", err)
		return nil, err
	}

	now := time.Now().UTC()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).ApplyResolution(ctx, request.ID, map[string]any{
			"status":      enums.PaymentRequestStatusRejected,
			"approver_id": input.ApproverID,
			"resolved_at": now,
			"reason":      reason,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject payment request")
		}
		if moved == 0 {
			return pkgerrors.New(pkgerrors.CodePrecondition, "payment request is no longer pending")
		}
		return s.ledger.RevertToPending(ctx, tx, request.CommissionIDs)
	})
	if err != nil {
		s.observeFailure("reject_payment_request", err)
		return nil, err
	}

	request.Status = enums.PaymentRequestStatusRejected
	request.ApproverID = &input.ApproverID
	request.ResolvedAt = &now
	request.Reason = &reason

	s.notify.Notify(ctx, notifications.NotifyInput{
		Audience: enums.NotificationAudienceVendor,
		VendorID: &request.VendorID,
		Kind:     enums.NotificationKindPaymentRejected,
		Body: map[string]any{
			"request_id": request.ID,
			"reason":     reason,
		},
	})
	s.observeSuccess("reject_payment_request", started)
	return request, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment request")
	}
	return request, nil
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment requests")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) loadPending(ctx context.Context, id uuid.UUID) (*models.PaymentRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment request")
	}
	if request.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition,
			fmt.Sprintf("payment request already %s", request.Status))
	}
	return request, nil
}

func (s *service) resolveAccount(ctx context.Context, vendorID uuid.UUID, accountID *uuid.UUID) (*models.BankAccount, error) {
	if accountID == nil {
		account, err := s.accounts.FindVerifiedPrimary(ctx, vendorID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodePrecondition, "vendor has no verified primary bank account")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load primary bank account")
		}
		return account, nil
	}

	account, err := s.accounts.FindByID(ctx, *accountID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bank account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bank account")
	}
	if account.VendorID != vendorID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank account belongs to another vendor")
	}
	if !account.IsVerified() {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "bank account is not verified")
	}
	return account, nil
}

// uploadReceipt stores the optional payment proof. Failures are logged and
// swallowed; the approval proceeds without a receipt reference.
func (s *service) uploadReceipt(ctx context.Context, requestID uuid.UUID, body io.Reader, contentType string) *string {
	if body == nil || s.receipts == nil {
		return nil
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	object := fmt.Sprintf("receipts/%s", requestID)
	ref, err := s.receipts.UploadObject(ctx, "", object, contentType, body)
	if err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("receipt upload failed for request %s: %v", requestID, err))
		return nil
	}
	return &ref
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
