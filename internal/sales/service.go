package sales

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/movilpay/vendorpay-backend/internal/inventory"
	"github.com/movilpay/vendorpay-backend/internal/notifications"
	"github.com/movilpay/vendorpay-backend/internal/products"
	"github.com/movilpay/vendorpay-backend/internal/risk"
	"github.com/movilpay/vendorpay-backend/pkg/db"
	"github.com/movilpay/vendorpay-backend/pkg/db/models"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
	"github.com/movilpay/vendorpay-backend/pkg/metrics"
	"github.com/movilpay/vendorpay-backend/pkg/pagination"
)

const (
	numberPrefix      = "VT-"
	numberWidth       = 4
	maxInsertAttempts = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type inventoryVerifier interface {
	Lookup(ctx context.Context, imei string) (inventory.Result, error)
}

type riskScorer interface {
	Score(ctx context.Context, input risk.ScoreInput) risk.Assessment
}

type commissionCreator interface {
	CreateForSale(ctx context.Context, tx *gorm.DB, sale *models.Sale, amount decimal.Decimal) (*models.Commission, error)
}

type notifier interface {
	Notify(ctx context.Context, input notifications.NotifyInput)
}

// ValidateAction is the decision a validator takes on a pending sale.
type ValidateAction string

const (
	ValidateActionApprove ValidateAction = "approve"
	ValidateActionReject  ValidateAction = "reject"
)

// Service owns the sale lifecycle from registration through validation.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Sale, error)
	Validate(ctx context.Context, input ValidateInput) (*models.Sale, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	verifier    inventoryVerifier
	scorer      riskScorer
	products    products.Repository
	commissions commissionCreator
	notify      notifier
	metrics     *metrics.SettlementMetrics
	logger      *logger.Logger
}

// RegisterInput captures one vendor-reported device sale.
type RegisterInput struct {
	VendorID  uuid.UUID
	ProductID uuid.UUID
	IMEI      string
	Price     decimal.Decimal
	Channel   enums.SaleChannel
	SaleDate  time.Time
	// EvidenceRef references purchase evidence already uploaded to object
	// storage.
	EvidenceRef string
}

// ValidateInput carries a validator's decision over a pending sale.
type ValidateInput struct {
	SaleID    uuid.UUID
	Action    ValidateAction
	Reason    *string
	ActorID   uuid.UUID
	ActorRole enums.MemberRole
}

// ListParams configures a paginated sale listing.
type ListParams struct {
	VendorID uuid.UUID
	Status   *enums.SaleStatus
	Limit    int
	Cursor   string
}

// ListResult wraps returned sales and the cursor for the next page.
type ListResult struct {
	Items  []models.Sale `json:"items"`
	Cursor string        `json:"cursor"`
}

// NewService wires the sale state machine with its collaborators.
func NewService(
	repo Repository,
	tx txRunner,
	verifier inventoryVerifier,
	scorer riskScorer,
	productRepo products.Repository,
	commissionSvc commissionCreator,
	notify notifier,
	m *metrics.SettlementMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("inventory verifier required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("risk scorer required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if commissionSvc == nil {
		return nil, fmt.Errorf("commission service required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		verifier:    verifier,
		scorer:      scorer,
		products:    productRepo,
		commissions: commissionSvc,
		notify:      notify,
		metrics:     m,
		logger:      logg,
	}, nil
}

// Register verifies the device, scores the submission, and persists a
// pending sale. Inventory unreachability never fails registration; the
// unverified outcome rides along for the validator. The human-readable
// number is regenerated on uniqueness conflicts up to three times.
func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Sale, error) {
	started := time.Now()
	if err := s.validateRegisterInput(input); err != nil {
		s.observeFailure("register_sale", err)
		return nil, err
	}
	ctx = s.logger.WithVendorID(s.logger.WithIMEI(ctx, input.IMEI), input.VendorID.String())

	taken, err := s.repo.ExistsApprovedIMEI(ctx, input.IMEI)
	if err != nil {
		s.observeFailure("register_sale", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check approved imei")
	}
	if taken {
		err := pkgerrors.New(pkgerrors.CodeConflict, "imei already consumed by an approved sale")
		s.observeFailure("register_sale", err)
		return nil, err
	}

	product, err := s.products.FindActiveByID(ctx, input.ProductID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			err = pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		} else {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		s.observeFailure("register_sale", err)
		return nil, err
	}

	result, err := s.verifier.Lookup(ctx, input.IMEI)
	if err != nil {
		// Only context cancellation reaches here; exhaustion is a result.
		s.observeFailure("register_sale", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "inventory lookup")
	}

	assessment := s.scorer.Score(ctx, risk.ScoreInput{
		VendorID:        input.VendorID,
		IMEI:            input.IMEI,
		ClaimedModel:    product.ModelTag,
		InventoryResult: result,
	})

	saleDate := input.SaleDate
	if saleDate.IsZero() {
		saleDate = time.Now().UTC()
	}

	sale := &models.Sale{
		VendorID:          input.VendorID,
		ProductID:         input.ProductID,
		IMEI:              input.IMEI,
		Price:             input.Price,
		SaleDate:          saleDate,
		Channel:           input.Channel,
		Status:            enums.SaleStatusPending,
		RiskTier:          assessment.Tier,
		RiskSignals:       assessment.MarshalSignals(),
		InventoryStatus:   result.Status,
		InventorySnapshot: result.Snapshot,
		CommissionAmount:  decimal.Zero,
		EvidenceRef:       input.EvidenceRef,
	}

	if err := s.insertWithNumberRetry(ctx, sale); err != nil {
		s.observeFailure("register_sale", err)
		return nil, err
	}

	s.notify.Notify(ctx, notifications.NotifyInput{
		Audience: enums.NotificationAudienceStaff,
		Kind:     enums.NotificationKindSaleSubmitted,
		Body: map[string]any{
			"sale_number": sale.Number,
			"vendor_id":   sale.VendorID,
			"risk_tier":   sale.RiskTier,
		},
	})
	s.observeSuccess("register_sale", started)
	return sale, nil
}

func (s *service) validateRegisterInput(input RegisterInput) error {
	if input.VendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if err := ValidateIMEI(input.IMEI); err != nil {
		return err
	}
	if !input.Price.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if !input.Channel.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid sale channel %q", input.Channel))
	}
	if strings.TrimSpace(input.EvidenceRef) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "evidence attachment required")
	}
	return nil
}

// insertWithNumberRetry computes the next sequence number and inserts,
// regenerating on a number-uniqueness conflict under concurrent writers.
func (s *service) insertWithNumberRetry(ctx context.Context, sale *models.Sale) error {
	var lastErr error
	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		number, err := s.nextNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "derive next sale number")
		}
		sale.Number = number
		err = s.repo.Create(ctx, sale)
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "uniq_sales_number") {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist sale")
		}
		lastErr = err
		s.logger.Warn(ctx, fmt.Sprintf("sale number %s already taken, retrying (%d/%d)", number, attempt, maxInsertAttempts))
	}
	return pkgerrors.Wrap(pkgerrors.CodeConflict, lastErr, "exhausted sale number retries")
}

func (s *service) nextNumber(ctx context.Context) (string, error) {
	current, err := s.repo.MaxNumber(ctx)
	if err != nil {
		return "", err
	}
	next := 1
	if trimmed := strings.TrimPrefix(current, numberPrefix); trimmed != current {
		if parsed, err := strconv.Atoi(trimmed); err == nil {
			next = parsed + 1
		}
	}
	return fmt.Sprintf("%s%0*d", numberPrefix, numberWidth, next), nil
}

// Validate applies the single allowed pending-to-terminal decision. Approval
// creates the commission and updates the period aggregate in the same
// transaction; a guarded update keeps concurrent validators from double
// processing.
func (s *service) Validate(ctx context.Context, input ValidateInput) (*models.Sale, error) {
	started := time.Now()
	if !input.ActorRole.CanValidateSales() {
		err := pkgerrors.New(pkgerrors.CodeForbidden, "validator role required")
		s.observeFailure("validate_sale", err)
		return nil, err
	}
	if input.SaleID == uuid.Nil {
		err := pkgerrors.New(pkgerrors.CodeValidation, "sale id required")
		s.observeFailure("validate_sale", err)
		return nil, err
	}
	if input.Action != ValidateActionApprove && input.Action != ValidateActionReject {
		err := pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid validation action %q", input.Action))
		s.observeFailure("validate_sale", err)
		return nil, err
	}
	if input.Action == ValidateActionReject && (input.Reason == nil || strings.TrimSpace(*input.Reason) == "") {
		err := pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
		s.observeFailure("validate_sale", err)
		return nil, err
	}

	var sale *models.Sale
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.FindByID(ctx, input.SaleID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
		}
		target := enums.SaleStatusApproved
		if input.Action == ValidateActionReject {
			target = enums.SaleStatusRejected
		}
		if !loaded.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodePrecondition,
				fmt.Sprintf("sale %s cannot move from %s to %s", loaded.Number, loaded.Status, target))
		}

		now := time.Now().UTC()
		updates := map[string]any{
			"status":       target,
			"validated_by": input.ActorID,
			"validated_at": now,
		}

		if input.Action == ValidateActionReject {
			updates["rejection_reason"] = strings.TrimSpace(*input.Reason)
		} else {
			product, err := s.products.WithTx(tx).FindByID(ctx, loaded.ProductID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product scheme")
			}
			loaded.CommissionAmount = product.CommissionFor(loaded.Price)
			updates["commission_amount"] = loaded.CommissionAmount
		}

		moved, err := repo.ApplyValidation(ctx, loaded.ID, updates)
		if err != nil {
			if db.IsUniqueViolation(err, "uniq_sales_imei_approved") {
				return pkgerrors.New(pkgerrors.CodeConflict, "imei already consumed by an approved sale")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply validation")
		}
		if moved == 0 {
			return pkgerrors.New(pkgerrors.CodePrecondition, "sale is no longer pending")
		}

		loaded.Status = target
		loaded.ValidatedBy = &input.ActorID
		loaded.ValidatedAt = &now
		if input.Action == ValidateActionReject {
			reason := strings.TrimSpace(*input.Reason)
			loaded.RejectionReason = &reason
		} else {
			if _, err := s.commissions.CreateForSale(ctx, tx, loaded, loaded.CommissionAmount); err != nil {
				return err
			}
		}

		sale = loaded
		return nil
	})
	if err != nil {
		s.observeFailure("validate_sale", err)
		return nil, err
	}

	kind := enums.NotificationKindSaleApproved
	if input.Action == ValidateActionReject {
		kind = enums.NotificationKindSaleRejected
	}
	s.notify.Notify(ctx, notifications.NotifyInput{
		Audience: enums.NotificationAudienceVendor,
		VendorID: &sale.VendorID,
		Kind:     kind,
		Body: map[string]any{
			"sale_number":       sale.Number,
			"commission_amount": sale.CommissionAmount,
		},
	})
	s.observeSuccess("validate_sale", started)
	return sale, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id required")
	}
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}
	return sale, nil
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
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
