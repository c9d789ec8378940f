package commissions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/movilpay/vendorpay-backend/pkg/db/models"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
)

func setupCommissionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	commissions := `
CREATE TABLE IF NOT EXISTS commissions (
  id TEXT PRIMARY KEY,
  sale_id TEXT NOT NULL UNIQUE,
  vendor_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  base_amount NUMERIC NOT NULL,
  amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_request_id TEXT,
  payment_batch_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	summaries := `
CREATE TABLE IF NOT EXISTS vendor_period_summaries (
  id TEXT PRIMARY KEY,
  vendor_id TEXT NOT NULL,
  period TEXT NOT NULL,
  sales_count INTEGER NOT NULL DEFAULT 0,
  sales_total NUMERIC NOT NULL DEFAULT 0,
  commission_total NUMERIC NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_batch_id TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (vendor_id, period)
);`
	sales := `
CREATE TABLE IF NOT EXISTS sales (
  id TEXT PRIMARY KEY,
  number TEXT NOT NULL UNIQUE,
  vendor_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  imei TEXT NOT NULL,
  price NUMERIC NOT NULL,
  sale_date DATETIME NOT NULL,
  channel TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  risk_tier TEXT NOT NULL DEFAULT 'low',
  risk_signals TEXT,
  inventory_status TEXT NOT NULL,
  inventory_snapshot TEXT,
  commission_amount NUMERIC NOT NULL DEFAULT 0,
  rejection_reason TEXT,
  validated_by TEXT,
  validated_at DATETIME,
  evidence_ref TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`

	for _, ddl := range []string{commissions, summaries, sales} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func seedCommission(t *testing.T, db *gorm.DB, vendorID uuid.UUID, status enums.CommissionStatus, amount int64) models.Commission {
	t.Helper()
	commission := models.Commission{
		ID:         uuid.New(),
		SaleID:     uuid.New(),
		VendorID:   vendorID,
		ProductID:  uuid.New(),
		BaseAmount: decimal.NewFromInt(amount * 20),
		Amount:     decimal.NewFromInt(amount),
		Status:     status,
	}
	require.NoError(t, db.Create(&commission).Error)
	return commission
}

func TestMarkStatusMovesOnlyMatchingRows(t *testing.T) {
	db := setupCommissionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	vendorID := uuid.New()

	pending1 := seedCommission(t, db, vendorID, enums.CommissionStatusPending, 200)
	pending2 := seedCommission(t, db, vendorID, enums.CommissionStatusPending, 300)
	paid := seedCommission(t, db, vendorID, enums.CommissionStatusPaid, 500)

	requestID := uuid.New()
	moved, err := repo.MarkStatus(ctx,
		[]uuid.UUID{pending1.ID, pending2.ID, paid.ID},
		enums.CommissionStatusPending, enums.CommissionStatusProcessing,
		map[string]any{"payment_request_id": requestID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)

	var moved1 models.Commission
	require.NoError(t, db.First(&moved1, "id = ?", pending1.ID).Error)
	assert.Equal(t, enums.CommissionStatusProcessing, moved1.Status)
	require.NotNil(t, moved1.PaymentRequestID)
	assert.Equal(t, requestID, *moved1.PaymentRequestID)

	// A fresh destination per lookup, or gorm carries the previous primary
	// key into the WHERE clause.
	var untouched models.Commission
	require.NoError(t, db.First(&untouched, "id = ?", paid.ID).Error)
	assert.Equal(t, enums.CommissionStatusPaid, untouched.Status)
}

func TestMarkStatusRoundTripPreservesAmounts(t *testing.T) {
	db := setupCommissionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	vendorID := uuid.New()

	commission := seedCommission(t, db, vendorID, enums.CommissionStatusPending, 300)
	ids := []uuid.UUID{commission.ID}

	moved, err := repo.MarkStatus(ctx, ids, enums.CommissionStatusPending, enums.CommissionStatusProcessing, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), moved)

	moved, err = repo.MarkStatus(ctx, ids, enums.CommissionStatusProcessing, enums.CommissionStatusPending,
		map[string]any{"payment_request_id": nil})
	require.NoError(t, err)
	require.Equal(t, int64(1), moved)

	var reloaded models.Commission
	require.NoError(t, db.First(&reloaded, "id = ?", commission.ID).Error)
	assert.Equal(t, enums.CommissionStatusPending, reloaded.Status)
	assert.True(t, reloaded.Amount.Equal(commission.Amount))
	assert.Nil(t, reloaded.PaymentRequestID)
}

func TestIncrementPeriodSummaryIsAdditive(t *testing.T) {
	db := setupCommissionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	vendorID := uuid.New()

	require.NoError(t, repo.IncrementPeriodSummary(ctx, vendorID, "2026-08",
		decimal.NewFromInt(10000), decimal.NewFromInt(500)))
	require.NoError(t, repo.IncrementPeriodSummary(ctx, vendorID, "2026-08",
		decimal.NewFromInt(4000), decimal.NewFromInt(200)))

	var summary models.VendorPeriodSummary
	require.NoError(t, db.First(&summary, "vendor_id = ? AND period = ?", vendorID, "2026-08").Error)
	assert.Equal(t, 2, summary.SalesCount)
	assert.True(t, summary.SalesTotal.Equal(decimal.NewFromInt(14000)), "sales total %s", summary.SalesTotal)
	assert.True(t, summary.CommissionTotal.Equal(decimal.NewFromInt(700)), "commission total %s", summary.CommissionTotal)
}

func TestReplacePeriodSummaryIsIdempotent(t *testing.T) {
	db := setupCommissionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	vendorID := uuid.New()

	agg := PeriodAggregate{
		VendorID:        vendorID,
		SalesCount:      3,
		SalesTotal:      decimal.NewFromInt(30000),
		CommissionTotal: decimal.NewFromInt(1500),
	}
	require.NoError(t, repo.ReplacePeriodSummary(ctx, vendorID, "2026-08", agg))
	require.NoError(t, repo.ReplacePeriodSummary(ctx, vendorID, "2026-08", agg))

	var summaries []models.VendorPeriodSummary
	require.NoError(t, db.Find(&summaries, "vendor_id = ?", vendorID).Error)
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, summaries[0].SalesCount)
	assert.True(t, summaries[0].CommissionTotal.Equal(decimal.NewFromInt(1500)))
}

func TestApprovedSalesAggregates(t *testing.T) {
	db := setupCommissionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	vendorID := uuid.New()

	inPeriod := models.Sale{
		ID: uuid.New(), Number: "VT-0001", VendorID: vendorID, ProductID: uuid.New(),
		IMEI: "358497892739257", Price: decimal.NewFromInt(10000),
		SaleDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Channel:  enums.SaleChannelStore, Status: enums.SaleStatusApproved,
		InventoryStatus: enums.InventoryStatusVerified, CommissionAmount: decimal.NewFromInt(500),
		EvidenceRef: "gs://evidence/a.jpg",
	}
	outOfPeriod := inPeriod
	outOfPeriod.ID = uuid.New()
	outOfPeriod.Number = "VT-0002"
	outOfPeriod.SaleDate = time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)
	pendingSale := inPeriod
	pendingSale.ID = uuid.New()
	pendingSale.Number = "VT-0003"
	pendingSale.Status = enums.SaleStatusPending

	require.NoError(t, db.Create(&inPeriod).Error)
	require.NoError(t, db.Create(&outOfPeriod).Error)
	require.NoError(t, db.Create(&pendingSale).Error)

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	aggregates, err := repo.ApprovedSalesAggregates(ctx, start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, aggregates, 1)
	assert.Equal(t, vendorID, aggregates[0].VendorID)
	assert.Equal(t, 1, aggregates[0].SalesCount)
	assert.True(t, aggregates[0].CommissionTotal.Equal(decimal.NewFromInt(500)))
}
