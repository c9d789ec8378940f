package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movilpay/vendorpay-backend/api/middleware"
	"github.com/movilpay/vendorpay-backend/internal/sales"
	"github.com/movilpay/vendorpay-backend/pkg/db/models"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
	"github.com/movilpay/vendorpay-backend/pkg/types"
)

type stubSalesService struct {
	registerInput *sales.RegisterInput
	registerSale  *models.Sale
	registerErr   error

	validateInput *sales.ValidateInput
	validateSale  *models.Sale
	validateErr   error

	findSale *models.Sale
	findErr  error

	listParams *sales.ListParams
	listResult *sales.ListResult
}

func (s *stubSalesService) Register(_ context.Context, input sales.RegisterInput) (*models.Sale, error) {
	s.registerInput = &input
	return s.registerSale, s.registerErr
}

func (s *stubSalesService) Validate(_ context.Context, input sales.ValidateInput) (*models.Sale, error) {
	s.validateInput = &input
	return s.validateSale, s.validateErr
}

func (s *stubSalesService) FindByID(_ context.Context, _ uuid.UUID) (*models.Sale, error) {
	return s.findSale, s.findErr
}

func (s *stubSalesService) List(_ context.Context, params sales.ListParams) (*sales.ListResult, error) {
	s.listParams = &params
	return s.listResult, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withVendorActor(req *http.Request, vendorID uuid.UUID) *http.Request {
	ctx := middleware.WithActor(req.Context(), uuid.NewString(), string(enums.MemberRoleVendor), vendorID.String())
	return req.WithContext(ctx)
}

func withStaffActor(req *http.Request, role enums.MemberRole) *http.Request {
	ctx := middleware.WithActor(req.Context(), uuid.NewString(), string(role), "")
	return req.WithContext(ctx)
}

func salesRouter(ctrl *SalesController) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/v1/sales", ctrl.Register)
	r.Get("/api/v1/sales", ctrl.List)
	r.Get("/api/v1/sales/{saleID}", ctrl.Get)
	r.Post("/api/v1/sales/{saleID}/validate", ctrl.Validate)
	return r
}

func TestRegisterSale(t *testing.T) {
	vendorID := uuid.New()
	productID := uuid.New()
	stub := &stubSalesService{registerSale: &models.Sale{
		ID:       uuid.New(),
		Number:   "VT-0001",
		VendorID: vendorID,
		Status:   enums.SaleStatusPending,
	}}
	router := salesRouter(NewSalesController(stub, testLogger()))

	payload := map[string]any{
		"product_id":   productID.String(),
		"imei":         "358497892739257",
		"price":        "8000.00",
		"channel":      "store",
		"sale_date":    time.Now().UTC().Format(time.RFC3339),
		"evidence_ref": "evidence/receipt.jpg",
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(body))
	req = withVendorActor(req, vendorID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, stub.registerInput)
	assert.Equal(t, vendorID, stub.registerInput.VendorID)
	assert.Equal(t, productID, stub.registerInput.ProductID)
	assert.Equal(t, "358497892739257", stub.registerInput.IMEI)
	assert.True(t, stub.registerInput.Price.Equal(decimal.RequireFromString("8000.00")))
	assert.Equal(t, enums.SaleChannelStore, stub.registerInput.Channel)
	assert.Equal(t, "evidence/receipt.jpg", stub.registerInput.EvidenceRef)
}

func TestRegisterSaleRequiresVendorScope(t *testing.T) {
	stub := &stubSalesService{}
	router := salesRouter(NewSalesController(stub, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewBufferString(`{}`))
	req = withStaffActor(req, enums.MemberRoleAdmin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, stub.registerInput)
}

func TestRegisterSaleRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "missing fields", body: `{}`},
		{name: "unknown field", body: `{"product_id":"x","imie":"typo"}`},
		{name: "missing evidence", body: `{"product_id":"` + uuid.NewString() + `","imei":"358497892739257","price":"1","channel":"store","sale_date":"2026-08-01T00:00:00Z"}`},
		{name: "bad channel", body: `{"product_id":"` + uuid.NewString() + `","imei":"358497892739257","price":"1","channel":"carrier_pigeon","sale_date":"2026-08-01T00:00:00Z","evidence_ref":"evidence/receipt.jpg"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubSalesService{}
			router := salesRouter(NewSalesController(stub, testLogger()))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewBufferString(tc.body))
			req = withVendorActor(req, uuid.New())
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, stub.registerInput)
		})
	}
}

func TestValidateSalePassesActor(t *testing.T) {
	saleID := uuid.New()
	stub := &stubSalesService{validateSale: &models.Sale{ID: saleID, Status: enums.SaleStatusApproved}}
	router := salesRouter(NewSalesController(stub, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/"+saleID.String()+"/validate",
		bytes.NewBufferString(`{"action":"approve"}`))
	req = withStaffActor(req, enums.MemberRoleValidator)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, stub.validateInput)
	assert.Equal(t, saleID, stub.validateInput.SaleID)
	assert.Equal(t, sales.ValidateActionApprove, stub.validateInput.Action)
	assert.Equal(t, enums.MemberRoleValidator, stub.validateInput.ActorRole)
}

func TestValidateSaleMapsServiceErrors(t *testing.T) {
	saleID := uuid.New()
	stub := &stubSalesService{
		validateErr: pkgerrors.New(pkgerrors.CodePrecondition, "sale is no longer pending"),
	}
	router := salesRouter(NewSalesController(stub, testLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales/"+saleID.String()+"/validate",
		bytes.NewBufferString(`{"action":"reject","reason":"stolen device"}`))
	req = withStaffActor(req, enums.MemberRoleAdmin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var envelope types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, "sale is no longer pending", envelope.Error.Message)
}

func TestGetSaleHidesOtherVendors(t *testing.T) {
	stub := &stubSalesService{findSale: &models.Sale{ID: uuid.New(), VendorID: uuid.New()}}
	router := salesRouter(NewSalesController(stub, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales/"+stub.findSale.ID.String(), nil)
	req = withVendorActor(req, uuid.New())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListSalesScopesVendor(t *testing.T) {
	vendorID := uuid.New()
	stub := &stubSalesService{listResult: &sales.ListResult{}}
	router := salesRouter(NewSalesController(stub, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales?status=pending&limit=10&vendor_id="+uuid.NewString(), nil)
	req = withVendorActor(req, vendorID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.listParams)
	assert.Equal(t, vendorID, stub.listParams.VendorID)
	assert.Equal(t, 10, stub.listParams.Limit)
	require.NotNil(t, stub.listParams.Status)
	assert.Equal(t, enums.SaleStatusPending, *stub.listParams.Status)
}
