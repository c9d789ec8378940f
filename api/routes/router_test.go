package routes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movilpay/vendorpay-backend/api/controllers"
	pkgauth "github.com/movilpay/vendorpay-backend/pkg/auth"
	"github.com/movilpay/vendorpay-backend/pkg/config"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
)

func testRouter(t *testing.T) (http.Handler, config.JWTConfig) {
	t.Helper()

	jwtCfg := config.JWTConfig{
		Secret:            "router-test-secret",
		Issuer:            "vendorpay-test",
		ExpirationMinutes: 15,
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	deps := Deps{
		Config:          config.Config{JWT: jwtCfg},
		Logger:          logg,
		Gatherer:        prometheus.NewRegistry(),
		Health:          controllers.NewHealthController(nil, nil, nil, logg),
		Sales:           controllers.NewSalesController(nil, logg),
		PaymentRequests: controllers.NewPaymentRequestsController(nil, logg),
		PaymentBatches:  controllers.NewPaymentBatchesController(nil, logg),
		Commissions:     controllers.NewCommissionsController(nil, logg),
		Notifications:   controllers.NewNotificationsController(nil, logg),
	}
	return New(deps), jwtCfg
}

func TestHealthEndpointsAreOpen(t *testing.T) {
	router, _ := testRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestMetricsEndpointIsMounted(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	router, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sales", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStaffRoutesRejectVendorTokens(t *testing.T) {
	router, jwtCfg := testRouter(t)

	vendorID := uuid.New()
	token, err := pkgauth.MintAccessToken(jwtCfg, time.Now(), pkgauth.AccessTokenPayload{
		UserID:   uuid.New(),
		VendorID: &vendorID,
		Role:     enums.MemberRoleVendor,
	})
	require.NoError(t, err)

	paths := []string{
		"/api/v1/sales/" + uuid.NewString() + "/validate",
		"/api/v1/payment-requests/" + uuid.NewString() + "/approve",
		"/api/v1/payment-batches/",
		"/api/v1/commissions/recalculate",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestVendorRoutesRejectStaffTokens(t *testing.T) {
	router, jwtCfg := testRouter(t)

	token, err := pkgauth.MintAccessToken(jwtCfg, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.MemberRoleValidator,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment-requests/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
