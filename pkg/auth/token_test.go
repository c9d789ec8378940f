package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/movilpay/vendorpay-backend/pkg/config"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "vendorpay",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	vendorID := uuid.New()
	payload := AccessTokenPayload{
		UserID:   uuid.New(),
		VendorID: &vendorID,
		Role:     enums.MemberRoleVendor,
	}

	signed, err := MintAccessToken(cfg, time.Now(), payload)
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}

	claims, err := ParseAccessToken(cfg, signed)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.UserID != payload.UserID {
		t.Fatalf("user id mismatch: got %s want %s", claims.UserID, payload.UserID)
	}
	if claims.VendorID == nil || *claims.VendorID != vendorID {
		t.Fatalf("vendor id mismatch: got %v want %s", claims.VendorID, vendorID)
	}
	if claims.Role != enums.MemberRoleVendor {
		t.Fatalf("role mismatch: got %s", claims.Role)
	}
	if claims.ID == "" {
		t.Fatal("expected generated jti")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	t.Parallel()

	vendorID := uuid.New()
	valid := AccessTokenPayload{UserID: uuid.New(), VendorID: &vendorID, Role: enums.MemberRoleVendor}

	cases := []struct {
		name    string
		cfg     config.JWTConfig
		payload AccessTokenPayload
	}{
		{"missing secret", config.JWTConfig{Issuer: "vendorpay", ExpirationMinutes: 30}, valid},
		{"missing issuer", config.JWTConfig{Secret: "s", ExpirationMinutes: 30}, valid},
		{"zero ttl", config.JWTConfig{Secret: "s", Issuer: "vendorpay"}, valid},
		{"invalid role", testJWTConfig(), AccessTokenPayload{UserID: uuid.New(), Role: enums.MemberRole("ghost")}},
		{"vendor without vendor id", testJWTConfig(), AccessTokenPayload{UserID: uuid.New(), Role: enums.MemberRoleVendor}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := MintAccessToken(tc.cfg, time.Now(), tc.payload); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	payload := AccessTokenPayload{UserID: uuid.New(), Role: enums.MemberRoleAdmin}

	signed, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), payload)
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}

	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestParseAccessTokenWrongSecret(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.MemberRoleValidator})
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, signed); err == nil {
		t.Fatal("expected signature error")
	}
}
