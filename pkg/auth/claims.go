package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/movilpay/vendorpay-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
// VendorPay does not issue tokens itself in production; the identity
// service does. Minting lives here for local development and tests.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	VendorID *uuid.UUID
	Role     enums.MemberRole
	JTI      string
}

// AccessTokenClaims represents the typed JWT presented by clients.
type AccessTokenClaims struct {
	UserID   uuid.UUID        `json:"user_id"`
	VendorID *uuid.UUID       `json:"vendor_id,omitempty"`
	Role     enums.MemberRole `json:"role"`
	jwt.RegisteredClaims
}
