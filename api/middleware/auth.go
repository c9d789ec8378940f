package middleware

import (
	"net/http"
	"strings"

	"github.com/movilpay/vendorpay-backend/api/responses"
	pkgauth "github.com/movilpay/vendorpay-backend/pkg/auth"
	"github.com/movilpay/vendorpay-backend/pkg/config"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
)

// Auth validates the bearer token and seeds the request context with the
// authenticated actor. Downstream handlers read the actor through the
// context accessors in this package.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token"))
				return
			}

			ctx := r.Context()
			vendorID := ""
			if claims.VendorID != nil {
				vendorID = claims.VendorID.String()
			}
			ctx = WithActor(ctx, claims.UserID.String(), string(claims.Role), vendorID)

			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
				if vendorID != "" {
					ctx = logg.WithVendorID(ctx, vendorID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "authorization header must be a bearer token")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "bearer token is empty")
	}
	return token, nil
}
