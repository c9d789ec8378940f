package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/movilpay/vendorpay-backend/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestID assigns a request id, honoring one supplied by the caller, and
// binds it to the request logger and response headers.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}

			ctx := r.Context()
			if logg != nil {
				ctx = logg.WithRequestID(ctx, requestID)
			}
			w.Header().Set(requestIDHeader, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
