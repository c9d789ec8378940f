package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"

	"github.com/movilpay/vendorpay-backend/api/responses"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
	"github.com/movilpay/vendorpay-backend/pkg/redis"
)

const idempotencyHeader = "Idempotency-Key"

// idempotencyRule pins a TTL to a mutating route. Money-moving operations
// keep their records for a week so a delayed client retry never double
// settles.
type idempotencyRule struct {
	method  string
	match   func(pattern string) bool
	ttl     time.Duration
	require bool
}

func matchExact(want string) func(string) bool {
	return func(pattern string) bool { return pattern == want }
}

func matchSuffix(suffix string) func(string) bool {
	return func(pattern string) bool { return strings.HasSuffix(pattern, suffix) }
}

var idempotencyRules = []idempotencyRule{
	{method: http.MethodPost, match: matchExact("/api/v1/sales"), ttl: 24 * time.Hour, require: true},
	{method: http.MethodPost, match: matchSuffix("/validate"), ttl: 7 * 24 * time.Hour, require: true},
	{method: http.MethodPost, match: matchExact("/api/v1/payment-requests"), ttl: 7 * 24 * time.Hour, require: true},
	{method: http.MethodPost, match: matchSuffix("/approve"), ttl: 7 * 24 * time.Hour, require: true},
	{method: http.MethodPost, match: matchSuffix("/reject"), ttl: 7 * 24 * time.Hour, require: true},
	{method: http.MethodPost, match: matchExact("/api/v1/payment-batches"), ttl: 7 * 24 * time.Hour, require: true},
	{method: http.MethodPost, match: matchSuffix("/complete"), ttl: 7 * 24 * time.Hour, require: true},
}

func ruleFor(method, pattern string) (idempotencyRule, bool) {
	// nested chi routes report "/api/v1/sales/" for a Post("/") endpoint
	pattern = strings.TrimSuffix(pattern, "/")
	for _, rule := range idempotencyRules {
		if rule.method == method && rule.match(pattern) {
			return rule, true
		}
	}
	return idempotencyRule{}, false
}

// idempotencyRecord is the replayable snapshot of a completed response.
type idempotencyRecord struct {
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestHash string            `json:"request_hash"`
}

type responseCapture struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *responseCapture) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *responseCapture) Write(p []byte) (int, error) {
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

// Idempotency replays the stored response for repeated mutation attempts
// carrying the same Idempotency-Key. A key reused with a different request
// body is rejected rather than replayed.
func Idempotency(store redis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil {
				next.ServeHTTP(w, r)
				return
			}

			rctx := chi.RouteContext(r.Context())
			if rctx == nil {
				next.ServeHTTP(w, r)
				return
			}
			pattern := rctx.RoutePattern()
			rule, ok := ruleFor(r.Method, pattern)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if key == "" {
				if rule.require {
					responses.WriteError(r.Context(), logg, w,
						pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header is required"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unable to read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashRequest(r.Method, pattern, body)
			scope := UserIDFromContext(r.Context())
			if scope == "" {
				scope = "anonymous"
			}
			storeKey := store.IdempotencyKey(scope, key)

			stored, err := store.Get(r.Context(), storeKey)
			switch {
			case err == nil:
				replayStored(r, w, logg, stored, requestHash)
				return
			case errors.Is(err, goredis.Nil):
				// first attempt, fall through
			default:
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "idempotency.lookup_failed")
				}
			}

			capture := &responseCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.status >= http.StatusInternalServerError {
				return
			}

			record := idempotencyRecord{
				Status:      capture.status,
				Body:        base64.StdEncoding.EncodeToString(capture.body.Bytes()),
				Headers:     map[string]string{"Content-Type": capture.Header().Get("Content-Type")},
				RequestHash: requestHash,
			}
			payload, err := json.Marshal(record)
			if err != nil {
				return
			}
			if _, err := store.SetNX(r.Context(), storeKey, string(payload), rule.ttl); err != nil {
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "idempotency.persist_failed")
				}
			}
		})
	}
}

func replayStored(r *http.Request, w http.ResponseWriter, logg *logger.Logger, stored, requestHash string) {
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(stored), &record); err != nil {
		responses.WriteError(r.Context(), logg, w,
			pkgerrors.Wrap(pkgerrors.CodeInternal, err, "corrupt idempotency record"))
		return
	}
	if record.RequestHash != requestHash {
		responses.WriteError(r.Context(), logg, w,
			pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request"))
		return
	}

	body, err := base64.StdEncoding.DecodeString(record.Body)
	if err != nil {
		responses.WriteError(r.Context(), logg, w,
			pkgerrors.Wrap(pkgerrors.CodeInternal, err, "corrupt idempotency record"))
		return
	}

	for name, value := range record.Headers {
		if value != "" {
			w.Header().Set(name, value)
		}
	}
	w.Header().Set("Idempotent-Replay", "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(body)
}

func hashRequest(method, pattern string, body []byte) string {
	sum := sha256.New()
	sum.Write([]byte(method))
	sum.Write([]byte{0})
	sum.Write([]byte(pattern))
	sum.Write([]byte{0})
	sum.Write(body)
	return hex.EncodeToString(sum.Sum(nil))
}
