package controllers

import (
	"context"
	"net/http"

	"github.com/movilpay/vendorpay-backend/api/responses"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthController answers liveness and readiness probes. Readiness checks
// every hard dependency; a nil dependency is treated as not configured and
// skipped.
type HealthController struct {
	db     pinger
	cache  pinger
	bucket pinger
	logger *logger.Logger
}

func NewHealthController(db, cache, bucket pinger, logg *logger.Logger) *HealthController {
	return &HealthController{db: db, cache: cache, bucket: bucket, logger: logg}
}

func (c *HealthController) Live(w http.ResponseWriter, r *http.Request) {
	responses.WriteSuccess(w, map[string]string{"status": "ok"})
}

func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]pinger{
		"database": c.db,
		"redis":    c.cache,
		"storage":  c.bucket,
	}

	status := map[string]string{}
	healthy := true
	for name, dep := range checks {
		if dep == nil {
			status[name] = "skipped"
			continue
		}
		if err := dep.Ping(r.Context()); err != nil {
			status[name] = "down"
			healthy = false
			if c.logger != nil {
				c.logger.Warn(c.logger.WithField(r.Context(), "dependency", name), "health.dependency_down")
			}
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		responses.WriteError(r.Context(), c.logger, w,
			pkgerrors.New(pkgerrors.CodeDependency, "a dependency is unavailable").WithDetails(status))
		return
	}
	responses.WriteSuccess(w, status)
}
