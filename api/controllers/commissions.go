package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/movilpay/vendorpay-backend/api/middleware"
	"github.com/movilpay/vendorpay-backend/api/responses"
	"github.com/movilpay/vendorpay-backend/api/validators"
	"github.com/movilpay/vendorpay-backend/internal/commissions"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
)

// CommissionsController exposes the commission ledger read side plus the
// staff-only aggregate rebuild.
type CommissionsController struct {
	service commissions.Service
	logger  *logger.Logger
}

func NewCommissionsController(service commissions.Service, logg *logger.Logger) *CommissionsController {
	return &CommissionsController{service: service, logger: logg}
}

type recalculateRequest struct {
	Period string `json:"period" validate:"required"`
}

// List pages through commissions. Vendor tokens see only their own ledger.
func (c *CommissionsController) List(w http.ResponseWriter, r *http.Request) {
	params := commissions.ListParams{Cursor: r.URL.Query().Get("cursor")}

	limit, err := validators.ParseQueryInt(r, "limit", 0)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	params.Limit = limit

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := enums.ParseCommissionStatus(raw)
		if err != nil {
			responses.WriteError(r.Context(), c.logger, w,
				pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}
		params.Status = &status
	}

	if vendor := middleware.VendorIDFromContext(r.Context()); vendor != "" {
		id, err := uuid.Parse(vendor)
		if err != nil {
			responses.WriteError(r.Context(), c.logger, w,
				pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid vendor scope"))
			return
		}
		params.VendorID = id
	} else if filter, err := validators.ParseQueryUUID(r, "vendor_id"); err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	} else if filter != nil {
		params.VendorID = *filter
	}

	result, err := c.service.List(r.Context(), params)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccess(w, result)
}

// Summaries lists per-vendor period aggregates. Vendor tokens see only
// their own periods; staff may filter by vendor_id and period.
func (c *CommissionsController) Summaries(w http.ResponseWriter, r *http.Request) {
	var vendorID uuid.UUID
	if vendor := middleware.VendorIDFromContext(r.Context()); vendor != "" {
		id, err := uuid.Parse(vendor)
		if err != nil {
			responses.WriteError(r.Context(), c.logger, w,
				pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid vendor scope"))
			return
		}
		vendorID = id
	} else if filter, err := validators.ParseQueryUUID(r, "vendor_id"); err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	} else if filter != nil {
		vendorID = *filter
	}

	summaries, err := c.service.ListSummaries(r.Context(), vendorID, r.URL.Query().Get("period"))
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccess(w, summaries)
}

// Recalculate rebuilds every vendor period aggregate for one period from
// the commission rows themselves.
func (c *CommissionsController) Recalculate(w http.ResponseWriter, r *http.Request) {
	var body recalculateRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	if err := c.service.Recalculate(r.Context(), body.Period); err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]string{"period": body.Period, "status": "recalculated"})
}
