package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/movilpay/vendorpay-backend/api/responses"
	"github.com/movilpay/vendorpay-backend/api/validators"
	"github.com/movilpay/vendorpay-backend/internal/paybatches"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
)

const transferURLTTL = 15 * time.Minute

// PaymentBatchesController exposes batch building and completion for staff.
type PaymentBatchesController struct {
	service paybatches.Service
	logger  *logger.Logger
}

func NewPaymentBatchesController(service paybatches.Service, logg *logger.Logger) *PaymentBatchesController {
	return &PaymentBatchesController{service: service, logger: logg}
}

type buildBatchRequest struct {
	FromPeriod  string `json:"from_period" validate:"required"`
	ToPeriod    string `json:"to_period" validate:"required"`
	PaymentType string `json:"payment_type" validate:"required"`
}

// Build sweeps eligible pending commissions into a new batch.
func (c *PaymentBatchesController) Build(w http.ResponseWriter, r *http.Request) {
	var body buildBatchRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	paymentType, err := enums.ParsePaymentType(body.PaymentType)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w,
			pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
		return
	}

	batch, err := c.service.Build(r.Context(), paybatches.BuildInput{
		FromPeriod:  body.FromPeriod,
		ToPeriod:    body.ToPeriod,
		PaymentType: paymentType,
	})
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccessStatus(w, http.StatusCreated, batch)
}

// Complete marks a processing batch, and everything it swept, as paid.
func (c *PaymentBatchesController) Complete(w http.ResponseWriter, r *http.Request) {
	batchID, err := validators.PathUUID("batch_id", chi.URLParam(r, "batchID"))
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	batch, err := c.service.Complete(r.Context(), batchID)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccess(w, batch)
}

// Get returns a single batch.
func (c *PaymentBatchesController) Get(w http.ResponseWriter, r *http.Request) {
	batchID, err := validators.PathUUID("batch_id", chi.URLParam(r, "batchID"))
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	batch, err := c.service.FindByID(r.Context(), batchID)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccess(w, batch)
}

// TransferFile returns a short-lived signed URL for the batch transfer CSV.
func (c *PaymentBatchesController) TransferFile(w http.ResponseWriter, r *http.Request) {
	batchID, err := validators.PathUUID("batch_id", chi.URLParam(r, "batchID"))
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	url, err := c.service.TransferFileURL(r.Context(), batchID, transferURLTTL)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]string{"url": url})
}

// List pages through batches.
func (c *PaymentBatchesController) List(w http.ResponseWriter, r *http.Request) {
	params := paybatches.ListParams{Cursor: r.URL.Query().Get("cursor")}

	limit, err := validators.ParseQueryInt(r, "limit", 0)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	params.Limit = limit

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := enums.ParsePaymentBatchStatus(raw)
		if err != nil {
			responses.WriteError(r.Context(), c.logger, w,
				pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}
		params.Status = &status
	}

	result, err := c.service.List(r.Context(), params)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccess(w, result)
}
