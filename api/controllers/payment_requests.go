package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/movilpay/vendorpay-backend/api/middleware"
	"github.com/movilpay/vendorpay-backend/api/responses"
	"github.com/movilpay/vendorpay-backend/api/validators"
	"github.com/movilpay/vendorpay-backend/internal/payrequests"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
	"github.com/movilpay/vendorpay-backend/pkg/types"
)

// 10 MiB is plenty for a transfer receipt scan.
const maxReceiptBytes = 10 << 20

// PaymentRequestsController exposes the payout request lifecycle.
type PaymentRequestsController struct {
	service payrequests.Service
	logger  *logger.Logger
}

func NewPaymentRequestsController(service payrequests.Service, logg *logger.Logger) *PaymentRequestsController {
	return &PaymentRequestsController{service: service, logger: logg}
}

type approveRequestBody struct {
	BankAccountID types.NullableUUID `json:"bank_account_id"`
}

type rejectRequestBody struct {
	Reason string `json:"reason" validate:"required"`
}

// Create opens a payment request over the vendor's pending commissions.
func (c *PaymentRequestsController) Create(w http.ResponseWriter, r *http.Request) {
	vendorID, err := actorVendorID(r)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	request, err := c.service.Create(r.Context(), vendorID)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccessStatus(w, http.StatusCreated, request)
}

// Approve resolves a pending request in the vendor's favor. Accepts either
// a JSON body or a multipart form carrying an optional receipt file.
func (c *PaymentRequestsController) Approve(w http.ResponseWriter, r *http.Request) {
	requestID, err := validators.PathUUID("request_id", chi.URLParam(r, "requestID"))
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	approverID, _, err := actor(r)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	input := payrequests.ApproveInput{
		RequestID:  requestID,
		ApproverID: approverID,
	}

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
			responses.WriteError(r.Context(), c.logger, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}
		if raw := r.FormValue("bank_account_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), c.logger, w,
					pkgerrors.New(pkgerrors.CodeValidation, "bank_account_id must be a valid uuid"))
				return
			}
			input.BankAccountID = &id
		}
		if file, header, err := r.FormFile("receipt"); err == nil {
			defer file.Close()
			input.Receipt = file
			input.ReceiptType = header.Header.Get("Content-Type")
		}
	} else if r.ContentLength > 0 {
		var body approveRequestBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), c.logger, w, err)
			return
		}
		if body.BankAccountID.Valid && body.BankAccountID.Value != nil {
			input.BankAccountID = body.BankAccountID.Value
		}
	}

	request, err := c.service.Approve(r.Context(), input)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccess(w, request)
}

// Reject declines a pending request and releases its commissions.
func (c *PaymentRequestsController) Reject(w http.ResponseWriter, r *http.Request) {
	requestID, err := validators.PathUUID("request_id", chi.URLParam(r, "requestID"))
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	approverID, _, err := actor(r)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	var body rejectRequestBody
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	request, err := c.service.Reject(r.Context(), payrequests.RejectInput{
		RequestID:  requestID,
		ApproverID: approverID,
		Reason:     body.Reason,
	})
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccess(w, request)
}

// Get returns a single payment request, vendor-scoped for vendor tokens.
func (c *PaymentRequestsController) Get(w http.ResponseWriter, r *http.Request) {
	requestID, err := validators.PathUUID("request_id", chi.URLParam(r, "requestID"))
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	request, err := c.service.FindByID(r.Context(), requestID)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	if vendor := middleware.VendorIDFromContext(r.Context()); vendor != "" && request.VendorID.String() != vendor {
		responses.WriteError(r.Context(), c.logger, w,
			pkgerrors.New(pkgerrors.CodeNotFound, "payment request not found"))
		return
	}
	responses.WriteSuccess(w, request)
}

// List pages through payment requests.
func (c *PaymentRequestsController) List(w http.ResponseWriter, r *http.Request) {
	params := payrequests.ListParams{Cursor: r.URL.Query().Get("cursor")}

	limit, err := validators.ParseQueryInt(r, "limit", 0)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	params.Limit = limit

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := enums.ParsePaymentRequestStatus(raw)
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

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
