package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/movilpay/vendorpay-backend/api/middleware"
	"github.com/movilpay/vendorpay-backend/api/responses"
	"github.com/movilpay/vendorpay-backend/api/validators"
	"github.com/movilpay/vendorpay-backend/internal/sales"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
)

// SalesController exposes sale registration, validation and listing.
type SalesController struct {
	service sales.Service
	logger  *logger.Logger
}

func NewSalesController(service sales.Service, logg *logger.Logger) *SalesController {
	return &SalesController{service: service, logger: logg}
}

type registerSaleRequest struct {
	ProductID string          `json:"product_id" validate:"required,uuid4"`
	IMEI      string          `json:"imei" validate:"required"`
	Price     decimal.Decimal `json:"price" validate:"required"`
	Channel   string          `json:"channel" validate:"required"`
	SaleDate  time.Time       `json:"sale_date" validate:"required"`
	// EvidenceRef points at purchase evidence the client already placed in
	// object storage. Registration records the reference; the bytes never
	// pass through this endpoint.
	EvidenceRef string `json:"evidence_ref" validate:"required"`
}

type validateSaleRequest struct {
	Action string  `json:"action" validate:"required,oneof=approve reject"`
	Reason *string `json:"reason"`
}

// Register creates a pending sale for the authenticated vendor.
func (c *SalesController) Register(w http.ResponseWriter, r *http.Request) {
	vendorID, err := actorVendorID(r)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	var body registerSaleRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	productID, err := validators.PathUUID("product_id", body.ProductID)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	channel, err := enums.ParseSaleChannel(body.Channel)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w,
			pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
		return
	}

	sale, err := c.service.Register(r.Context(), sales.RegisterInput{
		VendorID:    vendorID,
		ProductID:   productID,
		IMEI:        body.IMEI,
		Price:       body.Price,
		Channel:     channel,
		SaleDate:    body.SaleDate,
		EvidenceRef: body.EvidenceRef,
	})
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccessStatus(w, http.StatusCreated, sale)
}

// Validate records a staff decision over a pending sale.
func (c *SalesController) Validate(w http.ResponseWriter, r *http.Request) {
	saleID, err := validators.PathUUID("sale_id", chi.URLParam(r, "saleID"))
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	actorID, role, err := actor(r)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	var body validateSaleRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	sale, err := c.service.Validate(r.Context(), sales.ValidateInput{
		SaleID:    saleID,
		Action:    sales.ValidateAction(body.Action),
		Reason:    body.Reason,
		ActorID:   actorID,
		ActorRole: role,
	})
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccess(w, sale)
}

// Get returns a single sale. Vendors may only read their own sales.
func (c *SalesController) Get(w http.ResponseWriter, r *http.Request) {
	saleID, err := validators.PathUUID("sale_id", chi.URLParam(r, "saleID"))
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	sale, err := c.service.FindByID(r.Context(), saleID)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	if vendor := middleware.VendorIDFromContext(r.Context()); vendor != "" && sale.VendorID.String() != vendor {
		responses.WriteError(r.Context(), c.logger, w,
			pkgerrors.New(pkgerrors.CodeNotFound, "sale not found"))
		return
	}
	responses.WriteSuccess(w, sale)
}

// List pages through sales. Vendor tokens are scoped to their own sales;
// staff may filter by vendor_id.
func (c *SalesController) List(w http.ResponseWriter, r *http.Request) {
	params := sales.ListParams{Cursor: r.URL.Query().Get("cursor")}

	limit, err := validators.ParseQueryInt(r, "limit", 0)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	params.Limit = limit

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := enums.ParseSaleStatus(raw)
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

func actor(r *http.Request) (uuid.UUID, enums.MemberRole, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing authenticated actor")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid actor id")
	}

	role, err := enums.ParseMemberRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, fmt.Sprintf("invalid actor role: %v", err))
	}
	return id, role, nil
}

func actorVendorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.VendorIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor scope is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid vendor scope")
	}
	return id, nil
}
