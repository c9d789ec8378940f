package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/movilpay/vendorpay-backend/api/middleware"
	"github.com/movilpay/vendorpay-backend/api/responses"
	"github.com/movilpay/vendorpay-backend/api/validators"
	"github.com/movilpay/vendorpay-backend/internal/notifications"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
)

// NotificationsController exposes the vendor-facing notification feed.
type NotificationsController struct {
	service notifications.Service
	logger  *logger.Logger
}

func NewNotificationsController(service notifications.Service, logg *logger.Logger) *NotificationsController {
	return &NotificationsController{service: service, logger: logg}
}

// List pages through the actor's notifications. Vendor tokens read the
// vendor feed; staff tokens read the staff feed.
func (c *NotificationsController) List(w http.ResponseWriter, r *http.Request) {
	params := notifications.ListParams{
		Cursor:     r.URL.Query().Get("cursor"),
		UnreadOnly: r.URL.Query().Get("unread") == "true",
	}

	limit, err := validators.ParseQueryInt(r, "limit", 0)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	params.Limit = limit

	if vendor := middleware.VendorIDFromContext(r.Context()); vendor != "" {
		id, err := uuid.Parse(vendor)
		if err != nil {
			responses.WriteError(r.Context(), c.logger, w,
				pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid vendor scope"))
			return
		}
		params.Audience = enums.NotificationAudienceVendor
		params.VendorID = id
	} else {
		params.Audience = enums.NotificationAudienceStaff
	}

	result, err := c.service.List(r.Context(), params)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccess(w, result)
}

// MarkRead flags one of the vendor's notifications as read.
func (c *NotificationsController) MarkRead(w http.ResponseWriter, r *http.Request) {
	notificationID, err := validators.PathUUID("notification_id", chi.URLParam(r, "notificationID"))
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	vendorID, err := actorVendorID(r)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	if err := c.service.MarkRead(r.Context(), vendorID, notificationID); err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]string{"status": "read"})
}

// MarkAllRead flags every unread notification for the vendor.
func (c *NotificationsController) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	vendorID, err := actorVendorID(r)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}

	updated, err := c.service.MarkAllRead(r.Context(), vendorID)
	if err != nil {
		responses.WriteError(r.Context(), c.logger, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]int64{"updated": updated})
}
