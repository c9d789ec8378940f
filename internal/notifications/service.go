package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/movilpay/vendorpay-backend/pkg/db/models"
	"github.com/movilpay/vendorpay-backend/pkg/enums"
	pkgerrors "github.com/movilpay/vendorpay-backend/pkg/errors"
	"github.com/movilpay/vendorpay-backend/pkg/logger"
	"github.com/movilpay/vendorpay-backend/pkg/pagination"
)

// eventPublisher pushes a notification event to the external sink.
type eventPublisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) error
}

// Service defines notification operations. Notify is best effort and must
// never surface an error to the business transition that triggered it.
type Service interface {
	Notify(ctx context.Context, input NotifyInput)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, vendorID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, vendorID uuid.UUID) (int64, error)
}

type service struct {
	repo      Repository
	publisher eventPublisher
	logger    *logger.Logger
}

// NotifyInput describes one settlement event to record and publish.
type NotifyInput struct {
	Audience enums.NotificationAudience
	VendorID *uuid.UUID
	Kind     enums.NotificationKind
	Body     any
}

// ListParams configures pagination for notifications.
type ListParams struct {
	Audience   enums.NotificationAudience
	VendorID   uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notification dependencies. The publisher may be nil, in
// which case events are only persisted.
func NewService(repo Repository, publisher eventPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications logger required")
	}
	return &service{repo: repo, publisher: publisher, logger: logg}, nil
}

func (s *service) Notify(ctx context.Context, input NotifyInput) {
	if !input.Audience.IsValid() || !input.Kind.IsValid() {
		s.logger.Warn(ctx, fmt.Sprintf("notify: dropping event with invalid audience %q or kind %q", input.Audience, input.Kind))
		return
	}
	if input.Audience == enums.NotificationAudienceVendor && input.VendorID == nil {
		s.logger.Warn(ctx, "notify: dropping vendor event without vendor id")
		return
	}

	body, err := json.Marshal(input.Body)
	if err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("notify: marshal body: %v", err))
		body = nil
	}

	row := &models.Notification{
		Audience: input.Audience,
		VendorID: input.VendorID,
		Kind:     input.Kind,
		Body:     body,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		s.logger.Error(ctx, "notify: persist notification", err)
	}

	if s.publisher == nil {
		return
	}
	attrs := map[string]string{"kind": input.Kind.String(), "audience": input.Audience.String()}
	if input.VendorID != nil {
		attrs["vendor_id"] = input.VendorID.String()
	}
	if err := s.publisher.Publish(ctx, body, attrs); err != nil {
		s.logger.Error(ctx, "notify: publish event", err)
	}
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if !params.Audience.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "audience required")
	}
	if params.Audience == enums.NotificationAudienceVendor && params.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}

	query := listNotificationsParams{
		Audience:   params.Audience,
		VendorID:   params.VendorID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, vendorID, notificationID uuid.UUID) error {
	if vendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, vendorID, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, vendorID uuid.UUID) (int64, error) {
	if vendorID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}

	count, err := s.repo.MarkAllRead(ctx, vendorID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}
