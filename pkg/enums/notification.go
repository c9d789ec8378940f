package enums

import "fmt"

// NotificationKind labels settlement lifecycle events surfaced to vendors
// and staff.
type NotificationKind string

const (
	NotificationKindSaleSubmitted     NotificationKind = "sale_submitted"
	NotificationKindSaleApproved      NotificationKind = "sale_approved"
	NotificationKindSaleRejected      NotificationKind = "sale_rejected"
	NotificationKindPaymentProcessing NotificationKind = "payment_processing"
	NotificationKindPaymentApproved   NotificationKind = "payment_approved"
	NotificationKindPaymentRejected   NotificationKind = "payment_rejected"
	NotificationKindBatchCompleted    NotificationKind = "batch_completed"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindSaleSubmitted,
	NotificationKindSaleApproved,
	NotificationKindSaleRejected,
	NotificationKindPaymentProcessing,
	NotificationKindPaymentApproved,
	NotificationKindPaymentRejected,
	NotificationKindBatchCompleted,
}

// String implements fmt.Stringer.
func (k NotificationKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known NotificationKind.
func (k NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw input into a NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}

// NotificationAudience scopes who a notification is addressed to.
type NotificationAudience string

const (
	NotificationAudienceVendor NotificationAudience = "vendor"
	NotificationAudienceStaff  NotificationAudience = "staff"
)

// String implements fmt.Stringer.
func (a NotificationAudience) String() string {
	return string(a)
}

// IsValid reports whether the value is a known NotificationAudience.
func (a NotificationAudience) IsValid() bool {
	return a == NotificationAudienceVendor || a == NotificationAudienceStaff
}
