package enums

import "fmt"

// PaymentRequestStatus tracks a vendor cash-out request. Approved and
// rejected are both terminal; a vendor may open a new request only while no
// pending one exists.
type PaymentRequestStatus string

const (
	PaymentRequestStatusPending  PaymentRequestStatus = "pending"
	PaymentRequestStatusApproved PaymentRequestStatus = "approved"
	PaymentRequestStatusRejected PaymentRequestStatus = "rejected"
)

var validPaymentRequestStatuses = []PaymentRequestStatus{
	PaymentRequestStatusPending,
	PaymentRequestStatusApproved,
	PaymentRequestStatusRejected,
}

// String implements fmt.Stringer.
func (s PaymentRequestStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentRequestStatus.
func (s PaymentRequestStatus) IsValid() bool {
	for _, candidate := range validPaymentRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s PaymentRequestStatus) IsTerminal() bool {
	return s == PaymentRequestStatusApproved || s == PaymentRequestStatusRejected
}

// ParsePaymentRequestStatus converts raw input into a PaymentRequestStatus.
func ParsePaymentRequestStatus(value string) (PaymentRequestStatus, error) {
	for _, candidate := range validPaymentRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment request status %q", value)
}
