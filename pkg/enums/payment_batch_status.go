package enums

import "fmt"

// PaymentBatchStatus tracks an administrative payout run. Processing means
// the transfer file exists but funds have not been confirmed sent; completed
// is terminal.
type PaymentBatchStatus string

const (
	PaymentBatchStatusPending    PaymentBatchStatus = "pending"
	PaymentBatchStatusProcessing PaymentBatchStatus = "processing"
	PaymentBatchStatusCompleted  PaymentBatchStatus = "completed"
)

var validPaymentBatchStatuses = []PaymentBatchStatus{
	PaymentBatchStatusPending,
	PaymentBatchStatusProcessing,
	PaymentBatchStatusCompleted,
}

// String implements fmt.Stringer.
func (s PaymentBatchStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentBatchStatus.
func (s PaymentBatchStatus) IsValid() bool {
	for _, candidate := range validPaymentBatchStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentBatchStatus converts raw input into a PaymentBatchStatus.
func ParsePaymentBatchStatus(value string) (PaymentBatchStatus, error) {
	for _, candidate := range validPaymentBatchStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment batch status %q", value)
}
