package enums

import "fmt"

// CommissionStatus tracks the payout lifecycle of a single commission.
type CommissionStatus string

const (
	CommissionStatusPending    CommissionStatus = "pending"
	CommissionStatusProcessing CommissionStatus = "processing"
	CommissionStatusPaid       CommissionStatus = "paid"
)

var validCommissionStatuses = []CommissionStatus{
	CommissionStatusPending,
	CommissionStatusProcessing,
	CommissionStatusPaid,
}

// String implements fmt.Stringer.
func (s CommissionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known CommissionStatus.
func (s CommissionStatus) IsValid() bool {
	for _, candidate := range validCommissionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether a commission may move from s to target.
// Legal edges: pending->processing, processing->pending (request rejected),
// processing->paid. Paid is terminal.
func (s CommissionStatus) CanTransitionTo(target CommissionStatus) bool {
	switch s {
	case CommissionStatusPending:
		return target == CommissionStatusProcessing
	case CommissionStatusProcessing:
		return target == CommissionStatusPending || target == CommissionStatusPaid
	default:
		return false
	}
}

// ParseCommissionStatus converts raw input into a CommissionStatus.
func ParseCommissionStatus(value string) (CommissionStatus, error) {
	for _, candidate := range validCommissionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission status %q", value)
}
