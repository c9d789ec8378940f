package enums

import "fmt"

// SaleStatus tracks the lifecycle of a reported device sale.
type SaleStatus string

const (
	SaleStatusPending  SaleStatus = "pending"
	SaleStatusApproved SaleStatus = "approved"
	SaleStatusRejected SaleStatus = "rejected"
)

var validSaleStatuses = []SaleStatus{
	SaleStatusPending,
	SaleStatusApproved,
	SaleStatusRejected,
}

// String implements fmt.Stringer.
func (s SaleStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SaleStatus.
func (s SaleStatus) IsValid() bool {
	for _, candidate := range validSaleStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s SaleStatus) IsTerminal() bool {
	return s == SaleStatusApproved || s == SaleStatusRejected
}

// CanTransitionTo reports whether the sale may move from s to target.
// The only legal edges are pending->approved and pending->rejected.
func (s SaleStatus) CanTransitionTo(target SaleStatus) bool {
	return s == SaleStatusPending && target.IsTerminal()
}

// ParseSaleStatus converts raw input into a SaleStatus.
func ParseSaleStatus(value string) (SaleStatus, error) {
	for _, candidate := range validSaleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale status %q", value)
}
