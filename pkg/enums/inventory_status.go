package enums

import "fmt"

// InventoryStatus records the outcome of the external registry lookup for a
// sale's IMEI. Unverified means the registry could not be reached, which is
// distinct from a definitive not-found answer.
type InventoryStatus string

const (
	InventoryStatusVerified   InventoryStatus = "verified"
	InventoryStatusNotFound   InventoryStatus = "not_found"
	InventoryStatusUnverified InventoryStatus = "unverified"
)

var validInventoryStatuses = []InventoryStatus{
	InventoryStatusVerified,
	InventoryStatusNotFound,
	InventoryStatusUnverified,
}

// String implements fmt.Stringer.
func (s InventoryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known InventoryStatus.
func (s InventoryStatus) IsValid() bool {
	for _, candidate := range validInventoryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseInventoryStatus converts raw input into an InventoryStatus.
func ParseInventoryStatus(value string) (InventoryStatus, error) {
	for _, candidate := range validInventoryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory status %q", value)
}
