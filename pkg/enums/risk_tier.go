package enums

import "fmt"

// RiskTier is the advisory classification attached to a sale to guide
// manual validation.
type RiskTier string

const (
	RiskTierLow    RiskTier = "low"
	RiskTierMedium RiskTier = "medium"
	RiskTierHigh   RiskTier = "high"
)

var validRiskTiers = []RiskTier{
	RiskTierLow,
	RiskTierMedium,
	RiskTierHigh,
}

// String implements fmt.Stringer.
func (t RiskTier) String() string {
	return string(t)
}

// IsValid reports whether the value is a known RiskTier.
func (t RiskTier) IsValid() bool {
	for _, candidate := range validRiskTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// Escalate returns the tier one step above t. High stays high.
func (t RiskTier) Escalate() RiskTier {
	switch t {
	case RiskTierLow:
		return RiskTierMedium
	case RiskTierMedium:
		return RiskTierHigh
	default:
		return RiskTierHigh
	}
}

// ParseRiskTier converts raw input into a RiskTier.
func ParseRiskTier(value string) (RiskTier, error) {
	for _, candidate := range validRiskTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid risk tier %q", value)
}
