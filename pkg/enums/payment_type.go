package enums

import "fmt"

// PaymentType selects the payout rail used by a payment batch.
type PaymentType string

const (
	PaymentTypeTransfer PaymentType = "transfer"
	PaymentTypeWallet   PaymentType = "wallet"
)

var validPaymentTypes = []PaymentType{
	PaymentTypeTransfer,
	PaymentTypeWallet,
}

// String implements fmt.Stringer.
func (t PaymentType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known PaymentType.
func (t PaymentType) IsValid() bool {
	for _, candidate := range validPaymentTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePaymentType converts raw input into a PaymentType.
func ParsePaymentType(value string) (PaymentType, error) {
	for _, candidate := range validPaymentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment type %q", value)
}
