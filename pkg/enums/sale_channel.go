package enums

import "fmt"

// SaleChannel identifies where a vendor closed the sale.
type SaleChannel string

const (
	SaleChannelStore    SaleChannel = "store"
	SaleChannelStreet   SaleChannel = "street"
	SaleChannelOnline   SaleChannel = "online"
	SaleChannelReferral SaleChannel = "referral"
)

var validSaleChannels = []SaleChannel{
	SaleChannelStore,
	SaleChannelStreet,
	SaleChannelOnline,
	SaleChannelReferral,
}

// String implements fmt.Stringer.
func (c SaleChannel) String() string {
	return string(c)
}

// IsValid reports whether the value is a known SaleChannel.
func (c SaleChannel) IsValid() bool {
	for _, candidate := range validSaleChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseSaleChannel converts raw input into a SaleChannel.
func ParseSaleChannel(value string) (SaleChannel, error) {
	for _, candidate := range validSaleChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale channel %q", value)
}
