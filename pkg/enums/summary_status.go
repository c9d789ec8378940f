package enums

import "fmt"

// SummaryStatus tracks whether a vendor's period aggregate has been swept
// into a payment batch.
type SummaryStatus string

const (
	SummaryStatusPending    SummaryStatus = "pending"
	SummaryStatusProcessing SummaryStatus = "processing"
	SummaryStatusPaid       SummaryStatus = "paid"
)

var validSummaryStatuses = []SummaryStatus{
	SummaryStatusPending,
	SummaryStatusProcessing,
	SummaryStatusPaid,
}

// String implements fmt.Stringer.
func (s SummaryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SummaryStatus.
func (s SummaryStatus) IsValid() bool {
	for _, candidate := range validSummaryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSummaryStatus converts raw input into a SummaryStatus.
func ParseSummaryStatus(value string) (SummaryStatus, error) {
	for _, candidate := range validSummaryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid summary status %q", value)
}
