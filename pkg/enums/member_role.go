package enums

import "fmt"

// MemberRole identifies the actor class behind an authenticated request.
type MemberRole string

const (
	MemberRoleVendor    MemberRole = "vendor"
	MemberRoleValidator MemberRole = "validator"
	MemberRoleAdmin     MemberRole = "admin"
)

var validMemberRoles = []MemberRole{
	MemberRoleVendor,
	MemberRoleValidator,
	MemberRoleAdmin,
}

// String implements fmt.Stringer.
func (r MemberRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known MemberRole.
func (r MemberRole) IsValid() bool {
	for _, candidate := range validMemberRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanValidateSales reports whether the role may approve or reject sales.
func (r MemberRole) CanValidateSales() bool {
	return r == MemberRoleValidator || r == MemberRoleAdmin
}

// ParseMemberRole converts raw input into a MemberRole.
func ParseMemberRole(value string) (MemberRole, error) {
	for _, candidate := range validMemberRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member role %q", value)
}
