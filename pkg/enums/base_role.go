package enums

import "fmt"

// BaseRole is the coarse role tag carried by every user. It is a hint, not a
// grant: an elevated user with no access role binding holds zero permissions.
type BaseRole string

const (
	BaseRoleElevated BaseRole = "elevated"
	BaseRoleStandard BaseRole = "standard"
)

var validBaseRoles = []BaseRole{
	BaseRoleElevated,
	BaseRoleStandard,
}

// String implements fmt.Stringer.
func (b BaseRole) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BaseRole.
func (b BaseRole) IsValid() bool {
	for _, candidate := range validBaseRoles {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBaseRole converts raw input into a BaseRole.
func ParseBaseRole(value string) (BaseRole, error) {
	for _, candidate := range validBaseRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid base role %q", value)
}
