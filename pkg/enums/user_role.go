package enums

import "fmt"

// UserRole is the marketplace-wide role of a user.
type UserRole string

const (
	UserRoleVisitor UserRole = "visitor"
	UserRoleBuyer   UserRole = "buyer"
	UserRoleSeller  UserRole = "seller"
	UserRoleAdmin   UserRole = "admin"
)

var validUserRoles = []UserRole{
	UserRoleVisitor,
	UserRoleBuyer,
	UserRoleSeller,
	UserRoleAdmin,
}

// String implements fmt.Stringer.
func (v UserRole) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
