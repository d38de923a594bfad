package auth

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/umoja/academy/core/user"
)

// Role is the dashboard profile a user is routed to. Every switch over Role
// must handle the four values below and fail with ErrUnknownRole otherwise.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleTeacher
	RoleStudent
	RoleParent
)

var ErrUnknownRole = errors.New("unknown role")

var roleStrings = map[Role]string{
	RoleAdmin:   "admin",
	RoleTeacher: "teacher",
	RoleStudent: "student",
	RoleParent:  "parent",
}

func (r Role) String() string {
	if s, ok := roleStrings[r]; ok {
		return s
	}
	return "unknown"
}

func (r Role) Valid() bool {
	_, ok := roleStrings[r]
	return ok
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrUnknownRole
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// ParseRole parses the String form of a Role.
func ParseRole(s string) (Role, error) {
	for role, str := range roleStrings {
		if str == s {
			return role, nil
		}
	}
	return RoleUnknown, errors.Wrapf(ErrUnknownRole, "%q", s)
}

// RoleFromRoleName maps a user_roles.role_name to a dashboard Role.
// Administrative staff all land on the admin dashboard.
func RoleFromRoleName(roleName string) (Role, error) {
	switch roleName {
	case user.RoleNameSuperAdmin, user.RoleNamePrincipal, user.RoleNameAccountant, user.RoleNameLibrarian:
		return RoleAdmin, nil
	case user.RoleNameTeacher:
		return RoleTeacher, nil
	case user.RoleNameStudent:
		return RoleStudent, nil
	case user.RoleNameParent:
		return RoleParent, nil
	default:
		return RoleUnknown, errors.Wrapf(ErrUnknownRole, "role name %q", roleName)
	}
}

// Greeting returns the dashboard greeting for r.
func (r Role) Greeting(name string) (string, error) {
	switch r {
	case RoleAdmin:
		return fmt.Sprintf("Welcome back, %s. Here is today's school overview.", name), nil
	case RoleTeacher:
		return fmt.Sprintf("Good day, %s. Here are your classes for today.", name), nil
	case RoleStudent:
		return fmt.Sprintf("Hello %s, keep up the good work!", name), nil
	case RoleParent:
		return fmt.Sprintf("Welcome, %s. Here is how your children are doing.", name), nil
	default:
		return "", ErrUnknownRole
	}
}
