package auth

import (
	"context"

	"github.com/umoja/academy/core"
)

// Principal is the authenticated identity carried by every request.
type Principal struct {
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	RoleName  string `json:"role_name"`
	Role      Role   `json:"role"`
	SessionID string `json:"-"`
}

// DisplayName falls back to the username when no profile name is linked.
func (p Principal) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Username
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Require returns core.ErrForbidden unless p holds one of roles.
func (p Principal) Require(roles ...Role) error {
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return core.ErrForbidden
}

type principalKey struct{}

func NewContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
