package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

const (
	PermissionViewDonations   = "view_donations"
	PermissionManageDonations = "manage_donations"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Staff is a church staff member who can sign in to the giving dashboard.
type Staff struct {
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
}

// HasPermission reports whether the staff member holds permission.
// manage_donations implies view_donations.
func (s *Staff) HasPermission(permission string) bool {
	for _, p := range s.Permissions {
		if p == permission {
			return true
		}
		if permission == PermissionViewDonations && p == PermissionManageDonations {
			return true
		}
	}
	return false
}

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Claims represents JWT token claims
type Claims struct {
	Email       string   `json:"email"`
	Name        string   `json:"name,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	TokenType   string   `json:"typ"`
	jwt.RegisteredClaims
}

func (c *Claims) Staff() *Staff {
	return &Staff{Email: c.Email, Name: c.Name, Permissions: c.Permissions}
}

type ctxKey string

const ContextStaffKey ctxKey = "staff"

func StaffFromContext(ctx context.Context) (*Staff, bool) {
	s, ok := ctx.Value(ContextStaffKey).(*Staff)
	return s, ok
}

func ContextWithStaff(ctx context.Context, s *Staff) context.Context {
	return context.WithValue(ctx, ContextStaffKey, s)
}
