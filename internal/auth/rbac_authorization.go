package auth

import (
	"net/http"

	errors "github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/transport"
)

type RBACAuthorization struct {
	*transport.BaseHandler
}

func NewRBACAuthorization(base *transport.BaseHandler) *RBACAuthorization {
	if base == nil {
		base = transport.NewBaseHandler(nil)
	}
	return &RBACAuthorization{BaseHandler: base}
}

func (ra *RBACAuthorization) Check(next http.HandlerFunc, permission string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staff, ok := StaffFromContext(r.Context())
		if !ok || staff == nil {
			ra.HandleError(w, errors.NewUnauthorizedError("Authentication required", errors.ErrCodeInvalidToken))
			return
		}

		if !staff.HasPermission(permission) {
			ra.Logger.WarnContext(r.Context(), "access denied: insufficient permissions",
				"staff", staff.Email,
				"required_permission", permission,
				"permissions", staff.Permissions)
			ra.HandleError(w, errors.ErrInsufficientAccess)
			return
		}

		next.ServeHTTP(w, r)
	}
}

func (ra *RBACAuthorization) Middleware(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, permission)
	}
}
