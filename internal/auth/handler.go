package auth

import (
	"net/http"

	errors "github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/transport"
	"github.com/sonlife/sonlife-giving/pkg/logger"
)

type ServiceAPI interface {
	Authenticate(dto LoginDTO) (AuthTokens, error)
	RefreshTokens(refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI) *Handler {
	if base == nil {
		base = transport.NewBaseHandler(nil)
	}
	return &Handler{
		BaseHandler: base,
		Service:     svc,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleError(w, err)
		return
	}

	tokens, err := h.Service.Authenticate(dto)
	if err != nil {
		h.HandleServiceError(w, err, "login")
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleError(w, err)
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleError(w, err)
		return
	}

	tokens, err := h.Service.RefreshTokens(dto.RefreshToken)
	if err != nil {
		h.HandleServiceError(w, err, "refresh token")
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

// Me returns the signed-in staff member.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	staff, ok := StaffFromContext(r.Context())
	if !ok {
		h.HandleError(w, errors.ErrInvalidToken)
		return
	}
	h.WriteJSON(w, http.StatusOK, staff)
}

// AuthMiddleware requires a valid access token and puts the staff member in the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.HandleError(w, errors.NewUnauthorizedError("Missing authorization token", errors.ErrCodeInvalidToken))
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.HandleError(w, err)
			return
		}

		staff := claims.Staff()
		ctx := ContextWithStaff(r.Context(), staff)
		ctx = errors.ContextWithStaffEmail(ctx, staff.Email)
		ctx = logger.With(ctx, "staff", staff.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
