package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	apperrors "github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/auth"
	"github.com/sonlife/sonlife-giving/internal/transport"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
)

var _ = Describe("Auth HTTP handlers", func() {
	var (
		router  *chi.Mux
		service *auth.Service
		seen    string
	)

	BeforeEach(func() {
		tokens := auth.NewJWTTokenGenerator(signingKey, &signingKey.PublicKey, time.Minute, time.Hour)
		service = auth.NewService(newStaffRepo(), tokens, bcrypt.MinCost, quietLogger)
		base := transport.NewBaseHandler(quietLogger)
		handler := auth.NewHandler(base, service)
		rbac := auth.NewRBACAuthorization(base)
		seen = ""

		router = chi.NewRouter()
		router.Post("/auth/login", handler.Login)
		router.Post("/auth/refresh", handler.RefreshToken)
		router.Group(func(r chi.Router) {
			r.Use(handler.AuthMiddleware)
			r.Get("/auth/me", handler.Me)
			r.With(rbac.Middleware(auth.PermissionManageDonations)).Patch("/manage", func(w http.ResponseWriter, r *http.Request) {
				seen = apperrors.StaffEmailFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})
		})
	})

	do := func(method, path, token string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	login := func(email string) auth.AuthTokens {
		rec := do(http.MethodPost, "/auth/login", "", auth.LoginDTO{Email: email, Password: "correct_password"})
		Expect(rec.Code).To(Equal(http.StatusOK))
		var pair auth.AuthTokens
		Expect(json.Unmarshal(rec.Body.Bytes(), &pair)).To(Succeed())
		return pair
	}

	errorCode := func(rec *httptest.ResponseRecorder) string {
		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body.Error.Code
	}

	It("logs in and returns the staff member", func() {
		pair := login("treasurer@sonlife.org")

		rec := do(http.MethodGet, "/auth/me", pair.AccessToken, nil)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"email":"treasurer@sonlife.org"`))
	})

	It("answers 401 for bad credentials", func() {
		rec := do(http.MethodPost, "/auth/login", "", auth.LoginDTO{Email: "usher@sonlife.org", Password: "wrong"})
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
		Expect(errorCode(rec)).To(Equal(string(apperrors.ErrCodeInvalidCredentials)))
	})

	It("answers 400 for unknown body fields", func() {
		rec := do(http.MethodPost, "/auth/login", "", map[string]string{"username": "x"})
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("refreshes tokens", func() {
		pair := login("usher@sonlife.org")
		rec := do(http.MethodPost, "/auth/refresh", "", auth.RefreshTokenDTO{RefreshToken: pair.RefreshToken})
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("requires a token on protected routes", func() {
		rec := do(http.MethodGet, "/auth/me", "", nil)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("forbids staff without the permission", func() {
		pair := login("usher@sonlife.org")
		rec := do(http.MethodPatch, "/manage", pair.AccessToken, nil)
		Expect(rec.Code).To(Equal(http.StatusForbidden))
		Expect(errorCode(rec)).To(Equal(string(apperrors.ErrCodeInsufficientAccess)))
		Expect(seen).To(BeEmpty())
	})

	It("passes the staff email down to handlers", func() {
		pair := login("treasurer@sonlife.org")
		rec := do(http.MethodPatch, "/manage", pair.AccessToken, nil)
		Expect(rec.Code).To(Equal(http.StatusNoContent))
		Expect(seen).To(Equal("treasurer@sonlife.org"))
	})
})
