package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/auth"
	"github.com/sonlife/sonlife-giving/internal/donation"
	"github.com/sonlife/sonlife-giving/internal/transport"
	"github.com/sonlife/sonlife-giving/internal/transport/middleware"
	"github.com/sonlife/sonlife-giving/internal/transport/swagger"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// ScriptSource is satisfied by *paymentgateway.ScriptLoader.
type ScriptSource interface {
	Load(ctx context.Context) error
	Script() []byte
}

// Handlers groups everything the router mounts. Auth and RBAC are nil when
// staff login is disabled; OpenAPI is nil when request validation is off.
type Handlers struct {
	Health   *HealthHandler
	Donation *donation.Handler
	Webhook  *donation.WebhookHandler
	Auth     *auth.Handler
	RBAC     *auth.RBACAuthorization
	Script   ScriptSource
	OpenAPI  *middleware.OpenAPIValidator
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, cfg internal.ServerConfig, logger *slog.Logger) {
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	specPath := cfg.OpenAPIPath
	if specPath == "" {
		specPath = "./api/openapi.yml"
	}
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, specPath)
	})
	router.Handle("/swagger/*", swagger.Handler())

	if h.Donation != nil {
		// Paystack redirects here after the hosted checkout.
		router.Get("/donation/success", h.Donation.SuccessPage)
	}
	if h.Script != nil {
		router.Get("/assets/gateway.js", scriptHandler(h.Script, transport.NewBaseHandler(logger)))
	}

	router.Route("/api/v1", func(r chi.Router) {
		if h.OpenAPI != nil {
			r.Use(h.OpenAPI.Middleware)
		}

		if h.Health != nil {
			r.Get("/health", h.Health.healthCheckHandler)
			r.Get("/ping", h.Health.pingHandler)
		}

		if h.Webhook != nil {
			r.Post("/payment/webhook", h.Webhook.HandlePaystackWebhook)
		}

		if h.Auth != nil {
			r.Route("/auth", func(ar chi.Router) {
				ar.Post("/login", h.Auth.Login)
				ar.Post("/refresh", h.Auth.RefreshToken)
				ar.With(h.Auth.AuthMiddleware).Get("/me", h.Auth.Me)
			})
		}

		if h.Donation == nil {
			return
		}
		r.Route("/donations", func(dr chi.Router) {
			dr.Get("/form", h.Donation.GetForm)
			dr.Post("/", h.Donation.Submit)
			dr.Get("/confirmation", h.Donation.GetConfirmation)

			dr.Route("/submissions/{reference}", func(sr chi.Router) {
				sr.Get("/", h.Donation.GetSubmission)
				sr.Post("/cancel", h.Donation.CancelSubmission)
				sr.Post("/complete", h.Donation.CompleteSubmission)
			})

			// Staff only
			if h.Auth == nil || h.RBAC == nil {
				return
			}
			dr.Group(func(pr chi.Router) {
				pr.Use(h.Auth.AuthMiddleware)

				pr.With(h.RBAC.Middleware(auth.PermissionViewDonations)).Get("/", h.Donation.ListDonations)
				pr.With(h.RBAC.Middleware(auth.PermissionViewDonations)).Get("/stats", h.Donation.GetStats)
				pr.With(h.RBAC.Middleware(auth.PermissionManageDonations)).Patch("/{reference}/status", h.Donation.UpdateStatus)
			})
		})
	})
}

// scriptHandler serves the gateway's checkout script from our origin once it
// has been fetched.
func scriptHandler(src ScriptSource, base *transport.BaseHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := src.Load(r.Context()); err != nil {
			base.HandleError(w, internal.ErrGatewayScriptLoad.WithCause(err))
			return
		}
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(src.Script())
	}
}
