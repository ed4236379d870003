package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/auth"
	"github.com/sonlife/sonlife-giving/internal/auth/staffconfig"
	"github.com/sonlife/sonlife-giving/internal/core/events"
	"github.com/sonlife/sonlife-giving/internal/donation"
	"github.com/sonlife/sonlife-giving/internal/paymentgateway"
	"github.com/sonlife/sonlife-giving/internal/transport"
	"github.com/sonlife/sonlife-giving/internal/transport/middleware"
	"github.com/sonlife/sonlife-giving/internal/transport/rest"
	"github.com/sonlife/sonlife-giving/pkg/logger"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server serving the donation form API, the Paystack webhook and staff reports`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	Store    *donationStore
	Router   *chi.Mux
	Logger   *slog.Logger
	EventBus *events.EventBus
	Workflow *donation.Workflow
	Handlers rest.Handlers
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(deps.Router, deps.Handlers, deps.Config.Server, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "store", deps.Config.Store.Driver)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			deps.close()
			os.Exit(1)
		}
	}

	deps.close()
	deps.Logger.Info("Server stopped")
}

// close stops background saves before the bus and the store go away.
func (d *Dependencies) close() {
	d.Workflow.Shutdown()
	d.EventBus.Drain()
	if err := d.Store.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func initializeDependencies() (*Dependencies, error) {
	cfg, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	store, err := openDonationStore(cfg, lg)
	if err != nil {
		return nil, err
	}

	bus := events.NewEventBus(lg)
	donation.NewEventHandler(lg).RegisterEventHandlers(bus)

	client := newPaystackClient(cfg.Gateway, lg)
	loader := paymentgateway.NewScriptLoader(cfg.Gateway.GetScriptURL(), paymentgateway.NewHTTPFetcher(cfg.Gateway.Timeout), lg)

	var popup paymentgateway.Popup = paymentgateway.InlinePopup{}
	var verifier donation.TransactionVerifier
	var signatures donation.SignatureVerifier
	if client.HasSecretKey() {
		popup = paymentgateway.NewHostedPopup(client)
		verifier = client
		signatures = client
	} else {
		lg.Warn("PAYSTACK_SECRET_KEY not set; server-side verification and webhooks are disabled")
	}
	adapter := paymentgateway.NewAdapter(cfg.Gateway.PublicKey, loader, popup, lg)

	service := donation.NewService(store.Repo, bus, lg)
	workflow := donation.NewWorkflow(service, adapter, donation.NewReferenceGenerator(), bus, donation.WorkflowConfig{
		SaveTimeout: cfg.Store.Timeout,
	}, lg)
	confirmation := donation.NewConfirmationService(service, workflow, lg)

	base := transport.NewBaseHandler(lg)
	handlers := rest.Handlers{
		Donation: donation.NewHandler(base, service, workflow, confirmation, verifier, cfg.Server.GiveURL),
		Webhook:  donation.NewWebhookHandler(base, service, workflow, signatures),
		Script:   loader,
	}

	if cfg.Security.StaffLoginEnabled() {
		authHandler, err := initAuth(cfg, base, lg)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		handlers.Auth = authHandler
		handlers.RBAC = auth.NewRBACAuthorization(base)
	} else {
		lg.Warn("JWT keys not set; staff endpoints are disabled")
	}

	if cfg.Server.ValidateRequests {
		validator, err := middleware.NewOpenAPIValidator(cfg.Server.OpenAPIPath, lg)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to load openapi document: %w", err)
		}
		handlers.OpenAPI = validator
	}

	checks := map[string]rest.Check{
		"gateway_script": func(ctx context.Context) (map[string]any, error) {
			return map[string]any{"state": loader.State().String(), "url": loader.URL()}, nil
		},
	}
	if store.DB != nil {
		checks["database"] = rest.DatabaseCheck(store.DB)
	}
	handlers.Health = rest.NewHealthHandler(checks)

	return &Dependencies{
		Config:   cfg,
		Store:    store,
		Router:   chi.NewRouter(),
		Logger:   lg,
		EventBus: bus,
		Workflow: workflow,
		Handlers: handlers,
	}, nil
}

func initAuth(cfg *internal.Config, base *transport.BaseHandler, lg *slog.Logger) (*auth.Handler, error) {
	privateKey, err := cfg.Security.GetPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load JWT private key: %w", err)
	}
	publicKey, err := cfg.Security.GetPublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load JWT public key: %w", err)
	}

	tokens := auth.NewJWTTokenGenerator(privateKey, publicKey, cfg.Security.AccessTokenDuration, cfg.Security.RefreshTokenDuration)
	service := auth.NewService(staffconfig.NewStaffRepository(cfg.Staff), tokens, cfg.Security.BCryptCost, lg)
	lg.Info("staff login enabled", "accounts", len(cfg.Staff))

	return auth.NewHandler(base, service), nil
}
