package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/core/events"
	"github.com/sonlife/sonlife-giving/internal/donation"
	"github.com/sonlife/sonlife-giving/internal/reconcile"
	"github.com/sonlife/sonlife-giving/pkg/logger"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start long running workers that keep donation records in step with Paystack.`,
}

var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Periodically reconcile recent donations with Paystack",
	Long: `Every interval, verifies donations that are not completed and were created within the lookback window,
and recreates records for payments that never reached the store.`,
	Run: func(cmd *cobra.Command, args []string) {
		startReconcileWorker()
	},
}

var (
	maxWorkers      int
	workerInterval  time.Duration
	workerLookback  time.Duration
	reconcileTimeout time.Duration
)

// reconcileEnv is everything a reconcile run needs; close releases it.
type reconcileEnv struct {
	logger     *slog.Logger
	store      *donationStore
	bus        *events.EventBus
	reconciler *reconcile.Reconciler
}

func (e *reconcileEnv) close() {
	e.bus.Drain()
	if err := e.store.Close(); err != nil {
		e.logger.Error("database close error", "error", err)
	}
}

func newReconcileEnv(cfg *internal.Config) (*reconcileEnv, error) {
	lg := logger.LoggerWrapper()

	client := newPaystackClient(cfg.Gateway, lg)
	if !client.HasSecretKey() {
		return nil, internal.ErrGatewayNotConfigured.WithMessage("PAYSTACK_SECRET_KEY is required to verify transactions")
	}

	store, err := openDonationStore(cfg, lg)
	if err != nil {
		return nil, err
	}

	bus := events.NewEventBus(lg)
	donation.NewEventHandler(lg).RegisterEventHandlers(bus)
	service := donation.NewService(store.Repo, bus, lg)

	return &reconcileEnv{
		logger: lg,
		store:  store,
		bus:    bus,
		reconciler: reconcile.NewReconciler(client, service, reconcile.Config{
			MaxWorkers: maxWorkers,
			Timeout:    reconcileTimeout,
		}, lg),
	}, nil
}

func startReconcileWorker() {
	cfg, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	env, err := newReconcileEnv(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start reconcile worker: %v\n", err)
		os.Exit(1)
	}
	defer env.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env.logger.Info("reconcile worker started",
		"interval", workerInterval,
		"lookback", workerLookback,
		"max_workers", maxWorkers)

	ticker := time.NewTicker(workerInterval)
	defer ticker.Stop()

	for {
		runReconcilePass(ctx, env)

		select {
		case <-ctx.Done():
			env.logger.Info("reconcile worker shutting down")
			return
		case <-ticker.C:
		}
	}
}

func runReconcilePass(ctx context.Context, env *reconcileEnv) {
	refs, err := env.reconciler.PendingSince(ctx, time.Now().Add(-workerLookback))
	if err != nil {
		env.logger.Error("failed to list donations to reconcile", "error", err)
		return
	}
	if len(refs) == 0 {
		env.logger.Debug("nothing to reconcile")
		return
	}

	summary := map[reconcile.Action]int{}
	for _, res := range env.reconciler.Run(ctx, refs) {
		summary[res.Action]++
	}
	env.logger.Info("reconcile pass finished",
		"checked", len(refs),
		"updated", summary[reconcile.ActionUpdated],
		"created", summary[reconcile.ActionCreated],
		"skipped", summary[reconcile.ActionSkipped],
		"errors", summary[reconcile.ActionFailed])
}

func init() {
	reconcileWorkerCmd.Flags().DurationVar(&workerInterval, "interval", 10*time.Minute, "Time between reconcile passes")
	reconcileWorkerCmd.Flags().DurationVar(&workerLookback, "lookback", 48*time.Hour, "Only reconcile donations created within this window")

	workerCmd.PersistentFlags().IntVar(&maxWorkers, "max-workers", 0, "Concurrent Paystack verifications (0 uses the default)")
	workerCmd.PersistentFlags().DurationVar(&reconcileTimeout, "timeout", 0, "Per-reference verification timeout (0 uses the default)")

	workerCmd.AddCommand(reconcileWorkerCmd)
	rootCmd.AddCommand(workerCmd)
}
