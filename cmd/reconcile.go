package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sonlife/sonlife-giving/internal/reconcile"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Verify donations against Paystack once",
	Long: `Verifies the given references (or every non-completed donation created within --since) with Paystack,
updates their status and recreates records for successful payments the store never saw.
Results are printed as JSON lines.`,
	RunE: runReconcile,
}

var (
	reconcileRefs  []string
	reconcileSince time.Duration
)

func runReconcile(cmd *cobra.Command, _ []string) error {
	if len(reconcileRefs) == 0 && reconcileSince <= 0 {
		return errors.New("either --reference or --since is required")
	}

	cfg, err := loadConfig(".")
	if err != nil {
		return err
	}
	env, err := newReconcileEnv(cfg)
	if err != nil {
		return err
	}
	defer env.close()

	ctx := context.Background()
	refs := reconcileRefs
	if len(refs) == 0 {
		refs, err = env.reconciler.PendingSince(ctx, time.Now().Add(-reconcileSince))
		if err != nil {
			return fmt.Errorf("list donations: %w", err)
		}
	}

	failed := 0
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, res := range env.reconciler.Run(ctx, refs) {
		line := struct {
			reconcile.Result
			Error string `json:"error,omitempty"`
		}{Result: res}
		if res.Err != nil {
			line.Error = res.Err.Error()
			failed++
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d references failed\n", failed, len(refs))
		return fmt.Errorf("reconcile finished with %d errors", failed)
	}
	return nil
}

func init() {
	reconcileCmd.Flags().StringSliceVar(&reconcileRefs, "reference", nil, "Donation reference to verify (repeatable)")
	reconcileCmd.Flags().DurationVar(&reconcileSince, "since", 0, "Verify non-completed donations created within this window")
	reconcileCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Concurrent Paystack verifications (0 uses the default)")
	reconcileCmd.Flags().DurationVar(&reconcileTimeout, "timeout", 0, "Per-reference verification timeout (0 uses the default)")

	rootCmd.AddCommand(reconcileCmd)
}
