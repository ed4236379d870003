package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sonlife/sonlife-giving/internal/donation"
	"github.com/sonlife/sonlife-giving/internal/report"
	"github.com/sonlife/sonlife-giving/pkg/logger"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a donor giving statement as an xlsx workbook",
	RunE:  runExport,
}

var (
	exportEmail      string
	exportOut        string
	exportChurchWide bool
)

func runExport(cmd *cobra.Command, _ []string) error {
	email := strings.ToLower(strings.TrimSpace(exportEmail))
	if email == "" {
		return errors.New("--email is required")
	}

	cfg, err := loadConfig(".")
	if err != nil {
		return err
	}
	lg := logger.LoggerWrapper()

	store, err := openDonationStore(cfg, lg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	service := donation.NewService(store.Repo, nil, lg)

	donations, err := service.GetDonationsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("load donations: %w", err)
	}

	st := report.Statement{Email: email, Donations: donations, GeneratedAt: time.Now()}
	if exportChurchWide {
		if st.Stats, err = service.GetDonationStats(ctx); err != nil {
			return fmt.Errorf("load totals: %w", err)
		}
	}

	out := exportOut
	if out == "" {
		out = fmt.Sprintf("statement-%s.xlsx", strings.NewReplacer("@", "_at_", ".", "_").Replace(email))
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := report.WriteStatement(f, st); err != nil {
		_ = f.Close()
		return fmt.Errorf("write statement: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	lg.Info("statement written", "email", email, "donations", len(donations), "file", out)
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportEmail, "email", "", "Donor email address")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default statement-<email>.xlsx)")
	exportCmd.Flags().BoolVar(&exportChurchWide, "church-totals", false, "Add a sheet with church-wide completed totals")

	rootCmd.AddCommand(exportCmd)
}
