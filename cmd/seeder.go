package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/sonlife/sonlife-giving/internal/currency"
	"github.com/sonlife/sonlife-giving/internal/donation"
	"github.com/sonlife/sonlife-giving/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the store with sample donations",
	Long:  `Seed the configured donation store with completed sample donations for development and report testing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		if cfg.IsProduction() {
			log.Fatal("refusing to seed a production store")
		}
		lg := logger.LoggerWrapper()

		store, err := openDonationStore(cfg, lg)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer store.Close()

		service := donation.NewService(store.Repo, nil, lg)
		refs := donation.NewReferenceGenerator()

		samples := []struct {
			Email     string
			Name      string
			Amount    string
			Currency  currency.Code
			Type      donation.GivingType
			Frequency donation.Frequency
		}{
			{"ama.mensah@example.com", "Ama Mensah", "200", currency.GHS, donation.GivingTithe, donation.FrequencyMonthly},
			{"ama.mensah@example.com", "Ama Mensah", "50", currency.GHS, donation.GivingBuilding, donation.FrequencyOneTime},
			{"kwame.boateng@example.com", "Kwame Boateng", "500", currency.GHS, donation.GivingMissions, donation.FrequencyOneTime},
			{"grace.owusu@example.com", "Grace Owusu", "25", currency.USD, donation.GivingOutreach, donation.FrequencyWeekly},
			{"grace.owusu@example.com", "Grace Owusu", "100", currency.USD, donation.GivingTithe, donation.FrequencyMonthly},
		}

		ctx := context.Background()
		for i, s := range samples {
			d := &donation.Donation{
				Amount:        decimal.RequireFromString(s.Amount),
				Currency:      s.Currency,
				GivingType:    s.Type,
				Frequency:     s.Frequency,
				Status:        donation.StatusCompleted,
				Email:         s.Email,
				Name:          s.Name,
				Reference:     refs.Generate(),
				TransactionID: fmt.Sprintf("seed-%d", i+1),
			}
			if _, err := service.CreateDonation(ctx, d); err != nil {
				log.Fatalf("failed to seed donation for %s: %v", s.Email, err)
			}
			fmt.Printf("Seeded %s %s %s donation: %s\n", s.Currency, s.Amount, s.Type, d.Reference)
		}

		fmt.Println("Sample donations seeded successfully")
	},
}
