package cmd

import (
	"context"
	"fmt"

	"github.com/sonlife/sonlife-giving/internal/core/events"
	"github.com/sonlife/sonlife-giving/internal/donation"
	"github.com/sonlife/sonlife-giving/pkg/logger"

	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish donation events through the event bus with the production handlers attached`,
}

var publishEventCmd = &cobra.Command{
	Use:       "publish [event-type]",
	Short:     "Publish a test donation event",
	Long:      `Publish a sample donation event to check what the handlers log`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{events.EventTypeDonationCompleted, events.EventTypeDonationCancelled, events.EventTypeDonationSaveFailed, events.EventTypeDonationStatusChanged},
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(args[0])
	},
}

var eventReference string

func sampleEvent(eventType string) (events.Event, error) {
	switch eventType {
	case events.EventTypeDonationCompleted:
		return events.NewDonationCompletedEvent(eventReference, "test@sonlife.org", "Test Donor", "50.00", "GHS", "tithe", "one-time", "cli"), nil
	case events.EventTypeDonationCancelled:
		return events.NewDonationCancelledEvent(eventReference), nil
	case events.EventTypeDonationSaveFailed:
		return events.NewDonationSaveFailedEvent(eventReference, "test@sonlife.org", "50.00", "GHS", "cli", "store unavailable"), nil
	case events.EventTypeDonationStatusChanged:
		return events.NewDonationStatusChangedEvent(eventReference, string(donation.StatusCompleted), "cli"), nil
	}
	return nil, fmt.Errorf("unknown event type %q", eventType)
}

func publishTestEvent(eventType string) error {
	lg := logger.LoggerWrapper()

	event, err := sampleEvent(eventType)
	if err != nil {
		return err
	}

	bus := events.NewEventBus(lg)
	donation.NewEventHandler(lg).RegisterEventHandlers(bus)

	lg.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())
	if err := bus.PublishSync(context.Background(), event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	lg.Info("test event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventReference, "reference", "SONLIFE-0-cli", "Donation reference carried by the event")

	eventCmd.AddCommand(publishEventCmd)
	rootCmd.AddCommand(eventCmd)
}
