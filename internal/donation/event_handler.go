package donation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sonlife/sonlife-giving/internal/core/events"
)

// EventHandler reacts to workflow events. Save failures are raised as alerts
// for whoever reconciles the gateway dashboard against the donations table.
type EventHandler struct {
	logger *slog.Logger
}

func NewEventHandler(logger *slog.Logger) *EventHandler {
	return &EventHandler{logger: logger}
}

func (h *EventHandler) HandleDonationCompleted(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.DonationCompletedEvent)
	if !ok {
		return fmt.Errorf("expected DonationCompletedEvent, got %T", event)
	}

	h.logger.Info("donation received",
		"reference", e.Reference,
		"giving_type", e.GivingType,
		"frequency", e.Frequency,
		"amount", e.Amount,
		"currency", e.Currency,
		"event_id", e.EventID())
	return nil
}

func (h *EventHandler) HandleDonationSaveFailed(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.DonationSaveFailedEvent)
	if !ok {
		return fmt.Errorf("expected DonationSaveFailedEvent, got %T", event)
	}

	h.logger.Error("RECONCILE: payment taken but no donation record",
		"reference", e.Reference,
		"email", e.Email,
		"amount", e.Amount,
		"currency", e.Currency,
		"transaction_id", e.TransactionID,
		"reason", e.FailureReason,
		"event_id", e.EventID())
	return nil
}

func (h *EventHandler) HandleDonationCancelled(ctx context.Context, event events.Event) error {
	h.logger.Info("donation cancelled by donor", "event_id", event.EventID(), "payload", event.Payload())
	return nil
}

func (h *EventHandler) HandleStatusChanged(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.DonationStatusChangedEvent)
	if !ok {
		return fmt.Errorf("expected DonationStatusChangedEvent, got %T", event)
	}
	h.logger.Info("donation status changed", "reference", e.Reference, "status", e.Status, "source", e.Source)
	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeDonationCompleted, h.HandleDonationCompleted)
	eventBus.Subscribe(events.EventTypeDonationSaveFailed, h.HandleDonationSaveFailed)
	eventBus.Subscribe(events.EventTypeDonationCancelled, h.HandleDonationCancelled)
	eventBus.Subscribe(events.EventTypeDonationStatusChanged, h.HandleStatusChanged)

	h.logger.Info("donation event handlers registered",
		"handlers", []string{
			events.EventTypeDonationCompleted,
			events.EventTypeDonationSaveFailed,
			events.EventTypeDonationCancelled,
			events.EventTypeDonationStatusChanged,
		})
}
