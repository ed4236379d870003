package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeDonationCompleted     = "donation.completed"
	EventTypeDonationCancelled     = "donation.cancelled"
	EventTypeDonationSaveFailed    = "donation.save_failed"
	EventTypeDonationStatusChanged = "donation.status_changed"
)

type DonationCompletedEvent struct {
	BaseEvent
	Reference     string `json:"reference"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	GivingType    string `json:"giving_type"`
	Frequency     string `json:"frequency"`
	TransactionID string `json:"transaction_id"`
}

func NewDonationCompletedEvent(reference, email, name, amount, currency, givingType, frequency, transactionID string) *DonationCompletedEvent {
	return &DonationCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDonationCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"reference":      reference,
				"email":          email,
				"name":           name,
				"amount":         amount,
				"currency":       currency,
				"giving_type":    givingType,
				"frequency":      frequency,
				"transaction_id": transactionID,
			},
		},
		Reference:     reference,
		Email:         email,
		Name:          name,
		Amount:        amount,
		Currency:      currency,
		GivingType:    givingType,
		Frequency:     frequency,
		TransactionID: transactionID,
	}
}

type DonationCancelledEvent struct {
	BaseEvent
	Reference string `json:"reference"`
}

func NewDonationCancelledEvent(reference string) *DonationCancelledEvent {
	return &DonationCancelledEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDonationCancelled,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"reference": reference,
			},
		},
		Reference: reference,
	}
}

// DonationSaveFailedEvent means money moved but no record exists. Someone has
// to reconcile it by hand.
type DonationSaveFailedEvent struct {
	BaseEvent
	Reference     string `json:"reference"`
	Email         string `json:"email"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	TransactionID string `json:"transaction_id"`
	FailureReason string `json:"failure_reason"`
}

func NewDonationSaveFailedEvent(reference, email, amount, currency, transactionID, failureReason string) *DonationSaveFailedEvent {
	return &DonationSaveFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDonationSaveFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"reference":      reference,
				"email":          email,
				"amount":         amount,
				"currency":       currency,
				"transaction_id": transactionID,
				"failure_reason": failureReason,
			},
		},
		Reference:     reference,
		Email:         email,
		Amount:        amount,
		Currency:      currency,
		TransactionID: transactionID,
		FailureReason: failureReason,
	}
}

type DonationStatusChangedEvent struct {
	BaseEvent
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Source    string `json:"source"`
}

func NewDonationStatusChangedEvent(reference, status, source string) *DonationStatusChangedEvent {
	return &DonationStatusChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeDonationStatusChanged,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"reference": reference,
				"status":    status,
				"source":    source,
			},
		},
		Reference: reference,
		Status:    status,
		Source:    source,
	}
}
