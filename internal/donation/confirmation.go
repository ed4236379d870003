package donation

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	errors "github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/currency"
)

type ConfirmationState string

const (
	ConfirmationLoading  ConfirmationState = "loading"
	ConfirmationNotFound ConfirmationState = "not_found"
	ConfirmationFound    ConfirmationState = "found"
)

type Receipt struct {
	Reference     string    `json:"reference"`
	Amount        string    `json:"amount"`
	AmountValue   string    `json:"amount_value"`
	Currency      string    `json:"currency"`
	CurrencyLabel string    `json:"currency_label"`
	GivingType    string    `json:"giving_type"`
	GivingLabel   string    `json:"giving_label"`
	Frequency     string    `json:"frequency"`
	FrequencyText string    `json:"frequency_label"`
	Name          string    `json:"name"`
	Date          string    `json:"date"`
	CreatedAt     time.Time `json:"created_at"`
}

type Confirmation struct {
	State     ConfirmationState `json:"state"`
	Reference string            `json:"reference,omitempty"`
	Receipt   *Receipt          `json:"receipt,omitempty"`
}

// InFlightChecker is satisfied by *Workflow.
type InFlightChecker interface {
	InFlight(reference string) bool
}

type ConfirmationService struct {
	service  ServiceAPI
	inflight InFlightChecker
	logger   *slog.Logger
}

// NewConfirmationService builds the lookup behind the success page. inflight
// may be nil when no workflow runs in this process.
func NewConfirmationService(service ServiceAPI, inflight InFlightChecker, logger *slog.Logger) *ConfirmationService {
	return &ConfirmationService{
		service:  service,
		inflight: inflight,
		logger:   logger,
	}
}

// Lookup reads a donation back by reference. An empty or malformed reference
// is not found without touching the store.
func (c *ConfirmationService) Lookup(ctx context.Context, reference string) Confirmation {
	reference = strings.TrimSpace(reference)
	if reference == "" || !ValidReference(reference) {
		return Confirmation{State: ConfirmationNotFound, Reference: reference}
	}

	if c.inflight != nil && c.inflight.InFlight(reference) {
		return Confirmation{State: ConfirmationLoading, Reference: reference}
	}

	d, err := c.service.GetDonationByReference(ctx, reference)
	if err != nil {
		if !stderrors.Is(err, errors.ErrDonationNotFound) {
			c.logger.Error("confirmation lookup failed", "reference", reference, "error", err)
		}
		return Confirmation{State: ConfirmationNotFound, Reference: reference}
	}

	return Confirmation{
		State:     ConfirmationFound,
		Reference: reference,
		Receipt:   NewReceipt(d),
	}
}

func NewReceipt(d *Donation) *Receipt {
	label := string(d.Currency)
	if policy, err := currency.Lookup(d.Currency); err == nil {
		label = policy.Label
	}
	return &Receipt{
		Reference:     d.Reference,
		Amount:        currency.Format(d.Amount, d.Currency),
		AmountValue:   d.Amount.StringFixed(2),
		Currency:      string(d.Currency),
		CurrencyLabel: label,
		GivingType:    string(d.GivingType),
		GivingLabel:   d.GivingType.Label(),
		Frequency:     string(d.Frequency),
		FrequencyText: d.Frequency.Label(),
		Name:          d.Name,
		Date:          d.CreatedAt.Format("January 2, 2006"),
		CreatedAt:     d.CreatedAt,
	}
}
