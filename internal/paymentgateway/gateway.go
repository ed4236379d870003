package paymentgateway

import (
	"context"
	"log/slog"
	"sync"

	errors "github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/currency"
	gatewaytypes "github.com/sonlife/sonlife-giving/internal/core/datamodel/paymentgateway"

	"github.com/shopspring/decimal"
)

// PaymentRequest is what the donation workflow hands to the gateway. Amount is
// in major units.
type PaymentRequest struct {
	Reference  string
	Email      string
	Name       string
	Amount     decimal.Decimal
	Currency   currency.Code
	GivingType string
	Frequency  string
}

// SetupConfig mirrors the options of the gateway's popup. Amount is in minor
// units.
type SetupConfig struct {
	Key      string
	Email    string
	Amount   int64
	Currency string
	Ref      string
	Metadata gatewaytypes.Metadata
	Callback func(Transaction)
	OnClose  func()
}

// Session is an opened popup.
type Session struct {
	AuthorizationURL string
	AccessCode       string
}

// Popup opens a payment window. Implementations report the result later
// through SetupConfig.Callback or SetupConfig.OnClose.
type Popup interface {
	Setup(ctx context.Context, cfg SetupConfig) (*Session, error)
}

// Loader is satisfied by *ScriptLoader.
type Loader interface {
	Load(ctx context.Context) error
}

type Adapter struct {
	publicKey string
	loader    Loader
	popup     Popup
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]*Checkout
}

func NewAdapter(publicKey string, loader Loader, popup Popup, logger *slog.Logger) *Adapter {
	return &Adapter{
		publicKey: publicKey,
		loader:    loader,
		popup:     popup,
		logger:    logger,
		pending:   make(map[string]*Checkout),
	}
}

func customFields(req PaymentRequest) gatewaytypes.Metadata {
	return gatewaytypes.Metadata{
		CustomFields: []gatewaytypes.CustomField{
			{DisplayName: "Name", VariableName: "name", Value: req.Name},
			{DisplayName: "Giving Type", VariableName: "giving_type", Value: req.GivingType},
			{DisplayName: "Frequency", VariableName: "frequency", Value: req.Frequency},
		},
	}
}

// Open starts a payment and returns as soon as the popup is up. The outcome
// arrives later on the returned Checkout.
func (a *Adapter) Open(ctx context.Context, req PaymentRequest) (*Checkout, error) {
	if a.publicKey == "" {
		a.logger.Error("payment gateway public key is missing")
		return nil, errors.ErrGatewayNotConfigured
	}

	if err := a.loader.Load(ctx); err != nil {
		return nil, errors.ErrGatewayScriptLoad.WithCause(err)
	}

	minor, err := currency.ToMinorUnits(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	checkout := newCheckout(req.Reference)

	a.mu.Lock()
	if _, exists := a.pending[req.Reference]; exists {
		a.mu.Unlock()
		return nil, errors.ErrDuplicateReference
	}
	a.pending[req.Reference] = checkout
	a.mu.Unlock()

	reference := req.Reference
	session, err := a.popup.Setup(ctx, SetupConfig{
		Key:      a.publicKey,
		Email:    req.Email,
		Amount:   minor,
		Currency: string(req.Currency),
		Ref:      reference,
		Metadata: customFields(req),
		Callback: func(tx Transaction) {
			if err := a.Complete(reference, tx); err != nil {
				a.logger.Warn("payment callback ignored", "reference", reference, "error", err)
			}
		},
		OnClose: func() {
			if err := a.Cancel(reference); err != nil {
				a.logger.Debug("popup close ignored", "reference", reference, "error", err)
			}
		},
	})
	if err != nil {
		a.forget(reference)
		a.logger.Error("failed to open payment popup", "reference", reference, "error", err)
		return nil, errors.ErrGatewayPopupInit.WithCause(err)
	}
	if session != nil {
		checkout.AuthorizationURL = session.AuthorizationURL
		checkout.AccessCode = session.AccessCode
	}

	a.logger.Info("payment popup opened",
		"reference", reference,
		"amount_minor", minor,
		"currency", req.Currency)

	return checkout, nil
}

func (a *Adapter) take(reference string) (*Checkout, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.pending[reference]
	if ok {
		delete(a.pending, reference)
	}
	return c, ok
}

func (a *Adapter) forget(reference string) {
	a.mu.Lock()
	delete(a.pending, reference)
	a.mu.Unlock()
}

// Complete settles the checkout for reference as paid.
func (a *Adapter) Complete(reference string, tx Transaction) error {
	c, ok := a.take(reference)
	if !ok {
		return errors.ErrCheckoutNotFound
	}
	if tx.Reference == "" {
		tx.Reference = reference
	}
	c.resolve(Succeeded(tx))
	a.logger.Info("payment completed", "reference", reference, "status", tx.Status)
	return nil
}

// Cancel settles the checkout for reference as closed by the donor.
func (a *Adapter) Cancel(reference string) error {
	c, ok := a.take(reference)
	if !ok {
		return errors.ErrCheckoutNotFound
	}
	c.resolve(Cancelled())
	a.logger.Info("payment cancelled by donor", "reference", reference)
	return nil
}

func (a *Adapter) IsPending(reference string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pending[reference]
	return ok
}

// UserMessage turns a gateway failure into the text shown to the donor.
func UserMessage(err error) string {
	if appErr, ok := errors.IsAppError(err); ok {
		switch appErr.Code {
		case errors.ErrCodeGatewayScriptLoad, errors.ErrCodeGatewayNotConfigured, errors.ErrCodeGatewayPopupInit:
			return "Payment error: " + appErr.Message
		}
		return appErr.Message
	}
	return "Payment error: something went wrong. Please try again."
}
