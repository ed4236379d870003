package donation

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	errors "github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/core/events"
	"github.com/sonlife/sonlife-giving/internal/paymentgateway"
)

type SubmissionState string

const (
	StateAwaitingPayment SubmissionState = "awaiting_payment"
	StateSaving          SubmissionState = "saving"
	StateCompleted       SubmissionState = "completed"
	StateCancelled       SubmissionState = "cancelled"
	StateSaveFailed      SubmissionState = "save_failed"
)

const (
	MessageCancelled = "Payment cancelled. You can try again when you're ready."

	referenceAttempts = 3
)

// Terminal reports whether the submission will change again.
func (s SubmissionState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateSaveFailed
}

// Submission tracks one trip through the payment popup.
type Submission struct {
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorization_url,omitempty"`
	AccessCode       string          `json:"access_code,omitempty"`
	State            SubmissionState `json:"state"`
	Message          string          `json:"message,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Gateway is satisfied by *paymentgateway.Adapter.
type Gateway interface {
	Open(ctx context.Context, req paymentgateway.PaymentRequest) (*paymentgateway.Checkout, error)
	Complete(reference string, tx paymentgateway.Transaction) error
	Cancel(reference string) error
}

type WorkflowConfig struct {
	// SaveTimeout bounds the store write after a successful payment.
	SaveTimeout time.Duration
	// Retention is how long finished submissions stay visible to Status.
	Retention time.Duration
}

type Workflow struct {
	service   ServiceAPI
	gateway   Gateway
	refs      *ReferenceGenerator
	publisher events.Publisher
	logger    *slog.Logger
	cfg       WorkflowConfig

	mu          sync.RWMutex
	submissions map[string]*Submission

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorkflow(service ServiceAPI, gateway Gateway, refs *ReferenceGenerator, publisher events.Publisher, cfg WorkflowConfig, logger *slog.Logger) *Workflow {
	if refs == nil {
		refs = NewReferenceGenerator()
	}
	if cfg.SaveTimeout == 0 {
		cfg.SaveTimeout = 15 * time.Second
	}
	if cfg.Retention == 0 {
		cfg.Retention = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Workflow{
		service:     service,
		gateway:     gateway,
		refs:        refs,
		publisher:   publisher,
		logger:      logger,
		cfg:         cfg,
		submissions: make(map[string]*Submission),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Submit validates the form, opens the payment popup and returns while the
// donor is paying. The record is written only once the gateway reports
// success.
func (w *Workflow) Submit(ctx context.Context, form Form) (*Submission, error) {
	req, err := form.Validate()
	if err != nil {
		return nil, err
	}

	w.prune()

	var (
		reference string
		checkout  *paymentgateway.Checkout
	)
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		reference = w.refs.Generate()
		checkout, err = w.gateway.Open(ctx, paymentgateway.PaymentRequest{
			Reference:  reference,
			Email:      req.Email,
			Name:       req.Name,
			Amount:     req.Amount,
			Currency:   req.Currency,
			GivingType: string(req.GivingType),
			Frequency:  string(req.Frequency),
		})
		if !stderrors.Is(err, errors.ErrDuplicateReference) {
			break
		}
		w.logger.Warn("reference collision, minting another", "reference", reference)
	}
	if err != nil {
		w.logger.Error("payment could not start", "reference", reference, "error", err)
		return nil, err
	}

	now := time.Now()
	sub := &Submission{
		Reference:        reference,
		AuthorizationURL: checkout.AuthorizationURL,
		AccessCode:       checkout.AccessCode,
		State:            StateAwaitingPayment,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	w.mu.Lock()
	w.submissions[reference] = sub
	w.mu.Unlock()

	w.wg.Add(1)
	go w.await(checkout, req)

	w.logger.Info("donation submitted",
		"reference", reference,
		"giving_type", req.GivingType,
		"currency", req.Currency)

	cp := *sub
	return &cp, nil
}

func (w *Workflow) await(checkout *paymentgateway.Checkout, req *Request) {
	defer w.wg.Done()

	reference := checkout.Reference
	outcome, err := checkout.Wait(w.ctx)
	if err != nil {
		w.logger.Warn("stopped waiting for payment", "reference", reference, "error", err)
		return
	}

	switch outcome.Kind {
	case paymentgateway.OutcomeCancelled:
		w.setState(reference, StateCancelled, MessageCancelled)
		w.publish(events.NewDonationCancelledEvent(reference))

	case paymentgateway.OutcomeSuccess:
		w.setState(reference, StateSaving, "")
		w.record(reference, req, outcome.Transaction)
	}
}

// record persists a paid donation. A failure here is never retried: the
// donor has paid, so it is surfaced and left for manual reconciliation.
func (w *Workflow) record(reference string, req *Request, tx *paymentgateway.Transaction) {
	d := &Donation{
		Amount:     req.Amount,
		Currency:   req.Currency,
		GivingType: req.GivingType,
		Frequency:  req.Frequency,
		Status:     StatusCompleted,
		Email:      req.Email,
		Name:       req.Name,
		Reference:  reference,
	}
	if tx != nil {
		d.TransactionID = tx.TransactionID
	}

	// the save outlives shutdown; money has already moved
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.SaveTimeout)
	defer cancel()

	if _, err := w.service.CreateDonation(ctx, d); err != nil {
		w.logger.Error("payment succeeded but donation was not saved",
			"reference", reference,
			"email", req.Email,
			"amount", req.Amount.String(),
			"currency", req.Currency,
			"transaction_id", d.TransactionID,
			"error", err)
		w.setState(reference, StateSaveFailed, errors.ErrPaymentNotSaved.Message)
		w.publish(events.NewDonationSaveFailedEvent(reference, req.Email, req.Amount.String(), string(req.Currency), d.TransactionID, err.Error()))
		return
	}

	w.setState(reference, StateCompleted, "")
	w.publish(events.NewDonationCompletedEvent(reference, req.Email, req.Name, req.Amount.String(),
		string(req.Currency), string(req.GivingType), string(req.Frequency), d.TransactionID))
}

// Status returns a snapshot of the submission.
func (w *Workflow) Status(reference string) (*Submission, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	sub, ok := w.submissions[reference]
	if !ok {
		return nil, errors.ErrSubmissionNotFound
	}
	cp := *sub
	return &cp, nil
}

// InFlight reports whether reference is still waiting on payment or on the
// store write.
func (w *Workflow) InFlight(reference string) bool {
	sub, err := w.Status(reference)
	return err == nil && !sub.State.Terminal()
}

// Complete relays a successful payment reported by the website.
func (w *Workflow) Complete(reference string, tx paymentgateway.Transaction) error {
	return w.gateway.Complete(reference, tx)
}

// Cancel relays the donor closing the popup.
func (w *Workflow) Cancel(reference string) error {
	return w.gateway.Cancel(reference)
}

// WaitSettled blocks until the submission reaches a terminal state or ctx
// ends.
func (w *Workflow) WaitSettled(ctx context.Context, reference string) (*Submission, error) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		sub, err := w.Status(reference)
		if err != nil {
			return nil, err
		}
		if sub.State.Terminal() {
			return sub, nil
		}
		select {
		case <-ctx.Done():
			return sub, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Shutdown stops waiting on open popups and waits for in-flight saves.
func (w *Workflow) Shutdown() {
	w.cancel()
	w.wg.Wait()
}

func (w *Workflow) setState(reference string, state SubmissionState, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	sub, ok := w.submissions[reference]
	if !ok {
		return
	}
	sub.State = state
	sub.Message = message
	sub.UpdatedAt = time.Now()
}

// prune drops finished submissions past retention.
func (w *Workflow) prune() {
	cutoff := time.Now().Add(-w.cfg.Retention)

	w.mu.Lock()
	defer w.mu.Unlock()
	for ref, sub := range w.submissions {
		if sub.State.Terminal() && sub.UpdatedAt.Before(cutoff) {
			delete(w.submissions, ref)
		}
	}
}

func (w *Workflow) publish(event events.Event) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(w.ctx, event); err != nil {
		w.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
