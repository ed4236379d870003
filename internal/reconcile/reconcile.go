package reconcile

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	errors "github.com/sonlife/sonlife-giving/internal"
	gatewaytypes "github.com/sonlife/sonlife-giving/internal/core/datamodel/paymentgateway"
	"github.com/sonlife/sonlife-giving/internal/donation"
)

// Verifier is satisfied by *paymentgateway.Client.
type Verifier interface {
	Verify(ctx context.Context, reference string) (*gatewaytypes.TransactionData, error)
}

type DonationService interface {
	CreateDonation(ctx context.Context, d *donation.Donation) (*donation.Donation, error)
	GetDonationByReference(ctx context.Context, reference string) (*donation.Donation, error)
	UpdateDonationStatus(ctx context.Context, reference string, status donation.Status) error
	GetDonationsSince(ctx context.Context, since time.Time) ([]*donation.Donation, error)
}

type Action string

const (
	ActionNone    Action = "none"
	ActionUpdated Action = "updated"
	ActionCreated Action = "created"
	ActionSkipped Action = "skipped"
	ActionFailed  Action = "error"
)

type Result struct {
	Reference     string          `json:"reference"`
	GatewayStatus string          `json:"gateway_status,omitempty"`
	Status        donation.Status `json:"status,omitempty"`
	Action        Action          `json:"action"`
	Err           error           `json:"-"`
}

type Config struct {
	MaxWorkers int
	// Timeout bounds each reference, gateway call and store writes together.
	Timeout time.Duration
}

// Reconciler checks donation records against what Paystack says happened.
type Reconciler struct {
	verifier Verifier
	service  DonationService
	cfg      Config
	logger   *slog.Logger
}

func NewReconciler(verifier Verifier, service DonationService, cfg Config, logger *slog.Logger) *Reconciler {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{verifier: verifier, service: service, cfg: cfg, logger: logger}
}

// PendingSince returns references of records created after since that are not completed.
func (r *Reconciler) PendingSince(ctx context.Context, since time.Time) ([]string, error) {
	records, err := r.service.GetDonationsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	var refs []string
	for _, d := range records {
		if d.Status != donation.StatusCompleted {
			refs = append(refs, d.Reference)
		}
	}
	return refs, nil
}

// Run reconciles every reference and returns results in input order.
// Duplicate references are processed once.
func (r *Reconciler) Run(ctx context.Context, references []string) []Result {
	jobs := make([]Job, 0, len(references))
	seen := make(map[string]bool, len(references))
	for _, ref := range references {
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		jobs = append(jobs, Job{Index: len(jobs), Reference: ref})
	}
	if len(jobs) == 0 {
		return nil
	}

	workers := r.cfg.MaxWorkers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := make(chan chan Job, workers)
	results := make(chan Result, len(jobs))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		NewWorker(i, pool, r.logger).Start(poolCtx, &wg, func(job Job) {
			res := r.reconcile(ctx, job.Reference)
			results <- res
		})
	}

	out := make([]Result, len(jobs))
	dispatched := 0
dispatch:
	for _, job := range jobs {
		select {
		case jobChannel := <-pool:
			select {
			case jobChannel <- job:
				dispatched++
			case <-poolCtx.Done():
				break dispatch
			}
		case <-poolCtx.Done():
			break dispatch
		}
	}

	index := make(map[string]int, len(jobs))
	for _, job := range jobs {
		index[job.Reference] = job.Index
		out[job.Index] = Result{Reference: job.Reference, Action: ActionFailed, Err: ctx.Err()}
	}
	for i := 0; i < dispatched; i++ {
		res := <-results
		out[index[res.Reference]] = res
	}

	cancel()
	wg.Wait()

	r.logger.Info("reconciliation finished", "references", len(jobs), "dispatched", dispatched, "workers", workers)
	return out
}

func (r *Reconciler) reconcile(parent context.Context, reference string) Result {
	ctx, cancel := context.WithTimeout(parent, r.cfg.Timeout)
	defer cancel()

	res := Result{Reference: reference}
	fail := func(err error) Result {
		res.Action = ActionFailed
		res.Err = err
		r.logger.Error("reconcile failed", "reference", reference, "error", err)
		return res
	}

	data, err := r.verifier.Verify(ctx, reference)
	if err != nil {
		return fail(err)
	}
	res.GatewayStatus = data.Status

	switch data.Status {
	case gatewaytypes.TransactionSuccess:
		res.Status = donation.StatusCompleted
	case gatewaytypes.TransactionFailed, gatewaytypes.TransactionAbandoned, gatewaytypes.TransactionReversed:
		res.Status = donation.StatusFailed
	default:
		res.Action = ActionSkipped
		return res
	}

	existing, err := r.service.GetDonationByReference(ctx, reference)
	if err != nil && !stderrors.Is(err, errors.ErrDonationNotFound) {
		return fail(err)
	}

	if existing == nil {
		if res.Status != donation.StatusCompleted {
			res.Action = ActionNone
			return res
		}
		d, err := donation.FromCharge(data)
		if err != nil {
			return fail(err)
		}
		if _, err := r.service.CreateDonation(ctx, d); err != nil {
			return fail(err)
		}
		r.logger.Warn("RECONCILE: recreated missing donation record", "reference", reference, "amount", d.Amount.StringFixed(2), "currency", d.Currency)
		res.Action = ActionCreated
		return res
	}

	if existing.Status == res.Status {
		res.Action = ActionNone
		return res
	}
	if err := r.service.UpdateDonationStatus(ctx, reference, res.Status); err != nil {
		return fail(err)
	}
	r.logger.Info("donation status reconciled", "reference", reference, "from", existing.Status, "to", res.Status)
	res.Action = ActionUpdated
	return res
}
