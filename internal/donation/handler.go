package donation

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	errors "github.com/sonlife/sonlife-giving/internal"
	gatewaytypes "github.com/sonlife/sonlife-giving/internal/core/datamodel/paymentgateway"
	"github.com/sonlife/sonlife-giving/internal/currency"
	"github.com/sonlife/sonlife-giving/internal/paymentgateway"
	"github.com/sonlife/sonlife-giving/internal/transport"

	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	CreateDonation(ctx context.Context, d *Donation) (*Donation, error)
	GetDonationByReference(ctx context.Context, reference string) (*Donation, error)
	UpdateDonationStatus(ctx context.Context, reference string, status Status) error
	GetDonationsByEmail(ctx context.Context, email string) ([]*Donation, error)
	GetDonationStats(ctx context.Context) (*Stats, error)
	GetDonationsSince(ctx context.Context, since time.Time) ([]*Donation, error)
}

// TransactionVerifier is satisfied by *paymentgateway.Client.
type TransactionVerifier interface {
	Verify(ctx context.Context, reference string) (*gatewaytypes.TransactionData, error)
}

var errPaymentNotVerified = errors.NewValidationError("Payment could not be verified", errors.ErrCodeInvalidStatus)

type Handler struct {
	*transport.BaseHandler
	Service      ServiceAPI
	Workflow     *Workflow
	Confirmation *ConfirmationService
	// Verifier is nil when no secret key is configured.
	Verifier   TransactionVerifier
	GiveURL    string
	settleWait time.Duration
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, workflow *Workflow, confirmation *ConfirmationService, verifier TransactionVerifier, giveURL string) *Handler {
	return &Handler{
		BaseHandler:  baseHandler,
		Service:      service,
		Workflow:     workflow,
		Confirmation: confirmation,
		Verifier:     verifier,
		GiveURL:      giveURL,
		settleWait:   20 * time.Second,
	}
}

func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	defaults, err := FormDefaults(currency.Code(r.URL.Query().Get("currency")))
	if err != nil {
		h.HandleServiceError(w, err, "GetForm")
		return
	}
	h.WriteJSON(w, http.StatusOK, defaults)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var form Form
	if err := h.DecodeJSON(r, &form); err != nil {
		h.HandleError(w, err)
		return
	}

	sub, err := h.Workflow.Submit(r.Context(), form)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok && appErr.Type != errors.ErrorTypeValidation {
			err = appErr.WithMessage(paymentgateway.UserMessage(appErr))
		}
		h.HandleServiceError(w, err, "Submit")
		return
	}

	h.WriteJSON(w, http.StatusAccepted, SubmitResponse{
		Reference:        sub.Reference,
		AuthorizationURL: sub.AuthorizationURL,
		AccessCode:       sub.AccessCode,
		State:            sub.State,
	})
}

func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Workflow.Status(chi.URLParam(r, "reference"))
	if err != nil {
		h.HandleServiceError(w, err, "GetSubmission")
		return
	}
	h.WriteJSON(w, http.StatusOK, sub)
}

// CancelSubmission is called when the donor closes the popup.
func (h *Handler) CancelSubmission(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if err := h.Workflow.Cancel(reference); err != nil {
		h.HandleServiceError(w, err, "CancelSubmission")
		return
	}
	h.respondSettled(w, r, reference)
}

// CompleteSubmission relays the popup's success callback. The response is
// written only after the donation has been saved, so the website can go to
// the confirmation page straight away.
func (h *Handler) CompleteSubmission(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	var req CompleteRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleError(w, err)
		return
	}
	if req.Reference != "" && req.Reference != reference {
		h.HandleError(w, errors.NewValidationFieldError("reference", "Reference does not match", errors.ErrCodeInvalidFormat))
		return
	}

	tx := req.ToTransaction(reference)
	if h.Verifier != nil {
		data, err := h.Verifier.Verify(r.Context(), reference)
		if err != nil {
			h.Logger.Error("payment verification failed", "reference", reference, "error", err)
			h.HandleError(w, errPaymentNotVerified.WithCause(err))
			return
		}
		if data.Status != gatewaytypes.TransactionSuccess {
			h.Logger.Warn("payment not successful at gateway", "reference", reference, "status", data.Status)
			h.HandleError(w, errPaymentNotVerified)
			return
		}
		tx = paymentgateway.ToTransaction(data)
	}

	if err := h.Workflow.Complete(reference, tx); err != nil {
		h.HandleServiceError(w, err, "CompleteSubmission")
		return
	}
	h.respondSettled(w, r, reference)
}

func (h *Handler) respondSettled(w http.ResponseWriter, r *http.Request, reference string) {
	ctx, cancel := context.WithTimeout(r.Context(), h.settleWait)
	defer cancel()

	sub, err := h.Workflow.WaitSettled(ctx, reference)
	if err != nil && sub == nil {
		h.HandleServiceError(w, err, "WaitSettled")
		return
	}
	h.WriteJSON(w, http.StatusOK, sub)
}

func (h *Handler) GetConfirmation(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, h.Confirmation.Lookup(r.Context(), r.URL.Query().Get("reference")))
}

// SuccessPage renders the HTML confirmation. Not found is still a 200 page
// with a link back to giving.
func (h *Handler) SuccessPage(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		// Paystack's hosted checkout redirects with these
		reference = r.URL.Query().Get("trxref")
	}
	c := h.Confirmation.Lookup(r.Context(), reference)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := RenderSuccessPage(w, c, h.GiveURL); err != nil {
		h.Logger.Error("failed to render confirmation page", "reference", reference, "error", err)
	}
}

func (h *Handler) ListDonations(w http.ResponseWriter, r *http.Request) {
	donations, err := h.Service.GetDonationsByEmail(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		h.HandleServiceError(w, err, "ListDonations")
		return
	}
	h.WriteJSON(w, http.StatusOK, DonationsResponse{Donations: donations, Count: len(donations)})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.GetDonationStats(r.Context())
	if err != nil {
		h.HandleServiceError(w, err, "GetStats")
		return
	}
	h.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	var req UpdateStatusRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.HandleError(w, err)
		return
	}

	status := Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if err := h.Service.UpdateDonationStatus(r.Context(), reference, status); err != nil {
		if stderrors.Is(err, errors.ErrInvalidStatus) {
			h.HandleError(w, errors.NewValidationFieldError("status", "Status must be pending, completed or failed", errors.ErrCodeInvalidStatus))
			return
		}
		h.HandleServiceError(w, err, "UpdateStatus")
		return
	}

	d, err := h.Service.GetDonationByReference(r.Context(), reference)
	if err != nil {
		h.HandleServiceError(w, err, "UpdateStatus")
		return
	}
	h.WriteJSON(w, http.StatusOK, d)
}
