package donation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	errors "github.com/sonlife/sonlife-giving/internal"
	gatewaytypes "github.com/sonlife/sonlife-giving/internal/core/datamodel/paymentgateway"
	"github.com/sonlife/sonlife-giving/internal/currency"
	"github.com/sonlife/sonlife-giving/internal/paymentgateway"
	"github.com/sonlife/sonlife-giving/internal/transport"
)

// SignatureVerifier is satisfied by *paymentgateway.Client.
type SignatureVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

type WebhookHandler struct {
	*transport.BaseHandler
	service  ServiceAPI
	workflow *Workflow
	verifier SignatureVerifier
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, service ServiceAPI, workflow *Workflow, verifier SignatureVerifier) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		service:     service,
		workflow:    workflow,
		verifier:    verifier,
	}
}

type WebhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandlePaystackWebhook accepts charge.success notifications. Paystack retries
// anything that is not a 200, so only bad signatures and bodies are refused.
func (h *WebhookHandler) HandlePaystackWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		h.HandleError(w, errors.NewValidationError("Invalid request body", errors.ErrCodeInvalidFormat))
		return
	}

	if h.verifier == nil || !h.verifier.VerifySignature(body, r.Header.Get(paymentgateway.SignatureHeader)) {
		h.Logger.Warn("webhook signature rejected", "remote_addr", r.RemoteAddr)
		h.HandleError(w, errors.ErrInvalidSignature)
		return
	}

	var event gatewaytypes.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.HandleError(w, errors.NewValidationError("Invalid webhook payload", errors.ErrCodeInvalidFormat).WithCause(err))
		return
	}

	if event.Event != gatewaytypes.EventChargeSuccess {
		h.Logger.Debug("webhook event ignored", "event", event.Event)
		h.WriteJSON(w, http.StatusOK, WebhookResponse{Status: "ignored", Message: event.Event})
		return
	}

	message := h.processChargeSuccess(r.Context(), &event.Data)
	h.WriteJSON(w, http.StatusOK, WebhookResponse{Status: "success", Message: message})
}

const maxWebhookBytes = 1 << 20

func (h *WebhookHandler) processChargeSuccess(ctx context.Context, data *gatewaytypes.TransactionData) string {
	reference := data.Reference
	tx := paymentgateway.ToTransaction(data)

	err := h.workflow.Complete(reference, tx)
	if err == nil {
		return "checkout completed"
	}
	if !stderrors.Is(err, errors.ErrCheckoutNotFound) {
		h.Logger.Error("failed to complete checkout from webhook", "reference", reference, "error", err)
		return "checkout not completed"
	}

	// the website already relayed it and the save is underway
	if h.workflow.InFlight(reference) {
		return "checkout already settling"
	}

	existing, err := h.service.GetDonationByReference(ctx, reference)
	switch {
	case err == nil && existing.Status == StatusCompleted:
		return "donation already recorded"
	case err == nil:
		if err := h.service.UpdateDonationStatus(ctx, reference, StatusCompleted); err != nil {
			h.Logger.Error("failed to mark donation completed", "reference", reference, "error", err)
			return "status not updated"
		}
		return "donation marked completed"
	case !stderrors.Is(err, errors.ErrDonationNotFound):
		h.Logger.Error("failed to look up donation for webhook", "reference", reference, "error", err)
		return "lookup failed"
	}

	// No checkout and no record: this process never saw the payment open or
	// lost it on restart. Rebuild the record from what Paystack sent back.
	d, err := FromCharge(data)
	if err != nil {
		h.Logger.Error("paid charge cannot be recorded", "reference", reference, "transaction_id", tx.TransactionID, "error", err)
		return "charge not recorded"
	}
	if _, err := h.service.CreateDonation(ctx, d); err != nil && !stderrors.Is(err, errors.ErrDuplicateReference) {
		h.Logger.Error("failed to record donation from webhook", "reference", reference, "error", err)
		return "charge not recorded"
	}
	h.Logger.Info("donation recorded from webhook", "reference", reference)
	return "donation recorded"
}

// FromCharge rebuilds a completed donation from a Paystack charge and its custom fields.
func FromCharge(data *gatewaytypes.TransactionData) (*Donation, error) {
	code := currency.Code(data.Currency)
	amount, err := currency.FromMinorUnits(data.Amount, code)
	if err != nil {
		return nil, err
	}

	meta := data.CustomMetadata()
	d := &Donation{
		Amount:     amount,
		Currency:   code,
		GivingType: GivingType(meta.Value("giving_type")),
		Frequency:  Frequency(meta.Value("frequency")),
		Status:     StatusCompleted,
		Email:      data.Customer.Email,
		Name:       meta.Value("name"),
		Reference:  data.Reference,
	}
	if data.ID != 0 {
		d.TransactionID = paymentgateway.ToTransaction(data).TransactionID
	}
	if !d.GivingType.Valid() || !d.Frequency.Valid() || d.Name == "" {
		return nil, errors.NewValidationError("charge metadata is incomplete", errors.ErrCodeRequired)
	}
	return d, nil
}
