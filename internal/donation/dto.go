package donation

import (
	"github.com/sonlife/sonlife-giving/internal/paymentgateway"
)

type SubmitResponse struct {
	Reference        string          `json:"reference"`
	AuthorizationURL string          `json:"authorization_url,omitempty"`
	AccessCode       string          `json:"access_code,omitempty"`
	State            SubmissionState `json:"state"`
}

// CompleteRequest is the popup callback payload the website relays.
type CompleteRequest struct {
	Reference   string `json:"reference"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	Transaction string `json:"transaction"`
	TrxRef      string `json:"trxref,omitempty"`
}

func (r CompleteRequest) ToTransaction(reference string) paymentgateway.Transaction {
	return paymentgateway.Transaction{
		Reference:     reference,
		Status:        r.Status,
		Message:       r.Message,
		TransactionID: r.Transaction,
	}
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type DonationsResponse struct {
	Donations []*Donation `json:"donations"`
	Count     int         `json:"count"`
}
