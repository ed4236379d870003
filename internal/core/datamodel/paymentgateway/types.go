package paymentgateway

import (
	"encoding/json"
	"errors"
)

// Transaction statuses reported by Paystack.
const (
	TransactionSuccess   = "success"
	TransactionFailed    = "failed"
	TransactionAbandoned = "abandoned"
	TransactionReversed  = "reversed"
)

const EventChargeSuccess = "charge.success"

type CustomField struct {
	DisplayName  string `json:"display_name"`
	VariableName string `json:"variable_name"`
	Value        string `json:"value"`
}

type Metadata struct {
	CustomFields []CustomField `json:"custom_fields"`
}

// Value returns the custom field stored under variableName.
func (m Metadata) Value(variableName string) string {
	for _, f := range m.CustomFields {
		if f.VariableName == variableName {
			return f.Value
		}
	}
	return ""
}

// InitializeRequest is the body of POST /transaction/initialize. Amount is in
// minor units.
type InitializeRequest struct {
	Email       string   `json:"email"`
	Amount      int64    `json:"amount"`
	Currency    string   `json:"currency"`
	Reference   string   `json:"reference"`
	CallbackURL string   `json:"callback_url,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

func (r *InitializeRequest) Validate() error {
	if r.Reference == "" {
		return errors.New("reference is required")
	}
	if r.Email == "" {
		return errors.New("email is required")
	}
	if r.Amount <= 0 {
		return errors.New("amount must be greater than 0")
	}
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	return nil
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type InitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// TransactionData is shared by verify responses and webhook payloads.
type TransactionData struct {
	ID              int64           `json:"id"`
	Status          string          `json:"status"`
	Reference       string          `json:"reference"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	GatewayResponse string          `json:"gateway_response"`
	Channel         string          `json:"channel"`
	PaidAt          string          `json:"paid_at"`
	Metadata        json.RawMessage `json:"metadata"`
	Customer        struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// CustomMetadata decodes metadata, tolerating the empty string Paystack sends
// when none was attached.
func (t TransactionData) CustomMetadata() Metadata {
	var m Metadata
	if len(t.Metadata) == 0 {
		return m
	}
	_ = json.Unmarshal(t.Metadata, &m)
	return m
}

type WebhookEvent struct {
	Event string          `json:"event"`
	Data  TransactionData `json:"data"`
}

// DecodeEnvelope unpacks the {status, message, data} wrapper every Paystack
// API response uses.
func DecodeEnvelope(body []byte, data interface{}) (string, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", err
	}
	if !env.Status {
		return env.Message, errors.New(env.Message)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			return env.Message, err
		}
	}
	return env.Message, nil
}
