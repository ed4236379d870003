package donation

import (
	"regexp"
	"strings"

	errors "github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/core/common/validation"
	"github.com/sonlife/sonlife-giving/internal/currency"

	"github.com/shopspring/decimal"
)

var (
	namePattern = regexp.MustCompile(`^[A-Za-z\s'-]+$`)
	maxAmount   = decimal.NewFromInt(1000000)
)

// Form holds the giving form exactly as typed.
type Form struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Amount     string `json:"amount"`
	GivingType string `json:"giving_type"`
	Frequency  string `json:"frequency"`
	Currency   string `json:"currency"`
}

// Request is a form that passed validation.
type Request struct {
	Name       string
	Email      string
	Amount     decimal.Decimal
	GivingType GivingType
	Frequency  Frequency
	Currency   currency.Code
}

func (f Form) normalized() Form {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Amount = strings.TrimSpace(f.Amount)
	return f
}

// Validate checks every field and reports one message per bad field.
func (f Form) Validate() (*Request, error) {
	n := f.normalized()

	v := validation.NewValidator()
	v.Field("name", n.Name).
		MinLength(2).Msg("Name must be at least 2 characters.").
		MaxLength(100).Msg("Name must not exceed 100 characters.").
		Matches(namePattern).Msg("Name can only contain letters, spaces, hyphens and apostrophes.")
	v.Field("email", n.Email).
		Required().Msg("Please enter a valid email address.").
		Email().Msg("Please enter a valid email address.").
		MaxLength(255).Msg("Email must not exceed 255 characters.")
	v.Field("amount", n.Amount).
		Required().Msg("Amount must be a valid number.").
		Decimal().Msg("Amount must be a valid number.").
		MaxPlaces(2).Msg("Amount can have at most 2 decimal places.").
		GreaterThan(decimal.Zero).Msg("Amount must be greater than 0.").
		AtMost(maxAmount).Msg("Amount must not exceed 1,000,000.")
	v.Field("giving_type", n.GivingType).
		OneOf(givingTypeStrings()...).Msg("Please select a giving type.")
	v.Field("frequency", n.Frequency).
		OneOf(frequencyStrings()...).Msg("Please select a giving frequency.")
	v.Field("currency", n.Currency).
		OneOf(currency.Codes()...).Msg("Please select a currency.")

	if appErr := v.Validate(); appErr != nil {
		return nil, appErr
	}

	amount, _ := decimal.NewFromString(n.Amount)
	return &Request{
		Name:       n.Name,
		Email:      n.Email,
		Amount:     amount,
		GivingType: GivingType(n.GivingType),
		Frequency:  Frequency(n.Frequency),
		Currency:   currency.Code(n.Currency),
	}, nil
}

// FieldErrors flattens a validation failure to field -> message.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	appErr, ok := errors.IsAppError(err)
	if !ok {
		return out
	}
	if details, ok := appErr.Details.(errors.ValidationErrors); ok {
		for _, e := range details.Errors {
			if _, seen := out[e.Field]; !seen {
				out[e.Field] = e.Message
			}
		}
	}
	return out
}

func givingTypeStrings() []string {
	out := make([]string, len(GivingTypes))
	for i, g := range GivingTypes {
		out[i] = string(g)
	}
	return out
}

func frequencyStrings() []string {
	out := make([]string, len(Frequencies))
	for i, f := range Frequencies {
		out[i] = string(f)
	}
	return out
}

// FormState is the editable giving form with its defaults.
type FormState struct {
	Form
}

func NewFormState() *FormState {
	return &FormState{Form: Form{
		GivingType: string(GivingTithe),
		Frequency:  string(FrequencyOneTime),
		Currency:   string(currency.Default),
	}}
}

// Set updates one field. Switching currency clears the amount because quick
// amounts differ per currency.
func (s *FormState) Set(field, value string) {
	switch field {
	case "name":
		s.Name = value
	case "email":
		s.Email = value
	case "amount":
		s.Amount = value
	case "giving_type":
		s.GivingType = value
	case "frequency":
		s.Frequency = value
	case "currency":
		if value != s.Currency {
			s.Amount = ""
		}
		s.Currency = value
	}
}

func (s *FormState) QuickAmounts() []int64 {
	return currency.QuickAmounts(currency.Code(s.Currency))
}

// Defaults describes the form for the website.
type Defaults struct {
	GivingType   string            `json:"giving_type"`
	Frequency    string            `json:"frequency"`
	Currency     string            `json:"currency"`
	Symbol       string            `json:"symbol"`
	QuickAmounts []int64           `json:"quick_amounts"`
	Currencies   []currency.Policy `json:"currencies"`
	GivingTypes  []string          `json:"giving_types"`
	Frequencies  []string          `json:"frequencies"`
}

func FormDefaults(code currency.Code) (*Defaults, error) {
	state := NewFormState()
	if code != "" {
		state.Set("currency", string(code))
	}
	policy, err := currency.Lookup(currency.Code(state.Currency))
	if err != nil {
		return nil, err
	}
	return &Defaults{
		GivingType:   state.GivingType,
		Frequency:    state.Frequency,
		Currency:     state.Currency,
		Symbol:       policy.Symbol,
		QuickAmounts: state.QuickAmounts(),
		Currencies:   currency.All(),
		GivingTypes:  givingTypeStrings(),
		Frequencies:  frequencyStrings(),
	}, nil
}
