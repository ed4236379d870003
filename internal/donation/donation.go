package donation

import (
	"time"

	datamodel "github.com/sonlife/sonlife-giving/internal/core/datamodel/donation"
	"github.com/sonlife/sonlife-giving/internal/currency"

	"github.com/shopspring/decimal"
)

type GivingType string

const (
	GivingTithe    GivingType = "tithe"
	GivingMissions GivingType = "missions"
	GivingBuilding GivingType = "building"
	GivingOutreach GivingType = "outreach"
)

var GivingTypes = []GivingType{GivingTithe, GivingMissions, GivingBuilding, GivingOutreach}

func (g GivingType) Valid() bool {
	for _, v := range GivingTypes {
		if g == v {
			return true
		}
	}
	return false
}

// Label is the fund name shown on receipts.
func (g GivingType) Label() string {
	switch g {
	case GivingTithe:
		return "Tithe"
	case GivingMissions:
		return "Missions"
	case GivingBuilding:
		return "Building Fund"
	case GivingOutreach:
		return "Outreach"
	}
	return string(g)
}

// Frequency is recorded with the gift only. Nothing schedules repeat charges.
type Frequency string

const (
	FrequencyOneTime Frequency = "one-time"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

var Frequencies = []Frequency{FrequencyOneTime, FrequencyWeekly, FrequencyMonthly}

func (f Frequency) Valid() bool {
	for _, v := range Frequencies {
		if f == v {
			return true
		}
	}
	return false
}

func (f Frequency) Label() string {
	switch f {
	case FrequencyOneTime:
		return "One-time"
	case FrequencyWeekly:
		return "Weekly"
	case FrequencyMonthly:
		return "Monthly"
	}
	return string(f)
}

type Status string

const (
	StatusPending   Status = datamodel.StatusPending
	StatusCompleted Status = datamodel.StatusCompleted
	StatusFailed    Status = datamodel.StatusFailed
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusFailed
}

type Donation struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      currency.Code   `json:"currency"`
	GivingType    GivingType      `json:"giving_type"`
	Frequency     Frequency       `json:"frequency"`
	Status        Status          `json:"status"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	Reference     string          `json:"reference"`
	TransactionID string          `json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Stats are completed totals per fund. ByGivingType adds currencies together
// the way the church dashboard always has; ByCurrency keeps them apart.
type Stats struct {
	ByGivingType map[GivingType]decimal.Decimal                   `json:"by_giving_type"`
	ByCurrency   map[currency.Code]map[GivingType]decimal.Decimal `json:"by_currency"`
}

func ToDataModel(d *Donation) *datamodel.Donation {
	out := &datamodel.Donation{
		ID:         d.ID,
		Amount:     d.Amount,
		Currency:   string(d.Currency),
		GivingType: string(d.GivingType),
		Frequency:  string(d.Frequency),
		Status:     string(d.Status),
		Email:      d.Email,
		Name:       d.Name,
		Reference:  d.Reference,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	if d.TransactionID != "" {
		tx := d.TransactionID
		out.TransactionID = &tx
	}
	return out
}

func FromDataModel(m *datamodel.Donation) *Donation {
	d := &Donation{
		ID:         m.ID,
		Amount:     m.Amount,
		Currency:   currency.Code(m.Currency),
		GivingType: GivingType(m.GivingType),
		Frequency:  Frequency(m.Frequency),
		Status:     Status(m.Status),
		Email:      m.Email,
		Name:       m.Name,
		Reference:  m.Reference,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.TransactionID != nil {
		d.TransactionID = *m.TransactionID
	}
	return d
}
