package donation

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Donation is a row of the donations table. Amount is in major units.
type Donation struct {
	ID            string          `json:"id,omitempty" gorm:"primaryKey;type:uuid"`
	Amount        decimal.Decimal `json:"amount" gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      string          `json:"currency" gorm:"column:currency;not null"`
	GivingType    string          `json:"giving_type" gorm:"column:giving_type;not null"`
	Frequency     string          `json:"frequency" gorm:"column:frequency;not null"`
	Status        string          `json:"status" gorm:"column:status;not null;default:pending"`
	Email         string          `json:"email" gorm:"column:email;not null;index:idx_donations_email_created_at,priority:1"`
	Name          string          `json:"name" gorm:"column:name;not null"`
	Reference     string          `json:"reference" gorm:"column:reference;not null;uniqueIndex"`
	TransactionID *string         `json:"transaction_id,omitempty" gorm:"column:transaction_id"`
	CreatedAt     time.Time       `json:"created_at,omitempty" gorm:"column:created_at;index:idx_donations_email_created_at,priority:2"`
	UpdatedAt     time.Time       `json:"updated_at,omitempty" gorm:"column:updated_at"`
}

func (Donation) TableName() string {
	return "donations"
}

// GivingTotal is one row of the per-fund totals.
type GivingTotal struct {
	GivingType string          `json:"giving_type" gorm:"column:giving_type"`
	Currency   string          `json:"currency" gorm:"column:currency"`
	Total      decimal.Decimal `json:"total" gorm:"column:total"`
}
