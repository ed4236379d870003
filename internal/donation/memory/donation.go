// Package memory is an in-process donation store with the same uniqueness
// contract as the database-backed ones.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	datamodel "github.com/sonlife/sonlife-giving/internal/core/datamodel/donation"
	"github.com/sonlife/sonlife-giving/internal/donation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const sqlStateUniqueViolation = "23505"

type DonationRepository struct {
	mu   sync.RWMutex
	rows map[string]*datamodel.Donation
	now  func() time.Time
}

func NewDonationRepository() donation.RepositoryAPI {
	return newRepository(time.Now)
}

func newRepository(now func() time.Time) *DonationRepository {
	return &DonationRepository{
		rows: make(map[string]*datamodel.Donation),
		now:  now,
	}
}

func (r *DonationRepository) Create(ctx context.Context, d *datamodel.Donation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rows[d.Reference]; exists {
		return &datamodel.StoreError{
			Code:    sqlStateUniqueViolation,
			Message: fmt.Sprintf("duplicate key value violates unique constraint \"donations_reference_key\" (reference=%s)", d.Reference),
		}
	}

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = datamodel.StatusPending
	}
	now := r.now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	cp := *d
	r.rows[d.Reference] = &cp
	return nil
}

func (r *DonationRepository) GetByReference(ctx context.Context, reference string) (*datamodel.Donation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[reference]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (r *DonationRepository) UpdateStatus(ctx context.Context, reference string, status string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[reference]
	if !ok {
		return 0, nil
	}
	row.Status = status
	row.UpdatedAt = r.now()
	return 1, nil
}

func (r *DonationRepository) ListByEmail(ctx context.Context, email string) ([]*datamodel.Donation, error) {
	return r.filter(func(d *datamodel.Donation) bool { return d.Email == email }), nil
}

func (r *DonationRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]*datamodel.Donation, error) {
	return r.filter(func(d *datamodel.Donation) bool { return !d.CreatedAt.Before(since) }), nil
}

// filter returns matching copies, newest first.
func (r *DonationRepository) filter(keep func(*datamodel.Donation) bool) []*datamodel.Donation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*datamodel.Donation, 0)
	for _, row := range r.rows {
		if keep(row) {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *DonationRepository) SumCompletedByGivingType(ctx context.Context) ([]datamodel.GivingTotal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type key struct{ givingType, currency string }
	sums := make(map[key]decimal.Decimal)
	for _, row := range r.rows {
		if row.Status != datamodel.StatusCompleted {
			continue
		}
		k := key{row.GivingType, row.Currency}
		sums[k] = sums[k].Add(row.Amount)
	}

	out := make([]datamodel.GivingTotal, 0, len(sums))
	for k, total := range sums {
		out = append(out, datamodel.GivingTotal{GivingType: k.givingType, Currency: k.currency, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GivingType != out[j].GivingType {
			return out[i].GivingType < out[j].GivingType
		}
		return out[i].Currency < out[j].Currency
	})
	return out, nil
}
