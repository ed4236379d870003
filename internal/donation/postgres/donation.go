package postgres

import (
	"context"
	"errors"
	"time"

	datamodel "github.com/sonlife/sonlife-giving/internal/core/datamodel/donation"
	"github.com/sonlife/sonlife-giving/internal/donation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DonationRepository struct {
	db *gorm.DB
}

// NewDonationRepository expects db to be opened with TranslateError so
// constraint violations come back as gorm errors.
func NewDonationRepository(db *gorm.DB) donation.RepositoryAPI {
	return &DonationRepository{db: db}
}

func (r *DonationRepository) Create(ctx context.Context, d *datamodel.Donation) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *DonationRepository) GetByReference(ctx context.Context, reference string) (*datamodel.Donation, error) {
	var d datamodel.Donation
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *DonationRepository) UpdateStatus(ctx context.Context, reference string, status string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&datamodel.Donation{}).
		Where("reference = ?", reference).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *DonationRepository) ListByEmail(ctx context.Context, email string) ([]*datamodel.Donation, error) {
	var donations []*datamodel.Donation
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		Find(&donations).Error
	return donations, err
}

func (r *DonationRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]*datamodel.Donation, error) {
	var donations []*datamodel.Donation
	err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		Find(&donations).Error
	return donations, err
}

func (r *DonationRepository) SumCompletedByGivingType(ctx context.Context) ([]datamodel.GivingTotal, error) {
	var totals []datamodel.GivingTotal
	err := r.db.WithContext(ctx).
		Model(&datamodel.Donation{}).
		Select("giving_type, currency, SUM(amount) AS total").
		Where("status = ?", datamodel.StatusCompleted).
		Group("giving_type, currency").
		Order("giving_type, currency").
		Scan(&totals).Error
	return totals, err
}
