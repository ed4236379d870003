package donation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	errors "github.com/sonlife/sonlife-giving/internal"
	datamodel "github.com/sonlife/sonlife-giving/internal/core/datamodel/donation"
	"github.com/sonlife/sonlife-giving/internal/core/events"
	"github.com/sonlife/sonlife-giving/internal/currency"

	"github.com/shopspring/decimal"
)

// RepositoryAPI is implemented by the postgres, supabase and memory stores.
// GetByReference returns (nil, nil) when nothing matches.
type RepositoryAPI interface {
	Create(ctx context.Context, d *datamodel.Donation) error
	GetByReference(ctx context.Context, reference string) (*datamodel.Donation, error)
	UpdateStatus(ctx context.Context, reference string, status string) (int64, error)
	ListByEmail(ctx context.Context, email string) ([]*datamodel.Donation, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]*datamodel.Donation, error)
	SumCompletedByGivingType(ctx context.Context) ([]datamodel.GivingTotal, error)
}

var (
	errMissingFields = errors.NewValidationError("Missing required donation fields", errors.ErrCodeRequired)
	errBadAmount     = errors.NewValidationError("Invalid donation amount", errors.ErrCodeInvalidAmount)
)

type Service struct {
	repo      RepositoryAPI
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService wires the persistence service. publisher may be nil.
func NewService(repo RepositoryAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) CreateDonation(ctx context.Context, d *Donation) (*Donation, error) {
	if d == nil || d.Email == "" || d.Reference == "" || d.Currency == "" || d.Amount.IsZero() {
		s.logger.Error("donation missing required fields")
		return nil, errMissingFields
	}
	if !d.Amount.IsPositive() {
		s.logger.Error("donation amount not positive", "reference", d.Reference, "amount", d.Amount.String())
		return nil, errBadAmount
	}
	if d.Status == "" {
		d.Status = StatusCompleted
	}

	record := ToDataModel(d)
	if err := s.repo.Create(ctx, record); err != nil {
		if appErr := ClassifyStoreError(err); appErr != nil {
			s.logger.Error("failed to create donation",
				"reference", d.Reference,
				"code", appErr.Code,
				"error", err)
			return nil, appErr
		}
		s.logger.Error("failed to create donation", "reference", d.Reference, "error", err)
		return nil, errors.NewInternalError("Failed to create donation record: "+err.Error(), err)
	}

	s.logger.Info("donation created",
		"reference", record.Reference,
		"giving_type", record.GivingType,
		"currency", record.Currency,
		"amount", record.Amount.String())

	return FromDataModel(record), nil
}

func (s *Service) GetDonationByReference(ctx context.Context, reference string) (*Donation, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, errors.ErrDonationNotFound
	}

	record, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		s.logger.Error("failed to get donation", "reference", reference, "error", err)
		if appErr := ClassifyStoreError(err); appErr != nil {
			return nil, appErr
		}
		return nil, errors.NewInternalError("Failed to fetch donation", err)
	}
	if record == nil {
		return nil, errors.ErrDonationNotFound
	}

	return FromDataModel(record), nil
}

// UpdateDonationStatus changes only the status column.
func (s *Service) UpdateDonationStatus(ctx context.Context, reference string, status Status) error {
	if !status.Valid() {
		return errors.ErrInvalidStatus
	}

	rows, err := s.repo.UpdateStatus(ctx, reference, string(status))
	if err != nil {
		s.logger.Error("failed to update donation status", "reference", reference, "status", status, "error", err)
		if appErr := ClassifyStoreError(err); appErr != nil {
			return appErr
		}
		return errors.NewInternalError("Failed to update donation status", err)
	}
	if rows == 0 {
		return errors.ErrDonationNotFound
	}

	source := "system"
	if staff := errors.StaffEmailFromContext(ctx); staff != "" {
		source = staff
	}
	s.logger.Info("donation status updated", "reference", reference, "status", status, "source", source)
	s.publish(ctx, events.NewDonationStatusChangedEvent(reference, string(status), source))

	return nil
}

// GetDonationsByEmail returns newest first.
func (s *Service) GetDonationsByEmail(ctx context.Context, email string) ([]*Donation, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.NewValidationFieldError("email", "Please enter a valid email address.", errors.ErrCodeRequired)
	}

	records, err := s.repo.ListByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to list donations by email", "error", err)
		if appErr := ClassifyStoreError(err); appErr != nil {
			return nil, appErr
		}
		return nil, errors.NewInternalError("Failed to fetch donations", err)
	}

	return fromDataModels(records), nil
}

func (s *Service) GetDonationsSince(ctx context.Context, since time.Time) ([]*Donation, error) {
	records, err := s.repo.ListCreatedSince(ctx, since)
	if err != nil {
		s.logger.Error("failed to list donations", "since", since, "error", err)
		if appErr := ClassifyStoreError(err); appErr != nil {
			return nil, appErr
		}
		return nil, errors.NewInternalError("Failed to fetch donations", err)
	}
	return fromDataModels(records), nil
}

// GetDonationStats sums completed gifts per fund. Every giving type is present
// even when nobody has given to it.
func (s *Service) GetDonationStats(ctx context.Context) (*Stats, error) {
	totals, err := s.repo.SumCompletedByGivingType(ctx)
	if err != nil {
		s.logger.Error("failed to compute donation stats", "error", err)
		if appErr := ClassifyStoreError(err); appErr != nil {
			return nil, appErr
		}
		return nil, errors.NewInternalError("Failed to fetch donation stats", err)
	}

	stats := &Stats{
		ByGivingType: emptyTotals(),
		ByCurrency:   make(map[currency.Code]map[GivingType]decimal.Decimal),
	}
	for _, p := range currency.All() {
		stats.ByCurrency[p.Code] = emptyTotals()
	}

	for _, t := range totals {
		g := GivingType(t.GivingType)
		stats.ByGivingType[g] = stats.ByGivingType[g].Add(t.Total)

		code := currency.Code(t.Currency)
		if _, ok := stats.ByCurrency[code]; !ok {
			stats.ByCurrency[code] = emptyTotals()
		}
		stats.ByCurrency[code][g] = stats.ByCurrency[code][g].Add(t.Total)
	}

	return stats, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func emptyTotals() map[GivingType]decimal.Decimal {
	out := make(map[GivingType]decimal.Decimal, len(GivingTypes))
	for _, g := range GivingTypes {
		out[g] = decimal.Zero
	}
	return out
}

func fromDataModels(records []*datamodel.Donation) []*Donation {
	out := make([]*Donation, 0, len(records))
	for _, r := range records {
		out = append(out, FromDataModel(r))
	}
	return out
}
