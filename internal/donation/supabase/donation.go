// Package supabase stores donations through the Supabase PostgREST API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	datamodel "github.com/sonlife/sonlife-giving/internal/core/datamodel/donation"
	"github.com/sonlife/sonlife-giving/internal/donation"

	"github.com/shopspring/decimal"
)

// defaultPageSize matches the max_rows cap of a stock Supabase project.
const defaultPageSize = 1000

type Config struct {
	URL     string
	AnonKey string
	Table   string
	Timeout time.Duration
	// PageSize must not exceed the project's max_rows setting.
	PageSize int
}

type DonationRepository struct {
	endpoint   string
	anonKey    string
	httpClient *http.Client
	pageSize   int
	logger     *slog.Logger
	now        func() time.Time
}

func NewDonationRepository(cfg Config, logger *slog.Logger) donation.RepositoryAPI {
	table := cfg.Table
	if table == "" {
		table = "donations"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &DonationRepository{
		endpoint:   strings.TrimRight(cfg.URL, "/") + "/rest/v1/" + table,
		anonKey:    cfg.AnonKey,
		httpClient: &http.Client{Timeout: timeout},
		pageSize:   pageSize,
		logger:     logger,
		now:        time.Now,
	}
}

// insertRow leaves id and timestamps to the database defaults.
type insertRow struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	GivingType    string          `json:"giving_type"`
	Frequency     string          `json:"frequency"`
	Status        string          `json:"status"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	Reference     string          `json:"reference"`
	TransactionID *string         `json:"transaction_id,omitempty"`
}

func (r *DonationRepository) do(ctx context.Context, method string, query url.Values, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	target := r.endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", r.anonKey)
	req.Header.Set("Authorization", "Bearer "+r.anonKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		storeErr := &datamodel.StoreError{HTTPStatus: resp.StatusCode}
		if jsonErr := json.Unmarshal(raw, storeErr); jsonErr != nil || storeErr.Message == "" {
			storeErr.Message = fmt.Sprintf("supabase returned status %d", resp.StatusCode)
		}
		r.logger.Warn("supabase request rejected",
			"method", method,
			"status", resp.StatusCode,
			"code", storeErr.Code)
		return storeErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (r *DonationRepository) Create(ctx context.Context, d *datamodel.Donation) error {
	row := insertRow{
		Amount:        d.Amount,
		Currency:      d.Currency,
		GivingType:    d.GivingType,
		Frequency:     d.Frequency,
		Status:        d.Status,
		Email:         d.Email,
		Name:          d.Name,
		Reference:     d.Reference,
		TransactionID: d.TransactionID,
	}

	var created []datamodel.Donation
	if err := r.do(ctx, http.MethodPost, nil, []insertRow{row}, &created); err != nil {
		return err
	}
	if len(created) == 0 {
		return fmt.Errorf("supabase returned no row for reference %s", d.Reference)
	}

	*d = created[0]
	return nil
}

func (r *DonationRepository) GetByReference(ctx context.Context, reference string) (*datamodel.Donation, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("reference", "eq."+reference)
	q.Set("limit", "1")

	var rows []datamodel.Donation
	if err := r.do(ctx, http.MethodGet, q, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *DonationRepository) UpdateStatus(ctx context.Context, reference string, status string) (int64, error) {
	q := url.Values{}
	q.Set("reference", "eq."+reference)

	var rows []datamodel.Donation
	payload := map[string]interface{}{
		"status":     status,
		"updated_at": r.now().UTC().Format(time.RFC3339Nano),
	}
	if err := r.do(ctx, http.MethodPatch, q, payload, &rows); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (r *DonationRepository) ListByEmail(ctx context.Context, email string) ([]*datamodel.Donation, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("email", "eq."+email)
	q.Set("order", "created_at.desc,id.desc")
	return r.list(ctx, q)
}

func (r *DonationRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]*datamodel.Donation, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("created_at", "gte."+since.UTC().Format(time.RFC3339Nano))
	q.Set("order", "created_at.desc,id.desc")
	return r.list(ctx, q)
}

func (r *DonationRepository) list(ctx context.Context, q url.Values) ([]*datamodel.Donation, error) {
	rows, err := r.fetchAll(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]*datamodel.Donation, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

// fetchAll walks a select with limit and offset. The order in q needs a unique
// tiebreaker so pages do not overlap. A short page ends the walk.
func (r *DonationRepository) fetchAll(ctx context.Context, q url.Values) ([]datamodel.Donation, error) {
	var all []datamodel.Donation
	for offset := 0; ; offset += r.pageSize {
		q.Set("limit", strconv.Itoa(r.pageSize))
		q.Set("offset", strconv.Itoa(offset))

		var rows []datamodel.Donation
		if err := r.do(ctx, http.MethodGet, q, nil, &rows); err != nil {
			return nil, err
		}
		all = append(all, rows...)
		if len(rows) < r.pageSize {
			return all, nil
		}
	}
}

// SumCompletedByGivingType adds up client side; PostgREST aggregates are off
// by default on Supabase projects.
func (r *DonationRepository) SumCompletedByGivingType(ctx context.Context) ([]datamodel.GivingTotal, error) {
	q := url.Values{}
	q.Set("select", "giving_type,currency,amount")
	q.Set("status", "eq."+datamodel.StatusCompleted)
	q.Set("order", "giving_type.asc,currency.asc,id.asc")

	rows, err := r.fetchAll(ctx, q)
	if err != nil {
		return nil, err
	}

	var totals []datamodel.GivingTotal
	for _, row := range rows {
		n := len(totals)
		if n > 0 && totals[n-1].GivingType == row.GivingType && totals[n-1].Currency == row.Currency {
			totals[n-1].Total = totals[n-1].Total.Add(row.Amount)
			continue
		}
		totals = append(totals, datamodel.GivingTotal{
			GivingType: row.GivingType,
			Currency:   row.Currency,
			Total:      row.Amount,
		})
	}
	return totals, nil
}
