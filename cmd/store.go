package cmd

import (
	"fmt"
	"log/slog"

	"github.com/sonlife/sonlife-giving/internal"
	"github.com/sonlife/sonlife-giving/internal/donation"
	"github.com/sonlife/sonlife-giving/internal/donation/memory"
	donationpg "github.com/sonlife/sonlife-giving/internal/donation/postgres"
	"github.com/sonlife/sonlife-giving/internal/donation/supabase"
	"github.com/sonlife/sonlife-giving/internal/paymentgateway"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// donationStore is the repository picked by store.driver. DB is only set for
// the postgres driver.
type donationStore struct {
	Repo donation.RepositoryAPI
	DB   *sqlx.DB
}

func (s *donationStore) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func openDonationStore(cfg *internal.Config, lg *slog.Logger) (*donationStore, error) {
	switch cfg.Store.Driver {
	case internal.StoreDriverPostgres:
		db, err := initDB(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{TranslateError: true})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to open gorm session: %w", err)
		}
		lg.Info("using postgres donation store")
		return &donationStore{Repo: donationpg.NewDonationRepository(gdb), DB: db}, nil

	case internal.StoreDriverMemory:
		lg.Warn("using in-memory donation store; records are lost on restart")
		return &donationStore{Repo: memory.NewDonationRepository()}, nil

	default:
		lg.Info("using supabase donation store", "url", cfg.Store.URL, "table", cfg.Store.TableName())
		return &donationStore{Repo: supabase.NewDonationRepository(supabase.Config{
			URL:     cfg.Store.URL,
			AnonKey: cfg.Store.AnonKey,
			Table:   cfg.Store.TableName(),
			Timeout: cfg.Store.Timeout,
		}, lg)}, nil
	}
}

func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

func newPaystackClient(cfg internal.GatewayConfig, lg *slog.Logger) *paymentgateway.Client {
	return paymentgateway.NewClient(paymentgateway.ClientConfig{
		BaseURL:     cfg.GetAPIBaseURL(),
		SecretKey:   cfg.SecretKey,
		CallbackURL: cfg.CallbackURL,
		Timeout:     cfg.Timeout,
	}, lg)
}
