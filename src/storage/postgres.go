package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"market-agent/src/helpers"
	"market-agent/src/interfaces"
	"market-agent/src/logger"
	"market-agent/src/models"

	_ "github.com/lib/pq"
)

var schemaUnsafe = regexp.MustCompile(`[^a-z0-9_]`)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

var _ interfaces.ISeriesCache = (*PostgresDB)(nil)

// -----------------------------------------------------------------------------

// NewPostgresDB keeps tables in a schema named after the application
func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	return &PostgresDB{
		Config: cfg,
		Schema: SchemaName(cfg.Name),
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

// SchemaName turns an application name into a safe schema identifier
func SchemaName(appName string) string {
	name := schemaUnsafe.ReplaceAllString(strings.ToLower(appName), "_")
	if name == "" {
		return "market_agent"
	}
	return name
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open postgres", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping postgres", err)
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewDatabaseError(fmt.Sprintf("failed to create schema %s", d.Schema), err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table() string {
	return fmt.Sprintf(`"%s"."series_cache"`, d.Schema)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT PRIMARY KEY,
			series JSONB NOT NULL,
			fetched_at BIGINT NOT NULL
		);
	`, d.table())
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("failed to create series_cache", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) GetSeries(ctx context.Context, symbol string) (*models.MCachedSeries, error) {
	var (
		raw       string
		fetchedAt int64
	)
	query := fmt.Sprintf(`SELECT series::text, fetched_at FROM %s WHERE symbol = $1`, d.table())
	err := d.DB.QueryRowContext(ctx, query, symbol).Scan(&raw, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helpers.NewDatabaseError("read series_cache", err)
	}

	return decodeCachedSeries(symbol, raw, fetchedAt)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveSeries(ctx context.Context, entry *models.MCachedSeries) error {
	raw, err := json.Marshal(entry.Series)
	if err != nil {
		return helpers.NewDatabaseError("encode series", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (symbol, series, fetched_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (symbol) DO UPDATE SET
			series = EXCLUDED.series,
			fetched_at = EXCLUDED.fetched_at
	`, d.table())
	if _, err := d.DB.ExecContext(ctx, query, entry.Symbol, string(raw), entry.FetchedAt.UTC().Unix()); err != nil {
		return helpers.NewDatabaseError("write series_cache", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData(ctx context.Context, cutoff time.Time) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE fetched_at < $1`, d.table())
	if _, err := d.DB.ExecContext(ctx, query, cutoff.UTC().Unix()); err != nil {
		return helpers.NewDatabaseError("cleanup series_cache", err)
	}
	d.Logger.Info("Cleanup completed")
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
