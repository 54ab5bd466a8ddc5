package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"market-agent/src/helpers"
	"market-agent/src/interfaces"
	"market-agent/src/logger"
	"market-agent/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

var _ interfaces.ISeriesCache = (*AsyncSQLiteDB)(nil)

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open sqlite", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping sqlite", err)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	// Cached provider responses survive restarts
	query := `
		CREATE TABLE IF NOT EXISTS series_cache (
			symbol TEXT PRIMARY KEY,
			series TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("failed to create series_cache", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// GetSeries returns the cached entry for symbol, or nil on a miss
func (d *AsyncSQLiteDB) GetSeries(ctx context.Context, symbol string) (*models.MCachedSeries, error) {
	var (
		raw       string
		fetchedAt int64
	)
	err := d.DB.QueryRowContext(ctx, `SELECT series, fetched_at FROM series_cache WHERE symbol = ?`, symbol).Scan(&raw, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helpers.NewDatabaseError("read series_cache", err)
	}

	return decodeCachedSeries(symbol, raw, fetchedAt)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveSeries(ctx context.Context, entry *models.MCachedSeries) error {
	raw, err := json.Marshal(entry.Series)
	if err != nil {
		return helpers.NewDatabaseError("encode series", err)
	}

	_, err = d.DB.ExecContext(ctx, `
		INSERT INTO series_cache (symbol, series, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT (symbol) DO UPDATE SET
			series = excluded.series,
			fetched_at = excluded.fetched_at
	`, entry.Symbol, string(raw), entry.FetchedAt.UTC().Unix())
	if err != nil {
		return helpers.NewDatabaseError("write series_cache", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData(ctx context.Context, cutoff time.Time) error {
	res, err := d.DB.ExecContext(ctx, "DELETE FROM series_cache WHERE fetched_at < ?", cutoff.UTC().Unix())
	if err != nil {
		return helpers.NewDatabaseError("cleanup series_cache", err)
	}

	n, _ := res.RowsAffected()
	d.Logger.Info("Cleanup completed (%d cached series older than %s removed)", n, cutoff.UTC().Format(time.RFC3339))
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

func decodeCachedSeries(symbol string, raw string, fetchedAt int64) (*models.MCachedSeries, error) {
	var series []models.MTimeSeriesPoint
	if err := json.Unmarshal([]byte(raw), &series); err != nil {
		return nil, helpers.NewDatabaseError("decode cached series for "+symbol, err)
	}
	return &models.MCachedSeries{
		Symbol:    symbol,
		Series:    series,
		FetchedAt: time.Unix(fetchedAt, 0).UTC(),
	}, nil
}
