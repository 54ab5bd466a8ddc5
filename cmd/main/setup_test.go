package main

import (
	"io"
	"path/filepath"
	"testing"

	"market-agent/src/config"
	"market-agent/src/logger"
	"market-agent/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(storage models.MStorageConfig) *models.MConfig {
	cfg := config.Defaults()
	cfg.LogLevel = "ERROR"
	cfg.Storage = storage
	return cfg
}

func TestSetupDatabaseDisabled(t *testing.T) {
	db, err := setupDatabase(testConfig(models.MStorageConfig{DBType: "none"}), logger.NewLoggerWithWriter(io.Discard, "ERROR", "test"))
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestSetupDatabaseReturnsInitializeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "cache.db")
	db, err := setupDatabase(testConfig(models.MStorageConfig{DBType: "sqlite", DBPath: path}), logger.NewLoggerWithWriter(io.Discard, "ERROR", "test"))
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestSetupDatabaseSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	db, err := setupDatabase(testConfig(models.MStorageConfig{DBType: "sqlite", DBPath: path}), logger.NewLoggerWithWriter(io.Discard, "ERROR", "test"))
	require.NoError(t, err)
	require.NotNil(t, db)
	assert.NoError(t, db.Close())
}
