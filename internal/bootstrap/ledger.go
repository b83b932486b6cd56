// Package bootstrap builds the ledger stack from configuration for the API
// server and the admin CLI.
package bootstrap

import (
	"database/sql"
	"fmt"
	"time"

	"halaqa-points-api/internal/config"
	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/repository"
	"halaqa-points-api/internal/store"

	_ "github.com/go-sql-driver/mysql"
)

// OpenLedgerRepository opens the ledger database selected by cfg.Type.
func OpenLedgerRepository(cfg config.LedgerDBConfig) (repository.LedgerRepository, error) {
	switch cfg.Type {
	case "mongodb":
		repo, err := repository.NewMongoDBLedgerRepository(cfg.MongoURI, cfg.MongoDatabase,
			cfg.MongoLedgerCollection, cfg.MongoRedemptionCollection)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
		}
		logger.Info("[Bootstrap] MongoDB ledger repository initialized")
		return repo, nil
	case "postgres":
		repo, err := repository.NewPostgresLedgerRepository(cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		logger.Info("[Bootstrap] PostgreSQL ledger repository initialized")
		return repo, nil
	case "memory":
		logger.Warn("[Bootstrap] Using in-memory ledger repository, data is lost on restart")
		return repository.NewMemoryLedgerRepository(), nil
	default:
		repo, err := repository.NewSQLiteLedgerRepository(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		logger.Info("[Bootstrap] SQLite ledger repository initialized at %s", cfg.Path)
		return repo, nil
	}
}

// StoreConfig maps ledger settings onto store tuning.
func StoreConfig(cfg config.LedgerConfig, publisher store.Publisher) store.Config {
	return store.Config{
		MaxAttempts: cfg.TxMaxAttempts,
		Backoff:     cfg.TxBackoff,
		Publisher:   publisher,
	}
}

// OpenProfileDirectory connects to the MySQL profile directory. The returned
// *sql.DB is nil when MySQL is not configured and an in-memory directory is used.
func OpenProfileDirectory(cfg config.DatabaseConfig) (repository.ProfileRepository, *sql.DB, error) {
	if !cfg.Enabled() {
		logger.Warn("[Bootstrap] DB_HOST not set, using an empty in-memory profile directory")
		return repository.NewMemoryProfileRepository(), nil, nil
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open MySQL: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}
	logger.Info("[Bootstrap] MySQL profile directory initialized")
	return repository.NewMySQLProfileRepository(db), db, nil
}
