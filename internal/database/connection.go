// Package database owns the sqlx connection and driver portability helpers.
// All SQL in the codebase is written with ? placeholders and run through
// ConvertPlaceholders so the same queries work on MySQL, PostgreSQL and
// SQLite.
package database

import (
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/permitkit/permitflow/internal/config"
)

var (
	mu sync.RWMutex
	db *sqlx.DB

	// testDB, when set, is returned by Get instead of the real connection.
	testDB *sqlx.DB
)

// Init opens the connection described by cfg and stores it for Get.
func Init(cfg *config.DatabaseConfig) (*sqlx.DB, error) {
	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Connect(driverName(cfg.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	mu.Lock()
	db = conn
	mu.Unlock()
	return conn, nil
}

// Get returns the process database connection.
func Get() (*sqlx.DB, error) {
	mu.RLock()
	defer mu.RUnlock()
	if testDB != nil {
		return testDB, nil
	}
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return db, nil
}

// Close closes the stored connection.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

// SetTestDB installs a connection to be returned by Get during tests.
// Pass nil to restore normal behavior.
func SetTestDB(conn *sqlx.DB) {
	mu.Lock()
	testDB = conn
	mu.Unlock()
}

func driverName(driver string) string {
	switch driver {
	case "postgres", "postgresql":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return "mysql"
	}
}

func buildDSN(cfg *config.DatabaseConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	switch driverName(cfg.Driver) {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name), nil
	case "sqlite3":
		return "", fmt.Errorf("sqlite requires an explicit dsn")
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name), nil
	}
}
