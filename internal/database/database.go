package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/ferreiramx/smart-events/internal/logging"
)

// Connect opens a connection pool to the analytics warehouse and verifies
// it with a ping. The returned handle is passed explicitly to the stores
// that need it and closed by the caller on shutdown; there is no package
// level singleton.
func Connect(databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL cannot be empty")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// The dashboard is read-only and request-scoped; keep the pool small
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logging.L().Info("warehouse connected")
	return db, nil
}
