// Package db provides structured access and database migrations for the
// SQLite persistence layer: tenants, monitored endpoints, health checks,
// outages and uptime rollups.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound indicates the requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
	path string
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		// Ensure directory exists
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to :memory: would get its own database, so
	// pin in-memory databases to a single connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		DB:   db,
		path: dbPath,
	}, nil
}

// Migrate runs database migrations
func (db *DB) Migrate() error {
	migrations := []string{
		// Tenants
		`CREATE TABLE IF NOT EXISTS tenants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT UNIQUE NOT NULL,
			company_name TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		// Monitored endpoints
		`CREATE TABLE IF NOT EXISTS service_endpoints (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tenant_id TEXT NOT NULL,
			service_name TEXT NOT NULL,
			url TEXT NOT NULL,
			check_interval_seconds INTEGER NOT NULL DEFAULT 30,
			timeout_seconds INTEGER NOT NULL DEFAULT 10,
			expected_status_code INTEGER NOT NULL DEFAULT 200,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		// Probe results, append-only
		`CREATE TABLE IF NOT EXISTS health_checks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			endpoint_id INTEGER NOT NULL,
			tenant_id TEXT NOT NULL,
			service_name TEXT NOT NULL,
			status TEXT NOT NULL,
			response_time_ms INTEGER NOT NULL DEFAULT 0,
			status_code INTEGER,
			error_message TEXT,
			checked_at DATETIME NOT NULL,
			FOREIGN KEY (endpoint_id) REFERENCES service_endpoints(id)
		)`,
		// Outages
		`CREATE TABLE IF NOT EXISTS outages (
			id TEXT PRIMARY KEY,
			endpoint_id INTEGER NOT NULL,
			tenant_id TEXT NOT NULL,
			service_name TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			duration_seconds INTEGER,
			failure_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'ongoing',
			ai_analysis TEXT,
			FOREIGN KEY (endpoint_id) REFERENCES service_endpoints(id)
		)`,
		// Uptime rollups, one row per bucket
		`CREATE TABLE IF NOT EXISTS uptime_summary (
			endpoint_id INTEGER NOT NULL,
			tenant_id TEXT NOT NULL,
			service_name TEXT NOT NULL,
			period_start DATETIME NOT NULL,
			period_type TEXT NOT NULL,
			total_checks INTEGER NOT NULL,
			successful_checks INTEGER NOT NULL,
			uptime_percentage REAL NOT NULL,
			avg_response_ms INTEGER NOT NULL,
			min_response_ms INTEGER NOT NULL,
			max_response_ms INTEGER NOT NULL,
			UNIQUE (endpoint_id, period_start, period_type)
		)`,
		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_endpoints_active ON service_endpoints(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_checks_endpoint_time ON health_checks(endpoint_id, checked_at)`,
		`CREATE INDEX IF NOT EXISTS idx_outages_endpoint_status ON outages(endpoint_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_uptime_tenant ON uptime_summary(tenant_id, period_start)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
