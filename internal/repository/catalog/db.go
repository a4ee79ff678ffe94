// Package catalog is the SQL store of collections, documents and
// templates. It runs on PostgreSQL (lib/pq) and on SQLite (modernc).
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

//go:embed schema.sql
var schema string

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds catalog connection parameters.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
}

// Repo implements the catalog over sqlx. Queries are written with "?"
// placeholders and rebound for the driver.
type Repo struct {
	db *sqlx.DB
}

// Open connects to the catalog database and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Repo, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported catalog driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("catalog dsn is required")
	}

	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect catalog: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.Driver == DriverSQLite {
		// A single connection keeps ":memory:" databases shared and
		// serializes writers.
		db.SetMaxOpenConns(1)
	}
	return &Repo{db: db}, nil
}

// NewFromDB wraps an existing connection.
func NewFromDB(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates the schema. It is idempotent.
func (r *Repo) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate catalog: %w", err)
		}
	}
	return nil
}

// Ping checks the connection.
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the connection pool.
func (r *Repo) Close() error {
	return r.db.Close()
}
