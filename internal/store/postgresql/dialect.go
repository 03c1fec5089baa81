package postgresql

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/loykin/mongorun/internal/constants"
)

// Dialect implements SQL dialect for PostgreSQL
type Dialect struct{}

// NewDialect creates a new PostgreSQL dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// GetPlaceholder returns PostgreSQL-style placeholders ($1, $2, etc.)
func (p *Dialect) GetPlaceholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// ConvertBoolToStorage converts bool to PostgreSQL storage format (native bool)
func (p *Dialect) ConvertBoolToStorage(b bool) interface{} {
	return b
}

// ConvertTimeToStorage converts time to PostgreSQL storage format (native time.Time)
func (p *Dialect) ConvertTimeToStorage(t time.Time) interface{} {
	return t.UTC()
}

// ConvertBoolFromStorage converts PostgreSQL bool storage to bool
func (p *Dialect) ConvertBoolFromStorage(val interface{}) bool {
	if b, ok := val.(bool); ok {
		return b
	}
	return false
}

// ConvertTimeFromStorage converts PostgreSQL time storage to UTC time
func (p *Dialect) ConvertTimeFromStorage(val interface{}) time.Time {
	if t, ok := val.(*time.Time); ok && t != nil {
		return t.UTC()
	}
	if t, ok := val.(time.Time); ok {
		return t.UTC()
	}
	return time.Time{}
}

// Connect establishes a connection to PostgreSQL with connection pooling
func (p *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	db.SetMaxOpenConns(constants.DefaultPostgresMaxConnections)
	db.SetMaxIdleConns(constants.DefaultPostgresMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultMaxConnLifetime)
	db.SetConnMaxIdleTime(constants.DefaultMaxIdleTime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}
	return db, nil
}

// GetEnsureStatements returns PostgreSQL-specific table and index creation statements
func (p *Dialect) GetEnsureStatements(table string) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, collection TEXT NOT NULL, ticket TEXT NOT NULL, description TEXT NOT NULL DEFAULT '', is_success BOOLEAN NOT NULL DEFAULT FALSE, elapsed_time BIGINT NOT NULL DEFAULT 0, created_time TIMESTAMPTZ NOT NULL)", table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_collection ON %s(collection)", table, table),
	}
}

// GetUpsertStatement returns the record upsert keyed on id
func (p *Dialect) GetUpsertStatement(table string) string {
	return fmt.Sprintf("INSERT INTO %s(id, collection, ticket, description, is_success, elapsed_time, created_time) VALUES($1, $2, $3, $4, $5, $6, $7) "+
		"ON CONFLICT (id) DO UPDATE SET collection=EXCLUDED.collection, ticket=EXCLUDED.ticket, description=EXCLUDED.description, "+
		"is_success=EXCLUDED.is_success, elapsed_time=EXCLUDED.elapsed_time, created_time=EXCLUDED.created_time", table)
}

// GetDriverName returns the driver name for logging
func (p *Dialect) GetDriverName() string {
	return constants.DriverPostgresql
}

// undefined_table
const codeUndefinedTable = "42P01"

// IsMissingTable reports whether err says the ledger table was never created.
func (p *Dialect) IsMissingTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable
}
