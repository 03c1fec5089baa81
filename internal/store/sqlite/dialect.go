package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/mongorun/internal/constants"
	_ "modernc.org/sqlite"
)

// Dialect implements SQL dialect for SQLite
type Dialect struct{}

// NewDialect creates a new SQLite dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// GetPlaceholder returns SQLite-style placeholders (?)
func (s *Dialect) GetPlaceholder(int) string {
	return "?"
}

// ConvertBoolToStorage converts bool to SQLite storage format (integer 0/1)
func (s *Dialect) ConvertBoolToStorage(b bool) interface{} {
	if b {
		return 1
	}
	return 0
}

// timeLayout is fixed width so created_time sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ConvertTimeToStorage converts time to SQLite storage format (fixed width UTC text)
func (s *Dialect) ConvertTimeToStorage(t time.Time) interface{} {
	return t.UTC().Format(timeLayout)
}

// ConvertBoolFromStorage converts SQLite integer storage to bool
func (s *Dialect) ConvertBoolFromStorage(val interface{}) bool {
	switch i := val.(type) {
	case int64:
		return i != 0
	case int:
		return i != 0
	case bool:
		return i
	}
	return false
}

// ConvertTimeFromStorage parses SQLite timestamp text
func (s *Dialect) ConvertTimeFromStorage(val interface{}) time.Time {
	var str string
	switch v := val.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	case time.Time:
		return v.UTC()
	default:
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// Connect establishes a connection to SQLite with connection pooling
func (s *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	// SQLite allows only one writer
	db.SetMaxOpenConns(constants.DefaultSQLiteMaxConnections)
	db.SetMaxIdleConns(constants.DefaultSQLiteMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultSQLiteLifetime)
	db.SetConnMaxIdleTime(constants.DefaultSQLiteIdleTime)

	return db, nil
}

// GetEnsureStatements returns SQLite-specific table and index creation statements
func (s *Dialect) GetEnsureStatements(table string) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, collection TEXT NOT NULL, ticket TEXT NOT NULL, description TEXT NOT NULL DEFAULT '', is_success INTEGER NOT NULL DEFAULT 0, elapsed_time INTEGER NOT NULL DEFAULT 0, created_time TEXT NOT NULL)", table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_collection ON %s(collection)", table, table),
	}
}

// GetUpsertStatement returns the record upsert keyed on id
func (s *Dialect) GetUpsertStatement(table string) string {
	return fmt.Sprintf("INSERT INTO %s(id, collection, ticket, description, is_success, elapsed_time, created_time) VALUES(?, ?, ?, ?, ?, ?, ?) "+
		"ON CONFLICT(id) DO UPDATE SET collection=excluded.collection, ticket=excluded.ticket, description=excluded.description, "+
		"is_success=excluded.is_success, elapsed_time=excluded.elapsed_time, created_time=excluded.created_time", table)
}

// GetDriverName returns the driver name for logging
func (s *Dialect) GetDriverName() string {
	return constants.DriverSqlite
}

// IsMissingTable reports whether err says the ledger table was never created.
func (s *Dialect) IsMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
