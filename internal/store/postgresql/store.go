package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/mongorun/internal/common"
	"github.com/loykin/mongorun/internal/store/connector"
)

// Store keeps the script history ledger in a PostgreSQL table.
type Store struct {
	db      *sql.DB
	dialect *Dialect
	table   string
	now     func() time.Time
}

var _ connector.Connector = (*Store)(nil)

// Open connects to the PostgreSQL database described by cfg.
func Open(cfg Config, table string) (*Store, error) {
	name, err := connector.TableName(table)
	if err != nil {
		return nil, err
	}
	dsn, err := cfg.ConnString()
	if err != nil {
		return nil, err
	}
	s := &Store{dialect: NewDialect(), table: name, now: time.Now}
	db, err := s.dialect.Connect(dsn)
	if err != nil {
		return nil, err
	}
	s.db = db

	logger := common.GetLogger().WithStore(s.dialect.GetDriverName())
	logger.Info("PostgreSQL history store connection established", "table", name)
	return s, nil
}

// NewWithDB wraps an existing handle.
func NewWithDB(db *sql.DB, table string) (*Store, error) {
	name, err := connector.TableName(table)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, dialect: NewDialect(), table: name, now: time.Now}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EnsureIndex creates the ledger table and its collection index
func (s *Store) EnsureIndex(ctx context.Context) error {
	logger := common.GetLogger().WithStore(s.dialect.GetDriverName())
	logger.Debug("ensuring PostgreSQL history schema", "table", s.table)

	for i, q := range s.dialect.GetEnsureStatements(s.table) {
		logger.Debug("executing schema creation statement", "statement_index", i+1, "sql", q)
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			logger.Error("failed to ensure history schema", "error", err, "statement_index", i+1)
			return fmt.Errorf("failed to ensure history schema (statement %d): %w", i+1, err)
		}
	}
	return nil
}

// HasSucceeded reports whether a successful record exists for id
func (s *Store) HasSucceeded(ctx context.Context, id string) (bool, error) {
	q := fmt.Sprintf("SELECT is_success FROM %s WHERE id = %s", s.table, s.dialect.GetPlaceholder(1))
	var raw interface{}
	err := s.db.QueryRowContext(ctx, q, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || s.dialect.IsMissingTable(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read history record %s: %w", id, err)
	}
	return s.dialect.ConvertBoolFromStorage(raw), nil
}

// Record upserts rec keyed on its id
func (s *Store) Record(ctx context.Context, rec connector.Record) error {
	logger := common.GetLogger().WithStore(s.dialect.GetDriverName())
	rec.CreatedTime = s.now().UTC()
	_, err := s.db.ExecContext(ctx, s.dialect.GetUpsertStatement(s.table),
		rec.ID, rec.Collection, rec.Ticket, rec.Description,
		s.dialect.ConvertBoolToStorage(rec.IsSuccess), rec.ElapsedTime,
		s.dialect.ConvertTimeToStorage(rec.CreatedTime))
	if err != nil {
		logger.Error("failed to write history record", "error", err, "script_id", rec.ID)
		return fmt.Errorf("failed to write history record %s: %w", rec.ID, err)
	}
	logger.Debug("history record written", "script_id", rec.ID, "success", rec.IsSuccess)
	return nil
}

// Get returns the record for id
func (s *Store) Get(ctx context.Context, id string) (connector.Record, bool, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = %s", columns, s.table, s.dialect.GetPlaceholder(1))
	rec, err := s.scan(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) || s.dialect.IsMissingTable(err) {
		return connector.Record{}, false, nil
	}
	if err != nil {
		return connector.Record{}, false, fmt.Errorf("failed to read history record %s: %w", id, err)
	}
	return rec, true, nil
}

// List returns records matching f ordered by created_time
func (s *Store) List(ctx context.Context, f connector.Filter) ([]connector.Record, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Collection != "" {
		args = append(args, f.Collection)
		where = append(where, "collection = "+s.dialect.GetPlaceholder(len(args)))
	}
	if f.FailedOnly {
		args = append(args, s.dialect.ConvertBoolToStorage(false))
		where = append(where, "is_success = "+s.dialect.GetPlaceholder(len(args)))
	}
	q := fmt.Sprintf("SELECT %s FROM %s", columns, s.table)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_time ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if s.dialect.IsMissingTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list history records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []connector.Record
	for rows.Next() {
		rec, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const columns = "id, collection, ticket, description, is_success, elapsed_time, created_time"

type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scan(row scanner) (connector.Record, error) {
	var (
		rec     connector.Record
		success interface{}
		created interface{}
	)
	if err := row.Scan(&rec.ID, &rec.Collection, &rec.Ticket, &rec.Description, &success, &rec.ElapsedTime, &created); err != nil {
		return connector.Record{}, err
	}
	rec.IsSuccess = s.dialect.ConvertBoolFromStorage(success)
	rec.CreatedTime = s.dialect.ConvertTimeFromStorage(created)
	return rec, nil
}
