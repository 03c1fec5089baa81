// Package mongorun applies registered MongoDB migration scripts in order,
// exactly once per script unless forced, and keeps a history ledger.
package mongorun

import (
	"context"
	"errors"
	"fmt"

	"github.com/loykin/mongorun/internal/catalog"
	"github.com/loykin/mongorun/internal/common"
	"github.com/loykin/mongorun/internal/docstore"
	"github.com/loykin/mongorun/internal/env"
	imig "github.com/loykin/mongorun/internal/migration"
	"github.com/loykin/mongorun/internal/retry"
	"github.com/loykin/mongorun/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/multierr"
)

// Re-export commonly used types for public API

type (
	// Database is the handle database-level scripts receive.
	Database = docstore.Database
	// Collection is the handle collection-level scripts receive.
	Collection  = docstore.Collection
	IndexSpec   = docstore.IndexSpec
	MongoConfig = docstore.Config

	Group         = catalog.Group
	ScriptOptions = catalog.ScriptOptions
	Registry      = catalog.Registry
	Plan          = catalog.Plan

	DatabaseScript   = catalog.DatabaseScript
	CollectionScript = catalog.CollectionScript
	DatabaseCheck    = catalog.DatabaseCheck
	CollectionCheck  = catalog.CollectionCheck

	Report         = imig.Report
	Result         = imig.Result
	Outcome        = imig.Outcome
	ExecutionError = imig.ExecutionError

	Store          = store.Store
	StoreConfig    = store.Config
	Record         = store.Record
	Filter         = store.Filter
	SqliteConfig   = store.SqliteConfig
	PostgresConfig = store.PostgresConfig
)

const (
	Unordered = catalog.Unordered
	NoTest    = catalog.NoTest

	Executed           = imig.Executed
	SkippedEnvironment = imig.SkippedEnvironment
	SkippedApplied     = imig.SkippedApplied
	Failed             = imig.Failed
	Pending            = imig.Pending

	DriverMongo      = store.DriverMongo
	DriverSqlite     = store.DriverSqlite
	DriverPostgresql = store.DriverPostgresql
)

// Failure kinds, matched with errors.Is.
var (
	ErrConfiguration = imig.ErrConfiguration
	ErrBackup        = imig.ErrBackup
	ErrInvocation    = imig.ErrInvocation
	ErrVerification  = imig.ErrVerification
	ErrHistoryStore  = imig.ErrHistoryStore
)

// NewGroup starts the script group of collection.
func NewGroup(collection string) *Group { return catalog.NewGroup(collection) }

// Opts starts script options with no order, no verification and no gates.
func Opts(ticket, description string) ScriptOptions { return catalog.Opts(ticket, description) }

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return catalog.NewRegistry() }

// Register files groups under pkg in the process-global registry, for init
// time registration. Use NewRegistry for a caller-owned table.
func Register(pkg string, groups ...*Group) { catalog.Register(pkg, groups...) }

// ScriptID returns the ledger key "{collection}_{ticket}_{script}".
func ScriptID(collection, ticket, script string) string {
	return catalog.ScriptID(collection, ticket, script)
}

// Ascending builds an ascending index over fields.
func Ascending(fields ...string) IndexSpec { return docstore.Ascending(fields...) }

// RawDatabase returns the driver handle behind db, for scripts that need the
// full driver API. ok is false when db is not MongoDB-backed.
func RawDatabase(db Database) (raw *mongo.Database, ok bool) { return docstore.RawDatabase(db) }

// RawCollection is RawDatabase for a single collection handle.
func RawCollection(c Collection) (raw *mongo.Collection, ok bool) { return docstore.RawCollection(c) }

// Migrator wires a connection, a ledger and a registry into one run.
type Migrator struct {
	Mongo MongoConfig
	// Database is used instead of dialing Mongo when set. It is not closed.
	Database Database
	// Env is the run environment; empty falls back to MONGORUN_ENV, then "dev".
	Env string
	// Package selects registered groups by package path prefix; empty selects all.
	Package string
	// Registry is the caller-owned script table. When nil the process-global
	// registry filled by Register is used.
	Registry *Registry
	History  StoreConfig
	// Wait, when set, retries the initial ping with this budget.
	Wait *retry.Config
}

// session holds the resources of one Migrate, Plan or Execute call.
type session struct {
	db     Database
	ledger Store
	close  []func() error
}

func (s *session) Close() error {
	var err error
	for i := len(s.close) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.close[i]())
	}
	return err
}

// ledgerMode says how connect opens the history store.
type ledgerMode int

const (
	noLedger ledgerMode = iota
	// readLedger opens the ledger without creating its table or index.
	readLedger
	writeLedger
)

func (m *Migrator) connect(ctx context.Context, mode ledgerMode) (*session, error) {
	s := &session{db: m.Database}
	if s.db == nil {
		client, err := docstore.Connect(ctx, m.Mongo)
		if err != nil && m.Wait != nil {
			common.LogWarn("mongo not ready, waiting", "error", err)
			err = retry.WithRetry(ctx, m.Wait, func() error {
				var cerr error
				client, cerr = docstore.Connect(ctx, m.Mongo)
				return cerr
			})
		}
		if err != nil {
			return nil, err
		}
		s.db = client.Database()
		s.close = append(s.close, func() error { return client.Close(context.Background()) })
	}
	if mode == noLedger {
		return s, nil
	}
	st, err := store.Open(m.History, s.db)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to open history store: %w", err), s.Close())
	}
	s.ledger = st
	s.close = append(s.close, st.Close)
	if mode == readLedger {
		return s, nil
	}
	if err := st.EnsureIndex(ctx); err != nil {
		return nil, multierr.Append(&imig.ExecutionError{Kind: ErrHistoryStore, Err: err}, s.Close())
	}
	return s, nil
}

func (m *Migrator) plan() (Plan, error) {
	reg := m.Registry
	if reg == nil {
		reg = catalog.Default
	}
	plan, err := reg.Build(m.Package)
	if err != nil {
		return Plan{}, imig.NewConfigurationError(err)
	}
	return plan, nil
}

// Migrate builds the catalog, opens the connection and the ledger, runs every
// pending script and releases the resources on every exit path.
func (m *Migrator) Migrate(ctx context.Context) (report *Report, err error) {
	plan, err := m.plan()
	if err != nil {
		return nil, err
	}
	s, err := m.connect(ctx, writeLedger)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, s.Close()) }()

	runner := imig.NewRunner(s.db, s.ledger, env.Resolve(m.Env))
	return runner.Run(ctx, plan)
}

// Plan reports what Migrate would do without invoking or recording anything.
// The ledger is only read; a ledger that does not exist yet reads as empty.
func (m *Migrator) Plan(ctx context.Context) (report *Report, err error) {
	plan, err := m.plan()
	if err != nil {
		return nil, err
	}
	s, err := m.connect(ctx, readLedger)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, s.Close()) }()

	runner := imig.NewRunner(s.db, s.ledger, env.Resolve(m.Env))
	return runner.Plan(ctx, plan)
}

// Execute runs fn once against the database with no history record.
func (m *Migrator) Execute(ctx context.Context, fn func(context.Context, Database) error) (err error) {
	if fn == nil {
		return errors.New("execute: nil operation")
	}
	s, err := m.connect(ctx, noLedger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, s.Close()) }()
	return fn(ctx, s.db)
}

// OpenStore opens the ledger described by cfg. db is required for the mongo driver.
func OpenStore(cfg StoreConfig, db Database) (Store, error) { return store.Open(cfg, db) }
