package constants

import (
	"net/http"
	"time"
)

// Migration catalog constants
const (
	// UnorderedScript is the order value of a script that declares no explicit order.
	UnorderedScript = -1

	// NoTestMethod disables the verification routine of a script.
	NoTestMethod = "none"

	// DefaultEnvironment is used when no run environment is configured.
	DefaultEnvironment = "dev"

	// EnvironmentVariable holds the run environment when no explicit value is given.
	EnvironmentVariable = "MONGORUN_ENV"
)

// History ledger constants
const (
	// DefaultHistoryCollection is the collection (or table) holding history records.
	DefaultHistoryCollection = "flyway_script_histories"

	// HistoryIndexField is the secondary index created on the ledger.
	HistoryIndexField = "collection"

	DriverMongo      = "mongo"
	DriverSqlite     = "sqlite"
	DriverPostgresql = "postgresql"

	// DefaultHistoryWriteTimeout bounds a history write, which runs even after
	// the run context is cancelled.
	DefaultHistoryWriteTimeout = 30 * time.Second

	// SQLite file used when the sqlite driver is selected without a path.
	DefaultSqliteFile = "mongorun.db"
)

// Database Constants
const (
	// PostgreSQL defaults
	DefaultPostgresPort    = 5432
	DefaultPostgresSSLMode = "disable"

	// Connection pool settings
	DefaultPostgresMaxConnections = 5
	DefaultPostgresMaxIdleConns   = 2
	DefaultSQLiteMaxConnections   = 1 // SQLite allows only one writer
	DefaultSQLiteMaxIdleConns     = 1

	// MongoDB defaults
	DefaultMongoAppName        = "mongorun"
	DefaultMongoConnectTimeout = 10 * time.Second
)

// Backup naming
const (
	BackupInfix           = "_backup_"
	BackupTimestampLayout = "20060102150405"
)

// Time and Duration Constants
const (
	// Connection pool lifetimes
	DefaultMaxConnLifetime = 5 * time.Minute
	DefaultMaxIdleTime     = 1 * time.Minute
	DefaultSQLiteLifetime  = 10 * time.Minute
	DefaultSQLiteIdleTime  = 5 * time.Minute
)

// Wait Configuration Constants
const (
	DefaultWaitTimeout  = 60 * time.Second
	DefaultWaitInterval = 2 * time.Second
	DefaultWaitStatus   = http.StatusOK
	DefaultWaitMethod   = "GET"
)

// Server defaults
const (
	DefaultServerAddr = ":8089"
)
