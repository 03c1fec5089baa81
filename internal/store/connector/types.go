package connector

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/loykin/mongorun/internal/constants"
)

// Record is one ledger entry, keyed by script id. It is upserted on every
// execution attempt, failed attempts included.
type Record struct {
	ID          string    `bson:"_id" json:"id"`
	Collection  string    `bson:"collection" json:"collection"`
	Ticket      string    `bson:"ticket" json:"ticket"`
	Description string    `bson:"description" json:"description"`
	IsSuccess   bool      `bson:"is_success" json:"is_success"`
	ElapsedTime int64     `bson:"elapsed_time" json:"elapsed_time"` // milliseconds
	CreatedTime time.Time `bson:"created_time" json:"created_time"`
}

// Filter narrows List. Zero value lists everything.
type Filter struct {
	Collection string
	FailedOnly bool
}

// Connector is implemented by every ledger backend.
type Connector interface {
	// EnsureIndex prepares the ledger and its collection index. Idempotent.
	EnsureIndex(ctx context.Context) error
	// HasSucceeded reports whether id has a record with IsSuccess set.
	HasSucceeded(ctx context.Context, id string) (bool, error)
	// Record upserts rec by ID, stamping CreatedTime with the write time.
	Record(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, bool, error)
	// List returns records ordered by CreatedTime ascending.
	List(ctx context.Context, f Filter) ([]Record, error)
	Close() error
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// TableName returns name, or the default ledger name when empty, and rejects
// anything that is not a plain SQL identifier.
func TableName(name string) (string, error) {
	if name == "" {
		return constants.DefaultHistoryCollection, nil
	}
	if !tableNamePattern.MatchString(name) {
		return "", fmt.Errorf("invalid history table name %q", name)
	}
	return name, nil
}
