// Package backup snapshots a collection before a destructive script runs.
package backup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/mongorun/internal/common"
	"github.com/loykin/mongorun/internal/constants"
	"github.com/loykin/mongorun/internal/docstore"
)

// Request describes one snapshot.
type Request struct {
	Collection string
	Ticket     string
	// TargetDatabase receives the copy; empty means the source database.
	TargetDatabase string
}

// Result names the copy that was written.
type Result struct {
	Database   string
	Collection string
}

// Manager copies collections out with an aggregation $out stage. Copies are
// full snapshots, not diffs.
type Manager struct {
	db  docstore.Database
	now func() time.Time
}

// NewManager returns a manager bound to db.
func NewManager(db docstore.Database) *Manager {
	return &Manager{db: db, now: time.Now}
}

// WithClock replaces the clock used to stamp backup names.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Name returns "{collection}_backup_{ticket}_{yyyyMMddHHmmss}". Two backups of
// the same ticket within one second share a name and the later one wins.
func Name(collection, ticket string, at time.Time) string {
	return collection + constants.BackupInfix + ticket + "_" + at.Format(constants.BackupTimestampLayout)
}

// Backup copies req.Collection into a freshly named collection. Any error is
// returned unchanged in meaning; a partial copy is never reported as success.
func (m *Manager) Backup(ctx context.Context, req Request) (Result, error) {
	name := Name(req.Collection, req.Ticket, m.now())
	target := strings.TrimSpace(req.TargetDatabase)
	res := Result{Database: target, Collection: name}
	if res.Database == "" {
		res.Database = m.db.Name()
	}

	logger := common.GetLogger().WithComponent("backup").WithCollection(req.Collection)
	logger.Info("auto backup begin", "ticket", req.Ticket, "target_database", res.Database, "target_collection", name)

	if err := m.db.Collection(req.Collection).AggregateOut(ctx, nil, target, name); err != nil {
		logger.Error("auto backup failed", "error", err, "target_collection", name)
		return Result{}, fmt.Errorf("backup of %s into %s.%s failed: %w", req.Collection, res.Database, name, err)
	}

	logger.Info("auto backup end", "ticket", req.Ticket, "target_database", res.Database, "target_collection", name)
	return res, nil
}
