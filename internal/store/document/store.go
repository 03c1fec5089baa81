// Package document keeps the script history ledger in a collection of the
// migrated database itself.
package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loykin/mongorun/internal/common"
	"github.com/loykin/mongorun/internal/constants"
	"github.com/loykin/mongorun/internal/docstore"
	"github.com/loykin/mongorun/internal/store/connector"
	"go.mongodb.org/mongo-driver/bson"
)

type Store struct {
	coll docstore.Collection
	now  func() time.Time
}

var _ connector.Connector = (*Store)(nil)

// New returns a ledger over collection of db, flyway_script_histories when empty.
func New(db docstore.Database, collection string) *Store {
	if collection == "" {
		collection = constants.DefaultHistoryCollection
	}
	return &Store{coll: db.Collection(collection), now: time.Now}
}

// WithClock replaces the write-time clock.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) EnsureIndex(ctx context.Context) error {
	name, err := s.coll.CreateIndex(ctx, docstore.Ascending(constants.HistoryIndexField))
	if err != nil {
		return fmt.Errorf("failed to ensure history index: %w", err)
	}
	common.GetLogger().WithStore(constants.DriverMongo).Debug("history index ensured",
		"collection", s.coll.Name(), "index", name)
	return nil
}

func (s *Store) HasSucceeded(ctx context.Context, id string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}, {Key: "is_success", Value: true}})
	if err != nil {
		return false, fmt.Errorf("failed to read history record %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *Store) Record(ctx context.Context, rec connector.Record) error {
	// BSON dates carry millisecond precision.
	rec.CreatedTime = s.now().UTC().Truncate(time.Millisecond)
	if _, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: rec.ID}}, rec, true); err != nil {
		return fmt.Errorf("failed to write history record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (connector.Record, bool, error) {
	var rec connector.Record
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}, &rec)
	if errors.Is(err, docstore.ErrNoDocuments) {
		return connector.Record{}, false, nil
	}
	if err != nil {
		return connector.Record{}, false, fmt.Errorf("failed to read history record %s: %w", id, err)
	}
	rec.CreatedTime = rec.CreatedTime.UTC()
	return rec, true, nil
}

func (s *Store) List(ctx context.Context, f connector.Filter) ([]connector.Record, error) {
	filter := bson.D{}
	if f.Collection != "" {
		filter = append(filter, bson.E{Key: "collection", Value: f.Collection})
	}
	if f.FailedOnly {
		filter = append(filter, bson.E{Key: "is_success", Value: false})
	}
	var out []connector.Record
	opts := &docstore.FindOptions{Sort: bson.D{{Key: "created_time", Value: 1}, {Key: "_id", Value: 1}}}
	if err := s.coll.Find(ctx, filter, &out, opts); err != nil {
		return nil, fmt.Errorf("failed to list history records: %w", err)
	}
	for i := range out {
		out[i].CreatedTime = out[i].CreatedTime.UTC()
	}
	return out, nil
}

// Close is a no-op: the document store session is owned by the caller.
func (s *Store) Close() error { return nil }
