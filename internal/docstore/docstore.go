// Package docstore defines the narrow document store surface the migration
// engine and migration scripts work against, plus a MongoDB implementation.
package docstore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

// ErrNoDocuments is returned by FindOne when nothing matches the filter.
var ErrNoDocuments = errors.New("docstore: no documents")

// IndexSpec describes a secondary index.
type IndexSpec struct {
	Keys   bson.D
	Name   string
	Unique bool
}

// Ascending builds an IndexSpec with every field ascending.
func Ascending(fields ...string) IndexSpec {
	keys := make(bson.D, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: 1})
	}
	return IndexSpec{Keys: keys}
}

// UpdateResult reports matched and modified document counts.
type UpdateResult struct {
	Matched  int64
	Modified int64
	Upserted int64
}

// FindOptions narrows a Find.
type FindOptions struct {
	Sort  bson.D
	Limit int64
}

// Database is a whole-database handle.
type Database interface {
	Name() string
	Collection(name string) Collection
	ListCollectionNames(ctx context.Context) ([]string, error)
}

// Collection is a single-collection handle.
type Collection interface {
	Name() string
	DatabaseName() string
	CreateIndex(ctx context.Context, spec IndexSpec) (string, error)
	CountDocuments(ctx context.Context, filter any) (int64, error)
	InsertMany(ctx context.Context, docs []any) error
	UpdateMany(ctx context.Context, filter, update any) (UpdateResult, error)
	ReplaceOne(ctx context.Context, filter, doc any, upsert bool) (UpdateResult, error)
	// Find decodes every matching document into results, which must be a
	// pointer to a slice.
	Find(ctx context.Context, filter any, results any, opts *FindOptions) error
	// FindOne decodes the first matching document into result.
	FindOne(ctx context.Context, filter any, result any) error
	// AggregateOut runs pipeline and materializes its output into
	// targetCollection, in targetDatabase when non-empty.
	AggregateOut(ctx context.Context, pipeline []bson.D, targetDatabase, targetCollection string) error
}

// MatchAll is the empty filter.
func MatchAll() bson.D { return bson.D{} }
