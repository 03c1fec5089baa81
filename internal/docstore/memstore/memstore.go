// Package memstore is an in-memory docstore.Database. It understands the
// subset of the query language the engine and its tests use: equality,
// $eq $ne $exists $in $nin $gt $gte $lt $lte $and $or filters, $set $unset
// $inc updates, and $match pipelines materialized with AggregateOut.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/loykin/mongorun/internal/docstore"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Operation names accepted by Database.Fail.
const (
	OpIndex     = "index"
	OpCount     = "count"
	OpInsert    = "insert"
	OpUpdate    = "update"
	OpReplace   = "replace"
	OpFind      = "find"
	OpAggregate = "aggregate"
)

type collection struct {
	docs    []bson.M
	indexes []docstore.IndexSpec
}

// Server groups databases so AggregateOut can target a sibling database.
type Server struct {
	mu       sync.Mutex
	dbs      map[string]map[string]*collection
	failures map[string]error
}

// NewServer returns an empty server.
func NewServer() *Server {
	return &Server{dbs: map[string]map[string]*collection{}, failures: map[string]error{}}
}

// New returns a database on a fresh server.
func New(name string) *Database {
	return NewServer().Database(name)
}

// Database returns the named database on s.
func (s *Server) Database(name string) *Database {
	return &Database{server: s, name: name}
}

// Database implements docstore.Database.
type Database struct {
	server *Server
	name   string
}

var _ docstore.Database = (*Database)(nil)

func (d *Database) Name() string { return d.name }

// Server returns the owning server.
func (d *Database) Server() *Server { return d.server }

func (d *Database) Collection(name string) docstore.Collection {
	return &Collection{db: d, name: name}
}

func (d *Database) ListCollectionNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.server.mu.Lock()
	defer d.server.mu.Unlock()
	names := make([]string, 0, len(d.server.dbs[d.name]))
	for n := range d.server.dbs[d.name] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Fail makes every subsequent op on collection return err. A nil err clears it.
func (d *Database) Fail(collection, op string, err error) {
	d.server.mu.Lock()
	defer d.server.mu.Unlock()
	key := d.name + "." + collection + ":" + op
	if err == nil {
		delete(d.server.failures, key)
		return
	}
	d.server.failures[key] = err
}

// Indexes returns the index specs created on collection.
func (d *Database) Indexes(collection string) []docstore.IndexSpec {
	d.server.mu.Lock()
	defer d.server.mu.Unlock()
	c := d.server.dbs[d.name][collection]
	if c == nil {
		return nil
	}
	out := make([]docstore.IndexSpec, len(c.indexes))
	copy(out, c.indexes)
	return out
}

// Collection implements docstore.Collection.
type Collection struct {
	db   *Database
	name string
}

var _ docstore.Collection = (*Collection)(nil)

func (c *Collection) Name() string { return c.name }

func (c *Collection) DatabaseName() string { return c.db.name }

// lock fails with ctx.Err() once ctx is done. Otherwise it acquires the
// server lock and returns the collection data, creating it when create is set.
// The caller must unlock.
func (c *Collection) lock(ctx context.Context, op string, create bool) (*collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := c.db.server
	s.mu.Lock()
	if err := s.failures[c.db.name+"."+c.name+":"+op]; err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return s.coll(c.db.name, c.name, create), nil
}

func (s *Server) coll(db, name string, create bool) *collection {
	colls := s.dbs[db]
	if colls == nil {
		if !create {
			return nil
		}
		colls = map[string]*collection{}
		s.dbs[db] = colls
	}
	col := colls[name]
	if col == nil && create {
		col = &collection{}
		colls[name] = col
	}
	return col
}

func (c *Collection) CreateIndex(ctx context.Context, spec docstore.IndexSpec) (string, error) {
	col, err := c.lock(ctx, OpIndex, true)
	if err != nil {
		return "", err
	}
	defer c.db.server.mu.Unlock()
	name := spec.Name
	if name == "" {
		parts := make([]string, 0, len(spec.Keys)*2)
		for _, k := range spec.Keys {
			parts = append(parts, k.Key, fmt.Sprint(k.Value))
		}
		name = strings.Join(parts, "_")
	}
	for _, existing := range col.indexes {
		if existing.Name == name {
			return name, nil
		}
	}
	spec.Name = name
	col.indexes = append(col.indexes, spec)
	return name, nil
}

func (c *Collection) CountDocuments(ctx context.Context, filter any) (int64, error) {
	f, err := toFilter(filter)
	if err != nil {
		return 0, err
	}
	col, err := c.lock(ctx, OpCount, false)
	if err != nil {
		return 0, err
	}
	defer c.db.server.mu.Unlock()
	if col == nil {
		return 0, nil
	}
	var n int64
	for _, doc := range col.docs {
		if matches(doc, f) {
			n++
		}
	}
	return n, nil
}

func (c *Collection) InsertMany(ctx context.Context, docs []any) error {
	normalized := make([]bson.M, 0, len(docs))
	for _, d := range docs {
		m, err := toDoc(d)
		if err != nil {
			return err
		}
		if _, ok := m["_id"]; !ok {
			m["_id"] = primitive.NewObjectID()
		}
		normalized = append(normalized, m)
	}
	col, err := c.lock(ctx, OpInsert, true)
	if err != nil {
		return err
	}
	defer c.db.server.mu.Unlock()
	for _, m := range normalized {
		if col.indexOfID(m["_id"]) >= 0 {
			return fmt.Errorf("E11000 duplicate key error collection: %s.%s _id: %v", c.db.name, c.name, m["_id"])
		}
		col.docs = append(col.docs, m)
	}
	return nil
}

func (c *Collection) UpdateMany(ctx context.Context, filter, update any) (docstore.UpdateResult, error) {
	f, err := toFilter(filter)
	if err != nil {
		return docstore.UpdateResult{}, err
	}
	u, err := toFilter(update)
	if err != nil {
		return docstore.UpdateResult{}, err
	}
	col, err := c.lock(ctx, OpUpdate, false)
	if err != nil {
		return docstore.UpdateResult{}, err
	}
	defer c.db.server.mu.Unlock()
	var res docstore.UpdateResult
	if col == nil {
		return res, nil
	}
	for i, doc := range col.docs {
		if !matches(doc, f) {
			continue
		}
		res.Matched++
		before := copyDoc(doc)
		if err := applyUpdate(doc, u); err != nil {
			return res, err
		}
		if !reflect.DeepEqual(before, doc) {
			res.Modified++
		}
		col.docs[i] = doc
	}
	return res, nil
}

func (c *Collection) ReplaceOne(ctx context.Context, filter, doc any, upsert bool) (docstore.UpdateResult, error) {
	f, err := toFilter(filter)
	if err != nil {
		return docstore.UpdateResult{}, err
	}
	replacement, err := toDoc(doc)
	if err != nil {
		return docstore.UpdateResult{}, err
	}
	col, err := c.lock(ctx, OpReplace, upsert)
	if err != nil {
		return docstore.UpdateResult{}, err
	}
	defer c.db.server.mu.Unlock()
	if col != nil {
		for i, existing := range col.docs {
			if !matches(existing, f) {
				continue
			}
			replacement["_id"] = existing["_id"]
			col.docs[i] = replacement
			return docstore.UpdateResult{Matched: 1, Modified: 1}, nil
		}
	}
	if !upsert {
		return docstore.UpdateResult{}, nil
	}
	if _, ok := replacement["_id"]; !ok {
		if id, ok := equalityValue(f, "_id"); ok {
			replacement["_id"] = id
		} else {
			replacement["_id"] = primitive.NewObjectID()
		}
	}
	col.docs = append(col.docs, replacement)
	return docstore.UpdateResult{Upserted: 1}, nil
}

func (c *Collection) Find(ctx context.Context, filter any, results any, opts *docstore.FindOptions) error {
	f, err := toFilter(filter)
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(results)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return errors.New("memstore: results argument must be a pointer to a slice")
	}
	col, err := c.lock(ctx, OpFind, false)
	if err != nil {
		return err
	}
	var found []bson.M
	if col != nil {
		for _, doc := range col.docs {
			if matches(doc, f) {
				found = append(found, copyDoc(doc))
			}
		}
	}
	c.db.server.mu.Unlock()

	if opts != nil && len(opts.Sort) > 0 {
		sortDocs(found, opts.Sort)
	}
	if opts != nil && opts.Limit > 0 && int64(len(found)) > opts.Limit {
		found = found[:opts.Limit]
	}

	slice := rv.Elem()
	elemType := slice.Type().Elem()
	out := reflect.MakeSlice(slice.Type(), 0, len(found))
	for _, doc := range found {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return err
		}
		ptr := reflect.New(elemType)
		if err := bson.Unmarshal(raw, ptr.Interface()); err != nil {
			return err
		}
		out = reflect.Append(out, ptr.Elem())
	}
	slice.Set(out)
	return nil
}

func (c *Collection) FindOne(ctx context.Context, filter any, result any) error {
	var docs []bson.M
	if err := c.Find(ctx, filter, &docs, &docstore.FindOptions{Limit: 1}); err != nil {
		return err
	}
	if len(docs) == 0 {
		return docstore.ErrNoDocuments
	}
	raw, err := bson.Marshal(docs[0])
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, result)
}

func (c *Collection) AggregateOut(ctx context.Context, pipeline []bson.D, targetDatabase, targetCollection string) error {
	var filters []bson.D
	for _, stage := range pipeline {
		if len(stage) != 1 || stage[0].Key != "$match" {
			return fmt.Errorf("memstore: unsupported pipeline stage %v", stage)
		}
		f, err := toFilter(stage[0].Value)
		if err != nil {
			return err
		}
		filters = append(filters, f)
	}
	if targetCollection == "" {
		return errors.New("memstore: $out requires a target collection")
	}
	targetDB := targetDatabase
	if targetDB == "" {
		targetDB = c.db.name
	}

	col, err := c.lock(ctx, OpAggregate, false)
	if err != nil {
		return err
	}
	defer c.db.server.mu.Unlock()
	var copied []bson.M
	if col != nil {
		for _, doc := range col.docs {
			ok := true
			for _, f := range filters {
				if !matches(doc, f) {
					ok = false
					break
				}
			}
			if ok {
				copied = append(copied, copyDoc(doc))
			}
		}
	}
	target := c.db.server.coll(targetDB, targetCollection, true)
	target.docs = copied
	return nil
}

func (col *collection) indexOfID(id any) int {
	for i, d := range col.docs {
		if valuesEqual(d["_id"], id) {
			return i
		}
	}
	return -1
}

func toDoc(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("memstore: cannot encode document: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("memstore: cannot decode document: %w", err)
	}
	return m, nil
}

func toFilter(v any) (bson.D, error) {
	if v == nil {
		return bson.D{}, nil
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("memstore: cannot encode filter: %w", err)
	}
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("memstore: cannot decode filter: %w", err)
	}
	return d, nil
}

func copyDoc(m bson.M) bson.M {
	out, err := toDoc(m)
	if err != nil {
		return m
	}
	return out
}
