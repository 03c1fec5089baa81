package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/mongorun/internal/common"
	"github.com/loykin/mongorun/internal/constants"
	"github.com/loykin/mongorun/internal/retry"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"
)

// Config holds the MongoDB connection settings.
type Config struct {
	URI            string
	Database       string // overrides the database named in URI
	AppName        string
	ConnectTimeout time.Duration
}

// DatabaseName returns the configured database, falling back to the one in URI.
func (c Config) DatabaseName() (string, error) {
	if name := strings.TrimSpace(c.Database); name != "" {
		return name, nil
	}
	cs, err := connstring.ParseAndValidate(c.URI)
	if err != nil {
		return "", fmt.Errorf("invalid mongo uri: %w", err)
	}
	if cs.Database == "" {
		return "", errors.New("mongo uri does not name a database and no database is configured")
	}
	return cs.Database, nil
}

// Client owns one MongoDB client for the duration of a run.
type Client struct {
	client   *mongo.Client
	database string
}

// Connect opens a client and verifies the deployment answers a ping.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	dbName, err := cfg.DatabaseName()
	if err != nil {
		return nil, err
	}
	appName := cfg.AppName
	if appName == "" {
		appName = constants.DefaultMongoAppName
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = constants.DefaultMongoConnectTimeout
	}

	logger := common.GetLogger().WithStore("mongo")
	logger.Debug("connecting to mongo", "uri", cfg.URI, "database", dbName)

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	mc, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	c := &Client{client: mc, database: dbName}
	if err := c.Ping(ctx); err != nil {
		_ = mc.Disconnect(context.Background())
		return nil, err
	}
	logger.Info("mongo connection established", "database", dbName)
	return c, nil
}

// Ping checks the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping mongo: %w", err)
	}
	return nil
}

// WaitReady pings until the deployment answers or the retry budget runs out.
func (c *Client) WaitReady(ctx context.Context, cfg *retry.Config) error {
	return retry.WithRetry(ctx, cfg, func() error { return c.Ping(ctx) })
}

// Database returns the configured database handle.
func (c *Client) Database() Database {
	return &MongoDatabase{db: c.client.Database(c.database)}
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect mongo: %w", err)
	}
	return nil
}

// MongoDatabase implements Database over *mongo.Database.
type MongoDatabase struct {
	db *mongo.Database
}

// NewMongoDatabase wraps an existing driver handle.
func NewMongoDatabase(db *mongo.Database) *MongoDatabase {
	return &MongoDatabase{db: db}
}

func (d *MongoDatabase) Name() string { return d.db.Name() }

func (d *MongoDatabase) Collection(name string) Collection {
	return &MongoCollection{coll: d.db.Collection(name)}
}

func (d *MongoDatabase) ListCollectionNames(ctx context.Context) ([]string, error) {
	names, err := d.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections of %s: %w", d.db.Name(), err)
	}
	return names, nil
}

// MongoCollection implements Collection over *mongo.Collection.
type MongoCollection struct {
	coll *mongo.Collection
}

func (c *MongoCollection) Name() string { return c.coll.Name() }

func (c *MongoCollection) DatabaseName() string { return c.coll.Database().Name() }

func (c *MongoCollection) CreateIndex(ctx context.Context, spec IndexSpec) (string, error) {
	idx := options.Index()
	if spec.Name != "" {
		idx.SetName(spec.Name)
	}
	if spec.Unique {
		idx.SetUnique(true)
	}
	name, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: spec.Keys, Options: idx})
	if err != nil {
		return "", fmt.Errorf("failed to create index on %s: %w", c.coll.Name(), err)
	}
	return name, nil
}

func (c *MongoCollection) CountDocuments(ctx context.Context, filter any) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, orEmpty(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count documents in %s: %w", c.coll.Name(), err)
	}
	return n, nil
}

func (c *MongoCollection) InsertMany(ctx context.Context, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := c.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *MongoCollection) UpdateMany(ctx context.Context, filter, update any) (UpdateResult, error) {
	res, err := c.coll.UpdateMany(ctx, orEmpty(filter), update)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to update %s: %w", c.coll.Name(), err)
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount, Upserted: res.UpsertedCount}, nil
}

func (c *MongoCollection) ReplaceOne(ctx context.Context, filter, doc any, upsert bool) (UpdateResult, error) {
	res, err := c.coll.ReplaceOne(ctx, orEmpty(filter), doc, options.Replace().SetUpsert(upsert))
	if err != nil {
		return UpdateResult{}, fmt.Errorf("failed to replace in %s: %w", c.coll.Name(), err)
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount, Upserted: res.UpsertedCount}, nil
}

func (c *MongoCollection) Find(ctx context.Context, filter any, results any, opts *FindOptions) error {
	fo := options.Find()
	if opts != nil {
		if len(opts.Sort) > 0 {
			fo.SetSort(opts.Sort)
		}
		if opts.Limit > 0 {
			fo.SetLimit(opts.Limit)
		}
	}
	cur, err := c.coll.Find(ctx, orEmpty(filter), fo)
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", c.coll.Name(), err)
	}
	if err := cur.All(ctx, results); err != nil {
		return fmt.Errorf("failed to decode %s documents: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *MongoCollection) FindOne(ctx context.Context, filter any, result any) error {
	err := c.coll.FindOne(ctx, orEmpty(filter)).Decode(result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNoDocuments
	}
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", c.coll.Name(), err)
	}
	return nil
}

func (c *MongoCollection) AggregateOut(ctx context.Context, pipeline []bson.D, targetDatabase, targetCollection string) error {
	stages := make([]bson.D, 0, len(pipeline)+1)
	stages = append(stages, pipeline...)
	stages = append(stages, outStage(targetDatabase, targetCollection))

	cur, err := c.coll.Aggregate(ctx, stages)
	if err != nil {
		return fmt.Errorf("failed to materialize %s into %s: %w", c.coll.Name(), targetCollection, err)
	}
	return cur.Close(ctx)
}

func outStage(targetDatabase, targetCollection string) bson.D {
	if strings.TrimSpace(targetDatabase) == "" {
		return bson.D{{Key: "$out", Value: targetCollection}}
	}
	return bson.D{{Key: "$out", Value: bson.D{
		{Key: "db", Value: targetDatabase},
		{Key: "coll", Value: targetCollection},
	}}}
}

func orEmpty(filter any) any {
	if filter == nil {
		return bson.D{}
	}
	return filter
}

// RawDatabase returns the driver handle behind db when it is MongoDB-backed.
func RawDatabase(db Database) (*mongo.Database, bool) {
	md, ok := db.(*MongoDatabase)
	if !ok {
		return nil, false
	}
	return md.db, true
}

// RawCollection returns the driver handle behind c when it is MongoDB-backed.
func RawCollection(c Collection) (*mongo.Collection, bool) {
	mc, ok := c.(*MongoCollection)
	if !ok {
		return nil, false
	}
	return mc.coll, true
}
