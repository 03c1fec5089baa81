package mongorun

import (
	"context"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func startMongo(t *testing.T, ctx context.Context) string {
	t.Helper()
	tc.SkipIfProviderIsNotHealthy(t)
	req := tc.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("skipping Mongo container test: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })
	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "27017/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("mongodb://%s:%s/shop", host, port.Port())
}

func TestMigrator_MongoContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 180*time.Second)
	defer cancel()
	uri := startMongo(t, ctx)

	m := &Migrator{Mongo: MongoConfig{URI: uri}, Env: "dev"}
	if err := m.Execute(ctx, func(ctx context.Context, db Database) error {
		return db.Collection("items").InsertMany(ctx, []any{bson.M{"_id": 1}, bson.M{"_id": 2}})
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reg := NewRegistry()
	reg.Register("shop", NewGroup("items").
		Script("initCollect", func(ctx context.Context, c Collection) error {
			_, err := c.CreateIndex(ctx, Ascending("created_time"))
			return err
		}, Opts("MD-799", "created index").WithOrder(4).BackupTo("shop_archive")).
		Script("bulkStatus", func(ctx context.Context, c Collection) error {
			raw, ok := RawCollection(c)
			if !ok {
				return fmt.Errorf("collection %s is not mongo-backed", c.Name())
			}
			_, err := raw.BulkWrite(ctx, []mongo.WriteModel{
				mongo.NewUpdateOneModel().SetFilter(bson.M{"_id": 1}).SetUpdate(bson.M{"$set": bson.M{"status": "active"}}),
				mongo.NewUpdateOneModel().SetFilter(bson.M{"_id": 2}).SetUpdate(bson.M{"$set": bson.M{"status": "retired"}}),
			})
			return err
		}, Opts("MD-800", "bulk status").WithOrder(5)))
	m.Registry = reg

	rep, err := m.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	backup := rep.Results[0].BackupCollection
	if backup == "" {
		t.Fatal("backup collection not reported")
	}

	var copied int64
	var applied bool
	err = m.Execute(ctx, func(ctx context.Context, db Database) error {
		st, err := OpenStore(StoreConfig{}, db)
		if err != nil {
			return err
		}
		applied, err = st.HasSucceeded(ctx, ScriptID("items", "MD-799", "initCollect"))
		return err
	})
	if err != nil || !applied {
		t.Fatalf("ledger check: applied=%v err=%v", applied, err)
	}
	archive := &Migrator{Mongo: MongoConfig{URI: uri, Database: "shop_archive"}}
	if err := archive.Execute(ctx, func(ctx context.Context, db Database) error {
		var err error
		copied, err = db.Collection(backup).CountDocuments(ctx, bson.D{})
		return err
	}); err != nil || copied != 2 {
		t.Fatalf("backup copy = %d, err=%v", copied, err)
	}

	var retired int64
	if err := m.Execute(ctx, func(ctx context.Context, db Database) error {
		var err error
		retired, err = db.Collection("items").CountDocuments(ctx, bson.M{"status": "retired"})
		return err
	}); err != nil || retired != 1 {
		t.Fatalf("bulk write via raw handle: retired=%d err=%v", retired, err)
	}

	rep, err = m.Migrate(ctx)
	if err != nil || rep.Count(SkippedApplied) != 2 {
		t.Fatalf("second run: %+v, %v", rep, err)
	}
}
