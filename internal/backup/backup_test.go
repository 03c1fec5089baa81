package backup

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/loykin/mongorun/internal/docstore/memstore"
	"go.mongodb.org/mongo-driver/bson"
)

var fixed = time.Date(2024, 3, 9, 14, 7, 5, 0, time.UTC)

func TestName(t *testing.T) {
	if got := Name("items", "PROJ-42", fixed); got != "items_backup_PROJ-42_20240309140705" {
		t.Fatalf("Name() = %q", got)
	}
}

func TestManager_BackupSameDatabase(t *testing.T) {
	ctx := context.Background()
	db := memstore.New("shop")
	if err := db.Collection("items").InsertMany(ctx, []any{bson.M{"_id": 1}, bson.M{"_id": 2}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := NewManager(db).WithClock(func() time.Time { return fixed }).Backup(ctx, Request{Collection: "items", Ticket: "T-1"})
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if res.Database != "shop" || res.Collection != "items_backup_T-1_20240309140705" {
		t.Fatalf("unexpected result %+v", res)
	}
	n, _ := db.Collection(res.Collection).CountDocuments(ctx, nil)
	if n != 2 {
		t.Fatalf("backup holds %d documents, want 2", n)
	}
}

func TestManager_BackupOtherDatabase(t *testing.T) {
	ctx := context.Background()
	srv := memstore.NewServer()
	db := srv.Database("shop")
	_ = db.Collection("items").InsertMany(ctx, []any{bson.M{"_id": 1}})

	res, err := NewManager(db).WithClock(func() time.Time { return fixed }).Backup(ctx, Request{Collection: "items", Ticket: "T-2", TargetDatabase: " archive "})
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if res.Database != "archive" {
		t.Fatalf("target database = %q", res.Database)
	}
	if n, _ := srv.Database("archive").Collection(res.Collection).CountDocuments(ctx, nil); n != 1 {
		t.Fatalf("archive copy holds %d documents", n)
	}
	if names, _ := db.ListCollectionNames(ctx); len(names) != 1 {
		t.Fatalf("source database should be untouched, has %v", names)
	}
}

func TestManager_BackupFailure(t *testing.T) {
	db := memstore.New("shop")
	boom := errors.New("$out not allowed")
	db.Fail("items", memstore.OpAggregate, boom)

	_, err := NewManager(db).Backup(context.Background(), Request{Collection: "items", Ticket: "T"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if !strings.Contains(err.Error(), "backup of items") {
		t.Fatalf("unexpected message: %v", err)
	}
}
