package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/loykin/mongorun/internal/docstore/memstore"
	"github.com/loykin/mongorun/internal/store/document"
	"github.com/loykin/mongorun/internal/store/sqlite"
)

func TestOpen_Drivers(t *testing.T) {
	db := memstore.New("app")

	st, err := Open(Config{}, db)
	if err != nil {
		t.Fatalf("Open(default): %v", err)
	}
	if _, ok := st.(*document.Store); !ok {
		t.Fatalf("default driver should be the document store, got %T", st)
	}

	st, err = Open(Config{Driver: " SQLite ", DriverConfig: &SqliteConfig{Path: filepath.Join(t.TempDir(), "h.db")}}, nil)
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	defer func() { _ = st.Close() }()
	if _, ok := st.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", st)
	}
	if err := st.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"mongo without database", Config{Driver: DriverMongo}},
		{"postgres without config", Config{Driver: DriverPostgresql}},
		{"unknown driver", Config{Driver: "cassandra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(tt.cfg, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDecodeDriverConfig(t *testing.T) {
	got, err := DecodeDriverConfig("postgresql", map[string]interface{}{
		"host": "db", "port": "6543", "user": "app", "dbname": "hist",
	})
	if err != nil {
		t.Fatalf("DecodeDriverConfig: %v", err)
	}
	pc, ok := got.(*PostgresConfig)
	if !ok || pc.Host != "db" || pc.Port != 6543 || pc.DBName != "hist" {
		t.Fatalf("unexpected config: %#v", got)
	}

	got, err = DecodeDriverConfig("sqlite", map[string]interface{}{"path": "/var/lib/h.db"})
	if err != nil {
		t.Fatalf("DecodeDriverConfig(sqlite): %v", err)
	}
	if sc := got.(*SqliteConfig); sc.Path != "/var/lib/h.db" {
		t.Fatalf("unexpected sqlite config: %#v", sc)
	}

	if _, err := DecodeDriverConfig("sqlite", map[string]interface{}{"pth": "typo"}); err == nil {
		t.Fatal("unknown keys should be rejected")
	}
	if got, err := DecodeDriverConfig("mongo", nil); got != nil || err != nil {
		t.Fatalf("mongo has no driver section: %v %v", got, err)
	}
}
