package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/mongorun"
)

func load(t *testing.T, body string) *ConfigDoc {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	var c ConfigDoc
	if err := c.Load(p); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return &c
}

func TestConfigDoc_Load_NotRegularFile(t *testing.T) {
	var c ConfigDoc
	if err := c.Load(t.TempDir()); err == nil {
		t.Fatalf("expected error for directory path (not a regular file)")
	}
}

func TestConfigDoc_MongoOptions(t *testing.T) {
	c := load(t, `
mongo:
  uri: " mongodb://localhost:27017/shop "
  connect_timeout: 3s
`)
	mc, err := c.MongoOptions()
	if err != nil {
		t.Fatalf("MongoOptions: %v", err)
	}
	if mc.URI != "mongodb://localhost:27017/shop" || mc.ConnectTimeout != 3*time.Second || mc.AppName != "mongorun" {
		t.Fatalf("unexpected mongo options %+v", mc)
	}
	c.Mongo.ConnectTimeout = "soon"
	if _, err := c.MongoOptions(); err == nil {
		t.Fatal("expected invalid duration error")
	}
	if _, err := (&ConfigDoc{}).MongoOptions(); err == nil {
		t.Fatal("expected missing uri error")
	}
}

func TestConfigDoc_StoreOptions(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		driver  string
		check   func(t *testing.T, dc interface{})
		wantErr bool
	}{
		{"default mongo", "history:\n  collection: hist\n", mongorun.DriverMongo, func(t *testing.T, dc interface{}) {
			if dc != nil {
				t.Fatalf("mongo needs no driver config, got %T", dc)
			}
		}, false},
		{"sqlite", "history:\n  driver: SQLite\n  sqlite:\n    path: /tmp/h.db\n", mongorun.DriverSqlite, func(t *testing.T, dc interface{}) {
			sc, ok := dc.(*mongorun.SqliteConfig)
			if !ok || sc.Path != "/tmp/h.db" {
				t.Fatalf("unexpected sqlite config %#v", dc)
			}
		}, false},
		{"postgres weak port", "history:\n  driver: postgresql\n  postgres:\n    host: db\n    port: \"6543\"\n    user: u\n", mongorun.DriverPostgresql, func(t *testing.T, dc interface{}) {
			pc, ok := dc.(*mongorun.PostgresConfig)
			if !ok || pc.Host != "db" || pc.Port != 6543 || pc.User != "u" {
				t.Fatalf("unexpected postgres config %#v", dc)
			}
		}, false},
		{"postgres unknown key", "history:\n  driver: postgresql\n  postgres:\n    hostname: db\n", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc, err := load(t, tt.body).StoreOptions()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("StoreOptions: %v", err)
			}
			if sc.Driver != tt.driver {
				t.Fatalf("driver = %q, want %q", sc.Driver, tt.driver)
			}
			tt.check(t, sc.DriverConfig)
		})
	}
}

func TestConfigDoc_WaitAndServerOptions(t *testing.T) {
	c := load(t, `
wait:
  url: http://localhost:8080/healthz
  timeout: 10s
  interval: 500ms
server:
  jwt:
    secret: s3cret
    issuer: ops
`)
	if !c.Waiting() {
		t.Fatal("Waiting() should be true")
	}
	wc, budget, err := c.WaitOptions()
	if err != nil {
		t.Fatalf("WaitOptions: %v", err)
	}
	if wc.Timeout != 10*time.Second || wc.Interval != 500*time.Millisecond || budget.MaxRetries != 20 {
		t.Fatalf("wait = %+v budget = %+v", wc, budget)
	}
	addr, opts := c.ServerOptions()
	if addr != ":8089" || opts.JWT == nil || string(opts.JWT.Secret) != "s3cret" || opts.JWT.AllowedIssuer != "ops" {
		t.Fatalf("server options addr=%q opts=%+v", addr, opts)
	}
	if (&ConfigDoc{}).Waiting() {
		t.Fatal("empty config should not wait")
	}
	if _, o := (&ConfigDoc{}).ServerOptions(); o.JWT != nil {
		t.Fatal("JWT guard should be off without a secret")
	}
}

func TestConfigDoc_SetupLogging(t *testing.T) {
	prev := mongorun.GetLogger()
	defer mongorun.SetDefaultLogger(prev)

	for _, lvl := range []string{"", "error", "warn", "info", "debug"} {
		c := &ConfigDoc{Logging: LoggingConfig{Level: lvl, Format: "json"}}
		if err := c.SetupLogging(); err != nil {
			t.Fatalf("SetupLogging(%q): %v", lvl, err)
		}
	}
	if err := (&ConfigDoc{Logging: LoggingConfig{Level: "loud"}}).SetupLogging(); err == nil {
		t.Fatal("expected invalid level error")
	}
	if err := (&ConfigDoc{Logging: LoggingConfig{Format: "xml"}}).SetupLogging(); err == nil {
		t.Fatal("expected invalid format error")
	}
	if got := mongorun.GetLogger().Level(); got != mongorun.LogLevelDebug {
		t.Fatalf("level = %v", got)
	}
}
