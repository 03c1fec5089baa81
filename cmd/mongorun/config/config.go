// Package config loads the mongorun CLI configuration document.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/mongorun"
	"github.com/loykin/mongorun/internal/constants"
	"github.com/loykin/mongorun/internal/httpc"
	"github.com/loykin/mongorun/internal/retry"
	"github.com/loykin/mongorun/internal/store"
	"github.com/loykin/mongorun/internal/util"
	"github.com/loykin/mongorun/pkg/server"
	"gopkg.in/yaml.v3"
)

type MongoConfig struct {
	URI            string `mapstructure:"uri" yaml:"uri"`
	Database       string `mapstructure:"database" yaml:"database"`
	AppName        string `mapstructure:"app_name" yaml:"app_name"`
	ConnectTimeout string `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// HistoryConfig selects the ledger backend. The driver sections are decoded
// into typed configs only for the selected driver.
type HistoryConfig struct {
	Driver     string                 `mapstructure:"driver" yaml:"driver"`
	Collection string                 `mapstructure:"collection" yaml:"collection"`
	SQLite     map[string]interface{} `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres   map[string]interface{} `mapstructure:"postgres" yaml:"postgres"`
}

type WaitConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Method   string `mapstructure:"method" yaml:"method"`
	Status   int    `mapstructure:"status" yaml:"status"`
	Timeout  string `mapstructure:"timeout" yaml:"timeout"`
	Interval string `mapstructure:"interval" yaml:"interval"`
	Insecure bool   `mapstructure:"insecure" yaml:"insecure"`
}

type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`                   // error, warn, info, debug
	Format        string `mapstructure:"format" yaml:"format"`                 // text, json, color
	MaskSensitive *bool  `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
}

type JWTConfig struct {
	Secret   string `mapstructure:"secret" yaml:"secret"`
	Issuer   string `mapstructure:"issuer" yaml:"issuer"`
	Audience string `mapstructure:"audience" yaml:"audience"`
}

type ServerConfig struct {
	Addr string    `mapstructure:"addr" yaml:"addr"`
	JWT  JWTConfig `mapstructure:"jwt" yaml:"jwt"`
}

type ConfigDoc struct {
	Mongo   MongoConfig   `mapstructure:"mongo" yaml:"mongo"`
	Env     string        `mapstructure:"env" yaml:"env"`
	Package string        `mapstructure:"package" yaml:"package"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Wait    WaitConfig    `mapstructure:"wait" yaml:"wait"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
}

func (c *ConfigDoc) Load(path string) error {
	clean := filepath.Clean(path)
	// Ensure path points to a regular file to avoid opening directories/special files
	if info, statErr := os.Stat(clean); statErr != nil || !info.Mode().IsRegular() {
		if statErr != nil {
			return statErr
		}
		return fmt.Errorf("not a regular file: %s", clean)
	}
	// #nosec G304 -- config path is provided intentionally by the user/CI; cleaned and validated above
	f, err := os.Open(clean)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("invalid config %s: %w", clean, err)
	}
	return nil
}

func parseDuration(field, s string, def time.Duration) (time.Duration, error) {
	v, ok := util.TrimEmptyCheck(s)
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	return d, nil
}

// MongoOptions converts the mongo section.
func (c *ConfigDoc) MongoOptions() (mongorun.MongoConfig, error) {
	timeout, err := parseDuration("mongo.connect_timeout", c.Mongo.ConnectTimeout, constants.DefaultMongoConnectTimeout)
	if err != nil {
		return mongorun.MongoConfig{}, err
	}
	uri, ok := util.TrimEmptyCheck(c.Mongo.URI)
	if !ok {
		return mongorun.MongoConfig{}, fmt.Errorf("mongo.uri is required")
	}
	return mongorun.MongoConfig{
		URI:            uri,
		Database:       strings.TrimSpace(c.Mongo.Database),
		AppName:        util.TrimWithDefault(c.Mongo.AppName, constants.DefaultMongoAppName),
		ConnectTimeout: timeout,
	}, nil
}

// StoreOptions converts the history section, decoding the selected driver's
// section into its typed config.
func (c *ConfigDoc) StoreOptions() (mongorun.StoreConfig, error) {
	driver := util.TrimWithDefault(util.TrimAndLower(c.History.Driver), constants.DriverMongo)
	cfg := mongorun.StoreConfig{Driver: driver, Collection: c.History.Collection}
	var raw map[string]interface{}
	switch driver {
	case constants.DriverSqlite:
		raw = c.History.SQLite
	case constants.DriverPostgresql, "postgres":
		raw = c.History.Postgres
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	dc, err := store.DecodeDriverConfig(driver, raw)
	if err != nil {
		return mongorun.StoreConfig{}, err
	}
	cfg.DriverConfig = dc
	return cfg, nil
}

// NeedsMongoForHistory reports whether the ledger lives in the document store.
func (c *ConfigDoc) NeedsMongoForHistory() bool {
	d := util.TrimWithDefault(util.TrimAndLower(c.History.Driver), constants.DriverMongo)
	return d == constants.DriverMongo || d == "mongodb"
}

// Waiting reports whether readiness checks are configured.
func (c *ConfigDoc) Waiting() bool {
	_, hasURL := util.TrimEmptyCheck(c.Wait.URL)
	_, hasTimeout := util.TrimEmptyCheck(c.Wait.Timeout)
	return hasURL || hasTimeout
}

// WaitOptions converts the wait section into the HTTP probe settings and the
// retry budget of the mongo ping.
func (c *ConfigDoc) WaitOptions() (httpc.WaitConfig, *retry.Config, error) {
	timeout, err := parseDuration("wait.timeout", c.Wait.Timeout, constants.DefaultWaitTimeout)
	if err != nil {
		return httpc.WaitConfig{}, nil, err
	}
	interval, err := parseDuration("wait.interval", c.Wait.Interval, constants.DefaultWaitInterval)
	if err != nil {
		return httpc.WaitConfig{}, nil, err
	}
	wc := httpc.WaitConfig{
		URL:      c.Wait.URL,
		Method:   c.Wait.Method,
		Status:   c.Wait.Status,
		Timeout:  timeout,
		Interval: interval,
	}
	return wc, retry.ForBudget(timeout, interval), nil
}

// Client returns the HTTP client used by the readiness probe.
func (c *ConfigDoc) Client() *httpc.Httpc {
	return &httpc.Httpc{Insecure: c.Wait.Insecure}
}

// ServerOptions converts the server section.
func (c *ConfigDoc) ServerOptions() (string, server.Options) {
	addr := util.TrimWithDefault(c.Server.Addr, constants.DefaultServerAddr)
	var opts server.Options
	if secret, ok := util.TrimEmptyCheck(c.Server.JWT.Secret); ok {
		opts.JWT = &server.JWTConfig{
			Secret:          []byte(secret),
			AllowedIssuer:   c.Server.JWT.Issuer,
			AllowedAudience: c.Server.JWT.Audience,
		}
	}
	return addr, opts
}

func (c *ConfigDoc) parseLogLevel() (mongorun.LogLevel, error) {
	level := util.TrimAndLower(c.Logging.Level)
	switch level {
	case "error":
		return mongorun.LogLevelError, nil
	case "warn", "warning":
		return mongorun.LogLevelWarn, nil
	case "info", "":
		return mongorun.LogLevelInfo, nil
	case "debug":
		return mongorun.LogLevelDebug, nil
	default:
		return mongorun.LogLevelInfo, fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
}

// SetupLogging configures the global logger based on config settings
func (c *ConfigDoc) SetupLogging() error {
	level, err := c.parseLogLevel()
	if err != nil {
		return err
	}

	var logger *mongorun.Logger
	format := util.TrimAndLower(c.Logging.Format)
	switch format {
	case "json":
		logger = mongorun.NewJSONLogger(level)
	case "color":
		logger = mongorun.NewColorLogger(level)
	case "text", "":
		logger = mongorun.NewLogger(level)
	default:
		return fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}

	maskingEnabled := true
	if c.Logging.MaskSensitive != nil {
		maskingEnabled = *c.Logging.MaskSensitive
	}
	logger.EnableMasking(maskingEnabled)
	mongorun.SetDefaultLogger(logger)
	mongorun.EnableMasking(maskingEnabled)

	logger.Debug("logging configured",
		"level", util.TrimWithDefault(util.TrimAndLower(c.Logging.Level), "info"),
		"format", util.TrimWithDefault(format, "text"),
		"mask_sensitive", maskingEnabled)
	return nil
}
