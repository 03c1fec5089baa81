// Package store opens the script history ledger on one of its backends.
package store

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/loykin/mongorun/internal/common"
	"github.com/loykin/mongorun/internal/constants"
	"github.com/loykin/mongorun/internal/docstore"
	"github.com/loykin/mongorun/internal/store/connector"
	"github.com/loykin/mongorun/internal/store/document"
	"github.com/loykin/mongorun/internal/store/postgresql"
	"github.com/loykin/mongorun/internal/store/sqlite"
	"github.com/loykin/mongorun/internal/util"
)

type (
	Record = connector.Record
	Filter = connector.Filter
	Store  = connector.Connector
)

type (
	SqliteConfig   = sqlite.Config
	PostgresConfig = postgresql.Config
)

const (
	DriverMongo      = constants.DriverMongo
	DriverSqlite     = constants.DriverSqlite
	DriverPostgresql = constants.DriverPostgresql
)

// Config selects and configures the ledger backend.
type Config struct {
	Driver     string `mapstructure:"driver"`
	Collection string `mapstructure:"collection"`
	// DriverConfig is *SqliteConfig or *PostgresConfig; ignored for mongo.
	DriverConfig interface{}
}

// Open returns the configured ledger. db backs the mongo driver and may be nil
// for the SQL drivers.
func Open(cfg Config, db docstore.Database) (Store, error) {
	driver := util.TrimWithDefault(util.TrimAndLower(cfg.Driver), DriverMongo)
	logger := common.GetLogger().WithStore(driver)
	logger.Debug("opening history store", "collection", cfg.Collection)

	switch driver {
	case DriverMongo, "mongodb":
		if db == nil {
			return nil, fmt.Errorf("mongo history store requires a database handle")
		}
		return document.New(db, cfg.Collection), nil
	case DriverSqlite:
		sc := &SqliteConfig{}
		if c, ok := cfg.DriverConfig.(*SqliteConfig); ok && c != nil {
			sc = c
		}
		return sqlite.Open(*sc, cfg.Collection)
	case DriverPostgresql, "postgres":
		pc, ok := cfg.DriverConfig.(*PostgresConfig)
		if !ok || pc == nil {
			return nil, fmt.Errorf("postgresql history store requires a postgres config")
		}
		return postgresql.Open(*pc, cfg.Collection)
	default:
		return nil, fmt.Errorf("unsupported history store driver: %s", cfg.Driver)
	}
}

// DecodeDriverConfig decodes a raw driver section into the typed config for driver.
func DecodeDriverConfig(driver string, raw map[string]interface{}) (interface{}, error) {
	var target interface{}
	switch util.TrimAndLower(driver) {
	case DriverSqlite:
		target = &SqliteConfig{}
	case DriverPostgresql, "postgres":
		target = &PostgresConfig{}
	default:
		return nil, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid %s history store config: %w", driver, err)
	}
	return target, nil
}
