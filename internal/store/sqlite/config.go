package sqlite

import (
	"fmt"

	"github.com/loykin/mongorun/internal/constants"
	"github.com/loykin/mongorun/internal/util"
)

// SQLite configuration constants
const (
	busyTimeoutMS    = 5000 // 5 seconds in milliseconds
	foreignKeysParam = "_fk=1"
)

type Config struct {
	Path string `mapstructure:"path" yaml:"path"`
	// DSN overrides Path when set, e.g. "file::memory:?cache=shared".
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

// ConnString returns the driver DSN, defaulting the file to mongorun.db.
func (c *Config) ConnString() string {
	if dsn, ok := util.TrimEmptyCheck(c.DSN); ok {
		return dsn
	}
	path := util.TrimWithDefault(c.Path, constants.DefaultSqliteFile)
	return fmt.Sprintf("file:%s?_busy_timeout=%d&%s", path, busyTimeoutMS, foreignKeysParam)
}
