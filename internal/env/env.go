// Package env resolves the run environment scripts are gated on.
package env

import (
	"os"

	"github.com/loykin/mongorun/internal/constants"
	"github.com/loykin/mongorun/internal/util"
)

// Lookup reads a process variable. Tests replace it.
type Lookup func(key string) (string, bool)

// Resolve returns the run environment: explicit when set, else the
// MONGORUN_ENV variable, else "dev". The result is trimmed and lower-cased.
func Resolve(explicit string) string {
	return ResolveWith(explicit, os.LookupEnv)
}

// ResolveWith is Resolve with a custom variable lookup.
func ResolveWith(explicit string, lookup Lookup) string {
	if v := util.TrimAndLower(explicit); v != "" {
		return v
	}
	if lookup != nil {
		if v, ok := lookup(constants.EnvironmentVariable); ok {
			if v = util.TrimAndLower(v); v != "" {
				return v
			}
		}
	}
	return constants.DefaultEnvironment
}
