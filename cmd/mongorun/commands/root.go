// Package commands holds the cobra commands of the mongorun CLI.
package commands

import (
	"errors"
	"os"
	"strings"

	"github.com/loykin/mongorun"
	"github.com/loykin/mongorun/cmd/mongorun/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfigPath = "./mongorun.yaml"

// NewRootCmd builds the CLI over reg, the registry holding the linked-in
// migration groups. A nil reg uses the process registry.
func NewRootCmd(reg *mongorun.Registry) *cobra.Command {
	return newRootCmd(reg, nil)
}

// newRootCmd binds the commands to db instead of dialing when db is set.
func newRootCmd(reg *mongorun.Registry, db mongorun.Database) *cobra.Command {
	v := viper.New()
	// Environment variables support: MONGORUN_CONFIG, MONGORUN_MONGO_URI, ...
	v.SetEnvPrefix("MONGORUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "mongorun",
		Short:         "Apply registered MongoDB migration scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.String("config", defaultConfigPath, "path to a config yaml")
	pf.String("uri", "", "MongoDB connection URI (overrides mongo.uri)")
	pf.String("database", "", "database name (overrides mongo.database)")
	pf.String("env", "", "run environment (overrides env)")
	pf.String("package", "", "package path prefix selecting registered groups")
	_ = v.BindPFlag("config", pf.Lookup("config"))
	_ = v.BindPFlag("mongo.uri", pf.Lookup("uri"))
	_ = v.BindPFlag("mongo.database", pf.Lookup("database"))
	_ = v.BindPFlag("env", pf.Lookup("env"))
	_ = v.BindPFlag("package", pf.Lookup("package"))

	app := &app{v: v, reg: reg, db: db}
	root.AddCommand(app.upCmd(), app.planCmd(), app.statusCmd(), app.waitCmd(), app.serveCmd())
	return root
}

type app struct {
	v   *viper.Viper
	reg *mongorun.Registry
	db  mongorun.Database
}

// loadConfig reads the config file, then applies environment variables and
// flags over it. A missing default config file is not an error.
func (a *app) loadConfig() (*config.ConfigDoc, error) {
	doc := &config.ConfigDoc{}
	path := strings.TrimSpace(a.v.GetString("config"))
	if path != "" {
		err := doc.Load(path)
		switch {
		case err == nil:
		case errors.Is(err, os.ErrNotExist) && !a.v.IsSet("config") && path == defaultConfigPath:
		default:
			return nil, err
		}
	}
	for key, dst := range map[string]*string{
		"mongo.uri":      &doc.Mongo.URI,
		"mongo.database": &doc.Mongo.Database,
		"env":            &doc.Env,
		"package":        &doc.Package,
	} {
		if a.v.IsSet(key) {
			*dst = a.v.GetString(key)
		}
	}
	if err := doc.SetupLogging(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (a *app) migrator(doc *config.ConfigDoc) (*mongorun.Migrator, error) {
	sc, err := doc.StoreOptions()
	if err != nil {
		return nil, err
	}
	m := &mongorun.Migrator{
		Database: a.db,
		Env:      doc.Env,
		Package:  doc.Package,
		Registry: a.reg,
		History:  sc,
	}
	if a.db == nil {
		if m.Mongo, err = doc.MongoOptions(); err != nil {
			return nil, err
		}
	}
	return m, nil
}
