package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/loykin/mongorun"
	"github.com/loykin/mongorun/pkg/server"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the history ledger over a read-only HTTP API",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			doc, err := a.loadConfig()
			if err != nil {
				return err
			}
			sc, err := doc.StoreOptions()
			if err != nil {
				return err
			}
			listen, opts := doc.ServerOptions()
			if addr != "" {
				listen = addr
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			serve := func(db mongorun.Database) (err error) {
				st, err := mongorun.OpenStore(sc, db)
				if err != nil {
					return err
				}
				defer func() { err = multierr.Append(err, st.Close()) }()
				return server.New(st, opts).ListenAndServe(ctx, listen)
			}
			if !doc.NeedsMongoForHistory() {
				return serve(nil)
			}
			m, err := a.migrator(doc)
			if err != nil {
				return err
			}
			return m.Execute(ctx, func(_ context.Context, db mongorun.Database) error { return serve(db) })
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
