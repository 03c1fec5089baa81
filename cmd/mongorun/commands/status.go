package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loykin/mongorun"
	"github.com/loykin/mongorun/cmd/mongorun/config"
	"github.com/loykin/mongorun/pkg/status"
	"github.com/spf13/cobra"
)

func (a *app) statusCmd() *cobra.Command {
	var (
		limit      int
		failedOnly bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the script history ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			info, err := a.readStatus(ctx, doc)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, err = fmt.Fprint(out, info.FormatHuman(limit, failedOnly))
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of history entries to show, newest first")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "show failed scripts only")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full ledger as JSON")
	return cmd
}

func (a *app) readStatus(ctx context.Context, doc *config.ConfigDoc) (status.Info, error) {
	sc, err := doc.StoreOptions()
	if err != nil {
		return status.Info{}, err
	}
	if !doc.NeedsMongoForHistory() {
		return status.FromOptions(ctx, sc, nil)
	}
	m, err := a.migrator(doc)
	if err != nil {
		return status.Info{}, err
	}
	var info status.Info
	err = m.Execute(ctx, func(ctx context.Context, db mongorun.Database) error {
		var ferr error
		info, ferr = status.FromOptions(ctx, sc, db)
		return ferr
	})
	return info, err
}
