package commands

import (
	"context"
	"fmt"

	"github.com/loykin/mongorun"
	"github.com/spf13/cobra"
)

func (a *app) waitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wait",
		Short: "Wait until MongoDB and the optional HTTP endpoint are ready",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.loadConfig()
			if err != nil {
				return err
			}
			wc, budget, err := doc.WaitOptions()
			if err != nil {
				return err
			}
			m, err := a.migrator(doc)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			m.Wait = budget
			if err := m.Execute(ctx, func(context.Context, mongorun.Database) error { return nil }); err != nil {
				return err
			}
			if err := doc.Client().Wait(ctx, wc); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "ready")
			return err
		},
	}
}
