package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/loykin/mongorun"
	"github.com/spf13/cobra"
)

func (a *app) upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run every pending script of the selected groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.loadConfig()
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
			if doc.Waiting() {
				wc, budget, err := doc.WaitOptions()
				if err != nil {
					return err
				}
				if err := doc.Client().Wait(ctx, wc); err != nil {
					return err
				}
				m.Wait = budget
			}
			rep, err := m.Migrate(ctx)
			if rep != nil {
				printReport(cmd.OutOrStdout(), rep)
			}
			return err
		},
	}
}

func (a *app) planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what up would run without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.loadConfig()
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
			rep, err := m.Plan(ctx)
			if rep != nil {
				printReport(cmd.OutOrStdout(), rep)
			}
			return err
		},
	}
}

func printReport(w io.Writer, rep *mongorun.Report) {
	for _, r := range rep.Results {
		line := fmt.Sprintf("%-20s %s", r.Outcome, r.ScriptID)
		if r.Outcome == mongorun.Executed || r.Outcome == mongorun.Failed {
			line += fmt.Sprintf(" (%dms)", r.Elapsed.Milliseconds())
		}
		if r.BackupCollection != "" {
			line += " backup=" + r.BackupCollection
		}
		_, _ = fmt.Fprintln(w, line)
	}
	_, _ = fmt.Fprintf(w, "run %s: %s, %d executed, %d skipped\n", rep.RunID, rep.State,
		rep.Count(mongorun.Executed), rep.Count(mongorun.SkippedApplied)+rep.Count(mongorun.SkippedEnvironment))
}
