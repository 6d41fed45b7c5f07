package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var historyFlags struct {
	limit int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent chain runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyFlags.limit, "limit", 20, "Maximum number of runs to show")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	a, err := openApp(rootFlags.config, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if a.store == nil {
		fmt.Fprintln(out, "Run history is disabled (store.driver is none).")
		return nil
	}

	runs, err := a.store.Recent(cmdContext(cmd), historyFlags.limit)
	if err != nil {
		return errors.Wrap(err, "load history")
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(out, "%s  %s  %-9s %6s  %s",
			r.StartedAt.Local().Format(time.DateTime), r.ID, r.Status,
			r.Took.Round(time.Millisecond), strings.Join(r.Stages, " → "))
		if r.FailedStage != "" {
			fmt.Fprintf(out, "  [failed at %s: %s]", r.FailedStage, r.Error)
		}
		fmt.Fprintln(out)
	}
	return nil
}
