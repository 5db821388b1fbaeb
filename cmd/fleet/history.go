package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/browserbase-fleet/internal/history"
	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently finished batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd, map[string]string{"history": "history.path"})
			if err != nil {
				return err
			}
			if cfg.History.Path == "" {
				return fmt.Errorf("history is disabled: set --history or history.path")
			}

			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded yet")
				return nil
			}

			w := newTable()
			fmt.Fprintln(w, "RUN\tSTARTED\tTOOK\tSESSIONS\tCOMPLETED\tAUTH FAILED\tERRORS\tCANCELLED")
			for _, run := range runs {
				report := run.Report()
				counts := report.Counts()
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
					run.ID[:8], run.StartedAt.Local().Format(time.DateTime),
					run.EndedAt.Sub(run.StartedAt).Round(time.Second), len(report.Outcomes),
					counts[models.OutcomeCompleted], counts[models.OutcomeAuthFailed],
					counts[models.OutcomeDriverError], counts[models.OutcomeCancelled])
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	cmd.Flags().String("history", "", "sqlite file recording finished batches")
	return cmd
}
