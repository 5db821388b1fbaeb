package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func scheduleCmd() *cobra.Command {
	var (
		flags batchFlags
		every time.Duration
		at    []string
		times int
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the same batch repeatedly on an interval or at daily times",
		Long: `Run a batch, wait --every, and run it again until interrupted or --times runs
have finished. The interval is measured from the start of each run. With --at the batch
instead runs every day at the given local HH:MM times.`,
		Example: `  fleet schedule --config batch.yaml --every 6h
  fleet schedule --config batch.yaml --at 18:30 --at 21:00`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if every <= 0 {
				return fmt.Errorf("--every must be positive")
			}
			daily, err := parseDailyTimes(at)
			if err != nil {
				return err
			}

			cfg, err := loadSettings(cmd, mergeBindings(batchBindings, map[string]string{
				"history": "history.path",
			}))
			if err != nil {
				return err
			}

			batch, err := flags.build(cfg)
			if err != nil {
				return err
			}

			rt, err := newRuntime(context.Background(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(quit)

			wait := func(next time.Time) bool {
				log.Printf("⏰ Next run at %s", next.Format(time.DateTime))
				select {
				case <-time.After(time.Until(next)):
					return true
				case <-quit:
					log.Println("⏹️ Interrupt received, schedule stopped")
					return false
				}
			}

			for run := 1; times == 0 || run <= times; run++ {
				if len(daily) > 0 && !wait(nextDaily(time.Now(), daily)) {
					return nil
				}

				started := time.Now()
				log.Printf("⏰ Scheduled run %d starting", run)

				report, interrupted, err := runBatch(rt.fleet, batch, cfg.Capacity)
				if err != nil {
					return err
				}
				printSummary(report)
				if interrupted {
					return nil
				}
				if run == times {
					break
				}

				if len(daily) == 0 && !wait(started.Add(every)) {
					return nil
				}
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&every, "every", 24*time.Hour, "interval between run starts")
	cmd.Flags().StringArrayVar(&at, "at", nil, "daily local start time HH:MM (repeatable, overrides --every)")
	cmd.Flags().IntVar(&times, "times", 0, "stop after this many runs (0 runs forever)")
	cmd.Flags().String("history", "", "sqlite file recording finished batches")

	return cmd
}

// clock is a time of day in minutes after midnight
type clock int

func parseDailyTimes(values []string) ([]clock, error) {
	clocks := make([]clock, 0, len(values))
	for _, v := range values {
		t, err := time.Parse("15:04", v)
		if err != nil {
			return nil, fmt.Errorf("invalid --at %q: want HH:MM", v)
		}
		clocks = append(clocks, clock(t.Hour()*60+t.Minute()))
	}
	sort.Slice(clocks, func(i, j int) bool { return clocks[i] < clocks[j] })
	return clocks, nil
}

// nextDaily returns the first of the sorted daily times strictly after now
func nextDaily(now time.Time, daily []clock) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, c := range daily {
		at := midnight.Add(time.Duration(c) * time.Minute)
		if at.After(now) {
			return at
		}
	}
	tomorrow := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return tomorrow.Add(time.Duration(daily[0]) * time.Minute)
}
