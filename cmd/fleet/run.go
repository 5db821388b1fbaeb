package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/browserbase-fleet/internal/config"
	"github.com/shehryarbajwa/browserbase-fleet/internal/configstore"
	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

type batchFlags struct {
	configPath string
	targets    []string
	count      int
	minutes    int
	kind       string
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "batch file to run (.json or .yaml)")
	cmd.Flags().StringArrayVarP(&f.targets, "target", "t", nil, "target URL or channel name (repeatable)")
	cmd.Flags().IntVarP(&f.count, "count", "n", 1, "sessions per target")
	cmd.Flags().IntVarP(&f.minutes, "duration", "d", 30, "watch duration in minutes for --target sessions")
	cmd.Flags().StringVar(&f.kind, "kind", string(models.DriverDefault), "driver kind for --target sessions")
	cmd.Flags().String("username", "", "account username for --target sessions (or FLEET_AUTH_USERNAME)")
	cmd.Flags().String("password", "", "account password for --target sessions (or FLEET_AUTH_PASSWORD)")
	cmd.Flags().Int("capacity", 0, "maximum browsers open at once")
}

// bindings maps flags onto settings keys
var batchBindings = map[string]string{
	"capacity": "capacity",
	"username": "auth.username",
	"password": "auth.password",
}

// build assembles the batch from the batch file followed by any --target sessions
func (f *batchFlags) build(cfg *config.Config) (models.Batch, error) {
	var batch models.Batch

	if f.configPath != "" {
		loaded, err := configstore.NewFileStore(f.configPath).Load()
		if err != nil {
			return nil, err
		}
		batch = append(batch, loaded...)
	}

	if len(f.targets) > 0 {
		kind, err := models.ParseDriverKind(f.kind)
		if err != nil {
			return nil, err
		}
		if f.count < 1 {
			return nil, fmt.Errorf("--count must be at least 1")
		}
		if f.minutes > models.MaxDurationMinutes {
			return nil, fmt.Errorf("--duration must be at most %d minutes", models.MaxDurationMinutes)
		}
		duration := time.Duration(f.minutes) * time.Minute
		creds := cfg.Credentials()

		for _, target := range f.targets {
			for i := 0; i < f.count; i++ {
				batch.Add(target, duration, kind, creds, "")
			}
		}
	}

	if err := checkBatch(batch); err != nil {
		return nil, err
	}
	return batch, nil
}

func runCmd() *cobra.Command {
	var (
		flags    batchFlags
		savePath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a batch of sessions until every one has finished",
		Long: `Run a batch from a batch file and/or --target flags. Ctrl-C stops the batch:
sessions that have not started never start and open browsers are closed.`,
		Example: `  fleet run --config batch.json --capacity 3
  fleet run -t somechannel -n 4 -d 20 --capacity 2 --listen :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd, mergeBindings(batchBindings, map[string]string{
				"listen":  "api.listen",
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

			report, interrupted, err := runBatch(rt.fleet, batch, cfg.Capacity)
			if err != nil {
				return err
			}

			if savePath != "" {
				if err := rt.fleet.Save(configstore.NewFileStore(savePath)); err != nil {
					log.Printf("⚠️ Failed to save batch to %s: %v", savePath, err)
				} else {
					log.Printf("💾 Batch saved to %s", savePath)
				}
			}

			printSummary(report)
			if interrupted {
				log.Println("✅ Stopped cleanly")
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&savePath, "save", "", "write the batch to this file once it has run")
	cmd.Flags().String("listen", "", "serve the status API on this address, e.g. :8080")
	cmd.Flags().String("history", "", "sqlite file recording finished batches")

	return cmd
}

func mergeBindings(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
