package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/browserbase-fleet/internal/configstore"
	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

// sampleBatch is the batch written by init
func sampleBatch() models.Batch {
	var b models.Batch
	b.Add("https://kick.com/channel-one", 30*time.Minute, models.DriverDefault, nil, "Bot_One")
	b.Add("https://kick.com/channel-two", 25*time.Minute, models.DriverDefault, nil, "Bot_Two")
	b.Add("https://kick.com/channel-three", 20*time.Minute, models.DriverProfileA, nil, "Bot_Three")
	return b
}

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [file]",
		Short: "Write a sample batch file",
		Long:  `Write a sample batch file (default batch.json). A .yaml or .yml extension writes YAML.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "batch.json"
			if len(args) > 0 {
				path = args[0]
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				} else if !errors.Is(err, os.ErrNotExist) {
					return err
				}
			}

			if err := configstore.NewFileStore(path).Save(sampleBatch()); err != nil {
				return err
			}

			fmt.Printf("✓ Wrote sample batch to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
