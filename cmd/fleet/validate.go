package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/browserbase-fleet/internal/configstore"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a batch file and list its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := configstore.NewFileStore(args[0]).Load()
			if errors.Is(err, configstore.ErrNotFound) {
				return fmt.Errorf("%s does not exist", args[0])
			}
			if err != nil {
				return err
			}
			if err := batch.Validate(); err != nil {
				return err
			}

			w := newTable()
			fmt.Fprintln(w, "#\tSESSION\tTARGET\tMINUTES\tKIND\tACCOUNT")
			for i, s := range batch {
				account := "-"
				if s.Auth != nil {
					account = s.Auth.Username
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n", i+1, s.Name, s.Target, s.DurationMinutes(), s.DriverKind, account)
			}
			w.Flush()

			fmt.Printf("\n✓ %d sessions OK\n", len(batch))
			return nil
		},
	}
}
