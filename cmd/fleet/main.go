package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var settingsPath string

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fleet",
		Short: "Run batches of browser viewing sessions",
		Long: `fleet runs a batch of browser sessions against live targets with a fixed
ceiling on how many browsers are open at once.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&settingsPath, "settings", "", "fleet settings file (default ./fleet.yaml if present)")

	root.AddCommand(runCmd())
	root.AddCommand(initCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(scheduleCmd())
	root.AddCommand(historyCmd())

	return root
}
