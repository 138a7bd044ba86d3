// Command playbookctl runs operator tasks against the playbook database and API.
package main

import (
	"fmt"
	"os"

	"creator-playbook/internal/config"
	"creator-playbook/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "playbookctl",
		Short:         "Operator tooling for the creator playbook service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.IsDevelopment() || cfg.Log.Format == "console", logger.LogLevel(cfg.Log.Level)); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	root.AddCommand(
		newMigrateCmd(a),
		newSeedCmd(a),
		newWaitPurchaseCmd(a),
	)
	return root
}
