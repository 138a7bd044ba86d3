package main

import (
	"creator-playbook/internal/client"
	"creator-playbook/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			// InitDBClient migrates on open.
			if _, err := client.InitDBClient(&a.cfg.Database); err != nil {
				return err
			}
			logger.Get().Info("schema migrated", zap.String("driver", a.cfg.Database.Driver))
			return nil
		},
	}
}
