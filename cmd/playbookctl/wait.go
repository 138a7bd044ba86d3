package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creator-playbook/internal/poller"

	"github.com/spf13/cobra"
)

func newWaitPurchaseCmd(a *app) *cobra.Command {
	var (
		sessionID string
		baseURL   string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wait-purchase",
		Short: "Poll a checkout session until the purchase is paid",
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				baseURL = a.cfg.BaseURL
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			status, err := poller.New(baseURL).Wait(ctx, sessionID)
			switch {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "paid: %s %s (%s)\n", status.ItemKind, status.ItemID, status.Email)
				return nil
			case errors.Is(err, poller.ErrNotPaid) && status != nil:
				return fmt.Errorf("purchase still %s after polling", status.Status)
			default:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "checkout session id")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL (defaults to BASE_URL)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
