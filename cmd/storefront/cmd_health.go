package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/storefront/health"
)

// errUnhealthy makes the command exit non-zero without repeating the report.
var errUnhealthy = errors.New("one or more checks failed")

func newHealthCmd(app func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check local storage and API reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			agg := health.NewAggregator(health.AggregatorConfig{
				Timeout: a.cfg.API.Timeout + time.Second,
				Logger:  a.logger,
			})
			agg.Register(health.StorageCheck(a.store))
			agg.Register(health.APICheck(a.client))

			report := agg.Run(cmd.Context())
			fmt.Fprint(cmd.OutOrStdout(), report)
			if report.Status == health.StatusUnhealthy {
				return errUnhealthy
			}
			return nil
		},
	}
}
