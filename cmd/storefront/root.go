package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/storefront/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	retries    int
	verbose    bool
}

// newRootCmd builds the command tree. cleanup closes whatever the
// executed command opened.
func newRootCmd() (root *cobra.Command, cleanup func(context.Context) error) {
	flags := &globalFlags{}
	var a *app

	root = &cobra.Command{
		Use:   "storefront",
		Short: "Browse the shop, manage a cart and place orders",
		Long: `storefront talks to the shop's REST API.

The cart and the signed-in session are kept in a local database, so a cart
built in one invocation is still there in the next. Configuration is read
from --config (YAML); every value may use ${VAR} or secretref:file:<path>.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipsApp(cmd) {
				return nil
			}
			var err error
			a, err = newApp(cmd.Context(), flags, cmd.Flags().Changed("retries"))
			if err != nil {
				return err
			}
			cmd.SetContext(a.session.Context(cmd.Context()))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", config.DefaultPath(), "path to the YAML config file")
	pf.IntVar(&flags.retries, "retries", 0, "extra attempts for failed reads (overrides api.retries)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log at debug level to stderr")

	appFn := func() *app { return a }
	root.AddCommand(
		newProductsCmd(appFn),
		newProductCmd(appFn),
		newCartCmd(appFn),
		newCheckoutCmd(appFn),
		newLoginCmd(appFn),
		newLogoutCmd(appFn),
		newOrdersCmd(appFn),
		newHealthCmd(appFn),
	)
	cleanup = func(ctx context.Context) error {
		if a == nil {
			return nil
		}
		return a.Close(ctx)
	}
	return root, cleanup
}

// skipsApp reports whether cmd is one of cobra's built-in commands, which
// need no config, storage or network.
func skipsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", "__complete":
			return true
		}
	}
	return false
}
