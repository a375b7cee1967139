package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/storefront/api"
	"github.com/jonwraymond/storefront/observe"
)

// passwordEnv is read when --password is not given.
const passwordEnv = "STOREFRONT_PASSWORD"

func newLoginCmd(app func() *app) *cobra.Command {
	var creds api.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Long:  "Sign in with --email. The password comes from --password or $" + passwordEnv + ".",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if creds.Password == "" {
				creds.Password = os.Getenv(passwordEnv)
			}
			ctx := cmd.Context()
			a := app()
			u, err := a.client.Login(ctx, creds)
			if err != nil {
				return err
			}
			if err := a.session.SetCredentials(ctx, u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (session ends %s)\n",
				u.FirstName(), a.session.ExpiresAt().Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(app func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a := app()
			if err := a.client.Logout(ctx); err != nil {
				// Local sign-out proceeds even when the server call fails.
				a.logger.Warn(ctx, "server logout failed", observe.F("error", err))
			}
			// A rejected server call may already have ended the session,
			// so the cart is emptied here rather than from a session listener.
			_, cerr := a.cart.Clear(ctx)
			if err := errors.Join(cerr, a.session.Logout(ctx)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newOrdersCmd(app func() *app) *cobra.Command {
	var (
		all    bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "orders [order-id]",
		Short: "List your orders, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := app().client
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				o, err := c.Order(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(out, o)
				}
				return printOrder(out, o)
			}

			list := c.MyOrders
			if all {
				list = c.Orders
			}
			orders, err := list(ctx)
			if err != nil {
				return explainAuth(err)
			}
			if asJSON {
				return printJSON(out, orders)
			}
			return printOrders(out, orders)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every customer's orders (admin)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// explainAuth adds a hint to 401 errors.
func explainAuth(err error) error {
	if api.IsUnauthorized(err) {
		return fmt.Errorf("%w (run storefront login)", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w (is the API reachable? try storefront health)", err)
	}
	return err
}
