package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCartCmd(app func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the cart",
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show cart lines and totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := app().cart.State()
			if asJSON {
				return printJSON(cmd.OutOrStdout(), s)
			}
			return printCart(cmd.OutOrStdout(), s)
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	add := &cobra.Command{
		Use:   "add <product-id> [qty]",
		Short: "Add a product, or set its quantity when already in the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty := 1
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("quantity %q is not a number", args[1])
				}
				qty = n
			}

			ctx := cmd.Context()
			a := app()
			p, err := a.client.Product(ctx, args[0])
			if err != nil {
				return err
			}
			s, err := a.cart.AddItem(ctx, p.CartProduct(), qty)
			if err != nil {
				return err
			}
			return printCart(cmd.OutOrStdout(), s)
		},
	}

	remove := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app().cart.RemoveItem(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printCart(cmd.OutOrStdout(), s)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app().cart.Clear(cmd.Context())
			if err != nil {
				return err
			}
			return printCart(cmd.OutOrStdout(), s)
		},
	}

	cmd.AddCommand(show, add, remove, clearCmd)
	return cmd
}
