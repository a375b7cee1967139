package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProductsCmd(app func() *app) *cobra.Command {
	var (
		keyword string
		page    int
		top     bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List or search products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			c := app().client
			out := cmd.OutOrStdout()

			if top {
				products, err := c.TopProducts(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(out, products)
				}
				return printProducts(out, products)
			}

			result, err := c.SearchProducts(ctx, keyword, page)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(out, result)
			}
			if err := printProducts(out, result.Products); err != nil {
				return err
			}
			if result.Pages > 1 {
				fmt.Fprintf(out, "\npage %d of %d\n", result.Page, result.Pages)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "search term")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	cmd.Flags().BoolVar(&top, "top", false, "show the top rated products instead")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newProductCmd(app func() *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "product <id>",
		Short: "Show one product with its reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app().client.Product(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), p)
			}
			return printProduct(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
