package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/storefront/api"
	"github.com/jonwraymond/storefront/cart"
	"github.com/jonwraymond/storefront/checkout"
)

func newCheckoutCmd(app func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Walk through shipping, payment and order placement",
		Long: `Without a subcommand, checkout shows which steps are done.

Steps run in order: sign in (storefront login), shipping, payment, place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printSteps(cmd.OutOrStdout(), app().flow.Steps(cmd.Context()))
		},
	}

	var addr cart.ShippingAddress
	shipping := &cobra.Command{
		Use:   "shipping",
		Short: "Save the shipping address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if _, err := a.flow.SaveShipping(cmd.Context(), addr); err != nil {
				return err
			}
			return printSteps(cmd.OutOrStdout(), a.flow.Steps(cmd.Context()))
		},
	}
	shipping.Flags().StringVar(&addr.Address, "address", "", "street address")
	shipping.Flags().StringVar(&addr.City, "city", "", "city")
	shipping.Flags().StringVar(&addr.PostalCode, "postal-code", "", "postal code")
	shipping.Flags().StringVar(&addr.Country, "country", "", "country")

	payment := &cobra.Command{
		Use:   "payment [method]",
		Short: "Choose the payment method (default " + checkout.DefaultPaymentMethod + ")",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := ""
			if len(args) == 1 {
				method = args[0]
			}
			a := app()
			if _, err := a.flow.SelectPayment(cmd.Context(), method); err != nil {
				return err
			}
			return printSteps(cmd.OutOrStdout(), a.flow.Steps(cmd.Context()))
		},
	}

	place := &cobra.Command{
		Use:   "place",
		Short: "Place the order and empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			order, err := app().flow.PlaceOrder(cmd.Context())
			if err != nil {
				return err
			}
			return printOrder(cmd.OutOrStdout(), order)
		},
	}

	var result api.PaymentResult
	var payer string
	pay := &cobra.Command{
		Use:   "pay <order-id>",
		Short: "Record the payment gateway's confirmation for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := result
			if r.UpdateTime == "" {
				r.UpdateTime = time.Now().UTC().Format(time.RFC3339)
			}
			if payer != "" {
				r.Payer = &api.Payer{EmailAddress: payer}
			}
			order, err := app().flow.Pay(cmd.Context(), args[0], r)
			if err != nil {
				return err
			}
			return printOrder(cmd.OutOrStdout(), order)
		},
	}
	pay.Flags().StringVar(&result.ID, "payment-id", "", "gateway transaction id")
	pay.Flags().StringVar(&result.Status, "status", "COMPLETED", "gateway status")
	pay.Flags().StringVar(&result.UpdateTime, "update-time", "", "gateway update time (default now)")
	pay.Flags().StringVar(&payer, "payer-email", "", "payer email address")
	_ = pay.MarkFlagRequired("payment-id")

	deliver := &cobra.Command{
		Use:   "deliver <order-id>",
		Short: "Mark a paid order delivered (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := app().flow.Deliver(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printOrder(cmd.OutOrStdout(), order)
		},
	}

	cmd.AddCommand(shipping, payment, place, pay, deliver)
	return cmd
}

func printSteps(w io.Writer, steps []checkout.Progress) error {
	for _, p := range steps {
		mark := " "
		if p.Enabled {
			mark = "x"
		}
		if _, err := fmt.Fprintf(w, "[%s] %s\n", mark, p.Step.Title()); err != nil {
			return err
		}
	}
	return nil
}
