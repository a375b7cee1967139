package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jonwraymond/storefront/api"
	"github.com/jonwraymond/storefront/cart"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printProducts(w io.Writer, products []api.Product) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tSTOCK\tRATING")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.1f (%d)\n",
			p.ID, p.Name, cart.FormatAmount(p.Price), p.CountInStock, p.Rating, p.NumReviews)
	}
	return tw.Flush()
}

func printProduct(w io.Writer, p api.Product) error {
	stock := "Out Of Stock"
	if p.InStock() {
		stock = fmt.Sprintf("In Stock (%d)", p.CountInStock)
	}
	fmt.Fprintf(w, "%s\n%s %s\n\nPrice:  %s\nStatus: %s\nRating: %.1f from %d reviews\n",
		p.Name, p.Brand, p.Category, cart.FormatAmount(p.Price), stock, p.Rating, p.NumReviews)
	if p.Description != "" {
		fmt.Fprintf(w, "\n%s\n", p.Description)
	}
	for _, r := range p.Reviews {
		fmt.Fprintf(w, "\n  %s (%d/5): %s", r.Name, r.Rating, r.Comment)
	}
	if len(p.Reviews) > 0 {
		fmt.Fprintln(w)
	}
	return nil
}

func printCart(w io.Writer, s cart.State) error {
	if s.IsEmpty() {
		_, err := fmt.Fprintln(w, "Your cart is empty")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range s.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			l.ProductID, l.Name, l.Quantity, cart.FormatAmount(l.Price), cart.FormatAmount(l.Subtotal()))
	}
	fmt.Fprintf(tw, "\t\t\t\t\n")
	fmt.Fprintf(tw, "Items (%d)\t\t\t\t%s\n", s.ItemCount(), s.ItemsTotal)
	fmt.Fprintf(tw, "Shipping\t\t\t\t%s\n", s.ShippingCost)
	fmt.Fprintf(tw, "Tax\t\t\t\t%s\n", s.TaxAmount)
	fmt.Fprintf(tw, "Total\t\t\t\t%s\n", s.GrandTotal)
	return tw.Flush()
}

func printOrders(w io.Writer, orders []api.Order) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDATE\tTOTAL\tPAID\tDELIVERED")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.CreatedAt.Format("2006-01-02"), cart.FormatAmount(o.TotalPrice),
			yesNo(o.IsPaid), yesNo(o.IsDelivered))
	}
	return tw.Flush()
}

func printOrder(w io.Writer, o api.Order) error {
	fmt.Fprintf(w, "Order %s\n\n", o.ID)
	a := o.ShippingAddress
	fmt.Fprintf(w, "Ship to:   %s, %s %s, %s\n", a.Address, a.City, a.PostalCode, a.Country)
	fmt.Fprintf(w, "Payment:   %s\n", o.PaymentMethod)
	fmt.Fprintf(w, "Paid:      %s\nDelivered: %s\n\n", yesNo(o.IsPaid), yesNo(o.IsDelivered))

	tw := newTable(w)
	for _, it := range o.OrderItems {
		fmt.Fprintf(tw, "%s\t%d x %s\n", it.Name, it.Qty, cart.FormatAmount(it.Price))
	}
	fmt.Fprintf(tw, "Items\t%s\n", cart.FormatAmount(o.ItemsPrice))
	fmt.Fprintf(tw, "Shipping\t%s\n", cart.FormatAmount(o.ShippingPrice))
	fmt.Fprintf(tw, "Tax\t%s\n", cart.FormatAmount(o.TaxPrice))
	fmt.Fprintf(tw, "Total\t%s\n", cart.FormatAmount(o.TotalPrice))
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
