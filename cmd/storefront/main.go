// Command storefront is a terminal client for the storefront API: browse
// products, keep a cart, check out and follow orders.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// run executes one command line and releases what it opened.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, cleanup := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := cleanup(context.WithoutCancel(ctx)); err == nil {
		err = cerr
	}
	return err
}
