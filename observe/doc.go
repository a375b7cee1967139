// Package observe provides the logging, metrics and tracing primitives shared by
// the storefront client.
//
// It does no I/O beyond exporter setup. The api client wraps every request with
// Middleware; the cart store and query cache report their own events through
// Metrics.
package observe
