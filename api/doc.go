// Package api is the storefront REST client.
//
// Every request goes through one path: a per-request timeout, a concurrency
// cap, an optional rate limit, telemetry, and a single response check that
// reports HTTP 401 to the configured unauthorized hook before returning the
// error. Reads are cached in a [cache.QueryCache] keyed by endpoint and
// parameters; writes run as one-shot mutations that invalidate the tags
// named by [Rules].
//
// Failures are returned as *[Error] with a [Kind] telling transport
// failures, server errors, validation errors and authorization failures
// apart. Nothing is retried unless the caller asks for it with
// [Client.WithRetry].
package api
