// Package cache is the query cache used by the storefront API client.
//
// Reads are cached per (endpoint, params) key; parameter order never matters.
// Concurrent readers of the same key share one in-flight request. A cached
// entry stays servable while at least one [Subscription] holds it and is
// evicted a short grace window after the last one closes.
//
// Results are tagged. A successful mutation invalidates tags: tagged entries
// become stale and are refetched at once if anything is subscribed, or on the
// next read otherwise. Each refetch supersedes earlier in-flight requests for
// the same key, so the last-issued request always wins.
//
// Errors are recorded on the entry for display but never served as a cached
// success, and nothing is retried automatically.
package cache
