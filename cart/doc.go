// Package cart is the shopping cart state store.
//
// The cart is a list of product lines plus the chosen shipping address and
// payment method. Totals (items, shipping, tax, grand) are derived from the
// lines on every mutation and kept as 2-decimal strings, so a state read from
// the store never carries stale totals.
//
// Mutations flow through a pure reducer ([Apply], [Reducer.Apply]). A [Store]
// wraps the reducer, commits the whole state to a [storage.Storage] once per
// mutation, and rehydrates from that storage on start.
//
// Quantity handling is a policy: [QuantityClamp] clamps quantities into
// [1, stock] and ignores out-of-stock adds, [QuantityStrict] rejects them.
package cart
