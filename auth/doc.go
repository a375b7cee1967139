// Package auth holds the signed-in user of the storefront client.
//
// A [Session] persists the user and an expiry timestamp to storage, restores
// them on start, and ends the session when it expires, when the user logs
// out, or when the API rejects the credentials. Listeners registered with
// [Session.OnTerminate] hear about every end; clearing other client state
// such as the cart is their choice.
//
// Route guards ([RequireUser], [RequireAdmin]) gate operations on the user
// carried in a context.
package auth
