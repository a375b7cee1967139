// Package checkout drives an order from cart to delivery.
//
// A [Flow] gates each step on the one before it: sign in, shipping address,
// payment method, review. Placing the order sends the cart as one create
// mutation and clears the cart only when the order was accepted.
package checkout
