// Package notify delivers order confirmation emails and retries the ones
// that could not be sent when the order was paid.
package notify
