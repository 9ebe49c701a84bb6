// Package webhooks runs verified provider notifications through an optional
// delivery ledger before dispatching them.
//
// Ledger records follow processing -> processed | retry_ready -> dead.
// Processed and dead events are acknowledged on redelivery; in-flight events
// are rejected so the provider keeps retrying.
package webhooks
