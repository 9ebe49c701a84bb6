// Package inbound routes verified provider events to the handler registered
// for their event type. Unregistered event types are acknowledged as no-ops.
package inbound
