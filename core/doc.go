// Package core contains the checkout payment-confirmation contracts, entities,
// and the order fulfillment logic triggered by verified provider events.
// Provider, storage, notification, and transport adapters depend on this
// package; core must not depend on any of them.
package core
