// Package stripe authenticates Stripe webhook deliveries and converts them
// into core.InboundEvent values.
package stripe
