// Package ratelimit throttles inbound webhook clients with a fixed window
// per client key backed by ulule/limiter.
package ratelimit
