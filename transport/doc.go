// Package transport exposes the webhook processor over HTTP with a chi
// router. Responses use a small JSON envelope; only signature, body and
// throttling failures are reported distinctly, every other failure is an
// opaque 500.
package transport
