// Package internal holds helpers private to tokenauth: random secret
// generation and token digests.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - httpapi: echo HTTP surface over the Engine
//   - limiters: login lockout rules
//   - logger: slog handler construction
//   - metrics: lock-free counters
//   - rate: Redis fixed-window rate limiter
//
// # What this package must NOT do
//
//   - Export types that appear in the public tokenauth API.
package internal
