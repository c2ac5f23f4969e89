// Package rate implements the fixed-window throttle consumed by tokenauth
// through its RateLimiter contract.
//
// # Window semantics
//
// INCR + conditional PEXPIRE on first hit. Keys are <prefix>:<policy>:<key>,
// for example rl:login:203.0.113.7.
//
// # What this package must NOT do
//
//   - Decide what happens to a throttled request. The caller maps a denied
//     Decision to its own error.
package rate
