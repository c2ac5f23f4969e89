// Package limiters holds the failed-login lockout rules.
//
// [Lockout] is a pure function of account state and time. The engine reads
// the counters from the account, asks Lockout for the next state, and writes
// it back through the account repository.
//
// # What this package must NOT do
//
//   - Perform I/O. Persistence belongs to the account repository.
//   - Import tokenauth or any sibling internal package.
package limiters
