// Package metrics provides lock-free counters and a latency histogram for
// tokenauth observability.
//
// # Design
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. The histogram uses 8 fixed buckets (<=5ms ... +Inf). Both are
// allocation-free on the write path.
//
// # What this package must NOT do
//
//   - Perform I/O or network calls.
//   - Expose global metric registries.
package metrics
