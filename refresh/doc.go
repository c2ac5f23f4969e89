// Package refresh owns the server-side refresh token record and the stores
// that persist it.
//
// A record is keyed by the refresh token's jti and stores only a SHA-256
// digest of the token string. Records move from active to revoked, rotated
// or expired and never back.
//
// # Stores
//
//   - [MemoryStore]: process-local, mutex guarded. Tests and single-node dev.
//   - [RedisStore]: hash-per-record with a per-user index set. Claim and
//     Revoke run as Lua scripts so each is one atomic step on the server.
//
// Postgres lives in storage/postgres and implements the same [Repository].
//
// # What this package must NOT do
//
//   - Persist raw refresh tokens.
//   - Parse or sign JWTs.
//   - Decide theft policy. Claim reports what it saw; the engine reacts.
package refresh
