// Package tokenauth issues and manages session tokens for a web storefront:
// short-lived signed access tokens, long-lived rotating refresh tokens backed
// by server-side records, and the login, logout, password change and
// password reset flows built on them.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// tokenauth is the public surface. It exposes [Engine], [Builder], [Config]
// and value types (TokenPair, IdentityClaims, LoginResult, etc.). Accounts
// and refresh records are reached only through the [AccountRepository] and
// [RefreshTokenRepository] contracts; in-memory, Redis and Postgres
// implementations live in the account, refresh and storage/postgres
// packages.
//
// # Refresh token lifecycle
//
// Every refresh token has a record keyed by its jti holding a SHA-256 digest
// of the token string. Exchanging a token claims its record atomically, so
// two concurrent exchanges of one token cannot both succeed. Presenting a
// token whose digest does not match, or one that was already rotated, is
// treated as theft and revokes every active record of the user.
//
// # What this package must NOT do
//
//   - Persist raw refresh tokens or reset tokens.
//   - Tell callers why a refresh token was rejected.
//   - Distinguish an unknown email from a wrong password.
package tokenauth
