// Package middleware exposes net/http adapters that authenticate requests
// with a tokenauth access token and gate handlers on role permissions.
//
// # Guards
//
//   - [Guard] rejects requests without a valid bearer access token.
//   - [Optional] attaches claims when a valid token is present and passes
//     anonymous requests through.
//   - [RequirePermission] additionally demands one or more permissions.
//   - [ClientInfo] copies the caller's IP and User-Agent into the request
//     context for throttling and audit events.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Token parsing,
// expiry and signature checks all live in tokenauth.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Touch the refresh store. Access tokens are verified statelessly.
//   - Reveal why a token was rejected. Every failure is a bare 401.
package middleware
