// Package jwt signs and verifies the HMAC tokens issued by tokenauth.
//
// A Codec is bound to exactly one secret, algorithm, issuer and audience. The
// engine holds two codecs, one for access tokens and one for refresh tokens,
// so a token signed for one purpose never verifies for the other.
//
// # Architecture boundaries
//
// The codec knows nothing about storage, accounts, or rotation. It only turns
// claims into compact JWS strings and back, with strict algorithm pinning.
//
// # What this package must NOT do
//
//   - Accept "none" or any algorithm other than the configured one.
//   - Read the wall clock directly when a time source is configured.
package jwt
