// Package permission defines the closed set of roles used by the distributor
// site and the static permission set each role carries.
//
// Permissions are named strings for token claims and occupy fixed bits in a
// [Mask] for cheap membership checks. The admin role holds the root bit and
// passes every check.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import tokenauth or jwt.
//   - Accept role names outside the closed set.
package permission
