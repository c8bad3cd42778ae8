// Package auth resolves the caller identity for administrative requests.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). When every authenticator abstains
// the request is rejected.
//
// The gateway in front of missive forwards a signed token in a configurable
// header. The jwt subpackage verifies it; the apikey subpackage maps static
// keys to fixed identities for service-to-service calls. Project ownership
// is checked afterwards by the ownership subpackage.
//
// Clients never learn why authentication failed: a missing header, a bad
// signature, an expired token and a malformed identity claim all produce
// the same 401 response. The reason is logged.
package auth
