// Package auth holds the two trust checks of the bridge.
//
// Whitelist decides which chat identities may actuate the relay: exactly the
// configured primary and secondary operators. Verifier and Middleware guard
// the node status API with JWT bearer tokens scoped to read or telemetry.
package auth
