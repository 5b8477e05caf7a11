// Package transfer drives the three-phase package protocol over the
// channel primitive.
//
// Ownership boundary:
// - Channel collaborator contract
// - send side: header, boundary table, payload, strictly in order
// - receive side: wildcard header, source pinning, content reassembly
package transfer
