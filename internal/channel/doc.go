// Package channel provides the reliable, ordered, point-to-point transport
// the package protocol runs on.
//
// Ownership boundary:
// - blocking per-source mailbox semantics, wildcard source resolution
// - in-process loopback network
// - TCP transport with rank handshake and optional TLS/mTLS
//
// The transport moves opaque fixed-size buffers; it knows nothing about the
// package phases layered on top of it.
package channel
