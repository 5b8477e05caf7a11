// Package wire owns the package wire contract and parsing primitives.
//
// Ownership boundary:
// - fixed header layout and codec
// - boundary table and flat payload codecs
// - Package build/parse between buffer lists and wire form
//
// Wire layout, per phase:
//   - header: 4 fields x int64 big-endian, order
//     [sender_rank, receiver_rank, boundary_count, message_code]
//   - boundary table: boundary_count x int32 big-endian
//   - payload: sum(boundary table) x float64 big-endian
//
// Phases 2 and 3 are present iff boundary_count > 0.
package wire
