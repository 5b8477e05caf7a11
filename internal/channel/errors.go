package channel

import "errors"

var (
	ErrClosed          = errors.New("channel: closed")
	ErrUnknownPeer     = errors.New("channel: unknown peer")
	ErrSizeMismatch    = errors.New("channel: unexpected segment size")
	ErrBadHandshake    = errors.New("channel: bad handshake")
	ErrSegmentTooLarge = errors.New("channel: segment too large")
)
