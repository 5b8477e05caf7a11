package wire

import (
	"encoding/binary"
	"fmt"
)

// Rank identifies one addressable endpoint on the channel.
type Rank int32

// AnyRank is the wildcard source for receive operations. The channel
// implementation resolves it and reports the actual origin.
const AnyRank Rank = -1

const (
	// HeaderFieldCount is the number of header fields on the wire.
	HeaderFieldCount = 4
	// HeaderWireSize is the encoded header width in bytes.
	HeaderWireSize = HeaderFieldCount * 8

	headerSenderIdx        = 0
	headerReceiverIdx      = 1
	headerBoundaryCountIdx = 2
	headerCodeIdx          = 3
)

// Header is the fixed wire header of one package.
//
// Receiver is a placeholder until send time; the processor fills it in
// immediately before the header phase goes out.
type Header struct {
	Sender        Rank
	Receiver      Rank
	BoundaryCount int32
	Code          MessageCode
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderWireSize)
	putHeaderField(buf, headerSenderIdx, int64(h.Sender))
	putHeaderField(buf, headerReceiverIdx, int64(h.Receiver))
	putHeaderField(buf, headerBoundaryCountIdx, int64(h.BoundaryCount))
	putHeaderField(buf, headerCodeIdx, int64(h.Code))
	return buf
}

func ParseHeader(buf []byte) (Header, error) {
	if len(buf) != HeaderWireSize {
		return Header{}, fmt.Errorf("%w: %d bytes, want %d", ErrMalformedHeader, len(buf), HeaderWireSize)
	}
	h := Header{
		Sender:        Rank(headerField(buf, headerSenderIdx)),
		Receiver:      Rank(headerField(buf, headerReceiverIdx)),
		BoundaryCount: int32(headerField(buf, headerBoundaryCountIdx)),
		Code:          MessageCode(headerField(buf, headerCodeIdx)),
	}
	if h.BoundaryCount < 0 {
		return Header{}, fmt.Errorf("%w: negative boundary count %d", ErrMalformedHeader, h.BoundaryCount)
	}
	return h, nil
}

func putHeaderField(buf []byte, idx int, v int64) {
	binary.BigEndian.PutUint64(buf[idx*8:idx*8+8], uint64(v))
}

func headerField(buf []byte, idx int) int64 {
	return int64(binary.BigEndian.Uint64(buf[idx*8 : idx*8+8]))
}
