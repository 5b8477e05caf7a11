package wire

import (
	"errors"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	in := Header{
		Sender:        3,
		Receiver:      7,
		BoundaryCount: 12,
		Code:          CodeParameterUpdate,
	}
	out, err := ParseHeader(EncodeHeader(in))
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if out != in {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestHeaderRoundTripUnsetReceiver(t *testing.T) {
	in := Header{Sender: 0, Receiver: AnyRank, BoundaryCount: 0, Code: CodeExit}
	out, err := ParseHeader(EncodeHeader(in))
	if err != nil {
		t.Fatalf("parse header: %v", err)
	}
	if out.Receiver != AnyRank {
		t.Fatalf("expected unset receiver, got %d", out.Receiver)
	}
}

func TestParseHeaderWrongSize(t *testing.T) {
	for _, size := range []int{0, HeaderWireSize - 1, HeaderWireSize + 1} {
		if _, err := ParseHeader(make([]byte, size)); !errors.Is(err, ErrMalformedHeader) {
			t.Fatalf("size %d: expected ErrMalformedHeader, got %v", size, err)
		}
	}
}

func TestParseHeaderNegativeBoundaryCount(t *testing.T) {
	buf := EncodeHeader(Header{Sender: 1, Receiver: 2, BoundaryCount: -4, Code: 9})
	if _, err := ParseHeader(buf); !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestMessageCodeName(t *testing.T) {
	if got := CodeParameterRequest.Name(); got != "parameter.request" {
		t.Fatalf("unexpected name: %q", got)
	}
	if got := MessageCode(999).Name(); got != "unknown" {
		t.Fatalf("unexpected name for unregistered code: %q", got)
	}
}
