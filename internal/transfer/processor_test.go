package transfer

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/tensorwire/internal/testutil/testlog"
	"github.com/danmuck/tensorwire/internal/wire"
)

var errChannelDown = errors.New("channel down")

type sendCall struct {
	dst wire.Rank
	buf []byte
}

type recvCall struct {
	src  wire.Rank
	size int
}

type recvReply struct {
	from wire.Rank
	buf  []byte
}

// scriptChannel records every channel operation and serves queued receive
// replies in order.
type scriptChannel struct {
	sends     []sendCall
	recvs     []recvCall
	replies   []recvReply
	sendErr   error
	recvErr   error
	failAfter int
}

func (c *scriptChannel) Send(_ context.Context, dst wire.Rank, buf []byte) error {
	if c.sendErr != nil && len(c.sends) >= c.failAfter {
		return c.sendErr
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	c.sends = append(c.sends, sendCall{dst: dst, buf: cp})
	return nil
}

func (c *scriptChannel) Recv(_ context.Context, src wire.Rank, size int) (wire.Rank, []byte, error) {
	c.recvs = append(c.recvs, recvCall{src: src, size: size})
	if c.recvErr != nil && len(c.recvs) > c.failAfter {
		return 0, nil, c.recvErr
	}
	if len(c.replies) == 0 {
		return 0, nil, errChannelDown
	}
	next := c.replies[0]
	c.replies = c.replies[1:]
	return next.from, next.buf, nil
}

func (c *scriptChannel) queuePackage(t *testing.T, pkg *wire.Package) {
	t.Helper()
	c.replies = append(c.replies, recvReply{from: pkg.Header.Sender, buf: wire.EncodeHeader(pkg.Header)})
	if pkg.Header.BoundaryCount == 0 {
		return
	}
	c.replies = append(c.replies,
		recvReply{from: pkg.Header.Sender, buf: wire.EncodeBoundaries(pkg.Boundaries)},
		recvReply{from: pkg.Header.Sender, buf: wire.EncodePayload(pkg.Payload)},
	)
}

func buildPackage(t *testing.T, buffers [][]float64, sender wire.Rank, code wire.MessageCode) *wire.Package {
	t.Helper()
	pkg, err := wire.Build(buffers, sender, code)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return pkg
}

func TestSendPhasesInOrder(t *testing.T) {
	ch := &scriptChannel{}
	p := NewProcessor(ch, testlog.Logger(t))

	pkg := buildPackage(t, [][]float64{{1, 2, 3}, {4, 5}}, 1, 7)
	if err := p.Send(context.Background(), pkg, 4); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(ch.sends) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(ch.sends))
	}
	for i, call := range ch.sends {
		if call.dst != 4 {
			t.Fatalf("phase %d sent to %d", i, call.dst)
		}
	}

	header, err := wire.ParseHeader(ch.sends[0].buf)
	if err != nil {
		t.Fatalf("parse sent header: %v", err)
	}
	if header.Sender != 1 || header.Receiver != 4 || header.BoundaryCount != 2 || header.Code != 7 {
		t.Fatalf("unexpected wire header: %+v", header)
	}
	boundaries, err := wire.ParseBoundaries(ch.sends[1].buf)
	if err != nil {
		t.Fatalf("parse sent boundaries: %v", err)
	}
	if !reflect.DeepEqual(boundaries, []int32{3, 2}) {
		t.Fatalf("unexpected wire boundaries: %v", boundaries)
	}
	payload, err := wire.ParsePayload(ch.sends[2].buf)
	if err != nil {
		t.Fatalf("parse sent payload: %v", err)
	}
	if !reflect.DeepEqual(payload, []float64{1, 2, 3, 4, 5}) {
		t.Fatalf("unexpected wire payload: %v", payload)
	}
}

func TestSendHeaderOnlySkipsContentPhases(t *testing.T) {
	ch := &scriptChannel{}
	p := NewProcessor(ch, testlog.Logger(t))

	pkg := buildPackage(t, nil, 0, 99)
	if err := p.Send(context.Background(), pkg, 2); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(ch.sends) != 1 {
		t.Fatalf("expected header phase only, got %d sends", len(ch.sends))
	}
	if len(ch.sends[0].buf) != wire.HeaderWireSize {
		t.Fatalf("unexpected header phase size: %d", len(ch.sends[0].buf))
	}
}

func TestSendSumInvariantChecked(t *testing.T) {
	ch := &scriptChannel{}
	p := NewProcessor(ch, testlog.Logger(t))

	pkg := buildPackage(t, [][]float64{{1, 2}}, 0, 1)
	pkg.Payload = pkg.Payload[:1]
	err := p.Send(context.Background(), pkg, 3)
	if !errors.Is(err, wire.ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
	if len(ch.sends) != 0 {
		t.Fatalf("broken package reached the channel")
	}
}

func TestSendChannelFailurePropagates(t *testing.T) {
	ch := &scriptChannel{sendErr: errChannelDown, failAfter: 1}
	p := NewProcessor(ch, testlog.Logger(t))

	pkg := buildPackage(t, [][]float64{{1}}, 0, 1)
	err := p.Send(context.Background(), pkg, 3)
	if !errors.Is(err, errChannelDown) {
		t.Fatalf("expected channel error, got %v", err)
	}
}

func TestReceiveEndToEnd(t *testing.T) {
	ch := &scriptChannel{}
	p := NewProcessor(ch, testlog.Logger(t))

	sent := buildPackage(t, [][]float64{{1, 2, 3}, {4, 5}}, 2, 7)
	sent.Header.Receiver = 0
	ch.queuePackage(t, sent)

	res, err := p.Receive(context.Background(), wire.AnyRank)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if res.Sender != 2 || res.Code != 7 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !reflect.DeepEqual(res.Content, [][]float64{{1, 2, 3}, {4, 5}}) {
		t.Fatalf("unexpected content: %v", res.Content)
	}

	want := []recvCall{
		{src: wire.AnyRank, size: wire.HeaderWireSize},
		{src: 2, size: 2 * wire.BoundaryWireWidth},
		{src: 2, size: 5 * wire.ElementWireWidth},
	}
	if !reflect.DeepEqual(ch.recvs, want) {
		t.Fatalf("unexpected channel receives: %+v", ch.recvs)
	}
}

func TestReceiveHeaderOnly(t *testing.T) {
	ch := &scriptChannel{}
	p := NewProcessor(ch, testlog.Logger(t))

	sent := buildPackage(t, nil, 3, 99)
	ch.queuePackage(t, sent)

	res, err := p.Receive(context.Background(), 3)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if res.Sender != 3 || res.Code != 99 || res.Content != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(ch.recvs) != 1 {
		t.Fatalf("header-only package issued %d channel receives", len(ch.recvs))
	}
}

func TestReceivePinsDecodedSender(t *testing.T) {
	ch := &scriptChannel{}
	p := NewProcessor(ch, testlog.Logger(t))

	// Header decodes to sender 5 even though the caller asked for source 9;
	// the remaining phases must follow the decoded sender.
	sent := buildPackage(t, [][]float64{{8}}, 5, 1)
	ch.queuePackage(t, sent)

	if _, err := p.Receive(context.Background(), 9); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if ch.recvs[0].src != 9 {
		t.Fatalf("header phase used source %d", ch.recvs[0].src)
	}
	for i, call := range ch.recvs[1:] {
		if call.src != 5 {
			t.Fatalf("phase %d not pinned to decoded sender: %d", i+2, call.src)
		}
	}
}

func TestReceiveMalformedHeader(t *testing.T) {
	ch := &scriptChannel{replies: []recvReply{{from: 1, buf: make([]byte, wire.HeaderWireSize-4)}}}
	p := NewProcessor(ch, testlog.Logger(t))

	_, err := p.Receive(context.Background(), wire.AnyRank)
	if !errors.Is(err, wire.ErrMalformedHeader) {
		t.Fatalf("expected ErrMalformedHeader, got %v", err)
	}
}

func TestReceiveChannelFailurePropagates(t *testing.T) {
	ch := &scriptChannel{recvErr: errChannelDown, failAfter: 1}
	p := NewProcessor(ch, testlog.Logger(t))

	sent := buildPackage(t, [][]float64{{1}}, 2, 1)
	ch.replies = []recvReply{{from: 2, buf: wire.EncodeHeader(sent.Header)}}

	_, err := p.Receive(context.Background(), wire.AnyRank)
	if !errors.Is(err, errChannelDown) {
		t.Fatalf("expected channel error, got %v", err)
	}
}

func TestBackToBackPackagesKeepOrder(t *testing.T) {
	sender := &scriptChannel{}
	p := NewProcessor(sender, testlog.Logger(t))

	first := buildPackage(t, [][]float64{{1, 2}}, 0, 1)
	second := buildPackage(t, [][]float64{{3}, {4, 5}}, 0, 2)
	if err := p.Send(context.Background(), first, 1); err != nil {
		t.Fatalf("send first: %v", err)
	}
	if err := p.Send(context.Background(), second, 1); err != nil {
		t.Fatalf("send second: %v", err)
	}

	// Replay the sender's wire traffic, in order, at the receiving end.
	receiver := &scriptChannel{}
	for _, call := range sender.sends {
		receiver.replies = append(receiver.replies, recvReply{from: 0, buf: call.buf})
	}
	q := NewProcessor(receiver, testlog.Logger(t))

	got1, err := q.Receive(context.Background(), wire.AnyRank)
	if err != nil {
		t.Fatalf("receive first: %v", err)
	}
	got2, err := q.Receive(context.Background(), wire.AnyRank)
	if err != nil {
		t.Fatalf("receive second: %v", err)
	}
	if got1.Code != 1 || !reflect.DeepEqual(got1.Content, [][]float64{{1, 2}}) {
		t.Fatalf("first package out of order: %+v", got1)
	}
	if got2.Code != 2 || !reflect.DeepEqual(got2.Content, [][]float64{{3}, {4, 5}}) {
		t.Fatalf("second package out of order: %+v", got2)
	}
}
