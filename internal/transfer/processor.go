package transfer

import (
	"context"
	"fmt"

	"github.com/danmuck/tensorwire/internal/wire"
	"github.com/rs/zerolog"
)

// Channel is the reliable, ordered, blocking point-to-point transport
// collaborator. Implementations must preserve delivery order per
// source/destination pair; that ordering is what lets the three phases of one
// package arrive without any framing beyond their sequence.
type Channel interface {
	// Send writes one buffer to dst, blocking until the transfer completes.
	Send(ctx context.Context, dst wire.Rank, buf []byte) error
	// Recv blocks for one buffer of exactly size bytes from src, or from any
	// source when src is wire.AnyRank, and reports the actual origin.
	Recv(ctx context.Context, src wire.Rank, size int) (wire.Rank, []byte, error)
}

// Result is one received package, decoded. Content is nil for a
// header-only package.
type Result struct {
	Sender  wire.Rank
	Code    wire.MessageCode
	Content [][]float64
}

// Processor moves packages across a Channel. Concurrent packages to the same
// destination must be serialized by the caller; the wire has no phase framing,
// so interleaving two packages' phases on one pair corrupts both.
type Processor struct {
	ch  Channel
	log zerolog.Logger
}

func NewProcessor(ch Channel, log zerolog.Logger) *Processor {
	return &Processor{ch: ch, log: log}
}

// Send transmits pkg to dst: header always, boundary table and payload iff the
// package carries content. The receiver rank is stamped into the owned header
// immediately before the header phase.
func (p *Processor) Send(ctx context.Context, pkg *wire.Package, dst wire.Rank) error {
	if pkg == nil {
		return fmt.Errorf("%w: nil package", wire.ErrInvalidInput)
	}
	if int(pkg.Header.BoundaryCount) != len(pkg.Boundaries) {
		return fmt.Errorf("%w: header counts %d boundaries, package has %d",
			wire.ErrInvalidInput, pkg.Header.BoundaryCount, len(pkg.Boundaries))
	}
	if wire.ElementSum(pkg.Boundaries) != len(pkg.Payload) {
		return fmt.Errorf("%w: boundaries sum to %d, payload has %d elements",
			wire.ErrLengthMismatch, wire.ElementSum(pkg.Boundaries), len(pkg.Payload))
	}

	pkg.Header.Receiver = dst
	if err := p.ch.Send(ctx, dst, wire.EncodeHeader(pkg.Header)); err != nil {
		return fmt.Errorf("send header: %w", err)
	}
	if pkg.Header.BoundaryCount == 0 {
		p.log.Debug().Int32("dst", int32(dst)).Str("code", pkg.Header.Code.Name()).
			Msg("sent header-only package")
		return nil
	}
	if err := p.ch.Send(ctx, dst, wire.EncodeBoundaries(pkg.Boundaries)); err != nil {
		return fmt.Errorf("send boundary table: %w", err)
	}
	if err := p.ch.Send(ctx, dst, wire.EncodePayload(pkg.Payload)); err != nil {
		return fmt.Errorf("send payload: %w", err)
	}
	p.log.Debug().Int32("dst", int32(dst)).Str("code", pkg.Header.Code.Name()).
		Int("buffers", len(pkg.Boundaries)).Int("elements", len(pkg.Payload)).
		Msg("sent package")
	return nil
}

// Receive blocks for one package from src (wire.AnyRank accepts any origin).
// After the header phase the remaining phases are pinned to the sender rank
// decoded from the header, not to the caller-supplied source, so a concurrent
// header from a different peer cannot be mis-paired with this package's body.
func (p *Processor) Receive(ctx context.Context, src wire.Rank) (Result, error) {
	_, raw, err := p.ch.Recv(ctx, src, wire.HeaderWireSize)
	if err != nil {
		return Result{}, fmt.Errorf("recv header: %w", err)
	}
	header, err := wire.ParseHeader(raw)
	if err != nil {
		return Result{}, err
	}
	res := Result{Sender: header.Sender, Code: header.Code}
	if header.BoundaryCount == 0 {
		p.log.Debug().Int32("src", int32(header.Sender)).Str("code", header.Code.Name()).
			Msg("received header-only package")
		return res, nil
	}

	_, raw, err = p.ch.Recv(ctx, header.Sender, int(header.BoundaryCount)*wire.BoundaryWireWidth)
	if err != nil {
		return Result{}, fmt.Errorf("recv boundary table: %w", err)
	}
	boundaries, err := wire.ParseBoundaries(raw)
	if err != nil {
		return Result{}, err
	}

	_, raw, err = p.ch.Recv(ctx, header.Sender, wire.ElementSum(boundaries)*wire.ElementWireWidth)
	if err != nil {
		return Result{}, fmt.Errorf("recv payload: %w", err)
	}
	payload, err := wire.ParsePayload(raw)
	if err != nil {
		return Result{}, err
	}
	content, err := wire.ParseContent(boundaries, payload)
	if err != nil {
		return Result{}, err
	}
	res.Content = content
	p.log.Debug().Int32("src", int32(header.Sender)).Str("code", header.Code.Name()).
		Int("buffers", len(content)).Int("elements", len(payload)).
		Msg("received package")
	return res, nil
}
