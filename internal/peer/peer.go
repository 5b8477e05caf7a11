package peer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/tensorwire/internal/observability"
	"github.com/danmuck/tensorwire/internal/transfer"
	"github.com/danmuck/tensorwire/internal/wire"
	"github.com/rs/zerolog"
)

var (
	ErrHandlerExists = errors.New("peer: handler already registered")
	ErrNoHandler     = errors.New("peer: no handler for message code")

	// ErrStop from a handler ends the receive loop cleanly.
	ErrStop = errors.New("peer: stop")
)

// Handler consumes one received package.
type Handler func(ctx context.Context, res transfer.Result) error

// Stats is a point-in-time snapshot of one peer's transfer counters.
type Stats struct {
	Rank             wire.Rank `json:"rank"`
	PackagesSent     uint64    `json:"packages_sent"`
	PackagesReceived uint64    `json:"packages_received"`
	ElementsSent     uint64    `json:"elements_sent"`
	ElementsReceived uint64    `json:"elements_received"`
	Uptime           string    `json:"uptime"`
}

// Peer owns one rank's processor and dispatches received packages to
// registered handlers by message code.
type Peer struct {
	name    string
	rank    wire.Rank
	proc    *transfer.Processor
	log     zerolog.Logger
	started time.Time

	mu       sync.RWMutex
	handlers map[wire.MessageCode]Handler

	sent          atomic.Uint64
	received      atomic.Uint64
	elemsSent     atomic.Uint64
	elemsReceived atomic.Uint64
}

func New(name string, rank wire.Rank, ch transfer.Channel, log zerolog.Logger) *Peer {
	observability.RegisterMetrics()
	return &Peer{
		name:     name,
		rank:     rank,
		proc:     transfer.NewProcessor(ch, log),
		log:      log,
		started:  time.Now(),
		handlers: make(map[wire.MessageCode]Handler),
	}
}

func (p *Peer) Rank() wire.Rank { return p.rank }

// Handle registers the handler for one message code.
func (p *Peer) Handle(code wire.MessageCode, h Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.handlers[code]; ok {
		return fmt.Errorf("%w: %s", ErrHandlerExists, code.Name())
	}
	p.handlers[code] = h
	return nil
}

// SendBuffers builds a package from buffers and transmits it to dst.
func (p *Peer) SendBuffers(ctx context.Context, dst wire.Rank, code wire.MessageCode, buffers [][]float64) error {
	pkg, err := wire.Build(buffers, p.rank, code)
	if err != nil {
		return err
	}
	if err := p.proc.Send(ctx, pkg, dst); err != nil {
		return err
	}
	p.sent.Add(1)
	p.elemsSent.Add(uint64(len(pkg.Payload)))
	observability.RecordPackageSent(p.name, code.Name(), int32(dst), len(pkg.Payload))
	return nil
}

// SendSignal transmits a header-only package carrying just the code.
func (p *Peer) SendSignal(ctx context.Context, dst wire.Rank, code wire.MessageCode) error {
	return p.SendBuffers(ctx, dst, code, nil)
}

// Run receives packages from any source and dispatches them until ctx ends,
// the channel fails, or a handler returns ErrStop.
func (p *Peer) Run(ctx context.Context) error {
	for {
		res, err := p.proc.Receive(ctx, wire.AnyRank)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		p.received.Add(1)
		elements := 0
		for _, buf := range res.Content {
			elements += len(buf)
		}
		p.elemsReceived.Add(uint64(elements))
		observability.RecordPackageReceived(p.name, res.Code.Name(), int32(res.Sender), elements)

		if err := p.dispatch(ctx, res); err != nil {
			if errors.Is(err, ErrStop) {
				p.log.Info().Str("code", res.Code.Name()).Msg("receive loop stopped by handler")
				return nil
			}
			p.log.Warn().Err(err).
				Int32("src", int32(res.Sender)).Str("code", res.Code.Name()).
				Msg("package handler failed")
		}
	}
}

func (p *Peer) dispatch(ctx context.Context, res transfer.Result) error {
	p.mu.RLock()
	h, ok := p.handlers[res.Code]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %d (%s)", ErrNoHandler, res.Code, res.Code.Name())
	}
	return h(ctx, res)
}

func (p *Peer) Snapshot() Stats {
	return Stats{
		Rank:             p.rank,
		PackagesSent:     p.sent.Load(),
		PackagesReceived: p.received.Load(),
		ElementsSent:     p.elemsSent.Load(),
		ElementsReceived: p.elemsReceived.Load(),
		Uptime:           time.Since(p.started).String(),
	}
}
