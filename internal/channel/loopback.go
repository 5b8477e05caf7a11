package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/danmuck/tensorwire/internal/wire"
)

// Loopback is an in-process network of ranks. Delivery is immediate and
// ordered per pair, which makes it the reference channel for protocol tests
// and single-binary runs.
type Loopback struct {
	mu        sync.Mutex
	endpoints map[wire.Rank]*LoopbackEndpoint
}

// LoopbackEndpoint is one rank's port on a Loopback network.
type LoopbackEndpoint struct {
	rank wire.Rank
	net  *Loopback
	box  *mailbox
}

func NewLoopback(ranks ...wire.Rank) *Loopback {
	n := &Loopback{endpoints: make(map[wire.Rank]*LoopbackEndpoint)}
	for _, rank := range ranks {
		n.endpoints[rank] = &LoopbackEndpoint{rank: rank, net: n, box: newMailbox()}
	}
	return n
}

func (n *Loopback) Endpoint(rank wire.Rank) (*LoopbackEndpoint, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ep, ok := n.endpoints[rank]
	if !ok {
		return nil, fmt.Errorf("%w: rank %d", ErrUnknownPeer, rank)
	}
	return ep, nil
}

// Close shuts every endpoint; blocked receives fail with ErrClosed.
func (n *Loopback) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ep := range n.endpoints {
		ep.box.close(ErrClosed)
	}
}

func (e *LoopbackEndpoint) Rank() wire.Rank { return e.rank }

func (e *LoopbackEndpoint) Send(_ context.Context, dst wire.Rank, buf []byte) error {
	peer, err := e.net.Endpoint(dst)
	if err != nil {
		return err
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	return peer.box.push(e.rank, cp)
}

func (e *LoopbackEndpoint) Recv(ctx context.Context, src wire.Rank, size int) (wire.Rank, []byte, error) {
	from, buf, err := e.box.pop(ctx, src)
	if err != nil {
		return 0, nil, err
	}
	if len(buf) != size {
		return 0, nil, fmt.Errorf("%w: got %d bytes from %d, want %d", ErrSizeMismatch, len(buf), from, size)
	}
	return from, buf, nil
}
