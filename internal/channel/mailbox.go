package channel

import (
	"context"
	"sync"

	"github.com/danmuck/tensorwire/internal/wire"
)

// mailbox is the blocking inbox shared by every channel implementation:
// per-source FIFO queues plus a global arrival order so a wildcard receive
// always takes the oldest segment overall while per-source order holds.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queues map[wire.Rank][][]byte
	order  []wire.Rank
	err    error
}

func newMailbox() *mailbox {
	m := &mailbox{queues: make(map[wire.Rank][][]byte)}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// push delivers one segment, or reports the close error so the sender never
// sees success for a segment that was dropped.
func (m *mailbox) push(from wire.Rank, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.queues[from] = append(m.queues[from], buf)
	m.order = append(m.order, from)
	m.cond.Broadcast()
	return nil
}

// pop blocks until a segment matching src arrives, the mailbox closes, or ctx
// is done. src == wire.AnyRank matches any source.
func (m *mailbox) pop(ctx context.Context, src wire.Rank) (wire.Rank, []byte, error) {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if from, buf, ok := m.take(src); ok {
			return from, buf, nil
		}
		if m.err != nil {
			return 0, nil, m.err
		}
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		m.cond.Wait()
	}
}

// take removes the oldest segment matching src. Caller holds mu.
func (m *mailbox) take(src wire.Rank) (wire.Rank, []byte, bool) {
	for i, from := range m.order {
		if src != wire.AnyRank && from != src {
			continue
		}
		m.order = append(m.order[:i], m.order[i+1:]...)
		q := m.queues[from]
		buf := q[0]
		m.queues[from] = q[1:]
		return from, buf, true
	}
	return 0, nil, false
}

func (m *mailbox) close(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err == nil {
		m.err = err
	}
	m.cond.Broadcast()
}
