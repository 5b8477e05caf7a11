package channel

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/danmuck/tensorwire/internal/wire"
	"github.com/rs/zerolog"
)

const (
	handshakeMagic uint32 = 0x54574952 // "TWIR"
	handshakeSize         = 8

	maxSegmentBytes = 64 << 20
)

// TCPConfig wires one rank into a TCP peer network.
type TCPConfig struct {
	Rank     wire.Rank
	Listen   string
	Peers    map[wire.Rank]string
	Security Security
	Log      zerolog.Logger
}

// TCP carries channel buffers over TCP, one connection per peer direction.
// Each buffer travels as a length-prefixed segment; TCP's in-order delivery
// per connection provides the per-pair ordering the protocol depends on.
type TCP struct {
	cfg       TCPConfig
	ln        net.Listener
	clientTLS *tls.Config
	box       *mailbox
	log       zerolog.Logger

	mu     sync.Mutex
	conns  map[wire.Rank]*peerConn
	closed atomic.Bool
}

type peerConn struct {
	mu   sync.Mutex
	conn net.Conn
}

// ListenTCP validates the security settings, binds the listener and starts
// accepting peer connections.
func ListenTCP(cfg TCPConfig) (*TCP, error) {
	if err := cfg.Security.Validate(); err != nil {
		return nil, err
	}
	serverTLS, err := cfg.Security.ServerTLS()
	if err != nil {
		return nil, err
	}
	clientTLS, err := cfg.Security.ClientTLS()
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", cfg.Listen, err)
	}
	if serverTLS != nil {
		ln = tls.NewListener(ln, serverTLS)
	}
	t := &TCP{
		cfg:       cfg,
		ln:        ln,
		clientTLS: clientTLS,
		box:       newMailbox(),
		log:       cfg.Log,
		conns:     make(map[wire.Rank]*peerConn),
	}
	go t.acceptLoop()
	return t, nil
}

func (t *TCP) Rank() wire.Rank { return t.cfg.Rank }

// Addr reports the bound listen address, useful when Listen used port 0.
func (t *TCP) Addr() string { return t.ln.Addr().String() }

func (t *TCP) acceptLoop() {
	for {
		conn, err := t.ln.Accept()
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			t.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		go t.serveConn(conn)
	}
}

func (t *TCP) serveConn(conn net.Conn) {
	peer, err := readHandshake(conn)
	if err != nil {
		t.log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("handshake rejected")
		conn.Close()
		return
	}
	t.adopt(peer, conn)
	t.readLoop(peer, conn)
}

// adopt keeps an inbound connection available for sends back to peer, unless
// a connection for that peer already exists.
func (t *TCP) adopt(peer wire.Rank, conn net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.conns[peer]; !ok {
		t.conns[peer] = &peerConn{conn: conn}
	}
}

func (t *TCP) drop(peer wire.Rank, conn net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pc, ok := t.conns[peer]; ok && pc.conn == conn {
		delete(t.conns, peer)
	}
}

func (t *TCP) readLoop(peer wire.Rank, conn net.Conn) {
	for {
		buf, err := readSegment(conn)
		if err != nil {
			conn.Close()
			t.drop(peer, conn)
			if !t.closed.Load() && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				t.log.Warn().Err(err).Int32("peer", int32(peer)).Msg("connection lost")
			}
			return
		}
		if err := t.box.push(peer, buf); err != nil {
			conn.Close()
			t.drop(peer, conn)
			return
		}
	}
}

func (t *TCP) Send(ctx context.Context, dst wire.Rank, buf []byte) error {
	if t.closed.Load() {
		return ErrClosed
	}
	pc, err := t.peer(ctx, dst)
	if err != nil {
		return err
	}
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if err := writeSegment(pc.conn, buf); err != nil {
		pc.conn.Close()
		t.drop(dst, pc.conn)
		return fmt.Errorf("send to %d: %w", dst, err)
	}
	return nil
}

func (t *TCP) Recv(ctx context.Context, src wire.Rank, size int) (wire.Rank, []byte, error) {
	from, buf, err := t.box.pop(ctx, src)
	if err != nil {
		return 0, nil, err
	}
	if len(buf) != size {
		return 0, nil, fmt.Errorf("%w: got %d bytes from %d, want %d", ErrSizeMismatch, len(buf), from, size)
	}
	return from, buf, nil
}

// peer returns the connection for dst, dialing it on first use.
func (t *TCP) peer(ctx context.Context, dst wire.Rank) (*peerConn, error) {
	t.mu.Lock()
	if pc, ok := t.conns[dst]; ok {
		t.mu.Unlock()
		return pc, nil
	}
	addr, ok := t.cfg.Peers[dst]
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: rank %d", ErrUnknownPeer, dst)
	}

	conn, err := t.dial(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %d at %s: %w", dst, addr, err)
	}
	if err := writeHandshake(conn, t.cfg.Rank); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake with %d: %w", dst, err)
	}

	t.mu.Lock()
	if existing, ok := t.conns[dst]; ok {
		// lost the dial race; the peer's inbound connection arrived first
		t.mu.Unlock()
		conn.Close()
		return existing, nil
	}
	pc := &peerConn{conn: conn}
	t.conns[dst] = pc
	t.mu.Unlock()

	go t.readLoop(dst, conn)
	return pc, nil
}

func (t *TCP) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	if t.clientTLS == nil {
		return dialer.DialContext(ctx, "tcp", addr)
	}
	cfg := t.clientTLS.Clone()
	if cfg.ServerName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err == nil {
			cfg.ServerName = host
		}
	}
	tlsDialer := &tls.Dialer{NetDialer: dialer, Config: cfg}
	return tlsDialer.DialContext(ctx, "tcp", addr)
}

// Close stops the listener and fails every blocked receive with ErrClosed.
func (t *TCP) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.ln.Close()
	t.mu.Lock()
	for peer, pc := range t.conns {
		pc.conn.Close()
		delete(t.conns, peer)
	}
	t.mu.Unlock()
	t.box.close(ErrClosed)
	return nil
}

func writeHandshake(conn net.Conn, rank wire.Rank) error {
	buf := make([]byte, handshakeSize)
	binary.BigEndian.PutUint32(buf[0:4], handshakeMagic)
	binary.BigEndian.PutUint32(buf[4:8], uint32(rank))
	_, err := conn.Write(buf)
	return err
}

func readHandshake(conn net.Conn) (wire.Rank, error) {
	buf := make([]byte, handshakeSize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadHandshake, err)
	}
	if binary.BigEndian.Uint32(buf[0:4]) != handshakeMagic {
		return 0, fmt.Errorf("%w: bad magic", ErrBadHandshake)
	}
	rank := wire.Rank(int32(binary.BigEndian.Uint32(buf[4:8])))
	if rank < 0 {
		return 0, fmt.Errorf("%w: negative rank %d", ErrBadHandshake, rank)
	}
	return rank, nil
}

func writeSegment(conn net.Conn, buf []byte) error {
	if len(buf) > maxSegmentBytes {
		return fmt.Errorf("%w: %d bytes", ErrSegmentTooLarge, len(buf))
	}
	framed := make([]byte, 4+len(buf))
	binary.BigEndian.PutUint32(framed[0:4], uint32(len(buf)))
	copy(framed[4:], buf)
	_, err := conn.Write(framed)
	return err
}

func readSegment(conn net.Conn) ([]byte, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(conn, sizeBuf[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(sizeBuf[:])
	if size > maxSegmentBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrSegmentTooLarge, size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
