// Package transport implements the TCP connection layer that feeds framed
// messages into a session.Dispatcher and carries its outbound frames back
// out to peers.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/keato/btcnode/internal/log"
	"github.com/keato/btcnode/internal/metrics"
	"github.com/keato/btcnode/internal/session"
)

// readTimeout bounds how long a connection may sit idle; a read that times
// out ends the connection's read loop and closes it.
const readTimeout = 10 * time.Minute

// dialTimeout bounds outbound connection attempts.
const dialTimeout = 15 * time.Second

// TCP is a session.Sender backed by real sockets: one goroutine per
// connection reads frames and hands them to a Dispatcher, Send finds the
// matching socket and writes the already-framed bytes straight through.
type TCP struct {
	dispatcher *session.Dispatcher

	mu    sync.Mutex
	conns map[session.Token]net.Conn
	next  uint64
}

// NewTCP builds a transport around dispatcher. The two depend on each
// other: a dispatcher built with a nil Sender must be handed this transport
// through Dispatcher.SetSender before Listen/Connect.
func NewTCP(dispatcher *session.Dispatcher) *TCP {
	return &TCP{
		dispatcher: dispatcher,
		conns:      make(map[session.Token]net.Conn),
	}
}

func (t *TCP) newToken() session.Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	return session.Token(fmt.Sprintf("conn-%d", t.next))
}

// Connect dials addr and starts its read loop. It satisfies session.Sender
// so the dispatcher can request new outbound connections (e.g. in response
// to an addr message) without depending on net directly.
func (t *TCP) Connect(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		metrics.PeerConnections.Inc()
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	metrics.PeerConnections.Inc()
	token := t.newToken()
	t.register(token, conn)

	go t.readLoop(context.Background(), token, conn)
	t.dispatcher.NewConnection(token, addr)
	return nil
}

// Send writes raw, an already-framed message, to token's socket.
func (t *TCP) Send(token session.Token, raw []byte) error {
	t.mu.Lock()
	conn, ok := t.conns[token]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("send: unknown connection %s", token)
	}
	_, err := conn.Write(raw)
	return err
}

func (t *TCP) register(token session.Token, conn net.Conn) {
	t.mu.Lock()
	t.conns[token] = conn
	t.mu.Unlock()
	metrics.PeersActive.Inc()
}

func (t *TCP) unregister(token session.Token) {
	t.mu.Lock()
	delete(t.conns, token)
	t.mu.Unlock()
	metrics.PeersActive.Dec()
	metrics.PeerDisconnections.Inc()
}

// Listen accepts inbound connections on addr until ctx is cancelled,
// handing each one to the dispatcher as an inbound peer.
func (t *TCP) Listen(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	log.Log.Info().Str("addr", addr).Msg("listening for inbound peers")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Log.Warn().Err(err).Msg("accept error")
			continue
		}
		token := t.newToken()
		t.register(token, conn)
		go t.readLoop(ctx, token, conn)
	}
}

// readLoop owns conn: it reads one framed message at a time and hands it to
// the dispatcher, until the peer disconnects, the read times out, or ctx is
// cancelled.
func (t *TCP) readLoop(ctx context.Context, token session.Token, conn net.Conn) {
	plog := log.PeerLogger(string(token), conn.RemoteAddr().String())
	defer func() {
		conn.Close()
		t.unregister(token)
	}()

	for {
		select {
		case <-ctx.Done():
			plog.Info().Msg("shutting down connection")
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))

		raw, err := readOneFrame(conn)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if err == io.EOF {
				plog.Info().Msg("connection closed by peer")
			} else if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				plog.Warn().Msg("connection timed out")
			} else {
				plog.Warn().Err(err).Msg("read error")
			}
			return
		}

		t.dispatcher.Handle(token, raw)
	}
}

// readOneFrame reads exactly one header-plus-payload frame off conn,
// without assuming anything about the command or payload length beyond
// what the 24-byte header declares.
func readOneFrame(conn net.Conn) ([]byte, error) {
	header := make([]byte, 24)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, err
	}
	length := uint32(header[16]) | uint32(header[17])<<8 | uint32(header[18])<<16 | uint32(header[19])<<24
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(conn, payload); err != nil {
			return nil, err
		}
	}
	return append(header, payload...), nil
}
