// Package link carries protocol frames between the gate and one vehicle at a
// time over a websocket. Upgrades are refused unless the gate is advertising,
// and a second concurrent vehicle is turned away with 409 Conflict.
package link

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/autopeer-io/autogate/internal/gateagent/core"
	"github.com/autopeer-io/autogate/internal/gateagent/protocol"
	"github.com/autopeer-io/autogate/pkg/log"
)

var ErrUnknownSession = errors.New("unknown link session")

type Config struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// IdleTimeout drops a silent peer; zero disables it.
	IdleTimeout time.Duration
}

type peer struct {
	id   core.SessionID
	conn *websocket.Conn

	writeMu sync.Mutex
}

// WSLink implements core.PeerLink and serves the upgrade endpoint.
type WSLink struct {
	cfg      Config
	upgrader websocket.Upgrader
	handler  core.LinkHandler

	advertising atomic.Bool
	lastID      atomic.Uint64

	mu   sync.Mutex
	peer *peer

	logger log.Logger
}

var (
	_ core.PeerLink = (*WSLink)(nil)
	_ http.Handler  = (*WSLink)(nil)
)

func New(cfg Config) *WSLink {
	return &WSLink{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   protocol.MaxFrameSize,
			WriteBufferSize:  protocol.MaxFrameSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: log.WithName("link"),
	}
}

// SetHandler must be called before the endpoint is served.
func (l *WSLink) SetHandler(h core.LinkHandler) {
	l.handler = h
}

func (l *WSLink) Advertise(on bool) {
	if l.advertising.Swap(on) != on {
		l.logger.Info("Advertising changed", "advertising", on)
	}
}

func (l *WSLink) Advertising() bool { return l.advertising.Load() }

// ServeHTTP upgrades the request and pumps frames until the peer leaves.
func (l *WSLink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !l.advertising.Load() {
		http.Error(w, "gate is not advertising", http.StatusServiceUnavailable)
		return
	}

	p := &peer{id: core.SessionID(l.lastID.Add(1))}
	l.mu.Lock()
	if l.peer != nil {
		l.mu.Unlock()
		l.logger.Warn("Rejecting second vehicle", "remote", r.RemoteAddr)
		http.Error(w, "another vehicle is connected", http.StatusConflict)
		return
	}
	l.peer = p
	l.mu.Unlock()

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.release(p)
		l.logger.Error(err, "Websocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	l.mu.Lock()
	p.conn = conn
	l.mu.Unlock()

	l.logger.Info("Vehicle link up", "session", p.id, "remote", r.RemoteAddr)
	l.handler.OnConnect(p.id, r.RemoteAddr)
	l.readPump(p)
}

func (l *WSLink) readPump(p *peer) {
	defer func() {
		_ = p.conn.Close()
		l.release(p)
		l.logger.Info("Vehicle link down", "session", p.id)
		l.handler.OnDisconnect(p.id)
	}()

	p.conn.SetReadLimit(protocol.MaxFrameSize)
	for {
		if l.cfg.IdleTimeout > 0 {
			_ = p.conn.SetReadDeadline(time.Now().Add(l.cfg.IdleTimeout))
		}
		kind, data, err := p.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.logger.Debug("Vehicle link read ended", "session", p.id, "error", err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			l.logger.Warn("Ignoring non-binary message", "session", p.id)
			continue
		}
		l.handler.OnFrame(p.id, data)
	}
}

func (l *WSLink) release(p *peer) {
	l.mu.Lock()
	if l.peer == p {
		l.peer = nil
	}
	l.mu.Unlock()
}

func (l *WSLink) lookup(id core.SessionID) (*peer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.peer == nil || l.peer.id != id || l.peer.conn == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSession, id)
	}
	return l.peer, nil
}

// Send writes one frame to the session.
func (l *WSLink) Send(id core.SessionID, frame []byte) error {
	p, err := l.lookup(id)
	if err != nil {
		return err
	}
	return p.write(websocket.BinaryMessage, frame, l.cfg.WriteTimeout)
}

// Disconnect closes the session. OnDisconnect follows from the read pump.
func (l *WSLink) Disconnect(id core.SessionID) error {
	p, err := l.lookup(id)
	if err != nil {
		return err
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session complete")
	_ = p.write(websocket.CloseMessage, msg, l.cfg.WriteTimeout)
	return p.conn.Close()
}

func (p *peer) write(kind int, data []byte, timeout time.Duration) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if timeout > 0 {
		_ = p.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return p.conn.WriteMessage(kind, data)
}
