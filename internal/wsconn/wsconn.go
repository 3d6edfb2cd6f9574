// Package wsconn adapts the SIP-over-WebSocket framing (RFC 7118) of a plain
// stream connection so it can be served by [sip.StreamTransport], which reads
// and writes raw bytes and has no notion of WebSocket frames.
package wsconn

import (
	"net"
	"net/url"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/rromrrom/oss-core/internal/stringutils"
	"github.com/rromrrom/oss-core/sip"
)

// Config tunes the handshake timeout applied to both [Listener] and [Dialer].
type Config struct {
	// UpgradeTimeout bounds the WebSocket handshake. If zero, no deadline is set.
	UpgradeTimeout time.Duration
}

func (c *Config) timeout() time.Duration {
	if c == nil {
		return 0
	}
	return c.UpgradeTimeout
}

// sipProtocol matches the "sip" WebSocket subprotocol negotiated per RFC 7118.
var sipProtocol = stringutils.LCase(sip.ProtoVer20().Name)

// Listener wraps a TCP/TLS [net.Listener] and performs the server-side
// WebSocket handshake on every accepted connection before handing it to the
// caller, so the accepted [net.Conn] already speaks framed SIP messages.
type Listener struct {
	net.Listener
	ws.Upgrader
	cfg *Config
}

// NewListener wraps ls. cfg is optional.
func NewListener(ls net.Listener, cfg *Config) *Listener {
	wl := &Listener{Listener: ls, cfg: cfg}
	wl.Protocol = func(b []byte) bool { return stringutils.LCase(string(b)) == sipProtocol }
	return wl
}

func (l *Listener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	uc, err := l.upgrade(c)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return uc, nil
}

func (l *Listener) upgrade(c net.Conn) (net.Conn, error) {
	if t := l.cfg.timeout(); t > 0 {
		if err := c.SetDeadline(time.Now().Add(t)); err != nil {
			return nil, err
		}
		defer c.SetDeadline(time.Time{}) //nolint:errcheck
	}

	hs, err := l.Upgrader.Upgrade(c)
	if err != nil {
		return nil, err
	}
	return &conn{Conn: c, side: ws.StateServerSide, hs: hs}, nil
}

// Dialer performs the client-side WebSocket handshake for outbound
// connections, used by [sip.StreamTransportOptions.Dial].
type Dialer struct {
	ws.Dialer
	cfg *Config
}

// NewDialer builds a Dialer negotiating the "sip" subprotocol. cfg is optional.
func NewDialer(cfg *Config) *Dialer {
	d := &Dialer{cfg: cfg}
	d.Protocols = []string{sipProtocol}
	return d
}

// Upgrade dials raw and negotiates the WebSocket handshake with u, returning
// a [net.Conn] that reads/writes framed SIP messages.
func (d *Dialer) Upgrade(raw net.Conn, u *url.URL) (net.Conn, error) {
	if t := d.cfg.timeout(); t > 0 {
		if err := raw.SetDeadline(time.Now().Add(t)); err != nil {
			return nil, err
		}
		defer raw.SetDeadline(time.Time{}) //nolint:errcheck
	}

	_, hs, err := d.Dialer.Upgrade(raw, u)
	if err != nil {
		return nil, err
	}
	return &conn{Conn: raw, side: ws.StateClientSide, hs: hs}, nil
}

// conn frames Read/Write as WebSocket text messages over the underlying
// connection, so callers see a plain byte stream of SIP messages.
type conn struct {
	net.Conn
	side ws.State
	hs   ws.Handshake

	// pending holds the tail of a WebSocket message too large for the last
	// Read call's buffer, so the next Read can resume from it instead of
	// dropping it.
	pending []byte
}

func (c *conn) Read(b []byte) (int, error) {
	if len(c.pending) == 0 {
		var (
			msg []byte
			err error
		)
		if c.side.ClientSide() {
			msg, _, err = wsutil.ReadServerData(c.Conn)
		} else {
			msg, _, err = wsutil.ReadClientData(c.Conn)
		}
		if err != nil {
			return 0, err
		}
		c.pending = msg
	}

	n := copy(b, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *conn) Write(b []byte) (int, error) {
	var err error
	if c.side.ClientSide() {
		err = wsutil.WriteClientMessage(c.Conn, ws.OpText, b)
	} else {
		err = wsutil.WriteServerMessage(c.Conn, ws.OpText, b)
	}
	if err != nil {
		return 0, err
	}
	return len(b), nil
}
