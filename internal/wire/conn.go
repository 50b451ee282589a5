// Package wire implements the framed, length-checked transport that every
// SPICE channel runs over: a net.Conn (plain or TLS) read and written as
// length-prefixed, little-endian message headers per spec.md section 4.A.
package wire

import (
	"crypto/tls"
	"net"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"github.com/breeze-rmm/spicec/internal/logging"
	"github.com/breeze-rmm/spicec/internal/mtls"
	"github.com/breeze-rmm/spicec/internal/spiceerr"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

var log = logging.L("wire")

// Conn wraps a net.Conn with SPICE's message-header framing and a
// single-writer lock, mirroring the length-prefixed, HMAC-free framing
// shape used by the teacher's IPC transport minus the application-layer
// envelope (the wire header itself is authenticated by TLS, not HMAC).
type Conn struct {
	raw net.Conn
	mu  sync.Mutex // serializes writes

	maxMessage uint32
}

// DialOptions configures how a channel connects to the server.
type DialOptions struct {
	Address     string // host:port
	ProxyAddr   string // SOCKS5 proxy host:port; empty dials Address directly
	UseTLS      bool
	TLS         mtls.Options
	DialTimeout time.Duration
}

// Dial opens a TCP connection to opts.Address, routing it through a SOCKS5
// proxy first when opts.ProxyAddr is set (per spec.md section 6's
// `--secure-channels`-style per-channel connection policy, extended with
// proxy support), then wrapping it in TLS when opts.UseTLS is set.
func Dial(opts DialOptions) (*Conn, error) {
	timeout := opts.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	raw, err := dialRaw(opts.Address, opts.ProxyAddr, timeout)
	if err != nil {
		return nil, spiceerr.IO("wire: dial %s: %w", opts.Address, err)
	}

	if opts.UseTLS {
		tlsConf, err := mtls.BuildTLSConfig(opts.TLS)
		if err != nil {
			raw.Close()
			return nil, spiceerr.IO("wire: build tls config: %w", err)
		}
		tlsConn := tls.Client(raw, tlsConf)
		tlsConn.SetDeadline(time.Now().Add(timeout))
		if err := tlsConn.Handshake(); err != nil {
			raw.Close()
			return nil, spiceerr.IO("wire: tls handshake: %w", err)
		}
		tlsConn.SetDeadline(time.Time{})
		raw = tlsConn
	}

	return &Conn{raw: raw, maxMessage: spice.MaxMessageSize}, nil
}

// dialRaw dials address directly, or through a SOCKS5 proxy at proxyAddr
// when one is configured.
func dialRaw(address, proxyAddr string, timeout time.Duration) (net.Conn, error) {
	if proxyAddr == "" {
		return net.DialTimeout("tcp", address, timeout)
	}
	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, spiceerr.IO("wire: build socks5 dialer for %s: %w", proxyAddr, err)
	}
	return dialer.Dial("tcp", address)
}

// NewConn wraps an already-established connection that wire.Conn did not
// dial itself (used by tests, which hand it one end of a net.Pipe).
func NewConn(raw net.Conn) *Conn {
	return &Conn{raw: raw, maxMessage: spice.MaxMessageSize}
}

func (c *Conn) Close() error            { return c.raw.Close() }
func (c *Conn) RemoteAddr() net.Addr    { return c.raw.RemoteAddr() }
func (c *Conn) LocalAddr() net.Addr     { return c.raw.LocalAddr() }
func (c *Conn) SetDeadline(t time.Time) error      { return c.raw.SetDeadline(t) }
func (c *Conn) SetReadDeadline(t time.Time) error  { return c.raw.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.raw.SetWriteDeadline(t) }

// WriteRaw writes a pre-framed buffer (header+body already concatenated)
// under the connection's write lock, so callers writing pre-framed bytes
// (internal/channel's link handshake and auth blob) get atomic writes.
func (c *Conn) WriteRaw(buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.raw.Write(buf); err != nil {
		return spiceerr.IO("wire: write: %w", err)
	}
	return nil
}

// WriteMessage frames body with a MessageHeader and writes it atomically.
func (c *Conn) WriteMessage(serial uint64, msgType uint16, body []byte) error {
	hdr := spice.MessageHeader{
		Serial: serial,
		Type:   msgType,
		Size:   uint32(len(body)),
	}
	buf := make([]byte, 0, spice.HeaderSize+len(body))
	buf = append(buf, hdr.Marshal()...)
	buf = append(buf, body...)
	return c.WriteRaw(buf)
}

// ReadMessage reads one framed message: a fixed MessageHeader followed by
// Size bytes of body. It rejects any Size above the transport's configured
// maximum to bound attacker-controlled allocation.
func (c *Conn) ReadMessage() (spice.MessageHeader, []byte, error) {
	hdrBuf := make([]byte, spice.HeaderSize)
	if err := spice.ReadExact(c.raw, hdrBuf); err != nil {
		return spice.MessageHeader{}, nil, spiceerr.IO("wire: read header: %w", err)
	}
	hdr, err := spice.UnmarshalHeader(hdrBuf)
	if err != nil {
		return spice.MessageHeader{}, nil, spiceerr.Protocol("wire: decode header: %w", err)
	}
	if hdr.Size > c.maxMessage {
		return spice.MessageHeader{}, nil, spiceerr.Protocol(
			"wire: message size %d exceeds limit %d", hdr.Size, c.maxMessage)
	}

	body := make([]byte, hdr.Size)
	if err := spice.ReadExact(c.raw, body); err != nil {
		return spice.MessageHeader{}, nil, spiceerr.IO("wire: read body: %w", err)
	}
	return hdr, body, nil
}

// WriteLinkHeader/ReadLinkHeader frame the pre-handshake RedLinkHeader,
// which precedes LinkMess/LinkReply and is not a MessageHeader.
func (c *Conn) WriteLinkHeader(bodySize uint32) error {
	h := spice.NewLinkHeader(bodySize)
	return c.WriteRaw(h.Marshal())
}

func (c *Conn) ReadLinkHeader() (spice.LinkHeader, error) {
	buf := make([]byte, spice.LinkHeaderSize)
	if err := spice.ReadExact(c.raw, buf); err != nil {
		return spice.LinkHeader{}, spiceerr.IO("wire: read link header: %w", err)
	}
	h, err := spice.UnmarshalLinkHeader(buf)
	if err != nil {
		return spice.LinkHeader{}, spiceerr.Protocol("wire: decode link header: %w", err)
	}
	if h.Magic != [4]byte{'R', 'E', 'D', 'Q'} {
		return spice.LinkHeader{}, spiceerr.Protocol("wire: bad link magic %q", h.Magic[:])
	}
	return h, nil
}

// ReadExactBody reads exactly n bytes, used for the variable-size body
// that follows a LinkHeader (LinkMess or LinkReply).
func (c *Conn) ReadExactBody(n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if err := spice.ReadExact(c.raw, buf); err != nil {
		return nil, spiceerr.IO("wire: read link body: %w", err)
	}
	return buf, nil
}

