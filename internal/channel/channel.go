// Package channel implements the base SPICE channel lifecycle shared by
// every channel type: link handshake, password authentication, the
// outbound send queue, ack-windowed flow control, and the migration state
// machine (spec.md section 4.B). Channel-specific packages (display,
// cursor, inputs, mainchannel) embed *channel.Base and supply a Handler
// for their own message types.
package channel

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/breeze-rmm/spicec/internal/logging"
	"github.com/breeze-rmm/spicec/internal/spiceerr"
	"github.com/breeze-rmm/spicec/internal/wire"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

var log = logging.L("channel")

// MigrationState is the channel's position in the live-migration handoff.
type MigrationState int

const (
	MigrationNormal MigrationState = iota
	MigrationFlushSent
	MigrationDataSent
)

// Handler receives decoded messages for a connected channel. Dispatch
// happens on the channel's single reader goroutine; handlers must not
// block for long or they stall ack and ping processing.
type Handler interface {
	// HandleMessage is called, in receive order, with every message after
	// the link handshake and auth complete, except PING and SET_ACK, which
	// Base answers itself without passing them on.
	HandleMessage(msgType uint16, body []byte) error
	// OnConnected is called once the channel is linked and authenticated.
	OnConnected()
	// OnDisconnected is called when the connection drops, before any
	// reconnect attempt.
	OnDisconnected(err error)
}

// Config describes how to identify one channel during the link handshake.
// The actual network connection is supplied by the dial func passed to
// New, so Config carries only what the handshake itself needs.
type Config struct {
	ChannelType  spice.ChannelType
	ChannelID    uint8
	ConnectionID uint32
	Password     string
	CommonCaps   []uint32
	ChannelCaps  []uint32
}

// reconnect/backoff tuning, grounded on the teacher's websocket client.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
)

// Base is the shared channel engine. It owns the wire connection, the
// outbound send queue, and ack/migration bookkeeping; it has no knowledge
// of any particular channel's message bodies.
type Base struct {
	cfg     Config
	dial    func() (*wire.Conn, error)
	handler Handler

	conn   *wire.Conn
	connMu sync.RWMutex

	serial    atomic.Uint64
	sendQueue chan outboundMsg
	done      chan struct{}
	stopOnce  sync.Once

	ackWindow   uint32
	recvCount   atomic.Uint32
	migState    atomic.Int32
	bytesRead   atomic.Uint64
}

type outboundMsg struct {
	msgType uint16
	body    []byte
}

// New constructs a Base channel. dial is injected so internal/wire's TLS
// plumbing (and tests) can substitute a fake dialer.
func New(cfg Config, dial func() (*wire.Conn, error), handler Handler) *Base {
	if len(cfg.CommonCaps) == 0 {
		cfg.CommonCaps = []uint32{spice.CapAuthSpice}
	}
	return &Base{
		cfg:       cfg,
		dial:      dial,
		handler:   handler,
		sendQueue: make(chan outboundMsg, 256),
		done:      make(chan struct{}),
		ackWindow: spice.AckWindow,
	}
}

// Run drives the reconnect loop until Stop is called. It blocks the
// calling goroutine; callers typically run it in its own goroutine.
func (b *Base) Run() {
	backoff := initialBackoff
	for {
		select {
		case <-b.done:
			return
		default:
		}

		if err := b.connectOnce(); err != nil {
			log.Warn("channel connect failed", "channel", b.cfg.ChannelType.String(), "error", err)
			select {
			case <-b.done:
				return
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * backoffFactor)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = initialBackoff

		b.handler.OnConnected()
		err := b.readLoop()
		b.handler.OnDisconnected(err)

		select {
		case <-b.done:
			return
		default:
		}
	}
}

// Stop closes the channel and ends Run's reconnect loop.
func (b *Base) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.connMu.Lock()
		if b.conn != nil {
			b.conn.Close()
		}
		b.connMu.Unlock()
	})
}

// Send enqueues a message for the write goroutine. It never blocks
// indefinitely: a full queue means the channel is unresponsive and the
// caller should treat it as a disconnect.
func (b *Base) Send(msgType uint16, body []byte) error {
	select {
	case b.sendQueue <- outboundMsg{msgType: msgType, body: body}:
		return nil
	case <-b.done:
		return spiceerr.Cancelled("channel: send after stop")
	default:
		return spiceerr.Resource("channel: send queue full")
	}
}

// MigrationState returns the channel's current migration phase.
func (b *Base) MigrationState() MigrationState {
	return MigrationState(b.migState.Load())
}

// BeginMigrationFlush transitions Normal -> MigFlushSent, the first step
// of spec.md's migration handshake.
func (b *Base) BeginMigrationFlush() {
	b.migState.Store(int32(MigrationFlushSent))
}

// CompleteMigration transitions back to Normal once the destination
// channel has taken over.
func (b *Base) CompleteMigration() {
	b.migState.Store(int32(MigrationNormal))
}

// TakeByteSample returns the number of message bytes read since the last
// call and resets the counter, letting a caller (internal/video's
// bandwidth estimator) compute throughput without this package owning a
// clock of its own.
func (b *Base) TakeByteSample() uint64 {
	return b.bytesRead.Swap(0)
}

func (b *Base) connectOnce() error {
	conn, err := b.dial()
	if err != nil {
		return err
	}
	if err := b.linkHandshake(conn); err != nil {
		conn.Close()
		return err
	}
	b.connMu.Lock()
	b.conn = conn
	b.connMu.Unlock()
	b.recvCount.Store(0)
	go b.writePump()
	return nil
}

// linkHandshake performs spec.md's LINK_MESS/LINK_REPLY exchange and, if
// the server requires SPICE-native auth, the RSA password step.
func (b *Base) linkHandshake(conn *wire.Conn) error {
	mess := spice.LinkMess{
		ConnectionID: b.cfg.ConnectionID,
		ChannelType:  b.cfg.ChannelType,
		ChannelID:    b.cfg.ChannelID,
		CommonCaps:   b.cfg.CommonCaps,
		ChannelCaps:  b.cfg.ChannelCaps,
	}
	body := mess.Marshal()
	if err := conn.WriteLinkHeader(uint32(len(body))); err != nil {
		return err
	}
	if err := conn.WriteRaw(body); err != nil {
		return err
	}

	replyHdr, err := conn.ReadLinkHeader()
	if err != nil {
		return err
	}
	replyBody, err := conn.ReadExactBody(replyHdr.Size)
	if err != nil {
		return err
	}
	reply, err := spice.UnmarshalLinkReply(replyBody)
	if err != nil {
		return spiceerr.Protocol("channel: decode link reply: %w", err)
	}
	if reply.Error != spice.LinkErrOK {
		return spiceerr.Auth("channel: link rejected: %v", reply.Error)
	}

	return b.authenticate(conn, reply)
}

// authenticate performs SPICE's ticket auth: the password is OAEP-SHA1
// encrypted with the server's RSA public key and sent as a 128-byte
// (1024-bit) blob, then the server replies with a 4-byte result code.
func (b *Base) authenticate(conn *wire.Conn, reply spice.LinkReply) error {
	pub, err := x509.ParsePKIXPublicKey(reply.PubKey[:])
	if err != nil {
		return spiceerr.Auth("channel: parse server public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return spiceerr.Auth("channel: server key is not RSA")
	}

	plain := make([]byte, 64)
	copy(plain, b.cfg.Password)

	cipher, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, rsaPub, plain, nil)
	if err != nil {
		return spiceerr.Auth("channel: encrypt password: %w", err)
	}
	if err := conn.WriteRaw(cipher); err != nil {
		return err
	}

	resultBuf, err := conn.ReadExactBody(4)
	if err != nil {
		return err
	}
	if result := binary.LittleEndian.Uint32(resultBuf); result != 0 {
		return spiceerr.Auth("channel: authentication failed: code %d", result)
	}
	return nil
}

func (b *Base) writePump() {
	for {
		select {
		case <-b.done:
			return
		case msg, ok := <-b.sendQueue:
			if !ok {
				return
			}
			b.connMu.RLock()
			conn := b.conn
			b.connMu.RUnlock()
			if conn == nil {
				continue
			}
			serial := b.serial.Add(1)
			if err := conn.WriteMessage(serial, msg.msgType, msg.body); err != nil {
				log.Warn("channel write failed", "channel", b.cfg.ChannelType.String(), "error", err)
				return
			}
		}
	}
}

func (b *Base) readLoop() error {
	for {
		b.connMu.RLock()
		conn := b.conn
		b.connMu.RUnlock()
		if conn == nil {
			return nil
		}

		hdr, body, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		b.bytesRead.Add(uint64(spice.HeaderSize + len(body)))

		switch hdr.Type {
		case spice.MsgPing:
			if err := b.handlePing(body); err != nil {
				return err
			}
			continue
		case spice.MsgSetAck:
			if err := b.handleSetAck(body); err != nil {
				return err
			}
			continue
		case spice.MsgNotify:
			if err := b.handler.HandleMessage(hdr.Type, body); err != nil {
				log.Warn("notify handler error", "error", err)
			}
			continue
		}

		if err := b.handler.HandleMessage(hdr.Type, body); err != nil {
			return spiceerr.Protocol("channel: handle message type %d: %w", hdr.Type, err)
		}

		if n := b.recvCount.Add(1); b.ackWindow > 0 && n%b.ackWindow == 0 {
			if err := b.Send(spice.MsgcAckSync, nil); err != nil {
				log.Warn("ack send failed", "error", err)
			}
		}
	}
}

func (b *Base) handlePing(body []byte) error {
	// Ping payload is {id uint32, timestamp uint64}; echoed back as Pong.
	if len(body) < 12 {
		return spiceerr.Protocol("channel: short ping body: %d", len(body))
	}
	return b.Send(spice.MsgcPong, body)
}

func (b *Base) handleSetAck(body []byte) error {
	if len(body) < 8 {
		return spiceerr.Protocol("channel: short set_ack body: %d", len(body))
	}
	generation := binary.LittleEndian.Uint32(body[0:4])
	window := binary.LittleEndian.Uint32(body[4:8])
	if window > 0 {
		b.ackWindow = window
	}
	ack := make([]byte, 4)
	binary.LittleEndian.PutUint32(ack, generation)
	return b.Send(spice.MsgcAck, ack)
}

