// Package controller implements the foreign-menu / controller IPC surface
// of spec.md section 6: a local control plane a host application (or a
// wrapping shell UI) uses to drive the session — connect, show/hide the
// window, retitle it, and replace the hotkey table — without going
// through the platform-specific named-pipe/unix-socket transport the
// original names. Reimagined per SPEC_FULL.md's domain-stack table as a
// loopback gorilla/websocket endpoint, grounded on the teacher's
// websocket client (internal/websocket/client.go) reused the other
// direction: a local Upgrader accepting connections instead of an
// outbound Dialer, with the same typed request/response JSON envelope.
package controller

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/breeze-rmm/spicec/internal/logging"
)

var log = logging.L("controller")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Request is one foreign-menu command, mirroring the teacher's Command
// envelope (id/type/payload) but named for this package's operations.
type Request struct {
	ID      string         `json:"id"`
	Op      string         `json:"op"`
	Payload map[string]any `json:"payload"`
}

// Response answers one Request, mirroring the teacher's CommandResult.
type Response struct {
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Handler executes decoded operations against the running session.
// cmd/spicec supplies the concrete implementation bound to an
// internal/app.Application.
type Handler interface {
	Connect(host string, port, securePort int, password string) error
	Show()
	Hide()
	SetTitle(title string)
	SetHotKeys(spec string) error
}

// Server is a loopback-only WebSocket endpoint exposing Handler's
// operations to local clients; each connection is served on its own.
type Server struct {
	handler  Handler
	upgrader websocket.Upgrader

	mu      sync.Mutex
	ln      net.Listener
	httpSrv *http.Server
}

// New constructs a Server bound to handler. Start it with Serve.
func New(handler Handler) *Server {
	return &Server{
		handler: handler,
		upgrader: websocket.Upgrader{
			// Loopback-only by construction (Serve refuses any address that
			// is not loopback); origin
			// checking would only reject the same local caller.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve listens on a loopback address ("127.0.0.1:0" picks a free port;
// a non-loopback address is rejected) and blocks until Close is called.
// Addr is available once Serve has bound its listener — callers needing
// it concurrently should read it after the first connection attempt or
// via a small settling delay.
func (s *Server) Serve(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("controller: listen address: %w", err)
	}
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return fmt.Errorf("controller: %q is not a loopback address", addr)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("controller: listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)

	s.mu.Lock()
	s.ln = ln
	s.httpSrv = &http.Server{Handler: mux}
	srv := s.httpSrv
	s.mu.Unlock()

	log.Info("controller listening", "addr", ln.Addr().String())
	err = srv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Addr returns the bound listener address, or nil if Serve hasn't run yet.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close shuts the server down.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Close()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("controller upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	stop := make(chan struct{})
	defer close(stop)
	go s.pingLoop(conn, stop)

	var writeMu sync.Mutex
	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("controller read error", "error", err)
			}
			return
		}
		resp := s.dispatch(req)
		writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		err = conn.WriteJSON(resp)
		writeMu.Unlock()
		if err != nil {
			log.Warn("controller write error", "error", err)
			return
		}
	}
}

func (s *Server) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{RequestID: req.ID, Status: "ok"}
	var err error
	switch req.Op {
	case "connect":
		host, _ := req.Payload["host"].(string)
		port, _ := req.Payload["port"].(float64)
		securePort, _ := req.Payload["securePort"].(float64)
		password, _ := req.Payload["password"].(string)
		err = s.handler.Connect(host, int(port), int(securePort), password)
	case "show":
		s.handler.Show()
	case "hide":
		s.handler.Hide()
	case "set_title":
		title, _ := req.Payload["title"].(string)
		s.handler.SetTitle(title)
	case "set_hotkeys":
		spec, _ := req.Payload["spec"].(string)
		err = s.handler.SetHotKeys(spec)
	default:
		err = fmt.Errorf("controller: unknown op %q", req.Op)
	}
	if err != nil {
		resp.Status = "error"
		resp.Error = err.Error()
	}
	return resp
}
