package controller

import (
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeHandler struct {
	connectedHost string
	shown         bool
	hidden        bool
	title         string
	hotkeySpec    string
	failConnect   bool
}

func (f *fakeHandler) Connect(host string, port, securePort int, password string) error {
	if f.failConnect {
		return fmt.Errorf("connect refused")
	}
	f.connectedHost = host
	return nil
}
func (f *fakeHandler) Show()                   { f.shown = true }
func (f *fakeHandler) Hide()                    { f.hidden = true }
func (f *fakeHandler) SetTitle(title string)    { f.title = title }
func (f *fakeHandler) SetHotKeys(spec string) error {
	f.hotkeySpec = spec
	return nil
}

func startTestServer(t *testing.T, h Handler) (*Server, string) {
	t.Helper()
	s := New(h)
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve("127.0.0.1:0") }()

	var addr string
	for i := 0; i < 100; i++ {
		if a := s.Addr(); a != nil {
			addr = a.String()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		t.Fatal("server never bound a listener")
	}
	t.Cleanup(func() {
		s.Close()
		select {
		case <-errCh:
		case <-time.After(time.Second):
		}
	})
	return s, addr
}

func dial(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestConnectOpDispatchesToHandler(t *testing.T) {
	h := &fakeHandler{}
	_, addr := startTestServer(t, h)
	conn := dial(t, addr)

	req := Request{ID: "1", Op: "connect", Payload: map[string]any{"host": "spice.example", "port": float64(5900)}}
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var resp Response
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp.Status != "ok" || resp.RequestID != "1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if h.connectedHost != "spice.example" {
		t.Fatalf("handler.Connect not invoked with expected host, got %q", h.connectedHost)
	}
}

func TestShowHideSetTitleOps(t *testing.T) {
	h := &fakeHandler{}
	_, addr := startTestServer(t, h)
	conn := dial(t, addr)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	for _, req := range []Request{
		{ID: "a", Op: "show"},
		{ID: "b", Op: "hide"},
		{ID: "c", Op: "set_title", Payload: map[string]any{"title": "Remote Desktop"}},
	} {
		if err := conn.WriteJSON(req); err != nil {
			t.Fatalf("WriteJSON: %v", err)
		}
		var resp Response
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		if resp.Status != "ok" {
			t.Fatalf("op %s failed: %+v", req.Op, resp)
		}
	}
	if !h.shown || !h.hidden || h.title != "Remote Desktop" {
		t.Fatalf("handler did not observe all ops: %+v", h)
	}
}

func TestUnknownOpReturnsError(t *testing.T) {
	h := &fakeHandler{}
	_, addr := startTestServer(t, h)
	conn := dial(t, addr)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	if err := conn.WriteJSON(Request{ID: "x", Op: "nonexistent"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp.Status != "error" || resp.Error == "" {
		t.Fatalf("expected an error response for an unknown op, got %+v", resp)
	}
}

func TestConnectFailurePropagatesError(t *testing.T) {
	h := &fakeHandler{failConnect: true}
	_, addr := startTestServer(t, h)
	conn := dial(t, addr)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	if err := conn.WriteJSON(Request{ID: "z", Op: "connect"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var resp Response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp.Status != "error" {
		t.Fatalf("expected error status, got %+v", resp)
	}
}
