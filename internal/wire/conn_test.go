package wire

import (
	"net"
	"testing"

	"github.com/breeze-rmm/spicec/internal/spiceerr"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

func pipeConns() (*Conn, *Conn) {
	a, b := net.Pipe()
	return NewConn(a), NewConn(b)
}

func TestWriteMessageRoundTrip(t *testing.T) {
	client, server := pipeConns()
	defer client.Close()
	defer server.Close()

	body := []byte("hello spice")
	go func() {
		if err := client.WriteMessage(7, 42, body); err != nil {
			t.Error(err)
		}
	}()

	hdr, got, err := server.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if hdr.Serial != 7 || hdr.Type != 42 || hdr.Size != uint32(len(body)) {
		t.Fatalf("header = %+v, want serial 7 type 42 size %d", hdr, len(body))
	}
	if string(got) != string(body) {
		t.Fatalf("body = %q, want %q", got, body)
	}
}

func TestReadMessageRejectsOversizeBody(t *testing.T) {
	client, server := pipeConns()
	defer client.Close()
	defer server.Close()
	server.maxMessage = 4

	go func() {
		client.WriteMessage(1, 1, []byte("too long"))
	}()

	_, _, err := server.ReadMessage()
	if err == nil {
		t.Fatal("expected an oversize-message error")
	}
	if !spiceerr.Is(err, spiceerr.CategoryProtocol) {
		t.Fatalf("expected a protocol category error, got %v", err)
	}
}

func TestLinkHeaderRoundTrip(t *testing.T) {
	client, server := pipeConns()
	defer client.Close()
	defer server.Close()

	go func() {
		if err := client.WriteLinkHeader(123); err != nil {
			t.Error(err)
		}
	}()

	h, err := server.ReadLinkHeader()
	if err != nil {
		t.Fatalf("ReadLinkHeader: %v", err)
	}
	if h.Size != 123 {
		t.Fatalf("Size = %d, want 123", h.Size)
	}
}

func TestReadLinkHeaderRejectsBadMagic(t *testing.T) {
	client, server := pipeConns()
	defer client.Close()
	defer server.Close()

	bad := spice.NewLinkHeader(0)
	go func() {
		buf := bad.Marshal()
		buf[0] = 'X' // corrupt the magic
		client.WriteRaw(buf)
	}()

	_, err := server.ReadLinkHeader()
	if err == nil {
		t.Fatal("expected a bad-magic error")
	}
	if !spiceerr.Is(err, spiceerr.CategoryProtocol) {
		t.Fatalf("expected a protocol category error, got %v", err)
	}
}

func TestReadExactBody(t *testing.T) {
	client, server := pipeConns()
	defer client.Close()
	defer server.Close()

	go func() {
		client.WriteRaw([]byte("0123456789"))
	}()

	got, err := server.ReadExactBody(10)
	if err != nil {
		t.Fatalf("ReadExactBody: %v", err)
	}
	if string(got) != "0123456789" {
		t.Fatalf("got %q, want %q", got, "0123456789")
	}
}

func TestDialUnreachableAddressReturnsIOError(t *testing.T) {
	_, err := Dial(DialOptions{Address: "127.0.0.1:1"})
	if err == nil {
		t.Fatal("expected a dial error against a closed port")
	}
	if !spiceerr.Is(err, spiceerr.CategoryIO) {
		t.Fatalf("expected an IO category error, got %v", err)
	}
}
