// Package glz implements the GLZ dictionary image decoder and its shared
// FIFO window (spec.md section 4.E). A single Window is constructed per
// session and handed to every display channel's canvas. Each display
// channel decodes on its own reader goroutine, so Window serializes
// Decode and Reset with a mutex.
package glz

import (
	"encoding/binary"
	"sync"

	"github.com/breeze-rmm/spicec/internal/spiceerr"
)

// Image is one decoded entry retained in the window for future
// back-references.
type Image struct {
	ID     uint64
	Pixels []byte
	Width  int
	Height int
	Stride int
}

func (img *Image) size() int { return len(img.Pixels) }

// Window is the append-only FIFO of decoded images shared across display
// channels of one session. Decode and Reset hold mu for their whole run.
type Window struct {
	mu     sync.Mutex
	budget int
	used   int
	images []*Image       // ordered oldest-first
	byID   map[uint64]int // id -> index into images
}

// NewWindow creates a Window bounded by budgetBytes of decoded pixel data.
func NewWindow(budgetBytes int) *Window {
	return &Window{
		budget: budgetBytes,
		byID:   make(map[uint64]int),
	}
}

// earliestID returns the id of the oldest surviving image, or 0 if empty.
func (w *Window) earliestID() uint64 {
	if len(w.images) == 0 {
		return 0
	}
	return w.images[0].ID
}

// lookup finds a previously decoded image by id.
func (w *Window) lookup(id uint64) (*Image, bool) {
	idx, ok := w.byID[id]
	if !ok {
		return nil, false
	}
	return w.images[idx], true
}

// append adds a newly decoded image, evicting the oldest entries until
// the window fits its budget.
func (w *Window) append(img *Image) {
	w.images = append(w.images, img)
	w.byID[img.ID] = len(w.images) - 1
	w.used += img.size()

	for w.budget > 0 && w.used > w.budget && len(w.images) > 1 {
		oldest := w.images[0]
		w.images = w.images[1:]
		delete(w.byID, oldest.ID)
		w.used -= oldest.size()
		for id, idx := range w.byID {
			w.byID[id] = idx - 1
		}
	}
}

// Reset drops every retained image, used on reconnect since the window is
// not valid across a non-migration reconnect.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.images = nil
	w.byID = make(map[uint64]int)
	w.used = 0
}

// opcode tags for the payload walk.
const (
	opLiteralRun byte = 0
	opBackRef    byte = 1
)

// Decode walks a GLZ payload, resolving back-references against the
// window, and returns the fully decoded image. windowHeadID must be >=
// the id of the oldest surviving image in the window, per spec.md 4.E.
func (w *Window) Decode(id, windowHeadID uint64, width, height int, payload []byte) (*Image, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.images) > 0 && windowHeadID < w.earliestID() {
		return nil, spiceerr.Protocol(
			"glz: window_head_id %d older than earliest surviving id %d", windowHeadID, w.earliestID())
	}

	stride := width * 4
	out := make([]byte, 0, stride*height)

	pos := 0
	for pos < len(payload) {
		op := payload[pos]
		pos++
		switch op {
		case opLiteralRun:
			if pos+2 > len(payload) {
				return nil, spiceerr.Codec("glz: truncated literal run header")
			}
			n := int(binary.LittleEndian.Uint16(payload[pos : pos+2]))
			pos += 2
			if pos+n > len(payload) {
				return nil, spiceerr.Codec("glz: truncated literal run body")
			}
			out = appendLiteral(out, payload[pos:pos+n])
			pos += n
		case opBackRef:
			if pos+14 > len(payload) {
				return nil, spiceerr.Codec("glz: truncated back-reference")
			}
			refID := binary.LittleEndian.Uint64(payload[pos : pos+8])
			offset := int(binary.LittleEndian.Uint32(payload[pos+8 : pos+12]))
			length := int(binary.LittleEndian.Uint16(payload[pos+12 : pos+14]))
			pos += 14

			ref, ok := w.lookup(refID)
			if !ok {
				return nil, spiceerr.Codec("glz: back-reference to unknown image %d", refID)
			}
			if offset < 0 || offset+length > len(ref.Pixels) {
				return nil, spiceerr.Codec(
					"glz: back-reference (offset %d, length %d) out of range for image %d (%d bytes)",
					offset, length, refID, len(ref.Pixels))
			}
			out = appendLiteral(out, ref.Pixels[offset:offset+length])
		default:
			return nil, spiceerr.Codec("glz: unknown opcode %d", op)
		}
	}

	if len(out) > stride*height {
		out = out[:stride*height]
	} else if len(out) < stride*height {
		padded := make([]byte, stride*height)
		copy(padded, out)
		out = padded
	}

	img := &Image{ID: id, Pixels: out, Width: width, Height: height, Stride: stride}
	w.append(img)
	return img, nil
}

// appendLiteral appends data, growing out in place; it exists as a named
// step so the opcode walk above reads as a sequence of writes.
func appendLiteral(out, data []byte) []byte {
	return append(out, data...)
}
