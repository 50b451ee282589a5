package glz

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func literalPayload(pixels []byte) []byte {
	buf := make([]byte, 0, 3+len(pixels))
	buf = append(buf, opLiteralRun)
	lenBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBuf, uint16(len(pixels)))
	buf = append(buf, lenBuf...)
	buf = append(buf, pixels...)
	return buf
}

func TestDecodeLiteralOnly(t *testing.T) {
	w := NewWindow(0)
	pixels := bytes.Repeat([]byte{1, 2, 3, 4}, 2) // 2 pixels, 1x2
	img, err := w.Decode(1, 0, 1, 2, literalPayload(pixels))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(img.Pixels, pixels) {
		t.Fatalf("Pixels = %v, want %v", img.Pixels, pixels)
	}
}

// backRefPayload builds an opBackRef opcode referencing refID at the given
// byte offset and length within that image's retained pixels.
func backRefPayload(refID uint64, offset uint32, length uint16) []byte {
	buf := []byte{opBackRef}
	idBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(idBuf, refID)
	buf = append(buf, idBuf...)
	offBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(offBuf, offset)
	buf = append(buf, offBuf...)
	lenBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBuf, length)
	buf = append(buf, lenBuf...)
	return buf
}

func TestDecodeBackReference(t *testing.T) {
	w := NewWindow(0)
	base := bytes.Repeat([]byte{9, 9, 9, 9}, 2)
	if _, err := w.Decode(1, 0, 1, 2, literalPayload(base)); err != nil {
		t.Fatalf("Decode base: %v", err)
	}

	buf := backRefPayload(1, 0, uint16(len(base)))

	img, err := w.Decode(2, 1, 1, 2, buf)
	if err != nil {
		t.Fatalf("Decode back-ref: %v", err)
	}
	if !bytes.Equal(img.Pixels, base) {
		t.Fatalf("Pixels = %v, want %v", img.Pixels, base)
	}
}

// TestDecodeBackReferenceNonPrefix covers spec.md section 8 scenario 3: a
// later image references pixels from an earlier one at a non-zero offset,
// not just its prefix.
func TestDecodeBackReferenceNonPrefix(t *testing.T) {
	w := NewWindow(0)
	// Four distinct 1x1 (4-byte) pixels concatenated into one 1x4 image.
	px0 := []byte{1, 2, 3, 4}
	px1 := []byte{5, 6, 7, 8}
	px2 := []byte{9, 10, 11, 12}
	px3 := []byte{13, 14, 15, 16}
	base := append(append(append(append([]byte{}, px0...), px1...), px2...), px3...)
	if _, err := w.Decode(1, 0, 1, 4, literalPayload(base)); err != nil {
		t.Fatalf("Decode base: %v", err)
	}

	// Reference only the third pixel (byte offset 8, length 4) of image 1.
	buf := backRefPayload(1, 8, 4)
	img, err := w.Decode(3, 1, 1, 1, buf)
	if err != nil {
		t.Fatalf("Decode back-ref: %v", err)
	}
	if !bytes.Equal(img.Pixels, px2) {
		t.Fatalf("Pixels = %v, want %v (non-prefix slice of image 1)", img.Pixels, px2)
	}
}

func TestDecodeRejectsStaleWindowHead(t *testing.T) {
	w := NewWindow(1) // tiny budget forces eviction after 2nd append
	p := literalPayload(bytes.Repeat([]byte{1, 1, 1, 1}, 1))
	if _, err := w.Decode(1, 0, 1, 1, p); err != nil {
		t.Fatalf("Decode 1: %v", err)
	}
	if _, err := w.Decode(2, 1, 1, 1, p); err != nil {
		t.Fatalf("Decode 2: %v", err)
	}
	// id 1 should now be evicted; referencing window_head_id below the new
	// earliest id must fail.
	if _, err := w.Decode(3, 1, 1, 1, p); err == nil {
		t.Fatal("expected error for stale window_head_id after eviction")
	}
}

func TestDecodeUnknownBackReference(t *testing.T) {
	w := NewWindow(0)
	buf := backRefPayload(999, 0, 0)
	if _, err := w.Decode(1, 0, 1, 1, buf); err == nil {
		t.Fatal("expected error for back-reference to unknown image")
	}
}

func TestDecodeBackReferenceOutOfRange(t *testing.T) {
	w := NewWindow(0)
	base := bytes.Repeat([]byte{9, 9, 9, 9}, 2)
	if _, err := w.Decode(1, 0, 1, 2, literalPayload(base)); err != nil {
		t.Fatalf("Decode base: %v", err)
	}
	// offset+length runs past the end of image 1's retained pixels.
	buf := backRefPayload(1, 4, uint16(len(base)))
	if _, err := w.Decode(2, 1, 1, 2, buf); err == nil {
		t.Fatal("expected error for out-of-range back-reference offset")
	}
}
