package codec

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func lzCopy(data []byte) []byte {
	buf := []byte{lzOpCopy}
	lenBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBuf, uint16(len(data)))
	buf = append(buf, lenBuf...)
	return append(buf, data...)
}

func lzMatch(distance, length int) []byte {
	buf := []byte{lzOpMatch}
	d := make([]byte, 2)
	binary.LittleEndian.PutUint16(d, uint16(distance))
	l := make([]byte, 2)
	binary.LittleEndian.PutUint16(l, uint16(length))
	buf = append(buf, d...)
	return append(buf, l...)
}

func TestDecodeLZRGBCopyOnly(t *testing.T) {
	pixels := bytes.Repeat([]byte{1, 2, 3, 4}, 2)
	img, err := DecodeLZRGB(lzCopy(pixels), 1, 2)
	if err != nil {
		t.Fatalf("DecodeLZRGB: %v", err)
	}
	if !bytes.Equal(img.Pixels, pixels) {
		t.Fatalf("Pixels = %v, want %v", img.Pixels, pixels)
	}
}

func TestDecodeLZRGBMatchRepeatsEarlierBytes(t *testing.T) {
	payload := append(lzCopy([]byte{1, 2, 3, 4}), lzMatch(4, 4)...)
	img, err := DecodeLZRGB(payload, 1, 2)
	if err != nil {
		t.Fatalf("DecodeLZRGB: %v", err)
	}
	want := []byte{1, 2, 3, 4, 1, 2, 3, 4}
	if !bytes.Equal(img.Pixels, want) {
		t.Fatalf("Pixels = %v, want %v", img.Pixels, want)
	}
}

func TestDecodeLZRGBRejectsBadMatchDistance(t *testing.T) {
	payload := lzMatch(10, 4) // nothing written yet, distance is out of range
	if _, err := DecodeLZRGB(payload, 1, 1); err == nil {
		t.Fatal("expected error for out-of-range match distance")
	}
}

func TestDecodeQUICZeroRunAndLiteral(t *testing.T) {
	buf := []byte{0}
	n := make([]byte, 2)
	binary.LittleEndian.PutUint16(n, 1) // one zero pixel
	buf = append(buf, n...)
	buf = append(buf, 1, 9, 9, 9, 9) // tag 1, literal pixel

	img, err := DecodeQUIC(buf, 1, 2)
	if err != nil {
		t.Fatalf("DecodeQUIC: %v", err)
	}
	want := []byte{0, 0, 0, 0, 9, 9, 9, 9}
	if !bytes.Equal(img.Pixels, want) {
		t.Fatalf("Pixels = %v, want %v", img.Pixels, want)
	}
}
