package canvas

import (
	"image/color"
	"testing"

	"github.com/breeze-rmm/spicec/pkg/spice"
)

func fullBox(w, h int) spice.Rect {
	return spice.Rect{Top: 0, Left: 0, Bottom: int32(h), Right: int32(w)}
}

func TestFillSolidColor(t *testing.T) {
	s := NewSoftware(4, 4)
	brush := spice.Brush{Type: spice.BrushSolid, Color: 0x112233}
	if err := s.Fill(fullBox(4, 4), spice.Clip{}, brush, 0, nil); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	got := s.Image().RGBAAt(1, 1)
	want := color.RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xff}
	if got != want {
		t.Fatalf("pixel = %+v, want %+v", got, want)
	}
}

func TestCopyPlacesSourcePixels(t *testing.T) {
	s := NewSoftware(2, 2)
	src := &spice.DecodedImage{
		Width: 2, Height: 2, Stride: 8,
		Format: spice.PixelFormat32BitRGB,
		Pixels: []byte{
			9, 8, 7, 255, 9, 8, 7, 255,
			9, 8, 7, 255, 9, 8, 7, 255,
		},
	}
	if err := s.Copy(fullBox(2, 2), spice.Clip{}, src, spice.Rect{}, 0, nil); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	got := s.Image().RGBAAt(0, 0)
	if got.R != 9 || got.G != 8 || got.B != 7 {
		t.Fatalf("pixel = %+v, want R=9 G=8 B=7", got)
	}
}

func TestTransparentSkipsKeyColor(t *testing.T) {
	s := NewSoftware(2, 1)
	key := uint32(0xff00ff)
	src := &spice.DecodedImage{
		Width: 2, Height: 1, Stride: 8,
		Pixels: []byte{
			0xff, 0x00, 0xff, 0xff, // key color, should be skipped
			0x01, 0x02, 0x03, 0xff,
		},
	}
	if err := s.Transparent(fullBox(2, 1), spice.Clip{}, src, spice.Rect{}, key); err != nil {
		t.Fatalf("Transparent: %v", err)
	}
	if got := s.Image().RGBAAt(0, 0); got != (color.RGBA{}) {
		t.Fatalf("pixel at key color = %+v, want zero value (untouched)", got)
	}
	if got := s.Image().RGBAAt(1, 0); got.R != 1 || got.G != 2 || got.B != 3 {
		t.Fatalf("pixel at (1,0) = %+v, want R=1 G=2 B=3", got)
	}
}

func TestStrokeDrawsLine(t *testing.T) {
	s := NewSoftware(4, 4)
	brush := spice.Brush{Type: spice.BrushSolid, Color: 0xffffff}
	points := []spice.Point16{{X: 0, Y: 0}, {X: 3, Y: 0}}
	if err := s.Stroke(fullBox(4, 4), spice.Clip{}, points, brush); err != nil {
		t.Fatalf("Stroke: %v", err)
	}
	for x := 0; x <= 3; x++ {
		if got := s.Image().RGBAAt(x, 0); got.R != 0xff {
			t.Fatalf("pixel (%d,0) = %+v, want white", x, got)
		}
	}
}

func TestInversFlipsChannels(t *testing.T) {
	s := NewSoftware(1, 1)
	brush := spice.Brush{Type: spice.BrushSolid, Color: 0x000000}
	if err := s.Fill(fullBox(1, 1), spice.Clip{}, brush, 0, nil); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if err := s.Invers(fullBox(1, 1), spice.Clip{}, nil); err != nil {
		t.Fatalf("Invers: %v", err)
	}
	got := s.Image().RGBAAt(0, 0)
	if got.R != 255 || got.G != 255 || got.B != 255 {
		t.Fatalf("pixel = %+v, want white after inverting black", got)
	}
}

func TestCopyPixelsBetweenSurfaces(t *testing.T) {
	src := NewSoftware(2, 2)
	if err := src.Fill(fullBox(2, 2), spice.Clip{}, spice.Brush{Type: spice.BrushSolid, Color: 0xabcdef}, 0, nil); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	dst := NewSoftware(2, 2)
	if err := src.CopyPixels(fullBox(2, 2), dst); err != nil {
		t.Fatalf("CopyPixels: %v", err)
	}
	got := dst.Image().RGBAAt(0, 0)
	want := color.RGBA{R: 0xab, G: 0xcd, B: 0xef, A: 0xff}
	if got != want {
		t.Fatalf("pixel = %+v, want %+v", got, want)
	}
}
