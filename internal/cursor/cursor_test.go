package cursor

import (
	"encoding/binary"
	"testing"

	"github.com/breeze-rmm/spicec/internal/cache"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

func newTestLayer() (*Layer, *[]Shape, *int) {
	shown := make([]Shape, 0)
	hides := 0
	layer := &Layer{
		Show: func(s Shape, pos spice.Point16) { shown = append(shown, s) },
		Hide: func() { hides++ },
		Move: func(pos spice.Point16) {},
	}
	return layer, &shown, &hides
}

func TestInitInstallsAndShowsShape(t *testing.T) {
	layer, shown, _ := newTestLayer()
	c := New(Config{Layer: layer}, cache.New(1<<20))

	err := c.onInit(spice.CursorInit{
		Shape:    spice.CursorHeader{UniqueID: 1},
		Position: spice.Point16{X: 3, Y: 4},
		VisFlags: 1,
	})
	if err != nil {
		t.Fatalf("onInit: %v", err)
	}
	if len(*shown) != 1 {
		t.Fatalf("expected one Show call, got %d", len(*shown))
	}
}

func TestHideThenSetReshowsShape(t *testing.T) {
	layer, shown, hides := newTestLayer()
	c := New(Config{Layer: layer}, cache.New(1<<20))

	c.onInit(spice.CursorInit{Shape: spice.CursorHeader{UniqueID: 1}, VisFlags: 1})
	c.onHide()
	if *hides != 1 {
		t.Fatalf("expected Hide to be called once, got %d", *hides)
	}

	if err := c.onSet(spice.CursorSet{Shape: spice.CursorHeader{UniqueID: 2}, VisFlags: 1}); err != nil {
		t.Fatalf("onSet: %v", err)
	}
	if len(*shown) != 2 {
		t.Fatalf("expected Show to be called again after Set, got %d", len(*shown))
	}
}

func TestAttachLayerReplaysCurrentState(t *testing.T) {
	c := New(Config{}, cache.New(1<<20))
	c.onInit(spice.CursorInit{Shape: spice.CursorHeader{UniqueID: 7}, Position: spice.Point16{X: 1, Y: 2}, VisFlags: 1})

	layer, shown, _ := newTestLayer()
	c.AttachLayer(layer)
	if len(*shown) != 1 {
		t.Fatalf("AttachLayer should replay the current shape, got %d shows", len(*shown))
	}
}

func TestInvalOneEvictsFromSharedCache(t *testing.T) {
	shapes := cache.New(1 << 20)
	c := New(Config{}, shapes)
	c.onInit(spice.CursorInit{Shape: spice.CursorHeader{UniqueID: 9}, VisFlags: 0})

	body := make([]byte, 8)
	binary.LittleEndian.PutUint64(body, 9)
	if err := c.HandleMessage(spice.MsgCursorInvalOne, body); err != nil {
		t.Fatalf("HandleMessage invalidate one: %v", err)
	}
	if _, ok := shapes.TryGet(9); ok {
		t.Fatal("shape 9 should have been evicted")
	}
}

func TestOnDisconnectedHidesCursor(t *testing.T) {
	layer, _, hides := newTestLayer()
	c := New(Config{Layer: layer}, cache.New(1<<20))
	c.onInit(spice.CursorInit{Shape: spice.CursorHeader{UniqueID: 1}, VisFlags: 1})

	c.OnDisconnected(nil)
	if *hides != 1 {
		t.Fatalf("expected Hide on disconnect, got %d calls", *hides)
	}
}
