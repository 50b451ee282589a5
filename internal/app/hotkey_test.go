package app

import "testing"

func TestHotkeyFiresOnceOnCompletion(t *testing.T) {
	e := newHotkeyEngine([]HotKey{
		{Command: CommandToggleFullScreen, Keys: []KeyChoice{{Main: ScanCodeShift, Alternate: ScanCodeShiftRight}, {Main: ScanCodeF11}}},
	})
	pressed := map[uint32]bool{}

	pressed[ScanCodeShift] = true
	if _, fired := e.onKeyDown(pressed); fired {
		t.Fatal("should not fire with only Shift pressed")
	}

	pressed[ScanCodeF11] = true
	cmd, fired := e.onKeyDown(pressed)
	if !fired || cmd != CommandToggleFullScreen {
		t.Fatalf("expected fire with command %v, got fired=%v cmd=%v", CommandToggleFullScreen, fired, cmd)
	}

	// Holding both keys down (repeat) must not fire again.
	if _, fired := e.onKeyDown(pressed); fired {
		t.Fatal("should not re-fire while held")
	}
}

func TestHotkeyAlternateKeySatisfiesSlot(t *testing.T) {
	e := newHotkeyEngine([]HotKey{
		{Command: CommandReleaseCursor, Keys: []KeyChoice{{Main: ScanCodeShift, Alternate: ScanCodeShiftRight}, {Main: ScanCodeF12}}},
	})
	pressed := map[uint32]bool{ScanCodeShiftRight: true}
	e.onKeyDown(pressed)

	pressed[ScanCodeF12] = true
	cmd, fired := e.onKeyDown(pressed)
	if !fired || cmd != CommandReleaseCursor {
		t.Fatalf("expected right-shift to satisfy the shift slot, got fired=%v cmd=%v", fired, cmd)
	}
}

func TestHotkeyReleaseThenRepressFiresAgain(t *testing.T) {
	e := newHotkeyEngine([]HotKey{
		{Command: CommandReleaseCursor, Keys: []KeyChoice{{Main: ScanCodeShift}, {Main: ScanCodeF12}}},
	})
	pressed := map[uint32]bool{ScanCodeShift: true, ScanCodeF12: true}
	if _, fired := e.onKeyDown(pressed); !fired {
		t.Fatal("expected initial fire")
	}

	delete(pressed, ScanCodeF12)
	e.onKeyUp(pressed)

	pressed[ScanCodeF12] = true
	if _, fired := e.onKeyDown(pressed); !fired {
		t.Fatal("expected a second fire after release and repress")
	}
}

func TestHotkeyRequiresNonEmptyKeySet(t *testing.T) {
	h := HotKey{Command: CommandToggleFullScreen}
	if h.allPressed(map[uint32]bool{}) {
		t.Fatal("a hotkey with no keys must never be considered satisfied")
	}
}
