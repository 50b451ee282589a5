package app

// PC/AT set-1 scan codes used by the default hotkey table and the
// sticky-key trace. Extended keys carry the 0xe0 prefix folded into the
// high byte, per pkg/spice.KeyDown's doc comment.
const (
	ScanCodeShift      uint32 = 0x2a
	ScanCodeShiftRight uint32 = 0x36
	ScanCodeCtrl       uint32 = 0x1d
	ScanCodeCtrlRight  uint32 = 0xe01d
	ScanCodeAlt        uint32 = 0x38
	ScanCodeAltRight   uint32 = 0xe038
	ScanCodeDelete     uint32 = 0xe053
	ScanCodeEnd        uint32 = 0xe04f
	ScanCodeF11        uint32 = 0x57
	ScanCodeF12        uint32 = 0x58
)

// namedScanCodes maps the key names accepted by ParseHotKeys (and so by
// the controller's set_hotkeys operation) to their scan code, keyed
// case-insensitively by the caller.
var namedScanCodes = map[string]uint32{
	"shift":   ScanCodeShift,
	"rshift":  ScanCodeShiftRight,
	"ctrl":    ScanCodeCtrl,
	"rctrl":   ScanCodeCtrlRight,
	"alt":     ScanCodeAlt,
	"ralt":    ScanCodeAltRight,
	"delete":  ScanCodeDelete,
	"del":     ScanCodeDelete,
	"end":     ScanCodeEnd,
	"f1":      0x3b,
	"f2":      0x3c,
	"f3":      0x3d,
	"f4":      0x3e,
	"f5":      0x3f,
	"f6":      0x40,
	"f7":      0x41,
	"f8":      0x42,
	"f9":      0x43,
	"f10":     0x44,
	"f11":     ScanCodeF11,
	"f12":     ScanCodeF12,
}
