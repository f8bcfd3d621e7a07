package keysym

import (
	"fmt"

	"github.com/jezek/xgb/xproto"
	"github.com/jezek/xgbutil/keybind"
)

// Common IBus keyvals referenced by the encoder and the input methods.
const (
	KeySpace      uint32 = 0x0020
	KeyTilde      uint32 = 0x007e
	KeyBackSpace  uint32 = 0xff08
	KeyTab        uint32 = 0xff09
	KeyReturn     uint32 = 0xff0d
	KeyEscape     uint32 = 0xff1b
	KeyHome       uint32 = 0xff50
	KeyLeft       uint32 = 0xff51
	KeyUp         uint32 = 0xff52
	KeyRight      uint32 = 0xff53
	KeyDown       uint32 = 0xff54
	KeyPageUp     uint32 = 0xff55
	KeyPageDown   uint32 = 0xff56
	KeyEnd        uint32 = 0xff57
	KeyF1         uint32 = 0xffbe
	KeyShiftL     uint32 = 0xffe1
	KeyHyperR     uint32 = 0xffee
	KeyDelete     uint32 = 0xffff
	KeyLevel3     uint32 = 0xfe03
	KeyVoidSymbol uint32 = 0xffffff

	unicodeKeyvalBase uint32 = 0x01000000
)

// keyvalNames holds the names the encoder and the input methods rely on,
// and fixes the name of keysyms that have aliases. Name falls back to
// keybind for the rest of keysymdef.h.
var keyvalNames = map[uint32]string{
	// TTY function keys
	0xff08: "BackSpace",
	0xff09: "Tab",
	0xff0a: "Linefeed",
	0xff0b: "Clear",
	0xff0d: "Return",
	0xff13: "Pause",
	0xff14: "Scroll_Lock",
	0xff15: "Sys_Req",
	0xff1b: "Escape",
	0xffff: "Delete",

	0xffffff: "VoidSymbol",

	// International and multi-key
	0xff20: "Multi_key",
	0xff21: "Kanji",
	0xff22: "Muhenkan",
	0xff23: "Henkan_Mode",
	0xff24: "Romaji",
	0xff25: "Hiragana",
	0xff26: "Katakana",
	0xff27: "Hiragana_Katakana",
	0xff28: "Zenkaku",
	0xff29: "Hankaku",
	0xff2a: "Zenkaku_Hankaku",
	0xff2b: "Touroku",
	0xff2c: "Massyo",
	0xff2d: "Kana_Lock",
	0xff2e: "Kana_Shift",
	0xff2f: "Eisu_Shift",
	0xff30: "Eisu_toggle",
	0xff31: "Hangul",
	0xff32: "Hangul_Start",
	0xff33: "Hangul_End",
	0xff34: "Hangul_Hanja",

	// Cursor control
	0xff50: "Home",
	0xff51: "Left",
	0xff52: "Up",
	0xff53: "Right",
	0xff54: "Down",
	0xff55: "Page_Up",
	0xff56: "Page_Down",
	0xff57: "End",
	0xff58: "Begin",

	// Misc functions
	0xff60: "Select",
	0xff61: "Print",
	0xff62: "Execute",
	0xff63: "Insert",
	0xff65: "Undo",
	0xff66: "Redo",
	0xff67: "Menu",
	0xff68: "Find",
	0xff69: "Cancel",
	0xff6a: "Help",
	0xff6b: "Break",
	0xff7e: "Mode_switch",
	0xff7f: "Num_Lock",

	// Keypad
	0xff80: "KP_Space",
	0xff89: "KP_Tab",
	0xff8d: "KP_Enter",
	0xff91: "KP_F1",
	0xff92: "KP_F2",
	0xff93: "KP_F3",
	0xff94: "KP_F4",
	0xff95: "KP_Home",
	0xff96: "KP_Left",
	0xff97: "KP_Up",
	0xff98: "KP_Right",
	0xff99: "KP_Down",
	0xff9a: "KP_Page_Up",
	0xff9b: "KP_Page_Down",
	0xff9c: "KP_End",
	0xff9d: "KP_Begin",
	0xff9e: "KP_Insert",
	0xff9f: "KP_Delete",
	0xffbd: "KP_Equal",
	0xffaa: "KP_Multiply",
	0xffab: "KP_Add",
	0xffac: "KP_Separator",
	0xffad: "KP_Subtract",
	0xffae: "KP_Decimal",
	0xffaf: "KP_Divide",
	0xffb0: "KP_0",
	0xffb1: "KP_1",
	0xffb2: "KP_2",
	0xffb3: "KP_3",
	0xffb4: "KP_4",
	0xffb5: "KP_5",
	0xffb6: "KP_6",
	0xffb7: "KP_7",
	0xffb8: "KP_8",
	0xffb9: "KP_9",

	// Modifiers
	0xffe1: "Shift_L",
	0xffe2: "Shift_R",
	0xffe3: "Control_L",
	0xffe4: "Control_R",
	0xffe5: "Caps_Lock",
	0xffe6: "Shift_Lock",
	0xffe7: "Meta_L",
	0xffe8: "Meta_R",
	0xffe9: "Alt_L",
	0xffea: "Alt_R",
	0xffeb: "Super_L",
	0xffec: "Super_R",
	0xffed: "Hyper_L",
	0xffee: "Hyper_R",

	// ISO 9995
	0xfe01: "ISO_Lock",
	0xfe03: "ISO_Level3_Shift",
	0xfe08: "ISO_Next_Group",
	0xfe0a: "ISO_Prev_Group",
	0xfe20: "ISO_Left_Tab",

	// Dead keys
	0xfe50: "dead_grave",
	0xfe51: "dead_acute",
	0xfe52: "dead_circumflex",
	0xfe53: "dead_tilde",
	0xfe54: "dead_macron",
	0xfe55: "dead_breve",
	0xfe56: "dead_abovedot",
	0xfe57: "dead_diaeresis",
	0xfe58: "dead_abovering",
	0xfe59: "dead_doubleacute",
	0xfe5a: "dead_caron",
	0xfe5b: "dead_cedilla",
	0xfe5c: "dead_ogonek",

	// Latin-1
	0x00a0: "nobreakspace",
	0x00a1: "exclamdown",
	0x00a2: "cent",
	0x00a3: "sterling",
	0x00a4: "currency",
	0x00a5: "yen",
	0x00a6: "brokenbar",
	0x00a7: "section",
	0x00a8: "diaeresis",
	0x00a9: "copyright",
	0x00aa: "ordfeminine",
	0x00ab: "guillemotleft",
	0x00ac: "notsign",
	0x00ad: "hyphen",
	0x00ae: "registered",
	0x00af: "macron",
	0x00b0: "degree",
	0x00b1: "plusminus",
	0x00b2: "twosuperior",
	0x00b3: "threesuperior",
	0x00b4: "acute",
	0x00b5: "mu",
	0x00b6: "paragraph",
	0x00b7: "periodcentered",
	0x00b8: "cedilla",
	0x00b9: "onesuperior",
	0x00ba: "masculine",
	0x00bb: "guillemotright",
	0x00bc: "onequarter",
	0x00bd: "onehalf",
	0x00be: "threequarters",
	0x00bf: "questiondown",
	0x00c0: "Agrave",
	0x00c1: "Aacute",
	0x00c2: "Acircumflex",
	0x00c3: "Atilde",
	0x00c4: "Adiaeresis",
	0x00c5: "Aring",
	0x00c6: "AE",
	0x00c7: "Ccedilla",
	0x00c8: "Egrave",
	0x00c9: "Eacute",
	0x00ca: "Ecircumflex",
	0x00cb: "Ediaeresis",
	0x00cc: "Igrave",
	0x00cd: "Iacute",
	0x00ce: "Icircumflex",
	0x00cf: "Idiaeresis",
	0x00d0: "ETH",
	0x00d1: "Ntilde",
	0x00d2: "Ograve",
	0x00d3: "Oacute",
	0x00d4: "Ocircumflex",
	0x00d5: "Otilde",
	0x00d6: "Odiaeresis",
	0x00d7: "multiply",
	0x00d8: "Oslash",
	0x00d9: "Ugrave",
	0x00da: "Uacute",
	0x00db: "Ucircumflex",
	0x00dc: "Udiaeresis",
	0x00dd: "Yacute",
	0x00de: "THORN",
	0x00df: "ssharp",
	0x00e0: "agrave",
	0x00e1: "aacute",
	0x00e2: "acircumflex",
	0x00e3: "atilde",
	0x00e4: "adiaeresis",
	0x00e5: "aring",
	0x00e6: "ae",
	0x00e7: "ccedilla",
	0x00e8: "egrave",
	0x00e9: "eacute",
	0x00ea: "ecircumflex",
	0x00eb: "ediaeresis",
	0x00ec: "igrave",
	0x00ed: "iacute",
	0x00ee: "icircumflex",
	0x00ef: "idiaeresis",
	0x00f0: "eth",
	0x00f1: "ntilde",
	0x00f2: "ograve",
	0x00f3: "oacute",
	0x00f4: "ocircumflex",
	0x00f5: "otilde",
	0x00f6: "odiaeresis",
	0x00f7: "division",
	0x00f8: "oslash",
	0x00f9: "ugrave",
	0x00fa: "uacute",
	0x00fb: "ucircumflex",
	0x00fc: "udiaeresis",
	0x00fd: "yacute",
	0x00fe: "thorn",
	0x00ff: "ydiaeresis",

	// Keysyms with more than one name in keysymdef.h. The first name wins.
	0x03a2: "kra",
	0x04a5: "kana_conjunctive",
	0x04af: "kana_tsu",
	0x04c1: "kana_CHI",
	0x04c2: "kana_TSU",
	0x04cc: "kana_FU",
	0x05e7: "Arabic_ha",
	0x06a4: "Ukrainian_ie",
	0x06a6: "Ukrainian_i",
	0x06a7: "Ukrainian_yi",
	0x06a8: "Cyrillic_je",
	0x06a9: "Cyrillic_lje",
	0x06aa: "Cyrillic_nje",
	0x06af: "Cyrillic_dzhe",
	0x06b4: "Ukrainian_IE",
	0x06b6: "Ukrainian_I",
	0x06b7: "Ukrainian_YI",
	0x06b8: "Cyrillic_JE",
	0x06b9: "Cyrillic_LJE",
	0x06ba: "Cyrillic_NJE",
	0x06bf: "Cyrillic_DZHE",
	0x07a5: "Greek_IOTAdieresis",
	0x07cb: "Greek_LAMDA",
	0x07eb: "Greek_lamda",
	0x0ce1: "hebrew_bet",
	0x0ce2: "hebrew_gimel",
	0x0ce3: "hebrew_dalet",
	0x0ce6: "hebrew_zain",
	0x0ce7: "hebrew_chet",
	0x0ce8: "hebrew_tet",
	0x0cf1: "hebrew_samech",
	0x0cf5: "hebrew_finalzade",
	0x0cf6: "hebrew_zade",
	0x0cf7: "hebrew_qoph",
	0x0cfa: "hebrew_taw",
	0xfe64: "dead_abovecomma",
	0xfe65: "dead_abovereversedcomma",
	0xff37: "Codeinput",
	0xff3c: "SingleCandidate",
	0xff3d: "MultipleCandidate",
	0xff3e: "PreviousCandidate",

	0x100055b: "Armenian_accent",
	0x100055c: "Armenian_exclam",
	0x100055d: "Armenian_separation_mark",
	0x100055e: "Armenian_question",
	0x1000589: "Armenian_full_stop",
	0x100058a: "Armenian_hyphen",
	0x10006cc: "Farsi_yeh",
}

var nameKeyvals map[string]uint32

func init() {
	// F1 .. F35 are contiguous.
	for i := uint32(0); i < 35; i++ {
		keyvalNames[KeyF1+i] = fmt.Sprintf("F%d", i+1)
	}

	nameKeyvals = make(map[string]uint32, len(keyvalNames))
	for v, n := range keyvalNames {
		nameKeyvals[n] = v
	}
}

// Name returns the textual name of a keyval, or false when it has none.
// Keysyms missing from keyvalNames are looked up in the full keysymdef.h
// table; unnamed Unicode keyvals (0x01000000 + code point) are "U+XXXX".
func Name(keyval uint32) (string, bool) {
	if name, ok := keyvalNames[keyval]; ok {
		return name, true
	}
	if !IsPrintable(keyval) {
		if name := keybind.KeysymToStr(xproto.Keysym(keyval)); name != "" {
			return name, true
		}
	}
	if keyval&0xff000000 == unicodeKeyvalBase {
		return fmt.Sprintf("U+%04X", keyval&0x00ffffff), true
	}
	return "", false
}

// FromName is the inverse of Name for table keysyms and printable ASCII.
func FromName(name string) (uint32, bool) {
	if len(name) == 1 && name[0] >= 0x20 && name[0] <= 0x7e {
		return uint32(name[0]), true
	}
	if v, ok := nameKeyvals[name]; ok {
		return v, true
	}
	var cp uint32
	if _, err := fmt.Sscanf(name, "U+%X", &cp); err == nil {
		return unicodeKeyvalBase | cp, true
	}
	return 0, false
}

// IsModifierKey reports whether keyval is one of the modifier keys
// themselves (Shift_L .. Hyper_R).
func IsModifierKey(keyval uint32) bool {
	return keyval >= KeyShiftL && keyval <= KeyHyperR
}

// IsPrintable reports whether keyval is in the printable ASCII range.
func IsPrintable(keyval uint32) bool {
	return keyval >= KeySpace && keyval <= KeyTilde
}
