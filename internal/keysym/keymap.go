package keysym

// usKey holds the keyvals a US-layout key produces without and with Shift.
type usKey struct {
	normal  uint32
	shifted uint32
	keypad  bool // NumLock selects the shifted column
}

// usKeymap indexes the US layout by evdev keycode, the code IBus delivers.
var usKeymap = map[uint32]usKey{
	1:  {normal: KeyEscape, shifted: KeyEscape},
	2:  {normal: '1', shifted: '!'},
	3:  {normal: '2', shifted: '@'},
	4:  {normal: '3', shifted: '#'},
	5:  {normal: '4', shifted: '$'},
	6:  {normal: '5', shifted: '%'},
	7:  {normal: '6', shifted: '^'},
	8:  {normal: '7', shifted: '&'},
	9:  {normal: '8', shifted: '*'},
	10: {normal: '9', shifted: '('},
	11: {normal: '0', shifted: ')'},
	12: {normal: '-', shifted: '_'},
	13: {normal: '=', shifted: '+'},
	14: {normal: KeyBackSpace, shifted: KeyBackSpace},
	15: {normal: KeyTab, shifted: 0xfe20},
	16: {normal: 'q', shifted: 'Q'},
	17: {normal: 'w', shifted: 'W'},
	18: {normal: 'e', shifted: 'E'},
	19: {normal: 'r', shifted: 'R'},
	20: {normal: 't', shifted: 'T'},
	21: {normal: 'y', shifted: 'Y'},
	22: {normal: 'u', shifted: 'U'},
	23: {normal: 'i', shifted: 'I'},
	24: {normal: 'o', shifted: 'O'},
	25: {normal: 'p', shifted: 'P'},
	26: {normal: '[', shifted: '{'},
	27: {normal: ']', shifted: '}'},
	28: {normal: KeyReturn, shifted: KeyReturn},
	29: {normal: 0xffe3, shifted: 0xffe3},
	30: {normal: 'a', shifted: 'A'},
	31: {normal: 's', shifted: 'S'},
	32: {normal: 'd', shifted: 'D'},
	33: {normal: 'f', shifted: 'F'},
	34: {normal: 'g', shifted: 'G'},
	35: {normal: 'h', shifted: 'H'},
	36: {normal: 'j', shifted: 'J'},
	37: {normal: 'k', shifted: 'K'},
	38: {normal: 'l', shifted: 'L'},
	39: {normal: ';', shifted: ':'},
	40: {normal: '\'', shifted: '"'},
	41: {normal: '`', shifted: '~'},
	42: {normal: KeyShiftL, shifted: KeyShiftL},
	43: {normal: '\\', shifted: '|'},
	44: {normal: 'z', shifted: 'Z'},
	45: {normal: 'x', shifted: 'X'},
	46: {normal: 'c', shifted: 'C'},
	47: {normal: 'v', shifted: 'V'},
	48: {normal: 'b', shifted: 'B'},
	49: {normal: 'n', shifted: 'N'},
	50: {normal: 'm', shifted: 'M'},
	51: {normal: ',', shifted: '<'},
	52: {normal: '.', shifted: '>'},
	53: {normal: '/', shifted: '?'},
	54: {normal: 0xffe2, shifted: 0xffe2},
	55: {normal: 0xffaa, shifted: 0xffaa},
	56: {normal: 0xffe9, shifted: 0xffe7},
	57: {normal: KeySpace, shifted: KeySpace},
	58: {normal: 0xffe5, shifted: 0xffe5},
	69: {normal: 0xff7f, shifted: 0xff7f},
	70: {normal: 0xff14, shifted: 0xff14},

	// Keypad
	71: {normal: 0xff95, shifted: 0xffb7, keypad: true},
	72: {normal: 0xff97, shifted: 0xffb8, keypad: true},
	73: {normal: 0xff9a, shifted: 0xffb9, keypad: true},
	74: {normal: 0xffad, shifted: 0xffad},
	75: {normal: 0xff96, shifted: 0xffb4, keypad: true},
	76: {normal: 0xff9d, shifted: 0xffb5, keypad: true},
	77: {normal: 0xff98, shifted: 0xffb6, keypad: true},
	78: {normal: 0xffab, shifted: 0xffab},
	79: {normal: 0xff9c, shifted: 0xffb1, keypad: true},
	80: {normal: 0xff99, shifted: 0xffb2, keypad: true},
	81: {normal: 0xff9b, shifted: 0xffb3, keypad: true},
	82: {normal: 0xff9e, shifted: 0xffb0, keypad: true},
	83: {normal: 0xff9f, shifted: 0xffae, keypad: true},
	96: {normal: 0xff8d, shifted: 0xff8d},
	98: {normal: 0xffaf, shifted: 0xffaf},

	87:  {normal: KeyF1 + 10, shifted: KeyF1 + 10},
	88:  {normal: KeyF1 + 11, shifted: KeyF1 + 11},
	97:  {normal: 0xffe4, shifted: 0xffe4},
	99:  {normal: 0xff61, shifted: 0xff15},
	100: {normal: 0xffea, shifted: 0xffe8},

	// Navigation
	102: {normal: KeyHome, shifted: KeyHome},
	103: {normal: KeyUp, shifted: KeyUp},
	104: {normal: KeyPageUp, shifted: KeyPageUp},
	105: {normal: KeyLeft, shifted: KeyLeft},
	106: {normal: KeyRight, shifted: KeyRight},
	107: {normal: KeyEnd, shifted: KeyEnd},
	108: {normal: KeyDown, shifted: KeyDown},
	109: {normal: KeyPageDown, shifted: KeyPageDown},
	110: {normal: 0xff63, shifted: 0xff63},
	111: {normal: KeyDelete, shifted: KeyDelete},

	119: {normal: 0xff13, shifted: 0xff6b},
	125: {normal: 0xffeb, shifted: 0xffeb},
	126: {normal: 0xffec, shifted: 0xffec},
	127: {normal: 0xff67, shifted: 0xff67},
}

func init() {
	// F1 .. F10 sit on evdev 59 .. 68.
	for i := uint32(0); i < 10; i++ {
		usKeymap[59+i] = usKey{normal: KeyF1 + i, shifted: KeyF1 + i}
	}
}

// USKeyval returns the keyval the US layout produces for keycode under
// mods. Shift selects the shifted column, Lock inverts it for letters and
// NumLock inverts it on the keypad.
func USKeyval(keycode uint32, mods Modifier) (uint32, bool) {
	k, ok := usKeymap[keycode]
	if !ok {
		return 0, false
	}

	shifted := mods&ShiftMask != 0
	switch {
	case k.keypad:
		if mods&Mod2Mask != 0 {
			shifted = !shifted
		}
	case isLetter(k.normal):
		if mods&LockMask != 0 {
			shifted = !shifted
		}
	}

	if shifted {
		return k.shifted, true
	}
	return k.normal, true
}

func isLetter(keyval uint32) bool {
	return keyval >= 'a' && keyval <= 'z'
}
