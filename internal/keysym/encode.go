package keysym

// Symbol is a canonical key name such as "a", "C-A" or "G-F1".
type Symbol string

// recordedAlways are the modifiers that appear in every symbol they are
// held for, whatever the base key.
const recordedAlways = AltMask | ExtraShiftMask | MetaMask | SuperMask | HyperMask

// Encode converts an IBus key event into its symbol. It reports false for
// release events, bare modifier keys and keyvals without a name.
//
// When the extra shift level (Mod5) is held, keyval has already been
// translated by the layout. The untranslated keyval is recovered from the
// US keymap and the level is expressed as the "G-" prefix instead.
func Encode(keycode, keyval uint32, mods Modifier) (Symbol, bool) {
	if mods.IsRelease() || IsModifierKey(keyval) {
		return "", false
	}

	if mods&ExtraShiftMask != 0 {
		if v, ok := USKeyval(keycode, mods&^ExtraShiftMask); ok {
			keyval = v
		} else {
			keyval = KeyVoidSymbol
		}
	}

	var (
		mask Modifier
		base string
	)
	if IsPrintable(keyval) {
		c := byte(keyval)
		if keyval == KeySpace && mods&ShiftMask != 0 {
			mask |= ShiftMask
		}
		if mods&ControlMask != 0 {
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			mask |= ControlMask
		}
		base = string(c)
	} else {
		name, ok := Name(keyval)
		if !ok {
			return "", false
		}
		mask |= mods & (ControlMask | ShiftMask)
		base = name
	}
	mask |= mods & recordedAlways

	return Symbol(mask.Prefix() + base), true
}

// String returns the symbol text.
func (s Symbol) String() string {
	return string(s)
}
