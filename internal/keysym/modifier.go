// Package keysym encodes IBus key events into the symbolic key names
// accepted by table-style input methods ("a", "C-A", "G-F1", "S-space").
package keysym

import "strings"

// Modifier is the IBus modifier state bitmask delivered with key events.
type Modifier uint32

// IBus key event state masks
const (
	ShiftMask   Modifier = 1 << 0
	LockMask    Modifier = 1 << 1
	ControlMask Modifier = 1 << 2
	Mod1Mask    Modifier = 1 << 3 // Alt
	Mod2Mask    Modifier = 1 << 4 // NumLock
	Mod3Mask    Modifier = 1 << 5
	Mod4Mask    Modifier = 1 << 6
	Mod5Mask    Modifier = 1 << 7 // AltGr / ISO_Level3_Shift
	SuperMask   Modifier = 1 << 26
	HyperMask   Modifier = 1 << 27
	MetaMask    Modifier = 1 << 28
	ReleaseMask Modifier = 1 << 30
)

// AltMask and ExtraShiftMask name the roles Mod1 and Mod5 play in the
// symbol grammar.
const (
	AltMask        = Mod1Mask
	ExtraShiftMask = Mod5Mask
)

// prefixOrder lists the recorded modifiers from outermost to innermost.
var prefixOrder = []struct {
	mask   Modifier
	prefix string
}{
	{HyperMask, "H-"},
	{SuperMask, "s-"},
	{ExtraShiftMask, "G-"},
	{AltMask, "A-"},
	{MetaMask, "M-"},
	{ControlMask, "C-"},
	{ShiftMask, "S-"},
}

// Has reports whether every bit of m2 is set in m.
func (m Modifier) Has(m2 Modifier) bool {
	return m&m2 == m2
}

// IsRelease reports whether the state describes a key release.
func (m Modifier) IsRelease() bool {
	return m&ReleaseMask != 0
}

// Prefix returns the dash-separated modifier markers for the recorded bits
// of m, outermost first.
func (m Modifier) Prefix() string {
	var b strings.Builder
	for _, p := range prefixOrder {
		if m&p.mask != 0 {
			b.WriteString(p.prefix)
		}
	}
	return b.String()
}

// String renders the mask for logs, e.g. "Shift|Control".
func (m Modifier) String() string {
	names := []struct {
		mask Modifier
		name string
	}{
		{ShiftMask, "Shift"},
		{LockMask, "Lock"},
		{ControlMask, "Control"},
		{Mod1Mask, "Mod1"},
		{Mod2Mask, "Mod2"},
		{Mod3Mask, "Mod3"},
		{Mod4Mask, "Mod4"},
		{Mod5Mask, "Mod5"},
		{SuperMask, "Super"},
		{HyperMask, "Hyper"},
		{MetaMask, "Meta"},
		{ReleaseMask, "Release"},
	}
	var parts []string
	for _, n := range names {
		if m&n.mask != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}
