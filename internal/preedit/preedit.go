// Package preedit turns an input context's preedit buffer into the styled
// run the host displays.
package preedit

import (
	"unicode/utf8"

	"imbridge/internal/style"
)

// AttrType is the IBus attribute type.
type AttrType uint32

const (
	AttrUnderline  AttrType = 1
	AttrForeground AttrType = 2
	AttrBackground AttrType = 3
)

// Attribute applies Value over the character range [Start, End).
type Attribute struct {
	Type  AttrType
	Value uint32
	Start uint32
	End   uint32
}

// Run is a preedit update.
type Run struct {
	Text    string
	Attrs   []Attribute
	Cursor  uint32
	Visible bool
}

// Project styles text with s. Colors that are unset are omitted; the
// underline attribute is always present. The run is visible only when text
// is non-empty. cursor is clamped to the text.
func Project(text string, cursor int, s style.Style) Run {
	n := utf8.RuneCountInString(text)
	if cursor < 0 {
		cursor = 0
	}
	if cursor > n {
		cursor = n
	}

	end := uint32(n)
	var attrs []Attribute
	if s.Foreground.Valid() {
		attrs = append(attrs, Attribute{Type: AttrForeground, Value: uint32(s.Foreground), End: end})
	}
	if s.Background.Valid() {
		attrs = append(attrs, Attribute{Type: AttrBackground, Value: uint32(s.Background), End: end})
	}
	attrs = append(attrs, Attribute{Type: AttrUnderline, Value: uint32(s.Underline), End: end})

	return Run{
		Text:    text,
		Attrs:   attrs,
		Cursor:  uint32(cursor),
		Visible: n > 0,
	}
}
