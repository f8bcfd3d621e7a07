// Package style holds the per-engine preedit and lookup table appearance.
//
// A Style is an immutable value. The Store hands out snapshots and swaps
// in a complete replacement on every change, so sessions rendering on other
// goroutines never observe a half-applied update.
package style

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"imbridge/internal/candidate"
)

// Configuration keys understood by Overlay and Store.Apply.
const (
	KeyPreeditForeground      = "preedit_foreground"
	KeyPreeditBackground      = "preedit_background"
	KeyPreeditUnderline       = "preedit_underline"
	KeyLookupTableOrientation = "lookup_table_orientation"
)

// Keys lists the configuration keys in a stable order.
var Keys = []string{
	KeyPreeditForeground,
	KeyPreeditBackground,
	KeyPreeditUnderline,
	KeyLookupTableOrientation,
}

var (
	ErrInvalidColor = errors.New("invalid color")
	ErrInvalidValue = errors.New("invalid value type")
)

// Color is a 0xRRGGBB value. NoColor means the attribute is not applied.
type Color uint32

const (
	NoColor Color = 0xFFFFFFFF

	HighlightForeground Color = 0x000000
	HighlightBackground Color = 0xc8c8f0
)

// Valid reports whether c is a real color.
func (c Color) Valid() bool {
	return c != NoColor
}

func (c Color) String() string {
	if !c.Valid() {
		return "none"
	}
	return fmt.Sprintf("#%06x", uint32(c))
}

// Underline is the IBus underline attribute value.
type Underline int32

const (
	UnderlineNone   Underline = 0
	UnderlineSingle Underline = 1
	UnderlineDouble Underline = 2
	UnderlineLow    Underline = 3
	UnderlineError  Underline = 4
)

// Style is the appearance of one engine class.
type Style struct {
	Foreground  Color
	Background  Color
	Underline   Underline
	Orientation candidate.Orientation
}

// Default returns the built-in style. Engines configured for preedit
// highlighting get black on lavender; the rest get no colors.
func Default(highlight bool) Style {
	s := Style{
		Foreground:  NoColor,
		Background:  NoColor,
		Underline:   UnderlineNone,
		Orientation: candidate.System,
	}
	if highlight {
		s.Foreground = HighlightForeground
		s.Background = HighlightBackground
	}
	return s
}

// ParseColor parses "#RRGGBB". The leading '#' is required.
func ParseColor(s string) (Color, error) {
	if !strings.HasPrefix(s, "#") || len(s) < 2 {
		return NoColor, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return NoColor, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return Color(v), nil
}

// Overlay applies persisted values on top of base. The result is always
// usable: a malformed color clears that color, and a value of the wrong
// type leaves the base value in place. Every such problem is reported in
// the returned error. Unknown keys are ignored.
func Overlay(base Style, values map[string]any) (Style, error) {
	s := base
	var errs []error
	for _, key := range Keys {
		v, ok := values[key]
		if !ok {
			continue
		}
		next, err := s.with(key, v)
		if err != nil {
			errs = append(errs, err)
			if errors.Is(err, ErrInvalidColor) {
				next.clear(key)
			}
		}
		s = next
	}
	return s, errors.Join(errs...)
}

func (s *Style) clear(key string) {
	switch key {
	case KeyPreeditForeground:
		s.Foreground = NoColor
	case KeyPreeditBackground:
		s.Background = NoColor
	}
}

// with returns a copy of s with one key changed. Malformed colors are
// rejected so the caller can keep the previous value.
func (s Style) with(key string, value any) (Style, error) {
	switch key {
	case KeyPreeditForeground, KeyPreeditBackground:
		str, ok := value.(string)
		if !ok {
			return s, fmt.Errorf("%s: %w: %T", key, ErrInvalidValue, value)
		}
		c, err := ParseColor(str)
		if err != nil {
			return s, fmt.Errorf("%s: %w", key, err)
		}
		if key == KeyPreeditForeground {
			s.Foreground = c
		} else {
			s.Background = c
		}
	default:
		if err := s.set(key, value); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (s *Style) set(key string, value any) error {
	n, err := toInt32(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	switch key {
	case KeyPreeditUnderline:
		s.Underline = Underline(n)
	case KeyLookupTableOrientation:
		s.Orientation = candidate.Orientation(n)
	}
	return nil
}

func toInt32(v any) (int32, error) {
	switch n := v.(type) {
	case int32:
		return n, nil
	case int:
		return int32(n), nil
	case int64:
		return int32(n), nil
	case uint32:
		return int32(n), nil
	case float64:
		return int32(n), nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidValue, v)
	}
}

// Store publishes Style snapshots.
type Store struct {
	p atomic.Pointer[Style]
}

// NewStore returns a store holding s.
func NewStore(s Style) *Store {
	st := &Store{}
	st.p.Store(&s)
	return st
}

// Load returns the current snapshot.
func (st *Store) Load() Style {
	return *st.p.Load()
}

// Apply handles a live change of one key. It reports whether the key is a
// style key. On error the previous style is kept.
func (st *Store) Apply(key string, value any) (bool, error) {
	if !slices.Contains(Keys, key) {
		return false, nil
	}

	for {
		old := st.p.Load()
		next, err := old.with(key, value)
		if err != nil {
			return true, err
		}
		if st.p.CompareAndSwap(old, &next) {
			return true, nil
		}
	}
}
