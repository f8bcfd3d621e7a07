// Package surrounding answers an input method's requests for the text
// around the cursor and translates its deletion requests into host terms.
//
// Requests carry a signed length in characters: a negative length refers to
// text before the cursor, a positive length to text after it.
package surrounding

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ErrInvalidText is returned when the host supplies text that is not valid
// UTF-8. The request is abandoned for that cycle.
var ErrInvalidText = errors.New("surrounding text is not valid UTF-8")

// Validate checks that text decodes as UTF-8.
func Validate(text string) error {
	if _, _, err := transform.String(encoding.UTF8Validator, text); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidText, err)
	}
	return nil
}

// Excerpt returns the part of text a request of the given length refers
// to, relative to cursor (a character offset). The range is clamped to the
// text on both sides; a zero length yields the empty string.
func Excerpt(text string, cursor uint32, length int) (string, error) {
	if err := Validate(text); err != nil {
		return "", err
	}

	runes := []rune(text)
	n := len(runes)
	pos := int(cursor)
	if pos > n {
		pos = n
	}

	switch {
	case length < 0:
		start := pos + length
		if start < 0 {
			start = 0
		}
		return string(runes[start:pos]), nil
	case length > 0:
		end := pos + length
		if end > n {
			end = n
		}
		return string(runes[pos:end]), nil
	default:
		return "", nil
	}
}

// Deletion is a host delete-surrounding-text request: Offset is relative
// to the cursor, Count is in characters.
type Deletion struct {
	Offset int32
	Count  uint32
}

// Delete converts a signed request length into a host deletion. It
// reports false for a zero length, which deletes nothing.
func Delete(length int) (Deletion, bool) {
	switch {
	case length < 0:
		return Deletion{Offset: int32(length), Count: uint32(-length)}, true
	case length > 0:
		return Deletion{Offset: 0, Count: uint32(length)}, true
	default:
		return Deletion{}, false
	}
}
