// Package candidate locates the visible page of a paginated candidate list.
//
// A list is an ordered sequence of groups. Each group is one display page
// and is either flat (one candidate per character) or nested (one
// candidate per string). Groups partition the absolute candidate index
// space contiguously, so the page holding a given index is found by
// walking the groups and accumulating their lengths.
package candidate

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrEmptyList is returned when there is nothing to show. Callers hide the
// candidate UI.
var ErrEmptyList = errors.New("candidate list is empty")

// Kind tags the representation of a group.
type Kind int

const (
	Flat Kind = iota
	Nested
)

func (k Kind) String() string {
	switch k {
	case Flat:
		return "flat"
	case Nested:
		return "nested"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Group is one page of candidates.
type Group struct {
	Kind    Kind
	Runes   []rune   // Flat
	Strings []string // Nested
}

// FlatGroup builds a group with one candidate per character of s.
func FlatGroup(s string) Group {
	return Group{Kind: Flat, Runes: []rune(s)}
}

// NestedGroup builds a group with one candidate per string.
func NestedGroup(items ...string) Group {
	return Group{Kind: Nested, Strings: items}
}

// Len returns the number of candidates in the group.
func (g Group) Len() int {
	if g.Kind == Flat {
		return len(g.Runes)
	}
	return len(g.Strings)
}

// Candidates renders the group's candidates for display. Invalid code
// points in flat groups become "INVCODE=U+XXXX" and undecodable strings
// in nested groups become "NULL".
func (g Group) Candidates() []string {
	out := make([]string, 0, g.Len())
	if g.Kind == Flat {
		for _, r := range g.Runes {
			if !utf8.ValidRune(r) {
				out = append(out, fmt.Sprintf("INVCODE=U+%04X", r))
				continue
			}
			out = append(out, string(r))
		}
		return out
	}
	for _, s := range g.Strings {
		if !utf8.ValidString(s) {
			out = append(out, "NULL")
			continue
		}
		out = append(out, s)
	}
	return out
}

// List is an ordered candidate list. A nil List means no candidates.
type List []Group

// Len returns the total number of candidates across all groups.
func (l List) Len() int {
	n := 0
	for _, g := range l {
		n += g.Len()
	}
	return n
}

// Page is the located page for an absolute candidate index.
type Page struct {
	Group   Group
	Ordinal int // 1-based page number
	Total   int // number of groups
	Start   int // absolute index of the group's first candidate
	Cursor  int // index - Start

	// Clamped reports that the requested index was outside the list and
	// the nearest valid entry was used instead.
	Clamped bool
}

// Locate finds the group containing index.
func Locate(list List, index int) (Page, error) {
	total := list.Len()
	if total == 0 {
		return Page{}, ErrEmptyList
	}

	clamped := false
	switch {
	case index < 0:
		index, clamped = 0, true
	case index >= total:
		index, clamped = total-1, true
	}

	start := 0
	for i, g := range list {
		if start+g.Len() > index {
			return Page{
				Group:   g,
				Ordinal: i + 1,
				Total:   len(list),
				Start:   start,
				Cursor:  index - start,
				Clamped: clamped,
			}, nil
		}
		start += g.Len()
	}

	// unreachable: index < total
	return Page{}, ErrEmptyList
}

// Label is the auxiliary text shown with the page, "( page / total )".
func (p Page) Label() string {
	return fmt.Sprintf("( %d / %d )", p.Ordinal, p.Total)
}

// Table builds the lookup table for the page. The page size is the group
// length so the host shows exactly one group.
func (p Page) Table(o Orientation) Table {
	cands := p.Group.Candidates()
	return Table{
		Candidates:    cands,
		PageSize:      uint32(len(cands)),
		CursorPos:     uint32(p.Cursor),
		CursorVisible: true,
		Round:         true,
		Orientation:   o,
	}
}
