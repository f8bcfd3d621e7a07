package candidate

import "fmt"

// Orientation is the lookup table layout requested from the host.
type Orientation int32

const (
	Horizontal Orientation = 0
	Vertical   Orientation = 1
	System     Orientation = 2
)

func (o Orientation) String() string {
	switch o {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	case System:
		return "system"
	default:
		return fmt.Sprintf("Orientation(%d)", int32(o))
	}
}

// Valid reports whether o is one of the known orientations.
func (o Orientation) Valid() bool {
	return o >= Horizontal && o <= System
}

// Table is a host-independent lookup table.
type Table struct {
	Candidates    []string
	Labels        []string
	PageSize      uint32
	CursorPos     uint32
	CursorVisible bool
	Round         bool
	Orientation   Orientation
}
