package engine

import (
	"imbridge/internal/candidate"
	"imbridge/internal/preedit"
)

// Capability is the set of client capability flags reported by the host.
type Capability uint32

const (
	CapPreeditText     Capability = 1 << 0
	CapAuxiliaryText   Capability = 1 << 1
	CapLookupTable     Capability = 1 << 2
	CapFocus           Capability = 1 << 3
	CapProperty        Capability = 1 << 4
	CapSurroundingText Capability = 1 << 5
)

// PropType is the IBus property type.
type PropType uint32

const (
	PropNormal    PropType = 0
	PropToggle    PropType = 1
	PropRadio     PropType = 2
	PropMenu      PropType = 3
	PropSeparator PropType = 4
)

// Property is a UI-exposed engine property such as the status indicator.
type Property struct {
	Key       string
	Type      PropType
	Label     string
	Icon      string
	Tooltip   string
	Sensitive bool
	Visible   bool
	State     uint32
}

// Host is the text-input client a session renders to. Calls are made on
// the goroutine that drives the session.
type Host interface {
	CommitText(text string)

	UpdatePreeditText(run preedit.Run)
	HidePreeditText()

	UpdateLookupTable(table candidate.Table, visible bool)
	HideLookupTable()

	UpdateAuxiliaryText(text string, visible bool)
	HideAuxiliaryText()

	RegisterProperties(props []Property)
	UpdateProperty(prop Property)

	// SurroundingText returns the text around the cursor with cursor and
	// anchor as character offsets.
	SurroundingText() (text string, cursor, anchor uint32)
	DeleteSurroundingText(offset int32, nchars uint32)
	// RequireSurroundingText tells the client the engine uses surrounding
	// text.
	RequireSurroundingText()

	Capabilities() Capability
}
