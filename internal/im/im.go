// Package im defines the contract between the bridge and a symbolic input
// method.
//
// A Driver opens input methods by language and name. A Method is shared by
// every session of one engine and owns the callback table. A Context holds
// the per-session conversion state; it consumes key symbols and reports
// state changes through the callbacks, which run synchronously inside
// CreateContext, Filter, Lookup and Reset.
package im

import (
	"errors"
	"fmt"

	"imbridge/internal/candidate"
	"imbridge/internal/keysym"
)

// ErrNotFound is returned by Driver.Open for unknown input methods.
var ErrNotFound = errors.New("input method not found")

// Special symbols delivered to contexts by the session lifecycle.
const (
	SymFocusIn  keysym.Symbol = "input-focus-in"
	SymFocusOut keysym.Symbol = "input-focus-out"

	SymUp    keysym.Symbol = "Up"
	SymDown  keysym.Symbol = "Down"
	SymLeft  keysym.Symbol = "Left"
	SymRight keysym.Symbol = "Right"
)

// CallbackKind is the closed set of notifications a context can raise.
type CallbackKind int

const (
	PreeditStart CallbackKind = iota
	PreeditDraw
	PreeditDone
	StatusStart
	StatusDraw
	StatusDone
	CandidatesStart
	CandidatesDraw
	CandidatesDone
	SetSpot
	Toggle
	GetSurroundingText
	DeleteSurroundingText
)

// CallbackKinds lists every kind in declaration order.
var CallbackKinds = []CallbackKind{
	PreeditStart, PreeditDraw, PreeditDone,
	StatusStart, StatusDraw, StatusDone,
	CandidatesStart, CandidatesDraw, CandidatesDone,
	SetSpot, Toggle,
	GetSurroundingText, DeleteSurroundingText,
}

var callbackNames = [...]string{
	PreeditStart:          "preedit-start",
	PreeditDraw:           "preedit-draw",
	PreeditDone:           "preedit-done",
	StatusStart:           "status-start",
	StatusDraw:            "status-draw",
	StatusDone:            "status-done",
	CandidatesStart:       "candidates-start",
	CandidatesDraw:        "candidates-draw",
	CandidatesDone:        "candidates-done",
	SetSpot:               "set-spot",
	Toggle:                "toggle",
	GetSurroundingText:    "get-surrounding-text",
	DeleteSurroundingText: "delete-surrounding-text",
}

func (k CallbackKind) String() string {
	if k >= 0 && int(k) < len(callbackNames) {
		return callbackNames[k]
	}
	return fmt.Sprintf("CallbackKind(%d)", int(k))
}

// Callback receives a notification raised by ctx.
type Callback func(ctx Context, kind CallbackKind)

// Status is the outcome of Lookup.
type Status int

const (
	Handled Status = iota
	Unhandled
)

// Driver opens input methods.
type Driver interface {
	Open(lang, name string) (Method, error)
}

// Method is an opened input method.
type Method interface {
	// Title is the short label shown while the method is active.
	Title() string

	// RegisterCallback installs cb for kind, replacing any previous one.
	RegisterCallback(kind CallbackKind, cb Callback)

	// CreateContext creates a conversion context. arg is handed back by
	// Context.Arg so callbacks can find their owner, including callbacks
	// raised before CreateContext returns.
	CreateContext(arg any) (Context, error)

	Close() error
}

// Context is one conversion state.
type Context interface {
	Arg() any

	// Filter offers sym to the method. It reports true when sym was
	// consumed and nothing more should happen.
	Filter(sym keysym.Symbol) bool

	// Lookup returns the text produced for sym.
	Lookup(sym keysym.Symbol) (string, Status)

	Reset()
	Destroy()

	Preedit() string
	CursorPos() int
	Status() string

	// Candidates returns the current list, nil when there is none.
	Candidates() candidate.List
	CandidateIndex() int
	CandidatesShown() bool

	// SurroundingRequest is the signed length of the pending surrounding
	// text request, negative for text before the cursor.
	SurroundingRequest() int

	// SetSurroundingText answers a get-surrounding-text callback.
	SetSurroundingText(text string)
}
