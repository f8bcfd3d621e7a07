package engine

import (
	"log/slog"
	"strconv"

	"imbridge/internal/im"
	"imbridge/internal/keysym"
)

// State is the lifecycle state of a session.
type State int

const (
	Uninitialized State = iota
	Constructed
	Focused
	Unfocused
	Destroyed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Constructed:
		return "constructed"
	case Focused:
		return "focused"
	case Unfocused:
		return "unfocused"
	case Destroyed:
		return "destroyed"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Session is one engine instance bound to one focus target. It is not safe
// for concurrent use; the host adapter serializes calls.
type Session struct {
	class  *Class
	host   Host
	logger *slog.Logger

	ctx   im.Context
	state State

	status Property
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Class returns the engine class the session belongs to.
func (s *Session) Class() *Class { return s.class }

// bind attaches ctx unless a callback already did.
func (s *Session) bind(ctx im.Context) {
	if s.ctx == nil && ctx != nil && s.state != Destroyed {
		s.ctx = ctx
	}
}

func (s *Session) live() bool {
	return s.ctx != nil && s.state != Destroyed
}

// ProcessKeyEvent encodes a host key event and processes the resulting
// symbol. Events without a symbol are not consumed.
func (s *Session) ProcessKeyEvent(keyval, keycode uint32, state keysym.Modifier) bool {
	sym, ok := keysym.Encode(keycode, keyval, state)
	if !ok {
		return false
	}
	return s.ProcessKey(sym)
}

// ProcessKey offers sym to the input method. It reports whether the key
// was consumed.
func (s *Session) ProcessKey(sym keysym.Symbol) bool {
	if !s.live() {
		return false
	}

	if s.ctx.Filter(sym) {
		return true
	}

	text, status := s.ctx.Lookup(sym)
	if text != "" {
		s.logger.Debug("commit", "key", sym, "text", text)
		s.host.CommitText(text)
		s.updatePreedit()
	}
	return status == im.Handled
}

// FocusIn registers the engine properties, tells the input method it has
// focus and asks the client for surrounding text.
func (s *Session) FocusIn() {
	if !s.live() {
		return
	}
	s.state = Focused
	s.host.RegisterProperties([]Property{s.status})
	s.ProcessKey(im.SymFocusIn)
	s.host.RequireSurroundingText()
}

// FocusOut tells the input method focus is gone.
func (s *Session) FocusOut() {
	if !s.live() {
		return
	}
	s.state = Unfocused
	s.ProcessKey(im.SymFocusOut)
}

// Reset drops the conversion state. It is valid in every state.
func (s *Session) Reset() {
	if !s.live() {
		return
	}
	s.ctx.Reset()
}

// Enable asks the client for surrounding text.
func (s *Session) Enable() {
	if !s.live() {
		return
	}
	s.host.RequireSurroundingText()
}

// Disable loses focus first.
func (s *Session) Disable() {
	s.FocusOut()
}

func (s *Session) PageUp()     { s.ProcessKey(im.SymUp) }
func (s *Session) PageDown()   { s.ProcessKey(im.SymDown) }
func (s *Session) CursorUp()   { s.ProcessKey(im.SymLeft) }
func (s *Session) CursorDown() { s.ProcessKey(im.SymRight) }

// CandidateClicked selects the candidate at index on the visible page.
func (s *Session) CandidateClicked(index uint32) {
	if index > 8 {
		s.logger.Debug("candidate click out of range", "index", index)
		return
	}
	s.ProcessKey(keysym.Symbol(strconv.Itoa(int(index) + 1)))
}

// PropertyActivate handles a click on an engine property. The status
// property has no action.
func (s *Session) PropertyActivate(name string, state uint32) {
	s.logger.Debug("property activated", "property", name, "state", state)
}

// Destroy releases the input context. Later calls do nothing.
func (s *Session) Destroy() {
	if s.state == Destroyed {
		return
	}
	if s.ctx != nil {
		s.ctx.Destroy()
		s.ctx = nil
	}
	s.state = Destroyed
	s.class.release()
	s.logger.Debug("session destroyed")
}
