//go:build linux

// Package ibus serves imbridge engines to the IBus daemon over D-Bus.
//
// The daemon asks the Factory for an engine by name; each engine becomes
// an EngineObject exported at its own path. The object forwards the
// daemon's method calls to an engine.Session and turns the session's host
// calls into IBus signals.
package ibus

import (
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"imbridge/internal/candidate"
	"imbridge/internal/engine"
	"imbridge/internal/keysym"
	"imbridge/internal/logging"
	"imbridge/internal/preedit"
)

// IBus D-Bus names.
const (
	ServiceName      = "org.freedesktop.IBus"
	FactoryPath      = "/org/freedesktop/IBus/Factory"
	FactoryInterface = "org.freedesktop.IBus.Factory"
	EngineInterface  = "org.freedesktop.IBus.Engine"
	ServiceInterface = "org.freedesktop.IBus.Service"
	ConfigInterface  = "org.freedesktop.IBus.Config"
	ConfigPath       = "/org/freedesktop/IBus/Config"

	errorName = "org.freedesktop.IBus.Error"
)

// preeditClear is IBUS_ENGINE_PREEDIT_CLEAR: the client drops the preedit
// on focus change.
const preeditClear uint32 = 0

// busConn is the part of *dbus.Conn engine objects use.
type busConn interface {
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
	Export(v interface{}, path dbus.ObjectPath, iface string) error
}

// EngineObject is one IBus engine instance. D-Bus methods are serialized
// by mu; the engine.Host methods run inside them.
type EngineObject struct {
	conn   busConn
	path   dbus.ObjectPath
	logger *slog.Logger
	crash  *logging.CrashHandler

	mu      sync.Mutex
	session *engine.Session
	caps    engine.Capability

	surroundingText   string
	surroundingCursor uint32
	surroundingAnchor uint32

	onDestroy func(*EngineObject)
}

func newEngineObject(conn busConn, path dbus.ObjectPath, logger *slog.Logger) *EngineObject {
	return &EngineObject{
		conn:   conn,
		path:   path,
		logger: logger.With("path", path),
		// IBus assumes preedit, auxiliary text, lookup table and focus
		// until the client says otherwise.
		caps: engine.CapPreeditText | engine.CapAuxiliaryText | engine.CapLookupTable | engine.CapFocus,
	}
}

// Path returns the object path.
func (e *EngineObject) Path() dbus.ObjectPath { return e.path }

func (e *EngineObject) export() error {
	if err := e.conn.Export(e, e.path, EngineInterface); err != nil {
		return err
	}
	return e.conn.Export(e, e.path, ServiceInterface)
}

func (e *EngineObject) unexport() {
	_ = e.conn.Export(nil, e.path, EngineInterface)
	_ = e.conn.Export(nil, e.path, ServiceInterface)
}

func (e *EngineObject) emit(signal string, values ...interface{}) {
	if err := e.conn.Emit(e.path, EngineInterface+"."+signal, values...); err != nil {
		e.logger.Warn("emit signal", "signal", signal, "error", err)
	}
}

// guard runs fn, turning a panic into a crash report and a D-Bus error.
func (e *EngineObject) guard(method string, fn func()) *dbus.Error {
	if e.crash == nil {
		fn()
		return nil
	}
	info := map[string]any{"path": string(e.path), "method": method}
	if e.crash.Recover(info, fn) {
		return dbus.NewError(errorName, []interface{}{method + " failed"})
	}
	return nil
}

// with runs fn on the session under the lock.
func (e *EngineObject) with(method string, fn func(s *engine.Session)) *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	return e.guard(method, func() { fn(e.session) })
}

// ProcessKeyEvent reports whether the engine consumed the key.
func (e *EngineObject) ProcessKeyEvent(keyval, keycode, state uint32) (bool, *dbus.Error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return false, nil
	}
	var handled bool
	derr := e.guard("ProcessKeyEvent", func() {
		handled = e.session.ProcessKeyEvent(keyval, keycode, keysym.Modifier(state))
	})
	return handled, derr
}

func (e *EngineObject) FocusIn() *dbus.Error  { return e.with("FocusIn", (*engine.Session).FocusIn) }
func (e *EngineObject) FocusOut() *dbus.Error { return e.with("FocusOut", (*engine.Session).FocusOut) }
func (e *EngineObject) Reset() *dbus.Error    { return e.with("Reset", (*engine.Session).Reset) }
func (e *EngineObject) Enable() *dbus.Error   { return e.with("Enable", (*engine.Session).Enable) }
func (e *EngineObject) Disable() *dbus.Error  { return e.with("Disable", (*engine.Session).Disable) }

func (e *EngineObject) PageUp() *dbus.Error     { return e.with("PageUp", (*engine.Session).PageUp) }
func (e *EngineObject) PageDown() *dbus.Error   { return e.with("PageDown", (*engine.Session).PageDown) }
func (e *EngineObject) CursorUp() *dbus.Error   { return e.with("CursorUp", (*engine.Session).CursorUp) }
func (e *EngineObject) CursorDown() *dbus.Error { return e.with("CursorDown", (*engine.Session).CursorDown) }

// CandidateClicked selects a candidate of the visible page.
func (e *EngineObject) CandidateClicked(index, button, state uint32) *dbus.Error {
	return e.with("CandidateClicked", func(s *engine.Session) { s.CandidateClicked(index) })
}

func (e *EngineObject) PropertyActivate(name string, state uint32) *dbus.Error {
	return e.with("PropertyActivate", func(s *engine.Session) { s.PropertyActivate(name, state) })
}

func (e *EngineObject) PropertyShow(name string) *dbus.Error { return nil }
func (e *EngineObject) PropertyHide(name string) *dbus.Error { return nil }

// SetCapabilities records the client capability flags.
func (e *EngineObject) SetCapabilities(caps uint32) *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.caps = engine.Capability(caps)
	return nil
}

// SetSurroundingText records the text around the client cursor. text is
// a serialized IBusText.
func (e *EngineObject) SetSurroundingText(text dbus.Variant, cursor, anchor uint32) *dbus.Error {
	s, err := decodeText(text)
	if err != nil {
		e.logger.Warn("ignoring surrounding text", "error", err)
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.surroundingText = s
	e.surroundingCursor = cursor
	e.surroundingAnchor = anchor
	return nil
}

func (e *EngineObject) SetCursorLocation(x, y, w, h int32) *dbus.Error         { return nil }
func (e *EngineObject) SetCursorLocationRelative(x, y, w, h int32) *dbus.Error { return nil }
func (e *EngineObject) SetContentType(purpose, hints uint32) *dbus.Error       { return nil }

// Destroy ends the session and removes the object from the bus.
func (e *EngineObject) Destroy() *dbus.Error {
	e.mu.Lock()
	s := e.session
	e.session = nil
	e.mu.Unlock()

	if s == nil {
		return nil
	}
	derr := e.guard("Destroy", s.Destroy)
	e.unexport()
	if e.onDestroy != nil {
		e.onDestroy(e)
	}
	e.logger.Debug("engine destroyed")
	return derr
}

// engine.Host

func (e *EngineObject) CommitText(text string) {
	e.emit("CommitText", textVariant(text, nil))
}

func (e *EngineObject) UpdatePreeditText(run preedit.Run) {
	e.emit("UpdatePreeditText", textVariant(run.Text, run.Attrs), run.Cursor, run.Visible, preeditClear)
}

func (e *EngineObject) HidePreeditText() { e.emit("HidePreeditText") }

func (e *EngineObject) UpdateLookupTable(t candidate.Table, visible bool) {
	e.emit("UpdateLookupTable", lookupTableVariant(t), visible)
}

func (e *EngineObject) HideLookupTable() { e.emit("HideLookupTable") }

func (e *EngineObject) UpdateAuxiliaryText(text string, visible bool) {
	e.emit("UpdateAuxiliaryText", textVariant(text, nil), visible)
}

func (e *EngineObject) HideAuxiliaryText() { e.emit("HideAuxiliaryText") }

func (e *EngineObject) RegisterProperties(props []engine.Property) {
	e.emit("RegisterProperties", propListVariant(props))
}

func (e *EngineObject) UpdateProperty(p engine.Property) {
	e.emit("UpdateProperty", propertyVariant(p))
}

func (e *EngineObject) SurroundingText() (string, uint32, uint32) {
	return e.surroundingText, e.surroundingCursor, e.surroundingAnchor
}

func (e *EngineObject) DeleteSurroundingText(offset int32, nchars uint32) {
	e.emit("DeleteSurroundingText", offset, nchars)
}

func (e *EngineObject) RequireSurroundingText() { e.emit("RequireSurroundingText") }

func (e *EngineObject) Capabilities() engine.Capability { return e.caps }
