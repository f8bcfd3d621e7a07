// Package engine connects a host text-input client to a symbolic input
// method.
//
// A Class is shared by every session of one engine. It opens the input
// method lazily, registers the callback vocabulary once, and publishes the
// engine's style. A Session owns one input context and keeps the host's
// preedit, candidate and status display in step with it.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"imbridge/internal/im"
	"imbridge/internal/style"
)

var (
	// ErrEngineUnavailable is returned when the input method cannot be
	// opened. No session is created.
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrUnknownEngine is returned for engine names the registry does not
	// serve.
	ErrUnknownEngine = errors.New("unknown engine")
)

// Class is the per-engine shared state.
type Class struct {
	name    string
	lang    string
	imName  string
	section string

	driver im.Driver
	style  *style.Store
	logger *slog.Logger

	mu     sync.Mutex
	method im.Method
	title  string
	refs   int

	nextSession atomic.Uint64
}

// NewClass returns a class for the input method lang/imName, advertised as
// name and configured from section. The method is not opened until the
// first session.
func NewClass(name, lang, imName, section string, driver im.Driver, initial style.Style, logger *slog.Logger) *Class {
	if logger == nil {
		logger = slog.Default()
	}
	return &Class{
		name:    name,
		lang:    lang,
		imName:  imName,
		section: section,
		driver:  driver,
		style:   style.NewStore(initial),
		logger:  logger.With("engine", name),
	}
}

// Name returns the engine name.
func (c *Class) Name() string { return c.name }

// Section returns the configuration section of the class.
func (c *Class) Section() string { return c.section }

// Style returns the current style snapshot.
func (c *Class) Style() style.Style { return c.style.Load() }

// Title returns the input method title, empty before the method is open.
func (c *Class) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title
}

// Refs returns the number of live sessions.
func (c *Class) Refs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs
}

// acquire opens the method on first use and takes a session reference.
func (c *Class) acquire() (im.Method, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.method == nil {
		m, err := c.driver.Open(c.lang, c.imName)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, c.name, err)
		}
		for _, kind := range im.CallbackKinds {
			m.RegisterCallback(kind, c.callback)
		}
		c.method = m
		c.title = m.Title()
		c.logger.Info("input method opened", "title", c.title)
	}

	c.refs++
	return c.method, nil
}

func (c *Class) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refs > 0 {
		c.refs--
	}
}

// callback is registered with the method for every kind. The context's
// argument is the owning session.
func (c *Class) callback(ctx im.Context, kind im.CallbackKind) {
	s, ok := ctx.Arg().(*Session)
	if !ok || s == nil {
		c.logger.Warn("callback without session", "kind", kind)
		return
	}
	s.dispatch(ctx, kind)
}

// NewSession creates a session rendering to host.
func (c *Class) NewSession(host Host) (*Session, error) {
	method, err := c.acquire()
	if err != nil {
		return nil, err
	}

	s := &Session{
		class:  c,
		host:   host,
		logger: c.logger.With("session", c.nextSession.Add(1)),
		status: Property{Key: "status", Type: PropNormal, Sensitive: true},
	}

	// Callbacks may run inside CreateContext and bind s.ctx first.
	ctx, err := method.CreateContext(s)
	if err != nil {
		c.release()
		return nil, fmt.Errorf("%w: %s: create context: %v", ErrEngineUnavailable, c.name, err)
	}
	s.bind(ctx)
	s.state = Constructed

	s.logger.Debug("session created")
	return s, nil
}

// OnValueChanged applies a configuration change. Only the four style keys
// of the class's own section are considered; a malformed value is logged
// and the previous one kept.
func (c *Class) OnValueChanged(section, name string, value any) {
	if section != c.section {
		return
	}
	known, err := c.style.Apply(name, value)
	switch {
	case err != nil:
		c.logger.Warn("ignoring style change", "key", name, "value", value, "error", err)
	case known:
		c.logger.Debug("style changed", "key", name, "value", value)
	}
}

// Close closes the input method. Sessions still alive stop working.
func (c *Class) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.method == nil {
		return nil
	}
	err := c.method.Close()
	c.method = nil
	if c.refs > 0 {
		c.logger.Warn("closing engine with live sessions", "sessions", c.refs)
	}
	return err
}
