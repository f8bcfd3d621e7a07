//go:build linux

package ibus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"imbridge/internal/engine"
	"imbridge/internal/logging"
)

// Sessions creates engine sessions by name. *engine.Registry implements
// it.
type Sessions interface {
	NewSession(name string, host engine.Host) (*engine.Session, error)
}

// Factory implements org.freedesktop.IBus.Factory.
type Factory struct {
	conn     busConn
	sessions Sessions
	logger   *slog.Logger
	crash    *logging.CrashHandler

	mu      sync.Mutex
	nextID  uint32
	engines map[dbus.ObjectPath]*EngineObject
}

// NewFactory returns a factory creating sessions through sessions.
func NewFactory(conn busConn, sessions Sessions, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		conn:     conn,
		sessions: sessions,
		logger:   logger.With("component", "ibus"),
		engines:  make(map[dbus.ObjectPath]*EngineObject),
	}
}

// SetCrashHandler makes engine objects recover panics through h instead
// of letting them kill the process.
func (f *Factory) SetCrashHandler(h *logging.CrashHandler) {
	f.crash = h
}

// Export publishes the factory at FactoryPath.
func (f *Factory) Export() error {
	if err := f.conn.Export(f, FactoryPath, FactoryInterface); err != nil {
		return fmt.Errorf("export factory: %w", err)
	}
	return nil
}

// CreateEngine creates an engine and returns its object path.
func (f *Factory) CreateEngine(name string) (dbus.ObjectPath, *dbus.Error) {
	f.mu.Lock()
	f.nextID++
	path := dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/IBus/Engine/%d", f.nextID))
	f.mu.Unlock()

	obj := newEngineObject(f.conn, path, f.logger.With("engine", name))
	obj.crash = f.crash

	// The session may call back into obj before NewSession returns.
	var session *engine.Session
	var err error
	if derr := obj.guard("CreateEngine", func() {
		session, err = f.sessions.NewSession(name, obj)
	}); derr != nil {
		return "", derr
	}
	if err != nil {
		f.logger.Error("create engine", "engine", name, "error", err)
		return "", dbus.NewError(errorName, []interface{}{err.Error()})
	}

	obj.mu.Lock()
	obj.session = session
	obj.mu.Unlock()
	obj.onDestroy = f.forget

	if err := obj.export(); err != nil {
		session.Destroy()
		f.logger.Error("export engine", "engine", name, "error", err)
		return "", dbus.NewError(errorName, []interface{}{err.Error()})
	}

	f.mu.Lock()
	f.engines[path] = obj
	f.mu.Unlock()

	f.logger.Info("engine created", "engine", name, "path", path)
	return path, nil
}

func (f *Factory) forget(obj *EngineObject) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.engines, obj.path)
}

// Engines returns the number of live engine objects.
func (f *Factory) Engines() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.engines)
}

// Close destroys every engine and unexports the factory.
func (f *Factory) Close() {
	f.mu.Lock()
	objs := make([]*EngineObject, 0, len(f.engines))
	for _, obj := range f.engines {
		objs = append(objs, obj)
	}
	f.mu.Unlock()

	for _, obj := range objs {
		obj.Destroy()
	}
	_ = f.conn.Export(nil, FactoryPath, FactoryInterface)
}
