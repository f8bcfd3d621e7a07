//go:build linux

package ibus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

// signalConn is the part of *dbus.Conn the config client uses.
type signalConn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
}

// ConfigClient reads engine preferences from the IBus configuration
// service. It implements engine.ConfigService.
type ConfigClient struct {
	conn   signalConn
	logger *slog.Logger
}

// NewConfigClient returns a client on conn.
func NewConfigClient(conn signalConn, logger *slog.Logger) *ConfigClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigClient{conn: conn, logger: logger.With("component", "ibus-config")}
}

// Values returns every value stored under section.
func (c *ConfigClient) Values(section string) (map[string]any, error) {
	var values map[string]dbus.Variant
	obj := c.conn.Object(ServiceName, ConfigPath)
	if err := obj.Call(ConfigInterface+".GetValues", 0, section).Store(&values); err != nil {
		return nil, fmt.Errorf("get values of %s: %w", section, err)
	}
	return plainValues(values), nil
}

func (c *ConfigClient) matchOptions() []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(ConfigPath),
		dbus.WithMatchInterface(ConfigInterface),
		dbus.WithMatchMember("ValueChanged"),
	}
}

// Watch delivers ValueChanged signals to fn until cancel is called.
func (c *ConfigClient) Watch(fn func(section, name string, value any)) (cancel func()) {
	if err := c.conn.AddMatchSignal(c.matchOptions()...); err != nil {
		c.logger.Warn("watch configuration", "error", err)
		return func() {}
	}

	ch := make(chan *dbus.Signal, 16)
	c.conn.Signal(ch)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case sig, ok := <-ch:
				if !ok {
					return
				}
				c.handle(sig, fn)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			c.conn.RemoveSignal(ch)
			_ = c.conn.RemoveMatchSignal(c.matchOptions()...)
		})
	}
}

func (c *ConfigClient) handle(sig *dbus.Signal, fn func(section, name string, value any)) {
	if sig == nil || sig.Name != ConfigInterface+".ValueChanged" {
		return
	}
	if len(sig.Body) != 3 {
		c.logger.Warn("malformed ValueChanged", "args", len(sig.Body))
		return
	}
	section, ok1 := sig.Body[0].(string)
	name, ok2 := sig.Body[1].(string)
	value, ok3 := sig.Body[2].(dbus.Variant)
	if !ok1 || !ok2 || !ok3 {
		c.logger.Warn("malformed ValueChanged", "signature", fmt.Sprintf("%T %T %T", sig.Body[0], sig.Body[1], sig.Body[2]))
		return
	}
	fn(section, name, value.Value())
}

func plainValues(values map[string]dbus.Variant) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v.Value()
	}
	return out
}
