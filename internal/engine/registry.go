package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"imbridge/internal/im"
	"imbridge/internal/style"
)

// DefaultPrefix is the first component of engine names.
const DefaultPrefix = "table"

// Options configures a Registry.
type Options struct {
	// Prefix is the first component of engine names, DefaultPrefix when
	// empty.
	Prefix string

	Config ConfigService

	// Highlight reports whether an engine draws its preedit with the
	// highlight colors by default.
	Highlight func(name string) bool

	Logger *slog.Logger
}

// Registry maps engine names to their shared classes.
type Registry struct {
	prefix    string
	driver    im.Driver
	config    ConfigService
	highlight func(string) bool
	logger    *slog.Logger

	mu      sync.Mutex
	classes map[string]*Class
	cancel  func()
}

// NewRegistry returns a registry opening input methods with driver.
func NewRegistry(driver im.Driver, opts Options) *Registry {
	r := &Registry{
		prefix:    opts.Prefix,
		driver:    driver,
		config:    opts.Config,
		highlight: opts.Highlight,
		logger:    opts.Logger,
		classes:   make(map[string]*Class),
	}
	if r.prefix == "" {
		r.prefix = DefaultPrefix
	}
	if r.config == nil {
		r.config = NopConfig{}
	}
	if r.highlight == nil {
		r.highlight = func(string) bool { return false }
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.cancel = r.config.Watch(r.valueChanged)
	return r
}

// EngineName returns the engine name for an input method.
func (r *Registry) EngineName(lang, name string) string {
	return r.prefix + ":" + lang + ":" + name
}

// Section returns the configuration section of an input method.
func Section(lang, name string) string {
	return "engine/Table/" + lang + "/" + name
}

// parseName splits "<prefix>:<lang>:<name>".
func (r *Registry) parseName(engine string) (lang, name string, err error) {
	parts := strings.SplitN(engine, ":", 3)
	if len(parts) != 3 || parts[0] != r.prefix || parts[1] == "" || parts[2] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
	return parts[1], parts[2], nil
}

// Class returns the class for engine, creating it on first use.
func (r *Registry) Class(engine string) (*Class, error) {
	lang, name, err := r.parseName(engine)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.classes[engine]; ok {
		return c, nil
	}

	section := Section(lang, name)
	values, err := r.config.Values(section)
	if err != nil {
		r.logger.Warn("read engine preferences", "section", section, "error", err)
	}
	initial, err := style.Overlay(style.Default(r.highlight(engine)), values)
	if err != nil {
		r.logger.Warn("ignoring engine preferences", "section", section, "error", err)
	}

	c := NewClass(engine, lang, name, section, r.driver, initial, r.logger)
	r.classes[engine] = c
	return c, nil
}

// NewSession creates a session of engine rendering to host.
func (r *Registry) NewSession(engine string, host Host) (*Session, error) {
	c, err := r.Class(engine)
	if err != nil {
		return nil, err
	}
	return c.NewSession(host)
}

// Classes returns the classes created so far, sorted by name.
func (r *Registry) Classes() []*Class {
	r.mu.Lock()
	defer r.mu.Unlock()

	classes := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].name < classes[j].name })
	return classes
}

func (r *Registry) valueChanged(section, name string, value any) {
	r.mu.Lock()
	var targets []*Class
	for _, c := range r.classes {
		if c.section == section {
			targets = append(targets, c)
		}
	}
	r.mu.Unlock()

	for _, c := range targets {
		c.OnValueChanged(section, name, value)
	}
}

// Close stops watching the configuration and closes every class.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	var errs []error
	for name, c := range r.classes {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
