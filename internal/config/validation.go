package config

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"imbridge/internal/candidate"
	"imbridge/internal/style"
)

// ErrInvalidConfig matches every error returned by ValidateConfig.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError is one problem in a configuration, addressed by its
// dotted field path. Warnings are reported but do not fail a load.
type ValidationError struct {
	Field   string
	Message string
	Warning bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) IsWarning() bool { return e.Warning }

// ValidationErrors is the result of Lint.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i := range e {
		msgs[i] = e[i].Error()
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) Unwrap() error { return ErrInvalidConfig }

func (e ValidationErrors) filter(warning bool) ValidationErrors {
	var out ValidationErrors
	for _, v := range e {
		if v.Warning == warning {
			out = append(out, v)
		}
	}
	return out
}

func (e ValidationErrors) Warnings() ValidationErrors { return e.filter(true) }
func (e ValidationErrors) Errors() ValidationErrors   { return e.filter(false) }
func (e ValidationErrors) HasErrors() bool            { return len(e.Errors()) > 0 }

func (e *ValidationErrors) fail(field, format string, args ...any) {
	*e = append(*e, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateConfig returns the fatal problems of c. Warnings are reported by
// Lint.
func ValidateConfig(c *Config) error {
	if errs := Lint(c).Errors(); len(errs) > 0 {
		return errs
	}
	return nil
}

// Lint returns every problem found in c, warnings included.
func Lint(c *Config) ValidationErrors {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors
	if c.Version < 1 || c.Version > Version {
		errs.fail("version", "version %d is not supported (want 1..%d)", c.Version, Version)
	}
	lintLogging(&errs, &c.Logging)
	lintIBus(&errs, &c.IBus)
	lintEngines(&errs, c.Engines)
	lintSections(&errs, c.Sections)
	return errs
}

func lintLogging(errs *ValidationErrors, l *LoggingConfig) {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, l.Level) {
		errs.fail("logging.level", "%q is not one of debug, info, warn, error", l.Level)
	}
	if l.Format != "text" && l.Format != "json" {
		errs.fail("logging.format", "%q is not text or json", l.Format)
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs.fail("logging.file_path", "needed when output is %q", l.Output)
		}
	default:
		errs.fail("logging.output", "%q is not one of stdout, stderr, file, both", l.Output)
	}

	if l.MaxSizeMB < 1 {
		errs.fail("logging.max_size_mb", "must be at least 1")
	}
	if l.MaxBackups < 0 {
		errs.fail("logging.max_backups", "must not be negative")
	}
	if l.MaxAgeDays < 0 {
		errs.fail("logging.max_age_days", "must not be negative")
	}
}

func lintIBus(errs *ValidationErrors, b *IBusConfig) {
	switch {
	case b.EnginePrefix == "":
		errs.fail("ibus.engine_prefix", "must not be empty")
	case strings.ContainsAny(b.EnginePrefix, ":/"):
		errs.fail("ibus.engine_prefix", "%q must not contain ':' or '/'", b.EnginePrefix)
	}

	if b.BusName != "" && !strings.Contains(b.BusName, ".") {
		errs.fail("ibus.bus_name", "%q is not a well-known bus name", b.BusName)
	}
}

func lintEngines(errs *ValidationErrors, engines []EngineConfig) {
	for i, e := range engines {
		field := fmt.Sprintf("engines[%d].pattern", i)
		if e.Pattern == "" {
			errs.fail(field, "must not be empty")
			continue
		}
		if _, err := path.Match(e.Pattern, ""); err != nil {
			errs.fail(field, "%q: %v", e.Pattern, err)
		}
	}
}

func lintSections(errs *ValidationErrors, sections map[string]map[string]any) {
	for _, name := range sortedKeys(sections) {
		values := sections[name]
		for _, key := range sortedKeys(values) {
			if v := lintStyleValue(key, values[key]); v != nil {
				v.Field = fmt.Sprintf("sections.%s.%s", name, key)
				*errs = append(*errs, *v)
			}
		}
	}
}

// lintStyleValue checks one preference the way a live update would apply
// it.
func lintStyleValue(key string, value any) *ValidationError {
	st := style.NewStore(style.Default(false))
	known, err := st.Apply(key, value)
	if !known {
		return &ValidationError{Message: "unknown key", Warning: true}
	}
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}

	s := st.Load()
	switch key {
	case style.KeyPreeditUnderline:
		if s.Underline < style.UnderlineNone || s.Underline > style.UnderlineError {
			return &ValidationError{Message: fmt.Sprintf("underline %d out of range 0-4", s.Underline)}
		}
	case style.KeyLookupTableOrientation:
		if !s.Orientation.Valid() {
			return &ValidationError{Message: fmt.Sprintf("orientation %d out of range 0-%d", s.Orientation, candidate.System)}
		}
	}
	return nil
}
