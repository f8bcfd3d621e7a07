package config

import (
	"errors"
	"log/slog"
	"reflect"
	"slices"
	"sync"
)

var errNotLoaded = errors.New("configuration not loaded")

// FileService serves engine preferences from the sections of the
// configuration file. Values changed on disk are pushed to watchers after
// the loader reloads the file.
type FileService struct {
	loader *Loader
	logger *slog.Logger

	mu       sync.Mutex
	nextID   int
	watchers map[int]func(section, name string, value any)
}

// NewFileService returns a service reading from loader.
func NewFileService(loader *Loader, logger *slog.Logger) *FileService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileService{
		loader:   loader,
		logger:   logger.With("component", "config"),
		watchers: make(map[int]func(section, name string, value any)),
	}
	loader.OnChange(s.changed)
	return s
}

// Values returns the values stored under section.
func (s *FileService) Values(section string) (map[string]any, error) {
	cfg := s.loader.Config()
	if cfg == nil {
		return nil, errNotLoaded
	}
	return cfg.Section(section), nil
}

// Watch registers fn for value changes until cancel is called.
func (s *FileService) Watch(fn func(section, name string, value any)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// changed notifies every key whose value is new or differs from old.
// Removed keys are not reported.
func (s *FileService) changed(old, new *Config) {
	var before map[string]map[string]any
	if old != nil {
		before = old.Clone().Sections
	}
	after := new.Clone().Sections

	s.mu.Lock()
	fns := make([]func(section, name string, value any), 0, len(s.watchers))
	ids := make([]int, 0, len(s.watchers))
	for id := range s.watchers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, s.watchers[id])
	}
	s.mu.Unlock()

	for _, section := range sortedKeys(after) {
		values := after[section]
		for _, name := range sortedKeys(values) {
			value := values[name]
			if prev, ok := before[section][name]; ok && reflect.DeepEqual(prev, value) {
				continue
			}
			s.logger.Debug("value changed", "section", section, "name", name, "value", value)
			for _, fn := range fns {
				fn(section, name, value)
			}
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
