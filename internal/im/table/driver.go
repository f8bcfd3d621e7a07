// Package table implements input methods defined by YAML tables.
//
// A table maps key symbol sequences to committed text, candidate lists or
// edits of the text before the cursor. Tables are read from the configured
// directories, then from the tables built into the binary; the first file
// named <lang>-<name>.yaml wins.
package table

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"sync"

	"imbridge/internal/im"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

type source struct {
	name string
	fsys fs.FS
}

// Driver opens table input methods. It implements im.Driver.
type Driver struct {
	sources []source
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]*Definition
}

// NewDriver returns a driver searching dirs in order, then the built-in
// tables.
func NewDriver(dirs []string, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Driver{
		logger: logger.With("component", "table"),
		cache:  make(map[string]*Definition),
	}
	for _, dir := range dirs {
		d.sources = append(d.sources, source{name: dir, fsys: os.DirFS(dir)})
	}
	builtin, err := fs.Sub(builtinFS, "builtin")
	if err == nil {
		d.sources = append(d.sources, source{name: "builtin", fsys: builtin})
	}
	return d
}

// Open implements im.Driver.
func (d *Driver) Open(lang, name string) (im.Method, error) {
	def, err := d.Load(lang, name)
	if err != nil {
		return nil, err
	}
	return newMethod(def, d.logger.With("table", lang+"-"+name)), nil
}

// Load returns the parsed table for lang and name.
func (d *Driver) Load(lang, name string) (*Definition, error) {
	file := FileName(lang, name)

	d.mu.Lock()
	defer d.mu.Unlock()

	if def, ok := d.cache[file]; ok {
		return def, nil
	}

	for _, src := range d.sources {
		data, err := fs.ReadFile(src.fsys, file)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path.Join(src.name, file), err)
		}

		def, err := Parse(data, path.Join(src.name, file))
		if err != nil {
			return nil, err
		}
		if def.Language != lang || def.Name != name {
			return nil, fmt.Errorf("%w: %s declares %s-%s", ErrInvalidTable,
				path.Join(src.name, file), def.Language, def.Name)
		}
		d.cache[file] = def
		return def, nil
	}

	return nil, fmt.Errorf("%w: %s:%s", im.ErrNotFound, lang, name)
}

// List returns every loadable table, sorted by language and name. Tables
// that fail to load are logged and skipped.
func (d *Driver) List() []*Definition {
	seen := make(map[string]bool)
	var defs []*Definition

	for _, src := range d.sources {
		files, err := fs.Glob(src.fsys, "*.yaml")
		if err != nil {
			d.logger.Warn("scan table directory", "dir", src.name, "error", err)
			continue
		}
		for _, file := range files {
			if seen[file] {
				continue
			}
			lang, name, ok := splitFileName(file)
			if !ok {
				continue
			}
			seen[file] = true

			def, err := d.Load(lang, name)
			if err != nil {
				d.logger.Warn("skip table", "file", path.Join(src.name, file), "error", err)
				continue
			}
			defs = append(defs, def)
		}
	}

	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Language != defs[j].Language {
			return defs[i].Language < defs[j].Language
		}
		return defs[i].Name < defs[j].Name
	})
	return defs
}
