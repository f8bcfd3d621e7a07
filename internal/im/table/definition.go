package table

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"imbridge/internal/candidate"
)

// ErrInvalidTable is returned for table files that fail to decode or do
// not match the schema.
var ErrInvalidTable = errors.New("invalid input method table")

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "table.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func tableSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Definition is one input method table.
type Definition struct {
	Language    string `yaml:"language"`
	Name        string `yaml:"name"`
	Title       string `yaml:"title,omitempty"`
	Status      string `yaml:"status,omitempty"`
	Description string `yaml:"description,omitempty"`
	Rules       []Rule `yaml:"rules"`
}

// Rule maps a key symbol sequence to exactly one action.
type Rule struct {
	Keys        []string         `yaml:"keys"`
	Commit      string           `yaml:"commit,omitempty"`
	Candidates  []CandidateGroup `yaml:"candidates,omitempty"`
	Surrounding *SurroundingRule `yaml:"surrounding,omitempty"`
}

// SurroundingRule edits text next to the cursor. Length is the signed
// request size; the excerpt is looked up in Replace and, when found,
// deleted and replaced. Otherwise is committed when nothing matches.
type SurroundingRule struct {
	Length    int               `yaml:"length"`
	Replace   map[string]string `yaml:"replace,omitempty"`
	Otherwise string            `yaml:"otherwise,omitempty"`
}

// CandidateGroup is a YAML string (one candidate per character) or a
// list of strings (one candidate per entry).
type CandidateGroup struct {
	Text   string
	Items  []string
	nested bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (g *CandidateGroup) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		g.Text = n.Value
		return nil
	case yaml.SequenceNode:
		g.nested = true
		return n.Decode(&g.Items)
	default:
		return fmt.Errorf("line %d: candidate group must be a string or a list", n.Line)
	}
}

// Group converts g to its candidate representation.
func (g CandidateGroup) Group() candidate.Group {
	if g.nested {
		return candidate.NestedGroup(g.Items...)
	}
	return candidate.FlatGroup(g.Text)
}

// Parse decodes and validates a YAML table. source names the table in
// error messages.
func Parse(data []byte, source string) (*Definition, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTable, source, err)
	}

	schema, err := tableSchema()
	if err != nil {
		return nil, err
	}

	instance, err := toJSONValue(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTable, source, err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTable, source, err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTable, source, err)
	}
	return &def, nil
}

// toJSONValue round-trips a YAML value through encoding/json so the schema
// sees the same types it would for a JSON document.
func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(stringKeys(v))
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// stringKeys converts maps with non-string keys, which YAML allows for
// numeric keys such as "1:", into JSON-compatible maps.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = stringKeys(e)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = stringKeys(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = stringKeys(e)
		}
		return t
	default:
		return v
	}
}

// EngineName returns "<prefix>:<lang>:<name>".
func (d *Definition) EngineName(prefix string) string {
	return prefix + ":" + d.Language + ":" + d.Name
}

// DisplayTitle is the title, or the name when the table has none.
func (d *Definition) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.Name
}

// FileName is the table file name for lang and name.
func FileName(lang, name string) string {
	return lang + "-" + name + ".yaml"
}

// splitFileName is the inverse of FileName.
func splitFileName(file string) (lang, name string, ok bool) {
	base, found := strings.CutSuffix(file, ".yaml")
	if !found {
		return "", "", false
	}
	return strings.Cut(base, "-")
}
