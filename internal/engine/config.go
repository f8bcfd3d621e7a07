package engine

// ConfigService provides per-section engine preferences.
type ConfigService interface {
	// Values returns the stored values of section. A missing section is
	// not an error.
	Values(section string) (map[string]any, error)

	// Watch calls fn for every changed value until cancel is called.
	Watch(fn func(section, name string, value any)) (cancel func())
}

// NopConfig stores nothing and never changes.
type NopConfig struct{}

func (NopConfig) Values(string) (map[string]any, error)           { return nil, nil }
func (NopConfig) Watch(func(string, string, any)) (cancel func()) { return func() {} }
