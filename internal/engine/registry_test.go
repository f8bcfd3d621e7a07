package engine

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbridge/internal/candidate"
	"imbridge/internal/im/table"
	"imbridge/internal/keysym"
	"imbridge/internal/style"
)

type memConfig struct {
	sections map[string]map[string]any
	watchers []func(section, name string, value any)
	canceled bool
}

func (c *memConfig) Values(section string) (map[string]any, error) {
	return c.sections[section], nil
}

func (c *memConfig) Watch(fn func(section, name string, value any)) func() {
	c.watchers = append(c.watchers, fn)
	return func() { c.canceled = true }
}

func (c *memConfig) set(section, name string, value any) {
	for _, fn := range c.watchers {
		fn(section, name, value)
	}
}

func TestRegistryClass(t *testing.T) {
	cfg := &memConfig{sections: map[string]map[string]any{
		"engine/Table/xx/test": {
			style.KeyPreeditBackground:      "#102030",
			style.KeyLookupTableOrientation: int32(candidate.Horizontal),
		},
	}}
	r := NewRegistry(&fakeDriver{method: newFakeMethod("T")}, Options{
		Config:    cfg,
		Highlight: func(name string) bool { return name == "table:xx:test" },
		Logger:    quietLogger(),
	})

	c, err := r.Class("table:xx:test")
	require.NoError(t, err)
	assert.Equal(t, "engine/Table/xx/test", c.Section())

	s := c.Style()
	assert.Equal(t, style.HighlightForeground, s.Foreground)
	assert.Equal(t, style.Color(0x102030), s.Background)
	assert.Equal(t, candidate.Horizontal, s.Orientation)

	again, err := r.Class("table:xx:test")
	require.NoError(t, err)
	assert.Same(t, c, again)

	other, err := r.Class("table:yy:plain")
	require.NoError(t, err)
	assert.Equal(t, style.Default(false), other.Style())

	names := []string{}
	for _, c := range r.Classes() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"table:xx:test", "table:yy:plain"}, names)
}

func TestRegistryBadPreferences(t *testing.T) {
	var logs bytes.Buffer
	cfg := &memConfig{sections: map[string]map[string]any{
		"engine/Table/xx/test": {
			style.KeyPreeditForeground: "#123456",
			style.KeyPreeditBackground: "not a color",
			style.KeyPreeditUnderline:  "single",
		},
	}}
	r := NewRegistry(&fakeDriver{method: newFakeMethod("T")}, Options{
		Config:    cfg,
		Highlight: func(string) bool { return true },
		Logger:    slog.New(slog.NewTextHandler(&logs, nil)),
	})

	c, err := r.Class("table:xx:test")
	require.NoError(t, err)

	s := c.Style()
	assert.Equal(t, style.Color(0x123456), s.Foreground)
	assert.Equal(t, style.NoColor, s.Background)
	assert.Equal(t, style.Default(true).Underline, s.Underline)

	assert.Contains(t, logs.String(), "ignoring engine preferences")
	assert.Contains(t, logs.String(), style.KeyPreeditBackground)
	assert.Contains(t, logs.String(), style.KeyPreeditUnderline)
}

func TestRegistryUnknownEngine(t *testing.T) {
	r := NewRegistry(&fakeDriver{}, Options{Logger: quietLogger()})

	for _, name := range []string{"", "table", "table:xx", "m17n:xx:test", "table::test", "table:xx:"} {
		_, err := r.NewSession(name, &recorder{})
		assert.ErrorIs(t, err, ErrUnknownEngine, name)
	}
	assert.Equal(t, "table:ko:romaja", r.EngineName("ko", "romaja"))
}

func TestRegistryRoutesValueChanges(t *testing.T) {
	cfg := &memConfig{}
	r := NewRegistry(&fakeDriver{method: newFakeMethod("T")}, Options{
		Prefix: "test",
		Config: cfg,
		Logger: quietLogger(),
	})

	a, err := r.Class("test:xx:a")
	require.NoError(t, err)
	b, err := r.Class("test:xx:b")
	require.NoError(t, err)

	cfg.set(Section("xx", "a"), style.KeyPreeditForeground, "#abcdef")
	assert.Equal(t, style.Color(0xabcdef), a.Style().Foreground)
	assert.Equal(t, style.NoColor, b.Style().Foreground)

	cfg.set(Section("xx", "a"), style.KeyPreeditForeground, "nonsense")
	assert.Equal(t, style.Color(0xabcdef), a.Style().Foreground)

	require.NoError(t, r.Close())
	assert.True(t, cfg.canceled)
}

func TestRegistryWithTableDriver(t *testing.T) {
	r := NewRegistry(table.NewDriver(nil, quietLogger()), Options{Logger: quietLogger()})
	t.Cleanup(func() { _ = r.Close() })

	t.Run("kana", func(t *testing.T) {
		host := &recorder{}
		s, err := r.NewSession("table:ja:kana", host)
		require.NoError(t, err)
		defer s.Destroy()

		// The status equals the title, so the property stays hidden.
		require.NotEmpty(t, host.props)
		assert.False(t, host.props[len(host.props)-1].Visible)

		s.FocusIn()
		host.reset()

		assert.True(t, s.ProcessKeyEvent('k', 37, 0))
		assert.Equal(t, []string{"hide-preedit", `preedit "k" true`}, host.events)

		host.reset()
		assert.True(t, s.ProcessKeyEvent('i', 23, 0))
		assert.Equal(t, []string{"hide-preedit", "commit き", `preedit "" false`}, host.events)
	})

	t.Run("postfix accent", func(t *testing.T) {
		host := &recorder{caps: CapSurroundingText, text: "cafe", cursor: 4}
		s, err := r.NewSession("table:latn:post", host)
		require.NoError(t, err)
		defer s.Destroy()

		assert.True(t, s.ProcessKey(keysym.Symbol("'")))
		assert.Equal(t, [][2]int64{{-1, 1}}, host.deleted)
		assert.Contains(t, host.events, "commit é")
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := r.NewSession("table:zz:none", &recorder{})
		assert.ErrorIs(t, err, ErrEngineUnavailable)
	})
}
