package table

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imbridge/internal/im"
	"imbridge/internal/keysym"
)

const testTable = `
language: xx
name: test
title: T
status: S
rules:
  - {keys: [k, a], commit: "か"}
  - {keys: [n, i], commit: "に"}
  - {keys: [h, a], commit: "は"}
  - keys: [n, i, h, o, n]
    candidates: [["日本", "二本", "にほん"]]
  - keys: [q]
    candidates: ["abc", ["de", "fg"]]
  - keys: ["'"]
    surrounding:
      length: -1
      replace: {e: "é"}
      otherwise: "'"
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder collects callbacks and answers surrounding text requests.
type recorder struct {
	events   []im.CallbackKind
	around   string
	deletes  []int
	provide  bool
	lastArgs []any
}

func (r *recorder) register(m im.Method) {
	for _, k := range im.CallbackKinds {
		m.RegisterCallback(k, r.callback)
	}
}

func (r *recorder) callback(ctx im.Context, kind im.CallbackKind) {
	r.events = append(r.events, kind)
	r.lastArgs = append(r.lastArgs, ctx.Arg())
	switch kind {
	case im.GetSurroundingText:
		if r.provide {
			ctx.SetSurroundingText(r.around)
		}
	case im.DeleteSurroundingText:
		r.deletes = append(r.deletes, ctx.SurroundingRequest())
	}
}

func (r *recorder) reset() {
	r.events = nil
	r.lastArgs = nil
}

func newTestContext(t *testing.T) (im.Context, *recorder) {
	t.Helper()
	def, err := Parse([]byte(testTable), "test")
	require.NoError(t, err)

	m := newMethod(def, testLogger())
	rec := &recorder{}
	rec.register(m)

	ctx, err := m.CreateContext("owner")
	require.NoError(t, err)
	rec.reset()
	return ctx, rec
}

// press runs the filter/lookup pair the way a session does.
func press(ctx im.Context, sym keysym.Symbol) (consumed bool, text string, status im.Status) {
	if ctx.Filter(sym) {
		return true, "", im.Handled
	}
	text, status = ctx.Lookup(sym)
	return false, text, status
}

func TestParse(t *testing.T) {
	def, err := Parse([]byte(testTable), "test")
	require.NoError(t, err)

	assert.Equal(t, "xx", def.Language)
	assert.Equal(t, "test", def.Name)
	assert.Equal(t, "table:xx:test", def.EngineName("table"))
	assert.Len(t, def.Rules, 6)

	q := def.Rules[4]
	require.Len(t, q.Candidates, 2)
	assert.Equal(t, 3, q.Candidates[0].Group().Len())
	assert.Equal(t, 2, q.Candidates[1].Group().Len())

	require.NotNil(t, def.Rules[5].Surrounding)
	assert.Equal(t, -1, def.Rules[5].Surrounding.Length)
}

func TestParseRejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "not yaml", yaml: "language: [unclosed"},
		{name: "missing name", yaml: "language: xx\nrules: []"},
		{name: "two actions", yaml: "language: xx\nname: t\nrules:\n  - {keys: [a], commit: x, candidates: [ab]}"},
		{name: "no action", yaml: "language: xx\nname: t\nrules:\n  - {keys: [a]}"},
		{name: "zero length surrounding", yaml: "language: xx\nname: t\nrules:\n  - {keys: [a], surrounding: {length: 0}}"},
		{name: "numeric key", yaml: "language: xx\nname: t\nrules:\n  - {keys: [1], commit: x}"},
		{name: "dash in language", yaml: "language: x-y\nname: t\nrules: []"},
		{name: "unknown field", yaml: "language: xx\nname: t\nrules: []\nextra: 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), tt.name)
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}
}

func TestCreateContextFiresStatus(t *testing.T) {
	def, err := Parse([]byte(testTable), "test")
	require.NoError(t, err)
	m := newMethod(def, testLogger())

	rec := &recorder{}
	rec.register(m)

	ctx, err := m.CreateContext("owner")
	require.NoError(t, err)
	assert.Equal(t, []im.CallbackKind{im.StatusStart, im.StatusDraw}, rec.events)
	assert.Equal(t, []any{"owner", "owner"}, rec.lastArgs)
	assert.Equal(t, "S", ctx.Status())
	assert.Equal(t, "T", m.Title())
}

func TestCommitSequence(t *testing.T) {
	ctx, rec := newTestContext(t)

	consumed, _, _ := press(ctx, "k")
	assert.True(t, consumed)
	assert.Equal(t, "k", ctx.Preedit())
	assert.Equal(t, 1, ctx.CursorPos())
	assert.Equal(t, []im.CallbackKind{im.PreeditStart, im.PreeditDraw}, rec.events)

	rec.reset()
	consumed, text, status := press(ctx, "a")
	assert.False(t, consumed)
	assert.Equal(t, "か", text)
	assert.Equal(t, im.Handled, status)
	assert.Equal(t, "", ctx.Preedit())
	assert.Equal(t, []im.CallbackKind{im.PreeditDone}, rec.events)
}

func TestLongestPrefixFlush(t *testing.T) {
	ctx, _ := newTestContext(t)

	for _, s := range []keysym.Symbol{"n", "i", "h"} {
		consumed, _, _ := press(ctx, s)
		require.True(t, consumed, string(s))
	}
	assert.Equal(t, "nih", ctx.Preedit())

	_, text, status := press(ctx, "a")
	assert.Equal(t, "には", text)
	assert.Equal(t, im.Handled, status)
	assert.Equal(t, "", ctx.Preedit())
}

func TestBackSpaceAndEscapeInBuffer(t *testing.T) {
	ctx, rec := newTestContext(t)

	press(ctx, "n")
	press(ctx, "i")
	consumed, _, _ := press(ctx, "BackSpace")
	assert.True(t, consumed)
	assert.Equal(t, "n", ctx.Preedit())

	rec.reset()
	consumed, _, _ = press(ctx, "Escape")
	assert.True(t, consumed)
	assert.Equal(t, "", ctx.Preedit())
	assert.Equal(t, []im.CallbackKind{im.PreeditDone}, rec.events)
}

func TestUnmatchedSymbols(t *testing.T) {
	ctx, _ := newTestContext(t)

	consumed, text, status := press(ctx, "x")
	assert.False(t, consumed)
	assert.Equal(t, "x", text)
	assert.Equal(t, im.Handled, status)

	consumed, text, status = press(ctx, "F1")
	assert.False(t, consumed)
	assert.Equal(t, "", text)
	assert.Equal(t, im.Unhandled, status)

	// A pending buffer is flushed before the unmatched key passes through.
	press(ctx, "k")
	_, text, status = press(ctx, "Return")
	assert.Equal(t, "k", text)
	assert.Equal(t, im.Unhandled, status)
}

func TestCandidates(t *testing.T) {
	ctx, rec := newTestContext(t)

	for _, s := range []keysym.Symbol{"n", "i", "h", "o"} {
		press(ctx, s)
	}
	rec.reset()
	consumed, _, _ := press(ctx, "n")
	assert.True(t, consumed)
	assert.True(t, ctx.CandidatesShown())
	assert.Equal(t, "日本", ctx.Preedit())
	assert.Equal(t, []im.CallbackKind{im.CandidatesStart, im.CandidatesDraw, im.PreeditDraw}, rec.events)

	press(ctx, im.SymDown)
	assert.Equal(t, 1, ctx.CandidateIndex())
	assert.Equal(t, "二本", ctx.Preedit())

	press(ctx, im.SymUp)
	press(ctx, im.SymUp)
	assert.Equal(t, 0, ctx.CandidateIndex(), "index stays at the first entry")

	press(ctx, im.SymRight)
	rec.reset()
	consumed, text, status := press(ctx, "Return")
	assert.False(t, consumed)
	assert.Equal(t, "二本", text)
	assert.Equal(t, im.Handled, status)
	assert.False(t, ctx.CandidatesShown())
	assert.Equal(t, []im.CallbackKind{im.CandidatesDone, im.PreeditDone}, rec.events)
}

func TestCandidateDigitSelectsInPage(t *testing.T) {
	ctx, _ := newTestContext(t)

	press(ctx, "q")
	require.True(t, ctx.CandidatesShown())

	// Move onto the second page.
	for i := 0; i < 3; i++ {
		press(ctx, im.SymDown)
	}
	assert.Equal(t, 3, ctx.CandidateIndex())
	assert.Equal(t, "de", ctx.Preedit())

	consumed, _, _ := press(ctx, "9")
	assert.True(t, consumed, "out of page digit is ignored")
	assert.True(t, ctx.CandidatesShown())

	_, text, _ := press(ctx, "2")
	assert.Equal(t, "fg", text)
}

func TestCandidateCommittedByOtherKey(t *testing.T) {
	ctx, _ := newTestContext(t)

	press(ctx, "q")
	_, text, status := press(ctx, "x")
	assert.Equal(t, "ax", text)
	assert.Equal(t, im.Handled, status)
}

func TestCandidateEscape(t *testing.T) {
	ctx, _ := newTestContext(t)

	press(ctx, "q")
	consumed, _, _ := press(ctx, "Escape")
	assert.True(t, consumed)
	assert.False(t, ctx.CandidatesShown())
	assert.Equal(t, "", ctx.Preedit())
	assert.Nil(t, ctx.Candidates())
}

func TestSurroundingReplace(t *testing.T) {
	ctx, rec := newTestContext(t)
	rec.provide = true
	rec.around = "e"

	_, text, status := press(ctx, "'")
	assert.Equal(t, "é", text)
	assert.Equal(t, im.Handled, status)
	assert.Equal(t, []int{-1}, rec.deletes)
	assert.Equal(t, 0, ctx.SurroundingRequest(), "request cleared afterwards")
}

func TestSurroundingFallback(t *testing.T) {
	tests := []struct {
		name    string
		provide bool
		around  string
	}{
		{name: "no surrounding text support"},
		{name: "no replacement", provide: true, around: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, rec := newTestContext(t)
			rec.provide, rec.around = tt.provide, tt.around

			_, text, _ := press(ctx, "'")
			assert.Equal(t, "'", text)
			assert.Empty(t, rec.deletes)
		})
	}
}

func TestResetFiresDone(t *testing.T) {
	ctx, rec := newTestContext(t)

	press(ctx, "q")
	rec.reset()
	ctx.Reset()
	assert.Equal(t, []im.CallbackKind{im.CandidatesDone, im.PreeditDone}, rec.events)

	rec.reset()
	ctx.Reset()
	assert.Empty(t, rec.events, "reset of an idle context is quiet")
}

func TestFocusOutCommitsPending(t *testing.T) {
	ctx, _ := newTestContext(t)

	press(ctx, "n")
	press(ctx, "i")
	consumed, text, _ := press(ctx, im.SymFocusOut)
	assert.False(t, consumed)
	assert.Equal(t, "に", text)

	consumed, _, _ = press(ctx, im.SymFocusOut)
	assert.True(t, consumed)
}

func TestDestroyedContextPassesKeys(t *testing.T) {
	ctx, _ := newTestContext(t)
	ctx.Destroy()

	_, _, status := press(ctx, "k")
	assert.Equal(t, im.Unhandled, status)
}

func TestDriver(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xx-test.yaml"), []byte(testTable), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "xx-broken.yaml"), []byte("language: xx\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "yy-liar.yaml"), []byte(testTable), 0644))

	d := NewDriver([]string{dir, filepath.Join(dir, "missing")}, testLogger())

	m, err := d.Open("xx", "test")
	require.NoError(t, err)
	assert.Equal(t, "T", m.Title())

	_, err = d.Open("xx", "broken")
	assert.ErrorIs(t, err, ErrInvalidTable)

	_, err = d.Open("yy", "liar")
	assert.ErrorIs(t, err, ErrInvalidTable)

	_, err = d.Open("zz", "none")
	assert.ErrorIs(t, err, im.ErrNotFound)

	var names []string
	for _, def := range d.List() {
		names = append(names, def.EngineName("table"))
	}
	assert.Equal(t, []string{"table:ja:kana", "table:latn:post", "table:xx:test"}, names)
}

func TestBuiltinTablesLoad(t *testing.T) {
	d := NewDriver(nil, testLogger())

	defs := d.List()
	require.Len(t, defs, 2)

	m, err := d.Open("ja", "kana")
	require.NoError(t, err)

	ctx, err := m.CreateContext(nil)
	require.NoError(t, err)

	var out string
	for _, s := range []keysym.Symbol{"s", "a", "k", "a", "n", "j", "i"} {
		if !ctx.Filter(s) {
			text, _ := ctx.Lookup(s)
			out += text
		}
	}
	assert.Equal(t, "さ", out)
	assert.True(t, ctx.CandidatesShown())
	assert.Equal(t, "漢", ctx.Preedit())
}
