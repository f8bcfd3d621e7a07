package engine

import (
	"errors"
	"fmt"

	"imbridge/internal/candidate"
	"imbridge/internal/im"
	"imbridge/internal/keysym"
	"imbridge/internal/preedit"
)

// recorder is a Host that logs every call.
type recorder struct {
	caps     Capability
	text     string
	cursor   uint32
	events   []string
	preedits []preedit.Run
	tables   []candidate.Table
	props    []Property
	deleted  [][2]int64
}

func (r *recorder) log(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *recorder) CommitText(text string) { r.log("commit %s", text) }

func (r *recorder) UpdatePreeditText(run preedit.Run) {
	r.preedits = append(r.preedits, run)
	r.log("preedit %q %v", run.Text, run.Visible)
}

func (r *recorder) HidePreeditText() { r.log("hide-preedit") }

func (r *recorder) UpdateLookupTable(t candidate.Table, visible bool) {
	r.tables = append(r.tables, t)
	r.log("table %v", visible)
}

func (r *recorder) HideLookupTable() { r.log("hide-table") }

func (r *recorder) UpdateAuxiliaryText(text string, visible bool) {
	r.log("aux %s %v", text, visible)
}

func (r *recorder) HideAuxiliaryText() { r.log("hide-aux") }

func (r *recorder) RegisterProperties(props []Property) { r.log("register %d", len(props)) }

func (r *recorder) UpdateProperty(p Property) {
	r.props = append(r.props, p)
	r.log("property %s %q %v", p.Key, p.Label, p.Visible)
}

func (r *recorder) SurroundingText() (string, uint32, uint32) {
	return r.text, r.cursor, r.cursor
}

func (r *recorder) DeleteSurroundingText(offset int32, n uint32) {
	r.deleted = append(r.deleted, [2]int64{int64(offset), int64(n)})
	r.log("delete %d %d", offset, n)
}

func (r *recorder) RequireSurroundingText() { r.log("require-surrounding") }

func (r *recorder) Capabilities() Capability { return r.caps }

func (r *recorder) reset() { r.events = nil }

// fakeDriver hands out one fakeMethod.
type fakeDriver struct {
	method  *fakeMethod
	err     error
	opened  int
	lastReq string
}

func (d *fakeDriver) Open(lang, name string) (im.Method, error) {
	d.lastReq = lang + ":" + name
	if d.err != nil {
		return nil, d.err
	}
	d.opened++
	return d.method, nil
}

type fakeMethod struct {
	title      string
	callbacks  map[im.CallbackKind]im.Callback
	registered int
	onCreate   []im.CallbackKind
	status     string
	createErr  error
	closed     bool
	contexts   []*fakeContext
}

func newFakeMethod(title string) *fakeMethod {
	return &fakeMethod{title: title, callbacks: make(map[im.CallbackKind]im.Callback)}
}

func (m *fakeMethod) Title() string { return m.title }

func (m *fakeMethod) RegisterCallback(kind im.CallbackKind, cb im.Callback) {
	m.registered++
	m.callbacks[kind] = cb
}

func (m *fakeMethod) CreateContext(arg any) (im.Context, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	c := &fakeContext{m: m, arg: arg, status: m.status, lookup: im.Handled}
	m.contexts = append(m.contexts, c)
	for _, kind := range m.onCreate {
		c.fire(kind)
	}
	return c, nil
}

func (m *fakeMethod) Close() error {
	m.closed = true
	return nil
}

// fakeContext is scripted through its fields; onFilter runs inside Filter
// and may change state and fire callbacks.
type fakeContext struct {
	m   *fakeMethod
	arg any

	preedit string
	cursor  int
	status  string

	cands candidate.List
	index int
	shown bool

	surroundReq int
	surround    string
	surroundSet bool

	onFilter func(c *fakeContext, sym keysym.Symbol) bool
	commit   string
	lookup   im.Status

	filtered  []keysym.Symbol
	resets    int
	destroyed int
}

func (c *fakeContext) fire(kind im.CallbackKind) {
	if cb := c.m.callbacks[kind]; cb != nil {
		cb(c, kind)
	}
}

func (c *fakeContext) Arg() any { return c.arg }

func (c *fakeContext) Filter(sym keysym.Symbol) bool {
	c.filtered = append(c.filtered, sym)
	if c.onFilter != nil {
		return c.onFilter(c, sym)
	}
	return false
}

func (c *fakeContext) Lookup(keysym.Symbol) (string, im.Status) {
	text := c.commit
	c.commit = ""
	return text, c.lookup
}

func (c *fakeContext) Reset()   { c.resets++ }
func (c *fakeContext) Destroy() { c.destroyed++ }

func (c *fakeContext) Preedit() string            { return c.preedit }
func (c *fakeContext) CursorPos() int             { return c.cursor }
func (c *fakeContext) Status() string             { return c.status }
func (c *fakeContext) Candidates() candidate.List { return c.cands }
func (c *fakeContext) CandidateIndex() int        { return c.index }
func (c *fakeContext) CandidatesShown() bool      { return c.shown }
func (c *fakeContext) SurroundingRequest() int    { return c.surroundReq }

func (c *fakeContext) SetSurroundingText(text string) {
	c.surround, c.surroundSet = text, true
}

var errOpen = errors.New("no such table")
