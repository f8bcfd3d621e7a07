package table

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/derekparker/trie"

	"imbridge/internal/im"
	"imbridge/internal/keysym"
)

// keySep joins symbols into trie keys. Symbols may contain spaces ("S- ")
// so a control character is used.
const keySep = "\x1f"

func joinKeys[S ~string](syms []S) string {
	parts := make([]string, len(syms))
	for i, s := range syms {
		parts[i] = string(s)
	}
	return strings.Join(parts, keySep)
}

// Method is an opened table. It is shared by all contexts of one engine.
type Method struct {
	def    *Definition
	rules  *trie.Trie
	logger *slog.Logger

	mu        sync.RWMutex
	callbacks map[im.CallbackKind]im.Callback
}

func newMethod(def *Definition, logger *slog.Logger) *Method {
	// Later rules for the same sequence replace earlier ones.
	byKey := make(map[string]*Rule, len(def.Rules))
	order := make([]string, 0, len(def.Rules))
	for i := range def.Rules {
		k := joinKeys(def.Rules[i].Keys)
		if _, dup := byKey[k]; dup {
			logger.Warn("duplicate table rule", "keys", def.Rules[i].Keys)
		} else {
			order = append(order, k)
		}
		byKey[k] = &def.Rules[i]
	}

	t := trie.New()
	for _, k := range order {
		t.Add(k, byKey[k])
	}

	return &Method{
		def:       def,
		rules:     t,
		logger:    logger,
		callbacks: make(map[im.CallbackKind]im.Callback),
	}
}

// Title implements im.Method.
func (m *Method) Title() string {
	return m.def.DisplayTitle()
}

// RegisterCallback implements im.Method.
func (m *Method) RegisterCallback(kind im.CallbackKind, cb im.Callback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks[kind] = cb
}

// CreateContext implements im.Method. The status callbacks fire before
// it returns.
func (m *Method) CreateContext(arg any) (im.Context, error) {
	c := &Context{m: m, arg: arg, status: m.def.Status}
	c.fire(im.StatusStart)
	c.fire(im.StatusDraw)
	return c, nil
}

// Close implements im.Method.
func (m *Method) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.callbacks)
	return nil
}

func (m *Method) callback(kind im.CallbackKind) im.Callback {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callbacks[kind]
}

// match looks up a symbol sequence. rule is the exact match, if any; more
// reports whether longer sequences start with seq.
func (m *Method) match(seq []keysym.Symbol) (rule *Rule, more bool) {
	key := joinKeys(seq)
	if node, ok := m.rules.Find(key); ok {
		rule, _ = node.Meta().(*Rule)
	}
	return rule, m.rules.HasKeysWithPrefix(key + keySep)
}
