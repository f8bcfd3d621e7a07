package table

import (
	"slices"
	"strings"
	"unicode/utf8"

	"imbridge/internal/candidate"
	"imbridge/internal/im"
	"imbridge/internal/keysym"
)

// Context is the conversion state of one session.
//
// Symbols accumulate in buf while some rule still starts with them. A rule
// fires when its sequence matches and nothing longer can. Committed text
// collects in produced until Lookup hands it out.
type Context struct {
	m   *Method
	arg any

	buf     []keysym.Symbol
	preedit string
	cursor  int
	status  string

	cands candidate.List
	index int
	shown bool

	produced  strings.Builder
	unhandled bool

	surroundLen  int
	surroundText string
	surroundSet  bool

	destroyed bool
}

// Arg implements im.Context.
func (c *Context) Arg() any { return c.arg }

func (c *Context) Preedit() string             { return c.preedit }
func (c *Context) CursorPos() int              { return c.cursor }
func (c *Context) Status() string              { return c.status }
func (c *Context) Candidates() candidate.List  { return c.cands }
func (c *Context) CandidateIndex() int         { return c.index }
func (c *Context) CandidatesShown() bool       { return c.shown }
func (c *Context) SurroundingRequest() int     { return c.surroundLen }
func (c *Context) SetSurroundingText(t string) { c.surroundText, c.surroundSet = t, true }

// Filter implements im.Context.
func (c *Context) Filter(sym keysym.Symbol) bool {
	c.unhandled = false
	if c.destroyed {
		c.unhandled = true
		return false
	}

	switch sym {
	case im.SymFocusIn:
		c.fire(im.StatusDraw)
		return true
	case im.SymFocusOut:
		c.commitPreedit()
		return c.produced.Len() == 0
	}

	c.process(sym)
	return c.produced.Len() == 0 && !c.unhandled
}

// Lookup implements im.Context. The work happens in Filter; Lookup hands
// out what it produced.
func (c *Context) Lookup(keysym.Symbol) (string, im.Status) {
	text := c.produced.String()
	c.produced.Reset()
	if c.unhandled {
		c.unhandled = false
		return text, im.Unhandled
	}
	return text, im.Handled
}

// Reset implements im.Context.
func (c *Context) Reset() {
	c.buf = nil
	c.produced.Reset()
	c.unhandled = false
	c.closeCandidates()
	c.setPreedit("")
}

// Destroy implements im.Context.
func (c *Context) Destroy() {
	c.destroyed = true
	c.buf = nil
	c.cands = nil
}

func (c *Context) fire(kind im.CallbackKind) {
	if cb := c.m.callback(kind); cb != nil {
		cb(c, kind)
	}
}

func (c *Context) process(sym keysym.Symbol) {
	if c.shown && c.filterCandidates(sym) {
		return
	}
	c.feed(sym)
}

func (c *Context) feed(sym keysym.Symbol) {
	if len(c.buf) > 0 {
		switch sym {
		case "BackSpace":
			c.buf = c.buf[:len(c.buf)-1]
			c.setPreedit(rawText(c.buf))
			return
		case "Escape":
			c.buf = nil
			c.setPreedit("")
			return
		}
	}

	next := append(slices.Clone(c.buf), sym)
	rule, more := c.m.match(next)
	switch {
	case more:
		c.buf = next
		c.setPreedit(rawText(next))
		return
	case rule != nil:
		c.buf = nil
		c.apply(rule)
		return
	}

	if len(c.buf) > 0 {
		c.flush()
		c.process(sym)
		return
	}

	if isPrintable(sym) {
		c.produced.WriteString(string(sym))
		return
	}
	c.unhandled = true
}

// flush fires the rule for the longest matching prefix of the buffer and
// feeds the remaining symbols again. Without any match the first symbol is
// committed as typed.
func (c *Context) flush() {
	buf := c.buf
	c.buf = nil
	for n := len(buf); n > 0; n-- {
		if rule, _ := c.m.match(buf[:n]); rule != nil {
			c.apply(rule)
			c.refeed(buf[n:])
			return
		}
	}
	c.setPreedit("")
	c.produced.WriteString(rawText(buf[:1]))
	c.refeed(buf[1:])
}

func (c *Context) refeed(syms []keysym.Symbol) {
	for _, s := range syms {
		c.process(s)
	}
	if len(c.buf) == 0 && !c.shown {
		c.setPreedit("")
	}
}

func (c *Context) apply(rule *Rule) {
	switch {
	case rule.Commit != "":
		c.setPreedit("")
		c.produced.WriteString(rule.Commit)
	case len(rule.Candidates) > 0:
		c.openCandidates(rule.Candidates)
	case rule.Surrounding != nil:
		c.setPreedit("")
		c.applySurrounding(rule.Surrounding)
	}
}

func (c *Context) applySurrounding(sr *SurroundingRule) {
	c.surroundLen, c.surroundText, c.surroundSet = sr.Length, "", false
	c.fire(im.GetSurroundingText)
	text, ok := c.surroundText, c.surroundSet
	c.surroundLen, c.surroundText, c.surroundSet = 0, "", false

	if ok {
		if rep, found := sr.Replace[text]; found {
			c.surroundLen = sr.Length
			c.fire(im.DeleteSurroundingText)
			c.surroundLen = 0
			c.produced.WriteString(rep)
			return
		}
	}
	c.produced.WriteString(sr.Otherwise)
}

func (c *Context) openCandidates(groups []CandidateGroup) {
	list := make(candidate.List, 0, len(groups))
	for _, g := range groups {
		list = append(list, g.Group())
	}

	c.fire(im.CandidatesStart)
	c.cands, c.index, c.shown = list, 0, true
	c.fire(im.CandidatesDraw)
	c.setPreedit(c.current())
}

func (c *Context) closeCandidates() {
	c.cands, c.index = nil, 0
	if c.shown {
		c.shown = false
		c.fire(im.CandidatesDone)
	}
}

// current returns the selected candidate.
func (c *Context) current() string {
	page, err := candidate.Locate(c.cands, c.index)
	if err != nil {
		return ""
	}
	return page.Group.Candidates()[page.Cursor]
}

// filterCandidates handles sym while the candidate list is shown and
// reports whether it was consumed. Unrelated symbols commit the current
// candidate and are then processed normally.
func (c *Context) filterCandidates(sym keysym.Symbol) bool {
	switch sym {
	case im.SymUp, im.SymLeft:
		c.move(-1)
		return true
	case im.SymDown, im.SymRight:
		c.move(1)
		return true
	case " ", "Return":
		c.commitCandidate()
		return true
	case "Escape", "BackSpace":
		c.closeCandidates()
		c.setPreedit("")
		return true
	}

	if len(sym) == 1 && sym[0] >= '1' && sym[0] <= '9' {
		page, err := candidate.Locate(c.cands, c.index)
		if err == nil {
			if n := int(sym[0] - '0'); n <= page.Group.Len() {
				c.index = page.Start + n - 1
				c.commitCandidate()
			}
		}
		return true
	}

	c.commitCandidate()
	return false
}

func (c *Context) move(delta int) {
	next := c.index + delta
	if next < 0 || next >= c.cands.Len() {
		return
	}
	c.index = next
	c.fire(im.CandidatesDraw)
	c.setPreedit(c.current())
}

func (c *Context) commitCandidate() {
	text := c.current()
	c.closeCandidates()
	c.setPreedit("")
	c.produced.WriteString(text)
}

// commitPreedit commits whatever is pending, as on focus loss.
func (c *Context) commitPreedit() {
	if c.shown {
		c.commitCandidate()
	}
	for len(c.buf) > 0 {
		c.flush()
	}
	if c.shown {
		c.commitCandidate()
	}
}

func (c *Context) setPreedit(text string) {
	was := c.preedit
	c.preedit = text
	c.cursor = utf8.RuneCountInString(text)
	switch {
	case text == "" && was == "":
	case text == "":
		c.fire(im.PreeditDone)
	case was == "":
		c.fire(im.PreeditStart)
		c.fire(im.PreeditDraw)
	default:
		c.fire(im.PreeditDraw)
	}
}

func isPrintable(sym keysym.Symbol) bool {
	return len(sym) == 1 && keysym.IsPrintable(uint32(sym[0]))
}

// rawText renders buffered symbols as typed. Named keys have no text.
func rawText(buf []keysym.Symbol) string {
	var b strings.Builder
	for _, s := range buf {
		if isPrintable(s) {
			b.WriteString(string(s))
		}
	}
	return b.String()
}
