package mdstream

import "strings"

func stripUpToThreeLeadingSpaces(line string) string {
	s := line
	for spaces := 0; spaces < 3 && strings.HasPrefix(s, " "); spaces++ {
		s = s[1:]
	}
	return s
}

// FenceDirectivePlugin recognizes fence-delimited directives such as
//
//	:::warning
//	content...
//	:::
//
// A block opens when a line begins (after up to three leading spaces) with
// FenceChar repeated at least MinLen times, and closes on a line whose fence
// run is at least as long as the opening one — standalone on its line
// unless RequireStandaloneEnd is false.
type FenceDirectivePlugin struct {
	FenceChar             rune
	MinLen                int
	RequireStandaloneEnd  bool
	openedLen             int
	hasOpenedLen          bool
	justStarted           bool
}

// NewFenceDirectivePlugin builds a plugin for a custom fence character and
// minimum run length.
func NewFenceDirectivePlugin(fenceChar rune, minLen int) *FenceDirectivePlugin {
	return &FenceDirectivePlugin{FenceChar: fenceChar, MinLen: minLen, RequireStandaloneEnd: true}
}

// TripleColonFence builds the `:::`-delimited directive plugin.
func TripleColonFence() *FenceDirectivePlugin {
	return NewFenceDirectivePlugin(':', 3)
}

func (p *FenceDirectivePlugin) fenceLenAtStart(line string) int {
	s := stripUpToThreeLeadingSpaces(line)
	ch := byte(p.FenceChar)
	n := 0
	for n < len(s) && s[n] == ch {
		n++
	}
	return n
}

func (p *FenceDirectivePlugin) isEndLine(line string, openedLen int) bool {
	s := stripUpToThreeLeadingSpaces(line)
	s = strings.TrimRight(s, " \t")
	ch := byte(p.FenceChar)
	n := 0
	for n < len(s) && s[n] == ch {
		n++
	}
	if n < openedLen {
		return false
	}
	if !p.RequireStandaloneEnd {
		return true
	}
	return strings.TrimSpace(s[n:]) == ""
}

func (p *FenceDirectivePlugin) MatchesStart(line string) bool {
	return p.fenceLenAtStart(line) >= p.MinLen
}

func (p *FenceDirectivePlugin) Start(line string) {
	n := p.fenceLenAtStart(line)
	if n >= p.MinLen {
		p.openedLen, p.hasOpenedLen, p.justStarted = n, true, true
	} else {
		p.hasOpenedLen, p.justStarted = false, false
	}
}

func (p *FenceDirectivePlugin) Update(line string) BoundaryUpdate {
	if !p.hasOpenedLen {
		return BoundaryContinue
	}
	if p.justStarted {
		p.justStarted = false
		return BoundaryContinue
	}
	if p.isEndLine(line, p.openedLen) {
		p.hasOpenedLen = false
		return BoundaryClose
	}
	return BoundaryContinue
}

func (p *FenceDirectivePlugin) Reset() {
	p.hasOpenedLen = false
	p.justStarted = false
}

// PairedTagPlugin recognizes an HTML-like paired tag, e.g.
//
//	<thinking>
//	...
//	</thinking>
//
// conservatively: the opening tag must be complete on its own line (after
// up to three leading spaces), and the closing tag must be standalone on
// its line unless RequireStandaloneEnd is false.
type PairedTagPlugin struct {
	Tag                  string
	CaseInsensitive      bool
	AllowAttributes      bool
	RequireStandaloneEnd bool
	active               bool
}

// NewPairedTagPlugin builds a plugin for the given tag name.
func NewPairedTagPlugin(tag string) *PairedTagPlugin {
	return &PairedTagPlugin{Tag: tag, CaseInsensitive: true, AllowAttributes: true, RequireStandaloneEnd: true}
}

// ThinkingTag builds the `<thinking>...</thinking>` plugin used by spec §8
// scenario 8.
func ThinkingTag() *PairedTagPlugin {
	return NewPairedTagPlugin("thinking")
}

func isTagNameChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '-' || b == '_' || b == ':'
}

func (p *PairedTagPlugin) normTag(tag string) string {
	if p.CaseInsensitive {
		return strings.ToLower(tag)
	}
	return tag
}

func (p *PairedTagPlugin) matchesOpening(line string) bool {
	s := strings.TrimRight(stripUpToThreeLeadingSpaces(line), " \t\r")
	if !strings.HasPrefix(s, "<") {
		return false
	}
	gt := strings.IndexByte(s, '>')
	if gt < 0 {
		return false
	}
	inside := s[1:gt]
	if strings.HasPrefix(inside, "/") || strings.HasPrefix(inside, "!") || strings.HasPrefix(inside, "?") {
		return false
	}
	if len(inside) == 0 || !isAsciiAlpha(inside[0]) {
		return false
	}
	nameEnd := 1
	for nameEnd < len(inside) && isTagNameChar(inside[nameEnd]) {
		nameEnd++
	}
	name := p.normTag(inside[:nameEnd])
	if name != p.normTag(p.Tag) {
		return false
	}
	rest := strings.TrimSpace(inside[nameEnd:])
	if rest == "" {
		return true
	}
	return p.AllowAttributes
}

func (p *PairedTagPlugin) matchesClosing(line string) bool {
	s := strings.TrimRight(stripUpToThreeLeadingSpaces(line), " \t\r")
	if !strings.HasPrefix(s, "</") {
		return false
	}
	after := s[2:]
	if len(after) == 0 || !isAsciiAlpha(after[0]) {
		return false
	}
	nameEnd := 1
	for nameEnd < len(after) && isTagNameChar(after[nameEnd]) {
		nameEnd++
	}
	name := p.normTag(after[:nameEnd])
	if name != p.normTag(p.Tag) {
		return false
	}
	rest := strings.TrimSpace(after[nameEnd:])
	if p.RequireStandaloneEnd {
		return rest == ">"
	}
	return strings.Contains(rest, ">")
}

func isAsciiAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func (p *PairedTagPlugin) MatchesStart(line string) bool { return p.matchesOpening(line) }

func (p *PairedTagPlugin) Start(string) { p.active = true }

func (p *PairedTagPlugin) Update(line string) BoundaryUpdate {
	if !p.active {
		return BoundaryContinue
	}
	if p.matchesClosing(line) {
		p.active = false
		return BoundaryClose
	}
	return BoundaryContinue
}

func (p *PairedTagPlugin) Reset() { p.active = false }
