// Package mdadapter turns committed and pending mdstream blocks into
// goldmark AST nodes, so a downstream renderer (glamour, a custom
// goldmark.Renderer, or anything else built against goldmark/ast) never has
// to know that its input arrived incrementally.
package mdadapter

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"

	mdstream "github.com/Latias94/mdstream"
)

// Adapter caches a parsed goldmark document per committed BlockId and
// re-parses the single pending block on every call, so callers only ever
// pay parse cost once per block that becomes final.
type Adapter struct {
	md   goldmark.Markdown
	pctx parser.Context

	committedRaw   map[mdstream.BlockId]string
	committedDoc   map[mdstream.BlockId]ast.Node
	committedOrder []mdstream.BlockId
}

// New builds an Adapter configured the way the rest of the pack parses
// GFM-flavored Markdown (tables, strikethrough, autolinks, task lists) with
// heading IDs enabled, grounded on charmbracelet-glow's ansi.renderer_test.go
// goldmark.New wiring.
func New() *Adapter {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	return &Adapter{
		md:           md,
		pctx:         parser.NewContext(),
		committedRaw: make(map[mdstream.BlockId]string),
		committedDoc: make(map[mdstream.BlockId]ast.Node),
	}
}

// ApplyUpdate folds a Stream Update into the adapter's cache: every newly
// committed block is parsed once and kept; a Reset update drops everything
// parsed so far, including accumulated link reference definitions. Blocks
// named in Update.Invalidated (e.g. a late-arriving link-reference
// definition changed how an earlier paragraph resolves) are re-parsed
// against the current accumulated reference context rather than left
// stale. mdstream.Stream never fills Invalidated itself, so this only
// happens for ids a caller adds to the Update before passing it in.
func (a *Adapter) ApplyUpdate(u mdstream.Update) {
	if u.Reset {
		a.reset()
	}
	for _, b := range u.Committed {
		a.parseCommitted(b.Id, b.Raw)
	}
	for _, id := range u.Invalidated {
		if raw, ok := a.committedRaw[id]; ok {
			a.parseCommitted(id, raw)
		}
	}
}

// parseCommitted (re-)parses raw against the shared reference-definition
// context and records the result under id, appending to committedOrder only
// the first time id is seen so a later Invalidated re-parse doesn't
// duplicate it there.
func (a *Adapter) parseCommitted(id mdstream.BlockId, raw string) {
	src := []byte(raw)
	doc := a.md.Parser().Parse(text.NewReader(src), parser.WithContext(a.pctx))
	if _, seen := a.committedDoc[id]; !seen {
		a.committedOrder = append(a.committedOrder, id)
	}
	a.committedRaw[id] = raw
	a.committedDoc[id] = doc
}

func (a *Adapter) reset() {
	a.pctx = parser.NewContext()
	a.committedRaw = make(map[mdstream.BlockId]string)
	a.committedDoc = make(map[mdstream.BlockId]ast.Node)
	a.committedOrder = nil
}

// CommittedNode returns the cached AST for a committed block id, and the
// exact source bytes it was parsed from (goldmark nodes carry byte-range
// segments into their source, not copied text).
func (a *Adapter) CommittedNode(id mdstream.BlockId) (doc ast.Node, source []byte, ok bool) {
	doc, ok = a.committedDoc[id]
	if !ok {
		return nil, nil, false
	}
	return doc, []byte(a.committedRaw[id]), true
}

// CommittedIDs returns the ids of every committed block seen since
// construction or the last Reset, in commit order.
func (a *Adapter) CommittedIDs() []mdstream.BlockId {
	return append([]mdstream.BlockId(nil), a.committedOrder...)
}

// ParsePending parses a Stream's pending block (the currently-open, not-yet
// final one) against an isolated parser.Context so a speculative re-parse on
// every keystroke never pollutes the reference-definition table that
// committed blocks resolve against. It parses Display (the
// terminator-balanced preview) when present, falling back to Raw.
func (a *Adapter) ParsePending(b mdstream.Block) (doc ast.Node, source []byte) {
	src := b.DisplayOrRaw()
	source = []byte(src)
	doc = a.md.Parser().Parse(text.NewReader(source), parser.WithContext(parser.NewContext()))
	return doc, source
}

// Render runs the adapter's configured renderer (goldmark's default HTML
// renderer unless SetRenderer was used) over a node parsed from source.
func (a *Adapter) Render(doc ast.Node, source []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := a.md.Renderer().Render(&buf, source, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SetRenderer swaps in a custom goldmark.Renderer (e.g. an ANSI renderer
// built the way charmbracelet-glow's ansi.ANSIRenderer registers node
// funcs), so Render produces terminal output instead of HTML.
func (a *Adapter) SetRenderer(r renderer.Renderer) {
	a.md.SetRenderer(r)
}
