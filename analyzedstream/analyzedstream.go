// Package analyzedstream wraps a mdstream.Stream with a pluggable analyzer
// that inspects each block as it becomes pending or committed, without the
// Stream itself knowing anything about the analyzer's domain (tool-call
// JSON, in the one analyzer shipped here).
package analyzedstream

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	mdstream "github.com/Latias94/mdstream"
)

// Analyzer inspects a single block and optionally reports metadata about
// it. The second return value reports whether the analyzer had anything to
// say about this block at all (e.g. ToolCallJsonAnalyzer only fires on
// BlockCustomBoundary blocks matching its configured tag).
type Analyzer interface {
	Analyze(b mdstream.Block) (meta any, ok bool)
	Reset()
}

// MetaResult pairs a block id with whatever its analyzer produced.
type MetaResult struct {
	Id   mdstream.BlockId
	Meta any
}

// Update mirrors mdstream.Update but carries analyzer metadata alongside
// the committed and pending blocks it was computed from.
type Update struct {
	mdstream.Update
	CommittedMeta []MetaResult
	PendingMeta   *MetaResult
}

// AnalyzedStream drives a mdstream.Stream and runs an Analyzer over every
// block the Stream reports.
type AnalyzedStream struct {
	inner    *mdstream.Stream
	analyzer Analyzer
}

// New builds an AnalyzedStream. Any boundary plugins the analyzer depends on
// (e.g. a tag plugin for the tag the analyzer looks for) must be supplied
// via opts/extra, since mdstream.Options is immutable once a Stream exists.
func New(opts mdstream.Options, analyzer Analyzer, extra ...mdstream.Option) *AnalyzedStream {
	return &AnalyzedStream{inner: mdstream.New(opts, extra...), analyzer: analyzer}
}

// Inner returns the underlying Stream, for callers that need direct access
// (e.g. to call Finalize without going through the analyzer wrapper).
func (s *AnalyzedStream) Inner() *mdstream.Stream { return s.inner }

func (s *AnalyzedStream) Append(chunk string) Update { return s.wrap(s.inner.Append(chunk)) }

func (s *AnalyzedStream) Finalize() Update { return s.wrap(s.inner.Finalize()) }

func (s *AnalyzedStream) Reset() Update {
	u := s.inner.Reset()
	s.analyzer.Reset()
	return s.wrap(u)
}

func (s *AnalyzedStream) wrap(u mdstream.Update) Update {
	out := Update{Update: u}
	for _, b := range u.Committed {
		if meta, ok := s.analyzer.Analyze(b); ok {
			out.CommittedMeta = append(out.CommittedMeta, MetaResult{Id: b.Id, Meta: meta})
		}
	}
	if u.Pending != nil {
		if meta, ok := s.analyzer.Analyze(*u.Pending); ok {
			out.PendingMeta = &MetaResult{Id: u.Pending.Id, Meta: meta}
		}
	}
	return out
}

// ToolCallMeta is what ToolCallJsonAnalyzer reports for a matching block.
type ToolCallMeta struct {
	// RequestID identifies this tool call across its pending and committed
	// sightings. It is stable for the life of the block (same value on the
	// pending preview and the final committed report) but independent of
	// BlockId: it is a random UUID minted the first time the block is
	// analyzed. Reset forgets every request id issued so far.
	RequestID string
	Closed    bool
	Truncated bool
	Candidate *string
	Repaired  *string
	Value     any
}

// ToolCallJsonAnalyzer extracts a JSON payload wrapped in a custom tag, e.g.
//
//	<tool_call>
//	{"name":"x","args":{"a":1}}
//	</tool_call>
//
// pairing with a PairedTagPlugin registered under the same Tag so the
// Stream hands it whole BlockCustomBoundary blocks to inspect.
type ToolCallJsonAnalyzer struct {
	// Tag is the boundary tag this analyzer looks for. Defaults to
	// "tool_call".
	Tag string
	// MaxBytes caps the candidate payload size; bodies over the limit are
	// reported Truncated instead of returned, so a runaway tool call can't
	// pin an unbounded string in memory. Defaults to 8 KiB.
	MaxBytes int

	requestIDs map[mdstream.BlockId]string
}

// requestID returns the stable id for a block, minting one with
// uuid.NewString() the first time this block id is seen and reusing it on
// every subsequent sighting (pending previews re-analyze the same block
// repeatedly as it grows).
func (a *ToolCallJsonAnalyzer) requestID(id mdstream.BlockId) string {
	if a.requestIDs == nil {
		a.requestIDs = make(map[mdstream.BlockId]string)
	}
	if rid, ok := a.requestIDs[id]; ok {
		return rid
	}
	rid := uuid.NewString()
	a.requestIDs[id] = rid
	return rid
}

func (a *ToolCallJsonAnalyzer) tag() string {
	if a.Tag == "" {
		return "tool_call"
	}
	return a.Tag
}

func (a *ToolCallJsonAnalyzer) maxBytes() int {
	if a.MaxBytes <= 0 {
		return 8 * 1024
	}
	return a.MaxBytes
}

func (a *ToolCallJsonAnalyzer) Analyze(b mdstream.Block) (any, bool) {
	if b.Kind != mdstream.BlockCustomBoundary {
		return nil, false
	}
	tag := a.tag()
	openPrefix := "<" + tag
	idx := strings.Index(b.Raw, openPrefix)
	if idx < 0 {
		return nil, false
	}
	rest := b.Raw[idx:]
	gt := strings.IndexByte(rest, '>')
	if gt < 0 {
		return nil, false
	}
	bodyStart := idx + gt + 1
	if bodyStart < len(b.Raw) && b.Raw[bodyStart] == '\r' {
		bodyStart++
	}
	if bodyStart < len(b.Raw) && b.Raw[bodyStart] == '\n' {
		bodyStart++
	}

	closeTag := "</" + tag
	body := b.Raw[bodyStart:]
	closed := false
	if ci := strings.Index(body, closeTag); ci >= 0 {
		body = body[:ci]
		closed = true
	}
	body = strings.TrimSpace(body)

	meta := ToolCallMeta{RequestID: a.requestID(b.Id), Closed: closed}
	if len(body) > a.maxBytes() {
		meta.Truncated = true
		return meta, true
	}
	if body == "" {
		return meta, true
	}
	candidate := body
	meta.Candidate = &candidate

	// No JSON-repair library is present anywhere in the pack, so no
	// repair pass is wired and Repaired is never set; Value is filled only
	// when a closed candidate already parses as JSON on its own.
	if closed {
		var v any
		if err := json.Unmarshal([]byte(candidate), &v); err == nil {
			meta.Value = v
		}
	}
	return meta, true
}

func (a *ToolCallJsonAnalyzer) Reset() { a.requestIDs = nil }
