package mdstream

import (
	"bytes"
	"strings"
)

type streamState int

const (
	stateReady streamState = iota
	stateParagraph
	stateMaybeTable
	stateTable
	stateFencedCode
	stateList
	stateBlockQuote
	stateHtmlBlock
	stateMathBlock
	stateFootnoteDef
	stateCustom
)

// Stream is the single-owner, chunk-incremental Markdown block splitter
// (spec §4). All mutation happens through Append/Finalize/Reset; the type
// carries no unsynchronized shared state, so a *Stream can be handed across
// goroutines as long as the caller serializes writes (spec §5).
type Stream struct {
	opts Options

	nextID     BlockId
	currentID  BlockId
	hasCurrent bool

	lineBuf bytes.Buffer

	state        streamState
	resumeState  streamState
	kind         BlockKind
	pendingLines []string

	fenceChar   byte
	fenceLen    int
	fenceIndent int

	listIndent           int
	lastListMarkerIndent int
	listHasMarker        bool

	activePlugin int // index into opts.BoundaryPlugins, or -1

	committed []Block
}

// New builds a Stream from Options, applying any additional Option funcs on
// top.
func New(opts Options, extra ...Option) *Stream {
	ApplyOptions(&opts, extra...)
	return &Stream{opts: opts, activePlugin: -1}
}

func (s *Stream) ensureCurrentID() BlockId {
	if !s.hasCurrent {
		s.currentID = s.nextID
		s.nextID++
		s.hasCurrent = true
	}
	return s.currentID
}

// Append feeds the next chunk of input into the stream and returns the
// blocks that became final as a result, plus the current pending block (if
// any). Append never returns an error: malformed or merely incomplete
// input is represented as a pending block, never rejected (spec §7).
func (s *Stream) Append(chunk string) Update {
	s.committed = s.committed[:0]

	s.lineBuf.WriteString(chunk)
	for {
		line, err := s.lineBuf.ReadString('\n')
		if err != nil {
			s.lineBuf.WriteString(line)
			break
		}
		s.processLine(line)
	}

	return s.buildUpdate(false)
}

// Finalize treats any currently pending block (including a trailing
// partial line with no terminator yet) as complete and returns it in
// Committed. After Finalize the stream is back in its initial state and
// may be reused.
func (s *Stream) Finalize() Update {
	s.committed = s.committed[:0]

	if s.lineBuf.Len() > 0 {
		remaining := s.lineBuf.String()
		s.lineBuf.Reset()
		s.feedLine(remaining)
	}

	switch s.state {
	case stateReady:
		// nothing open
	default:
		s.commitCurrent()
	}

	s.state = stateReady
	s.resetBlockState()

	u := s.buildUpdate(false)
	return u
}

// Reset discards all in-progress state (including boundary-plugin state)
// and reports the reset via Update.Reset so adapters know to drop any
// caches rather than apply the (empty) committed/pending fields
// incrementally.
func (s *Stream) Reset() Update {
	s.lineBuf.Reset()
	s.state = stateReady
	s.resumeState = stateReady
	s.resetBlockState()
	s.committed = nil
	for _, p := range s.opts.BoundaryPlugins {
		p.Reset()
	}
	for _, t := range s.opts.PendingTransforms {
		t.Reset()
	}
	u := emptyUpdate()
	u.Reset = true
	return u
}

func (s *Stream) resetBlockState() {
	s.pendingLines = nil
	s.hasCurrent = false
	s.kind = BlockUnknown
	s.fenceChar, s.fenceLen, s.fenceIndent = 0, 0, 0
	s.listIndent, s.lastListMarkerIndent, s.listHasMarker = 0, 0, false
	s.activePlugin = -1
}

// feedLine processes one logical line that may or may not end in '\n' (used
// by Finalize for a dangling partial line).
func (s *Stream) feedLine(line string) {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	s.processLine(line)
}

func lineContent(line string) string {
	c := strings.TrimSuffix(line, "\n")
	c = strings.TrimSuffix(c, "\r")
	return c
}

func (s *Stream) processLine(line string) {
	content := lineContent(line)
	switch s.state {
	case stateReady:
		s.handleReady(content, line)
	case stateParagraph:
		s.handleParagraphLike(content, line, BlockParagraph)
	case stateFootnoteDef:
		s.handleParagraphLike(content, line, BlockFootnoteDefinition)
	case stateMaybeTable:
		s.handleMaybeTable(content, line)
	case stateTable:
		s.handleTable(content, line)
	case stateFencedCode:
		s.handleFencedCode(content, line)
	case stateList:
		s.handleList(content, line)
	case stateBlockQuote:
		s.handleBlockQuote(content, line)
	case stateHtmlBlock:
		s.handleHtmlBlock(content, line)
	case stateMathBlock:
		s.handleMathBlock(content, line)
	case stateCustom:
		s.handleCustom(content, line)
	}
}

func (s *Stream) commitCurrent() {
	if len(s.pendingLines) == 0 {
		s.state = stateReady
		return
	}
	b := Block{
		Id:     s.ensureCurrentID(),
		Status: StatusCommitted,
		Kind:   s.kind,
		Raw:    strings.Join(s.pendingLines, ""),
	}
	s.committed = append(s.committed, b)
	s.pendingLines = nil
	s.hasCurrent = false
	s.kind = BlockUnknown
	s.state = stateReady
}

func (s *Stream) handleReady(content, rawLine string) {
	if isBlankLine(content) {
		return
	}

	for i, p := range s.opts.BoundaryPlugins {
		if p.MatchesStart(content) {
			s.ensureCurrentID()
			s.kind = BlockCustomBoundary
			s.pendingLines = append(s.pendingLines, rawLine)
			p.Start(content)
			s.activePlugin = i
			if p.Update(content) == BoundaryClose {
				s.activePlugin = -1
				s.commitCurrent()
			} else {
				s.state = stateCustom
			}
			return
		}
	}

	trimmed := strings.TrimLeft(content, " \t")
	kind := blockKindFor(trimmed)

	switch kind {
	case BlockCodeFence:
		s.ensureCurrentID()
		s.kind = BlockCodeFence
		s.fenceChar, s.fenceLen, s.fenceIndent = parseFenceOpen(content)
		s.pendingLines = append(s.pendingLines, rawLine)
		s.state = stateFencedCode

	case BlockMathBlock:
		s.ensureCurrentID()
		s.kind = BlockMathBlock
		s.pendingLines = append(s.pendingLines, rawLine)
		s.state = stateMathBlock

	case BlockHeading, BlockThematicBreak:
		s.ensureCurrentID()
		s.kind = kind
		s.pendingLines = append(s.pendingLines, rawLine)
		s.commitCurrent()

	case BlockList:
		s.ensureCurrentID()
		s.kind = BlockList
		s.state = stateList
		s.listIndent = countLeadingSpaces(content)
		s.lastListMarkerIndent = s.listIndent
		s.listHasMarker = true
		s.pendingLines = append(s.pendingLines, rawLine)

	case BlockBlockQuote:
		s.ensureCurrentID()
		s.kind = BlockBlockQuote
		s.pendingLines = append(s.pendingLines, rawLine)
		s.state = stateBlockQuote

	case BlockHtmlBlock:
		s.ensureCurrentID()
		s.kind = BlockHtmlBlock
		s.pendingLines = append(s.pendingLines, rawLine)
		s.state = stateHtmlBlock

	case BlockFootnoteDefinition:
		s.ensureCurrentID()
		s.kind = BlockFootnoteDefinition
		s.pendingLines = append(s.pendingLines, rawLine)
		s.state = stateFootnoteDef

	case BlockParagraph:
		s.ensureCurrentID()
		s.pendingLines = append(s.pendingLines, rawLine)
		if isTableHeaderCandidate(trimmed) {
			s.kind = BlockParagraph
			s.state = stateMaybeTable
		} else {
			s.kind = BlockParagraph
			s.state = stateParagraph
		}

	default:
		s.ensureCurrentID()
		s.kind = BlockParagraph
		s.pendingLines = append(s.pendingLines, rawLine)
		s.state = stateParagraph
	}
}

func (s *Stream) handleMaybeTable(content, rawLine string) {
	trimmed := strings.TrimSpace(content)
	if isTableSeparatorLine(trimmed) {
		s.pendingLines = append(s.pendingLines, rawLine)
		s.kind = BlockTable
		s.state = stateTable
		return
	}
	// Not a table after all: the buffered header line was just a paragraph.
	s.kind = BlockParagraph
	s.state = stateParagraph
	s.handleParagraphLike(content, rawLine, BlockParagraph)
}

func (s *Stream) handleTable(content, rawLine string) {
	if strings.Contains(content, "|") {
		s.pendingLines = append(s.pendingLines, rawLine)
		return
	}
	s.commitCurrent()
	s.handleReady(content, rawLine)
}

func (s *Stream) handleFencedCode(content, rawLine string) {
	s.pendingLines = append(s.pendingLines, rawLine)
	if isClosingFenceLine(content, s.fenceChar, s.fenceLen, s.fenceIndent) {
		s.commitCurrent()
	}
}

func (s *Stream) handleMathBlock(content, rawLine string) {
	s.pendingLines = append(s.pendingLines, rawLine)
	if isMathFenceLine(strings.TrimSpace(content)) {
		s.commitCurrent()
	}
}

func (s *Stream) handleHtmlBlock(content, rawLine string) {
	s.pendingLines = append(s.pendingLines, rawLine)
	if isBlankLine(content) {
		s.commitCurrent()
	}
}

func (s *Stream) handleCustom(content, rawLine string) {
	s.pendingLines = append(s.pendingLines, rawLine)
	if s.activePlugin < 0 {
		return
	}
	p := s.opts.BoundaryPlugins[s.activePlugin]
	if p.Update(content) == BoundaryClose {
		s.activePlugin = -1
		s.commitCurrent()
	}
}

func (s *Stream) handleParagraphLike(content, rawLine string, kind BlockKind) {
	if isBlankLine(content) {
		s.pendingLines = append(s.pendingLines, rawLine)
		s.commitCurrent()
		return
	}

	if kind == BlockParagraph && isSetextUnderlineLine(content) && len(s.pendingLines) > 0 {
		s.kind = BlockHeading
		s.pendingLines = append(s.pendingLines, rawLine)
		s.commitCurrent()
		return
	}

	trimmed := strings.TrimLeft(content, " \t")
	next := blockKindFor(trimmed)
	if next != BlockParagraph || isTableHeaderCandidate(trimmed) {
		switch next {
		case BlockCodeFence, BlockMathBlock, BlockHeading, BlockThematicBreak, BlockList, BlockBlockQuote, BlockHtmlBlock, BlockFootnoteDefinition:
			s.commitCurrent()
			s.handleReady(content, rawLine)
			return
		case BlockParagraph:
			if isTableHeaderCandidate(trimmed) && kind != BlockFootnoteDefinition {
				s.commitCurrent()
				s.handleReady(content, rawLine)
				return
			}
		}
	}

	s.pendingLines = append(s.pendingLines, rawLine)
}

func (s *Stream) handleList(content, rawLine string) {
	if isBlankLine(content) {
		s.pendingLines = append(s.pendingLines, rawLine)
		return
	}

	indent := countLeadingSpaces(content)
	trimmed := strings.TrimLeft(content, " \t")

	if isListMarker(trimmed) {
		s.pendingLines = append(s.pendingLines, rawLine)
		if indent < s.listIndent {
			s.listIndent = indent
		}
		s.lastListMarkerIndent = indent
		s.listHasMarker = true
		return
	}

	kind := blockKindFor(trimmed)
	if indent > s.listIndent {
		switch kind {
		case BlockCodeFence:
			s.state = stateFencedCode
			s.resumeState = stateList
			s.fenceChar, s.fenceLen, s.fenceIndent = parseFenceOpen(content)
			s.pendingLines = append(s.pendingLines, rawLine)
			return
		case BlockBlockQuote:
			s.state = stateBlockQuote
			s.resumeState = stateList
			s.pendingLines = append(s.pendingLines, rawLine)
			return
		}
		s.pendingLines = append(s.pendingLines, rawLine)
		return
	}

	if kind != BlockParagraph && kind != BlockUnknown {
		s.commitCurrent()
		s.handleReady(content, rawLine)
		return
	}

	s.commitCurrent()
	s.handleReady(content, rawLine)
}

func (s *Stream) handleBlockQuote(content, rawLine string) {
	if isBlankLine(content) {
		s.pendingLines = append(s.pendingLines, rawLine)
		return
	}
	trimmed := strings.TrimLeft(content, " \t")
	if strings.HasPrefix(trimmed, ">") {
		s.pendingLines = append(s.pendingLines, rawLine)
		return
	}
	if s.resumeState == stateList {
		s.state = stateList
		s.resumeState = stateReady
		s.handleList(content, rawLine)
		return
	}
	s.commitCurrent()
	s.handleReady(content, rawLine)
}

// currentRaw returns the raw text of whatever block is currently open,
// including any not-yet-newline-terminated tail sitting in lineBuf.
func (s *Stream) currentRaw() string {
	if len(s.pendingLines) == 0 && s.lineBuf.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for _, l := range s.pendingLines {
		b.WriteString(l)
	}
	b.WriteString(s.lineBuf.String())
	return b.String()
}

func (s *Stream) buildUpdate(reset bool) Update {
	u := Update{Committed: append([]Block(nil), s.committed...), Reset: reset}

	raw := s.currentRaw()
	if raw == "" {
		return u
	}

	kind := s.kind
	if s.state == stateReady {
		// Tentative preview of an about-to-open block from a dangling
		// partial line with no terminator yet.
		kind = blockKindFor(strings.TrimLeft(lineContent(raw), " \t"))
		if isBlankLine(lineContent(raw)) {
			return u
		}
		s.ensureCurrentID()
	}

	display := TerminateMarkdown(raw, s.opts.Terminator)
	for _, t := range s.opts.PendingTransforms {
		if out, ok := t.Transform(PendingTransformInput{Kind: kind, Raw: raw, Display: display}); ok {
			display = out
		}
	}

	pending := Block{
		Id:      s.ensureCurrentID(),
		Status:  StatusPending,
		Kind:    kind,
		Raw:     raw,
		Display: display,
		hasDisp: true,
	}
	u.Pending = &pending
	return u
}
