package mdstream

// BlockId uniquely identifies a Block for the lifetime of a Stream. Ids are
// assigned in increasing order as blocks are opened and never reused, so a
// downstream consumer can use a BlockId as a stable cache key across
// Updates (see Update.Invalidated).
type BlockId uint64

// BlockStatus reports whether a Block has been closed (Committed) or is
// still accumulating bytes (Pending).
type BlockStatus int

const (
	// StatusPending marks a block whose boundary has not yet been
	// determined; more input may extend or reclassify it.
	StatusPending BlockStatus = iota
	// StatusCommitted marks a block whose boundary is final. A committed
	// block's Raw never changes again.
	StatusCommitted
)

func (s BlockStatus) String() string {
	switch s {
	case StatusCommitted:
		return "committed"
	case StatusPending:
		return "pending"
	default:
		return "unknown"
	}
}

// BlockKind classifies the Markdown construct a Block represents. The
// splitter only classifies boundaries; it does not model inline structure
// beyond what the pending terminator needs.
type BlockKind int

const (
	BlockUnknown BlockKind = iota
	BlockParagraph
	BlockHeading
	BlockThematicBreak
	BlockCodeFence
	BlockList
	BlockBlockQuote
	BlockTable
	BlockHtmlBlock
	BlockMathBlock
	BlockFootnoteDefinition
	// BlockCustomBoundary marks a block whose span was opened and closed by
	// a BoundaryPlugin rather than the built-in classifier.
	BlockCustomBoundary
)

func (k BlockKind) String() string {
	switch k {
	case BlockParagraph:
		return "paragraph"
	case BlockHeading:
		return "heading"
	case BlockThematicBreak:
		return "thematic_break"
	case BlockCodeFence:
		return "code_fence"
	case BlockList:
		return "list"
	case BlockBlockQuote:
		return "block_quote"
	case BlockTable:
		return "table"
	case BlockHtmlBlock:
		return "html_block"
	case BlockMathBlock:
		return "math_block"
	case BlockFootnoteDefinition:
		return "footnote_definition"
	case BlockCustomBoundary:
		return "custom_boundary"
	default:
		return "unknown"
	}
}

// Block is one committed or pending unit of the split Markdown stream.
//
// Raw is exactly the bytes seen for this block, byte-for-byte; Display is
// only set on pending blocks and holds the terminator's output (Raw with
// dangling inline markers closed). Committed blocks never carry a Display:
// once a block is final there's nothing left to terminate.
type Block struct {
	Id      BlockId
	Status  BlockStatus
	Kind    BlockKind
	Raw     string
	Display string
	hasDisp bool
}

// DisplayOrRaw returns Display if this block carries a terminated preview,
// otherwise Raw.
func (b Block) DisplayOrRaw() string {
	if b.hasDisp {
		return b.Display
	}
	return b.Raw
}

// Update is the result of one Append (or Finalize/Reset) call: the blocks
// that became final during the call, the single still-open block (if any),
// and the ids of previously committed blocks whose downstream parse may
// have become stale.
type Update struct {
	// Committed holds newly finalized blocks, in stream order.
	Committed []Block
	// Pending is the current open block, or nil if the stream is between
	// blocks (e.g. immediately after a blank line, or empty).
	Pending *Block
	// Invalidated lists ids of already-committed blocks an adapter should
	// consider re-parsing, e.g. because a late-arriving link-reference
	// definition changed their meaning. Stream itself does not track
	// reference definitions and never fills this field, so it is empty in
	// every Update a Stream returns; an adapter such as mdadapter re-parses
	// whatever ids a caller places here.
	Invalidated []BlockId
	// Reset is true when this Update was produced by Stream.Reset: every
	// piece of previously retained state (committed ids, caches) should be
	// dropped by adapters rather than incrementally applied.
	Reset bool
}

func emptyUpdate() Update {
	return Update{}
}
