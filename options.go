package mdstream

// BoundaryUpdate is returned by BoundaryPlugin.Update to tell the stream
// whether the custom block it opened continues past the current line or
// closes at the end of it.
type BoundaryUpdate int

const (
	BoundaryContinue BoundaryUpdate = iota
	BoundaryClose
)

// BoundaryPlugin lets a caller claim a custom block boundary — a fenced
// directive, a paired tag, anything line-delimited — without teaching the
// core classifier about it. Implementations must satisfy the same
// Send+Sync-equivalent contract as the rest of the stream (§5): no
// unsynchronized shared mutable state, since a plugin instance is owned by
// exactly one Stream at a time but that Stream may itself be handed across
// goroutines between writes.
type BoundaryPlugin interface {
	// MatchesStart is a pure predicate: report whether line can open this
	// plugin's custom block. Must not mutate state.
	MatchesStart(line string) bool
	// Start is called exactly once when the stream determines the current
	// block starts at line.
	Start(line string)
	// Update is called for every line of the block, including the
	// starting line. Returning BoundaryClose ends the block after this
	// line.
	Update(line string) BoundaryUpdate
	// Reset clears any state accumulated since Start, as if the plugin had
	// just been constructed.
	Reset()
}

// PendingTransformInput is the read-only view a PendingTransformer receives
// of the current pending block.
type PendingTransformInput struct {
	Kind BlockKind
	// Raw is the original pending text, never mutated.
	Raw string
	// Display is the current pending display string, already including
	// built-in termination.
	Display string
}

// PendingTransformer post-processes a pending block's display string, e.g.
// to inject a "thinking…" spinner or redact in-flight content. It must be
// safe for concurrent use: the contract is stateless, so any mutable state
// a transformer needs must be externally synchronized (see
// FnPendingTransformer's doc comment for the idiom).
type PendingTransformer interface {
	// Transform returns a replacement display string, or "", false to
	// leave Display unchanged.
	Transform(input PendingTransformInput) (string, bool)
	// Reset is called when the owning Stream is reset.
	Reset()
}

// FnPendingTransformer adapts a plain function to PendingTransformer. Use an
// atomic or a mutex-guarded closure for any mutable state the function
// needs — the function itself is called from whatever goroutine calls
// Stream.Append, with no synchronization provided by the stream.
type FnPendingTransformer func(input PendingTransformInput) (string, bool)

func (f FnPendingTransformer) Transform(input PendingTransformInput) (string, bool) { return f(input) }
func (f FnPendingTransformer) Reset()                                              {}

// TerminatorOptions configures the pure pending-terminator pass (§4.3).
type TerminatorOptions struct {
	SetextHeadings     bool
	Links              bool
	Images             bool
	Emphasis           bool
	InlineCode         bool
	Strikethrough      bool
	KatexBlock         bool
	IncompleteLinkURL  string
	// WindowBytes bounds how much of the pending tail the terminator scans;
	// everything before the window is passed through untouched.
	WindowBytes int
}

// DefaultTerminatorOptions mirrors the terminator's streamdown-compatible
// defaults: every balancing pass enabled, a 16 KiB tail window, and the
// `streamdown:incomplete-link` placeholder URL for dangling links/images.
func DefaultTerminatorOptions() TerminatorOptions {
	return TerminatorOptions{
		SetextHeadings:    true,
		Links:             true,
		Images:            true,
		Emphasis:          true,
		InlineCode:        true,
		Strikethrough:     true,
		KatexBlock:        true,
		IncompleteLinkURL: "streamdown:incomplete-link",
		WindowBytes:       16 * 1024,
	}
}

// Options configures a Stream. The zero value is not ready for use; build
// one with DefaultOptions and Option funcs.
type Options struct {
	Terminator        TerminatorOptions
	BoundaryPlugins   []BoundaryPlugin
	PendingTransforms []PendingTransformer
}

// DefaultOptions returns an Options with terminator defaults and no
// plugins or transformers registered.
func DefaultOptions() Options {
	return Options{Terminator: DefaultTerminatorOptions()}
}

// Option mutates an Options in place; apply in order with ApplyOptions.
type Option func(*Options)

// ApplyOptions runs each Option against opts in order.
func ApplyOptions(opts *Options, options ...Option) {
	for _, o := range options {
		o(opts)
	}
}

// WithTerminatorOptions replaces the terminator configuration wholesale.
func WithTerminatorOptions(t TerminatorOptions) Option {
	return func(o *Options) { o.Terminator = t }
}

// WithBoundaryPlugin registers an additional BoundaryPlugin.
func WithBoundaryPlugin(p BoundaryPlugin) Option {
	return func(o *Options) { o.BoundaryPlugins = append(o.BoundaryPlugins, p) }
}

// WithPendingTransformer registers an additional PendingTransformer,
// applied in registration order after termination.
func WithPendingTransformer(t PendingTransformer) Option {
	return func(o *Options) { o.PendingTransforms = append(o.PendingTransforms, t) }
}
