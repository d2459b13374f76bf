package mdstream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStream(t *testing.T, opts ...Option) *Stream {
	t.Helper()
	return New(DefaultOptions(), opts...)
}

// Ported from original_source/tests/stream_block_splitting.rs.

func TestSplitsParagraphsOnBlankLine(t *testing.T) {
	s := testStream(t)
	u1 := s.Append("A\n\nB")
	require.Len(t, u1.Committed, 1)
	assert.Equal(t, "A\n\n", u1.Committed[0].Raw)
	require.NotNil(t, u1.Pending)
	assert.Equal(t, "B", u1.Pending.Raw)
}

func TestCommitsListAsSingleBlock(t *testing.T) {
	s := testStream(t)
	s.Append("- a\n- b\n")
	u := s.Append("\nC\n")
	assert.True(t, anyRawContains(u.Committed, "- a\n- b\n"), "committed = %+v", u.Committed)
}

func TestCommitsBlockquoteAsSingleBlock(t *testing.T) {
	s := testStream(t)
	s.Append("> a\n> b\n")
	u := s.Append("\nC\n")
	assert.True(t, anyRawContains(u.Committed, "> a\n> b\n"), "committed = %+v", u.Committed)
}

func TestCommitsTableAsSingleBlock(t *testing.T) {
	s := testStream(t)
	s.Append("| A | B |\n|---|---|\n| 1 | 2 |\n")
	u := s.Append("\nAfter\n")
	assert.True(t, anyRawContains(u.Committed, "| A | B |\n|---|---|\n| 1 | 2 |\n"), "committed = %+v", u.Committed)
}

func TestTableAfterParagraphIsSeparateBlock(t *testing.T) {
	s := testStream(t)
	u1 := s.Append("Intro\n\n| A | B |\n|---|---|\n| 1 | 2 |\n")
	assert.True(t, anyRawEquals(u1.Committed, "Intro\n\n"), "expected Intro paragraph committed, got %+v", u1.Committed)
	assert.False(t, anyRawContains(u1.Committed, "| A | B |"), "table should not be committed yet: %+v", u1.Committed)
	assert.False(t, anyRawEquals(u1.Committed, "| A | B |\n"), "header line must not be committed standalone: %+v", u1.Committed)

	u2 := s.Append("\nAfter\n")
	assert.True(t, anyRawContains(u2.Committed, "| A | B |\n|---|---|\n| 1 | 2 |\n"), "committed = %+v", u2.Committed)
}

func TestCommitsHtmlBlockUntilBlankLine(t *testing.T) {
	s := testStream(t)
	s.Append("<div>\nhello\n</div>\n")
	u := s.Append("\nAfter\n")
	assert.True(t, anyRawContains(u.Committed, "<div>\nhello\n</div>\n"), "committed = %+v", u.Committed)
}

func TestCommitsMathBlockAsSingleBlock(t *testing.T) {
	s := testStream(t)
	u1 := s.Append("$$\nx = 1\n")
	assert.Empty(t, u1.Committed)
	s.Append("y = 2\n")
	u2 := s.Append("$$\n\nAfter\n")
	assert.True(t, anyRawContains(u2.Committed, "$$\nx = 1\ny = 2\n$$\n"), "committed = %+v", u2.Committed)
}

// Ported from original_source/tests/code_fence_nested_content.rs.

func TestCodeFenceWithInnerBackticksIsSingleBlock(t *testing.T) {
	markdown := "````\nState: Normal\n  -> see ``` -> State: Fence\n````\n"
	blocks := collectFinalBlocks(t, chunkWhole(markdown), DefaultOptions())
	require.Len(t, blocks, 1)
	assert.Equal(t, BlockCodeFence, blocks[0].Kind)
	assert.Equal(t, markdown, blocks[0].Raw)
}

func TestCodeFenceNestedInnerFence(t *testing.T) {
	markdown := "````\n```rust\nfn main() {}\n```\n````\n"
	blocks := collectFinalBlocks(t, chunkWhole(markdown), DefaultOptions())
	require.Len(t, blocks, 1)
	assert.Equal(t, BlockCodeFence, blocks[0].Kind)
}

func TestCodeFenceTilde(t *testing.T) {
	markdown := "~~~~\ncode with ~~not strikethrough~~\n~~~~\n"
	blocks := collectFinalBlocks(t, chunkWhole(markdown), DefaultOptions())
	require.Len(t, blocks, 1)
	assert.Equal(t, BlockCodeFence, blocks[0].Kind)
}

// Ported from original_source/tests/boundary_tag_plugin.rs.

func TestThinkingTagContainerIsSingleBlock(t *testing.T) {
	markdown := "Intro\n\n<thinking>\nA\n\nB\n</thinking>\n\nAfter\n"
	opts := DefaultOptions()
	opts.BoundaryPlugins = []BoundaryPlugin{ThinkingTag()}
	blocks := collectFinalBlocks(t, chunkWhole(markdown), opts)
	want := []string{"Intro\n\n", "<thinking>\nA\n\nB\n</thinking>\n", "After\n"}
	require.Len(t, blocks, len(want))
	for i, w := range want {
		assert.Equal(t, w, blocks[i].Raw, "block[%d]", i)
	}
}

func TestThinkingTagContainerChunkingInvariance(t *testing.T) {
	markdown := "Intro\n\n<thinking>\nA\n\nB\n</thinking>\n\nAfter\n"
	newOpts := func() Options {
		o := DefaultOptions()
		o.BoundaryPlugins = []BoundaryPlugin{ThinkingTag()}
		return o
	}
	whole := collectFinalBlocks(t, chunkWhole(markdown), newOpts())
	lines := collectFinalBlocks(t, chunkLines(markdown), newOpts())
	chars := collectFinalBlocks(t, chunkChars(markdown), newOpts())
	rand := collectFinalBlocks(t, chunkPseudoRandom(markdown, "thinking-tag", 0, 40), newOpts())

	assertSameRaws(t, whole, lines, "lines")
	assertSameRaws(t, whole, chars, "chars")
	assertSameRaws(t, whole, rand, "rand")
}

func TestTagPluginResetClearsState(t *testing.T) {
	opts := DefaultOptions()
	opts.BoundaryPlugins = []BoundaryPlugin{ThinkingTag()}
	s := New(opts)
	s.Append("<thinking>\nA\n")
	s.Reset()
	u := s.Append("A\n\nB\n")
	require.Len(t, u.Committed, 1)
	assert.Equal(t, "A\n\n", u.Committed[0].Raw)
	require.NotNil(t, u.Pending)
	assert.Equal(t, "B\n", u.Pending.Raw)
}

// Ported from original_source/tests/stream_streamdown_tables.rs.

func TestStreamdownBenchmarkSimpleTableChunkingInvariance(t *testing.T) {
	markdown := "\n| Header 1 | Header 2 |\n|----------|----------|\n| Cell 1   | Cell 2   |\n| Cell 3   | Cell 4   |\n"
	whole := collectFinalBlocks(t, chunkWhole(markdown), DefaultOptions())
	lines := collectFinalBlocks(t, chunkLines(markdown), DefaultOptions())
	rand := collectFinalBlocks(t, chunkPseudoRandom(markdown, "simple-table", 0, 40), DefaultOptions())

	assertSameRaws(t, whole, lines, "lines")
	assertSameRaws(t, whole, rand, "rand")

	require.Len(t, whole, 1)
	assert.Equal(t, BlockTable, whole[0].Kind)
}

// Ported from original_source/tests/chunking_invariance_suite.rs (subset;
// uses the same streamdown/incremark-derived corpus).

func TestChunkingInvarianceSuite(t *testing.T) {
	cases := []struct {
		name string
		md   string
	}{
		{"single_block", "# Heading\n\nThis is a paragraph."},
		{"multiple_blocks_10", "\n# Heading 1\n\nThis is paragraph 1.\n\n## Heading 2\n\nThis is paragraph 2.\n\n- List item 1\n- List item 2\n\n> Blockquote text\n"},
		{"single_code_block", "\nSome text\n\n```javascript\nconst x = 1;\nconst y = 2;\n```\n\nMore text\n"},
		{"math_with_split_delimiters", "\nSome text\n\n$$\n\nx^2 + y^2 = z^2\n\n$$\n\nMore text\n"},
		{"multiple_html_blocks", "\n<div>First block</div>\n\nSome markdown\n\n<section>\n  <p>Second block</p>\n</section>\n\nMore markdown\n"},
		{"with_footnotes", "\nThis is text with a footnote[^1].\n\nHere's another footnote[^note].\n\n[^1]: This is the first footnote.\n[^note]: This is a named footnote.\n"},
		{"simple_table", "\n| Header 1 | Header 2 |\n|----------|----------|\n| Cell 1   | Cell 2   |\n| Cell 3   | Cell 4   |\n"},
		{"incremark_paragraph", "Hello, World!"},
		{"incremark_headings", "# Title One\n\n## Title Two\n\nBody"},
		{"incremark_code_block", "```js\nconsole.log(\"hi\")\n```\n\nBody"},
		{"incremark_gfm_table", "| A | B |\n|---|---|\n| 1 | 2 |"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expected := collectFinalBlocks(t, chunkWhole(tc.md), DefaultOptions())
			lines := collectFinalBlocks(t, chunkLines(tc.md), DefaultOptions())
			assertSameRaws(t, expected, lines, "lines")
			chars := collectFinalBlocks(t, chunkChars(tc.md), DefaultOptions())
			assertSameRaws(t, expected, chars, "chars")
			for trial := 0; trial < 8; trial++ {
				rand := collectFinalBlocks(t, chunkPseudoRandom(tc.md, tc.name, trial, 32), DefaultOptions())
				assertSameRaws(t, expected, rand, "rand")
			}
		})
	}
}

func TestChunkingInvarianceHandlesCRLFSplitAcrossChunks(t *testing.T) {
	markdown := "A\r\n\r\nB\r\n"
	expected := collectFinalBlocks(t, chunkWhole(markdown), DefaultOptions())
	split := collectFinalBlocks(t, []string{"A\r", "\n\r", "\nB\r", "\n"}, DefaultOptions())
	assertSameRaws(t, expected, split, "crlf-split")
}

// --- test helpers, grounded on the published behavior tests/support.rs's
// callers rely on (support.rs itself was not retrieved in the pack). ---

func chunkWhole(text string) []string { return []string{text} }

func chunkLines(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			out = append(out, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

func chunkChars(text string) []string {
	var out []string
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}

func chunkPseudoRandom(text, seedKey string, trial int, maxBytes int) []string {
	var seed uint32 = 2166136261
	for _, c := range seedKey {
		seed = (seed ^ uint32(c)) * 16777619
	}
	seed ^= uint32(trial) * 2654435761

	var out []string
	start := 0
	for start < len(text) {
		seed = seed*1664525 + 1013904223
		want := int(seed%uint32(maxBytes)) + 1
		end := start + want
		if end > len(text) {
			end = len(text)
		}
		for end < len(text) && !isUTF8Boundary(text, end) {
			end++
		}
		out = append(out, text[start:end])
		start = end
	}
	return out
}

func isUTF8Boundary(s string, i int) bool {
	if i == 0 || i == len(s) {
		return true
	}
	b := s[i]
	return b&0xC0 != 0x80
}

func collectFinalBlocks(t *testing.T, chunks []string, opts Options) []Block {
	t.Helper()
	s := New(opts)
	var out []Block
	for _, c := range chunks {
		u := s.Append(c)
		out = append(out, u.Committed...)
	}
	u := s.Finalize()
	out = append(out, u.Committed...)
	return out
}

func assertSameRaws(t *testing.T, expected, got []Block, label string) {
	t.Helper()
	require.Len(t, got, len(expected), "%s: %+v", label, got)
	for i := range expected {
		assert.Equal(t, expected[i].Raw, got[i].Raw, "%s: block[%d]", label, i)
	}
}

func anyRawContains(blocks []Block, substr string) bool {
	for _, b := range blocks {
		if strings.Contains(b.Raw, substr) {
			return true
		}
	}
	return false
}

func anyRawEquals(blocks []Block, raw string) bool {
	for _, b := range blocks {
		if b.Raw == raw {
			return true
		}
	}
	return false
}
