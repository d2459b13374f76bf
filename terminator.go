package mdstream

import (
	"strings"

	"github.com/Latias94/mdstream/ansisafe"
)

// fenceSpan is a byte range [start, end) covered by a closed fenced code
// block, including both fence lines and their trailing newlines.
type fenceSpan struct {
	start, end int
}

func (s fenceSpan) contains(pos int) bool { return pos >= s.start && pos < s.end }

// fenceSpans is the result of one pass over text looking for fenced code
// blocks: zero or more closed spans, plus the start offset of a still-open
// fence, if any.
type fenceSpans struct {
	spans          []fenceSpan
	unclosedFrom   int
	hasUnclosed    bool
}

func isSpaceOrTab(b byte) bool { return b == ' ' || b == '\t' }

func lineStartIndices(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' && i+1 < len(text) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// parseFenceLine reports the fence character and run length if line opens
// or closes a fence (>= 3 backticks or tildes, after up to 3 leading
// spaces).
func parseFenceLine(line string) (ch byte, count int, ok bool) {
	i, spaces := 0, 0
	for i < len(line) && spaces < 3 && line[i] == ' ' {
		i++
		spaces++
	}
	if i >= len(line) {
		return 0, 0, false
	}
	c := line[i]
	if c != '`' && c != '~' {
		return 0, 0, false
	}
	n := 0
	for i < len(line) && line[i] == c {
		n++
		i++
	}
	if n < 3 {
		return 0, 0, false
	}
	return c, n, true
}

func findFenceSpans(text string) fenceSpans {
	var out fenceSpans
	openCh := byte(0)
	openLen := 0
	openStart := 0
	inFence := false

	for _, start := range lineStartIndices(text) {
		end := strings.IndexByte(text[start:], '\n')
		if end < 0 {
			end = len(text)
		} else {
			end += start
		}
		line := text[start:end]

		if ch, n, ok := parseFenceLine(line); ok {
			if !inFence {
				openCh, openLen, openStart, inFence = ch, n, start, true
			} else if openCh == ch && n >= openLen {
				closeEnd := end
				if end < len(text) {
					closeEnd = end + 1
				}
				out.spans = append(out.spans, fenceSpan{start: openStart, end: closeEnd})
				inFence = false
			}
		}
	}

	if inFence {
		out.unclosedFrom, out.hasUnclosed = openStart, true
	}
	return out
}

func isWithinFence(spans fenceSpans, pos int) bool {
	for _, s := range spans.spans {
		if s.contains(pos) {
			return true
		}
	}
	return spans.hasUnclosed && pos >= spans.unclosedFrom
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c >= 0x80
}

func whitespaceOrMarkersOnly(s string) bool {
	for _, r := range s {
		switch r {
		case '_', '~', '*', '`':
			continue
		}
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			continue
		}
		return false
	}
	return true
}

func tailWindow(text string, windowBytes int) (string, int) {
	if windowBytes <= 0 || len(text) <= windowBytes {
		return text, 0
	}
	w, off := ansisafe.TailWindow(text, windowBytes)
	return w, off
}

func isWithinMathBlock(text string, position int) bool {
	inInline, inBlock := false, false
	i := 0
	for i < position && i < len(text) {
		if text[i] == '\\' && i+1 < len(text) && text[i+1] == '$' {
			i += 2
			continue
		}
		if text[i] == '$' {
			if i+1 < len(text) && text[i+1] == '$' {
				inBlock = !inBlock
				inInline = false
				i += 2
				continue
			}
			if !inBlock {
				inInline = !inInline
			}
		}
		i++
	}
	return inInline || inBlock
}

func isWithinLinkOrImageURL(text string, position int) bool {
	i := position
	for i > 0 {
		i--
		switch text[i] {
		case '\n':
			return false
		case ')':
			return false
		case '(':
			if i > 0 && text[i-1] == ']' {
				for j := position; j < len(text); j++ {
					if text[j] == ')' {
						return true
					}
					if text[j] == '\n' {
						return false
					}
				}
			}
			return false
		}
	}
	return false
}

func trimTrailingSingleSpace(text string) string {
	if strings.HasSuffix(text, " ") && !strings.HasSuffix(text, "  ") {
		return text[:len(text)-1]
	}
	return text
}

func applySetextHeadingProtection(text string) string {
	trimmed := trimTrailingSingleSpace(text)
	lastNL := strings.LastIndexByte(trimmed, '\n')
	if lastNL < 0 {
		return trimmed
	}

	prev := trimmed[:lastNL]
	if prev == "" || strings.HasSuffix(prev, "\n") {
		return trimmed
	}

	lastLine := trimmed[lastNL+1:]
	lastLineTrim := strings.TrimRight(lastLine, " \t")

	isAmbiguousDashes := lastLineTrim == "-" || lastLineTrim == "--"
	isAmbiguousEquals := lastLineTrim == "=" || lastLineTrim == "=="
	isHR := len(lastLineTrim) >= 3 && allBytesEqual(lastLineTrim, '-')
	isSetext := len(lastLineTrim) >= 3 && allBytesEqual(lastLineTrim, '=')

	if (isAmbiguousDashes || isAmbiguousEquals) && !isHR && !isSetext {
		var b strings.Builder
		b.Grow(len(trimmed) + 3)
		b.WriteString(trimmed[:lastNL+1])
		b.WriteString(lastLineTrim)
		b.WriteRune('​')
		return b.String()
	}
	return trimmed
}

func allBytesEqual(s string, c byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != c {
			return false
		}
	}
	return true
}

func findMatchingOpenBracket(text string, closeIndex int) (int, bool) {
	depth := 1
	i := closeIndex
	for i > 0 {
		i--
		switch text[i] {
		case ']':
			depth++
		case '[':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func findMatchingCloseBracket(text string, openIndex int) (int, bool) {
	depth := 1
	i := openIndex + 1
	for i < len(text) {
		switch text[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
		i++
	}
	return 0, false
}

func completeIncompleteLinkOrImage(text string, spans fenceSpans, incompleteURL string) (string, bool) {
	if idx := strings.LastIndex(text, "]("); idx >= 0 && !isWithinFence(spans, idx) {
		after := text[idx+2:]
		if !strings.Contains(after, ")") {
			if openBracket, ok := findMatchingOpenBracket(text, idx); ok {
				if isWithinFence(spans, openBracket) {
					return "", false
				}
				isImage := openBracket > 0 && text[openBracket-1] == '!'
				start := openBracket
				if isImage {
					start = openBracket - 1
				}
				before := text[:start]
				if isImage {
					return before, true
				}
				linkText := text[openBracket+1 : idx]
				return before + "[" + linkText + "](" + incompleteURL + ")", true
			}
		}
	}

	for i := len(text) - 1; i >= 0; i-- {
		if text[i] != '[' || isWithinFence(spans, i) {
			continue
		}
		isImage := i > 0 && text[i-1] == '!'
		openIndex := i
		if isImage {
			openIndex = i - 1
		}

		afterOpen := text[i+1:]
		if !strings.Contains(afterOpen, "]") {
			if isImage {
				return text[:openIndex], true
			}
			return text + "](" + incompleteURL + ")", true
		}

		if _, ok := findMatchingCloseBracket(text, i); !ok {
			if isImage {
				return text[:openIndex], true
			}
			return text + "](" + incompleteURL + ")", true
		}
	}

	return "", false
}

func isListMarkerAt(text string, byteIndex int) bool {
	i := byteIndex
	for i > 0 && text[i-1] != '\n' {
		i--
	}
	lineStart := i
	j, spaces := lineStart, 0
	for j < len(text) && spaces < 3 && text[j] == ' ' {
		spaces++
		j++
	}
	if j >= len(text) {
		return false
	}
	if j == byteIndex && (text[j] == '*' || text[j] == '+' || text[j] == '-') {
		return j+1 < len(text) && isSpaceOrTab(text[j+1])
	}
	if j <= byteIndex && byteIndex < len(text) && isDigit(text[byteIndex]) {
		k := j
		for k < len(text) && isDigit(text[k]) {
			k++
		}
		if k > j && k == byteIndex {
			if k < len(text) && (text[k] == '.' || text[k] == ')') {
				return k+1 < len(text) && isSpaceOrTab(text[k+1])
			}
		}
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isHorizontalRuleLine(text string, markerIndex int, marker byte) bool {
	lineStart := markerIndex
	for lineStart > 0 && text[lineStart-1] != '\n' {
		lineStart--
	}
	lineEnd := markerIndex
	for lineEnd < len(text) && text[lineEnd] != '\n' {
		lineEnd++
	}
	line := text[lineStart:lineEnd]
	count := 0
	for i := 0; i < len(line); i++ {
		if line[i] == marker {
			count++
		} else if line[i] != ' ' && line[i] != '\t' {
			return false
		}
	}
	return count >= 3
}

func countTripleAsterisks(text string) int {
	count, consecutive := 0, 0
	for i := 0; i < len(text); i++ {
		if text[i] == '*' {
			consecutive++
		} else {
			if consecutive >= 3 {
				count += consecutive / 3
			}
			consecutive = 0
		}
	}
	if consecutive >= 3 {
		count += consecutive / 3
	}
	return count
}

func shouldSkipAsterisk(text string, index int) bool {
	var prev, next byte
	if index > 0 {
		prev = text[index-1]
	}
	if index+1 < len(text) {
		next = text[index+1]
	}

	if prev == '\\' {
		return true
	}
	if strings.Contains(text, "$") && isWithinMathBlock(text, index) {
		return true
	}

	if prev != '*' && next == '*' {
		var nextNext byte
		if index+2 < len(text) {
			nextNext = text[index+2]
		}
		if nextNext == '*' {
			return false
		}
		return true
	}

	if prev == '*' {
		return true
	}

	if prev != 0 && next != 0 && isWordChar(prev) && isWordChar(next) {
		return true
	}

	return isListMarkerAt(text, index)
}

func countSingleAsterisks(text string, spans fenceSpans) int {
	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '*' || isWithinFence(spans, i) {
			continue
		}
		if !shouldSkipAsterisk(text, i) {
			count++
		}
	}
	return count
}

func shouldSkipUnderscore(text string, index int) bool {
	var prev, next byte
	if index > 0 {
		prev = text[index-1]
	}
	if index+1 < len(text) {
		next = text[index+1]
	}

	if prev == '\\' {
		return true
	}
	if strings.Contains(text, "$") && isWithinMathBlock(text, index) {
		return true
	}
	if isWithinLinkOrImageURL(text, index) {
		return true
	}
	if prev == '_' || next == '_' {
		return true
	}
	if prev != 0 && next != 0 && isWordChar(prev) && isWordChar(next) {
		return true
	}
	return false
}

func countSingleUnderscores(text string, spans fenceSpans) int {
	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '_' || isWithinFence(spans, i) {
			continue
		}
		if !shouldSkipUnderscore(text, i) {
			count++
		}
	}
	return count
}

func handleIncompleteBold(text string, spans fenceSpans) string {
	markerIdx := strings.LastIndex(text, "**")
	if markerIdx < 0 {
		return text
	}
	if strings.Contains(text[markerIdx+2:], "*") {
		return text
	}
	if isWithinFence(spans, markerIdx) {
		return text
	}
	contentAfter := text[markerIdx+2:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if isHorizontalRuleLine(text, markerIdx, '*') {
		return text
	}

	pairs := strings.Count(text, "**")
	if pairs%2 == 1 {
		return text + "**"
	}
	return text
}

func handleIncompleteDoubleUnderscoreItalic(text string, spans fenceSpans) string {
	markerIdx := strings.LastIndex(text, "__")
	if markerIdx < 0 {
		return text
	}
	if strings.Contains(text[markerIdx+2:], "_") {
		return text
	}
	if isWithinFence(spans, markerIdx) {
		return text
	}
	contentAfter := text[markerIdx+2:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if isHorizontalRuleLine(text, markerIdx, '_') {
		return text
	}

	pairs := strings.Count(text, "__")
	if pairs%2 == 1 {
		return text + "__"
	}
	return text
}

func handleIncompleteSingleAsteriskItalic(text string, spans fenceSpans) string {
	first := -1
	for i := 0; i < len(text); i++ {
		if text[i] != '*' || isWithinFence(spans, i) {
			continue
		}
		var prev, next byte
		if i > 0 {
			prev = text[i-1]
		}
		if i+1 < len(text) {
			next = text[i+1]
		}
		if prev == '*' || next == '*' || prev == '\\' {
			continue
		}
		if strings.Contains(text, "$") && isWithinMathBlock(text, i) {
			continue
		}
		if prev != 0 && next != 0 && isWordChar(prev) && isWordChar(next) {
			continue
		}
		if isListMarkerAt(text, i) {
			continue
		}
		first = i
		break
	}
	if first < 0 {
		return text
	}
	contentAfter := text[first+1:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if countSingleAsterisks(text, spans)%2 == 1 {
		return text + "*"
	}
	return text
}

func insertClosingUnderscore(text string) string {
	end := len(text)
	for end > 0 && text[end-1] == '\n' {
		end--
	}
	if end < len(text) {
		return text[:end] + "_" + text[end:]
	}
	return text + "_"
}

func findFirstSingleUnderscoreIndex(text string, spans fenceSpans) (int, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '_' || isWithinFence(spans, i) {
			continue
		}
		var prev, next byte
		if i > 0 {
			prev = text[i-1]
		}
		if i+1 < len(text) {
			next = text[i+1]
		}
		if prev == '_' || next == '_' || prev == '\\' {
			continue
		}
		if strings.Contains(text, "$") && isWithinMathBlock(text, i) {
			continue
		}
		if isWithinLinkOrImageURL(text, i) {
			continue
		}
		if prev != 0 && next != 0 && isWordChar(prev) && isWordChar(next) {
			continue
		}
		return i, true
	}
	return 0, false
}

func handleTrailingAsterisksForUnderscore(text string) (string, bool) {
	if !strings.HasSuffix(text, "**") {
		return "", false
	}
	without := text[:len(text)-2]
	if strings.Count(without, "**")%2 != 1 {
		return "", false
	}
	firstDouble := strings.Index(without, "**")
	if firstDouble < 0 {
		return "", false
	}
	spans := findFenceSpans(without)
	underscoreIdx, ok := findFirstSingleUnderscoreIndex(without, spans)
	if !ok {
		return "", false
	}
	if firstDouble < underscoreIdx {
		return without + "_**", true
	}
	return "", false
}

func handleIncompleteSingleUnderscoreItalic(text string, spans fenceSpans) string {
	firstIdx, ok := findFirstSingleUnderscoreIndex(text, spans)
	if !ok {
		return text
	}
	contentAfter := text[firstIdx+1:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if countSingleUnderscores(text, spans)%2 == 1 {
		if nested, ok := handleTrailingAsterisksForUnderscore(text); ok {
			return nested
		}
		return insertClosingUnderscore(text)
	}
	return text
}

func boldItalicMarkersBalanced(text string, spans fenceSpans) bool {
	pairs := strings.Count(text, "**")
	single := countSingleAsterisks(text, spans)
	return pairs%2 == 0 && single%2 == 0
}

func handleIncompleteBoldItalic(text string, spans fenceSpans) string {
	t := strings.TrimSpace(text)
	if t != "" && allBytesEqual(t, '*') && len(t) >= 4 {
		return text
	}

	markerIdx := strings.LastIndex(text, "***")
	if markerIdx < 0 {
		return text
	}
	if strings.Contains(text[markerIdx+3:], "*") {
		return text
	}
	contentAfter := text[markerIdx+3:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if isWithinFence(spans, markerIdx) {
		return text
	}
	if isHorizontalRuleLine(text, markerIdx, '*') {
		return text
	}

	if countTripleAsterisks(text)%2 == 1 {
		if boldItalicMarkersBalanced(text, spans) {
			return text
		}
		return text + "***"
	}
	return text
}

func balanceInlineCode(text string, spans fenceSpans) string {
	count := 0
	for i := 0; i < len(text); i++ {
		if isWithinFence(spans, i) {
			continue
		}
		if text[i] == '`' && (i == 0 || text[i-1] != '\\') {
			count++
		}
	}
	if count%2 == 1 {
		return text + "`"
	}
	return text
}

func balanceStrikethrough(text string, spans fenceSpans) string {
	count := 0
	for i := 0; i+1 < len(text); {
		if text[i] == '~' && text[i+1] == '~' && !isWithinFence(spans, i) {
			count++
			i += 2
			continue
		}
		i++
	}
	if count%2 == 1 {
		return text + "~~"
	}
	return text
}

func balanceKatexBlock(text string, spans fenceSpans) string {
	count := 0
	for i := 0; i+1 < len(text); {
		if text[i] == '$' && text[i+1] == '$' && !isWithinFence(spans, i) {
			if i > 0 && text[i-1] == '\\' {
				i += 2
				continue
			}
			count++
			i += 2
			continue
		}
		i++
	}
	if count%2 == 1 {
		return text + "$$"
	}
	return text
}

// TerminateMarkdown is the pure pending terminator (spec §4.3): given the
// raw text of the still-open pending block, it returns a display string
// with dangling inline markers closed (bold/italic/bold-italic, inline
// code, strikethrough, KaTeX, incomplete links/images) and ambiguous
// setext-heading lines protected from misinterpretation, without
// reinterpreting or correcting the content itself.
//
// Only the tail opts.WindowBytes of text is scanned; everything before that
// window is passed through unmodified. The function is total: it never
// panics and never returns an error, for any UTF-8 input.
func TerminateMarkdown(text string, opts TerminatorOptions) string {
	if text == "" {
		return ""
	}

	text = trimTrailingSingleSpace(text)
	window, offset := tailWindow(text, opts.WindowBytes)

	prefix := text[:offset]
	tail := window

	if opts.SetextHeadings {
		tail = applySetextHeadingProtection(tail)
	}

	spans := findFenceSpans(tail)
	if spans.hasUnclosed {
		return prefix + tail
	}

	if opts.Links || opts.Images {
		if processed, ok := completeIncompleteLinkOrImage(tail, spans, opts.IncompleteLinkURL); ok {
			if strings.HasSuffix(processed, "]("+opts.IncompleteLinkURL+")") {
				return prefix + processed
			}
			tail = processed
		}
	}

	spans = findFenceSpans(tail)

	if opts.Emphasis {
		tail = handleIncompleteBoldItalic(tail, spans)
		tail = handleIncompleteBold(tail, spans)
		tail = handleIncompleteDoubleUnderscoreItalic(tail, spans)
		tail = handleIncompleteSingleAsteriskItalic(tail, spans)
		tail = handleIncompleteSingleUnderscoreItalic(tail, spans)
	}
	if opts.InlineCode {
		tail = balanceInlineCode(tail, spans)
	}
	if opts.Strikethrough {
		tail = balanceStrikethrough(tail, spans)
	}
	if opts.KatexBlock {
		tail = balanceKatexBlock(tail, spans)
	}

	return prefix + tail
}
