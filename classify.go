package mdstream

import "strings"

// htmlBlockTags is the CommonMark block-level tag set that opens an
// HtmlBlock when found at the start of a line (case-insensitive), grounded
// on zombiezen-go-commonmark's block-tag table.
var htmlBlockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "base": true, "basefont": true,
	"blockquote": true, "body": true, "caption": true, "center": true, "col": true,
	"colgroup": true, "dd": true, "details": true, "dialog": true, "dir": true,
	"div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "frame": true, "frameset": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"head": true, "header": true, "hr": true, "html": true, "iframe": true,
	"legend": true, "li": true, "link": true, "main": true, "menu": true,
	"menuitem": true, "nav": true, "noframes": true, "ol": true, "optgroup": true,
	"option": true, "p": true, "param": true, "search": true, "section": true,
	"summary": true, "table": true, "tbody": true, "td": true, "tfoot": true,
	"th": true, "thead": true, "title": true, "tr": true, "track": true, "ul": true,
	"script": true, "pre": true, "style": true, "textarea": true,
}

func isBlankLine(line string) bool { return strings.TrimSpace(line) == "" }

func countLeadingSpaces(line string) int {
	count := 0
	for _, c := range line {
		if c == ' ' || c == '\t' {
			count++
		} else {
			break
		}
	}
	return count
}

func isListMarker(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	if (trimmed[0] == '-' || trimmed[0] == '*' || trimmed[0] == '+') &&
		len(trimmed) > 1 && (trimmed[1] == ' ' || trimmed[1] == '\t') {
		return true
	}
	i := 0
	for i < len(trimmed) && i < 9 && trimmed[i] >= '0' && trimmed[i] <= '9' {
		i++
	}
	if i > 0 && i < len(trimmed) && (trimmed[i] == '.' || trimmed[i] == ')') {
		if i+1 < len(trimmed) && (trimmed[i+1] == ' ' || trimmed[i+1] == '\t') {
			return true
		}
		if i+1 == len(trimmed) {
			return true
		}
	}
	return false
}

func isThematicBreakLine(trimmed string) bool {
	if len(trimmed) < 3 {
		return false
	}
	char := trimmed[0]
	if char != '-' && char != '*' && char != '_' {
		return false
	}
	count := 0
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if c == char {
			count++
		} else if c != ' ' && c != '\t' {
			return false
		}
	}
	return count >= 3
}

func isSetextUnderlineLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	char := trimmed[0]
	if char != '=' && char != '-' {
		return false
	}
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] != char {
			return false
		}
	}
	return true
}

// isTableHeaderCandidate reports whether trimmed looks like a table header
// row (contains at least one pipe; escaped pipes count too). A header alone is not enough
// to commit to BlockTable — see isTableSeparatorLine.
func isTableHeaderCandidate(trimmed string) bool {
	return strings.Contains(trimmed, "|")
}

// isTableSeparatorLine reports whether trimmed is a GFM table delimiter row,
// e.g. "|---|---|" or "---|---". Only once this line follows a header row
// does the block become a BlockTable (ground truth:
// table_after_paragraph_is_separate_block in original_source/tests).
func isTableSeparatorLine(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	cells := strings.Split(strings.Trim(trimmed, "|"), "|")
	if len(cells) == 0 {
		return false
	}
	for _, cell := range cells {
		c := strings.TrimSpace(cell)
		if c == "" {
			return false
		}
		i := 0
		if i < len(c) && c[i] == ':' {
			i++
		}
		dashes := 0
		for i < len(c) && c[i] == '-' {
			i++
			dashes++
		}
		if dashes == 0 {
			return false
		}
		if i < len(c) && c[i] == ':' {
			i++
		}
		if i != len(c) {
			return false
		}
	}
	return true
}

func parseFenceOpen(line string) (char byte, length int, indent int) {
	indent = countLeadingSpaces(line)
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return 0, 0, 0
	}
	char = trimmed[0]
	for i := 0; i < len(trimmed) && trimmed[i] == char; i++ {
		length++
	}
	return char, length, indent
}

func isClosingFenceLine(line string, openChar byte, openLen, openIndent int) bool {
	indent := countLeadingSpaces(line)
	if indent > 3 && indent > openIndent+3 {
		return false
	}
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return false
	}
	if trimmed[0] != openChar {
		return false
	}
	fenceLen := 0
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		if c == openChar {
			fenceLen++
		} else if c == ' ' || c == '\t' || c == '\r' {
			break
		} else {
			return false
		}
	}
	return fenceLen >= openLen
}

func isMathFenceLine(trimmed string) bool { return trimmed == "$$" }

func isFootnoteDefStart(trimmed string) bool {
	if !strings.HasPrefix(trimmed, "[^") {
		return false
	}
	close := strings.IndexByte(trimmed, ']')
	if close < 3 {
		return false
	}
	return close+1 < len(trimmed) && trimmed[close+1] == ':'
}

func htmlBlockTagAt(trimmed string) (tag string, ok bool) {
	if !strings.HasPrefix(trimmed, "<") {
		return "", false
	}
	s := trimmed[1:]
	s = strings.TrimPrefix(s, "/")
	end := 0
	for end < len(s) && isTagNameChar(s[end]) {
		end++
	}
	if end == 0 {
		return "", false
	}
	name := strings.ToLower(s[:end])
	if !htmlBlockTags[name] {
		return "", false
	}
	return name, true
}

// blockKindFor classifies the line that would open a new block, per spec
// §4.2. Table and CodeFence callers must additionally apply their
// look-ahead/continuation rules; this only decides the *opening* kind.
func blockKindFor(trimmed string) BlockKind {
	if trimmed == "" {
		return BlockUnknown
	}
	if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
		return BlockCodeFence
	}
	if isMathFenceLine(trimmed) {
		return BlockMathBlock
	}
	if trimmed[0] == '#' {
		i := 0
		for i < len(trimmed) && trimmed[i] == '#' && i < 6 {
			i++
		}
		if i <= 6 && (i == len(trimmed) || trimmed[i] == ' ' || trimmed[i] == '\t') {
			return BlockHeading
		}
	}
	if isThematicBreakLine(trimmed) {
		return BlockThematicBreak
	}
	if trimmed[0] == '>' {
		return BlockBlockQuote
	}
	if isListMarker(trimmed) {
		return BlockList
	}
	if isFootnoteDefStart(trimmed) {
		return BlockFootnoteDefinition
	}
	if _, ok := htmlBlockTagAt(trimmed); ok {
		return BlockHtmlBlock
	}
	if isTableHeaderCandidate(trimmed) {
		return BlockParagraph // promoted to BlockTable by the stream on separator look-ahead
	}
	return BlockParagraph
}
