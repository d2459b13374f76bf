package mdstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Ported from original_source/tests/terminator_streamdown_cases.rs, expressed
// as a table-driven test in the teacher's style (streaming_test.go).
func TestTerminateMarkdown(t *testing.T) {
	opts := DefaultTerminatorOptions()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"setext dash single", "here is a list\n-", "here is a list\n-​"},
		{"setext dash double", "Some text\n--", "Some text\n--​"},
		{"setext equals single", "Some text\n=", "Some text\n=​"},
		{"setext equals double", "Some text\n==", "Some text\n==​"},
		{"thematic break untouched", "Some text\n---", "Some text\n---"},
		{"settled setext untouched", "Heading\n===", "Heading\n==="},
		{
			"incomplete link text",
			"Text with [incomplete link",
			"Text with [incomplete link](streamdown:incomplete-link)",
		},
		{
			"incomplete link url",
			"Visit [our site](https://exa",
			"Visit [our site](streamdown:incomplete-link)",
		},
		{
			"nested brackets incomplete url",
			"Text [foo [bar] baz](",
			"Text [foo [bar] baz](streamdown:incomplete-link)",
		},
		{
			"nested brackets incomplete text",
			"[outer [nested] text](incomplete",
			"[outer [nested] text](streamdown:incomplete-link)",
		},
		{
			"no incomplete markers inside fence",
			"```js\nconst arr = [1, 2, 3];\nconsole.log(arr[0]);\n```\n",
			"```js\nconst arr = [1, 2, 3];\nconsole.log(arr[0]);\n```\n",
		},
		{
			"incomplete link outside fence is fixed",
			"```bash\necho \"test\"\n```\nAnd here's an [incomplete link",
			"```bash\necho \"test\"\n```\nAnd here's an [incomplete link](streamdown:incomplete-link)",
		},
		{"bold then dangling italic", "This is **bold with *ital", "This is **bold with *ital*"},
		{"bold then dangling underscore italic", "**bold _und", "**bold _und_**"},
		{"dangling inline code", "To use this function, call `getData(", "To use this function, call `getData(`"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TerminateMarkdown(tc.in, opts)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTerminateMarkdownEmpty(t *testing.T) {
	assert.Equal(t, "", TerminateMarkdown("", DefaultTerminatorOptions()))
}

func TestTerminateMarkdownRespectsWindow(t *testing.T) {
	opts := DefaultTerminatorOptions()
	opts.WindowBytes = 8
	in := "normal text and then dangling `code"
	got := TerminateMarkdown(in, opts)
	assert.Equal(t, in+"`", got)
}
