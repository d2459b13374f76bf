// Package ansisafe slices byte strings without splitting a UTF-8 rune in
// half. It exists because the rest of this module (the terminator's tail
// window, the demo's --plain redraw loop) only ever wants to look at or
// re-emit a *suffix* of already-produced text, and doing that with a raw
// byte index risks cutting a multi-byte rune. Only rune boundaries are
// respected: ANSI escape sequences are not recognized, so a cut can still
// land inside one.
package ansisafe

import "unicode/utf8"

// TailWindow returns the last n bytes of s, walked forward to the nearest
// UTF-8 rune boundary so the result is always valid UTF-8. If s is no
// longer than n, s is returned unchanged along with offset 0.
func TailWindow(s string, n int) (window string, offset int) {
	if n <= 0 || len(s) == 0 {
		return "", len(s)
	}
	if len(s) <= n {
		return s, 0
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:], start
}

// SuffixBytes returns the bytes of b beyond prevLen, walked forward to the
// nearest UTF-8 rune boundary so an ANSI-escaped terminal writer never
// receives a truncated multi-byte rune mid-sequence.
func SuffixBytes(b []byte, prevLen int) []byte {
	if prevLen <= 0 {
		return b
	}
	if prevLen >= len(b) {
		return nil
	}
	start := prevLen
	for start < len(b) && !utf8.RuneStart(b[start]) {
		start++
	}
	return b[start:]
}
