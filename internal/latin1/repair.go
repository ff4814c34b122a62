// Package latin1 repairs text where a Latin-1 character was encoded as UTF-8
// and then decoded again as Latin-1, leaving "Ã" followed by a stray
// continuation character (for example "Ã©" instead of "é").
package latin1

import "strings"

const (
	marker   = 'Ã' // U+00C3, the UTF-8 lead byte 0xC3 read as Latin-1
	contLow  = 0x80
	contHigh = 0xBF
)

// Repair collapses every marker+continuation pair into the intended rune.
// Pairs that do not match are emitted unchanged. Unrelated text that happens
// to contain the same pair is rewritten too.
func Repair(s string) string {
	if !strings.ContainsRune(s, marker) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == marker && i+1 < len(runes) {
			next := runes[i+1]
			if next >= contLow && next <= contHigh {
				b.WriteRune(0xC0 + (next - contLow))
			} else {
				// The pair is consumed either way; no backtracking.
				b.WriteRune(r)
				b.WriteRune(next)
			}
			i++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
