package telegram

import (
	"strings"
	"unicode/utf8"
)

// maxMessageLength is the Bot API limit for one sendMessage text.
const maxMessageLength = 4096

// splitMessage packs whole lines into chunks of at most limit runes, so
// update links are never cut. Only a single line longer than limit is
// broken, at rune boundaries.
func splitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = maxMessageLength
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		n      int
	)
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			n = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		size := utf8.RuneCountInString(line)
		if n+size > limit {
			flush()
		}
		for size > limit {
			head, tail := cutRunes(line, limit)
			chunks = append(chunks, head)
			line, size = tail, size-limit
		}
		cur.WriteString(line)
		n += size
	}
	flush()
	return chunks
}

// cutRunes splits s after its first n runes.
func cutRunes(s string, n int) (string, string) {
	for i := range s {
		if n == 0 {
			return s[:i], s[i:]
		}
		n--
	}
	return s, ""
}
