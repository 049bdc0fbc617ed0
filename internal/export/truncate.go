package export

import (
	"math"
	"strings"
)

// Ellipsis marks truncated text.
const Ellipsis = "…"

// sentenceEnds are the break runes kept at the end of truncated text.
const sentenceEnds = "。！？.!?"

// TruncateMemo shortens s to at most limit runes plus Ellipsis. It cuts after
// the last sentence end or line break found at or beyond ceil(limit*minRatio);
// with no such break it cuts hard at limit.
//
// Postcondition: s is returned unchanged when it fits or limit <= 0.
func TruncateMemo(s string, limit int, minRatio float64) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	minPos := int(math.Ceil(float64(limit) * minRatio))
	for i := limit - 1; i >= minPos && i >= 0; i-- {
		switch {
		case strings.ContainsRune(sentenceEnds, runes[i]):
			return string(runes[:i+1]) + Ellipsis
		case runes[i] == '\n':
			return strings.TrimRight(string(runes[:i]), "\r") + Ellipsis
		}
	}
	return string(runes[:limit]) + Ellipsis
}
