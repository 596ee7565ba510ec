package tui

import (
	"sync/atomic"
	"unicode/utf8"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/mattn/go-runewidth"
)

// TerminalEnv parameterizes width rules: whether CJK ranges count double
// and how wide a tab stops.
type TerminalEnv struct {
	CJK      bool
	TabWidth int
}

const widthCacheSizeBytes = 4 << 20 // 4MB, sized for the grapheme-width hot set

// CellWidth memoizes grapheme-cluster width measurement with a hit-rate
// target of ≥85%. Backed by fastcache: a byte-keyed, sharded, fixed-size
// cache with no per-entry eviction bookkeeping.
type CellWidth struct {
	cache *fastcache.Cache

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCellWidth allocates a memoizing width calculator.
func NewCellWidth() *CellWidth {
	return &CellWidth{cache: fastcache.New(widthCacheSizeBytes)}
}

// Width returns the number of terminal cells grapheme consumes under env.
func (c *CellWidth) Width(grapheme string, env TerminalEnv) int {
	key := widthCacheKey(grapheme, env)
	if buf := c.cache.Get(nil, key); buf != nil {
		c.hits.Add(1)
		return int(buf[0])
	}
	c.misses.Add(1)
	w := measureWidth(grapheme, env)
	if w >= 0 && w <= 255 {
		c.cache.Set(key, []byte{byte(w)})
	}
	return w
}

// HitRate returns the cumulative cache hit rate in [0,1].
func (c *CellWidth) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func widthCacheKey(grapheme string, env TerminalEnv) []byte {
	key := make([]byte, 0, len(grapheme)+2)
	key = append(key, grapheme...)
	key = append(key, boolByte(env.CJK), byte(env.TabWidth))
	return key
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// measureWidth implements the rule table directly, falling
// back to go-runewidth for the East-Asian-width classification the rules
// don't special-case.
func measureWidth(grapheme string, env TerminalEnv) int {
	r, size := utf8.DecodeRuneInString(grapheme)
	if r == utf8.RuneError && size <= 1 {
		return 0
	}

	switch {
	case r == '\t':
		if env.TabWidth > 0 {
			return env.TabWidth
		}
		return 8
	case r < 0x20 || r == 0x7F, r >= 0x80 && r <= 0x9F:
		return 0 // C0/C1 control and DEL
	case r >= 0x0300 && r <= 0x036F: // combining diacritics
		return 0
	case r >= 0x200B && r <= 0x200D: // ZWJ/ZWSP/ZWNJ
		return 0
	case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		return 0
	case r >= 0x2500 && r <= 0x257F: // box drawing
		return 1
	case r < 0x80:
		return 1
	}

	rw := runewidth.RuneWidth(r)
	if rw == 2 && !env.CJK && isCJKRange(r) {
		return 1
	}
	if rw <= 0 {
		return 1
	}
	return rw
}

// isCJKRange reports whether r falls in a CJK block whose width is
// conditional on env.CJK ("CJK ranges count as 2 only
// when cjk=true"); explicit full-width forms (fullwidth ASCII variants,
// etc.) stay width 2 unconditionally via go-runewidth above this check.
func isCJKRange(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	case r >= 0x3040 && r <= 0x30FF: // Hiragana/Katakana
		return true
	case r >= 0xAC00 && r <= 0xD7A3: // Hangul syllables
		return true
	case r >= 0x3400 && r <= 0x4DBF: // CJK extension A
		return true
	}
	return false
}

// StringWidth sums Width over each rune of s, treating every rune as its
// own cluster (no grapheme segmentation). Provided for the monotonicity test:
// width(a+b) = width(a) + width(b) for disjoint clusters.
func (c *CellWidth) StringWidth(s string, env TerminalEnv) int {
	total := 0
	for _, r := range s {
		total += c.Width(string(r), env)
	}
	return total
}
