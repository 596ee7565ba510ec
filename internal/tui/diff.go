package tui

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// DefaultBytesCap is the per-frame byte budget (TUI_BYTES_CAP default).
const DefaultBytesCap = 6144

// Rect is a damage rectangle in cell coordinates, [Y0,Y1) x [X0,X1).
type Rect struct {
	X0, Y0, X1, Y1 int
}

func (r Rect) overlapsOrAbuts(o Rect) bool {
	if r.Y0 != o.Y0 || r.Y1 != o.Y1 {
		// only merge rects sharing the same row band
		return r.intersects(o)
	}
	return r.intersects(o) || r.X1 == o.X0 || o.X1 == r.X0
}

func (r Rect) intersects(o Rect) bool {
	return r.X0 < o.X1 && o.X0 < r.X1 && r.Y0 < o.Y1 && o.Y0 < r.Y1
}

func (r Rect) union(o Rect) Rect {
	return Rect{
		X0: min(r.X0, o.X0), Y0: min(r.Y0, o.Y0),
		X1: max(r.X1, o.X1), Y1: max(r.Y1, o.Y1),
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// DiffRenderer converts two TerminalBuffers into a single bounded byte
// stream for the sink: tail-edit fast path, damage
// rects, line diff, full redraw, in that priority order, never exceeding
// one write per frame.
type DiffRenderer struct {
	bytesCap int

	tailHits   int64
	tailTotal  int64
}

// NewDiffRenderer builds a renderer with the given byte cap (0 = default).
func NewDiffRenderer(bytesCap int) *DiffRenderer {
	if bytesCap <= 0 {
		bytesCap = DefaultBytesCap
	}
	return &DiffRenderer{bytesCap: bytesCap}
}

// TailFastpathHitRate reports the cumulative fraction of changed lines
// that qualified for the tail-edit fast path (target ≥70%).
func (d *DiffRenderer) TailFastpathHitRate() float64 {
	if d.tailTotal == 0 {
		return 0
	}
	return float64(d.tailHits) / float64(d.tailTotal)
}

// Render picks a strategy and writes at most one frame to w.
func (d *DiffRenderer) Render(w io.Writer, prev, cur *Buffer) error {
	var buf strings.Builder

	if !cur.SameSize(prev) {
		d.fullRedraw(&buf, cur)
		return d.flush(w, buf.String())
	}

	changes := cur.Diff(prev)
	if len(changes) == 0 {
		return nil
	}

	if d.tryTailEdit(&buf, prev, cur, changes) {
		return d.flush(w, buf.String())
	}

	buf.Reset()
	rects := damageRects(changes, cur.Width)
	if len(rects) > 0 && len(rects) < len(changes) {
		d.renderRects(&buf, cur, rects)
		if buf.Len() <= d.bytesCap {
			return d.flush(w, buf.String())
		}
	}

	buf.Reset()
	d.renderLineDiff(&buf, changes)
	if buf.Len() <= d.bytesCap {
		return d.flush(w, buf.String())
	}

	buf.Reset()
	d.fullRedraw(&buf, cur)
	return d.flush(w, buf.String())
}

// tryTailEdit implements the tail-edit fast path: only viable when exactly
// one line changed and the common prefix covers ≥90% of min(len_prev,
// len_cur).
func (d *DiffRenderer) tryTailEdit(buf *strings.Builder, prev, cur *Buffer, changes []LineChange) bool {
	if len(changes) != 1 {
		return false
	}
	d.tailTotal++
	row := changes[0].Row
	prevLine := prev.Line(row)
	curLine := changes[0].Line

	prevRunes := []rune(prevLine.Text)
	curRunes := []rune(curLine.Text)
	commonLen := 0
	for commonLen < len(prevRunes) && commonLen < len(curRunes) && prevRunes[commonLen] == curRunes[commonLen] {
		commonLen++
	}
	minLen := len(prevRunes)
	if len(curRunes) < minLen {
		minLen = len(curRunes)
	}
	if minLen == 0 || float64(commonLen)/float64(minLen) < 0.90 {
		return false
	}

	d.tailHits++
	fmt.Fprintf(buf, "\x1b[%d;%dH", row+1, commonLen+1)
	fmt.Fprint(buf, string(curRunes[commonLen:]))
	if len(curRunes) < len(prevRunes) {
		fmt.Fprint(buf, "\x1b[K") // erase-to-EOL
	}
	return true
}

// damageRects merges each changed line into a one-row-tall rect, then
// merges rects that intersect or abut within the same row band, sorted
// y-major then x.
func damageRects(changes []LineChange, width int) []Rect {
	rects := make([]Rect, 0, len(changes))
	for _, c := range changes {
		rects = append(rects, Rect{X0: 0, Y0: c.Row, X1: width, Y1: c.Row + 1})
	}
	sort.Slice(rects, func(i, j int) bool {
		if rects[i].Y0 != rects[j].Y0 {
			return rects[i].Y0 < rects[j].Y0
		}
		return rects[i].X0 < rects[j].X0
	})

	merged := make([]Rect, 0, len(rects))
	for _, r := range rects {
		if len(merged) > 0 && merged[len(merged)-1].overlapsOrAbuts(r) {
			merged[len(merged)-1] = merged[len(merged)-1].union(r)
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

func (d *DiffRenderer) renderRects(buf *strings.Builder, cur *Buffer, rects []Rect) {
	for _, r := range rects {
		for row := r.Y0; row < r.Y1; row++ {
			fmt.Fprintf(buf, "\x1b[%d;%dH", row+1, r.X0+1)
			fmt.Fprint(buf, "\x1b[K")
			fmt.Fprint(buf, cur.Line(row).Text)
		}
	}
}

func (d *DiffRenderer) renderLineDiff(buf *strings.Builder, changes []LineChange) {
	for _, c := range changes {
		fmt.Fprintf(buf, "\x1b[%d;1H\x1b[K", c.Row+1)
		fmt.Fprint(buf, c.Line.Text)
	}
}

func (d *DiffRenderer) fullRedraw(buf *strings.Builder, cur *Buffer) {
	fmt.Fprint(buf, "\x1b[H\x1b[2J")
	for row := 0; row < cur.Height; row++ {
		fmt.Fprintf(buf, "\x1b[%d;1H", row+1)
		fmt.Fprint(buf, cur.Line(row).Text)
	}
}

// flush performs the single write-per-frame, retrying short writes on
// EAGAIN with exponential backoff up to 10 times. SIGPIPE handling is the
// sink's responsibility (it installs signal.Ignore for SIGPIPE before any
// write reaches the terminal fd).
func (d *DiffRenderer) flush(w io.Writer, payload string) error {
	if len(payload) > d.bytesCap {
		payload = payload[:d.bytesCap]
	}
	data := []byte(payload)
	backoff := time.Millisecond
	for attempt := 0; attempt < 10; attempt++ {
		n, err := w.Write(data)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		data = data[n:]
		if len(data) == 0 {
			return nil
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return context.DeadlineExceeded
}
