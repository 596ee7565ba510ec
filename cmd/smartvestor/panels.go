package main

import (
	"fmt"

	"github.com/luxfi/smartvestor/internal/bus"
	"github.com/luxfi/smartvestor/internal/tui"
)

// statusPanel renders the run/mode/error-count/circuit-breaker summary
// line, the first row of every frame regardless of which other panels are
// toggled off.
func statusPanel(update bus.Update, layout tui.Layout, color bool, borderStyle string, unicodeSupported bool, focused bool, scrollOffset int) tui.RenderedPanel {
	breaker := "closed"
	if update.Data.CircuitBreakerOpen {
		breaker = "OPEN"
	}
	line := fmt.Sprintf("mode=%s running=%t errors=%d breaker=%s",
		update.State.Mode, update.State.Running, update.Data.ErrorCount, breaker)
	return tui.RenderedPanel{Lines: []string{line}, Width: layout.Width, Height: layout.Height}
}

// balancesPanel renders a header row, then one line per tracked account
// balance in the order the update lists them.
func balancesPanel(update bus.Update, layout tui.Layout, color bool, borderStyle string, unicodeSupported bool, focused bool, scrollOffset int) tui.RenderedPanel {
	lines := make([]string, 0, len(update.Data.Balances)+1)
	lines = append(lines, "exchange   asset  available       total")
	for _, b := range update.Data.Balances {
		lines = append(lines, fmt.Sprintf("%-10s %-6s %-15s %s", b.Exchange, b.Asset, b.Available, b.Total))
	}
	if scrollOffset > 0 && scrollOffset < len(lines) {
		lines = lines[scrollOffset:]
	}
	if len(lines) > layout.Height {
		lines = lines[:layout.Height]
	}
	return tui.RenderedPanel{Lines: lines, Width: layout.Width, Height: layout.Height}
}

var panelRenderers = map[tui.PanelType]tui.PanelRenderer{
	tui.PanelStatus:   statusPanel,
	tui.PanelBalances: balancesPanel,
}

// renderFrame composes every visible, renderable panel into a width x
// height buffer: status pinned to row 0, the remaining panels stacked
// below it in panel declaration order.
func renderFrame(frame bus.Frame, panels *tui.PanelToggleManager, width, height int) *tui.Buffer {
	buf := tui.NewBuffer(width, height)
	row := 0
	order := []tui.PanelType{tui.PanelStatus, tui.PanelBalances}
	for _, p := range order {
		if row >= height || !panels.Visible(p) {
			continue
		}
		renderer, ok := panelRenderers[p]
		if !ok {
			continue
		}
		layout := tui.Layout{X: 0, Y: row, Width: width, Height: height - row}
		rendered := renderer(frame.Update, layout, false, "ascii", false, panels.Selected() == p, 0)
		for _, line := range rendered.Lines {
			if row >= height {
				break
			}
			buf.Write(line, tui.Point{Col: 0, Row: row}, nil)
			row++
		}
	}
	return buf
}
