package tui

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/luxfi/smartvestor/internal/bus"
)

// PanelType enumerates the panel kinds.
type PanelType string

const (
	PanelStatus   PanelType = "status"
	PanelBalances PanelType = "balances"
	PanelActivity PanelType = "activity"
	PanelPrice    PanelType = "price"
	PanelSwap     PanelType = "swap"
	PanelLogs     PanelType = "logs"
	PanelCustom   PanelType = "custom"
)

// normalizePanel resolves the "balance ≡ balances" alias.
func normalizePanel(p PanelType) PanelType {
	if p == "balance" {
		return PanelBalances
	}
	return p
}

// ErrNoPanelsVisible guards the "at least one panel visible" invariant.
var ErrNoPanelsVisible = errors.New("tui: cannot hide the last visible panel")

// PanelConfig is the persisted shape:
// `{ visibility: {panel: bool}, selectedPanel: panel? }`.
type PanelConfig struct {
	Visibility    map[PanelType]bool `json:"visibility"`
	SelectedPanel PanelType          `json:"selectedPanel"`
}

// DefaultPanelConfigPath is the per-user config file.
func DefaultPanelConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "smartvestor", "tui-panel-config.json")
}

// PanelToggleManager owns panel visibility/selection and persists it to a
// per-user JSON file.
type PanelToggleManager struct {
	path    string
	visible mapset.Set[PanelType]
	order   []PanelType
	selected PanelType
}

var allPanelTypes = []PanelType{
	PanelStatus, PanelBalances, PanelActivity, PanelPrice, PanelSwap, PanelLogs,
}

// NewPanelToggleManager loads config from path (DefaultPanelConfigPath if
// empty), defaulting to every panel visible and "status" selected if no
// file exists yet.
func NewPanelToggleManager(path string) (*PanelToggleManager, error) {
	if path == "" {
		path = DefaultPanelConfigPath()
	}
	m := &PanelToggleManager{
		path:    path,
		visible: mapset.NewThreadUnsafeSet[PanelType](allPanelTypes...),
		order:   append([]PanelType(nil), allPanelTypes...),
		selected: PanelStatus,
	}
	if cfg, err := loadPanelConfig(path); err == nil {
		m.applyConfig(cfg)
	}
	return m, nil
}

func loadPanelConfig(path string) (PanelConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return PanelConfig{}, err
	}
	var cfg PanelConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return PanelConfig{}, err
	}
	return cfg, nil
}

func (m *PanelToggleManager) applyConfig(cfg PanelConfig) {
	if len(cfg.Visibility) == 0 {
		return
	}
	m.visible.Clear()
	for p, v := range cfg.Visibility {
		if v {
			m.visible.Add(normalizePanel(p))
		}
	}
	if m.visible.Cardinality() == 0 {
		m.visible.Add(PanelStatus)
	}
	sel := normalizePanel(cfg.SelectedPanel)
	if m.visible.Contains(sel) {
		m.selected = sel
	} else {
		m.selected = m.firstVisible()
	}
}

func (m *PanelToggleManager) firstVisible() PanelType {
	for _, p := range m.order {
		if m.visible.Contains(p) {
			return p
		}
	}
	return PanelStatus
}

// Toggle flips visibility of p. Hiding the last visible panel is rejected
// with ErrNoPanelsVisible.
func (m *PanelToggleManager) Toggle(p PanelType) error {
	p = normalizePanel(p)
	if m.visible.Contains(p) {
		if m.visible.Cardinality() == 1 {
			return ErrNoPanelsVisible
		}
		m.visible.Remove(p)
		if m.selected == p {
			m.selected = m.firstVisible()
		}
		return nil
	}
	m.visible.Add(p)
	return nil
}

// Visible reports whether p is currently shown.
func (m *PanelToggleManager) Visible(p PanelType) bool {
	return m.visible.Contains(normalizePanel(p))
}

// Selected returns the currently focused panel.
func (m *PanelToggleManager) Selected() PanelType { return m.selected }

// FocusNext/FocusPrev move selection along the ring of visible panels.
func (m *PanelToggleManager) FocusNext() { m.moveFocus(1) }
func (m *PanelToggleManager) FocusPrev() { m.moveFocus(-1) }

func (m *PanelToggleManager) moveFocus(delta int) {
	visible := m.visibleOrder()
	if len(visible) == 0 {
		return
	}
	idx := 0
	for i, p := range visible {
		if p == m.selected {
			idx = i
			break
		}
	}
	idx = ((idx+delta)%len(visible) + len(visible)) % len(visible)
	m.selected = visible[idx]
}

func (m *PanelToggleManager) visibleOrder() []PanelType {
	var out []PanelType
	for _, p := range m.order {
		if m.visible.Contains(p) {
			out = append(out, p)
		}
	}
	return out
}

// Save persists the current config to disk.
func (m *PanelToggleManager) Save() error {
	cfg := PanelConfig{Visibility: make(map[PanelType]bool), SelectedPanel: m.selected}
	for _, p := range m.order {
		cfg.Visibility[p] = m.visible.Contains(p)
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.path, b, 0o644)
}

// RenderedPanel is the pure-function output of a panel renderer.
type RenderedPanel struct {
	Lines  []string
	Width  int
	Height int
}

// Layout describes a panel's allotted screen region.
type Layout struct {
	X, Y, Width, Height int
}

// PanelRenderer is the pure-function signature:
// `(update, layout, color, border_style, unicode_supported, focused,
// scroll_offset) -> RenderedPanel`.
type PanelRenderer func(update bus.Update, layout Layout, color bool, borderStyle string, unicodeSupported bool, focused bool, scrollOffset int) RenderedPanel
