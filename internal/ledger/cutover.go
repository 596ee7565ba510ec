package ledger

import (
	"context"
	"errors"
	"sync"

	xlog "github.com/luxfi/smartvestor/log"
)

// CutoverPhase is a stage in the legacy-to-ledger migration.
type CutoverPhase string

const (
	PhaseMirror         CutoverPhase = "mirror"
	PhaseReadShadow      CutoverPhase = "read_shadow"
	PhaseDisableShadow   CutoverPhase = "disable_shadow"
	PhaseRollback        CutoverPhase = "rollback"
)

var ErrInvalidPhaseTransition = errors.New("ledger: invalid cutover phase transition")

// phaseFlags captures the three independent write/read switches each phase
// sets, per the Open Question decision in DESIGN.md: rollback always
// restores mirrorWrites=true, readFromLedger=false, disableShadowWrites=false
// — i.e. rollback is "as if disable_shadow never happened", not a bare
// phase-name revert.
type phaseFlags struct {
	mirrorWrites        bool
	readFromLedger       bool
	disableShadowWrites  bool
}

var phaseTable = map[CutoverPhase]phaseFlags{
	PhaseMirror:        {mirrorWrites: true, readFromLedger: false, disableShadowWrites: false},
	PhaseReadShadow:    {mirrorWrites: true, readFromLedger: true, disableShadowWrites: false},
	PhaseDisableShadow: {mirrorWrites: true, readFromLedger: true, disableShadowWrites: true},
	PhaseRollback:      {mirrorWrites: true, readFromLedger: false, disableShadowWrites: false},
}

// validForward lists the only forward transitions; rollback is reachable
// from any phase.
var validForward = map[CutoverPhase]CutoverPhase{
	PhaseMirror:      PhaseReadShadow,
	PhaseReadShadow:  PhaseDisableShadow,
}

// CutoverController drives the migration phase machine and exposes the
// write/read flags of the current phase.
type CutoverController struct {
	log xlog.Logger

	mu    sync.RWMutex
	phase CutoverPhase
}

// NewCutoverController starts in PhaseMirror, the only valid entry phase.
func NewCutoverController(logger xlog.Logger) *CutoverController {
	if logger == nil {
		logger = xlog.Root()
	}
	return &CutoverController{log: logger, phase: PhaseMirror}
}

// Phase returns the current phase.
func (c *CutoverController) Phase() CutoverPhase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Advance moves to the next forward phase. Only mirror->read_shadow and
// read_shadow->disable_shadow are valid; any other target returns
// ErrInvalidPhaseTransition.
func (c *CutoverController) Advance(ctx context.Context, target CutoverPhase) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if next, ok := validForward[c.phase]; !ok || next != target {
		return ErrInvalidPhaseTransition
	}
	c.log.Info("cutover: advancing phase", "from", c.phase, "to", target)
	c.phase = target
	return nil
}

// Rollback reverts to PhaseMirror from any phase, restoring
// mirror-writes-only, read-from-legacy behavior. This is a one-way escape
// hatch: Advance must be called again from PhaseMirror to re-enter
// read_shadow, there is no "resume where rollback interrupted".
func (c *CutoverController) Rollback(ctx context.Context, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.Warn("cutover: rollback triggered", "from", c.phase, "reason", reason)
	c.phase = PhaseMirror
}

// MirrorWrites reports whether writes should be mirrored into the ledger
// store alongside the legacy path.
func (c *CutoverController) MirrorWrites() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return phaseTable[c.phase].mirrorWrites
}

// ReadFromLedger reports whether reads should be served from the ledger
// store instead of the legacy system.
func (c *CutoverController) ReadFromLedger() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return phaseTable[c.phase].readFromLedger
}

// ShadowWritesDisabled reports whether the legacy write path has been
// retired (only true once disable_shadow is reached).
func (c *CutoverController) ShadowWritesDisabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return phaseTable[c.phase].disableShadowWrites
}
