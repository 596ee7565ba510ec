package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/luxfi/smartvestor/internal/ledger"
	xlog "github.com/luxfi/smartvestor/log"
)

// defaultCutoverStateFile persists the controller's phase between separate
// `cutover` invocations, the same JSON-sidecar pattern as
// .automation-state.json and the panel config.
const defaultCutoverStateFile = ".cutover-state.json"

type cutoverStateFile struct {
	Phase ledger.CutoverPhase `json:"phase"`
}

func loadCutoverController(path string) (*ledger.CutoverController, error) {
	c := ledger.NewCutoverController(xlog.Root())
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cutover state: %w", err)
	}
	var st cutoverStateFile
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("parse cutover state: %w", err)
	}
	// Advance only steps one phase at a time, so fast-forward from the
	// fresh mirror phase up to whatever was last persisted.
	order := []ledger.CutoverPhase{ledger.PhaseReadShadow, ledger.PhaseDisableShadow}
	for _, phase := range order {
		if c.Phase() == st.Phase {
			break
		}
		if err := c.Advance(context.Background(), phase); err != nil {
			return nil, fmt.Errorf("replay persisted phase %q: %w", st.Phase, err)
		}
	}
	return c, nil
}

func saveCutoverController(path string, c *ledger.CutoverController) error {
	b, err := json.MarshalIndent(cutoverStateFile{Phase: c.Phase()}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

var cutoverCommand = &cli.Command{
	Name:  "cutover",
	Usage: "drive the legacy-to-ledger cutover phase machine",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "state-file", Value: defaultCutoverStateFile, Usage: "path the current cutover phase is persisted to"},
	},
	Subcommands: []*cli.Command{
		{
			Name:  "status",
			Usage: "print the current cutover phase",
			Action: func(c *cli.Context) error {
				ctrl, err := loadCutoverController(c.String("state-file"))
				if err != nil {
					return err
				}
				fmt.Printf("phase=%s mirror_writes=%t read_from_ledger=%t shadow_writes_disabled=%t\n",
					ctrl.Phase(), ctrl.MirrorWrites(), ctrl.ReadFromLedger(), ctrl.ShadowWritesDisabled())
				return nil
			},
		},
		{
			Name:      "advance",
			Usage:     "advance to the next cutover phase (read_shadow | disable_shadow)",
			ArgsUsage: "<target-phase>",
			Action: func(c *cli.Context) error {
				target := ledger.CutoverPhase(c.Args().First())
				if target == "" {
					return fmt.Errorf("advance requires a target phase argument")
				}
				ctrl, err := loadCutoverController(c.String("state-file"))
				if err != nil {
					return err
				}
				if err := ctrl.Advance(c.Context, target); err != nil {
					return err
				}
				return saveCutoverController(c.String("state-file"), ctrl)
			},
		},
		{
			Name:  "rollback",
			Usage: "roll back to the mirror phase",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "reason", Value: "operator requested rollback"},
			},
			Action: func(c *cli.Context) error {
				ctrl, err := loadCutoverController(c.String("state-file"))
				if err != nil {
					return err
				}
				ctrl.Rollback(c.Context, c.String("reason"))
				return saveCutoverController(c.String("state-file"), ctrl)
			},
		},
	},
}
