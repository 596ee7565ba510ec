package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/smartvestor/internal/automation"
	"github.com/luxfi/smartvestor/internal/bus"
	"github.com/luxfi/smartvestor/internal/config"
	"github.com/luxfi/smartvestor/internal/ledger"
	"github.com/luxfi/smartvestor/internal/tui"
	xlog "github.com/luxfi/smartvestor/log"
)

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "start the ledger core, state publisher, and terminal UI client",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: config.ExecutionEngineWritesKey, Value: true, Usage: "allow the execution engine to submit ledger writes"},
		&cli.StringFlag{Name: config.StateSocketKey, Value: bus.DefaultSocketPath, Usage: "unix socket path the state publisher listens on"},
		&cli.StringFlag{Name: config.PIDFileKey, Value: ".automation.pid", Usage: "process lock file path"},
		&cli.StringFlag{Name: config.PanelConfigPathKey, Usage: "panel visibility config path"},
		&cli.IntFlag{Name: config.BytesCapKey, Value: tui.DefaultBytesCap, Usage: "max bytes written per render frame"},
		&cli.StringFlag{Name: config.LogLevelKey, Value: "info", Usage: "log level: trace|debug|info|warn|error|crit"},
		&cli.StringFlag{Name: config.LogFileKey, Usage: "rotating log file path (stderr if empty)"},
		&cli.BoolFlag{Name: config.PerfDetailedKey, Usage: "pass an internal/tui vmodule rule to the glog-style handler (stored, not applied to filtering)"},
	},
	Action: func(c *cli.Context) error {
		cfg, err := configFromCLI(c)
		if err != nil {
			return err
		}
		return runLedgerAndTUI(c.Context, cfg)
	},
}

// configFromCLI seeds a pflag.FlagSet with the urfave/cli flag values
// already parsed from argv, then runs it through config.BuildViper so
// env-var precedence (TUI_*, EXECUTIONENGINE_WRITES) still applies on top
// of whatever the CLI didn't explicitly set.
func configFromCLI(c *cli.Context) (*config.Config, error) {
	fs := config.BuildFlagSet()
	for _, name := range []string{
		config.ExecutionEngineWritesKey, config.StateSocketKey, config.PIDFileKey,
		config.PanelConfigPathKey, config.BytesCapKey,
		config.LogLevelKey, config.LogFileKey, config.PerfDetailedKey,
	} {
		if !c.IsSet(name) {
			continue
		}
		if err := fs.Set(name, c.String(name)); err != nil {
			return nil, fmt.Errorf("flag %s: %w", name, err)
		}
	}

	v, err := config.BuildViper(fs, nil)
	if err != nil {
		return nil, err
	}
	return config.BuildConfig(v)
}

// buildLogger installs the process-wide handler chain: a terminal or
// rotating-file base handler gated at cfg.LogLevel, wrapped in a glog-style
// verbosity handler at the same level. --tui-perf-detailed hands that
// handler an internal/tui vmodule rule, which it validates and stores; the
// handler filters by level only, so the rule does not change what is logged.
func buildLogger(cfg *config.Config) (xlog.Logger, error) {
	level, err := xlog.LvlFromString(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.LogLevelKey, err)
	}
	lv := &slog.LevelVar{}
	lv.Set(level)

	var base slog.Handler
	if cfg.LogFile != "" {
		base = xlog.RotatingFileHandler(cfg.LogFile, 100, 5, 28, lv)
	} else {
		base = xlog.NewTerminalHandlerWithLevel(os.Stderr, lv, true)
	}

	vmodule := ""
	if cfg.PerfDetailed {
		vmodule = "internal/tui=5"
	}
	handler, err := xlog.NewVerbosityHandler(base, level, vmodule)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", config.PerfDetailedKey, err)
	}
	xlog.SetDefault(xlog.NewLogger(handler))
	return xlog.Root(), nil
}

func runLedgerAndTUI(ctx context.Context, cfg *config.Config) error {
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	scales := ledger.NewScaleRegistry()
	_ = scales.Set("usd", 2, false)
	_ = scales.Set("btc", 8, false)
	_ = scales.Set("eth", 8, false)
	scales.Freeze()

	store := ledger.NewStore(scales, logger)
	store.Start(ctx)
	defer store.Close()

	breaker := ledger.NewCircuitBreaker(ledger.DefaultBreakerConfig("ledger-writes"))
	store.SetBreaker(breaker)
	store.SetThrottle(ledger.NewBackpressureThrottle(200*time.Millisecond, 10_000))

	reg := prometheus.NewRegistry()
	slo := ledger.NewSLOMonitor(ledger.DefaultSLOTarget(), reg, logger)

	pub, err := bus.NewPublisher(cfg.StateSocket, logger)
	if err != nil {
		return fmt.Errorf("start state publisher: %w", err)
	}

	lock := automation.NewProcessLock(cfg.PIDFile)
	states := automation.NewStateStore(".automation-state.json")

	mode := automation.ModeLive
	if !cfg.ExecutionEngineWrites {
		mode = automation.ModeDryRun
	}
	engine := automation.NewEngine(automation.EngineConfig{
		Store:           store,
		Publisher:       pub,
		SLO:             slo,
		Breaker:         breaker,
		PublishInterval: time.Second,
		Mode:            mode,
	}, states, lock, logger)

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	pub.Start(gctx, g)
	if err := engine.Run(gctx, g); err != nil {
		return fmt.Errorf("start automation engine: %w", err)
	}
	g.Go(func() error { return runTUIClient(gctx, cfg) })

	return g.Wait()
}

// runTUIClient dials the local state socket and renders incoming frames
// to the terminal sink, diffing each frame against the prior one, closing
// the StatePublisher → TUIRuntime → TerminalSink leg of the pipeline.
func runTUIClient(ctx context.Context, cfg *config.Config) error {
	sink := tui.NewSink(os.Stdout)
	defer sink.Close()
	if sink.IsTTY() {
		if err := sink.EnterAltScreen(); err != nil {
			return err
		}
	}

	panels, err := tui.NewPanelToggleManager(cfg.PanelConfigPath)
	if err != nil {
		return err
	}

	diff := tui.NewDiffRenderer(cfg.BytesCap)
	prev := tui.NewBuffer(80, 24)

	client := newStateClient(cfg.StateSocket)
	defer client.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-client.frames:
			if !ok {
				return nil
			}
			cur := renderFrame(frame, panels, 80, 24)
			if err := diff.Render(sink, prev, cur); err != nil {
				return err
			}
			prev = cur
		}
	}
}
