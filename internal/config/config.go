// Package config loads smartvestor's process configuration from flags and
// environment variables, with explicitly set flags taking precedence over
// env which takes precedence over flag defaults — the same viper/pflag
// wiring the upstream CLI commands use. No config file is read.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ExecutionEngineWritesKey = "execution-engine-writes"
	StateSocketKey           = "state-socket"
	PIDFileKey               = "pid-file"
	PanelConfigPathKey       = "panel-config"
	LogLevelKey              = "log-level"
	LogFileKey               = "log-file"

	BytesCapKey     = "tui-bytes-cap"
	TailEditKey     = "tui-tail-edit"
	WidthCacheKey   = "tui-width-cache"
	DirtyGraphKey   = "tui-dirty-graph"
	DamageRectsKey  = "tui-damage-rects"
	PerfDetailedKey = "tui-perf-detailed"
)

// BuildFlagSet declares every flag smartvestor's commands accept. Flag
// names use dashes; viper normalizes them to the keys above.
func BuildFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("smartvestor", pflag.ContinueOnError)
	fs.Bool(ExecutionEngineWritesKey, true, "allow the execution engine to submit ledger writes")
	fs.String(StateSocketKey, "/tmp/smartvestor-tui.sock", "unix socket path the state publisher listens on")
	fs.String(PIDFileKey, ".automation.pid", "process lock file path")
	fs.String(PanelConfigPathKey, "", "panel visibility config path (defaults to $HOME/.config/smartvestor/tui-panel-config.json)")
	fs.String(LogLevelKey, "info", "log level: trace|debug|info|warn|error|crit")
	fs.String(LogFileKey, "", "rotating log file path (stderr if empty)")

	fs.Int(BytesCapKey, 6144, "max bytes written per render frame")
	fs.Bool(TailEditKey, true, "tail-edit diff fast path toggle (parsed only; the diff renderer does not read it)")
	fs.Bool(WidthCacheKey, true, "cell-width memoization cache toggle (parsed only; the width cache does not read it)")
	fs.Bool(DirtyGraphKey, true, "dirty-node-set culling toggle (parsed only; the render graph does not read it)")
	fs.Bool(DamageRectsKey, true, "damage-rect coalescing toggle (parsed only; the diff renderer does not read it)")
	fs.Bool(PerfDetailedKey, false, "pass an internal/tui vmodule rule to the glog-style log handler")
	return fs
}

// BuildViper parses args against fs, binds every flag, and layers in the
// TUI_*/EXECUTIONENGINE_WRITES environment variables.
func BuildViper(fs *pflag.FlagSet, args []string) (*viper.Viper, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	envBindings := map[string]string{
		ExecutionEngineWritesKey: "EXECUTIONENGINE_WRITES",
		BytesCapKey:              "TUI_BYTES_CAP",
		TailEditKey:              "TUI_TAIL_EDIT",
		WidthCacheKey:            "TUI_WIDTH_CACHE",
		DirtyGraphKey:            "TUI_DIRTY_GRAPH",
		DamageRectsKey:           "TUI_DAMAGE_RECTS",
		PerfDetailedKey:          "TUI_PERF_DETAILED",
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return v, nil
}

// Config is the resolved process configuration. TailEdit, WidthCache,
// DirtyGraph and DamageRects are resolved but no component reads them: the
// tui package always runs with those features on.
type Config struct {
	ExecutionEngineWrites bool
	StateSocket           string
	PIDFile               string
	PanelConfigPath       string
	LogLevel              string
	LogFile               string

	BytesCap     int
	TailEdit     bool
	WidthCache   bool
	DirtyGraph   bool
	DamageRects  bool
	PerfDetailed bool
}

// BuildConfig materializes a Config from a fully-bound viper instance.
// Loose env-var coercion ("1"/"true" → bool) goes through spf13/cast so a
// TUI_TAIL_EDIT=0 in the environment behaves the same as a flag.
func BuildConfig(v *viper.Viper) (*Config, error) {
	writes, err := cast.ToBoolE(v.Get(ExecutionEngineWritesKey))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ExecutionEngineWritesKey, err)
	}
	tailEdit, err := cast.ToBoolE(v.Get(TailEditKey))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TailEditKey, err)
	}
	widthCache, err := cast.ToBoolE(v.Get(WidthCacheKey))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", WidthCacheKey, err)
	}
	dirtyGraph, err := cast.ToBoolE(v.Get(DirtyGraphKey))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", DirtyGraphKey, err)
	}
	damageRects, err := cast.ToBoolE(v.Get(DamageRectsKey))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", DamageRectsKey, err)
	}
	perfDetailed, err := cast.ToBoolE(v.Get(PerfDetailedKey))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PerfDetailedKey, err)
	}
	bytesCap, err := cast.ToIntE(v.Get(BytesCapKey))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", BytesCapKey, err)
	}

	return &Config{
		ExecutionEngineWrites: writes,
		StateSocket:           v.GetString(StateSocketKey),
		PIDFile:               v.GetString(PIDFileKey),
		PanelConfigPath:       v.GetString(PanelConfigPathKey),
		LogLevel:              v.GetString(LogLevelKey),
		LogFile:               v.GetString(LogFileKey),
		BytesCap:              bytesCap,
		TailEdit:              tailEdit,
		WidthCache:            widthCache,
		DirtyGraph:            dirtyGraph,
		DamageRects:           damageRects,
		PerfDetailed:          perfDetailed,
	}, nil
}

// DefaultExpiryCheckInterval is a fixed 500ms interval. No package reads
// it: the ledger's expiry scheduler does not sweep on an interval but
// sleeps until the earliest pending deadline.
const DefaultExpiryCheckInterval = 500 * time.Millisecond
