// Package bus publishes ledger/automation state to terminal-UI subscribers
// over a local socket.
package bus

import "time"

// RunState is the automation engine's coarse run/pause mode.
type RunState struct {
	Mode    string `json:"mode"`
	Running bool   `json:"running"`
}

// BalanceView is a single account row for display.
type BalanceView struct {
	Exchange  string `json:"exchange"`
	Asset     string `json:"asset"`
	Available string `json:"available"`
	Total     string `json:"total"`
}

// TradeView is one recent trade row, newest-first.
type TradeView struct {
	Timestamp string `json:"timestamp"`
	Exchange  string `json:"exchange"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Amount    string `json:"amount"`
	Price     float64 `json:"price"`
}

// SwapEval is one evaluated candidate swap decision for display.
type SwapEval struct {
	Symbol     string  `json:"symbol"`
	Score      float64 `json:"score"`
	Executed   bool    `json:"executed"`
	Reason     string  `json:"reason,omitempty"`
}

// Data is the payload body of an Update "UI data".
type Data struct {
	Balances           []BalanceView  `json:"balances"`
	RecentTrades       []TradeView    `json:"recent_trades"`
	Prices             map[string]float64 `json:"prices"`
	SwapEvals          []SwapEval     `json:"swap_evals"`
	ErrorCount         int64          `json:"error_count"`
	CircuitBreakerOpen bool           `json:"circuit_breaker_open"`
	LastExecTs         time.Time      `json:"last_exec_ts"`
	NextExecTs         time.Time      `json:"next_exec_ts"`
}

// Update is the full state frame published to TUI subscribers. seq is
// strictly monotonic per publisher run.
type Update struct {
	Seq   uint64    `json:"seq"`
	Ts    time.Time `json:"ts"`
	State RunState  `json:"state"`
	Data  Data      `json:"data"`
}

// FrameType distinguishes the wire frames
type FrameType string

const (
	FrameInitialRender FrameType = "initialRender"
	FrameUpdateRender  FrameType = "updateRender"
	FrameStateChange   FrameType = "stateChange"
	FrameDiffRender    FrameType = "diffRender"
)

// Frame wraps an Update with its wire-level type tag. The
// publisher always sends FrameUpdateRender frames for live updates and
// FrameInitialRender for the connect-time replay; FrameStateChange and
// FrameDiffRender are reserved for the TUI-side renderer to emit on its own
// loopback channel, not produced by StatePublisher itself.
type Frame struct {
	Type   FrameType `json:"type"`
	Update Update    `json:"update"`
}

// RecentTradesCap is a 50-entry limit for Data.RecentTrades; Publish does
// not truncate RecentTrades to it.
const RecentTradesCap = 50
