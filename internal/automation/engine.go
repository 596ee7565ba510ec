package automation

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	xlog "github.com/luxfi/smartvestor/log"

	"github.com/luxfi/smartvestor/internal/bus"
	"github.com/luxfi/smartvestor/internal/ledger"
)

// TrackedAccount names one account the engine snapshots into every
// published Update: the (exchange, asset) pair and the id it was created
// under.
type TrackedAccount struct {
	ID       ledger.AccountID
	Exchange string
	Asset    string
}

// EngineConfig bundles the collaborators Engine wires together. Store,
// Publisher, and SLO are required; Reconciler and Breaker are optional
// (reconciliation and circuit-breaking can be disabled independently).
type EngineConfig struct {
	Store      *ledger.Store
	Publisher  *bus.Publisher
	SLO        *ledger.SLOMonitor
	Reconciler *ledger.Reconciler
	Breaker    *ledger.CircuitBreaker
	Accounts   []TrackedAccount

	ReconcileInterval time.Duration
	PublishInterval   time.Duration
	Mode              Mode
}

// Engine is the process-level wiring loop: it periodically sweeps the
// reconciler, samples circuit-breaker/account state, and publishes a
// bus.Update snapshot for TUI subscribers to render, per the Ingest →
// LedgerCore → StatePublisher → TUIRuntime pipeline.
type Engine struct {
	log xlog.Logger
	cfg EngineConfig

	states *StateStore
	lock   *ProcessLock

	errCount int64
}

// NewEngine binds cfg to the process lock and state-file paths.
func NewEngine(cfg EngineConfig, states *StateStore, lock *ProcessLock, logger xlog.Logger) *Engine {
	if cfg.ReconcileInterval == 0 {
		cfg.ReconcileInterval = 30 * time.Second
	}
	if cfg.PublishInterval == 0 {
		cfg.PublishInterval = time.Second
	}
	if logger == nil {
		logger = xlog.Root()
	}
	return &Engine{log: logger, cfg: cfg, states: states, lock: lock}
}

// Run acquires the process lock, marks the automation state running, and
// starts the reconcile/publish loops under g, then returns. The loops run
// until ctx is cancelled or a task fails; once ctx is done the state file
// is marked stopped and the lock released.
func (e *Engine) Run(ctx context.Context, g *errgroup.Group) error {
	if err := e.lock.Acquire(); err != nil {
		return err
	}
	next := time.Now().Add(e.cfg.PublishInterval)
	if err := e.states.Started(e.cfg.Mode, next); err != nil {
		e.log.Warn("failed to write automation state", "err", err)
	}

	g.Go(func() error {
		<-ctx.Done()
		if err := e.states.Stopped(); err != nil {
			e.log.Warn("failed to mark automation stopped", "err", err)
		}
		return e.lock.Release()
	})

	if e.cfg.Reconciler != nil {
		g.Go(func() error { return e.reconcileLoop(ctx) })
	}
	g.Go(func() error { return e.publishLoop(ctx) })
	return nil
}

func (e *Engine) reconcileLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			incidents := e.cfg.Reconciler.Sweep(ctx)
			for _, inc := range incidents {
				if inc.Severity == ledger.SeverityCritical && e.cfg.SLO != nil {
					e.cfg.SLO.OpenDriftGate()
				}
				e.log.Warn("reconciliation drift", "exchange", inc.Exchange, "asset", inc.Asset, "drift", inc.Drift, "severity", inc.Severity)
			}
			if len(incidents) == 0 && e.cfg.SLO != nil {
				e.cfg.SLO.CloseDriftGate()
			}
		}
	}
}

func (e *Engine) publishLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PublishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			update := e.snapshot(now)
			e.cfg.Publisher.Publish(update)
			if err := e.states.RecordExecution(now, now.Add(e.cfg.PublishInterval)); err != nil {
				e.log.Warn("failed to record automation execution", "err", err)
			}
		}
	}
}

func (e *Engine) snapshot(now time.Time) bus.Update {
	ids := make([]ledger.AccountID, len(e.cfg.Accounts))
	for i, a := range e.cfg.Accounts {
		ids[i] = a.ID
	}
	accts := e.cfg.Store.LookupAccounts(ids)

	balances := make([]bus.BalanceView, 0, len(accts))
	for i, acct := range accts {
		if acct == nil {
			continue
		}
		balances = append(balances, bus.BalanceView{
			Exchange:  e.cfg.Accounts[i].Exchange,
			Asset:     e.cfg.Accounts[i].Asset,
			Available: acct.Available().String(),
			Total:     acct.Balance().String(),
		})
	}

	breakerOpen := false
	if e.cfg.Breaker != nil {
		breakerOpen = e.cfg.Breaker.State() == "open"
	}

	return bus.Update{
		Ts:    now,
		State: bus.RunState{Mode: string(e.cfg.Mode), Running: true},
		Data: bus.Data{
			Balances:           balances,
			ErrorCount:         e.errCount,
			CircuitBreakerOpen: breakerOpen,
			LastExecTs:         now,
		},
	}
}
