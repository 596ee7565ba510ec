package ledger

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	xlog "github.com/luxfi/smartvestor/log"
)

// IncidentSeverity classifies a reconciliation drift.
type IncidentSeverity string

const (
	SeverityWarning  IncidentSeverity = "warning"
	SeverityCritical IncidentSeverity = "critical"
)

// Incident is raised when |exchange_balance - ledger_balance| exceeds
// threshold for an (exchange, asset) pair.
type Incident struct {
	Exchange  string
	Asset     string
	Drift     float64
	Severity  IncidentSeverity
	Timestamp time.Time
}

// BalanceLookup resolves the ledger's view of an (exchange,asset) balance
// as a float64 for drift comparison against connector snapshots.
type BalanceLookup func(exchange, asset string) (float64, bool)

// Reconciler runs a periodic drift check between the ledger and each
// configured exchange connector.
type Reconciler struct {
	log        xlog.Logger
	connectors []Connector
	ledgerOf   BalanceLookup
	threshold  float64

	incidents []Incident
}

// defaultDriftThreshold is the intra-system default (1e-8); callers
// reconciling against an external legacy store pass a higher policy value.
const defaultDriftThreshold = 1e-8

// NewReconciler builds a Reconciler. threshold<=0 uses the intra-system
// default.
func NewReconciler(connectors []Connector, ledgerOf BalanceLookup, threshold float64, logger xlog.Logger) *Reconciler {
	if threshold <= 0 {
		threshold = defaultDriftThreshold
	}
	if logger == nil {
		logger = xlog.Root()
	}
	return &Reconciler{connectors: connectors, ledgerOf: ledgerOf, threshold: threshold, log: logger}
}

// Sweep fetches a snapshot from each connector and compares against the
// ledger. Connector failures are logged and do not abort the sweep.
func (r *Reconciler) Sweep(ctx context.Context) []Incident {
	var incidents []Incident
	for _, conn := range r.connectors {
		balances, err := r.fetchWithRetry(ctx, conn)
		if err != nil {
			r.log.Warn("reconciler: connector sweep failed", "exchange", conn.Name(), "err", err)
			continue
		}
		for _, bal := range balances {
			ledgerBal, ok := r.ledgerOf(conn.Name(), bal.Asset)
			if !ok {
				continue
			}
			drift := math.Abs(bal.Total - ledgerBal)
			if drift <= r.threshold {
				continue
			}
			severity := SeverityWarning
			if drift > 10*r.threshold {
				severity = SeverityCritical
			}
			incidents = append(incidents, Incident{
				Exchange:  conn.Name(),
				Asset:     bal.Asset,
				Drift:     drift,
				Severity:  severity,
				Timestamp: time.Now().UTC(),
			})
		}
	}
	r.incidents = append(r.incidents, incidents...)
	return incidents
}

// fetchWithRetry wraps a connector snapshot in the transient-retry policy:
// exponential backoff, capped at 60s, 3 attempts.
func (r *Reconciler) fetchWithRetry(ctx context.Context, conn Connector) ([]Balance, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 60 * time.Second
	var balances []Balance
	attempt := 0
	op := func() error {
		attempt++
		var err error
		balances, err = conn.Snapshot(ctx)
		if err != nil && attempt >= 3 {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return balances, nil
}

// Incidents returns all incidents raised so far across sweeps.
func (r *Reconciler) Incidents() []Incident { return r.incidents }
