package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConnector struct {
	name     string
	balances []Balance
	err      error
}

func (c *fakeConnector) Name() string { return c.name }

func (c *fakeConnector) Snapshot(ctx context.Context) ([]Balance, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.balances, nil
}

func TestReconcilerFlagsDriftBySeverity(t *testing.T) {
	kraken := &fakeConnector{name: "kraken", balances: []Balance{
		{Asset: "usd", Total: 100.0},  // ledger says 99.99999999 -> within threshold
		{Asset: "btc", Total: 2.0},    // ledger says 1.0 -> critical drift
	}}
	ledgerView := map[string]float64{"usd": 99.99999999, "btc": 1.0}

	r := NewReconciler([]Connector{kraken}, func(exchange, asset string) (float64, bool) {
		v, ok := ledgerView[asset]
		return v, ok
	}, 1e-6, nil)

	incidents := r.Sweep(context.Background())
	require.Len(t, incidents, 1)
	require.Equal(t, "btc", incidents[0].Asset)
	require.Equal(t, SeverityCritical, incidents[0].Severity)
	require.Len(t, r.Incidents(), 1)
}

func TestReconcilerSkipsFailedConnectorWithoutAbortingSweep(t *testing.T) {
	broken := &fakeConnector{name: "broken", err: errors.New("connection refused")}
	healthy := &fakeConnector{name: "healthy", balances: []Balance{{Asset: "usd", Total: 5.0}}}
	ledgerView := map[string]float64{"usd": 1.0}

	r := NewReconciler([]Connector{broken, healthy}, func(exchange, asset string) (float64, bool) {
		v, ok := ledgerView[asset]
		return v, ok
	}, 1e-6, nil)

	incidents := r.Sweep(context.Background())
	require.Len(t, incidents, 1)
	require.Equal(t, "healthy", incidents[0].Exchange)
}
