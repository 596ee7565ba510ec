package ledger

import "context"

// Balance is the concrete value variant an exchange connector returns:
// connectors parse their own wire format and hand back this typed struct,
// never a map[string]any.
type Balance struct {
	Asset     string
	Available float64
	Total     float64
}

// Quote is the sibling concrete variant for price data.
type Quote struct {
	Symbol string
	Price  float64
}

// Connector is the interface an exchange collaborator implements to supply
// reconciliation and migration-parity snapshots. Connectors are external
// collaborators — this interface is the only surface the ledger core
// depends on.
type Connector interface {
	Name() string
	Snapshot(ctx context.Context) ([]Balance, error)
}
