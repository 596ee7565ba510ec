package ledger

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	xlog "github.com/luxfi/smartvestor/log"
)

// LegacyRecord is one row read out of the legacy ledger during migration
// export copy-and-verify flow.
type LegacyRecord struct {
	Account string
	Asset   string
	Amount  decimal.Decimal
}

// LegacySource is the collaborator the replayer reads the pre-migration
// system from. Implementations own their own pagination/retry framing;
// the replayer retries only at the batch-fetch level.
type LegacySource interface {
	FetchBatch(ctx context.Context, cursor string) (records []LegacyRecord, nextCursor string, err error)
}

// ParityReport is the result of comparing legacy and ledger totals for one
// (account, asset) pair.
type ParityReport struct {
	Account     string
	Asset       string
	LegacyTotal decimal.Decimal
	LedgerTotal decimal.Decimal
	Match       bool
}

// MigrationReplayer copies legacy balances into the ledger store and
// verifies parity.
type MigrationReplayer struct {
	log    xlog.Logger
	source LegacySource
	store  *Store
	scales *ScaleRegistry
}

// NewMigrationReplayer builds a replayer bound to a legacy source and the
// destination ledger store.
func NewMigrationReplayer(source LegacySource, store *Store, scales *ScaleRegistry, logger xlog.Logger) *MigrationReplayer {
	if logger == nil {
		logger = xlog.Root()
	}
	return &MigrationReplayer{log: logger, source: source, store: store, scales: scales}
}

// Export streams every legacy record into the ledger as a posted transfer
// from a synthetic migration-source account into the target account,
// paginating on cursor until the source returns an empty nextCursor.
func (r *MigrationReplayer) Export(ctx context.Context, migrationSourceExchange string) (int, error) {
	cursor := ""
	count := 0
	for {
		batch, next, err := r.fetchBatchWithRetry(ctx, cursor)
		if err != nil {
			return count, err
		}
		if len(batch) > 0 {
			transfers := make([]Transfer, 0, len(batch))
			for _, rec := range batch {
				scale, _ := r.scales.Scale(rec.Asset)
				minorUnits := rec.Amount.Shift(int32(scale)).Round(0).IntPart()
				transfers = append(transfers, Transfer{
					ID:            NewTransferID(),
					DebitAccount:  NewAccountID(migrationSourceExchange, rec.Asset),
					CreditAccount: NewAccountID(rec.Account, rec.Asset),
					Amount:        AmountFromUint64(uint64(minorUnits)),
					Timestamp:     time.Now().UTC(),
				})
			}
			results, err := r.store.CreateTransfers(transfers)
			if err != nil {
				return count, err
			}
			for i, e := range results {
				if e != nil {
					r.log.Error("replay: export transfer failed", "account", batch[i].Account, "err", e)
				} else {
					count++
				}
			}
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return count, nil
}

func (r *MigrationReplayer) fetchBatchWithRetry(ctx context.Context, cursor string) ([]LegacyRecord, string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 60 * time.Second
	var records []LegacyRecord
	var next string
	attempt := 0
	op := func() error {
		attempt++
		var err error
		records, next, err = r.source.FetchBatch(ctx, cursor)
		if err != nil && attempt >= 3 {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, "", err
	}
	return records, next, nil
}

// Verify compares legacy totals (supplied by the caller, typically a prior
// pass over LegacySource) against current ledger balances and returns a
// report per account/asset pair. A mismatch is reported only through the
// pair's Match flag; Verify returns no error.
func (r *MigrationReplayer) Verify(legacyTotals map[string]map[string]decimal.Decimal) []ParityReport {
	var reports []ParityReport
	for account, byAsset := range legacyTotals {
		for asset, legacyTotal := range byAsset {
			id := NewAccountID(account, asset)
			accts := r.store.LookupAccounts([]AccountID{id})
			var ledgerTotal decimal.Decimal
			if accts[0] != nil {
				scale, _ := r.scales.Scale(asset)
				ledgerTotal = decimal.NewFromBigInt(accts[0].Balance().Magnitude.v.ToBig(), -int32(scale))
				if accts[0].Balance().Negative {
					ledgerTotal = ledgerTotal.Neg()
				}
			}
			reports = append(reports, ParityReport{
				Account:     account,
				Asset:       asset,
				LegacyTotal: legacyTotal,
				LedgerTotal: ledgerTotal,
				Match:       legacyTotal.Equal(ledgerTotal),
			})
		}
	}
	return reports
}
