package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/luxfi/smartvestor/internal/ledger"
	xlog "github.com/luxfi/smartvestor/log"
)

// legacyRow is one entry in the JSON legacy-export file migrateCommand
// reads from. No legacy database driver exists in the retrieved
// dependency pack, so the source format here is a flat JSON array rather
// than a live DB connection; see DESIGN.md.
type legacyRow struct {
	Account string          `json:"account"`
	Asset   string          `json:"asset"`
	Amount  decimal.Decimal `json:"amount"`
}

// jsonLegacySource implements ledger.LegacySource over an in-memory slice
// loaded from a JSON file, paginating by a numeric offset cursor.
type jsonLegacySource struct {
	rows      []legacyRow
	batchSize int
}

func loadJSONLegacySource(path string, batchSize int) (*jsonLegacySource, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read legacy source %s: %w", path, err)
	}
	var rows []legacyRow
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("parse legacy source %s: %w", path, err)
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return &jsonLegacySource{rows: rows, batchSize: batchSize}, nil
}

func (s *jsonLegacySource) FetchBatch(ctx context.Context, cursor string) ([]ledger.LegacyRecord, string, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor %q: %w", cursor, err)
		}
		offset = n
	}
	if offset >= len(s.rows) {
		return nil, "", nil
	}
	end := offset + s.batchSize
	if end > len(s.rows) {
		end = len(s.rows)
	}
	batch := make([]ledger.LegacyRecord, 0, end-offset)
	for _, r := range s.rows[offset:end] {
		batch = append(batch, ledger.LegacyRecord{Account: r.Account, Asset: r.Asset, Amount: r.Amount})
	}
	next := ""
	if end < len(s.rows) {
		next = strconv.Itoa(end)
	}
	return batch, next, nil
}

// legacyTotals sums every row's amount by (account, asset), the shape
// MigrationReplayer.Verify expects as its ground truth.
func (s *jsonLegacySource) legacyTotals() map[string]map[string]decimal.Decimal {
	totals := make(map[string]map[string]decimal.Decimal)
	for _, r := range s.rows {
		byAsset, ok := totals[r.Account]
		if !ok {
			byAsset = make(map[string]decimal.Decimal)
			totals[r.Account] = byAsset
		}
		byAsset[r.Asset] = byAsset[r.Asset].Add(r.Amount)
	}
	return totals
}

var migrateCommand = &cli.Command{
	Name:  "migrate",
	Usage: "copy legacy balances into the ledger store and verify parity",
	Subcommands: []*cli.Command{
		{
			Name:  "export",
			Usage: "stream every legacy record into the ledger as a posted transfer",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "source", Required: true, Usage: "path to the legacy JSON export file"},
				&cli.StringFlag{Name: "migration-exchange", Value: "legacy-migration", Usage: "synthetic exchange name transfers are debited from"},
			},
			Action: func(c *cli.Context) error {
				replayer, _, err := buildReplayer(c.Context, c.String("source"))
				if err != nil {
					return err
				}
				count, err := replayer.Export(c.Context, c.String("migration-exchange"))
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				fmt.Printf("exported %d transfers\n", count)
				return nil
			},
		},
		{
			Name:  "verify",
			Usage: "compare legacy totals against current ledger balances",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "source", Required: true, Usage: "path to the legacy JSON export file"},
			},
			Action: func(c *cli.Context) error {
				replayer, source, err := buildReplayer(c.Context, c.String("source"))
				if err != nil {
					return err
				}
				reports := replayer.Verify(source.legacyTotals())
				mismatches := 0
				for _, r := range reports {
					status := "OK"
					if !r.Match {
						status = "MISMATCH"
						mismatches++
					}
					fmt.Printf("%-6s %-12s %-6s legacy=%s ledger=%s\n", status, r.Account, r.Asset, r.LegacyTotal, r.LedgerTotal)
				}
				if mismatches > 0 {
					return fmt.Errorf("verify: %d account/asset mismatches", mismatches)
				}
				return nil
			},
		},
	},
}

// buildReplayer loads sourcePath and wires a fresh in-memory ledger store
// and scale registry for the migrate subcommands to operate against.
func buildReplayer(ctx context.Context, sourcePath string) (*ledger.MigrationReplayer, *jsonLegacySource, error) {
	source, err := loadJSONLegacySource(sourcePath, 0)
	if err != nil {
		return nil, nil, err
	}

	scales := ledger.NewScaleRegistry()
	_ = scales.Set("usd", 2, false)
	_ = scales.Set("btc", 8, false)
	_ = scales.Set("eth", 8, false)
	scales.Freeze()

	logger := xlog.Root()
	store := ledger.NewStore(scales, logger)
	store.Start(ctx)

	return ledger.NewMigrationReplayer(source, store, scales, logger), source, nil
}
