package query

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Batcher is the slice of the pgx pool the executor needs.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Run executes the data and count statements as a single batched round trip
// (the "data + count in one execution" contract). scan consumes the data
// rows; the exact total comes back alongside. A page past the end simply
// yields zero data rows while the count stays exact.
func Run(ctx context.Context, db Batcher, c Collection, filters []Filter, p Page, scan func(rows pgx.Rows) error) (int, error) {
	stmt, err := Build(c, filters, p)
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	batch.Queue(stmt.DataSQL, stmt.DataArgs...)
	batch.Queue(stmt.CountSQL, stmt.CountArgs...)

	results := db.SendBatch(ctx, batch)
	defer results.Close()

	rows, err := results.Query()
	if err != nil {
		return 0, execErr(err)
	}
	if err := scan(rows); err != nil {
		rows.Close()
		return 0, execErr(err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, execErr(err)
	}

	var total int
	if err := results.QueryRow().Scan(&total); err != nil {
		return 0, execErr(err)
	}
	return total, nil
}

func execErr(err error) error {
	return fmt.Errorf("%w: %v", ErrExecution, err)
}
