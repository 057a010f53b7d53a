package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "taxregistry/pkg/domain-errors"
	txcontext "taxregistry/pkg/platform/tx"
)

const defaultTaxPayerTxTimeout = 5 * time.Second

// taxPayerPostgresTx runs registry mutations inside a database transaction
// carried on the context, so PostgresStore picks it up.
type taxPayerPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newTaxPayerPostgresTx(db *sql.DB) *taxPayerPostgresTx {
	return &taxPayerPostgresTx{db: db}
}

func (t *taxPayerPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTaxPayerTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op; error already captured
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
