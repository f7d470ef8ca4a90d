package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/booklend/internal/dbx"
	"github.com/dmitrijs2005/booklend/internal/server/config"
)

// txRunner runs a unit of work in one transaction, bounded by a timeout and
// retried on serialization conflicts.
type txRunner struct {
	db          *sql.DB
	timeout     time.Duration
	maxAttempts int
}

func newTxRunner(db *sql.DB, cfg *config.Config) txRunner {
	return txRunner{db: db, timeout: cfg.TxTimeout, maxAttempts: cfg.TxMaxAttempts}
}

func (r txRunner) run(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	attempts := r.maxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	return dbx.Retry(ctx, func(ctx context.Context) error {
		return dbx.WithTx(ctx, r.db, nil, fn)
	}, dbx.WithMaxAttempts(attempts))
}
