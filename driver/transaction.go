package driver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/CaliLuke/go-ogm/ogm"
)

// Transaction represents an active unit of work in a Neo4j database.
// Transactions are used to execute statements and must be either committed
// or rolled back, then closed.
type Transaction struct {
	sess   neo4j.SessionWithContext
	tx     neo4j.ExplicitTransaction
	mode   ogm.AccessMode
	logger *slog.Logger

	mu   sync.Mutex
	done bool
}

var _ ogm.Tx = (*Transaction)(nil)

// IsOpen returns true if the transaction has not been committed, rolled back, or closed.
func (t *Transaction) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.done
}

// Execute runs stmt and returns every result row, with graph values
// converted into ogm records.
func (t *Transaction) Execute(ctx context.Context, stmt string, params map[string]any) ([]ogm.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil, ErrTxClosed
	}

	result, err := t.tx.Run(ctx, stmt, params)
	if err != nil {
		return nil, wrapError(err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, wrapError(err)
	}

	rows := make([]ogm.Row, 0, len(records))
	for _, rec := range records {
		row := make(ogm.Row, len(rec.Keys))
		for i, key := range rec.Keys {
			row[key] = convertValue(rec.Values[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Commit persists the changes made in the transaction to the database.
// After calling Commit, the transaction cannot be used further.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxClosed
	}
	t.done = true
	return wrapError(t.tx.Commit(ctx))
}

// Rollback discards all changes made within the transaction.
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxClosed
	}
	t.done = true
	return wrapError(t.tx.Rollback(ctx))
}

// Close rolls back the transaction if it is still open and releases its
// session. It is safe to call more than once and should be deferred.
func (t *Transaction) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess == nil {
		return nil
	}
	t.done = true
	txErr := t.tx.Close(ctx)
	sessErr := t.sess.Close(ctx)
	t.sess = nil
	if txErr != nil {
		if sessErr != nil {
			t.logger.Warn("closing session", slog.Any("error", sessErr))
		}
		return wrapError(txErr)
	}
	return wrapError(sessErr)
}
