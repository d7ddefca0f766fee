package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/database"
	"github.com/aristath/arbitrage-platform/internal/txn"
)

// TransactionLogRepository durably appends the transaction
// coordinator's audit log, which the in-memory Coordinator otherwise
// only keeps bounded and in-process.
type TransactionLogRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewTransactionLogRepository creates a new transaction log repository.
func NewTransactionLogRepository(db *database.DB, log zerolog.Logger) *TransactionLogRepository {
	return &TransactionLogRepository{db: db, log: log.With().Str("repository", "transaction_log").Logger()}
}

// Append persists one log entry.
func (r *TransactionLogRepository) Append(ctx context.Context, entry txn.LogEntry) error {
	var errText sql.NullString
	if entry.Err != nil {
		errText = sql.NullString{String: entry.Err.Error(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transaction_log (transaction_id, occurred_at, kind, resource_key, retry, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.TransactionID, entry.At.Format(time.RFC3339), string(entry.Kind), entry.ResourceKey, entry.Retry, errText)
	if err != nil {
		return apperr.New(apperr.Internal, "repository.TransactionLogRepository.Append", err)
	}
	return nil
}

// ListByTransaction returns every log entry recorded for one
// transaction id, oldest first.
func (r *TransactionLogRepository) ListByTransaction(ctx context.Context, transactionID string) ([]txn.LogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transaction_id, occurred_at, kind, resource_key, retry, error
		FROM transaction_log WHERE transaction_id = ? ORDER BY id ASC
	`, transactionID)
	if err != nil {
		return nil, apperr.New(apperr.Internal, "repository.TransactionLogRepository.ListByTransaction", err)
	}
	defer rows.Close()

	var out []txn.LogEntry
	for rows.Next() {
		var (
			entry      txn.LogEntry
			kind       string
			occurredAt string
			errText    sql.NullString
		)
		if err := rows.Scan(&entry.TransactionID, &occurredAt, &kind, &entry.ResourceKey, &entry.Retry, &errText); err != nil {
			return nil, apperr.New(apperr.Internal, "repository.TransactionLogRepository.ListByTransaction", err)
		}
		entry.Kind = txn.OperationKind(kind)
		entry.At, err = time.Parse(time.RFC3339, occurredAt)
		if err != nil {
			return nil, apperr.New(apperr.Internal, "repository.TransactionLogRepository.ListByTransaction", err)
		}
		if errText.Valid {
			entry.Err = errString(errText.String)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.New(apperr.Internal, "repository.TransactionLogRepository.ListByTransaction", err)
	}
	return out, nil
}

// Prune deletes log entries older than olderThan, bounding table
// growth the same way the in-process coordinator bounds its own
// in-memory log.
func (r *TransactionLogRepository) Prune(ctx context.Context, olderThan time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transaction_log WHERE occurred_at < ?`, olderThan.Format(time.RFC3339))
	if err != nil {
		return apperr.New(apperr.Internal, "repository.TransactionLogRepository.Prune", err)
	}
	return nil
}

type errString string

func (e errString) Error() string { return string(e) }
