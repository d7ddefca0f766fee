package txn

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/database"
	"github.com/aristath/arbitrage-platform/internal/objectstore"
)

// Coordinator maintains the transaction registry, resource-lock table,
// bounded append-only log, and aggregate statistics described by the
// persistence layer's transaction semantics. Operations submitted to a
// transaction are buffered and applied, in submission order, only at
// Commit; Rollback before that point never touches either store.
type Coordinator struct {
	cfg   Config
	db    *database.DB
	store objectstore.Store
	log   zerolog.Logger

	mu           sync.RWMutex
	txns         map[string]*Transaction
	locks        map[string]string // resource key -> owning txn id
	auditLog     []LogEntry
	stats        Stats
	activeCount  int
}

// New builds a Coordinator over db (relational) and store (object).
func New(cfg Config, db *database.DB, store objectstore.Store, log zerolog.Logger) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		cfg:   cfg,
		db:    db,
		store: store,
		log:   log.With().Str("service", "transaction_coordinator").Logger(),
		txns:  make(map[string]*Transaction),
		locks: make(map[string]string),
	}, nil
}

// Begin admits a new transaction if active_count < max_concurrent_transactions.
func (c *Coordinator) Begin(_ context.Context, isolation IsolationLevel) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeCount >= c.cfg.MaxConcurrentTransactions {
		return "", apperr.New(apperr.RateLimitExceeded, "txn.Coordinator.Begin", nil)
	}

	id := uuid.NewString()
	now := time.Now()
	t := &Transaction{
		ID:        id,
		Isolation: isolation,
		State:     Preparing,
		CreatedAt: now,
		Deadline:  now.Add(c.cfg.TransactionTimeout),
	}
	t.State = Active
	c.txns[id] = t
	c.activeCount++
	c.stats.Began++
	return id, nil
}

// Execute validates txnID is active and unexpired, acquires the op's
// resource lock for this transaction, and buffers the op for Commit.
func (c *Coordinator) Execute(_ context.Context, txnID string, op Operation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.txns[txnID]
	if !ok {
		return apperr.New(apperr.NotFound, "txn.Coordinator.Execute", nil)
	}

	if t.State.terminal() {
		return apperr.New(apperr.TransactionError, "txn.Coordinator.Execute", errTerminal)
	}
	if time.Now().After(t.Deadline) {
		c.expireLocked(t)
		return apperr.New(apperr.Timeout, "txn.Coordinator.Execute", nil)
	}
	if t.State != Active {
		return apperr.New(apperr.TransactionError, "txn.Coordinator.Execute", errNotActive)
	}

	if op.ResourceKey != "" {
		if holder, held := c.locks[op.ResourceKey]; held && holder != txnID {
			return apperr.New(apperr.TransactionError, "txn.Coordinator.Execute", errLockConflict)
		}
		c.locks[op.ResourceKey] = txnID
	}

	t.Operations = append(t.Operations, op)
	c.appendLog(txnID, op, false, nil)
	return nil
}

// Commit applies the transaction's buffered operations, in submission
// order, and transitions to committed on success or failed on any
// operation error. SQL operations run inside a single database
// transaction; object-store operations are applied directly and are
// not compensated on a later SQL failure, a limitation accepted for a
// local-filesystem object store standing in for a real one.
func (c *Coordinator) Commit(ctx context.Context, txnID string) error {
	c.mu.Lock()
	t, ok := c.txns[txnID]
	if !ok {
		c.mu.Unlock()
		return apperr.New(apperr.NotFound, "txn.Coordinator.Commit", nil)
	}
	if time.Now().After(t.Deadline) {
		c.expireLocked(t)
		c.mu.Unlock()
		return apperr.New(apperr.Timeout, "txn.Coordinator.Commit", nil)
	}
	if !t.State.canCommit() {
		c.mu.Unlock()
		return apperr.New(apperr.TransactionError, "txn.Coordinator.Commit", errCannotCommit)
	}
	t.State = Committing
	ops := append([]Operation(nil), t.Operations...)
	c.mu.Unlock()

	err := c.applyOperations(ctx, txnID, ops)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		t.State = Failed
		c.releaseLocksLocked(txnID)
		c.activeCount--
		c.stats.Failed++
		return err
	}
	t.State = Committed
	c.releaseLocksLocked(txnID)
	c.activeCount--
	c.stats.Committed++
	return nil
}

func (c *Coordinator) applyOperations(ctx context.Context, txnID string, ops []Operation) error {
	var sqlTx *sql.Tx
	if c.db != nil {
		for _, op := range ops {
			if op.Kind == OpSQL {
				tx, err := c.db.BeginTx(ctx, nil)
				if err != nil {
					return c.retryOrFail(ctx, txnID, err)
				}
				sqlTx = tx
				break
			}
		}
	}

	for _, op := range ops {
		if err := c.execOpWithRetry(ctx, txnID, op, sqlTx); err != nil {
			if sqlTx != nil {
				_ = sqlTx.Rollback()
			}
			return c.retryOrFail(ctx, txnID, err)
		}
	}

	if sqlTx != nil {
		if err := sqlTx.Commit(); err != nil {
			return c.retryOrFail(ctx, txnID, err)
		}
	}
	return nil
}

// execOpWithRetry runs op once, and — if RetryEnabled — re-attempts a
// transient failure up to MaxRetryAttempts more times, waiting
// RetryDelay between attempts. Each re-attempt is recorded in the
// audit log with Retry set, distinct from op's original Execute-time
// log entry.
func (c *Coordinator) execOpWithRetry(ctx context.Context, txnID string, op Operation, sqlTx *sql.Tx) error {
	attempts := 1
	if c.cfg.RetryEnabled {
		attempts += c.cfg.MaxRetryAttempts
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.mu.Lock()
			c.stats.Retries++
			c.appendLog(txnID, op, true, err)
			c.mu.Unlock()
			c.log.Warn().Str("txn_id", txnID).Int("attempt", attempt).Err(err).Msg("retrying transaction operation")
			time.Sleep(c.cfg.RetryDelay)
		}

		switch op.Kind {
		case OpSQL:
			err = nil
			if sqlTx != nil {
				_, err = sqlTx.ExecContext(ctx, op.SQL, op.SQLArgs...)
			}
		case OpObject:
			if op.ObjectDelete {
				err = c.store.Delete(ctx, op.ObjectKey)
			} else {
				err = c.store.Put(ctx, op.ObjectKey, op.ObjectData)
			}
		}
		if err == nil {
			return nil
		}
	}
	return err
}

// retryOrFail records a final, unrecoverable failure once
// execOpWithRetry's own retry budget (if any) is exhausted.
func (c *Coordinator) retryOrFail(_ context.Context, txnID string, err error) error {
	c.log.Warn().Str("txn_id", txnID).Err(err).Msg("transaction operation failed")
	return apperr.New(apperr.TransactionError, "txn.Coordinator.Commit", err)
}

// Rollback discards a transaction's buffered operations, which are
// never applied unless Commit succeeded, so rollback never touches
// either store.
func (c *Coordinator) Rollback(_ context.Context, txnID string, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.txns[txnID]
	if !ok {
		return apperr.New(apperr.NotFound, "txn.Coordinator.Rollback", nil)
	}
	if !t.State.canRollback() {
		return apperr.New(apperr.TransactionError, "txn.Coordinator.Rollback", errCannotRollback)
	}
	_ = reason
	t.State = RolledBack
	c.releaseLocksLocked(txnID)
	c.activeCount--
	c.stats.RolledBack++
	return nil
}

// CleanupExpired transitions every non-terminal transaction whose
// deadline has passed to timed-out, releasing its locks.
func (c *Coordinator) CleanupExpired(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	n := 0
	for _, t := range c.txns {
		if t.State.terminal() {
			continue
		}
		if now.After(t.Deadline) {
			c.expireLocked(t)
			n++
		}
	}
	return n, nil
}

// expireLocked must be called with c.mu held.
func (c *Coordinator) expireLocked(t *Transaction) {
	if t.State.terminal() {
		return
	}
	t.State = TimedOut
	c.releaseLocksLocked(t.ID)
	c.activeCount--
	c.stats.TimedOut++
}

func (c *Coordinator) releaseLocksLocked(txnID string) {
	for key, holder := range c.locks {
		if holder == txnID {
			delete(c.locks, key)
		}
	}
}

func (c *Coordinator) appendLog(txnID string, op Operation, retry bool, err error) {
	entry := LogEntry{TransactionID: txnID, At: time.Now(), Kind: op.Kind, ResourceKey: op.ResourceKey, Retry: retry, Err: err}
	c.auditLog = append(c.auditLog, entry)

	cutoff := time.Now().Add(-c.cfg.LogRetention)
	i := 0
	for i < len(c.auditLog) && c.auditLog[i].At.Before(cutoff) {
		i++
	}
	if i > 0 {
		c.auditLog = append([]LogEntry(nil), c.auditLog[i:]...)
	}
}

// State returns a transaction's current state.
func (c *Coordinator) State(txnID string) (State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.txns[txnID]
	if !ok {
		return "", false
	}
	return t.State, true
}

// Stats returns a copy of the coordinator's aggregate statistics.
func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// LockedResources returns a snapshot of the current resource-key to
// transaction-id lock table.
func (c *Coordinator) LockedResources() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.locks))
	for k, v := range c.locks {
		out[k] = v
	}
	return out
}

type txnError string

func (e txnError) Error() string { return string(e) }

const (
	errTerminal       txnError = "transaction is in a terminal state"
	errNotActive      txnError = "transaction is not active"
	errLockConflict   txnError = "resource is locked by another transaction"
	errCannotCommit   txnError = "transaction cannot be committed from its current state"
	errCannotRollback txnError = "transaction cannot be rolled back from its current state"
)
