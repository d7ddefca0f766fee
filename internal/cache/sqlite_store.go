package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/database"
)

// SQLiteStore persists cache entries in the cache-profile database so
// entries survive process restarts, trading the MemoryStore's speed for
// durability. It expects database.ProfileCache tuning (synchronous=OFF,
// temp_store=MEMORY) on the underlying connection.
type SQLiteStore struct {
	db *database.DB
}

// NewSQLiteStore wraps db, creating the backing table if absent.
func NewSQLiteStore(db *database.DB) (*SQLiteStore, error) {
	const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	expire_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expire_at ON cache_entries(expire_at);
`
	if _, err := db.Exec(schema); err != nil {
		return nil, apperr.New(apperr.Internal, "cache.NewSQLiteStore", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expireAt sql.NullInt64
	row := s.db.QueryRowContext(ctx, `SELECT value, expire_at FROM cache_entries WHERE key = ?`, key)
	if err := row.Scan(&value, &expireAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, apperr.New(apperr.Internal, "cache.SQLiteStore.Get", err)
	}

	if expireAt.Valid && time.Now().Unix() > expireAt.Int64 {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		return nil, false, nil
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expireAt sql.NullInt64
	if ttl > 0 {
		expireAt = sql.NullInt64{Int64: time.Now().Add(ttl).Unix(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cache_entries (key, value, expire_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, expire_at = excluded.expire_at
`, key, value, expireAt)
	if err != nil {
		return apperr.New(apperr.Internal, "cache.SQLiteStore.Set", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return apperr.New(apperr.Internal, "cache.SQLiteStore.Delete", err)
	}
	return nil
}

// EvictExpired removes all rows past their expiry, intended to be invoked
// from the shared periodic maintenance cron job.
func (s *SQLiteStore) EvictExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expire_at IS NOT NULL AND expire_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, apperr.New(apperr.Internal, "cache.SQLiteStore.EvictExpired", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
