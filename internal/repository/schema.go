// Package repository implements the durable, per-entity stores backing
// the platform's C9-C11 components: migration rollouts, the
// transaction coordinator's audit log, distribution-round analytics,
// fund-monitor balance history, and AI interaction feedback. Each
// repository follows the teacher's hand-written-SQL shape
// (internal/modules/settings.Repository,
// internal/modules/planning/repository.ConfigRepository): a thin
// struct over *database.DB, one method per operation, apperr-classified
// failures.
package repository

// Schema is the set of CREATE TABLE statements this package depends
// on. Callers run these through database.DB.Exec (or a migration
// runner) before using any repository in this package; unlike the
// teacher's per-database schemas/*.sql files, these are kept inline
// since the repositories in this package are new additions rather than
// translations of an existing schema file.
const Schema = `
CREATE TABLE IF NOT EXISTS migrations (
	id TEXT PRIMARY KEY,
	initial_pct INTEGER NOT NULL,
	max_pct INTEGER NOT NULL,
	increment INTEGER NOT NULL,
	max_error_rate REAL NOT NULL,
	max_latency_ms INTEGER NOT NULL,
	min_success_rate REAL NOT NULL,
	auto_rollback INTEGER NOT NULL,
	grace_period_ms INTEGER NOT NULL,
	phase TEXT NOT NULL,
	current_pct INTEGER NOT NULL,
	error_rate REAL NOT NULL,
	success_rate REAL NOT NULL,
	latency_ms INTEGER NOT NULL,
	metrics_reported_at TEXT,
	rollback_count INTEGER NOT NULL,
	rollback_reason TEXT NOT NULL,
	created_at TEXT NOT NULL,
	started_at TEXT
);

CREATE TABLE IF NOT EXISTS transaction_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	transaction_id TEXT NOT NULL,
	occurred_at TEXT NOT NULL,
	kind TEXT NOT NULL,
	resource_key TEXT NOT NULL,
	retry INTEGER NOT NULL,
	error TEXT
);
CREATE INDEX IF NOT EXISTS idx_transaction_log_txn ON transaction_log(transaction_id);

CREATE TABLE IF NOT EXISTS distribution_analytics (
	opportunity_id TEXT NOT NULL,
	strategy TEXT NOT NULL,
	users_notified INTEGER NOT NULL,
	users_skipped INTEGER NOT NULL,
	recorded_at TEXT NOT NULL,
	PRIMARY KEY (opportunity_id, recorded_at)
);

CREATE TABLE IF NOT EXISTS fund_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	venue TEXT NOT NULL,
	balances_json TEXT NOT NULL,
	total_usd REAL NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fund_snapshots_user_venue ON fund_snapshots(user_id, venue, recorded_at);

CREATE TABLE IF NOT EXISTS ai_interactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	opportunity_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	outcome REAL,
	occurred_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ai_interactions_user ON ai_interactions(user_id, occurred_at);
`
