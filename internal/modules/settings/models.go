package settings

// Defaults holds the platform's operator-adjustable runtime settings:
// knobs an operator can retune without a restart, covering the pieces
// of the distribution, AI, and migration pipelines that are meant to
// be live-tunable rather than baked into static config.
var Defaults = map[string]interface{}{
	// Opportunity distribution (C9)
	"distribution_strategy":           "fair_share", // fair_share | priority_based | round_robin
	"distribution_rate_limit_per_min": 30.0,
	"distribution_priority_boost":     0.20, // +20% score boost if >24h since last delivery

	// AI enhancement (§4.11)
	"ai_enhancement_enabled":   1.0,
	"min_technical_confidence": 0.40,
	"structure_weight":         0.60,
	"arbitrage_weight":         0.70,

	// Circuit breaker (shared default, per-service overrides live in code)
	"circuit_breaker_threshold":        5.0,
	"circuit_breaker_cooldown_seconds": 30.0,

	// Migration manager (C10)
	"migration_canary_percent":        5.0,
	"migration_safety_poll_seconds":   15.0,
	"migration_auto_rollback_enabled": 1.0,

	// Fund monitor (C8)
	"fund_monitor_poll_seconds":    60.0,
	"fund_monitor_low_balance_pct": 0.10,

	// Ingestion pipeline (C6)
	"ingestion_poll_interval_seconds": 5.0,
	"ingestion_max_retries":           3.0,
}

// StringSettings marks which settings keys hold string values rather
// than floats; everything else in Defaults is numeric.
var StringSettings = map[string]bool{
	"distribution_strategy": true,
}

// Update is a setting value update request.
type Update struct {
	Value interface{} `json:"value"`
}
