package enhancement

import "github.com/aristath/arbitrage-platform/internal/apperr"

// Config governs the AI-enhancement risk adjustment and the optional
// technical-confirmation gate.
type Config struct {
	// RSIPeriod and SMAPeriod are the go-talib lookback windows for the
	// technical-confirmation gate's market-structure score.
	RSIPeriod int
	SMAPeriod int

	// EnableTechnicalGate turns the confirmation gate on. When false,
	// AI-ranked opportunities pass through without a technical check.
	EnableTechnicalGate bool

	// MinTechnicalConfidence is the floor below which an opportunity is
	// dropped by the technical-confirmation gate.
	MinTechnicalConfidence float64

	// StructureWeight blends the market-structure score (RSI/SMA) with
	// the exchange-pair reliability score into one technical-confidence
	// value: structureWeight*structure + (1-structureWeight)*reliability.
	StructureWeight float64

	// ArbitrageWeight blends the AI-ranking confidence with the
	// technical-confidence value into the final convex combination:
	// arbitrageWeight*aiConfidence + (1-arbitrageWeight)*technicalConfidence.
	ArbitrageWeight float64

	// TailRiskPenalty scales how much a pair's 95% CVaR tail-risk score
	// discounts the technical-confidence value (technical *= 1 -
	// tailRiskPenalty*tailRisk). 0 disables the penalty.
	TailRiskPenalty float64
}

// DefaultConfig fits a general-purpose deployment.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:              14,
		SMAPeriod:              20,
		EnableTechnicalGate:    true,
		MinTechnicalConfidence: 0.4,
		StructureWeight:        0.6,
		ArbitrageWeight:        0.7,
		TailRiskPenalty:        0.3,
	}
}

// HighThroughput skips the technical gate entirely, trading
// confirmation strength for lower per-opportunity latency.
func HighThroughput() Config {
	cfg := DefaultConfig()
	cfg.EnableTechnicalGate = false
	return cfg
}

// HighReliability raises the confirmation floor and leans harder on
// technical confirmation over the AI ranking.
func HighReliability() Config {
	cfg := DefaultConfig()
	cfg.MinTechnicalConfidence = 0.6
	cfg.ArbitrageWeight = 0.5
	return cfg
}

// Validate rejects nonsensical configuration.
func (c Config) Validate() error {
	if c.RSIPeriod <= 0 {
		return apperr.New(apperr.ConfigError, "enhancement.Config", configErr("rsi_period must be positive"))
	}
	if c.SMAPeriod <= 0 {
		return apperr.New(apperr.ConfigError, "enhancement.Config", configErr("sma_period must be positive"))
	}
	if c.MinTechnicalConfidence < 0 || c.MinTechnicalConfidence > 1 {
		return apperr.New(apperr.ConfigError, "enhancement.Config", configErr("min_technical_confidence must be in [0, 1]"))
	}
	if c.StructureWeight < 0 || c.StructureWeight > 1 {
		return apperr.New(apperr.ConfigError, "enhancement.Config", configErr("structure_weight must be in [0, 1]"))
	}
	if c.ArbitrageWeight < 0 || c.ArbitrageWeight > 1 {
		return apperr.New(apperr.ConfigError, "enhancement.Config", configErr("arbitrage_weight must be in [0, 1]"))
	}
	return nil
}

type configErr string

func (e configErr) Error() string { return string(e) }
