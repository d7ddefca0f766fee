package fundmonitor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/arbitrage-platform/internal/apperr"
	"github.com/aristath/arbitrage-platform/internal/cache"
)

// Monitor fetches, prices, caches, and optimizes user fund balances
// across venues.
type Monitor struct {
	cfg     Config
	cache   *cache.Cache
	oracle  PriceOracle
	adapter ExchangeAdapter
	history HistoryRecorder
	log     zerolog.Logger
}

// New builds a Monitor. history may be nil, in which case snapshots
// are cached but not appended to any durable history store.
func New(cfg Config, c *cache.Cache, oracle PriceOracle, adapter ExchangeAdapter, history HistoryRecorder, log zerolog.Logger) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		cfg:     cfg,
		cache:   c,
		oracle:  oracle,
		adapter: adapter,
		history: history,
		log:     log.With().Str("service", "fund_monitor").Logger(),
	}, nil
}

// GetSnapshot returns a cached snapshot if fresher than SnapshotTTL,
// otherwise fetches, prices, and caches a new one.
func (m *Monitor) GetSnapshot(ctx context.Context, userID, venue string) (Snapshot, error) {
	key := snapshotCacheKey(userID, venue)

	if raw, found, err := m.cache.Get(ctx, key); err != nil {
		return Snapshot{}, err
	} else if found {
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err == nil && time.Since(snap.At) < m.cfg.SnapshotTTL {
			return snap, nil
		}
	}

	raw, err := m.adapter.FetchRawBalances(ctx, userID, venue)
	if err != nil {
		return Snapshot{}, err
	}
	balances, err := parseRawBalances(raw)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{UserID: userID, Venue: venue, Balances: make(map[string]Balance), At: time.Now()}
	for asset, b := range balances {
		if b.Total <= m.cfg.MinBalanceThreshold {
			continue
		}
		price, err := m.oracle.GetUSDPrice(ctx, asset)
		if err != nil {
			m.log.Warn().Str("asset", asset).Err(err).Msg("price lookup failed, excluding from valuation")
			continue
		}
		b.USDValue = b.Total * price
		snap.Balances[asset] = b
		snap.TotalUSD += b.USDValue
	}

	encoded, err := json.Marshal(snap)
	if err != nil {
		return Snapshot{}, apperr.New(apperr.SerializationError, "fundmonitor.Monitor.GetSnapshot", err)
	}
	if err := m.cache.Set(ctx, key, encoded, m.cfg.SnapshotTTL); err != nil {
		return Snapshot{}, err
	}

	if m.history != nil {
		if err := m.history.RecordSnapshot(ctx, snap); err != nil {
			return Snapshot{}, err
		}
	}

	return snap, nil
}

// Optimize computes per-asset allocation guidance for snap against
// targets (asset -> target fraction of total value), plus an
// aggregate optimization score and risk tier.
func (m *Monitor) Optimize(snap Snapshot, targets map[string]float64) OptimizationResult {
	assets := make(map[string]struct{}, len(snap.Balances)+len(targets))
	for asset := range snap.Balances {
		assets[asset] = struct{}{}
	}
	for asset := range targets {
		assets[asset] = struct{}{}
	}

	records := make([]AllocationRecord, 0, len(assets))
	var varianceSum float64
	highVarianceCount := 0

	for asset := range assets {
		var currentPct float64
		if snap.TotalUSD > 0 {
			currentPct = snap.Balances[asset].USDValue / snap.TotalUSD
		}
		targetPct := targets[asset]
		variance := currentPct - targetPct
		if variance < 0 {
			variance = -variance
		}

		action := ActionHold
		if variance > m.cfg.DeadBandPct {
			if currentPct < targetPct {
				action = ActionBuy
			} else {
				action = ActionSell
			}
		}
		if variance > m.cfg.HighVarianceThreshold {
			highVarianceCount++
		}

		records = append(records, AllocationRecord{
			Venue:       snap.Venue,
			Asset:       asset,
			CurrentPct:  round(currentPct, 4),
			TargetPct:   round(targetPct, 4),
			VariancePct: round(variance, 4),
			Action:      action,
		})
		varianceSum += variance
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Asset < records[j].Asset })

	var avgVariance float64
	if len(records) > 0 {
		avgVariance = (varianceSum / float64(len(records))) * 100
	}

	score := 100 - avgVariance
	if score < 0 {
		score = 0
	}

	return OptimizationResult{
		Records:           records,
		Score:             round(score, 2),
		RiskTier:          riskTier(avgVariance, highVarianceCount),
		AverageVariance:   round(avgVariance, 2),
		HighVarianceCount: highVarianceCount,
	}
}

// riskTier classifies overall drift from average variance percentage
// and the count of individually high-variance assets.
func riskTier(avgVariance float64, highVarianceCount int) RiskTier {
	switch {
	case avgVariance >= 15 || highVarianceCount >= 3:
		return RiskHigh
	case avgVariance >= 5 || highVarianceCount >= 1:
		return RiskMedium
	default:
		return RiskLow
	}
}

// round mirrors the group-allocation rounding convention used
// elsewhere in the portfolio-adjacent reporting code.
func round(val float64, decimals int) float64 {
	multiplier := math.Pow(10, float64(decimals))
	return math.Round(val*multiplier) / multiplier
}

func snapshotCacheKey(userID, venue string) string {
	return fmt.Sprintf("fund_snapshot:%s:%s", userID, venue)
}
