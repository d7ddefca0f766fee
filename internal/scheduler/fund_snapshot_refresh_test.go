package scheduler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arbitrage-platform/internal/cache"
	"github.com/aristath/arbitrage-platform/internal/fundmonitor"
)

type stubPriceOracle struct{}

func (stubPriceOracle) GetUSDPrice(context.Context, string) (float64, error) { return 1.0, nil }

type stubExchangeAdapter struct {
	balances map[string]fundmonitor.Balance
}

func (s stubExchangeAdapter) FetchRawBalances(context.Context, string, string) ([]byte, error) {
	return json.Marshal(s.balances)
}

type stubHistoryRecorder struct {
	recorded int
}

func (s *stubHistoryRecorder) RecordSnapshot(context.Context, fundmonitor.Snapshot) error {
	s.recorded++
	return nil
}

func newTestMonitor(t *testing.T, history fundmonitor.HistoryRecorder) *fundmonitor.Monitor {
	t.Helper()
	c, err := cache.New(cache.NewMemoryStore(), cache.DefaultCompressionConfig())
	require.NoError(t, err)

	adapter := stubExchangeAdapter{balances: map[string]fundmonitor.Balance{
		"USDT": {Asset: "USDT", Free: 100, Total: 100},
	}}
	monitor, err := fundmonitor.New(fundmonitor.DefaultConfig(), c, stubPriceOracle{}, adapter, history, zerolog.Nop())
	require.NoError(t, err)
	return monitor
}

func TestFundSnapshotRefreshJob_RefreshesEveryTrackedAccount(t *testing.T) {
	history := &stubHistoryRecorder{}
	monitor := newTestMonitor(t, history)

	accounts := []TrackedAccount{
		{UserID: "user-1", Venue: "binance"},
		{UserID: "user-2", Venue: "bybit"},
	}
	job := NewFundSnapshotRefreshJob(monitor, accounts, zerolog.Nop())
	assert.Equal(t, "fund_snapshot_refresh", job.Name())

	require.NoError(t, job.Run())
	assert.Equal(t, 2, history.recorded)
}

func TestFundSnapshotRefreshJob_NoAccountsIsNotAnError(t *testing.T) {
	monitor := newTestMonitor(t, &stubHistoryRecorder{})
	job := NewFundSnapshotRefreshJob(monitor, nil, zerolog.Nop())
	require.NoError(t, job.Run())
}
