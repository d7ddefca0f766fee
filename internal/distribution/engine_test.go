package distribution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arbitrage-platform/internal/cache"
	"github.com/aristath/arbitrage-platform/internal/domain"
)

type fakeSessions struct {
	sessions  []Session
	ineligible map[string]bool
}

func (f *fakeSessions) ListActiveSessions(_ context.Context, offset, limit int) ([]Session, error) {
	if offset >= len(f.sessions) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.sessions) {
		end = len(f.sessions)
	}
	return f.sessions[offset:end], nil
}

func (f *fakeSessions) IsEligibleForPushNotification(_ context.Context, userID string, _ *domain.GlobalOpportunity, private bool) (bool, error) {
	if !private {
		return false, assertErr("eligibility check must use the private chat context")
	}
	return !f.ineligible[userID], nil
}

type fakeSender struct {
	mu  sync.Mutex
	got []string
	fail map[string]bool
}

func (f *fakeSender) SendOpportunityNotification(_ context.Context, chatID string, _ *domain.GlobalOpportunity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[chatID] {
		return assertErr("send failed")
	}
	f.got = append(f.got, chatID)
	return nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

type fakeRecorder struct {
	mu      sync.Mutex
	records []AnalyticsRecord
}

func (f *fakeRecorder) RecordDistribution(_ context.Context, rec AnalyticsRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func newTestEngine(t *testing.T, cfg Config, sessions SessionService, sender NotificationSender, recorder AnalyticsRecorder) *Engine {
	t.Helper()
	c, err := cache.New(cache.NewMemoryStore(), cache.DefaultCompressionConfig())
	require.NoError(t, err)
	e, err := New(cfg, c, sessions, sender, recorder, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	return e
}

func testOpportunity() domain.ArbitrageOpportunity {
	opp, _ := domain.New("opp-1", "BTC-USDT", domain.ExchangeBinance, domain.ExchangeBybit, 0.015, time.Now().UnixMilli(), domain.ArbitrageFundingRate)
	return *opp
}

func TestEngine_FCFSNotifiesInSessionOrder(t *testing.T) {
	sessions := &fakeSessions{sessions: []Session{
		{UserID: "u1", ChatID: "c1"},
		{UserID: "u2", ChatID: "c2"},
		{UserID: "u3", ChatID: "c3"},
	}, ineligible: map[string]bool{}}
	sender := &fakeSender{fail: map[string]bool{}}
	recorder := &fakeRecorder{}

	cfg := DefaultConfig()
	cfg.BatchSize = 2
	e := newTestEngine(t, cfg, sessions, sender, recorder)

	result, err := e.DistributeOpportunity(context.Background(), testOpportunity(), domain.StrategyFCFS, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, result.UsersNotified)
	assert.Equal(t, []string{"c1", "c2"}, sender.got)
	require.Len(t, recorder.records, 1)
	assert.Equal(t, 2, recorder.records[0].UsersNotified)
}

func TestEngine_IneligibleSessionsAreExcluded(t *testing.T) {
	sessions := &fakeSessions{sessions: []Session{
		{UserID: "u1", ChatID: "c1"},
		{UserID: "u2", ChatID: "c2"},
	}, ineligible: map[string]bool{"u1": true}}
	sender := &fakeSender{fail: map[string]bool{}}
	e := newTestEngine(t, DefaultConfig(), sessions, sender, nil)

	result, err := e.DistributeOpportunity(context.Background(), testOpportunity(), domain.StrategyFCFS, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, result.UsersNotified)
	assert.Equal(t, []string{"c2"}, sender.got)
}

func TestEngine_RoundRobinOrdersByLastOpportunityAscending(t *testing.T) {
	now := time.Now()
	sessions := &fakeSessions{sessions: []Session{
		{UserID: "u1", ChatID: "c1", LastOpportunity: now.Add(-1 * time.Hour)},
		{UserID: "u2", ChatID: "c2", LastOpportunity: now.Add(-48 * time.Hour)},
		{UserID: "u3", ChatID: "c3", LastOpportunity: now.Add(-2 * time.Hour)},
	}, ineligible: map[string]bool{}}
	sender := &fakeSender{fail: map[string]bool{}}
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	e := newTestEngine(t, cfg, sessions, sender, nil)

	_, err := e.DistributeOpportunity(context.Background(), testOpportunity(), domain.StrategyRoundRobin, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c3"}, sender.got)
}

func TestEngine_PriorityBasedBoostsUsersOverOneDayStale(t *testing.T) {
	now := time.Now()
	sessions := &fakeSessions{sessions: []Session{
		{UserID: "fresh", ChatID: "c-fresh", LastOpportunity: now.Add(-1 * time.Hour)},
		{UserID: "stale", ChatID: "c-stale", LastOpportunity: now.Add(-48 * time.Hour)},
	}, ineligible: map[string]bool{}}
	sender := &fakeSender{fail: map[string]bool{}}
	cfg := DefaultConfig()
	cfg.BatchSize = 1
	e := newTestEngine(t, cfg, sessions, sender, nil)

	_, err := e.DistributeOpportunity(context.Background(), testOpportunity(), domain.StrategyPriorityBased, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"c-stale"}, sender.got)
}

func TestEngine_BroadcastStopsAtBatchSize(t *testing.T) {
	sessions := &fakeSessions{ineligible: map[string]bool{}}
	for i := 0; i < 10; i++ {
		sessions.sessions = append(sessions.sessions, Session{UserID: string(rune('a' + i)), ChatID: string(rune('a' + i))})
	}
	sender := &fakeSender{fail: map[string]bool{}}
	cfg := DefaultConfig()
	cfg.BatchSize = 3
	e := newTestEngine(t, cfg, sessions, sender, nil)

	result, err := e.DistributeOpportunity(context.Background(), testOpportunity(), domain.StrategyBroadcast, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, result.UsersNotified)
}

func TestEngine_PerUserHourlyRateLimitSkipsOverCap(t *testing.T) {
	sessions := &fakeSessions{sessions: []Session{{UserID: "u1", ChatID: "c1"}}, ineligible: map[string]bool{}}
	sender := &fakeSender{fail: map[string]bool{}}
	cfg := DefaultConfig()
	cfg.MaxPerHour = 1
	cfg.MaxPerDay = 10
	e := newTestEngine(t, cfg, sessions, sender, nil)
	ctx := context.Background()

	r1, err := e.DistributeOpportunity(ctx, testOpportunity(), domain.StrategyFCFS, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, r1.UsersNotified)

	r2, err := e.DistributeOpportunity(ctx, testOpportunity(), domain.StrategyFCFS, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, r2.UsersNotified)
	assert.Equal(t, 1, r2.UsersSkipped)
}

func TestEngine_FailedSendIsNotCountedAsNotified(t *testing.T) {
	sessions := &fakeSessions{sessions: []Session{{UserID: "u1", ChatID: "c1"}}, ineligible: map[string]bool{}}
	sender := &fakeSender{fail: map[string]bool{"c1": true}}
	e := newTestEngine(t, DefaultConfig(), sessions, sender, nil)

	result, err := e.DistributeOpportunity(context.Background(), testOpportunity(), domain.StrategyFCFS, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, result.UsersNotified)
	assert.Equal(t, 1, result.UsersSkipped)
}

func TestOpportunityPriorityScore_DecaysWithAgeAndFloorsAtHalf(t *testing.T) {
	opp := testOpportunity()
	now := time.Now()

	fresh := opportunityPriorityScore(opp, now, now)
	old := opportunityPriorityScore(opp, now.Add(-120*time.Minute), now)

	assert.InDelta(t, fresh*0.5, old, 1e-9)
}

func TestOpportunityPriorityScore_NeverNegative(t *testing.T) {
	opp := testOpportunity()
	opp.RateDifference = -1000
	score := opportunityPriorityScore(opp, time.Now(), time.Now())
	assert.GreaterOrEqual(t, score, 0.0)
}
