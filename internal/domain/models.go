// Package domain defines the core entities shared across the opportunity
// pipeline: exchanges, arbitrage opportunities, and the types derived from
// them during distribution.
package domain

import "time"

// ExchangeID identifies a supported trading venue.
type ExchangeID string

const (
	ExchangeBinance ExchangeID = "binance"
	ExchangeBybit   ExchangeID = "bybit"
	ExchangeOKX     ExchangeID = "okx"
	ExchangeBitget  ExchangeID = "bitget"
)

// ArbitrageType classifies the mechanism behind a detected opportunity.
type ArbitrageType string

const (
	ArbitrageFundingRate   ArbitrageType = "fundingRate"
	ArbitrageSpotFutures   ArbitrageType = "spotFutures"
	ArbitrageCrossExchange ArbitrageType = "crossExchange"
)

// ExchangeRate is a single funding-rate or price reading from a venue.
type ExchangeRate struct {
	Exchange  ExchangeID `json:"exchange"`
	Pair      string     `json:"pair"`
	Rate      float64    `json:"rate"`
	Timestamp int64      `json:"timestamp"`
}

// ArbitrageOpportunity is a detected price or funding-rate difference
// between two venues for the same trading pair.
type ArbitrageOpportunity struct {
	ID                    string        `json:"id"`
	Pair                  string        `json:"pair"`
	LongExchange          ExchangeID    `json:"long_exchange"`
	ShortExchange         ExchangeID    `json:"short_exchange"`
	LongRate              *float64      `json:"long_rate,omitempty"`
	ShortRate             *float64      `json:"short_rate,omitempty"`
	RateDifference        float64       `json:"rate_difference"`
	NetRateDifference     *float64      `json:"net_rate_difference,omitempty"`
	PotentialProfitValue  *float64      `json:"potential_profit_value,omitempty"`
	Timestamp             int64         `json:"timestamp"` // unix millis
	Type                  ArbitrageType `json:"type"`
	Details               *string       `json:"details,omitempty"`
}

// New builds an ArbitrageOpportunity, enforcing the long/short distinctness
// invariant.
func New(id, pair string, long, short ExchangeID, rateDifference float64, timestamp int64, kind ArbitrageType) (*ArbitrageOpportunity, error) {
	if long == short {
		return nil, ErrSameExchange
	}
	return &ArbitrageOpportunity{
		ID:             id,
		Pair:           pair,
		LongExchange:   long,
		ShortExchange:  short,
		RateDifference: rateDifference,
		Timestamp:      timestamp,
		Type:           kind,
	}, nil
}

// WithNetDifference sets the post-fee rate difference, enforcing that it
// never exceeds the gross difference.
func (o *ArbitrageOpportunity) WithNetDifference(net float64) *ArbitrageOpportunity {
	if net > o.RateDifference {
		net = o.RateDifference
	}
	o.NetRateDifference = &net
	return o
}

// WithPotentialProfit attaches an estimated profit value.
func (o *ArbitrageOpportunity) WithPotentialProfit(profit float64) *ArbitrageOpportunity {
	o.PotentialProfitValue = &profit
	return o
}

// WithDetails attaches a free-text explanation.
func (o *ArbitrageOpportunity) WithDetails(details string) *ArbitrageOpportunity {
	o.Details = &details
	return o
}

// DistributionStrategy selects which fairness algorithm governs delivery of
// a GlobalOpportunity.
type DistributionStrategy string

const (
	StrategyFCFS         DistributionStrategy = "fcfs"
	StrategyRoundRobin   DistributionStrategy = "round_robin"
	StrategyPriorityBased DistributionStrategy = "priority_based"
	StrategyBroadcast    DistributionStrategy = "broadcast"
)

// OpportunitySource tags whether an opportunity was produced by the system
// or submitted by a user.
type OpportunitySource string

const (
	SourceSystem OpportunitySource = "system"
	SourceUser   OpportunitySource = "user"
)

// GlobalOpportunity wraps an ArbitrageOpportunity as a candidate for
// distribution, with priority and delivery bookkeeping attached.
type GlobalOpportunity struct {
	Opportunity         ArbitrageOpportunity `json:"opportunity"`
	DetectedAt          time.Time            `json:"detected_at"`
	ExpiresAt           time.Time            `json:"expires_at"`
	PriorityScore       float64              `json:"priority_score"`
	Strategy            DistributionStrategy `json:"strategy"`
	Source              OpportunitySource    `json:"source"`
	CurrentParticipants int                  `json:"current_participants"`
	MaxParticipants     *int                 `json:"max_participants,omitempty"`
	DistributedTo       map[string]struct{}  `json:"-"`
}

// ErrSameExchange is returned when an opportunity's long and short venues
// coincide, which is never a valid arbitrage.
var ErrSameExchange = &sameExchangeError{}

type sameExchangeError struct{}

func (*sameExchangeError) Error() string { return "long and short exchange must differ" }

// CanAcceptParticipant reports whether the opportunity still has room for
// another distinct recipient.
func (g *GlobalOpportunity) CanAcceptParticipant(userID string) bool {
	if _, already := g.DistributedTo[userID]; already {
		return false
	}
	if g.MaxParticipants != nil && g.CurrentParticipants >= *g.MaxParticipants {
		return false
	}
	return true
}

// MarkDistributed records delivery to userID. Only C9 calls this.
func (g *GlobalOpportunity) MarkDistributed(userID string) {
	if g.DistributedTo == nil {
		g.DistributedTo = make(map[string]struct{})
	}
	if _, already := g.DistributedTo[userID]; already {
		return
	}
	g.DistributedTo[userID] = struct{}{}
	g.CurrentParticipants++
}

// TradingFee is the maker/taker fee schedule used to derive net rate
// differences from gross ones.
type TradingFee struct {
	Maker      float64 `json:"maker"`
	Taker      float64 `json:"taker"`
	Percentage bool    `json:"percentage"`
}

// FeeProvider resolves trading fees for an exchange; the default
// implementation is a static table (see fees.go), with this interface
// serving as the hook for a live override.
type FeeProvider interface {
	GetTradingFee(exchange ExchangeID) (TradingFee, error)
}
