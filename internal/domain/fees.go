package domain

// StaticFeeTable resolves trading fees from a fixed, per-exchange schedule.
// Whether get_trading_fees should instead be derived from live exchange
// endpoints is an open question upstream implementations resolve
// differently; this platform ships the static table and exposes
// FeeProvider as the hook for an operator to wire a live source.
type StaticFeeTable struct {
	fees map[ExchangeID]TradingFee
}

// NewStaticFeeTable builds a fee table seeded with conservative default
// maker/taker fees for the supported venues.
func NewStaticFeeTable() *StaticFeeTable {
	return &StaticFeeTable{
		fees: map[ExchangeID]TradingFee{
			ExchangeBinance: {Maker: 0.0002, Taker: 0.0004, Percentage: true},
			ExchangeBybit:   {Maker: 0.0001, Taker: 0.0006, Percentage: true},
			ExchangeOKX:     {Maker: 0.0002, Taker: 0.0005, Percentage: true},
			ExchangeBitget:  {Maker: 0.0002, Taker: 0.0006, Percentage: true},
		},
	}
}

// GetTradingFee implements FeeProvider.
func (t *StaticFeeTable) GetTradingFee(exchange ExchangeID) (TradingFee, error) {
	fee, ok := t.fees[exchange]
	if !ok {
		return TradingFee{}, ErrUnknownExchange
	}
	return fee, nil
}

// ErrUnknownExchange is returned when a fee lookup targets an unconfigured venue.
var ErrUnknownExchange = &unknownExchangeError{}

type unknownExchangeError struct{}

func (*unknownExchangeError) Error() string { return "unknown exchange" }
