package fundmonitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/aristath/arbitrage-platform/internal/apperr"
)

// YahooPriceOracle resolves USD prices for crypto assets via Yahoo
// Finance's `<ASSET>-USD` quote symbol, the same ticker.New/Quote/Info
// fallback chain the Yahoo client uses for equities.
type YahooPriceOracle struct {
	maxRetries int
	log        zerolog.Logger
}

// NewYahooPriceOracle builds a YahooPriceOracle. maxRetries <= 0
// defaults to 3.
func NewYahooPriceOracle(maxRetries int, log zerolog.Logger) *YahooPriceOracle {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &YahooPriceOracle{
		maxRetries: maxRetries,
		log:        log.With().Str("client", "yahoo-price-oracle").Logger(),
	}
}

// GetUSDPrice fetches asset's current USD price, retrying with
// exponential backoff and falling back from the live quote to the
// ticker's info snapshot, mirroring the Yahoo equity client's retry
// shape.
func (o *YahooPriceOracle) GetUSDPrice(ctx context.Context, asset string) (float64, error) {
	symbol := yahooCryptoSymbol(asset)

	var lastErr error
	for attempt := 0; attempt < o.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		t, err := ticker.New(symbol)
		if err != nil {
			lastErr = err
			o.backoff(attempt)
			continue
		}

		if quote, err := t.Quote(); err == nil && quote != nil && quote.RegularMarketPrice > 0 {
			t.Close()
			return quote.RegularMarketPrice, nil
		}

		if info, err := t.Info(); err == nil && info != nil && info.CurrentPrice > 0 {
			t.Close()
			return info.CurrentPrice, nil
		}

		t.Close()
		lastErr = fmt.Errorf("no valid price for %s after quote and info lookup", symbol)
		o.backoff(attempt)
	}

	return 0, apperr.New(apperr.ServiceUnavailable, "fundmonitor.YahooPriceOracle.GetUSDPrice", lastErr)
}

func (o *YahooPriceOracle) backoff(attempt int) {
	wait := time.Duration(1<<uint(attempt)) * time.Second
	o.log.Warn().Int("attempt", attempt+1).Dur("wait", wait).Msg("retrying price lookup")
	time.Sleep(wait)
}

func yahooCryptoSymbol(asset string) string {
	return strings.ToUpper(asset) + "-USD"
}
