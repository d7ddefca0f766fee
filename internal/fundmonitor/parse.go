package fundmonitor

import (
	"encoding/json"

	"github.com/aristath/arbitrage-platform/internal/apperr"
)

// balanceEntry is the array-of-balances wire shape:
// [{"asset":"BTC","free":1.0,"used":0.0,"total":1.0}, ...]
type balanceEntry struct {
	Asset string  `json:"asset"`
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

// balanceFields is the object-keyed-by-asset wire shape:
// {"BTC":{"free":1.0,"used":0.0,"total":1.0}, ...}
type balanceFields struct {
	Free  float64 `json:"free"`
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

// parseRawBalances accepts either wire shape and normalizes to a map
// keyed by asset symbol.
func parseRawBalances(raw []byte) (map[string]Balance, error) {
	var asArray []balanceEntry
	if err := json.Unmarshal(raw, &asArray); err == nil {
		out := make(map[string]Balance, len(asArray))
		for _, e := range asArray {
			out[e.Asset] = Balance{Asset: e.Asset, Free: e.Free, Used: e.Used, Total: e.Total}
		}
		return out, nil
	}

	var asObject map[string]balanceFields
	if err := json.Unmarshal(raw, &asObject); err == nil {
		out := make(map[string]Balance, len(asObject))
		for asset, f := range asObject {
			out[asset] = Balance{Asset: asset, Free: f.Free, Used: f.Used, Total: f.Total}
		}
		return out, nil
	}

	return nil, apperr.New(apperr.SerializationError, "fundmonitor.parseRawBalances", parseErr("unrecognized balance payload shape"))
}

type parseErr string

func (e parseErr) Error() string { return string(e) }
