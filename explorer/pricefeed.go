package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dan/utxo-wallet-core/corectx"
)

// HTTPPriceFeed is a thin reference PriceFeed over a market-price REST
// endpoint (spec §6, §4.9). krs.CalcFee already wraps the PriceFeed
// interface call in its own two-retry policy, so this client issues a
// single request per call rather than layering a second retry policy on
// top of that one.
type HTTPPriceFeed struct {
	BaseURL string
	http    *http.Client
}

// NewHTTPPriceFeed builds a client against baseURL.
func NewHTTPPriceFeed(baseURL string) *HTTPPriceFeed {
	return &HTTPPriceFeed{BaseURL: baseURL, http: &http.Client{}}
}

func (p *HTTPPriceFeed) MarketPriceUSD(ctx context.Context, reqID corectx.ReqID, coin string) (float64, error) {
	if err := corectx.RequireNetworking(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/public/price/"+coin, nil)
	if err != nil {
		return 0, fmt.Errorf("explorer: building price request: %w", err)
	}
	req.Header.Set("X-Request-Id", string(reqID))

	resp, err := p.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrExplorerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d", ErrExplorerUnavailable, resp.StatusCode)
	}

	var out struct {
		PriceUSD float64 `json:"priceUsd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("explorer: decoding price response: %w", err)
	}
	return out.PriceUSD, nil
}
