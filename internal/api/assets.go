package api

import (
	"context"
	"net/url"
)

// ListActiveAssets returns all active US equity assets.
func (c *Client) ListActiveAssets(ctx context.Context) ([]Asset, error) {
	query := url.Values{}
	query.Set("status", "active")
	query.Set("asset_class", "us_equity")

	var assets []Asset
	if err := c.get(ctx, "/v2/assets", query, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// TradableSymbols reduces an asset list to the set of tradable symbols.
func TradableSymbols(assets []Asset) map[string]bool {
	out := make(map[string]bool, len(assets))
	for _, a := range assets {
		if a.Tradable {
			out[a.Symbol] = true
		}
	}
	return out
}
