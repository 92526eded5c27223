// Package markets holds the static per-environment market listing.
//
// Markets are fixed for the lifetime of the process: the registry is built
// once at startup from the environment tag and consulted by the book builder
// (which markets to rebuild) and the HTTP surface (marketName resolution).
package markets

import (
	"fmt"
	"strings"

	"dlob-server/pkg/types"
)

// Registry resolves markets by name and by (type, index).
type Registry struct {
	markets []types.Market
	byName  map[string]types.Market
	byKey   map[types.MarketKey]types.Market
}

// ForEnv returns the market listing for a chain environment tag.
func ForEnv(env string) (*Registry, error) {
	listing, ok := listings[env]
	if !ok {
		return nil, fmt.Errorf("no market listing for env %q", env)
	}
	r := &Registry{
		markets: listing,
		byName:  make(map[string]types.Market, len(listing)),
		byKey:   make(map[types.MarketKey]types.Market, len(listing)),
	}
	for _, m := range listing {
		r.byName[strings.ToUpper(m.Name)] = m
		r.byKey[m.Key()] = m
	}
	return r, nil
}

// All returns every listed market.
func (r *Registry) All() []types.Market { return r.markets }

// Perps returns the perp markets only.
func (r *Registry) Perps() []types.Market {
	out := make([]types.Market, 0, len(r.markets))
	for _, m := range r.markets {
		if m.MarketType == types.MarketTypePerp {
			out = append(out, m)
		}
	}
	return out
}

// ByName resolves a market by its case-insensitive name, e.g. "sol-perp".
func (r *Registry) ByName(name string) (types.Market, bool) {
	m, ok := r.byName[strings.ToUpper(name)]
	return m, ok
}

// ByKey resolves a market by (marketType, marketIndex).
func (r *Registry) ByKey(key types.MarketKey) (types.Market, bool) {
	m, ok := r.byKey[key]
	return m, ok
}

// Program returns the exchange program account whose user accounts the
// server subscribes to.
func Program(env string) (types.Pubkey, error) {
	pk, ok := programs[env]
	if !ok {
		return types.Pubkey{}, fmt.Errorf("no program for env %q", env)
	}
	return pk, nil
}

var programs = map[string]types.Pubkey{
	"devnet":       mustPubkey("7hzDM2D9eUndb6BbmwP5Y6dPQo9sSDXVXn62QjuEtmLu"),
	"mainnet-beta": mustPubkey("5YWYqg7GqWCPVdDiR6neBUGd7vEZAyKoc6yCUyYQSkRA"),
}

func mustPubkey(s string) types.Pubkey {
	pk, err := types.ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// Static listings. Venue addresses are only present for spot markets that
// have an external order book to fall back on.
var listings = map[string][]types.Market{
	"devnet": {
		{Name: "SOL-PERP", MarketType: types.MarketTypePerp, MarketIndex: 0,
			Oracle:       mustPubkey("65wwJ3hooKaRGFavLECREurkx4npjK71JC9uQUZYAPje"),
			StateAccount: mustPubkey("CvRBAgtQ45ncuATuEn25weaY2uBb2MCjVC2uFgDzriRh")},
		{Name: "BTC-PERP", MarketType: types.MarketTypePerp, MarketIndex: 1,
			Oracle:       mustPubkey("7b62tvuf9GKZunkavduPZbBXfw1XbHfdyksqU5dKwo7G"),
			StateAccount: mustPubkey("84wfJmgnrgJHNbmEExsPKFxJckzDBHbdF5LWLVNjEr5q")},
		{Name: "ETH-PERP", MarketType: types.MarketTypePerp, MarketIndex: 2,
			Oracle:       mustPubkey("2BqWt6tm7aqGHQS2PUuRqmFDdSZB37mA2br2ra2U2hP9"),
			StateAccount: mustPubkey("8yBqAbp4kHSyxHNRjyed7tmvuHzcgbNUBKKMowT3n2xd")},
		{Name: "USDC", MarketType: types.MarketTypeSpot, MarketIndex: 0,
			Oracle: mustPubkey("8DKc2ySsEdWXPt3iBLpPQ4WPtWd9YTK1sCWpxJjaacGh")},
		{Name: "SOL", MarketType: types.MarketTypeSpot, MarketIndex: 1,
			Oracle:        mustPubkey("4TnXj1t7E4UybNh3rKzfgjDDazDBjJJgdWWPmZJdfgpy"),
			PhoenixMarket: mustPubkey("GsWRcjgQFrDps17D2UPyfTZKpy8Wv6DY43v5AbwYaXr7"),
			SerumMarket:   mustPubkey("4WSGvoaDQAi3X3Mh16m5X815QbCNp92Fne9isA134Y1D")},
	},
	"mainnet-beta": {
		{Name: "SOL-PERP", MarketType: types.MarketTypePerp, MarketIndex: 0,
			Oracle:       mustPubkey("2PaaihKQYJGQ99KGSKT7r3LMgAs8Tgy4inEs2EkA2wqG"),
			StateAccount: mustPubkey("H9CbJxgaocMv27DvGZhVbQ5JUi9W3RopQ2eCXtFtvrXZ")},
		{Name: "BTC-PERP", MarketType: types.MarketTypePerp, MarketIndex: 1,
			Oracle:       mustPubkey("Adw3Sjrziiu9wweYumMAANvWrjKyrKN4ZeHi84a5zPQc"),
			StateAccount: mustPubkey("7VUPahfpLdy6AmvedAaJPqmuVHxkDq8LT7dvy6B3dK2k")},
		{Name: "ETH-PERP", MarketType: types.MarketTypePerp, MarketIndex: 2,
			Oracle:       mustPubkey("9wSJsngEa2xEFhTMMYykrtVsfj5NRi4a5C6VF4nAV9AW"),
			StateAccount: mustPubkey("A5cjSsXCKALygnfNd5V5YWFm6UKsARYF5cp9VacN6KR4")},
		{Name: "USDC", MarketType: types.MarketTypeSpot, MarketIndex: 0,
			Oracle: mustPubkey("EGUBGBScmD35LrQcN1RAa844hZTkxZwW25KDfNf1TjQJ")},
		{Name: "SOL", MarketType: types.MarketTypeSpot, MarketIndex: 1,
			Oracle:        mustPubkey("4HyTYuRqp2u7cXCtJQdyLSFirmRLPAPDjHC7X2GFNPPG"),
			PhoenixMarket: mustPubkey("CeJBsu7aTzZUznkpVk1sYRRVYvPRqQ3skaecYcmWy4hc"),
			SerumMarket:   mustPubkey("7cxFNcTfeQ49bFCbmqw7MrJ6mAmX2JfPASZWTzZ55v3J")},
	},
}
