// Package vamm turns a perp market's virtual AMM state into synthetic book
// levels. The curve contributes liquidity only on perp markets; the
// aggregator consumes it through the same generator interface as real
// orders and external venues.
package vamm

import (
	sdkmath "cosmossdk.io/math"

	"dlob-server/internal/dlob"
)

// Source is the venue name attached to vAMM-contributed levels.
const Source = "vamm"

// bpsDenom converts basis points to fractions of the reserve price.
var bpsDenom = sdkmath.NewInt(10_000)

// State is the decoded vAMM curve for one perp market.
type State struct {
	// BaseAssetReserve and QuoteAssetReserve are the virtual reserves,
	// both BASE_PRECISION-scaled.
	BaseAssetReserve  sdkmath.Int
	QuoteAssetReserve sdkmath.Int
	// PegMultiplier is PRICE_PRECISION-scaled: the reserve price when the
	// two reserves are equal.
	PegMultiplier sdkmath.Int

	// SpreadBps is the quoted half-spread off reserve price; MaxSpreadBps
	// bounds how deep the curve quotes.
	SpreadBps    uint32
	MaxSpreadBps uint32

	// OpenBids and OpenAsks are the base amounts the curve is willing to
	// quote per side, BASE_PRECISION-scaled.
	OpenBids sdkmath.Int
	OpenAsks sdkmath.Int

	Slot uint64
}

// Valid reports whether the state can price anything.
func (s State) Valid() bool {
	return !s.BaseAssetReserve.IsNil() && s.BaseAssetReserve.IsPositive() &&
		!s.QuoteAssetReserve.IsNil() && !s.PegMultiplier.IsNil()
}

// ReservePrice is the curve's instantaneous price, PRICE_PRECISION-scaled.
func (s State) ReservePrice() sdkmath.Int {
	return s.QuoteAssetReserve.Mul(s.PegMultiplier).Quo(s.BaseAssetReserve)
}

// generator emits numOrders uniform levels between the curve's best and
// worst quote for one side.
type generator struct {
	prices []sdkmath.Int
	size   sdkmath.Int
	i      int
}

// Generator builds the synthetic level sequence for one side. numOrders
// bounds how many levels are emitted. Returns nil when the state cannot
// quote that side.
func Generator(s State, side dlob.Side, numOrders int) dlob.L2Generator {
	if !s.Valid() || numOrders <= 0 {
		return nil
	}

	open := s.OpenBids
	if side == dlob.SideAsk {
		open = s.OpenAsks
	}
	if open.IsNil() || !open.IsPositive() {
		return nil
	}

	reserve := s.ReservePrice()
	half := sdkmath.NewInt(int64(s.SpreadBps) / 2)
	maxHalf := sdkmath.NewInt(int64(s.MaxSpreadBps) / 2)

	var best, worst sdkmath.Int
	if side == dlob.SideBid {
		best = reserve.Mul(bpsDenom.Sub(half)).Quo(bpsDenom)
		worst = reserve.Mul(bpsDenom.Sub(maxHalf)).Quo(bpsDenom)
	} else {
		best = reserve.Mul(bpsDenom.Add(half)).Quo(bpsDenom)
		worst = reserve.Mul(bpsDenom.Add(maxHalf)).Quo(bpsDenom)
	}

	if numOrders > 1000 {
		numOrders = 1000
	}
	size := open.QuoRaw(int64(numOrders))
	if !size.IsPositive() {
		// Too little liquidity to split: quote it all at the best price.
		numOrders = 1
		size = open
	}

	prices := make([]sdkmath.Int, 0, numOrders)
	span := worst.Sub(best)
	for i := 0; i < numOrders; i++ {
		if numOrders == 1 {
			prices = append(prices, best)
			break
		}
		step := span.MulRaw(int64(i)).QuoRaw(int64(numOrders - 1))
		prices = append(prices, best.Add(step))
	}

	return &generator{prices: prices, size: size}
}

func (g *generator) Source() string { return Source }

func (g *generator) Next() (dlob.Level, bool) {
	if g.i >= len(g.prices) {
		return dlob.Level{}, false
	}
	level := dlob.Level{Price: g.prices[g.i], Size: g.size}
	g.i++
	return level, true
}
