package dlob

import (
	sdkmath "cosmossdk.io/math"
)

// Side names a book side in query params and generator plumbing.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// ParseSide validates a side query value.
func ParseSide(s string) (Side, bool) {
	switch Side(s) {
	case SideBid, SideAsk:
		return Side(s), true
	}
	return "", false
}

// Level is one (price, size) contribution from a liquidity generator.
type Level struct {
	Price sdkmath.Int
	Size  sdkmath.Int
}

// L2Generator is a lazy, restartable sequence of price levels for one side,
// emitted best-first (descending for bids, ascending for asks). The book,
// the vAMM curve, and external venue mirrors all satisfy it, so the
// aggregator never knows where liquidity came from beyond the source name.
type L2Generator interface {
	// Source names the venue in per-level source attributions.
	Source() string
	// Next yields the next level; ok is false at end of sequence.
	Next() (level Level, ok bool)
}

// DLOBSource is the source name for levels contributed by resting orders.
const DLOBSource = "dlob"

// bookGenerator walks one sorted book side, one node per level.
type bookGenerator struct {
	nodes []*Node
	i     int
}

// SideGenerator returns a generator over a sorted node slice.
func SideGenerator(nodes []*Node) L2Generator {
	return &bookGenerator{nodes: nodes}
}

func (g *bookGenerator) Source() string { return DLOBSource }

func (g *bookGenerator) Next() (Level, bool) {
	if g.i >= len(g.nodes) {
		return Level{}, false
	}
	n := g.nodes[g.i]
	g.i++
	return Level{Price: n.Price, Size: n.Size()}, true
}
