// Package venue mirrors external spot-venue order books (Phoenix, Serum)
// and exposes them as fallback liquidity generators for the L2 merge.
//
// Venue feeds quote human-readable decimal strings; the mirror stores them
// as decimals and converts to chain precision only when a generator walks
// the book. A mirror that has not been refreshed recently reports itself
// stale and contributes nothing, so a dead venue feed degrades to a
// DLOB-only book instead of serving frozen levels.
package venue

import (
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"dlob-server/internal/dlob"
	"dlob-server/pkg/types"
)

// Liquidity source labels, as they appear in L2 "sources" maps.
const (
	SourcePhoenix = "phoenix"
	SourceSerum   = "serum"
)

// bookMaxAge bounds how long a snapshot keeps serving after the last
// refresh.
const bookMaxAge = 10 * time.Second

// Level is one venue price level in human decimals.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// Mirror is the local copy of one venue market's book. Snapshots replace
// the whole book; venues we mirror push full books, not diffs.
type Mirror struct {
	mu      sync.RWMutex
	bids    []Level // descending
	asks    []Level // ascending
	updated time.Time
}

// NewMirror returns an empty mirror.
func NewMirror() *Mirror { return &Mirror{} }

// ApplySnapshot replaces both sides of the book.
func (m *Mirror) ApplySnapshot(bids, asks []Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bids = bids
	m.asks = asks
	m.updated = time.Now()
}

// Stale reports whether the mirror has not been refreshed within maxAge.
func (m *Mirror) Stale(maxAge time.Duration) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updated.IsZero() || time.Since(m.updated) > maxAge
}

// LastUpdated returns the time of the last applied snapshot.
func (m *Mirror) LastUpdated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updated
}

// Generator returns an L2 generator over one side of the mirrored book,
// converted to chain precision. The levels are copied out under the lock so
// the generator never races a snapshot replacement.
func (m *Mirror) Generator(source string, side dlob.Side) dlob.L2Generator {
	m.mu.RLock()
	levels := m.bids
	if side == dlob.SideAsk {
		levels = m.asks
	}
	copied := make([]Level, len(levels))
	copy(copied, levels)
	m.mu.RUnlock()

	return &levelGenerator{source: source, levels: copied}
}

type levelGenerator struct {
	source string
	levels []Level
	pos    int
}

func (g *levelGenerator) Source() string { return g.source }

func (g *levelGenerator) Next() (dlob.Level, bool) {
	for g.pos < len(g.levels) {
		lvl := g.levels[g.pos]
		g.pos++

		price := toChain(lvl.Price, types.PriceExp)
		size := toChain(lvl.Size, types.BaseExp)
		if !price.IsPositive() || !size.IsPositive() {
			continue
		}
		return dlob.Level{Price: price, Size: size}, true
	}
	return dlob.Level{}, false
}

// toChain shifts a human decimal into chain units, truncating any dust
// below one chain unit.
func toChain(d decimal.Decimal, exp int32) sdkmath.Int {
	return sdkmath.NewIntFromBigInt(d.Shift(exp).Truncate(0).BigInt())
}
