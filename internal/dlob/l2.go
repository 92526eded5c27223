package dlob

import (
	sdkmath "cosmossdk.io/math"

	"dlob-server/pkg/types"
)

// UnlimitedDepth draws the full book. Used internally when grouping is
// requested, since buckets are formed before depth applies.
const UnlimitedDepth = -1

// L2Level is one aggregated price level. Sources maps venue name to the
// size that venue contributed at this price.
type L2Level struct {
	Price   sdkmath.Int
	Size    sdkmath.Int
	Sources map[string]sdkmath.Int
}

// L2Book is a depth-limited aggregated view of one market.
type L2Book struct {
	Slot uint64
	Bids []L2Level
	Asks []L2Level
}

// L2Options selects what goes into an aggregated view. Generators beyond the
// book itself (vAMM, venue fallbacks) are supplied per side; empty slices are
// legal. A nil Grouping means no bucketing.
type L2Options struct {
	Depth         int
	BidGenerators []L2Generator
	AskGenerators []L2Generator
	Grouping      *sdkmath.Int
}

// L2 merges the market's book with the supplied generators into an
// aggregated, depth-limited view. Level ordering matches book ordering;
// levels at the same price from distinct sources are coalesced.
func (s *Snapshot) L2(key types.MarketKey, opts L2Options) L2Book {
	book, ok := s.Book(key)
	if !ok {
		return L2Book{Slot: s.Slot}
	}

	depth := opts.Depth
	if opts.Grouping != nil {
		// Buckets form over the whole book; depth applies afterwards.
		depth = UnlimitedDepth
	}

	bidGens := append([]L2Generator{SideGenerator(book.Bids)}, opts.BidGenerators...)
	askGens := append([]L2Generator{SideGenerator(book.Asks)}, opts.AskGenerators...)

	bids := mergeLevels(bidGens, SideBid, depth)
	asks := mergeLevels(askGens, SideAsk, depth)

	if opts.Grouping != nil {
		bids = groupLevels(bids, *opts.Grouping, SideBid)
		asks = groupLevels(asks, *opts.Grouping, SideAsk)
	}
	if opts.Depth >= 0 {
		bids = truncate(bids, opts.Depth)
		asks = truncate(asks, opts.Depth)
	}

	return L2Book{Slot: book.Slot, Bids: bids, Asks: asks}
}

// mergeLevels k-way-merges generators whose sequences are already sorted
// best-first, coalescing equal prices across sources. depth < 0 drains
// everything.
func mergeLevels(gens []L2Generator, side Side, depth int) []L2Level {
	type head struct {
		gen   L2Generator
		level Level
	}

	heads := make([]*head, 0, len(gens))
	for _, g := range gens {
		if level, ok := g.Next(); ok {
			heads = append(heads, &head{gen: g, level: level})
		}
	}

	better := func(a, b sdkmath.Int) bool {
		if side == SideBid {
			return a.GT(b)
		}
		return a.LT(b)
	}

	var out []L2Level
	for len(heads) > 0 {
		if depth >= 0 && len(out) >= depth {
			break
		}

		// Pick the best head.
		best := 0
		for i := 1; i < len(heads); i++ {
			if better(heads[i].level.Price, heads[best].level.Price) {
				best = i
			}
		}
		h := heads[best]

		if n := len(out); n > 0 && out[n-1].Price.Equal(h.level.Price) {
			out[n-1].Size = out[n-1].Size.Add(h.level.Size)
			addSource(out[n-1].Sources, h.gen.Source(), h.level.Size)
		} else {
			sources := make(map[string]sdkmath.Int, 1)
			addSource(sources, h.gen.Source(), h.level.Size)
			out = append(out, L2Level{Price: h.level.Price, Size: h.level.Size, Sources: sources})
		}

		if level, ok := h.gen.Next(); ok {
			h.level = level
		} else {
			heads[best] = heads[len(heads)-1]
			heads = heads[:len(heads)-1]
		}
	}
	return out
}

func addSource(sources map[string]sdkmath.Int, name string, size sdkmath.Int) {
	if prev, ok := sources[name]; ok {
		sources[name] = prev.Add(size)
	} else {
		sources[name] = size
	}
}

// groupLevels buckets prices into intervals of the grouping width: bids
// round down, asks round up to the next multiple. Sizes and per-source
// contributions sum within a bucket. Input ordering is preserved, so output
// stays sorted.
func groupLevels(levels []L2Level, grouping sdkmath.Int, side Side) []L2Level {
	if len(levels) == 0 {
		return levels
	}

	bucket := func(price sdkmath.Int) sdkmath.Int {
		rem := price.Mod(grouping)
		if rem.IsZero() {
			return price
		}
		if side == SideBid {
			return price.Sub(rem)
		}
		return price.Sub(rem).Add(grouping)
	}

	var out []L2Level
	for _, lvl := range levels {
		p := bucket(lvl.Price)
		if n := len(out); n > 0 && out[n-1].Price.Equal(p) {
			out[n-1].Size = out[n-1].Size.Add(lvl.Size)
			for name, size := range lvl.Sources {
				addSource(out[n-1].Sources, name, size)
			}
			continue
		}
		sources := make(map[string]sdkmath.Int, len(lvl.Sources))
		for name, size := range lvl.Sources {
			sources[name] = size
		}
		out = append(out, L2Level{Price: p, Size: lvl.Size, Sources: sources})
	}
	return out
}

func truncate(levels []L2Level, depth int) []L2Level {
	if len(levels) > depth {
		return levels[:depth]
	}
	return levels
}
