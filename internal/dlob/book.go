package dlob

import (
	"container/heap"
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"dlob-server/internal/markets"
	"dlob-server/pkg/types"
)

// AccountSource is the view of the order index the builder reads. Iteration
// order is unspecified; updates arriving during a tick land in the next one.
type AccountSource interface {
	Range(fn func(pubkey types.Pubkey, account *types.UserAccount) bool)
}

// OracleSource supplies per-market oracle readings.
type OracleSource interface {
	Oracle(key types.MarketKey) (types.OraclePriceData, bool)
}

// SlotSource supplies the current chain slot.
type SlotSource interface {
	Slot() uint64
}

// MarketBook is one market's sorted two-sided book at a snapshot slot.
// Bids descend by effective price, asks ascend.
type MarketBook struct {
	Market types.Market
	Slot   uint64
	Oracle types.OraclePriceData

	Bids []*Node
	Asks []*Node
}

// RestingBids returns the maker-eligible bids, preserving book order.
func (b *MarketBook) RestingBids() []*Node { return restingOnly(b.Bids) }

// RestingAsks returns the maker-eligible asks, preserving book order.
func (b *MarketBook) RestingAsks() []*Node { return restingOnly(b.Asks) }

func restingOnly(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Resting {
			out = append(out, n)
		}
	}
	return out
}

// Snapshot is an immutable whole-book snapshot published by the builder.
type Snapshot struct {
	Slot        uint64
	PublishedAt time.Time
	books       map[types.MarketKey]*MarketBook
}

// Book returns the book for one market. The second return is false for
// unlisted markets.
func (s *Snapshot) Book(key types.MarketKey) (*MarketBook, bool) {
	b, ok := s.books[key]
	return b, ok
}

// NonEmpty reports whether any market has at least one order.
func (s *Snapshot) NonEmpty() bool {
	for _, b := range s.books {
		if len(b.Bids) > 0 || len(b.Asks) > 0 {
			return true
		}
	}
	return false
}

// Builder owns snapshot construction. One logical task calls Run; any number
// of readers call Snapshot concurrently.
type Builder struct {
	accounts AccountSource
	oracles  OracleSource
	slots    SlotSource
	registry *markets.Registry
	logger   *slog.Logger

	snap     atomic.Pointer[Snapshot]
	building atomic.Bool
	ticks    atomic.Uint64
}

// NewBuilder wires a builder over its inputs. The initial snapshot is empty
// with slot zero.
func NewBuilder(accounts AccountSource, oracles OracleSource, slots SlotSource, registry *markets.Registry, logger *slog.Logger) *Builder {
	b := &Builder{
		accounts: accounts,
		oracles:  oracles,
		slots:    slots,
		registry: registry,
		logger:   logger.With("component", "book-builder"),
	}
	b.snap.Store(&Snapshot{books: make(map[types.MarketKey]*MarketBook)})
	return b
}

// Snapshot returns the most recently published snapshot. Never nil.
func (b *Builder) Snapshot() *Snapshot { return b.snap.Load() }

// Ticks returns how many snapshots have been published.
func (b *Builder) Ticks() uint64 { return b.ticks.Load() }

// Run rebuilds the book every interval until ctx is cancelled.
func (b *Builder) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Tick(time.Now())
		}
	}
}

// Tick rebuilds and publishes one snapshot. At most one rebuild runs at a
// time: overlapping ticks are dropped, keeping the previous snapshot
// authoritative. Failures are trapped for the same reason.
func (b *Builder) Tick(now time.Time) {
	if !b.building.CompareAndSwap(false, true) {
		b.logger.Warn("tick still in progress, skipping")
		return
	}
	defer b.building.Store(false)

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("book rebuild panicked, keeping previous snapshot", "panic", r)
		}
	}()

	snap := b.build(now)
	b.snap.Store(snap)
	b.ticks.Add(1)
}

func (b *Builder) build(now time.Time) *Snapshot {
	slot := b.slots.Slot()
	// A snapshot's slot never goes backwards, even if the slot source
	// briefly does after an RPC failover.
	if prev := b.snap.Load(); prev != nil && prev.Slot > slot {
		slot = prev.Slot
	}
	nowUnix := now.Unix()

	type side struct {
		bids, asks *nodeHeap
		oracle     types.OraclePriceData
		market     types.Market
	}
	sides := make(map[types.MarketKey]*side, len(b.registry.All()))
	for _, m := range b.registry.All() {
		oracle, _ := b.oracles.Oracle(m.Key())
		sides[m.Key()] = &side{
			bids:   &nodeHeap{bids: true},
			asks:   &nodeHeap{bids: false},
			oracle: oracle,
			market: m,
		}
	}

	b.accounts.Range(func(pubkey types.Pubkey, account *types.UserAccount) bool {
		for _, order := range account.Orders {
			key := types.MarketKey{Type: order.MarketType, Index: order.MarketIndex}
			s, ok := sides[key]
			if !ok {
				continue
			}

			node, include, err := buildNode(order, pubkey, account.Authority, s.oracle, slot, nowUnix)
			if err != nil {
				// One malformed order never degrades the tick.
				b.logger.Warn("skipping order", "user", pubkey, "orderId", order.OrderID, "error", err)
				continue
			}
			if !include {
				continue
			}

			if node.Order.IsBid() {
				heap.Push(s.bids, node)
			} else {
				heap.Push(s.asks, node)
			}
		}
		return true
	})

	books := make(map[types.MarketKey]*MarketBook, len(sides))
	for key, s := range sides {
		books[key] = &MarketBook{
			Market: s.market,
			Slot:   slot,
			Oracle: s.oracle,
			Bids:   drain(s.bids),
			Asks:   drain(s.asks),
		}
	}

	return &Snapshot{
		Slot:        slot,
		PublishedAt: now,
		books:       books,
	}
}

// drain pops the heap into a fully sorted slice.
func drain(h *nodeHeap) []*Node {
	out := make([]*Node, 0, h.Len())
	for h.Len() > 0 {
		out = append(out, heap.Pop(h).(*Node))
	}
	return out
}
