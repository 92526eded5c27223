package dlob

import (
	sdkmath "cosmossdk.io/math"

	"dlob-server/pkg/types"
)

// L3Level is one resting order listed individually: no bucketing, no
// synthetic liquidity.
type L3Level struct {
	Price          sdkmath.Int
	Size           sdkmath.Int
	Maker          types.Pubkey // user account that owns the order
	MakerAuthority types.Pubkey
	OrderID        uint32
	UserOrderID    uint8
}

// L3Book lists every resting order in a market, in book order.
type L3Book struct {
	Slot uint64
	Bids []L3Level
	Asks []L3Level
}

// L3 returns the per-order book for one market. Only resting orders appear;
// in-auction and taking orders are aggregate-level concerns.
func (s *Snapshot) L3(key types.MarketKey) L3Book {
	book, ok := s.Book(key)
	if !ok {
		return L3Book{Slot: s.Slot}
	}
	return L3Book{
		Slot: book.Slot,
		Bids: l3Side(book.RestingBids()),
		Asks: l3Side(book.RestingAsks()),
	}
}

func l3Side(nodes []*Node) []L3Level {
	out := make([]L3Level, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, L3Level{
			Price:          n.Price,
			Size:           n.Size(),
			Maker:          n.UserAccount,
			MakerAuthority: n.Authority,
			OrderID:        n.Order.OrderID,
			UserOrderID:    n.Order.UserOrderID,
		})
	}
	return out
}
