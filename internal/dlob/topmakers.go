package dlob

import (
	"dlob-server/pkg/types"
)

// TopMaker is one distinct maker drawn from the resting book.
type TopMaker struct {
	UserAccount types.Pubkey
	Authority   types.Pubkey
}

// TopMakers walks the resting side in book order and returns up to limit
// distinct maker user accounts. limit <= 0 means no cap. Early break: the
// walk stops as soon as the cap is reached.
func (s *Snapshot) TopMakers(key types.MarketKey, side Side, limit int) []TopMaker {
	book, ok := s.Book(key)
	if !ok {
		return nil
	}

	nodes := book.Bids
	if side == SideAsk {
		nodes = book.Asks
	}

	seen := make(map[types.Pubkey]struct{})
	var out []TopMaker
	for _, n := range nodes {
		if !n.Resting {
			continue
		}
		if _, dup := seen[n.UserAccount]; dup {
			continue
		}
		seen[n.UserAccount] = struct{}{}
		out = append(out, TopMaker{UserAccount: n.UserAccount, Authority: n.Authority})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
