// Package dlob reconstructs the decentralized limit order book.
//
// The Builder rebuilds, on each tick, a fully sorted two-sided book per
// market from the current account index, the chain slot, and oracle prices.
// Snapshots are immutable once published: readers always see either the
// previous complete snapshot or the new one, never a half-built book.
//
// Aggregation (L2, L3, top makers) runs against a published snapshot and is
// generator-agnostic: the vAMM curve and external venue mirrors plug in as
// L2Generators next to the book itself.
package dlob

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"dlob-server/pkg/types"
)

// Node is one order materialized into a book side, priced at the snapshot
// slot. Nodes are immutable after the snapshot is published.
type Node struct {
	Order       types.Order
	UserAccount types.Pubkey
	Authority   types.Pubkey

	// Price is the effective price at the snapshot slot: the limit price,
	// the auction-interpolated price, or oracle price plus offset.
	Price sdkmath.Int

	// Resting marks maker-eligible orders: auction window elapsed (or
	// postOnly) and priced on the passive side of the oracle.
	Resting bool
}

// Size returns the unfilled base amount the node contributes to the book.
func (n *Node) Size() sdkmath.Int { return n.Order.BaseRemaining() }

// effectivePrice computes the price an order trades at for the given slot
// and oracle reading. Returns an error for orders that cannot be priced.
func effectivePrice(o *types.Order, oracle types.OraclePriceData, slot uint64) (sdkmath.Int, error) {
	if o.InAuction(slot) {
		return auctionPrice(o, slot), nil
	}

	switch o.OrderType {
	case types.OrderTypeOracle:
		if oracle.Price.IsNil() || oracle.Price.IsZero() {
			return sdkmath.Int{}, fmt.Errorf("oracle order %d with no oracle price", o.OrderID)
		}
		return oracle.Price.Add(o.OraclePriceOffset), nil
	case types.OrderTypeMarket:
		// Auction has elapsed; the order trades at its auction end price
		// until it expires.
		if !o.AuctionEndPrice.IsNil() && !o.AuctionEndPrice.IsZero() {
			return o.AuctionEndPrice, nil
		}
		return sdkmath.Int{}, fmt.Errorf("market order %d with no auction end price", o.OrderID)
	default:
		if o.Price.IsNil() || o.Price.IsZero() {
			// Oracle-offset variant of a limit order.
			if !o.OraclePriceOffset.IsNil() && !o.OraclePriceOffset.IsZero() {
				if oracle.Price.IsNil() || oracle.Price.IsZero() {
					return sdkmath.Int{}, fmt.Errorf("offset order %d with no oracle price", o.OrderID)
				}
				return oracle.Price.Add(o.OraclePriceOffset), nil
			}
			return sdkmath.Int{}, fmt.Errorf("order %d has no price", o.OrderID)
		}
		return o.Price, nil
	}
}

// auctionPrice linearly interpolates between the auction start and end
// prices by the fraction of the auction window elapsed at slot.
func auctionPrice(o *types.Order, slot uint64) sdkmath.Int {
	elapsed := int64(slot - o.Slot)
	duration := int64(o.AuctionDuration)
	if elapsed >= duration {
		return o.AuctionEndPrice
	}
	delta := o.AuctionEndPrice.Sub(o.AuctionStartPrice)
	return o.AuctionStartPrice.Add(delta.MulRaw(elapsed).QuoRaw(duration))
}

// isResting reports whether a priced order is maker-eligible: a limit-style
// order past its auction window (postOnly rests immediately), priced on the
// passive side of the oracle.
func isResting(o *types.Order, price sdkmath.Int, oracle types.OraclePriceData, slot uint64) bool {
	switch o.OrderType {
	case types.OrderTypeLimit, types.OrderTypeOracle:
	case types.OrderTypeTriggerLimit:
		// Satisfied trigger limits join the book but only rest once their
		// (zero-duration) auction treatment below passes.
	default:
		return false
	}

	if o.InAuction(slot) && !o.PostOnly {
		return false
	}

	if oracle.Price.IsNil() || oracle.Price.IsZero() {
		return true
	}
	if o.IsBid() {
		return price.LTE(oracle.Price)
	}
	return price.GTE(oracle.Price)
}

// buildNode prices and classifies one order. The second return is false when
// the order does not belong in the book at this slot.
func buildNode(o types.Order, user, authority types.Pubkey, oracle types.OraclePriceData, slot uint64, nowUnix int64) (*Node, bool, error) {
	if o.Status == types.StatusInit {
		return nil, false, nil
	}
	if o.Expired(nowUnix) {
		return nil, false, nil
	}
	if o.BaseRemaining().IsNil() || !o.BaseRemaining().IsPositive() {
		return nil, false, nil
	}

	// Trigger orders stay out of the book until their condition is
	// satisfied against the oracle; trigger-market orders never rest and
	// have no limit price to post at.
	if o.OrderType.IsTrigger() {
		if oracle.Price.IsNil() || oracle.Price.IsZero() || !o.TriggerSatisfied(oracle.Price) {
			return nil, false, nil
		}
		if o.OrderType == types.OrderTypeTriggerMarket {
			return nil, false, nil
		}
	}

	price, err := effectivePrice(&o, oracle, slot)
	if err != nil {
		return nil, false, err
	}

	return &Node{
		Order:       o,
		UserAccount: user,
		Authority:   authority,
		Price:       price,
		Resting:     isResting(&o, price, oracle, slot),
	}, true, nil
}
