// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the DLOB server — market
// identities, on-chain order and user-account shapes, and oracle price data.
// It has no dependencies on internal packages, so it can be imported by any
// layer. All chain-precision quantities (prices, sizes, quote amounts) are
// sdkmath.Int: arbitrary-precision integers that marshal to decimal strings
// in JSON, never floats.
package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/mr-tron/base58"
)

// ————————————————————————————————————————————————————————————————————————
// Chain precisions
// ————————————————————————————————————————————————————————————————————————

const (
	// PriceExp is the power-of-ten exponent of PRICE_PRECISION.
	PriceExp = 6
	// BaseExp is the power-of-ten exponent of BASE_PRECISION.
	BaseExp = 9
)

var (
	// PricePrecision scales human prices to chain price units (1e6).
	PricePrecision = sdkmath.NewInt(1_000_000)
	// BasePrecision scales human sizes to chain base-asset units (1e9).
	BasePrecision = sdkmath.NewInt(1_000_000_000)
)

// ————————————————————————————————————————————————————————————————————————
// Public keys
// ————————————————————————————————————————————————————————————————————————

// Pubkey is a 32-byte account public key, rendered as base58 in every
// user-facing surface (JSON, logs, query params).
type Pubkey [32]byte

// ParsePubkey decodes a base58 public key string.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("parse pubkey: %w", err)
	}
	if len(raw) != len(pk) {
		return pk, fmt.Errorf("parse pubkey: got %d bytes, want %d", len(raw), len(pk))
	}
	copy(pk[:], raw)
	return pk, nil
}

// String returns the base58 encoding.
func (p Pubkey) String() string { return base58.Encode(p[:]) }

// IsZero reports whether the key is all zero bytes (unset).
func (p Pubkey) IsZero() bool { return p == Pubkey{} }

// MarshalText implements encoding.TextMarshaler so Pubkey works as a JSON
// value and as a JSON map key.
func (p Pubkey) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	pk, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// MarketType distinguishes perpetual and spot markets.
type MarketType string

const (
	MarketTypePerp MarketType = "perp"
	MarketTypeSpot MarketType = "spot"
)

// ParseMarketType accepts the two wire spellings, case-insensitively.
func ParseMarketType(s string) (MarketType, error) {
	switch s {
	case "perp", "PERP", "Perp":
		return MarketTypePerp, nil
	case "spot", "SPOT", "Spot":
		return MarketTypeSpot, nil
	}
	return "", fmt.Errorf("invalid marketType %q (want perp or spot)", s)
}

// OrderStatus is the lifecycle state of an order slot inside a user account.
// StatusInit marks an empty slot and is excluded from every output.
type OrderStatus uint8

const (
	StatusInit OrderStatus = iota
	StatusOpen
	StatusCanceled
	StatusFilled
)

var orderStatusNames = [...]string{"init", "open", "canceled", "filled"}

func (s OrderStatus) String() string {
	if int(s) < len(orderStatusNames) {
		return orderStatusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// OrderType enumerates the supported order semantics.
type OrderType uint8

const (
	OrderTypeLimit OrderType = iota
	OrderTypeMarket
	OrderTypeTriggerLimit
	OrderTypeTriggerMarket
	OrderTypeOracle
)

var orderTypeNames = [...]string{"limit", "market", "triggerLimit", "triggerMarket", "oracle"}

func (t OrderType) String() string {
	if int(t) < len(orderTypeNames) {
		return orderTypeNames[t]
	}
	return fmt.Sprintf("orderType(%d)", uint8(t))
}

// IsTrigger reports whether the order is gated behind a trigger condition.
func (t OrderType) IsTrigger() bool {
	return t == OrderTypeTriggerLimit || t == OrderTypeTriggerMarket
}

// Direction is the side of an order: long (bid) or short (ask).
type Direction uint8

const (
	DirectionLong  Direction = iota // bid
	DirectionShort                  // ask
)

func (d Direction) String() string {
	if d == DirectionLong {
		return "long"
	}
	return "short"
}

// TriggerCondition determines when a trigger order activates relative to
// the oracle price.
type TriggerCondition uint8

const (
	TriggerAbove TriggerCondition = iota
	TriggerBelow
)

func (c TriggerCondition) String() string {
	if c == TriggerAbove {
		return "above"
	}
	return "below"
}

// ————————————————————————————————————————————————————————————————————————
// Orders and user accounts
// ————————————————————————————————————————————————————————————————————————

// MaxOrders is the fixed number of order slots per user account.
const MaxOrders = 32

// Order is one order slot embedded in a user account, as decoded from the
// chain. Prices are PRICE_PRECISION-scaled, sizes BASE_PRECISION-scaled.
type Order struct {
	OrderID     uint32
	UserOrderID uint8

	MarketType  MarketType
	MarketIndex uint16

	Status    OrderStatus
	OrderType OrderType
	Direction Direction

	Price             sdkmath.Int
	TriggerPrice      sdkmath.Int
	OraclePriceOffset sdkmath.Int // signed; added to oracle price for oracle orders

	BaseAssetAmount        sdkmath.Int
	BaseAssetAmountFilled  sdkmath.Int
	QuoteAssetAmount       sdkmath.Int
	QuoteAssetAmountFilled sdkmath.Int

	Slot              uint64 // posting slot
	AuctionStartPrice sdkmath.Int
	AuctionEndPrice   sdkmath.Int
	AuctionDuration   uint8
	MaxTS             int64 // unix seconds; 0 = no expiry

	TriggerCondition          TriggerCondition
	PostOnly                  bool
	ReduceOnly                bool
	ImmediateOrCancel         bool
	ExistingPositionDirection Direction
}

// BaseRemaining returns the unfilled base-asset amount. Nil-backed amounts
// (an account decoded from an unexpected layout) count as zero.
func (o *Order) BaseRemaining() sdkmath.Int {
	if o.BaseAssetAmount.IsNil() {
		return sdkmath.ZeroInt()
	}
	if o.BaseAssetAmountFilled.IsNil() {
		return o.BaseAssetAmount
	}
	return o.BaseAssetAmount.Sub(o.BaseAssetAmountFilled)
}

// InAuction reports whether the order's auction window is still running at
// the given slot.
func (o *Order) InAuction(slot uint64) bool {
	if o.AuctionDuration == 0 {
		return false
	}
	if slot < o.Slot {
		return false
	}
	return slot-o.Slot < uint64(o.AuctionDuration)
}

// Expired reports whether MaxTS is set and in the past.
func (o *Order) Expired(nowUnix int64) bool {
	return o.MaxTS != 0 && o.MaxTS < nowUnix
}

// IsBid reports whether the order sits on the bid side of the book.
func (o *Order) IsBid() bool { return o.Direction == DirectionLong }

// TriggerSatisfied reports whether the trigger condition holds against the
// given oracle price. Non-trigger orders trivially satisfy it.
func (o *Order) TriggerSatisfied(oraclePrice sdkmath.Int) bool {
	if !o.OrderType.IsTrigger() {
		return true
	}
	if o.TriggerCondition == TriggerAbove {
		return oraclePrice.GT(o.TriggerPrice)
	}
	return oraclePrice.LT(o.TriggerPrice)
}

// UserAccount is a decoded on-chain user account. The account stream produces
// it; the order index is the sole owner after insertion.
type UserAccount struct {
	Authority    Pubkey
	SubAccountID uint16
	Orders       []Order // up to MaxOrders slots, init slots included
}

// OpenOrders returns the non-init order slots.
func (u *UserAccount) OpenOrders() []Order {
	out := make([]Order, 0, len(u.Orders))
	for _, o := range u.Orders {
		if o.Status != StatusInit {
			out = append(out, o)
		}
	}
	return out
}

// ————————————————————————————————————————————————————————————————————————
// Markets and oracles
// ————————————————————————————————————————————————————————————————————————

// Market identifies one tradable market. Spot markets may advertise external
// venue addresses used as fallback liquidity sources.
type Market struct {
	Name        string // e.g. "SOL-PERP"
	MarketType  MarketType
	MarketIndex uint16

	Oracle Pubkey // oracle account for this market

	// StateAccount is the on-chain market account; perp markets keep their
	// vAMM state there. Zero for markets without polled state.
	StateAccount Pubkey

	// Spot only; zero when the venue is not listed.
	PhoenixMarket Pubkey
	SerumMarket   Pubkey
}

// Key returns the (type, index) identity used to key books and lookups.
func (m Market) Key() MarketKey {
	return MarketKey{Type: m.MarketType, Index: m.MarketIndex}
}

// MarketKey is the comparable market identity.
type MarketKey struct {
	Type  MarketType
	Index uint16
}

func (k MarketKey) String() string {
	return fmt.Sprintf("%s-%d", k.Type, k.Index)
}

// OraclePriceData is the current oracle reading for one market.
type OraclePriceData struct {
	Price      sdkmath.Int // PRICE_PRECISION-scaled
	Confidence sdkmath.Int
	TWAP       sdkmath.Int
	Slot       uint64 // slot the reading was observed at
}
