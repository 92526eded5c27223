// Package idl implements the chain program's account and order wire
// layouts: fixed little-endian records, bit-stable across encode/decode.
//
// Three layouts live here:
//   - DLOBOrders: concatenated {user, order} records served by /orders/idl
//   - user accounts: authority + order slots, the account-stream payload
//   - oracle and perp-market accounts, consumed by the chain poller
//
// Integer fields are fixed-width on the wire; they widen to sdkmath.Int in
// memory. Encoding a value outside its wire width is a caller bug and
// panics, same as the chain program would reject it.
package idl

import (
	"encoding/binary"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"dlob-server/internal/vamm"
	"dlob-server/pkg/types"
)

const (
	pubkeyLen = 32
	// orderLen is the packed size of one order record.
	orderLen = 104
	// RecordLen is the packed size of one {user, order} tuple.
	RecordLen = pubkeyLen + orderLen

	userHeaderLen  = pubkeyLen + 2 + 2 + 4 // authority, subAccountId, pad, order count
	oracleLen      = 8 + 8 + 8
	perpMarketLen  = 8 + 8 + 8 + 4 + 4 + 8 + 8
	marketTypePerp = 0
	marketTypeSpot = 1
)

// DLOBOrder is one {user, order} tuple on the wire.
type DLOBOrder struct {
	User  types.Pubkey
	Order types.Order
}

// EncodeOrders packs tuples into the concatenated DLOBOrders buffer.
func EncodeOrders(orders []DLOBOrder) []byte {
	out := make([]byte, 0, len(orders)*RecordLen)
	for i := range orders {
		out = append(out, encodeRecord(&orders[i])...)
	}
	return out
}

// DecodeOrders unpacks a concatenated DLOBOrders buffer.
func DecodeOrders(data []byte) ([]DLOBOrder, error) {
	if len(data)%RecordLen != 0 {
		return nil, fmt.Errorf("dlob orders: length %d is not a multiple of %d", len(data), RecordLen)
	}
	out := make([]DLOBOrder, 0, len(data)/RecordLen)
	for off := 0; off < len(data); off += RecordLen {
		var rec DLOBOrder
		copy(rec.User[:], data[off:off+pubkeyLen])
		order, err := decodeOrder(data[off+pubkeyLen : off+RecordLen])
		if err != nil {
			return nil, err
		}
		rec.Order = order
		out = append(out, rec)
	}
	return out, nil
}

func encodeRecord(rec *DLOBOrder) []byte {
	buf := make([]byte, RecordLen)
	copy(buf[:pubkeyLen], rec.User[:])
	encodeOrder(buf[pubkeyLen:], &rec.Order)
	return buf
}

func encodeOrder(buf []byte, o *types.Order) {
	le := binary.LittleEndian
	le.PutUint64(buf[0:], o.Slot)
	le.PutUint64(buf[8:], o.Price.Uint64())
	le.PutUint64(buf[16:], o.BaseAssetAmount.Uint64())
	le.PutUint64(buf[24:], o.BaseAssetAmountFilled.Uint64())
	le.PutUint64(buf[32:], o.QuoteAssetAmount.Uint64())
	le.PutUint64(buf[40:], o.QuoteAssetAmountFilled.Uint64())
	le.PutUint64(buf[48:], o.TriggerPrice.Uint64())
	le.PutUint64(buf[56:], uint64(o.AuctionStartPrice.Int64()))
	le.PutUint64(buf[64:], uint64(o.AuctionEndPrice.Int64()))
	le.PutUint64(buf[72:], uint64(o.MaxTS))
	le.PutUint32(buf[80:], uint32(int32(o.OraclePriceOffset.Int64())))
	le.PutUint32(buf[84:], o.OrderID)
	le.PutUint16(buf[88:], o.MarketIndex)
	buf[90] = uint8(o.Status)
	buf[91] = uint8(o.OrderType)
	buf[92] = encodeMarketType(o.MarketType)
	buf[93] = o.UserOrderID
	buf[94] = uint8(o.ExistingPositionDirection)
	buf[95] = uint8(o.Direction)
	buf[96] = encodeBool(o.ReduceOnly)
	buf[97] = encodeBool(o.PostOnly)
	buf[98] = encodeBool(o.ImmediateOrCancel)
	buf[99] = uint8(o.TriggerCondition)
	buf[100] = o.AuctionDuration
	// buf[101:104] is padding
}

func decodeOrder(buf []byte) (types.Order, error) {
	if len(buf) < orderLen {
		return types.Order{}, fmt.Errorf("order record: %d bytes, want %d", len(buf), orderLen)
	}
	le := binary.LittleEndian

	marketType, err := decodeMarketType(buf[92])
	if err != nil {
		return types.Order{}, err
	}

	return types.Order{
		Slot:                      le.Uint64(buf[0:]),
		Price:                     sdkmath.NewIntFromUint64(le.Uint64(buf[8:])),
		BaseAssetAmount:           sdkmath.NewIntFromUint64(le.Uint64(buf[16:])),
		BaseAssetAmountFilled:     sdkmath.NewIntFromUint64(le.Uint64(buf[24:])),
		QuoteAssetAmount:          sdkmath.NewIntFromUint64(le.Uint64(buf[32:])),
		QuoteAssetAmountFilled:    sdkmath.NewIntFromUint64(le.Uint64(buf[40:])),
		TriggerPrice:              sdkmath.NewIntFromUint64(le.Uint64(buf[48:])),
		AuctionStartPrice:         sdkmath.NewInt(int64(le.Uint64(buf[56:]))),
		AuctionEndPrice:           sdkmath.NewInt(int64(le.Uint64(buf[64:]))),
		MaxTS:                     int64(le.Uint64(buf[72:])),
		OraclePriceOffset:         sdkmath.NewInt(int64(int32(le.Uint32(buf[80:])))),
		OrderID:                   le.Uint32(buf[84:]),
		MarketIndex:               le.Uint16(buf[88:]),
		Status:                    types.OrderStatus(buf[90]),
		OrderType:                 types.OrderType(buf[91]),
		MarketType:                marketType,
		UserOrderID:               buf[93],
		ExistingPositionDirection: types.Direction(buf[94]),
		Direction:                 types.Direction(buf[95]),
		ReduceOnly:                buf[96] != 0,
		PostOnly:                  buf[97] != 0,
		ImmediateOrCancel:         buf[98] != 0,
		TriggerCondition:          types.TriggerCondition(buf[99]),
		AuctionDuration:           buf[100],
	}, nil
}

// EncodeUser packs a user account into its wire layout.
func EncodeUser(user *types.UserAccount) []byte {
	buf := make([]byte, userHeaderLen+len(user.Orders)*orderLen)
	le := binary.LittleEndian

	copy(buf[:pubkeyLen], user.Authority[:])
	le.PutUint16(buf[pubkeyLen:], user.SubAccountID)
	le.PutUint32(buf[pubkeyLen+4:], uint32(len(user.Orders)))

	off := userHeaderLen
	for i := range user.Orders {
		encodeOrder(buf[off:], &user.Orders[i])
		off += orderLen
	}
	return buf
}

// DecodeUser unpacks a user account payload.
func DecodeUser(pubkey types.Pubkey, data []byte) (*types.UserAccount, error) {
	if len(data) < userHeaderLen {
		return nil, fmt.Errorf("user account %s: %d bytes, want at least %d", pubkey, len(data), userHeaderLen)
	}
	le := binary.LittleEndian

	user := &types.UserAccount{SubAccountID: le.Uint16(data[pubkeyLen:])}
	copy(user.Authority[:], data[:pubkeyLen])

	count := int(le.Uint32(data[pubkeyLen+4:]))
	if count > types.MaxOrders {
		return nil, fmt.Errorf("user account %s: %d order slots, max %d", pubkey, count, types.MaxOrders)
	}
	if want := userHeaderLen + count*orderLen; len(data) < want {
		return nil, fmt.Errorf("user account %s: %d bytes, want %d", pubkey, len(data), want)
	}

	user.Orders = make([]types.Order, 0, count)
	off := userHeaderLen
	for i := 0; i < count; i++ {
		order, err := decodeOrder(data[off : off+orderLen])
		if err != nil {
			return nil, fmt.Errorf("user account %s: order %d: %w", pubkey, i, err)
		}
		user.Orders = append(user.Orders, order)
		off += orderLen
	}
	return user, nil
}

// EncodeOracle packs an oracle reading into its wire layout.
func EncodeOracle(data types.OraclePriceData) []byte {
	buf := make([]byte, oracleLen)
	le := binary.LittleEndian
	le.PutUint64(buf[0:], uint64(data.Price.Int64()))
	le.PutUint64(buf[8:], data.Confidence.Uint64())
	le.PutUint64(buf[16:], uint64(data.TWAP.Int64()))
	return buf
}

// DecodeOracle unpacks an oracle account payload.
func DecodeOracle(data []byte) (types.OraclePriceData, error) {
	if len(data) < oracleLen {
		return types.OraclePriceData{}, fmt.Errorf("oracle account: %d bytes, want %d", len(data), oracleLen)
	}
	le := binary.LittleEndian
	return types.OraclePriceData{
		Price:      sdkmath.NewInt(int64(le.Uint64(data[0:]))),
		Confidence: sdkmath.NewIntFromUint64(le.Uint64(data[8:])),
		TWAP:       sdkmath.NewInt(int64(le.Uint64(data[16:]))),
	}, nil
}

// EncodePerpMarket packs vAMM state into its wire layout.
func EncodePerpMarket(s vamm.State) []byte {
	buf := make([]byte, perpMarketLen)
	le := binary.LittleEndian
	le.PutUint64(buf[0:], s.BaseAssetReserve.Uint64())
	le.PutUint64(buf[8:], s.QuoteAssetReserve.Uint64())
	le.PutUint64(buf[16:], s.PegMultiplier.Uint64())
	le.PutUint32(buf[24:], s.SpreadBps)
	le.PutUint32(buf[28:], s.MaxSpreadBps)
	le.PutUint64(buf[32:], uint64(s.OpenBids.Int64()))
	le.PutUint64(buf[40:], uint64(s.OpenAsks.Int64()))
	return buf
}

// DecodePerpMarket unpacks a perp market account into vAMM state.
func DecodePerpMarket(data []byte) (vamm.State, error) {
	if len(data) < perpMarketLen {
		return vamm.State{}, fmt.Errorf("perp market account: %d bytes, want %d", len(data), perpMarketLen)
	}
	le := binary.LittleEndian
	return vamm.State{
		BaseAssetReserve:  sdkmath.NewIntFromUint64(le.Uint64(data[0:])),
		QuoteAssetReserve: sdkmath.NewIntFromUint64(le.Uint64(data[8:])),
		PegMultiplier:     sdkmath.NewIntFromUint64(le.Uint64(data[16:])),
		SpreadBps:         le.Uint32(data[24:]),
		MaxSpreadBps:      le.Uint32(data[28:]),
		OpenBids:          sdkmath.NewInt(int64(le.Uint64(data[32:]))),
		OpenAsks:          sdkmath.NewInt(int64(le.Uint64(data[40:]))),
	}, nil
}

func encodeMarketType(t types.MarketType) uint8 {
	if t == types.MarketTypeSpot {
		return marketTypeSpot
	}
	return marketTypePerp
}

func decodeMarketType(b uint8) (types.MarketType, error) {
	switch b {
	case marketTypePerp:
		return types.MarketTypePerp, nil
	case marketTypeSpot:
		return types.MarketTypeSpot, nil
	}
	return "", fmt.Errorf("unknown market type byte %d", b)
}

func encodeBool(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
