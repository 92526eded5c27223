package idl

import (
	"bytes"
	"testing"

	sdkmath "cosmossdk.io/math"

	"dlob-server/internal/vamm"
	"dlob-server/pkg/types"
)

func testOrder(id uint32) types.Order {
	return types.Order{
		OrderID:                id,
		UserOrderID:            7,
		MarketType:             types.MarketTypePerp,
		MarketIndex:            1,
		Status:                 types.StatusOpen,
		OrderType:              types.OrderTypeLimit,
		Direction:              types.DirectionLong,
		Price:                  sdkmath.NewInt(100_000_000),
		TriggerPrice:           sdkmath.ZeroInt(),
		OraclePriceOffset:      sdkmath.NewInt(-250_000),
		BaseAssetAmount:        sdkmath.NewInt(5_000_000_000),
		BaseAssetAmountFilled:  sdkmath.NewInt(1_000_000_000),
		QuoteAssetAmount:       sdkmath.ZeroInt(),
		QuoteAssetAmountFilled: sdkmath.ZeroInt(),
		Slot:                   12345,
		AuctionStartPrice:      sdkmath.NewInt(99_000_000),
		AuctionEndPrice:        sdkmath.NewInt(101_000_000),
		AuctionDuration:        10,
		MaxTS:                  1_700_000_000,
		TriggerCondition:       types.TriggerBelow,
		PostOnly:               true,
	}
}

func TestOrdersRoundTrip(t *testing.T) {
	t.Parallel()

	var user types.Pubkey
	user[0] = 0xAB
	user[31] = 0x01

	in := []DLOBOrder{
		{User: user, Order: testOrder(1)},
		{User: user, Order: testOrder(2)},
	}

	buf := EncodeOrders(in)
	if len(buf) != 2*RecordLen {
		t.Fatalf("encoded length = %d, want %d", len(buf), 2*RecordLen)
	}

	out, err := DecodeOrders(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("decoded %d records, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].User != in[i].User {
			t.Errorf("record %d: user = %s, want %s", i, out[i].User, in[i].User)
		}
		assertOrderEqual(t, out[i].Order, in[i].Order)
	}
}

func TestDecodeOrdersRejectsTruncated(t *testing.T) {
	t.Parallel()

	buf := EncodeOrders([]DLOBOrder{{Order: testOrder(1)}})
	if _, err := DecodeOrders(buf[:len(buf)-1]); err == nil {
		t.Fatal("expected error for truncated buffer")
	}
}

func TestUserRoundTrip(t *testing.T) {
	t.Parallel()

	var authority types.Pubkey
	authority[5] = 0x42

	in := &types.UserAccount{
		Authority:    authority,
		SubAccountID: 3,
		Orders:       []types.Order{testOrder(1), testOrder(2), testOrder(3)},
	}

	data := EncodeUser(in)
	var pk types.Pubkey
	out, err := DecodeUser(pk, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if out.Authority != in.Authority {
		t.Errorf("authority = %s, want %s", out.Authority, in.Authority)
	}
	if out.SubAccountID != in.SubAccountID {
		t.Errorf("subAccountId = %d, want %d", out.SubAccountID, in.SubAccountID)
	}
	if len(out.Orders) != len(in.Orders) {
		t.Fatalf("decoded %d orders, want %d", len(out.Orders), len(in.Orders))
	}
	for i := range in.Orders {
		assertOrderEqual(t, out.Orders[i], in.Orders[i])
	}
}

func TestDecodeUserRejectsOversizedOrderCount(t *testing.T) {
	t.Parallel()

	data := EncodeUser(&types.UserAccount{})
	// Corrupt the order count past the slot limit.
	data[pubkeyLen+4] = types.MaxOrders + 1

	var pk types.Pubkey
	if _, err := DecodeUser(pk, data); err == nil {
		t.Fatal("expected error for oversized order count")
	}
}

func TestOracleRoundTrip(t *testing.T) {
	t.Parallel()

	in := types.OraclePriceData{
		Price:      sdkmath.NewInt(99_500_000),
		Confidence: sdkmath.NewInt(120_000),
		TWAP:       sdkmath.NewInt(100_100_000),
	}

	out, err := DecodeOracle(EncodeOracle(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Price.Equal(in.Price) || !out.Confidence.Equal(in.Confidence) || !out.TWAP.Equal(in.TWAP) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestPerpMarketRoundTrip(t *testing.T) {
	t.Parallel()

	in := vamm.State{
		BaseAssetReserve:  sdkmath.NewInt(1_000_000_000_000),
		QuoteAssetReserve: sdkmath.NewInt(1_000_000_000_000),
		PegMultiplier:     sdkmath.NewInt(100),
		SpreadBps:         20,
		MaxSpreadBps:      200,
		OpenBids:          sdkmath.NewInt(50_000_000_000),
		OpenAsks:          sdkmath.NewInt(-40_000_000_000),
	}

	out, err := DecodePerpMarket(EncodePerpMarket(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.BaseAssetReserve.Equal(in.BaseAssetReserve) ||
		!out.QuoteAssetReserve.Equal(in.QuoteAssetReserve) ||
		!out.PegMultiplier.Equal(in.PegMultiplier) {
		t.Errorf("reserves round trip = %+v, want %+v", out, in)
	}
	if out.SpreadBps != in.SpreadBps || out.MaxSpreadBps != in.MaxSpreadBps {
		t.Errorf("spreads = (%d, %d), want (%d, %d)", out.SpreadBps, out.MaxSpreadBps, in.SpreadBps, in.MaxSpreadBps)
	}
	if !out.OpenBids.Equal(in.OpenBids) || !out.OpenAsks.Equal(in.OpenAsks) {
		t.Errorf("open interest = (%s, %s), want (%s, %s)", out.OpenBids, out.OpenAsks, in.OpenBids, in.OpenAsks)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	t.Parallel()

	rec := []DLOBOrder{{Order: testOrder(9)}}
	if !bytes.Equal(EncodeOrders(rec), EncodeOrders(rec)) {
		t.Fatal("encoding is not deterministic")
	}
}

func assertOrderEqual(t *testing.T, got, want types.Order) {
	t.Helper()
	if got.OrderID != want.OrderID || got.UserOrderID != want.UserOrderID {
		t.Errorf("ids = (%d, %d), want (%d, %d)", got.OrderID, got.UserOrderID, want.OrderID, want.UserOrderID)
	}
	if got.MarketType != want.MarketType || got.MarketIndex != want.MarketIndex {
		t.Errorf("market = (%s, %d), want (%s, %d)", got.MarketType, got.MarketIndex, want.MarketType, want.MarketIndex)
	}
	if got.Status != want.Status || got.OrderType != want.OrderType || got.Direction != want.Direction {
		t.Errorf("enums = (%s, %s, %s), want (%s, %s, %s)",
			got.Status, got.OrderType, got.Direction, want.Status, want.OrderType, want.Direction)
	}
	if !got.Price.Equal(want.Price) || !got.TriggerPrice.Equal(want.TriggerPrice) || !got.OraclePriceOffset.Equal(want.OraclePriceOffset) {
		t.Errorf("prices = (%s, %s, %s), want (%s, %s, %s)",
			got.Price, got.TriggerPrice, got.OraclePriceOffset, want.Price, want.TriggerPrice, want.OraclePriceOffset)
	}
	if !got.BaseAssetAmount.Equal(want.BaseAssetAmount) || !got.BaseAssetAmountFilled.Equal(want.BaseAssetAmountFilled) {
		t.Errorf("base amounts = (%s, %s), want (%s, %s)",
			got.BaseAssetAmount, got.BaseAssetAmountFilled, want.BaseAssetAmount, want.BaseAssetAmountFilled)
	}
	if got.Slot != want.Slot || got.MaxTS != want.MaxTS || got.AuctionDuration != want.AuctionDuration {
		t.Errorf("lifecycle = (%d, %d, %d), want (%d, %d, %d)",
			got.Slot, got.MaxTS, got.AuctionDuration, want.Slot, want.MaxTS, want.AuctionDuration)
	}
	if !got.AuctionStartPrice.Equal(want.AuctionStartPrice) || !got.AuctionEndPrice.Equal(want.AuctionEndPrice) {
		t.Errorf("auction prices = (%s, %s), want (%s, %s)",
			got.AuctionStartPrice, got.AuctionEndPrice, want.AuctionStartPrice, want.AuctionEndPrice)
	}
	if got.PostOnly != want.PostOnly || got.ReduceOnly != want.ReduceOnly || got.ImmediateOrCancel != want.ImmediateOrCancel {
		t.Errorf("flags = (%v, %v, %v), want (%v, %v, %v)",
			got.PostOnly, got.ReduceOnly, got.ImmediateOrCancel, want.PostOnly, want.ReduceOnly, want.ImmediateOrCancel)
	}
	if got.TriggerCondition != want.TriggerCondition {
		t.Errorf("trigger condition = %s, want %s", got.TriggerCondition, want.TriggerCondition)
	}
}
