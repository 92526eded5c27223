package api

import (
	sdkmath "cosmossdk.io/math"

	"dlob-server/internal/dlob"
	"dlob-server/pkg/types"
)

// chainInt marshals a chain quantity as an unquoted decimal number. Used by
// the raw orders surface; every other surface quotes quantities as strings
// so javascript clients never lose precision by accident.
type chainInt struct{ sdkmath.Int }

func (i chainInt) MarshalJSON() ([]byte, error) {
	if i.Int.IsNil() {
		return []byte("0"), nil
	}
	return []byte(i.Int.String()), nil
}

func str(i sdkmath.Int) string {
	if i.IsNil() {
		return "0"
	}
	return i.String()
}

// oracleData is the optional oracle attachment on L2/L3 responses.
type oracleData struct {
	Price      string `json:"price"`
	Slot       uint64 `json:"slot"`
	Confidence string `json:"confidence"`
	TWAP       string `json:"twap"`
}

func newOracleData(o types.OraclePriceData) *oracleData {
	return &oracleData{
		Price:      str(o.Price),
		Slot:       o.Slot,
		Confidence: str(o.Confidence),
		TWAP:       str(o.TWAP),
	}
}

// l2Level is one aggregated price level on the wire.
type l2Level struct {
	Price   string            `json:"price"`
	Size    string            `json:"size"`
	Sources map[string]string `json:"sources"`
}

type l2Response struct {
	MarketName  string      `json:"marketName"`
	MarketType  string      `json:"marketType"`
	MarketIndex uint16      `json:"marketIndex"`
	Slot        uint64      `json:"slot"`
	Bids        []l2Level   `json:"bids"`
	Asks        []l2Level   `json:"asks"`
	Oracle      *oracleData `json:"oracle,omitempty"`
}

func newL2Response(market types.Market, book dlob.L2Book, oracle *oracleData) l2Response {
	return l2Response{
		MarketName:  market.Name,
		MarketType:  string(market.MarketType),
		MarketIndex: market.MarketIndex,
		Slot:        book.Slot,
		Bids:        l2Side(book.Bids),
		Asks:        l2Side(book.Asks),
		Oracle:      oracle,
	}
}

func l2Side(levels []dlob.L2Level) []l2Level {
	out := make([]l2Level, 0, len(levels))
	for _, lvl := range levels {
		sources := make(map[string]string, len(lvl.Sources))
		for name, size := range lvl.Sources {
			sources[name] = str(size)
		}
		out = append(out, l2Level{Price: str(lvl.Price), Size: str(lvl.Size), Sources: sources})
	}
	return out
}

type batchL2Response struct {
	L2s []l2Response `json:"l2s"`
}

// l3Level is one resting order on the wire.
type l3Level struct {
	Price          string `json:"price"`
	Size           string `json:"size"`
	Maker          string `json:"maker"`
	MakerAuthority string `json:"makerAuthority"`
	OrderID        uint32 `json:"orderId"`
	UserOrderID    uint8  `json:"userOrderId"`
}

type l3Response struct {
	MarketName  string      `json:"marketName"`
	MarketType  string      `json:"marketType"`
	MarketIndex uint16      `json:"marketIndex"`
	Slot        uint64      `json:"slot"`
	Bids        []l3Level   `json:"bids"`
	Asks        []l3Level   `json:"asks"`
	Oracle      *oracleData `json:"oracle,omitempty"`
}

func l3Side(levels []dlob.L3Level) []l3Level {
	out := make([]l3Level, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, l3Level{
			Price:          str(lvl.Price),
			Size:           str(lvl.Size),
			Maker:          lvl.Maker.String(),
			MakerAuthority: lvl.MakerAuthority.String(),
			OrderID:        lvl.OrderID,
			UserOrderID:    lvl.UserOrderID,
		})
	}
	return out
}

// topMakerEntry is one maker with its stats account attached
// (includeUserStats=true). Without stats the response is a plain list of
// user account keys.
type topMakerEntry struct {
	UserAccount string `json:"userAccount"`
	Authority   string `json:"authority"`
	UserStats   string `json:"userStats"`
}

// orderJSON is the human-readable order shape: named enums, quantities as
// quoted strings.
type orderJSON struct {
	OrderID     uint32 `json:"orderId"`
	UserOrderID uint8  `json:"userOrderId"`

	MarketType  string `json:"marketType"`
	MarketIndex uint16 `json:"marketIndex"`

	Status    string `json:"status"`
	OrderType string `json:"orderType"`
	Direction string `json:"direction"`

	Price             string `json:"price"`
	TriggerPrice      string `json:"triggerPrice"`
	OraclePriceOffset string `json:"oraclePriceOffset"`

	BaseAssetAmount        string `json:"baseAssetAmount"`
	BaseAssetAmountFilled  string `json:"baseAssetAmountFilled"`
	QuoteAssetAmount       string `json:"quoteAssetAmount"`
	QuoteAssetAmountFilled string `json:"quoteAssetAmountFilled"`

	Slot              uint64 `json:"slot"`
	AuctionStartPrice string `json:"auctionStartPrice"`
	AuctionEndPrice   string `json:"auctionEndPrice"`
	AuctionDuration   uint8  `json:"auctionDuration"`
	MaxTS             int64  `json:"maxTs"`

	TriggerCondition  string `json:"triggerCondition"`
	PostOnly          bool   `json:"postOnly"`
	ReduceOnly        bool   `json:"reduceOnly"`
	ImmediateOrCancel bool   `json:"immediateOrCancel"`
}

func newOrderJSON(o types.Order) orderJSON {
	return orderJSON{
		OrderID:                o.OrderID,
		UserOrderID:            o.UserOrderID,
		MarketType:             string(o.MarketType),
		MarketIndex:            o.MarketIndex,
		Status:                 o.Status.String(),
		OrderType:              o.OrderType.String(),
		Direction:              o.Direction.String(),
		Price:                  str(o.Price),
		TriggerPrice:           str(o.TriggerPrice),
		OraclePriceOffset:      str(o.OraclePriceOffset),
		BaseAssetAmount:        str(o.BaseAssetAmount),
		BaseAssetAmountFilled:  str(o.BaseAssetAmountFilled),
		QuoteAssetAmount:       str(o.QuoteAssetAmount),
		QuoteAssetAmountFilled: str(o.QuoteAssetAmountFilled),
		Slot:                   o.Slot,
		AuctionStartPrice:      str(o.AuctionStartPrice),
		AuctionEndPrice:        str(o.AuctionEndPrice),
		AuctionDuration:        o.AuctionDuration,
		MaxTS:                  o.MaxTS,
		TriggerCondition:       o.TriggerCondition.String(),
		PostOnly:               o.PostOnly,
		ReduceOnly:             o.ReduceOnly,
		ImmediateOrCancel:      o.ImmediateOrCancel,
	}
}

// rawOrderJSON is the machine-shaped order: numeric enums and unquoted
// quantities, mirroring the on-chain layout field for field.
type rawOrderJSON struct {
	OrderID     uint32 `json:"orderId"`
	UserOrderID uint8  `json:"userOrderId"`

	MarketType  uint8  `json:"marketType"`
	MarketIndex uint16 `json:"marketIndex"`

	Status    uint8 `json:"status"`
	OrderType uint8 `json:"orderType"`
	Direction uint8 `json:"direction"`

	Price             chainInt `json:"price"`
	TriggerPrice      chainInt `json:"triggerPrice"`
	OraclePriceOffset chainInt `json:"oraclePriceOffset"`

	BaseAssetAmount        chainInt `json:"baseAssetAmount"`
	BaseAssetAmountFilled  chainInt `json:"baseAssetAmountFilled"`
	QuoteAssetAmount       chainInt `json:"quoteAssetAmount"`
	QuoteAssetAmountFilled chainInt `json:"quoteAssetAmountFilled"`

	Slot              uint64   `json:"slot"`
	AuctionStartPrice chainInt `json:"auctionStartPrice"`
	AuctionEndPrice   chainInt `json:"auctionEndPrice"`
	AuctionDuration   uint8    `json:"auctionDuration"`
	MaxTS             int64    `json:"maxTs"`

	TriggerCondition  uint8 `json:"triggerCondition"`
	PostOnly          bool  `json:"postOnly"`
	ReduceOnly        bool  `json:"reduceOnly"`
	ImmediateOrCancel bool  `json:"immediateOrCancel"`
}

func newRawOrderJSON(o types.Order) rawOrderJSON {
	marketType := uint8(0)
	if o.MarketType == types.MarketTypeSpot {
		marketType = 1
	}
	return rawOrderJSON{
		OrderID:                o.OrderID,
		UserOrderID:            o.UserOrderID,
		MarketType:             marketType,
		MarketIndex:            o.MarketIndex,
		Status:                 uint8(o.Status),
		OrderType:              uint8(o.OrderType),
		Direction:              uint8(o.Direction),
		Price:                  chainInt{o.Price},
		TriggerPrice:           chainInt{o.TriggerPrice},
		OraclePriceOffset:      chainInt{o.OraclePriceOffset},
		BaseAssetAmount:        chainInt{o.BaseAssetAmount},
		BaseAssetAmountFilled:  chainInt{o.BaseAssetAmountFilled},
		QuoteAssetAmount:       chainInt{o.QuoteAssetAmount},
		QuoteAssetAmountFilled: chainInt{o.QuoteAssetAmountFilled},
		Slot:                   o.Slot,
		AuctionStartPrice:      chainInt{o.AuctionStartPrice},
		AuctionEndPrice:        chainInt{o.AuctionEndPrice},
		AuctionDuration:        o.AuctionDuration,
		MaxTS:                  o.MaxTS,
		TriggerCondition:       uint8(o.TriggerCondition),
		PostOnly:               o.PostOnly,
		ReduceOnly:             o.ReduceOnly,
		ImmediateOrCancel:      o.ImmediateOrCancel,
	}
}

type userOrder[T any] struct {
	User  string `json:"user"`
	Order T      `json:"order"`
}

// oracleEntry is one market's oracle reading on the stringified orders
// surface.
type oracleEntry struct {
	MarketType  string `json:"marketType"`
	MarketIndex uint16 `json:"marketIndex"`
	Price       string `json:"price"`
	Slot        uint64 `json:"slot"`
	Confidence  string `json:"confidence"`
	TWAP        string `json:"twap"`
}

// rawOracleEntry is the raw-numeric counterpart served by /orders/json/raw.
type rawOracleEntry struct {
	MarketType  uint8    `json:"marketType"`
	MarketIndex uint16   `json:"marketIndex"`
	Price       chainInt `json:"price"`
	Slot        uint64   `json:"slot"`
	Confidence  chainInt `json:"confidence"`
	TWAP        chainInt `json:"twap"`
}

// oracleEntries walks the market listing in order and keeps the markets with
// a reading, so the array order is stable across requests.
func oracleEntries(listing []types.Market, readings map[types.MarketKey]types.OraclePriceData) []oracleEntry {
	out := make([]oracleEntry, 0, len(readings))
	for _, m := range listing {
		data, ok := readings[m.Key()]
		if !ok {
			continue
		}
		out = append(out, oracleEntry{
			MarketType:  string(m.MarketType),
			MarketIndex: m.MarketIndex,
			Price:       str(data.Price),
			Slot:        data.Slot,
			Confidence:  str(data.Confidence),
			TWAP:        str(data.TWAP),
		})
	}
	return out
}

func rawOracleEntries(listing []types.Market, readings map[types.MarketKey]types.OraclePriceData) []rawOracleEntry {
	out := make([]rawOracleEntry, 0, len(readings))
	for _, m := range listing {
		data, ok := readings[m.Key()]
		if !ok {
			continue
		}
		marketType := uint8(0)
		if m.MarketType == types.MarketTypeSpot {
			marketType = 1
		}
		out = append(out, rawOracleEntry{
			MarketType:  marketType,
			MarketIndex: m.MarketIndex,
			Price:       chainInt{data.Price},
			Slot:        data.Slot,
			Confidence:  chainInt{data.Confidence},
			TWAP:        chainInt{data.TWAP},
		})
	}
	return out
}

type ordersResponse[O, T any] struct {
	Slot    uint64         `json:"slot"`
	Oracles []O            `json:"oracles"`
	Orders  []userOrder[T] `json:"orders"`
}

// idlWithSlotResponse carries the packed order records with the slot they
// were drawn at.
type idlWithSlotResponse struct {
	Slot uint64 `json:"slot"`
	Data string `json:"data"` // base64 of the packed records
}

type errorResponse struct {
	Error string `json:"error"`
}
