// params.go parses and validates query parameters. Every parse failure is
// a client error: handlers surface it as 400 with the message verbatim.
package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"

	"dlob-server/internal/dlob"
	"dlob-server/internal/markets"
	"dlob-server/pkg/types"
)

const (
	defaultDepth         = 10
	maxDepth             = 1000
	defaultNumVammOrders = 100
)

// getter abstracts a single query value source, so the same parsers serve
// plain queries and per-index batch queries.
type getter func(name string) string

func queryGetter(q url.Values) getter {
	return func(name string) string { return q.Get(name) }
}

// resolveMarket resolves a market from either marketName or the
// (marketType, marketIndex) pair. marketName wins when both are supplied.
func resolveMarket(get getter, registry *markets.Registry) (types.Market, error) {
	if name := get("marketName"); name != "" {
		market, ok := registry.ByName(name)
		if !ok {
			return types.Market{}, fmt.Errorf("unknown marketName %q", name)
		}
		return market, nil
	}

	rawType := get("marketType")
	rawIndex := get("marketIndex")
	if rawType == "" || rawIndex == "" {
		return types.Market{}, fmt.Errorf("provide marketName or both marketType and marketIndex")
	}

	marketType, err := types.ParseMarketType(rawType)
	if err != nil {
		return types.Market{}, err
	}
	index, err := strconv.ParseUint(rawIndex, 10, 16)
	if err != nil {
		return types.Market{}, fmt.Errorf("invalid marketIndex %q", rawIndex)
	}

	key := types.MarketKey{Type: marketType, Index: uint16(index)}
	market, ok := registry.ByKey(key)
	if !ok {
		return types.Market{}, fmt.Errorf("unknown market %s", key)
	}
	return market, nil
}

// optionalMarket resolves a market only when any market parameter is
// present. Used by idlWithSlot, where no market means all markets.
func optionalMarket(get getter, registry *markets.Registry) (types.Market, bool, error) {
	if get("marketName") == "" && get("marketType") == "" && get("marketIndex") == "" {
		return types.Market{}, false, nil
	}
	market, err := resolveMarket(get, registry)
	if err != nil {
		return types.Market{}, false, err
	}
	return market, true, nil
}

func parseBool(get getter, name string) (bool, error) {
	raw := get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func parseDepth(get getter) (int, error) {
	raw := get("depth")
	if raw == "" {
		return defaultDepth, nil
	}
	depth, err := strconv.Atoi(raw)
	if err != nil || depth <= 0 || depth > maxDepth {
		return 0, fmt.Errorf("invalid depth %q (want 1..%d)", raw, maxDepth)
	}
	return depth, nil
}

func parseNumVammOrders(get getter) (int, error) {
	raw := get("numVammOrders")
	if raw == "" {
		return defaultNumVammOrders, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxDepth {
		return 0, fmt.Errorf("invalid numVammOrders %q (want 1..%d)", raw, maxDepth)
	}
	return n, nil
}

func parseGrouping(get getter) (*sdkmath.Int, error) {
	raw := get("grouping")
	if raw == "" {
		return nil, nil
	}
	g, ok := sdkmath.NewIntFromString(raw)
	if !ok || !g.IsPositive() {
		return nil, fmt.Errorf("invalid grouping %q (want a positive integer)", raw)
	}
	return &g, nil
}

func parseSide(get getter) (dlob.Side, error) {
	raw := get("side")
	if raw == "" {
		return "", fmt.Errorf("side is required (bid or ask)")
	}
	side, ok := dlob.ParseSide(raw)
	if !ok {
		return "", fmt.Errorf("invalid side %q (want bid or ask)", raw)
	}
	return side, nil
}

func parseLimit(get getter) (int, error) {
	raw := get("limit")
	if raw == "" {
		return 0, nil // no cap
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit %q (want a positive integer)", raw)
	}
	return limit, nil
}

// l2Params is the full parameter set of one L2 request.
type l2Params struct {
	Market         types.Market
	Depth          int
	IncludeVamm    bool
	NumVammOrders  int
	IncludePhoenix bool
	IncludeSerum   bool
	Grouping       *sdkmath.Int
	IncludeOracle  bool
}

func parseL2Params(get getter, registry *markets.Registry) (l2Params, error) {
	var p l2Params
	var err error

	if p.Market, err = resolveMarket(get, registry); err != nil {
		return p, err
	}
	if p.Depth, err = parseDepth(get); err != nil {
		return p, err
	}
	if p.IncludeVamm, err = parseBool(get, "includeVamm"); err != nil {
		return p, err
	}
	if p.NumVammOrders, err = parseNumVammOrders(get); err != nil {
		return p, err
	}
	if p.IncludePhoenix, err = parseBool(get, "includePhoenix"); err != nil {
		return p, err
	}
	if p.IncludeSerum, err = parseBool(get, "includeSerum"); err != nil {
		return p, err
	}
	if p.Grouping, err = parseGrouping(get); err != nil {
		return p, err
	}
	if p.IncludeOracle, err = parseBool(get, "includeOracle"); err != nil {
		return p, err
	}

	// The curve only exists on perp markets.
	if p.Market.MarketType == types.MarketTypeSpot {
		p.IncludeVamm = false
	}
	return p, nil
}

// batchParams splits every batchL2 parameter on commas and yields one
// getter per element. A parameter left out entirely applies its default to
// every element; a present parameter must list one value per element.
func batchParams(q url.Values) ([]getter, error) {
	names := []string{
		"marketName", "marketType", "marketIndex",
		"depth", "includeVamm", "numVammOrders",
		"includePhoenix", "includeSerum",
		"grouping", "includeOracle",
	}

	lists := make(map[string][]string, len(names))
	count := 0
	for _, name := range names {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		lists[name] = parts
		if count == 0 {
			count = len(parts)
		} else if len(parts) != count {
			return nil, fmt.Errorf("mismatched list lengths: %s has %d values, want %d", name, len(parts), count)
		}
	}
	if count == 0 {
		return nil, fmt.Errorf("no batch parameters supplied")
	}

	gets := make([]getter, count)
	for i := range gets {
		idx := i
		gets[i] = func(name string) string {
			list, ok := lists[name]
			if !ok {
				return ""
			}
			return strings.TrimSpace(list[idx])
		}
	}
	return gets, nil
}
