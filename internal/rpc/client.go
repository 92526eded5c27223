// Package rpc implements the chain RPC clients used by the DLOB server.
//
// The HTTP client (Client) speaks JSON-RPC to the chain node:
//   - GetSlot:             current processed slot
//   - GetProgramAccounts:  every user account owned by the exchange program
//   - GetMultipleAccounts: batched account fetch (oracles, market state)
//   - GetAccountInfo:      single account fetch (lazy user-stats loads)
//
// Every request is retried on 5xx and transport errors. Account payloads come
// back base64-encoded; decoding into domain types is the caller's business —
// the wire-level account decoders are injected where the data is consumed.
//
// The websocket feed (Feed, ws.go) is the push alternative to polling
// GetProgramAccounts.
package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"dlob-server/pkg/types"
)

// KeyedAccount is one raw account returned by the RPC node.
type KeyedAccount struct {
	Pubkey types.Pubkey
	Data   []byte
	Slot   uint64 // slot the node served this account at
}

// Client is the JSON-RPC client for the chain node.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
	reqID  atomic.Uint64
}

// NewClient creates a JSON-RPC client with retry.
func NewClient(endpoint string, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(30*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		logger: logger.With("component", "rpc"),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	}

	var rpcResp rpcResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&rpcResp).
		Post("")
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", method, resp.StatusCode(), resp.String())
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

// GetSlot returns the node's current processed slot.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.call(ctx, "getSlot", nil, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// accountData is the ["<base64>", "base64"] tuple the node uses for payloads.
type accountData [2]string

func (d accountData) decode() ([]byte, error) {
	if d[1] != "base64" {
		return nil, fmt.Errorf("unexpected account encoding %q", d[1])
	}
	return base64.StdEncoding.DecodeString(d[0])
}

// GetProgramAccounts fetches every account owned by the given program.
func (c *Client) GetProgramAccounts(ctx context.Context, program types.Pubkey) ([]KeyedAccount, error) {
	var result []struct {
		Pubkey  types.Pubkey `json:"pubkey"`
		Account struct {
			Data accountData `json:"data"`
		} `json:"account"`
	}
	params := []any{program.String(), map[string]any{"encoding": "base64"}}
	if err := c.call(ctx, "getProgramAccounts", params, &result); err != nil {
		return nil, err
	}

	accounts := make([]KeyedAccount, 0, len(result))
	for _, entry := range result {
		data, err := entry.Account.Data.decode()
		if err != nil {
			c.logger.Warn("skipping undecodable account", "pubkey", entry.Pubkey, "error", err)
			continue
		}
		accounts = append(accounts, KeyedAccount{Pubkey: entry.Pubkey, Data: data})
	}
	return accounts, nil
}

// GetMultipleAccounts fetches a batch of accounts. The returned slice is
// positionally aligned with pubkeys; missing accounts yield nil data.
func (c *Client) GetMultipleAccounts(ctx context.Context, pubkeys []types.Pubkey) ([]KeyedAccount, uint64, error) {
	keys := make([]string, len(pubkeys))
	for i, pk := range pubkeys {
		keys[i] = pk.String()
	}

	var result struct {
		Context struct {
			Slot uint64 `json:"slot"`
		} `json:"context"`
		Value []*struct {
			Data accountData `json:"data"`
		} `json:"value"`
	}
	params := []any{keys, map[string]any{"encoding": "base64"}}
	if err := c.call(ctx, "getMultipleAccounts", params, &result); err != nil {
		return nil, 0, err
	}

	if len(result.Value) > len(pubkeys) {
		c.logger.Warn("node returned more accounts than requested, truncating",
			"requested", len(pubkeys), "returned", len(result.Value))
		result.Value = result.Value[:len(pubkeys)]
	}

	accounts := make([]KeyedAccount, len(pubkeys))
	for i := range pubkeys {
		accounts[i] = KeyedAccount{Pubkey: pubkeys[i], Slot: result.Context.Slot}
		if i >= len(result.Value) {
			continue
		}
		entry := result.Value[i]
		if entry == nil {
			continue
		}
		data, err := entry.Data.decode()
		if err != nil {
			c.logger.Warn("skipping undecodable account", "pubkey", pubkeys[i], "error", err)
			continue
		}
		accounts[i].Data = data
	}
	return accounts, result.Context.Slot, nil
}

// GetAccountInfo fetches a single account. Returns nil data when the account
// does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey types.Pubkey) (*KeyedAccount, error) {
	var result struct {
		Context struct {
			Slot uint64 `json:"slot"`
		} `json:"context"`
		Value *struct {
			Data accountData `json:"data"`
		} `json:"value"`
	}
	params := []any{pubkey.String(), map[string]any{"encoding": "base64"}}
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	acct := &KeyedAccount{Pubkey: pubkey, Slot: result.Context.Slot}
	if result.Value != nil {
		data, err := result.Value.Data.decode()
		if err != nil {
			return nil, fmt.Errorf("getAccountInfo %s: %w", pubkey, err)
		}
		acct.Data = data
	}
	return acct, nil
}
