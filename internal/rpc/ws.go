// ws.go implements the push account stream over the chain websocket RPC.
//
// The feed subscribes to every account owned by the exchange program
// (programSubscribe) and emits raw account updates on a channel. It
// auto-reconnects with exponential backoff (1s → 30s max) and re-subscribes
// on reconnection. A read deadline detects silent server failures.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dlob-server/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
	updateBufferSize = 1024
)

// AccountUpdate is one raw account change pushed by the node.
type AccountUpdate struct {
	Pubkey  types.Pubkey
	Data    []byte
	Slot    uint64
	Deleted bool // account closed on chain
}

// Feed manages the websocket subscription to the exchange program's accounts.
type Feed struct {
	url     string
	program types.Pubkey

	conn   *websocket.Conn
	connMu sync.Mutex

	updates chan AccountUpdate
	logger  *slog.Logger
}

// NewFeed creates a websocket account feed for one program.
func NewFeed(wsURL string, program types.Pubkey, logger *slog.Logger) *Feed {
	return &Feed{
		url:     wsURL,
		program: program,
		updates: make(chan AccountUpdate, updateBufferSize),
		logger:  logger.With("component", "ws_accounts"),
	}
}

// Updates returns a read-only channel of raw account updates.
func (f *Feed) Updates() <-chan AccountUpdate { return f.updates }

// Run connects and maintains the subscription with auto-reconnect.
// Blocks until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("websocket disconnected, reconnecting",
			"error", err,
			"backoff", backoff,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

// Close gracefully closes the connection.
func (f *Feed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.subscribe(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	f.logger.Info("websocket connected", "program", f.program)

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		f.dispatchMessage(msg)
	}
}

func (f *Feed) subscribe() error {
	msg := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "programSubscribe",
		Params:  []any{f.program.String(), map[string]any{"encoding": "base64"}},
	}
	return f.writeJSON(msg)
}

// programNotification is the push payload for one account change.
type programNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Context struct {
				Slot uint64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Pubkey  types.Pubkey `json:"pubkey"`
				Account struct {
					Data     accountData `json:"data"`
					Lamports uint64      `json:"lamports"`
				} `json:"account"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

func (f *Feed) dispatchMessage(data []byte) {
	var note programNotification
	if err := json.Unmarshal(data, &note); err != nil {
		f.logger.Debug("ignoring non-json ws message")
		return
	}
	if note.Method != "programNotification" {
		// Subscription confirmations and pongs land here.
		return
	}

	value := note.Params.Result.Value
	update := AccountUpdate{
		Pubkey: value.Pubkey,
		Slot:   note.Params.Result.Context.Slot,
		// A zero-lamport account has been closed.
		Deleted: value.Account.Lamports == 0,
	}
	if !update.Deleted {
		payload, err := value.Account.Data.decode()
		if err != nil {
			f.logger.Error("undecodable account payload", "pubkey", value.Pubkey, "error", err)
			return
		}
		update.Data = payload
	}

	select {
	case f.updates <- update:
	default:
		f.logger.Warn("update channel full, dropping account update", "pubkey", value.Pubkey)
	}
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *Feed) writeJSON(v any) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *Feed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
