// subscriber.go maintains the websocket subscriptions that keep venue
// mirrors fresh. One Subscriber covers one venue (Phoenix or Serum) and
// every spot market listed on it; it auto-reconnects with exponential
// backoff and re-subscribes on reconnection.
package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"dlob-server/internal/dlob"
	"dlob-server/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	writeTimeout     = 10 * time.Second
	maxReconnectWait = 30 * time.Second
)

// Subscriber mirrors every subscribed market of one venue.
type Subscriber struct {
	source string
	url    string

	mirrors map[types.Pubkey]*Mirror

	conn   *websocket.Conn
	connMu sync.Mutex

	logger *slog.Logger
}

// NewPhoenix builds a subscriber for the Phoenix venue.
func NewPhoenix(wsURL string, markets []types.Pubkey, logger *slog.Logger) *Subscriber {
	return newSubscriber(SourcePhoenix, wsURL, markets, logger)
}

// NewSerum builds a subscriber for the Serum venue.
func NewSerum(wsURL string, markets []types.Pubkey, logger *slog.Logger) *Subscriber {
	return newSubscriber(SourceSerum, wsURL, markets, logger)
}

func newSubscriber(source, wsURL string, markets []types.Pubkey, logger *slog.Logger) *Subscriber {
	mirrors := make(map[types.Pubkey]*Mirror, len(markets))
	for _, market := range markets {
		if market.IsZero() {
			continue
		}
		mirrors[market] = NewMirror()
	}
	return &Subscriber{
		source:  source,
		url:     wsURL,
		mirrors: mirrors,
		logger:  logger.With("component", "venue", "venue", source),
	}
}

// Source returns the venue's liquidity source label.
func (s *Subscriber) Source() string { return s.source }

// Generators returns the bid and ask generators for one venue market. The
// second return is false when the market is not mirrored here or the
// mirror is stale, in which case the venue is simply left out of the merge.
func (s *Subscriber) Generators(market types.Pubkey) (bids, asks dlob.L2Generator, ok bool) {
	mirror, found := s.mirrors[market]
	if !found || mirror.Stale(bookMaxAge) {
		return nil, nil, false
	}
	return mirror.Generator(s.source, dlob.SideBid), mirror.Generator(s.source, dlob.SideAsk), true
}

// Run connects and maintains the venue subscription with auto-reconnect.
// Blocks until ctx is cancelled. With no markets to mirror it returns
// immediately.
func (s *Subscriber) Run(ctx context.Context) error {
	if len(s.mirrors) == 0 {
		s.logger.Info("no markets listed on venue, subscriber idle")
		<-ctx.Done()
		return ctx.Err()
	}

	backoff := time.Second
	for {
		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("venue websocket disconnected, reconnecting",
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

func (s *Subscriber) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	defer func() {
		s.connMu.Lock()
		conn.Close()
		s.conn = nil
		s.connMu.Unlock()
	}()

	if err := s.subscribe(); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	s.logger.Info("venue websocket connected", "markets", len(s.mirrors))

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go s.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		s.dispatchMessage(msg)
	}
}

func (s *Subscriber) subscribe() error {
	markets := make([]string, 0, len(s.mirrors))
	for market := range s.mirrors {
		markets = append(markets, market.String())
	}
	return s.writeJSON(map[string]any{
		"op":      "subscribe",
		"channel": "book",
		"markets": markets,
	})
}

// bookMessage is one full-book snapshot pushed by the venue. Prices and
// sizes arrive as decimal strings.
type bookMessage struct {
	Channel string       `json:"channel"`
	Market  types.Pubkey `json:"market"`
	Bids    [][2]string  `json:"bids"`
	Asks    [][2]string  `json:"asks"`
}

func (s *Subscriber) dispatchMessage(data []byte) {
	var msg bookMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("ignoring non-json venue message")
		return
	}
	if msg.Channel != "book" {
		// Subscription acks and heartbeats land here.
		return
	}

	mirror, ok := s.mirrors[msg.Market]
	if !ok {
		return
	}

	bids, err := parseLevels(msg.Bids)
	if err != nil {
		s.logger.Warn("bad bid levels in venue snapshot", "market", msg.Market, "error", err)
		return
	}
	asks, err := parseLevels(msg.Asks)
	if err != nil {
		s.logger.Warn("bad ask levels in venue snapshot", "market", msg.Market, "error", err)
		return
	}
	mirror.ApplySnapshot(bids, asks)
}

func parseLevels(raw [][2]string) ([]Level, error) {
	out := make([]Level, 0, len(raw))
	for _, pair := range raw {
		price, err := decimal.NewFromString(pair[0])
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", pair[0], err)
		}
		size, err := decimal.NewFromString(pair[1])
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", pair[1], err)
		}
		out = append(out, Level{Price: price, Size: size})
	}
	return out, nil
}

func (s *Subscriber) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (s *Subscriber) writeJSON(v any) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

func (s *Subscriber) writeMessage(msgType int, data []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(msgType, data)
}
