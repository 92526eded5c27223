package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"dlob-server/internal/chain"
	"dlob-server/internal/rpc"
	"dlob-server/pkg/types"
)

// OrderSubscriber is the push provider: it seeds the index with one full
// fetch, then applies websocket account updates as they arrive. Compact —
// only accounts that actually change cross the wire after the seed.
type OrderSubscriber struct {
	*Index

	client  *rpc.Client
	feed    *rpc.Feed
	program types.Pubkey
	decode  UserDecoder
	slots   *chain.SlotSource

	subscribed atomic.Bool
	logger     *slog.Logger
}

// NewOrderSubscriber builds a push provider over the websocket feed. The
// slot source is updated from each pushed notification, keeping the served
// slot fresher than the poller alone would.
func NewOrderSubscriber(client *rpc.Client, feed *rpc.Feed, program types.Pubkey, decode UserDecoder, slots *chain.SlotSource, logger *slog.Logger) *OrderSubscriber {
	return &OrderSubscriber{
		Index:   NewIndex(),
		client:  client,
		feed:    feed,
		program: program,
		decode:  decode,
		slots:   slots,
		logger:  logger.With("component", "order-subscriber"),
	}
}

// Subscribe seeds the index, then consumes pushed updates until ctx is
// cancelled. The feed reconnects on its own; a dropped connection only
// delays updates.
func (s *OrderSubscriber) Subscribe(ctx context.Context) error {
	accounts, err := s.client.GetProgramAccounts(ctx, s.program)
	if err != nil {
		return fmt.Errorf("seed fetch: %w", err)
	}
	seed := make(map[types.Pubkey]*types.UserAccount, len(accounts))
	for _, acct := range accounts {
		user, err := s.decode(acct.Pubkey, acct.Data)
		if err != nil {
			s.logger.Warn("skipping undecodable user account", "pubkey", acct.Pubkey, "error", err)
			continue
		}
		seed[acct.Pubkey] = user
	}
	s.replace(seed)
	s.subscribed.Store(true)

	go func() {
		if err := s.feed.Run(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("account feed stopped", "error", err)
		}
	}()
	go s.consume(ctx)
	return nil
}

// Subscribed reports whether the seed fetch has completed.
func (s *OrderSubscriber) Subscribed() bool { return s.subscribed.Load() }

func (s *OrderSubscriber) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case update := <-s.feed.Updates():
			s.apply(update)
		}
	}
}

func (s *OrderSubscriber) apply(update rpc.AccountUpdate) {
	if update.Slot > 0 {
		s.slots.Update(update.Slot)
	}

	if update.Deleted {
		s.Delete(update.Pubkey)
		return
	}

	user, err := s.decode(update.Pubkey, update.Data)
	if err != nil {
		s.logger.Warn("skipping undecodable account update", "pubkey", update.Pubkey, "error", err)
		return
	}
	s.Upsert(update.Pubkey, user)
}
