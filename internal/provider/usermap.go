package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"dlob-server/internal/rpc"
	"dlob-server/pkg/types"
)

// UserMap is the polling provider: it resyncs the full program account set
// on a fixed cadence. Each resync replaces the index wholesale, so accounts
// closed on chain disappear without explicit deletion events.
type UserMap struct {
	*Index

	client   *rpc.Client
	program  types.Pubkey
	decode   UserDecoder
	interval time.Duration

	subscribed atomic.Bool
	logger     *slog.Logger
}

// NewUserMap builds a polling provider over the RPC client.
func NewUserMap(client *rpc.Client, program types.Pubkey, decode UserDecoder, interval time.Duration, logger *slog.Logger) *UserMap {
	return &UserMap{
		Index:    NewIndex(),
		client:   client,
		program:  program,
		decode:   decode,
		interval: interval,
		logger:   logger.With("component", "usermap"),
	}
}

// Subscribe runs the first full sync, then keeps resyncing in the
// background until ctx is cancelled.
func (m *UserMap) Subscribe(ctx context.Context) error {
	if err := m.sync(ctx); err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	m.subscribed.Store(true)

	go m.run(ctx)
	return nil
}

// Subscribed reports whether the initial sync has completed.
func (m *UserMap) Subscribed() bool { return m.subscribed.Load() }

func (m *UserMap) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.sync(ctx); err != nil {
				// Transient: keep serving the previous account set.
				m.logger.Warn("resync failed", "error", err)
			}
		}
	}
}

func (m *UserMap) sync(ctx context.Context) error {
	accounts, err := m.client.GetProgramAccounts(ctx, m.program)
	if err != nil {
		return err
	}

	next := make(map[types.Pubkey]*types.UserAccount, len(accounts))
	for _, acct := range accounts {
		user, err := m.decode(acct.Pubkey, acct.Data)
		if err != nil {
			// One bad account never degrades the sync.
			m.logger.Warn("skipping undecodable user account", "pubkey", acct.Pubkey, "error", err)
			continue
		}
		next[acct.Pubkey] = user
	}

	m.replace(next)
	m.logger.Debug("resynced user accounts", "count", len(next))
	return nil
}
