// Package provider maintains the user-account index the book is built from.
//
// Two implementations satisfy the same contract: UserMap periodically
// resyncs every program account over HTTP RPC, OrderSubscriber consumes the
// push websocket stream. The operator picks one via USE_ORDER_SUBSCRIBER;
// everything downstream only sees the DLOBProvider interface.
package provider

import (
	"context"
	"sync"

	"dlob-server/pkg/types"
)

// UserDecoder decodes a raw user account payload. The wire layout belongs
// to the chain program; the decoder is injected.
type UserDecoder func(pubkey types.Pubkey, data []byte) (*types.UserAccount, error)

// DLOBProvider is the account view the book builder and handlers consume.
type DLOBProvider interface {
	// Subscribe performs the initial sync and starts background updates.
	// It returns once the first sync has completed.
	Subscribe(ctx context.Context) error
	// Subscribed reports whether the initial sync has completed.
	Subscribed() bool

	Size() int
	Get(pubkey types.Pubkey) (*types.UserAccount, bool)
	Range(fn func(pubkey types.Pubkey, account *types.UserAccount) bool)
	UniqueAuthorities() []types.Pubkey
}

// Index is the flat keyed store of decoded user accounts. No orderings are
// maintained here; iteration order is unspecified. The stream consumer is
// the only writer, so readers accept eventual consistency within one tick.
type Index struct {
	mu       sync.RWMutex
	accounts map[types.Pubkey]*types.UserAccount
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{accounts: make(map[types.Pubkey]*types.UserAccount)}
}

// Upsert replaces any prior entry for the key.
func (x *Index) Upsert(pubkey types.Pubkey, account *types.UserAccount) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.accounts[pubkey] = account
}

// Delete removes the entry. Deleting an absent key is a no-op.
func (x *Index) Delete(pubkey types.Pubkey) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.accounts, pubkey)
}

// Get returns the account for a key. Absence is a soft failure.
func (x *Index) Get(pubkey types.Pubkey) (*types.UserAccount, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	account, ok := x.accounts[pubkey]
	return account, ok
}

// Range calls fn for every entry until fn returns false.
func (x *Index) Range(fn func(pubkey types.Pubkey, account *types.UserAccount) bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	for pk, account := range x.accounts {
		if !fn(pk, account) {
			return
		}
	}
}

// Size returns the number of indexed accounts.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.accounts)
}

// UniqueAuthorities returns the distinct authorities across all accounts.
func (x *Index) UniqueAuthorities() []types.Pubkey {
	x.mu.RLock()
	defer x.mu.RUnlock()
	seen := make(map[types.Pubkey]struct{}, len(x.accounts))
	out := make([]types.Pubkey, 0, len(x.accounts))
	for _, account := range x.accounts {
		if _, dup := seen[account.Authority]; dup {
			continue
		}
		seen[account.Authority] = struct{}{}
		out = append(out, account.Authority)
	}
	return out
}

// replace swaps the whole map in one step, superseding every prior entry.
func (x *Index) replace(accounts map[types.Pubkey]*types.UserAccount) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.accounts = accounts
}
