package assets

import (
	"context"
	"fmt"
	"sync"
)

// Bank is a thread-safe in-memory Transferer. It plays the part of the
// fungible/non-fungible token contracts in tests and simulations.
type Bank struct {
	mu       sync.RWMutex
	balances map[string]map[string]int64 // asset -> holder -> balance
	owners   map[string]map[int64]string // asset -> tokenID -> owner
}

// NewBank creates an empty Bank.
func NewBank() *Bank {
	return &Bank{
		balances: make(map[string]map[string]int64),
		owners:   make(map[string]map[int64]string),
	}
}

// Mint credits amount of asset to holder.
func (b *Bank) Mint(asset, holder string, amount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[asset] == nil {
		b.balances[asset] = make(map[string]int64)
	}
	b.balances[asset][holder] += amount
}

// MintNFT assigns tokenID of asset to owner.
func (b *Bank) MintNFT(asset string, tokenID int64, owner string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.owners[asset] == nil {
		b.owners[asset] = make(map[int64]string)
	}
	b.owners[asset][tokenID] = owner
}

// BalanceOf returns holder's balance of asset.
func (b *Bank) BalanceOf(asset, holder string) int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.balances[asset][holder]
}

// OwnerOf returns the owner of tokenID, or "" if it was never minted.
func (b *Bank) OwnerOf(asset string, tokenID int64) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.owners[asset][tokenID]
}

// TransferFrom implements Transferer.
func (b *Bank) TransferFrom(_ context.Context, asset, from, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("assets: transfer amount %d must be positive", amount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.balances[asset][from] < amount {
		return fmt.Errorf("%w: %s has %d of %s, need %d",
			ErrInsufficientBalance, from, b.balances[asset][from], asset, amount)
	}
	b.balances[asset][from] -= amount
	b.balances[asset][to] += amount
	return nil
}

// TransferNFTFrom implements Transferer.
func (b *Bank) TransferNFTFrom(_ context.Context, asset, from, to string, tokenID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	owner, ok := b.owners[asset][tokenID]
	if !ok {
		return fmt.Errorf("%w: %s #%d", ErrUnknownToken, asset, tokenID)
	}
	if owner != from {
		return fmt.Errorf("%w: %s #%d owned by %s", ErrNotTokenOwner, asset, tokenID, owner)
	}
	b.owners[asset][tokenID] = to
	return nil
}
