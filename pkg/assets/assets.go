// Package assets defines the external asset-transfer capability consumed by
// the promise engine, plus an in-memory bank used by tests and the
// simulation. Amounts are integer minor units; the core never does floating
// point money math.
package assets

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientBalance is returned when a fungible transfer exceeds the
	// sender's balance.
	ErrInsufficientBalance = errors.New("assets: insufficient balance")
	// ErrUnknownToken is returned when an NFT transfer references a token id
	// that was never minted.
	ErrUnknownToken = errors.New("assets: unknown token")
	// ErrNotTokenOwner is returned when an NFT transfer is attempted from an
	// address that does not own the token.
	ErrNotTokenOwner = errors.New("assets: sender does not own token")
)

// Transferer is the asset-transfer capability. Implementations must be
// all-or-nothing: on error, no balance or ownership changes.
type Transferer interface {
	// TransferFrom moves amount of the fungible asset from one address to
	// another.
	TransferFrom(ctx context.Context, asset, from, to string, amount int64) error

	// TransferNFTFrom moves ownership of tokenID of the non-fungible asset.
	TransferNFTFrom(ctx context.Context, asset, from, to string, tokenID int64) error
}
