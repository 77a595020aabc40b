// Package updater is the single authorized write path from the off-chain
// supervisor into the reputation ledger. Batches arrive as signed envelopes;
// the relay verifies the signature, validates the payload shape, enforces
// the replay horizon and a submission rate, and only then forwards the batch
// to the ledger as one atomic application.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/rain-protocol/rain/core/pkg/reputation"
	"github.com/rain-protocol/rain/core/pkg/replay"
)

// Batch is one supervisor submission. Increases are applied before
// decreases, decreases before slashes.
type Batch struct {
	ID        string             `json:"id"`
	Increases []reputation.Delta `json:"increases,omitempty"`
	Decreases []reputation.Delta `json:"decreases,omitempty"`
	Slashes   []reputation.Delta `json:"slashes,omitempty"`
}

// Relay verifies and forwards supervisor batches. The relay's own identity
// holds the updater role on the ledger's role table; external callers never
// touch the ledger directly.
type Relay struct {
	identity string
	ledger   *reputation.Ledger
	guard    replay.Guard
	limiter  *rate.Limiter
	verifier *Verifier
	logger   *slog.Logger
}

// NewRelay creates a Relay submitting as identity. The limiter paces
// envelope processing; pass rate.NewLimiter(rate.Inf, 0) to disable pacing.
func NewRelay(identity string, ledger *reputation.Ledger, guard replay.Guard, verifier *Verifier, limiter *rate.Limiter) *Relay {
	return &Relay{
		identity: identity,
		ledger:   ledger,
		guard:    guard,
		limiter:  limiter,
		verifier: verifier,
		logger:   slog.Default().With("component", "updater"),
	}
}

// Submit verifies envelope and applies its batch. Any failure leaves the
// ledger untouched; a batch id is consumed only when the batch is about to
// be applied, so a batch rejected for shape can be corrected and resent.
func (r *Relay) Submit(ctx context.Context, envelope string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("updater: %w", err)
	}

	raw, err := r.verifier.Verify(envelope)
	if err != nil {
		return err
	}
	if err := validateBatch(raw); err != nil {
		return err
	}
	var batch Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return fmt.Errorf("updater: decode batch: %w", err)
	}

	if err := r.guard.Register(ctx, batch.ID); err != nil {
		return fmt.Errorf("updater: %w", err)
	}

	if err := r.ledger.ApplyBatch(ctx, r.identity, batch.Increases, batch.Decreases, batch.Slashes); err != nil {
		return fmt.Errorf("updater: batch %s: %w", batch.ID, err)
	}

	r.logger.Info("batch applied", "batch_id", batch.ID,
		"increases", len(batch.Increases), "decreases", len(batch.Decreases), "slashes", len(batch.Slashes))
	return nil
}
