// Package claims implements the debt claim registry: transferable
// non-fungible records of defaults. Minting a defaulter's first outstanding
// claim locks their delinquency flag on the reputation ledger; burning their
// last one clears it. The registry holds a one-directional set-delinquent
// capability on the ledger and the ledger holds no reference back.
package claims

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rain-protocol/rain/core/pkg/audit"
	"github.com/rain-protocol/rain/core/pkg/ledgererr"
	"github.com/rain-protocol/rain/core/pkg/roles"
)

// DelinquencySetter is the narrow capability the registry holds on the
// reputation ledger.
type DelinquencySetter interface {
	SetDelinquent(ctx context.Context, caller, user string, delinquent bool) error
}

// Claim is one non-fungible default record. Defaulter and PromiseID are
// immutable once minted; only ownership moves.
type Claim struct {
	ID               uint64    `json:"id"`
	PromiseID        uint64    `json:"promise_id"`
	Defaulter        string    `json:"defaulter"`
	OriginalCreditor string    `json:"original_creditor"`
	ShortfallAmount  int64     `json:"shortfall_amount"`
	DefaultTimestamp time.Time `json:"default_timestamp"`
	Witness          string    `json:"witness"`
}

// Registry tracks claims, their owners, and per-defaulter debt counts.
type Registry struct {
	mu        sync.RWMutex
	nextID    uint64
	claims    map[uint64]Claim
	owners    map[uint64]string
	approved  map[uint64]string
	debtCount map[string]int

	identity string // the identity holding the registry role on the ledger
	roles    *roles.Table
	ledger   DelinquencySetter
	log      *audit.Log
	clock    func() time.Time
	logger   *slog.Logger
}

// NewRegistry creates a Registry acting as identity against ledger. The
// identity must hold the registry role on the reputation ledger's role table.
func NewRegistry(identity string, table *roles.Table, ledger DelinquencySetter, log *audit.Log, clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		claims:    make(map[uint64]Claim),
		owners:    make(map[uint64]string),
		approved:  make(map[uint64]string),
		debtCount: make(map[string]int),
		identity:  identity,
		roles:     table,
		ledger:    ledger,
		log:       log,
		clock:     clock,
		logger:    slog.Default().With("component", "claims"),
	}
}

// MintClaim records a default and assigns the claim to the creditor. Minter
// role only. The defaulter's first outstanding claim sets their delinquency.
func (r *Registry) MintClaim(ctx context.Context, caller string, promiseID uint64, defaulter, creditor string, shortfall int64, witness string) (uint64, error) {
	if err := r.roles.Require(roles.RoleClaimMinter, caller); err != nil {
		return 0, err
	}
	if shortfall <= 0 {
		return 0, fmt.Errorf("claims: mint: %w", ledgererr.ErrInvalidAmount)
	}

	r.mu.Lock()
	firstOffense := r.debtCount[defaulter] == 0
	r.nextID++
	id := r.nextID
	r.claims[id] = Claim{
		ID:               id,
		PromiseID:        promiseID,
		Defaulter:        defaulter,
		OriginalCreditor: creditor,
		ShortfallAmount:  shortfall,
		DefaultTimestamp: r.clock().UTC(),
		Witness:          witness,
	}
	r.owners[id] = creditor
	r.debtCount[defaulter]++
	r.mu.Unlock()

	if firstOffense {
		if err := r.ledger.SetDelinquent(ctx, r.identity, defaulter, true); err != nil {
			// Roll back the mint so no claim exists without the lock.
			r.mu.Lock()
			delete(r.claims, id)
			delete(r.owners, id)
			r.debtCount[defaulter]--
			r.mu.Unlock()
			return 0, fmt.Errorf("claims: set delinquent: %w", err)
		}
	}

	r.logger.Info("claim minted", "claim_id", id, "defaulter", defaulter, "shortfall", shortfall)
	_, err := r.log.Append(ctx, audit.EventClaimMinted, caller, 0, map[string]any{
		"claim_id": id, "promise_id": promiseID, "defaulter": defaulter,
		"creditor": creditor, "shortfall": shortfall, "witness": witness,
	})
	return id, err
}

// Transfer moves ownership of claimID to a new holder. Only the current owner
// or the approved address may transfer.
func (r *Registry) Transfer(ctx context.Context, caller string, claimID uint64, to string) error {
	r.mu.Lock()
	owner, ok := r.owners[claimID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("claims: claim %d: %w", claimID, ledgererr.ErrNotFound)
	}
	if caller != owner && caller != r.approved[claimID] {
		r.mu.Unlock()
		return fmt.Errorf("claims: transfer claim %d: %w", claimID, ledgererr.ErrUnauthorized)
	}
	r.owners[claimID] = to
	delete(r.approved, claimID)
	r.mu.Unlock()

	_, err := r.log.Append(ctx, audit.EventClaimTransferred, caller, 0, map[string]any{
		"claim_id": claimID, "from": owner, "to": to,
	})
	return err
}

// Approve lets owner authorize one other address to transfer or burn claimID.
func (r *Registry) Approve(ctx context.Context, caller string, claimID uint64, spender string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[claimID]
	if !ok {
		return fmt.Errorf("claims: claim %d: %w", claimID, ledgererr.ErrNotFound)
	}
	if caller != owner {
		return fmt.Errorf("claims: approve claim %d: %w", claimID, ledgererr.ErrUnauthorized)
	}
	r.approved[claimID] = spender
	return nil
}

// BurnClaim settles a claim. Only the current owner or the approved address
// may burn. Checks, then internal bookkeeping, then the delinquency call and
// record removal last (checks-effects-interactions).
func (r *Registry) BurnClaim(ctx context.Context, caller string, claimID uint64) error {
	r.mu.Lock()
	owner, ok := r.owners[claimID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("claims: claim %d: %w", claimID, ledgererr.ErrNotFound)
	}
	if caller != owner && caller != r.approved[claimID] {
		r.mu.Unlock()
		return fmt.Errorf("claims: burn claim %d: %w", claimID, ledgererr.ErrUnauthorized)
	}
	claim := r.claims[claimID]
	approved := r.approved[claimID]
	r.debtCount[claim.Defaulter]--
	lastDebt := r.debtCount[claim.Defaulter] == 0
	delete(r.claims, claimID)
	delete(r.owners, claimID)
	delete(r.approved, claimID)
	r.mu.Unlock()

	if lastDebt {
		if err := r.ledger.SetDelinquent(ctx, r.identity, claim.Defaulter, false); err != nil {
			// Roll back the burn so the claim and debt count survive and the
			// burn can be retried.
			r.mu.Lock()
			r.claims[claimID] = claim
			r.owners[claimID] = owner
			if approved != "" {
				r.approved[claimID] = approved
			}
			r.debtCount[claim.Defaulter]++
			r.mu.Unlock()
			return fmt.Errorf("claims: clear delinquent: %w", err)
		}
	}

	r.logger.Info("claim burned", "claim_id", claimID, "burner", caller, "defaulter", claim.Defaulter)
	_, err := r.log.Append(ctx, audit.EventClaimBurned, caller, 0, map[string]any{
		"claim_id": claimID, "defaulter": claim.Defaulter, "burner": caller,
	})
	return err
}

// OwnerOf returns the current owner of claimID.
func (r *Registry) OwnerOf(claimID uint64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[claimID]
	return owner, ok
}

// GetApproved returns the approved address for claimID, if any.
func (r *Registry) GetApproved(claimID uint64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.approved[claimID]
}

// DebtCount returns the number of outstanding claims against defaulter.
func (r *Registry) DebtCount(defaulter string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.debtCount[defaulter]
}

// Get returns the claim record for claimID.
func (r *Registry) Get(claimID uint64) (Claim, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.claims[claimID]
	return c, ok
}

// OwnedClaim pairs a claim with its current owner.
type OwnedClaim struct {
	Claim
	Owner string
}

// Outstanding returns every live claim with its owner, for persistence.
func (r *Registry) Outstanding() []OwnedClaim {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]OwnedClaim, 0, len(r.claims))
	for id, c := range r.claims {
		out = append(out, OwnedClaim{Claim: c, Owner: r.owners[id]})
	}
	return out
}
