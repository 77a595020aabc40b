// Package roles implements the capability table gating privileged entry
// points. Membership is an explicit set keyed by identity; there is no
// inheritance and no implicit grants.
package roles

import (
	"fmt"
	"sync"

	"github.com/rain-protocol/rain/core/pkg/ledgererr"
)

// Role names a capability an identity may hold.
type Role string

const (
	// RoleAdmin may grant reputation, set the protocol fee, and manage roles.
	RoleAdmin Role = "admin"
	// RoleSessionCreator may open fee-gated actions on the promise engine.
	RoleSessionCreator Role = "session_creator"
	// RoleUpdater may apply reputation increases, decreases, and slashes.
	// At most one identity holds it at a time.
	RoleUpdater Role = "updater"
	// RoleClaimMinter may mint debt claims.
	RoleClaimMinter Role = "claim_minter"
	// RoleRegistry may toggle delinquency on the reputation ledger. Held only
	// by the debt claim registry.
	RoleRegistry Role = "registry"
)

// exclusive roles admit a single holder.
var exclusive = map[Role]bool{
	RoleUpdater:  true,
	RoleRegistry: true,
}

// Table is a thread-safe role-membership set.
type Table struct {
	mu      sync.RWMutex
	members map[Role]map[string]struct{}
}

// NewTable creates a Table with the given identity as admin.
func NewTable(admin string) *Table {
	t := &Table{members: make(map[Role]map[string]struct{})}
	t.members[RoleAdmin] = map[string]struct{}{admin: {}}
	return t
}

// Grant adds identity to role. Exclusive roles reject a second holder; the
// existing holder must be revoked first.
func (t *Table) Grant(caller string, role Role, identity string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.holds(caller, RoleAdmin) {
		return fmt.Errorf("roles: grant %s: %w", role, ledgererr.ErrUnauthorized)
	}
	set, ok := t.members[role]
	if !ok {
		set = make(map[string]struct{})
		t.members[role] = set
	}
	if exclusive[role] && len(set) > 0 {
		if _, self := set[identity]; !self {
			return fmt.Errorf("roles: %s is exclusive and already held", role)
		}
	}
	set[identity] = struct{}{}
	return nil
}

// Revoke removes identity from role. Revoking a non-member is a no-op.
func (t *Table) Revoke(caller string, role Role, identity string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.holds(caller, RoleAdmin) {
		return fmt.Errorf("roles: revoke %s: %w", role, ledgererr.ErrUnauthorized)
	}
	delete(t.members[role], identity)
	return nil
}

// Has reports whether identity holds role.
func (t *Table) Has(role Role, identity string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.holds(identity, role)
}

// Require returns ErrUnauthorized unless identity holds role.
func (t *Table) Require(role Role, identity string) error {
	if !t.Has(role, identity) {
		return fmt.Errorf("roles: %s requires %s: %w", identity, role, ledgererr.ErrUnauthorized)
	}
	return nil
}

func (t *Table) holds(identity string, role Role) bool {
	_, ok := t.members[role][identity]
	return ok
}
