// Package replay prevents a reputation batch from being applied twice. Batch
// ids are registered set-once; a second registration is rejected, making
// slash/decrease submissions replay-proof even if the off-chain supervisor
// resends an envelope.
package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrReplay is returned when a batch id was registered before.
var ErrReplay = errors.New("replay: batch already applied")

// Guard registers batch ids exactly once.
type Guard interface {
	// Register marks id as applied. Returns ErrReplay if it was seen before.
	Register(ctx context.Context, id string) error
}

// MemoryGuard is an in-process Guard.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryGuard creates an empty MemoryGuard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{seen: make(map[string]struct{})}
}

// Register implements Guard.
func (g *MemoryGuard) Register(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[id]; ok {
		return fmt.Errorf("%w: %s", ErrReplay, id)
	}
	g.seen[id] = struct{}{}
	return nil
}
