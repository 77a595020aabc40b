package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuardRegistersOnce(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	require.NoError(t, g.Register(ctx, "batch-1"))
	err := g.Register(ctx, "batch-1")
	assert.True(t, errors.Is(err, ErrReplay))

	require.NoError(t, g.Register(ctx, "batch-2"))
}
