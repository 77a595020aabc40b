package roles

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rain-protocol/rain/core/pkg/ledgererr"
)

func TestAdminBootstrap(t *testing.T) {
	table := NewTable("admin")
	assert.True(t, table.Has(RoleAdmin, "admin"))
	assert.False(t, table.Has(RoleAdmin, "mallory"))
}

func TestGrantRequiresAdmin(t *testing.T) {
	table := NewTable("admin")

	err := table.Grant("mallory", RoleSessionCreator, "mallory")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledgererr.ErrUnauthorized))

	require.NoError(t, table.Grant("admin", RoleSessionCreator, "script-x"))
	assert.True(t, table.Has(RoleSessionCreator, "script-x"))
	require.NoError(t, table.Require(RoleSessionCreator, "script-x"))
}

func TestUpdaterRoleIsExclusive(t *testing.T) {
	table := NewTable("admin")

	require.NoError(t, table.Grant("admin", RoleUpdater, "oracle-relay"))
	// Re-granting the same holder is idempotent.
	require.NoError(t, table.Grant("admin", RoleUpdater, "oracle-relay"))

	err := table.Grant("admin", RoleUpdater, "second-writer")
	require.Error(t, err)

	// After revoking, the role can move.
	require.NoError(t, table.Revoke("admin", RoleUpdater, "oracle-relay"))
	require.NoError(t, table.Grant("admin", RoleUpdater, "second-writer"))
	assert.False(t, table.Has(RoleUpdater, "oracle-relay"))
	assert.True(t, table.Has(RoleUpdater, "second-writer"))
}

func TestRequireUnknownRole(t *testing.T) {
	table := NewTable("admin")
	err := table.Require(RoleClaimMinter, "nobody")
	assert.True(t, errors.Is(err, ledgererr.ErrUnauthorized))
}
