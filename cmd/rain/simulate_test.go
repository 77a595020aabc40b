package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rain-protocol/rain/core/pkg/config"
)

func TestSimulateFullLifecycle(t *testing.T) {
	cfg := &config.Config{UpdaterKey: "test-key-test-key-test-key-1234!"}
	profile := config.DefaultProfile()

	w, err := buildWorld(cfg, profile)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, simulate(context.Background(), w, profile, &out))

	// Happy path: bob repaid, got rewarded, stake released.
	assert.Equal(t, int64(0), w.ledger.StakedOf(borrowerID))
	assert.Equal(t, int64(100+profile.RewardPerFulfillment), w.ledger.Score(borrowerID))

	// Resolution path: charlie settled, delinquency cleared, stake released.
	assert.False(t, w.ledger.IsDelinquent(debtorID))
	assert.Equal(t, int64(0), w.ledger.StakedOf(debtorID))
	assert.Equal(t, int64(100-profile.PenaltyPerDefault), w.ledger.Score(debtorID))
	assert.Equal(t, 0, w.registry.DebtCount(debtorID))

	assert.Contains(t, out.String(), "SIMULATION COMPLETE")
}

func TestRunFee(t *testing.T) {
	var out, errOut bytes.Buffer
	code := runFee([]string{"-expr", "base_fee * 2", "-base", "10"}, &out, &errOut)
	assert.Equal(t, 0, code)
	assert.Equal(t, "20", strings.TrimSpace(out.String()))

	code = runFee([]string{"-expr", "base_fee -"}, &out, &errOut)
	assert.Equal(t, 1, code)
}

func TestRunUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"rain", "bogus"}, &out, &errOut)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut.String(), "Unknown command")
}

func TestRunVersion(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Run([]string{"rain", "version"}, &out, &errOut)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), config.EngineVersion)
}
