package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/time/rate"

	"github.com/rain-protocol/rain/core/pkg/assets"
	"github.com/rain-protocol/rain/core/pkg/audit"
	"github.com/rain-protocol/rain/core/pkg/claims"
	"github.com/rain-protocol/rain/core/pkg/config"
	"github.com/rain-protocol/rain/core/pkg/engine"
	"github.com/rain-protocol/rain/core/pkg/oracle"
	"github.com/rain-protocol/rain/core/pkg/replay"
	"github.com/rain-protocol/rain/core/pkg/reputation"
	"github.com/rain-protocol/rain/core/pkg/roles"
	"github.com/rain-protocol/rain/core/pkg/store"
	"github.com/rain-protocol/rain/core/pkg/telemetry"
	"github.com/rain-protocol/rain/core/pkg/updater"
)

// Well-known identities in the simulation.
const (
	deployerID = "deployer"
	lenderID   = "alice"
	borrowerID = "bob"     // happy path
	debtorID   = "charlie" // unhappy and resolution path
	scriptID   = "loan-script"
	relayID    = "oracle-relay"
	registryID = "rct-registry"
)

// world is the fully wired ledger used by the simulation.
type world struct {
	table      *roles.Table
	bank       *assets.Bank
	log        *audit.Log
	engine     *engine.Engine
	ledger     *reputation.Ledger
	registry   *claims.Registry
	supervisor *oracle.Supervisor
	relay      *updater.Relay
	reader     *sdkmetric.ManualReader
	now        time.Time
}

func buildWorld(cfg *config.Config, profile *config.EconomicProfile) (*world, error) {
	w := &world{now: time.Now().UTC()}
	clock := func() time.Time { return w.now }

	w.table = roles.NewTable(deployerID)
	if err := w.table.Grant(deployerID, roles.RoleSessionCreator, scriptID); err != nil {
		return nil, err
	}
	if err := w.table.Grant(deployerID, roles.RoleClaimMinter, scriptID); err != nil {
		return nil, err
	}
	if err := w.table.Grant(deployerID, roles.RoleUpdater, relayID); err != nil {
		return nil, err
	}
	if err := w.table.Grant(deployerID, roles.RoleRegistry, registryID); err != nil {
		return nil, err
	}

	w.reader = sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(w.reader))
	metrics, err := telemetry.New(provider.Meter("rain"))
	if err != nil {
		return nil, err
	}

	w.bank = assets.NewBank()
	w.log = audit.NewLog()
	w.ledger = reputation.NewLedger(w.table, w.log, reputation.WithMetrics(metrics))
	w.engine = engine.New(w.table, w.bank, w.log, profile.FeeAsset, profile.Treasury, profile.BaseFee,
		engine.WithClock(clock), engine.WithMetrics(metrics))
	w.registry = claims.NewRegistry(registryID, w.table, w.ledger, w.log, clock)

	key := []byte(cfg.UpdaterKey)
	signer := updater.NewSigner(key, profile.EnvelopeTTL())
	var guard replay.Guard = replay.NewMemoryGuard()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		guard = replay.NewRedisGuard(client, "rain:batch", 24*time.Hour)
	}
	limiter := rate.NewLimiter(rate.Limit(profile.BatchesPerSec), 1)
	w.relay = updater.NewRelay(relayID, w.ledger, guard, updater.NewVerifier(key), limiter)

	policy := oracle.Policy{
		RewardPerFulfillment: profile.RewardPerFulfillment,
		PenaltyPerDefault:    profile.PenaltyPerDefault,
	}
	if err := policy.Validate(profile.BaseFee); err != nil {
		return nil, err
	}
	w.supervisor = oracle.NewSupervisor(policy, w.log, signer, w.ledger)
	return w, nil
}

// settle runs one oracle scan and pushes the resulting batch through the
// relay.
func (w *world) settle(ctx context.Context) error {
	env, ok, err := w.supervisor.Scan()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return w.relay.Submit(ctx, env)
}

func runSimulate(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	profilePath := fs.String("profile", cfg.ProfilePath, "economic profile to load")
	snapshot := fs.Bool("snapshot", false, "persist the final state to the configured database")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	profile := config.DefaultProfile()
	if *profilePath != "" {
		var err error
		profile, err = config.LoadEconomicProfile(*profilePath)
		if err != nil {
			fmt.Fprintf(stderr, "simulate: %v\n", err)
			return 1
		}
	}

	ctx := context.Background()
	w, err := buildWorld(cfg, profile)
	if err != nil {
		fmt.Fprintf(stderr, "simulate: %v\n", err)
		return 1
	}

	if err := simulate(ctx, w, profile, stdout); err != nil {
		fmt.Fprintf(stderr, "simulate: %v\n", err)
		return 1
	}

	if *snapshot {
		if err := saveSnapshot(ctx, cfg, w); err != nil {
			fmt.Fprintf(stderr, "simulate: snapshot: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "Snapshot persisted.")
	}
	return 0
}

// simulate walks the full loan lifecycle: a repaid loan, a default that
// mints a debt claim, and the settlement that clears it.
func simulate(ctx context.Context, w *world, profile *config.EconomicProfile, out io.Writer) error {
	const (
		principal = int64(1000)
		interest  = int64(50)
		repStake  = int64(50)
	)
	loanTerm := 30 * 24 * time.Hour

	fmt.Fprintln(out, "--- LOAN SIMULATION (FULL LIFECYCLE) ---")

	// Setup: currency and initial reputation.
	w.bank.Mint(profile.FeeAsset, lenderID, 5000)
	w.bank.Mint(profile.FeeAsset, borrowerID, 2000)
	w.bank.Mint(profile.FeeAsset, debtorID, 2000)
	for _, user := range []string{borrowerID, debtorID} {
		if err := w.ledger.Grant(ctx, deployerID, user, 100); err != nil {
			return err
		}
	}

	// Phase 1: happy path. Bob borrows from Alice and repays on time.
	fmt.Fprintln(out, "\n--- Phase 1: Happy Path (bob borrows from alice) ---")
	if err := w.ledger.Stake(ctx, borrowerID, repStake, "loan-1"); err != nil {
		return err
	}
	actionID, err := w.engine.CreateAction(ctx, scriptID, borrowerID)
	if err != nil {
		return err
	}
	deadline := w.now.Add(loanTerm)
	promiseID, err := w.engine.CreatePromise(ctx, scriptID, actionID, borrowerID, lenderID,
		profile.FeeAsset, principal+interest, deadline)
	if err != nil {
		return err
	}
	if err := w.engine.TransferValue(ctx, scriptID, actionID, profile.FeeAsset, lenderID, borrowerID, principal); err != nil {
		return err
	}
	fmt.Fprintf(out, "Loan funded: %d %s to %s\n", principal, profile.FeeAsset, borrowerID)

	w.now = w.now.Add(loanTerm / 2)
	if err := w.engine.TransferValue(ctx, scriptID, actionID, profile.FeeAsset, borrowerID, lenderID, principal+interest); err != nil {
		return err
	}
	if err := w.engine.FulfillPromise(ctx, scriptID, promiseID); err != nil {
		return err
	}
	if err := w.ledger.ReleaseStake(ctx, "loan-1"); err != nil {
		return err
	}
	if err := w.settle(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Loan repaid. %s: score=%d staked=%d\n",
		borrowerID, w.ledger.Score(borrowerID), w.ledger.StakedOf(borrowerID))

	// Phase 2: unhappy path. Charlie borrows and defaults.
	fmt.Fprintln(out, "\n--- Phase 2: Unhappy Path (charlie defaults) ---")
	if err := w.ledger.Stake(ctx, debtorID, repStake, "loan-2"); err != nil {
		return err
	}
	actionID, err = w.engine.CreateAction(ctx, scriptID, debtorID)
	if err != nil {
		return err
	}
	deadline = w.now.Add(loanTerm)
	promiseID, err = w.engine.CreatePromise(ctx, scriptID, actionID, debtorID, lenderID,
		profile.FeeAsset, principal+interest, deadline)
	if err != nil {
		return err
	}
	if err := w.engine.TransferValue(ctx, scriptID, actionID, profile.FeeAsset, lenderID, debtorID, principal); err != nil {
		return err
	}

	w.now = deadline.Add(time.Second)
	if err := w.engine.DefaultPromise(ctx, scriptID, promiseID); err != nil {
		return err
	}
	claimID, err := w.registry.MintClaim(ctx, scriptID, promiseID, debtorID, lenderID, principal+interest, scriptID)
	if err != nil {
		return err
	}
	if err := w.settle(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Default claimed. Claim %d minted to %s. %s delinquent=%v score=%d\n",
		claimID, lenderID, debtorID, w.ledger.IsDelinquent(debtorID), w.ledger.Score(debtorID))

	// Phase 3: resolution. Charlie settles off-ledger, reacquires the claim,
	// and the script burns it on his behalf.
	fmt.Fprintln(out, "\n--- Phase 3: Resolution (charlie settles) ---")
	if err := w.registry.Transfer(ctx, lenderID, claimID, debtorID); err != nil {
		return err
	}
	if err := w.registry.Approve(ctx, debtorID, claimID, scriptID); err != nil {
		return err
	}
	if err := w.registry.BurnClaim(ctx, scriptID, claimID); err != nil {
		return err
	}
	if err := w.ledger.ReleaseStake(ctx, "loan-2"); err != nil {
		return err
	}
	fmt.Fprintf(out, "Debt settled. %s delinquent=%v staked=%d\n",
		debtorID, w.ledger.IsDelinquent(debtorID), w.ledger.StakedOf(debtorID))

	if err := w.log.Verify(); err != nil {
		return fmt.Errorf("audit chain broken: %w", err)
	}
	fmt.Fprintf(out, "\nAudit log verified: %d events.\n", w.log.Len())
	printMetrics(ctx, w, out)
	fmt.Fprintln(out, "--- SIMULATION COMPLETE ---")
	return nil
}

func printMetrics(ctx context.Context, w *world, out io.Writer) {
	var rm metricdata.ResourceMetrics
	if err := w.reader.Collect(ctx, &rm); err != nil {
		return
	}
	fmt.Fprintln(out, "Metrics:")
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				var total int64
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
				fmt.Fprintf(out, "  %s = %d\n", m.Name, total)
			}
		}
	}
}

func saveSnapshot(ctx context.Context, cfg *config.Config, w *world) error {
	db, err := sql.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	st := store.NewSQLStore(db)
	if err := st.Init(ctx); err != nil {
		return err
	}
	return st.SaveSnapshot(ctx, store.Snapshot{
		ProtocolFee: w.engine.ProtocolFee(),
		Actions:     w.engine.Actions(),
		Promises:    w.engine.Promises(),
		Stakes:      w.ledger.Stakes(),
		Records:     w.ledger.Records(),
		Claims:      w.registry.Outstanding(),
	})
}
