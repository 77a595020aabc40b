// Package reputation implements the per-identity reputation ledger: scores,
// purpose-keyed stakes, clamped slashing, and the delinquency lock. All
// mutation goes through Ledger methods; the ledger's mutex is the single
// serialization point for score/stake state.
package reputation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rain-protocol/rain/core/pkg/audit"
	"github.com/rain-protocol/rain/core/pkg/ledgererr"
	"github.com/rain-protocol/rain/core/pkg/roles"
	"github.com/rain-protocol/rain/core/pkg/telemetry"
)

// Stake is a lock on part of an identity's reputation, keyed by purpose.
// It is never deleted; release flips Released exactly once.
type Stake struct {
	PurposeID string `json:"purpose_id"`
	User      string `json:"user"`
	Amount    int64  `json:"amount"`
	Released  bool   `json:"released"`
}

// Record is the per-identity aggregate exposed by read views.
type Record struct {
	Score       int64 `json:"score"`
	TotalStaked int64 `json:"total_staked"`
	Delinquent  bool  `json:"delinquent"`
}

// Delta is one updater instruction.
type Delta struct {
	User   string `json:"user"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// Ledger holds reputation state for all identities. Identities exist
// implicitly the first time they are referenced.
type Ledger struct {
	mu         sync.RWMutex
	scores     map[string]int64
	staked     map[string]int64
	delinquent map[string]bool
	stakes     map[string]*Stake
	total      int64

	roles   *roles.Table
	log     *audit.Log
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithMetrics attaches telemetry.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// NewLedger creates an empty Ledger gated by table and logging to log.
func NewLedger(table *roles.Table, log *audit.Log, opts ...Option) *Ledger {
	l := &Ledger{
		scores:     make(map[string]int64),
		staked:     make(map[string]int64),
		delinquent: make(map[string]bool),
		stakes:     make(map[string]*Stake),
		roles:      table,
		log:        log,
		logger:     slog.Default().With("component", "reputation"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Grant mints initial reputation for user. Admin only.
func (l *Ledger) Grant(ctx context.Context, caller, user string, amount int64) error {
	if err := l.roles.Require(roles.RoleAdmin, caller); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("reputation: grant: %w", ledgererr.ErrInvalidAmount)
	}

	l.mu.Lock()
	l.scores[user] += amount
	l.total += amount
	newScore := l.scores[user]
	l.mu.Unlock()

	_, err := l.log.Append(ctx, audit.EventReputationGranted, caller, 0, map[string]any{
		"user": user, "amount": amount, "new_score": newScore,
	})
	return err
}

// Increase adds amount to user's score. Updater role only; fails hard while
// the user is delinquent.
func (l *Ledger) Increase(ctx context.Context, caller, user string, amount int64, reason string) error {
	if err := l.roles.Require(roles.RoleUpdater, caller); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("reputation: increase: %w", ledgererr.ErrInvalidAmount)
	}

	l.mu.Lock()
	if l.delinquent[user] {
		l.mu.Unlock()
		return fmt.Errorf("reputation: increase %s: %w", user, ledgererr.ErrDelinquentUser)
	}
	l.scores[user] += amount
	l.total += amount
	newScore := l.scores[user]
	l.mu.Unlock()

	_, err := l.log.Append(ctx, audit.EventReputationIncreased, caller, 0, map[string]any{
		"user": user, "amount": amount, "new_score": newScore, "reason": reason,
	})
	return err
}

// Decrease removes up to amount from user's score, flooring at zero. The
// returned value is the actual decrease, which is also what gets logged.
func (l *Ledger) Decrease(ctx context.Context, caller, user string, amount int64, reason string) (int64, error) {
	if err := l.roles.Require(roles.RoleUpdater, caller); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, fmt.Errorf("reputation: decrease: %w", ledgererr.ErrInvalidAmount)
	}

	l.mu.Lock()
	actual := min(amount, l.scores[user])
	l.scores[user] -= actual
	l.total -= actual
	if l.staked[user] > l.scores[user] {
		l.staked[user] = l.scores[user]
	}
	newScore := l.scores[user]
	l.mu.Unlock()

	_, err := l.log.Append(ctx, audit.EventReputationDecreased, caller, 0, map[string]any{
		"user": user, "requested": amount, "actual": actual, "new_score": newScore, "reason": reason,
	})
	return actual, err
}

// Slash is the penalty path after a confirmed default. It reduces score by
// min(amount, score) and pulls totalStaked down in lockstep so that
// totalStaked <= score keeps holding. Updater role only.
func (l *Ledger) Slash(ctx context.Context, caller, user string, amount int64) (int64, error) {
	if err := l.roles.Require(roles.RoleUpdater, caller); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, fmt.Errorf("reputation: slash: %w", ledgererr.ErrInvalidAmount)
	}

	l.mu.Lock()
	actual := min(amount, l.scores[user])
	l.scores[user] -= actual
	l.total -= actual
	if l.staked[user] > l.scores[user] {
		l.staked[user] = l.scores[user]
	}
	newScore := l.scores[user]
	l.mu.Unlock()

	l.metrics.RecordSlash(ctx, actual)
	l.logger.Info("slashed", "user", user, "requested", amount, "actual", actual)
	_, err := l.log.Append(ctx, audit.EventReputationSlashed, caller, 0, map[string]any{
		"user": user, "requested": amount, "actual": actual, "new_score": newScore,
	})
	return actual, err
}

// Stake locks amount of user's reputation for purposeID. Permissionless:
// safety comes from purpose uniqueness, not caller identity. A purpose id is
// usable exactly once, even after release.
func (l *Ledger) Stake(ctx context.Context, user string, amount int64, purposeID string) error {
	if amount <= 0 {
		return fmt.Errorf("reputation: stake: %w", ledgererr.ErrInvalidAmount)
	}

	l.mu.Lock()
	if _, exists := l.stakes[purposeID]; exists {
		l.mu.Unlock()
		return fmt.Errorf("reputation: stake %q: %w", purposeID, ledgererr.ErrDuplicateStake)
	}
	liquid := l.scores[user] - l.staked[user]
	if amount > liquid {
		l.mu.Unlock()
		return fmt.Errorf("reputation: stake %d > liquid %d: %w",
			amount, liquid, ledgererr.ErrInsufficientLiquidReputation)
	}
	l.stakes[purposeID] = &Stake{PurposeID: purposeID, User: user, Amount: amount}
	l.staked[user] += amount
	l.mu.Unlock()

	l.metrics.RecordStakeDelta(ctx, amount)
	_, err := l.log.Append(ctx, audit.EventReputationStaked, user, 0, map[string]any{
		"user": user, "amount": amount, "purpose_id": purposeID,
	})
	return err
}

// ReleaseStake releases the stake for purposeID exactly once. Permissionless;
// whoever calls it asserts the purpose is resolved.
func (l *Ledger) ReleaseStake(ctx context.Context, purposeID string) error {
	l.mu.Lock()
	stake, ok := l.stakes[purposeID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("reputation: stake %q: %w", purposeID, ledgererr.ErrNotFound)
	}
	if stake.Released {
		l.mu.Unlock()
		return fmt.Errorf("reputation: stake %q: %w", purposeID, ledgererr.ErrAlreadyReleased)
	}
	stake.Released = true
	// A slash may have already reconciled staked below the stake amount.
	l.staked[stake.User] = max(0, l.staked[stake.User]-stake.Amount)
	l.mu.Unlock()

	l.metrics.RecordStakeDelta(ctx, -stake.Amount)
	_, err := l.log.Append(ctx, audit.EventStakeReleased, stake.User, 0, map[string]any{
		"user": stake.User, "amount": stake.Amount, "purpose_id": purposeID,
	})
	return err
}

// SetDelinquent toggles the delinquency lock. Callable only by the debt claim
// registry, which holds the registry role.
func (l *Ledger) SetDelinquent(ctx context.Context, caller, user string, delinquent bool) error {
	if err := l.roles.Require(roles.RoleRegistry, caller); err != nil {
		return err
	}

	l.mu.Lock()
	l.delinquent[user] = delinquent
	l.mu.Unlock()

	_, err := l.log.Append(ctx, audit.EventDelinquencySet, caller, 0, map[string]any{
		"user": user, "delinquent": delinquent,
	})
	return err
}

// ApplyBatch applies increases, then decreases, then slashes as one atomic
// step: the batch is validated first and nothing is applied unless every
// instruction can succeed. This is the transactional boundary the trusted
// updater forwards into.
func (l *Ledger) ApplyBatch(ctx context.Context, caller string, increases, decreases, slashes []Delta) error {
	if err := l.roles.Require(roles.RoleUpdater, caller); err != nil {
		return err
	}

	l.mu.Lock()
	for _, d := range increases {
		if d.Amount <= 0 {
			l.mu.Unlock()
			return fmt.Errorf("reputation: batch increase %s: %w", d.User, ledgererr.ErrInvalidAmount)
		}
		if l.delinquent[d.User] {
			l.mu.Unlock()
			return fmt.Errorf("reputation: batch increase %s: %w", d.User, ledgererr.ErrDelinquentUser)
		}
	}
	for _, d := range decreases {
		if d.Amount <= 0 {
			l.mu.Unlock()
			return fmt.Errorf("reputation: batch decrease %s: %w", d.User, ledgererr.ErrInvalidAmount)
		}
	}
	for _, d := range slashes {
		if d.Amount <= 0 {
			l.mu.Unlock()
			return fmt.Errorf("reputation: batch slash %s: %w", d.User, ledgererr.ErrInvalidAmount)
		}
	}

	type applied struct {
		typ    audit.EventType
		user   string
		amount int64
		actual int64
		reason string
	}
	var results []applied

	for _, d := range increases {
		l.scores[d.User] += d.Amount
		l.total += d.Amount
		results = append(results, applied{audit.EventReputationIncreased, d.User, d.Amount, d.Amount, d.Reason})
	}
	for _, d := range decreases {
		actual := min(d.Amount, l.scores[d.User])
		l.scores[d.User] -= actual
		l.total -= actual
		if l.staked[d.User] > l.scores[d.User] {
			l.staked[d.User] = l.scores[d.User]
		}
		results = append(results, applied{audit.EventReputationDecreased, d.User, d.Amount, actual, d.Reason})
	}
	for _, d := range slashes {
		actual := min(d.Amount, l.scores[d.User])
		l.scores[d.User] -= actual
		l.total -= actual
		if l.staked[d.User] > l.scores[d.User] {
			l.staked[d.User] = l.scores[d.User]
		}
		results = append(results, applied{audit.EventReputationSlashed, d.User, d.Amount, actual, d.Reason})
	}
	l.mu.Unlock()

	for _, r := range results {
		if r.typ == audit.EventReputationSlashed {
			l.metrics.RecordSlash(ctx, r.actual)
		}
		_, err := l.log.Append(ctx, r.typ, caller, 0, map[string]any{
			"user": r.user, "requested": r.amount, "actual": r.actual, "reason": r.reason,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
