// Package oracle is the off-chain supervisor that watches the audit log and
// turns promise outcomes into reputation batches. It never writes the ledger
// itself; it signs envelopes for the updater relay.
package oracle

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rain-protocol/rain/core/pkg/audit"
	"github.com/rain-protocol/rain/core/pkg/reputation"
	"github.com/rain-protocol/rain/core/pkg/updater"
)

// ErrExploitablePolicy means the reward schedule makes self-dealing
// profitable: an orchestrator could pay the action fee, fulfill a promise to
// itself, and come out ahead in reputation per unit cost.
var ErrExploitablePolicy = errors.New("oracle: reward must stay below the action fee")

// Policy is the reward schedule applied to promise outcomes.
type Policy struct {
	RewardPerFulfillment int64
	PenaltyPerDefault    int64
}

// Validate checks the schedule against the protocol fee. The fee is the
// cheapest way to manufacture a fulfillable promise, so the reward for one
// fulfillment must be strictly below it.
func (p Policy) Validate(fee int64) error {
	if p.RewardPerFulfillment <= 0 || p.PenaltyPerDefault <= 0 {
		return errors.New("oracle: policy amounts must be positive")
	}
	if p.RewardPerFulfillment >= fee {
		return fmt.Errorf("%w (reward %d, fee %d)", ErrExploitablePolicy, p.RewardPerFulfillment, fee)
	}
	return nil
}

// DelinquencyChecker is the read-only view the supervisor needs of the
// reputation ledger's delinquency flags.
type DelinquencyChecker interface {
	IsDelinquent(user string) bool
}

// Supervisor scans the audit log and emits signed reputation batches.
type Supervisor struct {
	policy      Policy
	log         *audit.Log
	signer      *updater.Signer
	delinquency DelinquencyChecker
	lastSeq     uint64
	logger      *slog.Logger
}

// NewSupervisor creates a Supervisor starting at the head of log.
func NewSupervisor(policy Policy, log *audit.Log, signer *updater.Signer, delinquency DelinquencyChecker) *Supervisor {
	return &Supervisor{
		policy:      policy,
		log:         log,
		signer:      signer,
		delinquency: delinquency,
		logger:      slog.Default().With("component", "oracle"),
	}
}

// Scan reads log events past the last scanned sequence, folds promise
// outcomes into per-user deltas, and returns a signed envelope. ok is false
// when the scan found nothing actionable; the cursor still advances.
func (s *Supervisor) Scan() (envelope string, ok bool, err error) {
	if err := s.log.Verify(); err != nil {
		return "", false, fmt.Errorf("oracle: refusing tampered log: %w", err)
	}

	events := s.log.EventsSince(s.lastSeq)
	if len(events) == 0 {
		return "", false, nil
	}

	rewards := make(map[string]int64)
	penalties := make(map[string]int64)
	seen := make(map[string]struct{})
	var order []string

	for _, ev := range events {
		promisor, _ := ev.Fields["promisor"].(string)
		if promisor == "" {
			continue
		}
		switch ev.Type {
		case audit.EventPromiseFulfilled:
			rewards[promisor] += s.policy.RewardPerFulfillment
		case audit.EventPromiseDefaulted:
			penalties[promisor] += s.policy.PenaltyPerDefault
		default:
			continue
		}
		if _, ok := seen[promisor]; !ok {
			seen[promisor] = struct{}{}
			order = append(order, promisor)
		}
	}
	s.lastSeq = events[len(events)-1].Seq

	batch := updater.Batch{ID: uuid.NewString()}
	for _, user := range order {
		if amt := rewards[user]; amt > 0 {
			// The ledger rejects increases for delinquent users, and a batch
			// applies all-or-nothing. Withholding the reward here keeps one
			// delinquent promisor from voiding everyone else's window.
			if s.delinquency.IsDelinquent(user) {
				s.logger.Warn("withholding reward for delinquent user", "user", user, "amount", amt)
			} else {
				batch.Increases = append(batch.Increases, reputation.Delta{
					User: user, Amount: amt, Reason: "promises fulfilled",
				})
			}
		}
		if amt := penalties[user]; amt > 0 {
			batch.Slashes = append(batch.Slashes, reputation.Delta{
				User: user, Amount: amt, Reason: "promises defaulted",
			})
		}
	}
	if len(batch.Increases) == 0 && len(batch.Slashes) == 0 {
		return "", false, nil
	}

	envelope, err = s.signer.Sign(batch)
	if err != nil {
		return "", false, err
	}
	s.logger.Info("batch signed", "batch_id", batch.ID,
		"rewarded", len(batch.Increases), "slashed", len(batch.Slashes))
	return envelope, true, nil
}
