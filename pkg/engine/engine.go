// Package engine implements the promise engine: the single gateway through
// which all tracked economic activity passes. Every primitive requires an
// action opened by the fee-gated CreateAction, and every later call on that
// action must come from the orchestrator that opened it. There is no way to
// record a promise, move value, or resolve an obligation without paying the
// protocol fee first.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rain-protocol/rain/core/pkg/assets"
	"github.com/rain-protocol/rain/core/pkg/audit"
	"github.com/rain-protocol/rain/core/pkg/ledgererr"
	"github.com/rain-protocol/rain/core/pkg/roles"
	"github.com/rain-protocol/rain/core/pkg/telemetry"
)

// Status is a promise's lifecycle state.
type Status uint8

const (
	StatusPending Status = iota
	StatusFulfilled
	StatusDefaulted
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusFulfilled:
		return "FULFILLED"
	case StatusDefaulted:
		return "DEFAULTED"
	default:
		return fmt.Sprintf("STATUS(%d)", uint8(s))
	}
}

// Action is one fee-paid session. Immutable after creation.
type Action struct {
	ID           uint64 `json:"id"`
	Initiator    string `json:"initiator"`
	Orchestrator string `json:"orchestrator"`
}

// Promise is one obligation scoped to an action.
type Promise struct {
	ID       uint64    `json:"id"`
	ActionID uint64    `json:"action_id"`
	Promisor string    `json:"promisor"`
	Promisee string    `json:"promisee"`
	Asset    string    `json:"asset"`
	Amount   int64     `json:"amount"`
	Deadline time.Time `json:"deadline"`
	Status   Status    `json:"status"`
}

// Engine is the promise engine. All state transitions happen atomically
// under its mutex; the fee transfer runs before any state is written, so a
// failed transfer leaves no action record behind.
type Engine struct {
	mu            sync.RWMutex
	nextActionID  uint64
	nextPromiseID uint64
	actions       map[uint64]Action
	promises      map[uint64]*Promise
	fee           int64

	feeAsset   string
	treasury   string
	transferer assets.Transferer
	roles      *roles.Table
	log        *audit.Log
	clock      func() time.Time
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects the time source used for deadline checks.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithMetrics attaches telemetry.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an Engine charging fee of feeAsset into treasury.
func New(table *roles.Table, transferer assets.Transferer, log *audit.Log, feeAsset, treasury string, fee int64, opts ...Option) *Engine {
	e := &Engine{
		actions:    make(map[uint64]Action),
		promises:   make(map[uint64]*Promise),
		fee:        fee,
		feeAsset:   feeAsset,
		treasury:   treasury,
		transferer: transferer,
		roles:      table,
		log:        log,
		clock:      time.Now,
		logger:     slog.Default().With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProtocolFee returns the current per-action fee.
func (e *Engine) ProtocolFee() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fee
}

// SetProtocolFee updates the per-action fee. Admin only; the fee must stay
// positive so every session remains paid.
func (e *Engine) SetProtocolFee(ctx context.Context, caller string, fee int64) error {
	if err := e.roles.Require(roles.RoleAdmin, caller); err != nil {
		return err
	}
	if fee <= 0 {
		return fmt.Errorf("engine: set fee: %w", ledgererr.ErrInvalidAmount)
	}

	e.mu.Lock()
	e.fee = fee
	e.mu.Unlock()

	_, err := e.log.Append(ctx, audit.EventFeeUpdated, caller, 0, map[string]any{"new_fee": fee})
	return err
}

// CreateAction opens a fee-paid session for initiator. The caller must hold
// the session-creator role and becomes the action's orchestrator. The fee is
// pulled from the initiator's balance into the treasury before any record is
// written; a failed transfer creates nothing.
func (e *Engine) CreateAction(ctx context.Context, caller, initiator string) (uint64, error) {
	if err := e.roles.Require(roles.RoleSessionCreator, caller); err != nil {
		return 0, err
	}

	fee := e.ProtocolFee()
	if err := e.transferer.TransferFrom(ctx, e.feeAsset, initiator, e.treasury, fee); err != nil {
		return 0, fmt.Errorf("engine: %w: %v", ledgererr.ErrFeeTransferFailed, err)
	}

	e.mu.Lock()
	e.nextActionID++
	id := e.nextActionID
	e.actions[id] = Action{ID: id, Initiator: initiator, Orchestrator: caller}
	e.mu.Unlock()

	e.metrics.RecordAction(ctx, fee)
	e.logger.Info("action created", "action_id", id, "initiator", initiator, "orchestrator", caller)
	_, err := e.log.Append(ctx, audit.EventActionCreated, caller, id, map[string]any{
		"initiator": initiator, "fee": fee,
	})
	return id, err
}

// CreatePromise records a pending obligation inside an action. Only the
// action's orchestrator may call.
func (e *Engine) CreatePromise(ctx context.Context, caller string, actionID uint64, promisor, promisee, asset string, amount int64, deadline time.Time) (uint64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("engine: create promise: %w", ledgererr.ErrInvalidAmount)
	}

	e.mu.Lock()
	if err := e.sessionCheck(caller, actionID); err != nil {
		e.mu.Unlock()
		return 0, err
	}
	e.nextPromiseID++
	id := e.nextPromiseID
	e.promises[id] = &Promise{
		ID:       id,
		ActionID: actionID,
		Promisor: promisor,
		Promisee: promisee,
		Asset:    asset,
		Amount:   amount,
		Deadline: deadline,
		Status:   StatusPending,
	}
	e.mu.Unlock()

	e.metrics.RecordPromiseCreated(ctx)
	_, err := e.log.Append(ctx, audit.EventPromiseCreated, caller, actionID, map[string]any{
		"promise_id": id, "promisor": promisor, "promisee": promisee,
		"asset": asset, "amount": amount, "deadline": deadline.UTC().Format(time.RFC3339),
	})
	return id, err
}

// TransferValue moves fungible value inside a tracked session and logs it
// tagged with the action id, so the off-chain oracle can correlate transfers
// to promises without trusting the orchestrator's own bookkeeping.
func (e *Engine) TransferValue(ctx context.Context, caller string, actionID uint64, asset, from, to string, amount int64) error {
	e.mu.RLock()
	err := e.sessionCheck(caller, actionID)
	e.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := e.transferer.TransferFrom(ctx, asset, from, to, amount); err != nil {
		return fmt.Errorf("engine: %w: %v", ledgererr.ErrTransferFailed, err)
	}

	_, err = e.log.Append(ctx, audit.EventValueTransferred, caller, actionID, map[string]any{
		"asset": asset, "from": from, "to": to, "amount": amount,
	})
	return err
}

// TransferNFT moves a non-fungible token inside a tracked session. Logged
// with amount 1 by convention.
func (e *Engine) TransferNFT(ctx context.Context, caller string, actionID uint64, asset, from, to string, tokenID int64) error {
	e.mu.RLock()
	err := e.sessionCheck(caller, actionID)
	e.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := e.transferer.TransferNFTFrom(ctx, asset, from, to, tokenID); err != nil {
		return fmt.Errorf("engine: %w: %v", ledgererr.ErrTransferFailed, err)
	}

	_, err = e.log.Append(ctx, audit.EventValueTransferred, caller, actionID, map[string]any{
		"asset": asset, "from": from, "to": to, "amount": int64(1), "token_id": tokenID,
	})
	return err
}

// FulfillPromise marks a pending promise fulfilled. Requires the session's
// orchestrator, a pending status, and now <= deadline (fulfilling at exactly
// the deadline succeeds).
func (e *Engine) FulfillPromise(ctx context.Context, caller string, promiseID uint64) error {
	e.mu.Lock()
	p, ok := e.promises[promiseID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("engine: promise %d: %w", promiseID, ledgererr.ErrNotFound)
	}
	if err := e.sessionCheck(caller, p.ActionID); err != nil {
		e.mu.Unlock()
		return err
	}
	if p.Status != StatusPending {
		e.mu.Unlock()
		return fmt.Errorf("engine: promise %d is %s: %w", promiseID, p.Status, ledgererr.ErrInvalidState)
	}
	if e.clock().After(p.Deadline) {
		e.mu.Unlock()
		return fmt.Errorf("engine: promise %d: %w", promiseID, ledgererr.ErrDeadlineExceeded)
	}
	p.Status = StatusFulfilled
	actionID := p.ActionID
	e.mu.Unlock()

	e.metrics.RecordPromiseResolved(ctx, "fulfilled")
	_, err := e.log.Append(ctx, audit.EventPromiseFulfilled, caller, actionID, map[string]any{
		"promise_id": promiseID, "promisor": p.Promisor, "promisee": p.Promisee, "amount": p.Amount,
	})
	return err
}

// DefaultPromise marks a pending promise defaulted. Requires the session's
// orchestrator, a pending status, and now strictly after the deadline.
func (e *Engine) DefaultPromise(ctx context.Context, caller string, promiseID uint64) error {
	e.mu.Lock()
	p, ok := e.promises[promiseID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("engine: promise %d: %w", promiseID, ledgererr.ErrNotFound)
	}
	if err := e.sessionCheck(caller, p.ActionID); err != nil {
		e.mu.Unlock()
		return err
	}
	if p.Status != StatusPending {
		e.mu.Unlock()
		return fmt.Errorf("engine: promise %d is %s: %w", promiseID, p.Status, ledgererr.ErrInvalidState)
	}
	if !e.clock().After(p.Deadline) {
		e.mu.Unlock()
		return fmt.Errorf("engine: promise %d: %w", promiseID, ledgererr.ErrDeadlineNotReached)
	}
	p.Status = StatusDefaulted
	actionID := p.ActionID
	e.mu.Unlock()

	e.metrics.RecordPromiseResolved(ctx, "defaulted")
	e.logger.Warn("promise defaulted", "promise_id", promiseID, "promisor", p.Promisor)
	_, err := e.log.Append(ctx, audit.EventPromiseDefaulted, caller, actionID, map[string]any{
		"promise_id": promiseID, "promisor": p.Promisor, "promisee": p.Promisee, "amount": p.Amount,
	})
	return err
}

// sessionCheck enforces referential integrity: the action must exist and the
// caller must be the orchestrator that created it. Callers hold e.mu.
func (e *Engine) sessionCheck(caller string, actionID uint64) error {
	action, ok := e.actions[actionID]
	if !ok {
		return fmt.Errorf("engine: action %d: %w", actionID, ledgererr.ErrNotFound)
	}
	if action.Orchestrator != caller {
		return fmt.Errorf("engine: action %d: %w", actionID, ledgererr.ErrSessionOwnership)
	}
	return nil
}
