// Package audit implements the append-only event log every ledger operation
// writes to. Events are canonicalized (RFC 8785 JCS) and hash-chained, so an
// off-chain reader can verify that no event was inserted, removed, or altered
// after the fact. This log is what the reputation oracle replays.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
)

// EventType names a ledger occurrence.
type EventType string

const (
	EventActionCreated    EventType = "ACTION_CREATED"
	EventPromiseCreated   EventType = "PROMISE_CREATED"
	EventValueTransferred EventType = "VALUE_TRANSFERRED"
	EventPromiseFulfilled EventType = "PROMISE_FULFILLED"
	EventPromiseDefaulted EventType = "PROMISE_DEFAULTED"
	EventFeeUpdated       EventType = "FEE_UPDATED"

	EventReputationGranted   EventType = "REPUTATION_GRANTED"
	EventReputationIncreased EventType = "REPUTATION_INCREASED"
	EventReputationDecreased EventType = "REPUTATION_DECREASED"
	EventReputationSlashed   EventType = "REPUTATION_SLASHED"
	EventReputationStaked    EventType = "REPUTATION_STAKED"
	EventStakeReleased       EventType = "STAKE_RELEASED"
	EventDelinquencySet      EventType = "DELINQUENCY_SET"

	EventClaimMinted      EventType = "CLAIM_MINTED"
	EventClaimTransferred EventType = "CLAIM_TRANSFERRED"
	EventClaimBurned      EventType = "CLAIM_BURNED"
)

// Event is one immutable log record. ActionID is zero for events outside a
// session (reputation and claim events).
type Event struct {
	ID        string         `json:"id"`
	Seq       uint64         `json:"seq"`
	Type      EventType      `json:"type"`
	Actor     string         `json:"actor"`
	ActionID  uint64         `json:"action_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
	PrevHash  string         `json:"prev_hash"`
	Hash      string         `json:"hash"`
}

// Log is a thread-safe, hash-chained, append-only event log. An optional
// writer receives each event as a JSON line.
type Log struct {
	mu       sync.RWMutex
	events   []Event
	lastHash string
	clock    func() time.Time
	writer   io.Writer
	logger   *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithClock injects the time source. Defaults to time.Now.
func WithClock(clock func() time.Time) Option {
	return func(l *Log) { l.clock = clock }
}

// WithWriter mirrors appended events to w as JSON lines.
func WithWriter(w io.Writer) Option {
	return func(l *Log) { l.writer = w }
}

// NewLog creates an empty Log.
func NewLog(opts ...Option) *Log {
	l := &Log{
		clock:  time.Now,
		logger: slog.Default().With("component", "audit"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append records an event and returns it with its chain position and hash.
func (l *Log) Append(_ context.Context, typ EventType, actor string, actionID uint64, fields map[string]any) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := Event{
		ID:        uuid.New().String(),
		Seq:       uint64(len(l.events)) + 1,
		Type:      typ,
		Actor:     actor,
		ActionID:  actionID,
		Timestamp: l.clock().UTC(),
		Fields:    fields,
		PrevHash:  l.lastHash,
	}
	hash, err := hashEvent(ev)
	if err != nil {
		return Event{}, fmt.Errorf("audit: hash event: %w", err)
	}
	ev.Hash = hash

	l.events = append(l.events, ev)
	l.lastHash = hash

	// The in-memory chain is authoritative; a failed mirror write must not
	// fail the append, but it must not vanish either.
	if l.writer != nil {
		line, err := json.Marshal(ev)
		if err != nil {
			l.logger.Error("mirror marshal failed", "seq", ev.Seq, "error", err)
		} else if _, err := l.writer.Write(append(line, '\n')); err != nil {
			l.logger.Error("mirror write failed", "seq", ev.Seq, "error", err)
		}
	}
	return ev, nil
}

// Events returns a copy of the full log.
func (l *Log) Events() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// EventsSince returns events with Seq > seq, in order.
func (l *Log) EventsSince(seq uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq >= uint64(len(l.events)) {
		return nil
	}
	out := make([]Event, len(l.events)-int(seq))
	copy(out, l.events[seq:])
	return out
}

// EventsByAction returns every event tagged with actionID.
func (l *Log) EventsByAction(actionID uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for _, ev := range l.events {
		if ev.ActionID == actionID {
			out = append(out, ev)
		}
	}
	return out
}

// Len returns the number of events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Verify walks the chain and reports the first break, if any.
func (l *Log) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	prev := ""
	for i, ev := range l.events {
		if ev.PrevHash != prev {
			return fmt.Errorf("audit: event %d: prev hash mismatch", i+1)
		}
		want, err := hashEvent(ev)
		if err != nil {
			return fmt.Errorf("audit: event %d: %w", i+1, err)
		}
		if ev.Hash != want {
			return fmt.Errorf("audit: event %d: hash mismatch", i+1)
		}
		prev = ev.Hash
	}
	return nil
}

// hashEvent hashes the JCS canonical form of the event without its own Hash
// field, so the digest is stable regardless of map ordering.
func hashEvent(ev Event) (string, error) {
	ev.Hash = ""
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
