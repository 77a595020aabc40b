// Package store persists ledger snapshots to SQL. The in-memory components
// remain the source of truth at runtime; the store writes whole-state
// snapshots transactionally and loads them at startup. Placeholders are $N,
// which both PostgreSQL and SQLite accept, so the same statements run
// against lib/pq and modernc.org/sqlite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/rain-protocol/rain/core/pkg/claims"
	"github.com/rain-protocol/rain/core/pkg/engine"
	"github.com/rain-protocol/rain/core/pkg/reputation"
)

// Snapshot is the full persistable state of the ledger.
type Snapshot struct {
	ProtocolFee int64
	Actions     []engine.Action
	Promises    []engine.Promise
	Stakes      []reputation.Stake
	Records     map[string]reputation.Record
	Claims      []claims.OwnedClaim
}

// SQLStore writes snapshots to a SQL database.
type SQLStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLStore wraps db. Call Init before first use.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, logger: slog.Default().With("component", "store")}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS actions (
		id BIGINT PRIMARY KEY,
		initiator TEXT NOT NULL,
		orchestrator TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS promises (
		id BIGINT PRIMARY KEY,
		action_id BIGINT NOT NULL,
		promisor TEXT NOT NULL,
		promisee TEXT NOT NULL,
		asset TEXT NOT NULL,
		amount BIGINT NOT NULL,
		deadline TIMESTAMP NOT NULL,
		status SMALLINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stakes (
		purpose_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount BIGINT NOT NULL,
		released BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reputation_records (
		user_id TEXT PRIMARY KEY,
		score BIGINT NOT NULL,
		total_staked BIGINT NOT NULL,
		delinquent BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS debt_claims (
		id BIGINT PRIMARY KEY,
		promise_id BIGINT NOT NULL,
		defaulter TEXT NOT NULL,
		original_creditor TEXT NOT NULL,
		owner TEXT NOT NULL,
		shortfall BIGINT NOT NULL,
		default_ts TIMESTAMP NOT NULL,
		witness TEXT NOT NULL
	)`,
}

// Init creates the schema if missing.
func (s *SQLStore) Init(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: init: %w", err)
		}
	}
	return nil
}

// SaveSnapshot replaces the persisted state with snap in one transaction.
func (s *SQLStore) SaveSnapshot(ctx context.Context, snap Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"meta", "actions", "promises", "stakes", "reputation_records", "debt_claims"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("store: clear %s: %w", table, err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ($1, $2)`, "protocol_fee", snap.ProtocolFee); err != nil {
		return fmt.Errorf("store: save fee: %w", err)
	}
	for _, a := range snap.Actions {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO actions (id, initiator, orchestrator) VALUES ($1, $2, $3)`,
			a.ID, a.Initiator, a.Orchestrator); err != nil {
			return fmt.Errorf("store: save action %d: %w", a.ID, err)
		}
	}
	for _, p := range snap.Promises {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO promises (id, action_id, promisor, promisee, asset, amount, deadline, status) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, p.ActionID, p.Promisor, p.Promisee, p.Asset, p.Amount, p.Deadline.UTC(), uint8(p.Status)); err != nil {
			return fmt.Errorf("store: save promise %d: %w", p.ID, err)
		}
	}
	for _, st := range snap.Stakes {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO stakes (purpose_id, user_id, amount, released) VALUES ($1, $2, $3, $4)`,
			st.PurposeID, st.User, st.Amount, st.Released); err != nil {
			return fmt.Errorf("store: save stake %s: %w", st.PurposeID, err)
		}
	}
	for user, rec := range snap.Records {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO reputation_records (user_id, score, total_staked, delinquent) VALUES ($1, $2, $3, $4)`,
			user, rec.Score, rec.TotalStaked, rec.Delinquent); err != nil {
			return fmt.Errorf("store: save record %s: %w", user, err)
		}
	}
	for _, c := range snap.Claims {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO debt_claims (id, promise_id, defaulter, original_creditor, owner, shortfall, default_ts, witness) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.PromiseID, c.Defaulter, c.OriginalCreditor, c.Owner, c.ShortfallAmount, c.DefaultTimestamp.UTC(), c.Witness); err != nil {
			return fmt.Errorf("store: save claim %d: %w", c.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	s.logger.Info("snapshot saved",
		"actions", len(snap.Actions), "promises", len(snap.Promises),
		"stakes", len(snap.Stakes), "records", len(snap.Records), "claims", len(snap.Claims))
	return nil
}

// LoadSnapshot reads the persisted state.
func (s *SQLStore) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Records: make(map[string]reputation.Record)}

	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = $1`, "protocol_fee").Scan(&snap.ProtocolFee)
	if err != nil && err != sql.ErrNoRows {
		return Snapshot{}, fmt.Errorf("store: load fee: %w", err)
	}

	err = s.queryEach(ctx, `SELECT id, initiator, orchestrator FROM actions ORDER BY id`,
		func(rows *sql.Rows) error {
			var a engine.Action
			if err := rows.Scan(&a.ID, &a.Initiator, &a.Orchestrator); err != nil {
				return err
			}
			snap.Actions = append(snap.Actions, a)
			return nil
		})
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: load actions: %w", err)
	}

	err = s.queryEach(ctx, `SELECT id, action_id, promisor, promisee, asset, amount, deadline, status FROM promises ORDER BY id`,
		func(rows *sql.Rows) error {
			var p engine.Promise
			var deadline time.Time
			var status uint8
			if err := rows.Scan(&p.ID, &p.ActionID, &p.Promisor, &p.Promisee, &p.Asset, &p.Amount, &deadline, &status); err != nil {
				return err
			}
			p.Deadline = deadline.UTC()
			p.Status = engine.Status(status)
			snap.Promises = append(snap.Promises, p)
			return nil
		})
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: load promises: %w", err)
	}

	err = s.queryEach(ctx, `SELECT purpose_id, user_id, amount, released FROM stakes`,
		func(rows *sql.Rows) error {
			var st reputation.Stake
			if err := rows.Scan(&st.PurposeID, &st.User, &st.Amount, &st.Released); err != nil {
				return err
			}
			snap.Stakes = append(snap.Stakes, st)
			return nil
		})
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: load stakes: %w", err)
	}

	err = s.queryEach(ctx, `SELECT user_id, score, total_staked, delinquent FROM reputation_records`,
		func(rows *sql.Rows) error {
			var user string
			var rec reputation.Record
			if err := rows.Scan(&user, &rec.Score, &rec.TotalStaked, &rec.Delinquent); err != nil {
				return err
			}
			snap.Records[user] = rec
			return nil
		})
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: load records: %w", err)
	}

	err = s.queryEach(ctx, `SELECT id, promise_id, defaulter, original_creditor, owner, shortfall, default_ts, witness FROM debt_claims ORDER BY id`,
		func(rows *sql.Rows) error {
			var c claims.OwnedClaim
			var ts time.Time
			if err := rows.Scan(&c.ID, &c.PromiseID, &c.Defaulter, &c.OriginalCreditor, &c.Owner, &c.ShortfallAmount, &ts, &c.Witness); err != nil {
				return err
			}
			c.DefaultTimestamp = ts.UTC()
			snap.Claims = append(snap.Claims, c)
			return nil
		})
	if err != nil {
		return Snapshot{}, fmt.Errorf("store: load claims: %w", err)
	}

	return snap, nil
}

func (s *SQLStore) queryEach(ctx context.Context, query string, scan func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
