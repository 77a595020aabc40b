package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rain-protocol/rain/core/pkg/claims"
	"github.com/rain-protocol/rain/core/pkg/engine"
	"github.com/rain-protocol/rain/core/pkg/reputation"
)

func TestInitCreatesSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for range schema {
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, NewSQLStore(db).Init(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSnapshotTransactional(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	deadline := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{
		ProtocolFee: 10,
		Actions:     []engine.Action{{ID: 1, Initiator: "bob", Orchestrator: "script-x"}},
		Promises: []engine.Promise{{
			ID: 1, ActionID: 1, Promisor: "bob", Promisee: "carol",
			Asset: "USDC", Amount: 100, Deadline: deadline, Status: engine.StatusFulfilled,
		}},
		Stakes:  []reputation.Stake{{PurposeID: "loan-1", User: "bob", Amount: 50}},
		Records: map[string]reputation.Record{"bob": {Score: 100, TotalStaked: 50}},
		Claims: []claims.OwnedClaim{{
			Claim: claims.Claim{
				ID: 1, PromiseID: 1, Defaulter: "bob", OriginalCreditor: "carol",
				ShortfallAmount: 100, DefaultTimestamp: deadline, Witness: "script-x",
			},
			Owner: "carol",
		}},
	}

	mock.ExpectBegin()
	for _, table := range []string{"meta", "actions", "promises", "stakes", "reputation_records", "debt_claims"} {
		mock.ExpectExec("DELETE FROM " + table).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO meta`)).
		WithArgs("protocol_fee", int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO actions`)).
		WithArgs(int64(1), "bob", "script-x").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO promises`)).
		WithArgs(int64(1), int64(1), "bob", "carol", "USDC", int64(100), deadline, int64(engine.StatusFulfilled)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO stakes`)).
		WithArgs("loan-1", "bob", int64(50), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO reputation_records`)).
		WithArgs("bob", int64(100), int64(50), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO debt_claims`)).
		WithArgs(int64(1), int64(1), "bob", "carol", "carol", int64(100), deadline, "script-x").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewSQLStore(db).SaveSnapshot(context.Background(), snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSnapshotRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM meta").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = NewSQLStore(db).SaveSnapshot(context.Background(), Snapshot{})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	deadline := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM meta`)).
		WithArgs("protocol_fee").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(10)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, initiator, orchestrator FROM actions`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "initiator", "orchestrator"}).
			AddRow(int64(1), "bob", "script-x"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, action_id, promisor, promisee, asset, amount, deadline, status FROM promises`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "action_id", "promisor", "promisee", "asset", "amount", "deadline", "status"}).
			AddRow(int64(1), int64(1), "bob", "carol", "USDC", int64(100), deadline, uint8(engine.StatusPending)))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT purpose_id, user_id, amount, released FROM stakes`)).
		WillReturnRows(sqlmock.NewRows([]string{"purpose_id", "user_id", "amount", "released"}).
			AddRow("loan-1", "bob", int64(50), true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id, score, total_staked, delinquent FROM reputation_records`)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "score", "total_staked", "delinquent"}).
			AddRow("bob", int64(100), int64(0), true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, promise_id, defaulter, original_creditor, owner, shortfall, default_ts, witness FROM debt_claims`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "promise_id", "defaulter", "original_creditor", "owner", "shortfall", "default_ts", "witness"}).
			AddRow(int64(1), int64(1), "bob", "carol", "dave", int64(100), deadline, "script-x"))

	snap, err := NewSQLStore(db).LoadSnapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(10), snap.ProtocolFee)
	require.Len(t, snap.Actions, 1)
	assert.Equal(t, "script-x", snap.Actions[0].Orchestrator)
	require.Len(t, snap.Promises, 1)
	assert.Equal(t, engine.StatusPending, snap.Promises[0].Status)
	require.Len(t, snap.Stakes, 1)
	assert.True(t, snap.Stakes[0].Released)
	assert.True(t, snap.Records["bob"].Delinquent)
	require.Len(t, snap.Claims, 1)
	assert.Equal(t, "dave", snap.Claims[0].Owner)
}

func TestLoadSnapshotEmptyDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM meta`)).
		WithArgs("protocol_fee").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, initiator, orchestrator FROM actions`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "initiator", "orchestrator"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, action_id`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "action_id", "promisor", "promisee", "asset", "amount", "deadline", "status"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT purpose_id`)).
		WillReturnRows(sqlmock.NewRows([]string{"purpose_id", "user_id", "amount", "released"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id, score`)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "score", "total_staked", "delinquent"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, promise_id`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "promise_id", "defaulter", "original_creditor", "owner", "shortfall", "default_ts", "witness"}))

	snap, err := NewSQLStore(db).LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.ProtocolFee)
	assert.Empty(t, snap.Actions)
	assert.Empty(t, snap.Claims)
}
