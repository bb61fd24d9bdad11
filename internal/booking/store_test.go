package booking

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// savepointTx fails every insert with a fk violation, the way Postgres
// rejects a stale actor reference. Rollback must be observed before the
// outer querier sees the retry.
type savepointTx struct {
	pgx.Tx
	execs      int
	rolledBack bool
}

func (t *savepointTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	t.execs++
	return pgconn.CommandTag{}, &pgconn.PgError{Code: fkViolation}
}

func (t *savepointTx) Rollback(context.Context) error {
	t.rolledBack = true
	return nil
}

func (t *savepointTx) Commit(context.Context) error { return nil }

// outerTx stands in for the caller's transaction. It hands out the nested
// savepointTx and records what the retry inserts directly on it.
type outerTx struct {
	nested *savepointTx
	actors []pgtype.UUID
}

func (q *outerTx) Begin(context.Context) (pgx.Tx, error) { return q.nested, nil }

func (q *outerTx) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	q.actors = append(q.actors, args[8].(pgtype.UUID))
	return pgconn.CommandTag{}, nil
}

func (q *outerTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("unexpected query")
}

func (q *outerTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("unexpected query row")
}

func TestInsertStatusHistoryStaleActorRetriesOutsideAbortedScope(t *testing.T) {
	actor := uuid.New()
	tx := &outerTx{nested: &savepointTx{}}

	err := Store{}.InsertStatusHistory(context.Background(), tx, StatusHistoryEntry{
		BookingID:   uuid.New(),
		Action:      ActionItemEdit,
		ActorUserID: &actor,
	})
	if err != nil {
		t.Fatalf("retry with null actor should succeed, got %v", err)
	}
	if tx.nested.execs != 1 {
		t.Fatalf("first attempt must run in the nested transaction, got %d execs", tx.nested.execs)
	}
	if !tx.nested.rolledBack {
		t.Fatal("nested transaction must be rolled back after the fk violation")
	}
	if len(tx.actors) != 1 {
		t.Fatalf("retry must insert directly on the caller's transaction, got %d inserts", len(tx.actors))
	}
	if tx.actors[0].Valid {
		t.Fatal("retry must insert a null actor")
	}
}

func TestInsertStatusHistoryKnownActorCommitsNested(t *testing.T) {
	okTx := &commitTx{}
	actor := uuid.New()
	err := Store{}.InsertStatusHistory(context.Background(), &outerCommit{nested: okTx}, StatusHistoryEntry{
		BookingID:   uuid.New(),
		Action:      ActionItemAdd,
		ActorUserID: &actor,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !okTx.committed {
		t.Fatal("successful insert must commit the nested transaction")
	}
}

type commitTx struct {
	pgx.Tx
	committed bool
}

func (t *commitTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *commitTx) Rollback(context.Context) error { return nil }

func (t *commitTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

type outerCommit struct {
	nested *commitTx
}

func (q *outerCommit) Begin(context.Context) (pgx.Tx, error) { return q.nested, nil }

func (q *outerCommit) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("retry must not run after a successful insert")
}

func (q *outerCommit) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("unexpected query")
}

func (q *outerCommit) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("unexpected query row")
}
