package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reflux/internal/ir"
	"github.com/roach88/reflux/internal/query"
)

func TestOpen_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	assert.Equal(t, path, j.Path())
	assert.False(t, j.InMemory())

	var mode string
	require.NoError(t, j.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var version int
	require.NoError(t, j.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_Memory(t *testing.T) {
	for _, path := range []string{"", MemoryPath} {
		j, err := Open(path)
		require.NoError(t, err)

		assert.True(t, j.InMemory())
		assert.Equal(t, MemoryPath, j.Path())

		n, err := j.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		require.NoError(t, j.Close())
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.Write(ctx, createTestRecord("d-1", "bump", 1)))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	last, err := j.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), last)
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestWrite_CanonicalJSON(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	rec := createTestRecord("d-1", "set_to", 1)
	rec.Action = ir.IRObject{"count": ir.IRInt(5), "by": ir.IRString("cli")}
	require.NoError(t, j.Write(ctx, rec))

	var action, after string
	err := j.db.QueryRow(`SELECT action, state_after FROM dispatches WHERE dispatch_id = ?`, "d-1").
		Scan(&action, &after)
	require.NoError(t, err)

	assert.Equal(t, `{"by":"cli","count":5}`, action)
	assert.Equal(t, `{"count":1}`, after)
}

func TestWrite_IdempotentOnDispatchID(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	rec := createTestRecord("d-1", "bump", 1)
	require.NoError(t, j.Write(ctx, rec))
	require.NoError(t, j.Write(ctx, rec))

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWrite_RejectsNullState(t *testing.T) {
	j := createTestJournal(t)

	rec := createTestRecord("d-1", "bump", 1)
	rec.After = nil

	err := j.Write(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state after")
}

func TestReadAll_OrderedBySeq(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Write(ctx, createTestRecord("d-3", "bump", 3)))
	require.NoError(t, j.Write(ctx, createTestRecord("d-1", "bump", 1)))
	require.NoError(t, j.Write(ctx, createTestRecord("d-2", "set_to", 2)))

	records, err := j.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	for i, want := range []string{"d-1", "d-2", "d-3"} {
		assert.Equal(t, want, records[i].DispatchID)
		assert.Equal(t, int64(i+1), records[i].Seq)
	}
	assert.Equal(t, ir.IRObject{"count": ir.IRInt(1)}, records[0].After)
	assert.True(t, records[0].Applied)
}

func TestReadAll_Empty(t *testing.T) {
	j := createTestJournal(t)

	records, err := j.ReadAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestReadByAction(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Write(ctx, createTestRecord("d-1", "bump", 1)))
	require.NoError(t, j.Write(ctx, createTestRecord("d-2", "set_to", 2)))
	require.NoError(t, j.Write(ctx, createTestRecord("d-3", "bump", 3)))

	records, err := j.ReadByAction(ctx, "bump")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "d-1", records[0].DispatchID)
	assert.Equal(t, "d-3", records[1].DispatchID)
}

func TestQuery(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	dropped := createTestRecord("d-2", "bump", 2)
	dropped.Applied = false
	dropped.Changed = false
	nested := createTestRecord("d-3", "set_to", 3)
	nested.Depth = 2

	require.NoError(t, j.Write(ctx, createTestRecord("d-1", "bump", 1)))
	require.NoError(t, j.Write(ctx, dropped))
	require.NoError(t, j.Write(ctx, nested))

	ids := func(p query.Predicate) []string {
		t.Helper()
		records, err := j.Query(ctx, p)
		require.NoError(t, err)
		out := []string{}
		for _, rec := range records {
			out = append(out, rec.DispatchID)
		}
		return out
	}

	assert.Equal(t, []string{"d-1", "d-2", "d-3"}, ids(nil))
	assert.Equal(t, []string{"d-2"}, ids(query.Equals{Field: query.FieldApplied, Value: ir.IRBool(false)}))
	assert.Equal(t, []string{"d-3"}, ids(query.AtLeast{Field: query.FieldDepth, Value: 2}))
	assert.Equal(t, []string{"d-1"}, ids(query.AllOf(
		query.ActionIs("bump"),
		query.Equals{Field: query.FieldChanged, Value: ir.IRBool(true)},
	)))
	assert.Equal(t, []string{}, ids(query.ActionIs("missing")))

	_, err := j.Query(ctx, query.Equals{Field: "nope", Value: ir.IRInt(1)})
	require.Error(t, err)
}

func TestRead_NotFound(t *testing.T) {
	j := createTestJournal(t)

	_, err := j.Read(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
