package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/reflux/internal/ir"
	"github.com/roach88/reflux/internal/query"
)

const selectColumns = `
	SELECT seq, dispatch_id, action_type, action, action_hash, state_before, state_after, state_hash, applied, changed, depth
	FROM dispatches`

// ReadAll returns every record ordered by seq.
// Returns an empty slice (not nil) for an empty journal.
func (j *Journal) ReadAll(ctx context.Context) ([]Record, error) {
	return j.query(ctx, selectColumns+` ORDER BY seq ASC`)
}

// ReadByAction returns the records for one action type ordered by seq.
func (j *Journal) ReadByAction(ctx context.Context, actionType string) ([]Record, error) {
	return j.Query(ctx, query.ActionIs(actionType))
}

// Query returns the records matching p ordered by seq. A nil predicate
// matches every record.
func (j *Journal) Query(ctx context.Context, p query.Predicate) ([]Record, error) {
	where, params, err := query.Compile(p)
	if err != nil {
		return nil, err
	}
	return j.query(ctx, selectColumns+` WHERE `+where+` ORDER BY seq ASC`, params...)
}

// Read retrieves a single record by dispatch id.
// Returns sql.ErrNoRows (wrapped) if not found.
func (j *Journal) Read(ctx context.Context, dispatchID string) (Record, error) {
	row := j.db.QueryRowContext(ctx, selectColumns+` WHERE dispatch_id = ?`, dispatchID)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("read record %s: %w", dispatchID, err)
	}
	return rec, nil
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var rec Record
	var actionJSON, before, after string
	err := s.Scan(
		&rec.Seq,
		&rec.DispatchID,
		&rec.ActionType,
		&actionJSON,
		&rec.ActionHash,
		&before,
		&after,
		&rec.StateHash,
		&rec.Applied,
		&rec.Changed,
		&rec.Depth,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan record: %w", err)
	}

	action, err := ir.Decode([]byte(actionJSON))
	if err != nil {
		return Record{}, fmt.Errorf("decode action of %s: %w", rec.DispatchID, err)
	}
	obj, ok := action.(ir.IRObject)
	if !ok {
		return Record{}, fmt.Errorf("decode action of %s: not an object", rec.DispatchID)
	}
	rec.Action = obj

	if rec.Before, err = ir.Decode([]byte(before)); err != nil {
		return Record{}, fmt.Errorf("decode state_before of %s: %w", rec.DispatchID, err)
	}
	if rec.After, err = ir.Decode([]byte(after)); err != nil {
		return Record{}, fmt.Errorf("decode state_after of %s: %w", rec.DispatchID, err)
	}
	return rec, nil
}
