package journal

import (
	"context"
	"fmt"

	"github.com/roach88/reflux/internal/ir"
)

// Record is one journaled dispatch.
type Record struct {
	Seq        int64       `json:"seq"`
	DispatchID string      `json:"dispatch_id"`
	ActionType string      `json:"action_type"`
	Action     ir.IRObject `json:"action"`
	ActionHash string      `json:"action_hash"`
	Before     ir.IRValue  `json:"before"`
	After      ir.IRValue  `json:"after"`
	StateHash  string      `json:"state_hash"`
	Applied    bool        `json:"applied"`
	Changed    bool        `json:"changed"`
	Depth      int         `json:"depth"`
}

// Write inserts a record. Uses ON CONFLICT DO NOTHING so re-writing the same
// dispatch id is silently ignored.
//
// Action, Before and After are stored as canonical JSON.
func (j *Journal) Write(ctx context.Context, rec Record) error {
	action := rec.Action
	if action == nil {
		action = ir.IRObject{}
	}
	actionJSON, err := ir.MarshalCanonical(action)
	if err != nil {
		return fmt.Errorf("write record: action: %w", err)
	}
	beforeJSON, err := ir.MarshalCanonical(rec.Before)
	if err != nil {
		return fmt.Errorf("write record: state before: %w", err)
	}
	afterJSON, err := ir.MarshalCanonical(rec.After)
	if err != nil {
		return fmt.Errorf("write record: state after: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO dispatches
		(seq, dispatch_id, action_type, action, action_hash, state_before, state_after, state_hash, applied, changed, depth)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.Seq,
		rec.DispatchID,
		rec.ActionType,
		string(actionJSON),
		rec.ActionHash,
		string(beforeJSON),
		string(afterJSON),
		rec.StateHash,
		rec.Applied,
		rec.Changed,
		rec.Depth,
	)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}
