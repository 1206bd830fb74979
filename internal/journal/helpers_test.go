package journal

import (
	"path/filepath"
	"testing"

	"github.com/roach88/reflux/internal/ir"
	"github.com/roach88/reflux/internal/store"
)

// createTestJournal creates a file-backed journal in a temp dir.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// createTestRecord creates a record with minimal required fields.
func createTestRecord(id, actionType string, seq int64) Record {
	return Record{
		Seq:        seq,
		DispatchID: id,
		ActionType: actionType,
		Action:     ir.IRObject{},
		ActionHash: "test-hash",
		Before:     ir.IRObject{"count": ir.IRInt(0)},
		After:      ir.IRObject{"count": ir.IRInt(1)},
		StateHash:  "state-hash",
		Applied:    true,
		Changed:    true,
	}
}

type tally struct {
	Count int `json:"count"`
}

type bump struct{}

func (bump) ActionType() string { return "bump" }

type setTo struct {
	Count int `json:"count"`
}

func (setTo) ActionType() string { return "set_to" }

type ignored struct{}

func (ignored) ActionType() string { return "ignored" }

// badPayload cannot be encoded: floats are not allowed in the journal.
type badPayload struct {
	Ratio float64 `json:"ratio"`
}

func (badPayload) ActionType() string { return "bad" }

var tallyReducer = store.Handlers[tally]{
	"bump":   func(s tally, _ store.Action) tally { return tally{Count: s.Count + 1} },
	"set_to": func(_ tally, a store.Action) tally { return tally{Count: a.(setTo).Count} },
	"bad":    func(s tally, _ store.Action) tally { return s },
}.Reducer()
