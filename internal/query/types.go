// Package query is a small filter language over journal records.
//
// Predicates are built in Go, checked with Validate and compiled to a
// parameterized SQLite WHERE fragment with Compile. Values are never
// interpolated into the SQL text.
package query

import "github.com/roach88/reflux/internal/ir"

// Predicate is a filter condition over journal records.
//
// Sealed: only types in this package implement it, so Compile and Validate
// can switch exhaustively.
type Predicate interface {
	predicateNode()
}

// Journal record fields a predicate may reference.
const (
	FieldSeq        = "seq"
	FieldDispatchID = "dispatch_id"
	FieldActionType = "action_type"
	FieldApplied    = "applied"
	FieldChanged    = "changed"
	FieldDepth      = "depth"
)

// Kind is the value type of a field.
type Kind int

const (
	KindString Kind = iota + 1
	KindInt
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

var fields = map[string]Kind{
	FieldSeq:        KindInt,
	FieldDispatchID: KindString,
	FieldActionType: KindString,
	FieldApplied:    KindBool,
	FieldChanged:    KindBool,
	FieldDepth:      KindInt,
}

// FieldKind returns the kind of a known field.
func FieldKind(field string) (Kind, bool) {
	k, ok := fields[field]
	return k, ok
}

// Equals matches records whose field equals a literal.
//
//	Equals{Field: FieldActionType, Value: ir.IRString("increase")}
//
// compiles to
//
//	action_type = ?
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// AtLeast matches records whose integer field is >= Value.
type AtLeast struct {
	Field string
	Value ir.IRInt
}

func (AtLeast) predicateNode() {}

// And is a conjunction. An empty And matches every record.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// ActionIs is shorthand for an action_type equality.
func ActionIs(actionType string) Equals {
	return Equals{Field: FieldActionType, Value: ir.IRString(actionType)}
}

// AllOf builds an And, skipping nil predicates. Returns nil when nothing is
// left, which Compile treats as "match everything".
func AllOf(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
