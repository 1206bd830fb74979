package query

import (
	"errors"
	"fmt"

	"github.com/roach88/reflux/internal/ir"
)

// ValidationResult lists every problem found in a predicate tree.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Err joins the validation errors, or returns nil for a valid predicate.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	errs := make([]error, 0, len(r.Errors))
	for _, msg := range r.Errors {
		errs = append(errs, errors.New(msg))
	}
	return errors.Join(errs...)
}

// Validate checks that every predicate names a known field and compares it
// to a value of the field's kind. A nil predicate is valid.
//
// Validate is pure; it never touches a database.
func Validate(p Predicate) ValidationResult {
	v := &validator{}
	v.predicate(p)
	return ValidationResult{Valid: len(v.errors) == 0, Errors: v.errors}
}

type validator struct {
	errors []string
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) predicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.equals(pred)
	case *Equals:
		v.equals(*pred)
	case AtLeast:
		v.atLeast(pred)
	case *AtLeast:
		v.atLeast(*pred)
	case And:
		v.and(pred)
	case *And:
		v.and(*pred)
	case Not:
		v.not(pred)
	case *Not:
		v.not(*pred)
	default:
		v.addError("unknown predicate type %T", p)
	}
}

func (v *validator) equals(eq Equals) {
	kind, ok := FieldKind(eq.Field)
	if !ok {
		v.addError("unknown field %q", eq.Field)
		return
	}
	if got := kindOf(eq.Value); got != kind {
		v.addError("field %q is %s, compared to %s", eq.Field, kind, describe(eq.Value))
	}
}

func (v *validator) atLeast(ge AtLeast) {
	kind, ok := FieldKind(ge.Field)
	if !ok {
		v.addError("unknown field %q", ge.Field)
		return
	}
	if kind != KindInt {
		v.addError("field %q is %s, ordering needs int", ge.Field, kind)
	}
}

func (v *validator) and(and And) {
	for _, sub := range and.Predicates {
		if sub == nil {
			v.addError("nil predicate inside and")
			continue
		}
		v.predicate(sub)
	}
}

func (v *validator) not(not Not) {
	if not.Predicate == nil {
		v.addError("not without a predicate")
		return
	}
	v.predicate(not.Predicate)
}

func kindOf(val ir.IRValue) Kind {
	switch val.(type) {
	case ir.IRString:
		return KindString
	case ir.IRInt:
		return KindInt
	case ir.IRBool:
		return KindBool
	default:
		return 0
	}
}

func describe(val ir.IRValue) string {
	if val == nil {
		return "nil"
	}
	if k := kindOf(val); k != 0 {
		return k.String()
	}
	return fmt.Sprintf("%T", val)
}
