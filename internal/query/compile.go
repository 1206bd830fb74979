package query

import (
	"fmt"
	"strings"

	"github.com/roach88/reflux/internal/ir"
)

// Compile turns a predicate into a SQLite WHERE fragment and its parameters.
//
// The predicate is validated first, so field names in the output always come
// from the known field set. A nil predicate compiles to "1 = 1".
func Compile(p Predicate) (string, []any, error) {
	if err := Validate(p).Err(); err != nil {
		return "", nil, fmt.Errorf("invalid predicate: %w", err)
	}
	return compile(p)
}

func compile(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case AtLeast:
		return pred.Field + " >= ?", []any{int64(pred.Value)}, nil
	case *AtLeast:
		return pred.Field + " >= ?", []any{int64(pred.Value)}, nil
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	case Not:
		return compileNot(pred)
	case *Not:
		return compileNot(*pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	param, err := toParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %s: %w", eq.Field, err)
	}
	return eq.Field + " = ?", []any{param}, nil
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, sub := range and.Predicates {
		sql, subParams, err := compile(sub)
		if err != nil {
			return "", nil, err
		}
		switch sub.(type) {
		case And, *And:
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, subParams...)
	}
	return strings.Join(parts, " AND "), params, nil
}

func compileNot(not Not) (string, []any, error) {
	sql, params, err := compile(not.Predicate)
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", params, nil
}

// toParam converts a scalar IR value to a driver parameter.
// Booleans are stored as integers.
func toParam(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
