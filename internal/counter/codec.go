package counter

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/reflux/internal/store"
)

// ErrUnknownAction is returned for tags the counter does not understand.
var ErrUnknownAction = errors.New("unknown action")

// Types lists every action tag in a stable order.
func Types() []string {
	return []string{TypeIncrease, TypeDecrease, TypeSetCount}
}

// Decode builds an action from a tag and its arguments, as found in YAML
// scenarios and JSON input.
func Decode(tag string, args map[string]any) (store.Action, error) {
	switch tag {
	case TypeIncrease:
		return Increase{}, nil
	case TypeDecrease:
		return Decrease{}, nil
	case TypeSetCount:
		raw, ok := args["count"]
		if !ok {
			return nil, fmt.Errorf("%s: missing required arg %q", tag, "count")
		}
		n, err := toInt(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: arg %q: %w", tag, "count", err)
		}
		return SetCount{Count: n}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, tag)
	}
}

// ParseAction parses the command-line shorthand:
//
//	increase | inc | +
//	decrease | dec | -
//	set:<n>
func ParseAction(s string) (store.Action, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case TypeIncrease, "inc", "+":
		return Increase{}, nil
	case TypeDecrease, "dec", "-":
		return Decrease{}, nil
	}

	if rest, ok := strings.CutPrefix(s, "set:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("parse %q: count must be an integer", s)
		}
		return SetCount{Count: n}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int", n)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		if n < math.MinInt || n >= math.MaxInt {
			return 0, fmt.Errorf("%v overflows int", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s is not an integer", n)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}
