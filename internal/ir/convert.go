package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FromGo converts an arbitrary Go value into an IRValue by way of its JSON
// encoding. Struct tags therefore decide field names. Integers survive exactly
// (decoded as json.Number); floats and nulls are rejected.
//
// Example:
//
//	type State struct{ Count int `json:"count"` }
//	v, _ := FromGo(State{Count: 2}) // IRObject{"count": IRInt(2)}
func FromGo(v any) (IRValue, error) {
	if irv, ok := v.(IRValue); ok {
		return irv, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return decodeStrict(data)
}

// ObjectFromGo is FromGo for values that must encode as a JSON object.
// Empty structs and nil maps produce an empty IRObject.
func ObjectFromGo(v any) (IRObject, error) {
	irv, err := FromGo(v)
	if err != nil {
		return nil, err
	}
	obj, ok := irv.(IRObject)
	if !ok {
		return nil, fmt.Errorf("%T does not encode as an object", v)
	}
	return obj, nil
}

// ToGo converts an IRValue back into plain Go values (string, int64, bool,
// []any, map[string]any, nil). Useful for YAML/JSON output and subset matching.
func ToGo(v IRValue) any {
	switch val := v.(type) {
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRBool:
		return bool(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}

func decodeStrict(data []byte) (IRValue, error) {
	v, err := decodeValue(data)
	if err != nil {
		return nil, err
	}
	if err := rejectNull(v); err != nil {
		return nil, err
	}
	return v, nil
}

func rejectNull(v IRValue) error {
	switch val := v.(type) {
	case IRNull:
		return fmt.Errorf("null is forbidden in IR")
	case IRArray:
		for i, elem := range val {
			if err := rejectNull(elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
	case IRObject:
		for k, elem := range val {
			if err := rejectNull(elem); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
	}
	return nil
}

// fromJSON converts the output of a UseNumber json decode.
func fromJSON(v any, allowNull bool) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		if !allowNull {
			return nil, fmt.Errorf("null is forbidden in IR")
		}
		return IRNull{}, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are forbidden in IR: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return IRInt(n), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := fromJSON(elem, allowNull)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := fromJSON(elem, allowNull)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
