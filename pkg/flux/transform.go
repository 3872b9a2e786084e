package flux

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Identity returns value unchanged.
func Identity(value any) (any, error) {
	return value, nil
}

// DecodeAs returns a Transform producing a T. It accepts a T as is, decodes
// json.RawMessage and []byte as JSON, maps nil to the zero T, and round-trips
// anything else through JSON (e.g. map[string]any from a generic decoder).
func DecodeAs[T any]() Transform {
	return func(value any) (any, error) {
		var out T
		switch v := value.(type) {
		case T:
			return v, nil
		case nil:
			return out, nil
		case json.RawMessage:
			if err := json.Unmarshal(v, &out); err != nil {
				return nil, mismatch[T](value, err)
			}
			return out, nil
		case []byte:
			if err := json.Unmarshal(v, &out); err != nil {
				return nil, mismatch[T](value, err)
			}
			return out, nil
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, mismatch[T](value, err)
			}
			if err := json.Unmarshal(data, &out); err != nil {
				return nil, mismatch[T](value, err)
			}
			return out, nil
		}
	}
}

func mismatch[T any](value any, err error) error {
	return &TypeMismatchError{
		Expected: reflect.TypeOf((*T)(nil)).Elem().String(),
		Actual:   fmt.Sprintf("%T", value),
		Err:      err,
	}
}
