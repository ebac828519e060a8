package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/csc/internal/ir"
)

// marshalArgs converts IRObject to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalArgs(args ir.IRObject) (string, error) {
	if args == nil {
		args = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses canonical JSON TEXT to IRObject.
// Uses ir.IRObject.UnmarshalJSON which properly handles large integers via json.Number
// to avoid float64 precision loss for values > 2^53.
func unmarshalArgs(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return obj, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
