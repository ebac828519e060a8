package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// IRValue is a sealed interface over the literal types a rule can see.
// Only IRInt, IRFloat, IRBool and IRString implement it.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRString represents a string value (bare-token verb args, run ids).
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat represents a decimal value such as a drawdown ratio.
type IRFloat float64

func (IRFloat) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRObject represents a flat map of string keys to IRValue elements.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// Clone returns a shallow copy. Values are immutable so this is a full copy.
func (obj IRObject) Clone() IRObject {
	if obj == nil {
		return IRObject{}
	}
	out := make(IRObject, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := len(a16)
	if len(b16) < minLen {
		minLen = len(b16)
	}

	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}

// FormatFloat renders a float deterministically. Integral floats keep a
// trailing ".0" so they decode back as IRFloat rather than IRInt.
func FormatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite float %v cannot be serialized", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s, nil
}

// TypeName returns the short type name used in evaluation error messages.
func TypeName(v IRValue) string {
	switch v.(type) {
	case IRInt:
		return "int"
	case IRFloat:
		return "float"
	case IRBool:
		return "bool"
	case IRString:
		return "string"
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// FromAny converts a decoded JSON/YAML scalar into an IRValue.
// Nested structures and null are rejected: snapshots and verb args are flat.
func FromAny(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not a valid value")
	case IRValue:
		return val, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case int:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d out of range", val)
		}
		return IRInt(val), nil
	case float32:
		return IRFloat(val), nil
	case float64:
		return IRFloat(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			f, err := val.Float64()
			if err != nil {
				return nil, fmt.Errorf("invalid number %s: %w", s, err)
			}
			return IRFloat(f), nil
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return IRInt(n), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// ObjectFromMap converts a decoded flat map into an IRObject.
func ObjectFromMap(m map[string]any) (IRObject, error) {
	obj := make(IRObject, len(m))
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		obj[k] = v
	}
	return obj, nil
}

// ToAny converts an IRValue back to a plain Go value.
func ToAny(v IRValue) any {
	switch val := v.(type) {
	case IRInt:
		return int64(val)
	case IRFloat:
		return float64(val)
	case IRBool:
		return bool(val)
	case IRString:
		return string(val)
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys.
// NOTE: This is NOT canonical marshaling. Use MarshalCanonical for hashing
// and journal lines.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	return marshalCanonicalObject(obj)
}

// UnmarshalJSON implements json.Unmarshaler for IRObject.
// Numbers containing a decimal point or exponent decode as IRFloat.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := ObjectFromMap(raw)
	if err != nil {
		return fmt.Errorf("IRObject: %w", err)
	}
	*obj = out
	return nil
}
