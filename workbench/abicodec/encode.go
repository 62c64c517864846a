package abicodec

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pushchain/piet/workbench/errors"
)

// EncodedValue is a coerced argument: the raw string for primitives, or the
// parsed JSON tree for arrays and structs. JSON numbers are kept as
// json.Number so no precision is lost before integer coercion.
type EncodedValue struct {
	raw    string
	tree   any
	parsed bool
}

// RawValue wraps a string that was passed through unchanged.
func RawValue(s string) EncodedValue { return EncodedValue{raw: s} }

// Raw returns the original form string.
func (v EncodedValue) Raw() string { return v.raw }

// Tree returns the parsed JSON tree, or nil for pass-through values.
func (v EncodedValue) Tree() any { return v.tree }

// IsJSON reports whether the value was parsed as JSON.
func (v EncodedValue) IsJSON() bool { return v.parsed }

// Value returns the tree for parsed values and the raw string otherwise.
func (v EncodedValue) Value() any {
	if v.parsed {
		return v.tree
	}
	return v.raw
}

// EncodeArgument coerces one form string against its declared type.
func EncodeArgument(t SolidityType, raw string) (EncodedValue, error) {
	if t.IsPrimitive() {
		return RawValue(raw), nil
	}

	tree, err := parseJSON(raw)
	if err != nil {
		return EncodedValue{}, errors.NewMalformedInputError("", fmt.Sprintf("invalid JSON for %s", t), err)
	}
	if err := checkShape(t, tree, "$"); err != nil {
		return EncodedValue{}, errors.NewMalformedInputError("", fmt.Sprintf("value does not match %s", t), err)
	}
	return EncodedValue{raw: raw, tree: tree, parsed: true}, nil
}

// EncodeArguments coerces every form string of fn in order. Strings beyond
// the declared parameters are passed through untouched.
func EncodeArguments(fn ContractFunction, raws []string) ([]EncodedValue, error) {
	out := make([]EncodedValue, len(raws))
	for i, raw := range raws {
		if i >= len(fn.Params) {
			out[i] = RawValue(raw)
			continue
		}
		param := fn.Params[i]
		v, err := EncodeArgument(param.Type, raw)
		if err != nil {
			if coded, ok := err.(*errors.CodedError); ok {
				coded.WithContext("parameter", param.Name).WithContext("index", i)
			}
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseJSON(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return tree, nil
}

func checkShape(t SolidityType, v any, path string) error {
	switch t.Kind {
	case KindArray:
		items, ok := v.([]any)
		if !ok {
			return fmt.Errorf("%s: expected array, got %s", path, jsonKind(v))
		}
		if t.Size >= 0 && len(items) != t.Size {
			return fmt.Errorf("%s: expected %d elements, got %d", path, t.Size, len(items))
		}
		for i, item := range items {
			if err := checkShape(*t.Elem, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil

	case KindTuple:
		switch fields := v.(type) {
		case []any:
			if len(fields) != len(t.Components) {
				return fmt.Errorf("%s: expected %d components, got %d", path, len(t.Components), len(fields))
			}
			for i, c := range t.Components {
				if err := checkShape(c.Type, fields[i], componentPath(path, c, i)); err != nil {
					return err
				}
			}
			return nil
		case map[string]any:
			for i, c := range t.Components {
				field, ok := fields[c.Name]
				if !ok {
					return fmt.Errorf("%s: missing component %q", path, c.Name)
				}
				if err := checkShape(c.Type, field, componentPath(path, c, i)); err != nil {
					return err
				}
			}
			return nil
		default:
			return fmt.Errorf("%s: expected object or array, got %s", path, jsonKind(v))
		}

	default:
		switch v.(type) {
		case []any, map[string]any:
			return fmt.Errorf("%s: expected %s, got %s", path, t.Name, jsonKind(v))
		}
		return nil
	}
}

func componentPath(path string, c Component, i int) string {
	if c.Name != "" {
		return path + "." + c.Name
	}
	return fmt.Sprintf("%s.%d", path, i)
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case string:
		return "string"
	case bool:
		return "bool"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
