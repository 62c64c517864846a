package abicodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Tuple is a decoded struct value: component names mapped to decoded
// values, iterated and serialised in declaration order.
type Tuple struct {
	keys   []string
	values map[string]any
}

// NewTuple returns an empty Tuple.
func NewTuple() *Tuple {
	return &Tuple{values: make(map[string]any)}
}

// Set stores v under key, appending key on first use.
func (t *Tuple) Set(key string, v any) {
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = v
}

// Get returns the value stored under key.
func (t *Tuple) Get(key string) (any, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Keys returns the component names in declaration order.
func (t *Tuple) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Len returns the number of components.
func (t *Tuple) Len() int { return len(t.keys) }

// MarshalJSON encodes the tuple as an object with keys in declaration order.
func (t *Tuple) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range t.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(t.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeResult turns a raw unpacked value into its display form:
//
//   - primitive: the value's default string form
//   - array: a []any of the elements; primitive elements are left as-is,
//     struct and array elements are decoded recursively
//   - tuple: a *Tuple keyed by component name, nested tuples and arrays
//     decoded recursively, primitive fields copied raw
//
// raw may be a go-ethereum generated struct, a map[string]any, a *Tuple or
// a positional slice.
func DecodeResult(t SolidityType, raw any) (any, error) {
	switch t.Kind {
	case KindPrimitive:
		return Stringify(raw), nil
	case KindArray:
		return decodeArray(t, raw)
	case KindTuple:
		return decodeTuple(t, raw)
	default:
		return nil, fmt.Errorf("unknown type kind %s", t.Kind)
	}
}

func decodeArray(t SolidityType, raw any) ([]any, error) {
	rv := indirect(reflect.ValueOf(raw))
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, fmt.Errorf("expected %s, got %T", t.Name, raw)
	}
	if t.Size >= 0 && rv.Len() != t.Size {
		return nil, fmt.Errorf("expected %d elements for %s, got %d", t.Size, t.Name, rv.Len())
	}

	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i).Interface()
		if t.Elem.Kind == KindPrimitive {
			out[i] = elem
			continue
		}
		decoded, err := DecodeResult(*t.Elem, elem)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = decoded
	}
	return out, nil
}

func decodeTuple(t SolidityType, raw any) (*Tuple, error) {
	out := NewTuple()
	for i, c := range t.Components {
		key := c.Name
		if key == "" {
			key = strconv.Itoa(i)
		}
		field, err := fieldOf(raw, c.Name, i)
		if err != nil {
			return nil, err
		}
		switch c.Type.Kind {
		case KindTuple, KindArray:
			nested, err := DecodeResult(c.Type, field)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out.Set(key, nested)
		default:
			out.Set(key, field)
		}
	}
	return out, nil
}

func fieldOf(raw any, name string, index int) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("missing value for component %q", name)
	case map[string]any:
		if f, ok := v[name]; ok {
			return f, nil
		}
		return nil, fmt.Errorf("missing component %q", name)
	case *Tuple:
		if f, ok := v.Get(name); ok {
			return f, nil
		}
		return nil, fmt.Errorf("missing component %q", name)
	}

	rv := indirect(reflect.ValueOf(raw))
	switch rv.Kind() {
	case reflect.Struct:
		if name != "" {
			if f := rv.FieldByName(abi.ToCamelCase(name)); f.IsValid() && f.CanInterface() {
				return f.Interface(), nil
			}
		}
		if index < rv.NumField() && rv.Field(index).CanInterface() {
			return rv.Field(index).Interface(), nil
		}
	case reflect.Slice, reflect.Array:
		if index < rv.Len() {
			return rv.Index(index).Interface(), nil
		}
	}
	return nil, fmt.Errorf("missing component %q in %T", name, raw)
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}
