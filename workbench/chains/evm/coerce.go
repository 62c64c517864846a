package evm

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cast"

	"github.com/pushchain/piet/workbench/abicodec"
	"github.com/pushchain/piet/workbench/errors"
)

var bigIntType = reflect.TypeOf(&big.Int{})

// CoerceArguments converts encoded form values into the Go values
// abi.Arguments.Pack expects for inputs.
func CoerceArguments(inputs abi.Arguments, values []abicodec.EncodedValue) ([]any, error) {
	if len(values) != len(inputs) {
		return nil, errors.NewMalformedInputError("", fmt.Sprintf("expected %d arguments, got %d", len(inputs), len(values)), nil)
	}
	out := make([]any, len(inputs))
	for i, in := range inputs {
		v, err := Coerce(in.Type, values[i].Value())
		if err != nil {
			return nil, errors.NewMalformedInputError(in.Name, fmt.Sprintf("invalid value for %s %s", in.Type.String(), in.Name), err)
		}
		out[i] = v
	}
	return out, nil
}

// Coerce converts v, a form string or a node of a parsed JSON tree, into a
// value of t's Go type.
func Coerce(t abi.Type, v any) (any, error) {
	switch t.T {
	case abi.IntTy, abi.UintTy:
		return coerceInt(t, v)
	case abi.BoolTy:
		return cast.ToBoolE(v)
	case abi.StringTy:
		return cast.ToStringE(v)
	case abi.AddressTy:
		s, err := scalarString(v)
		if err != nil {
			return nil, err
		}
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil
	case abi.FixedBytesTy, abi.HashTy, abi.FunctionTy:
		return coerceFixedBytes(t, v)
	case abi.BytesTy:
		s, err := scalarString(v)
		if err != nil {
			return nil, err
		}
		return hexutil.Decode(s)
	case abi.SliceTy, abi.ArrayTy:
		return coerceArray(t, v)
	case abi.TupleTy:
		return coerceTuple(t, v)
	default:
		return nil, fmt.Errorf("unsupported type %s", t.String())
	}
}

func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x), nil
	case json.Number:
		return x.String(), nil
	case []any, map[string]any, nil:
		return "", fmt.Errorf("expected scalar, got %T", v)
	default:
		return cast.ToStringE(v)
	}
}

func coerceInt(t abi.Type, v any) (any, error) {
	s, err := scalarString(v)
	if err != nil {
		return nil, err
	}

	n := new(big.Int)
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	var ok bool
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		_, ok = n.SetString(digits[2:], 16)
	} else {
		_, ok = n.SetString(digits, 10)
	}
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	if neg {
		n.Neg(n)
	}

	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s out of range for %s", s, t.String())
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		minimum := new(big.Int).Neg(limit)
		if n.Cmp(minimum) < 0 || n.Cmp(limit) >= 0 {
			return nil, fmt.Errorf("%s out of range for %s", s, t.String())
		}
	}

	goType := t.GetType()
	if goType == bigIntType {
		return n, nil
	}
	rv := reflect.New(goType).Elem()
	if t.T == abi.UintTy {
		rv.SetUint(n.Uint64())
	} else {
		rv.SetInt(n.Int64())
	}
	return rv.Interface(), nil
}

func coerceFixedBytes(t abi.Type, v any) (any, error) {
	s, err := scalarString(v)
	if err != nil {
		return nil, err
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, err
	}
	rv := reflect.New(t.GetType()).Elem()
	if len(b) > rv.Len() {
		return nil, fmt.Errorf("%d bytes do not fit %s", len(b), t.String())
	}
	reflect.Copy(rv, reflect.ValueOf(b))
	return rv.Interface(), nil
}

func coerceArray(t abi.Type, v any) (any, error) {
	items, err := jsonList(v)
	if err != nil {
		return nil, err
	}
	if t.T == abi.ArrayTy && len(items) != t.Size {
		return nil, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
	}

	var rv reflect.Value
	if t.T == abi.SliceTy {
		rv = reflect.MakeSlice(t.GetType(), len(items), len(items))
	} else {
		rv = reflect.New(t.GetType()).Elem()
	}
	for i, item := range items {
		elem, err := Coerce(*t.Elem, item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		rv.Index(i).Set(reflect.ValueOf(elem))
	}
	return rv.Interface(), nil
}

func coerceTuple(t abi.Type, v any) (any, error) {
	node, err := jsonNode(v)
	if err != nil {
		return nil, err
	}
	rv := reflect.New(t.TupleType).Elem()
	for i, elem := range t.TupleElems {
		name := t.TupleRawNames[i]
		var field any
		switch n := node.(type) {
		case []any:
			if len(n) != len(t.TupleElems) {
				return nil, fmt.Errorf("expected %d components, got %d", len(t.TupleElems), len(n))
			}
			field = n[i]
		case map[string]any:
			f, ok := n[name]
			if !ok {
				return nil, fmt.Errorf("missing component %q", name)
			}
			field = f
		default:
			return nil, fmt.Errorf("expected object or array for %s", t.String())
		}
		coerced, err := Coerce(*elem, field)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		rv.Field(i).Set(reflect.ValueOf(coerced))
	}
	return rv.Interface(), nil
}

// jsonNode accepts an already parsed tree or parses a raw string.
func jsonNode(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var node any
	if err := dec.Decode(&node); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return node, nil
}

func jsonList(v any) ([]any, error) {
	node, err := jsonNode(v)
	if err != nil {
		return nil, err
	}
	items, ok := node.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", node)
	}
	return items, nil
}
