package abicodec

import (
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Stringify renders a scalar in its default display form. Integers print in
// decimal, addresses as checksummed hex and byte strings as 0x-hex.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case *big.Int:
		if x == nil {
			return "0"
		}
		return x.String()
	case big.Int:
		return x.String()
	case common.Address:
		return x.Hex()
	case *common.Address:
		if x == nil {
			return ""
		}
		return x.Hex()
	case common.Hash:
		return x.Hex()
	case []byte:
		return hexutil.Encode(x)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		return hexutil.Encode(byteArray(rv))
	}
	return fmt.Sprint(v)
}

// PrettyJSON serialises a decoded value with 4-space indentation. Big
// integers become decimal strings and byte values become 0x-hex so the
// output never loses precision.
func PrettyJSON(v any) (string, error) {
	out, err := json.MarshalIndent(normalize(v), "", "    ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Display renders a raw unpacked value for one result slot: primitives
// through Stringify, arrays and structs as indented JSON of their decoded
// form.
func Display(t SolidityType, raw any) (string, error) {
	if t.IsPrimitive() {
		return Stringify(raw), nil
	}
	decoded, err := DecodeResult(t, raw)
	if err != nil {
		return "", err
	}
	return PrettyJSON(decoded)
}

func normalize(v any) any {
	switch x := v.(type) {
	case nil, string, bool, json.Number:
		return x
	case *Tuple:
		out := NewTuple()
		for _, k := range x.keys {
			out.Set(k, normalize(x.values[k]))
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case *big.Int, big.Int, common.Address, *common.Address, common.Hash, []byte:
		return Stringify(x)
	}

	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return hexutil.Encode(byteArray(rv))
		}
		fallthrough
	case reflect.Slice:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Struct:
		out := make(map[string]any, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			f := rv.Type().Field(i)
			if !f.IsExported() {
				continue
			}
			out[f.Name] = normalize(rv.Field(i).Interface())
		}
		return out
	}
	return rv.Interface()
}

func byteArray(rv reflect.Value) []byte {
	b := make([]byte, rv.Len())
	for i := range b {
		b[i] = byte(rv.Index(i).Uint())
	}
	return b
}
