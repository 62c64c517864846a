// Package abicodec translates between the strings a user types into a
// function form and the values exchanged with a contract over the ABI.
//
// Arguments go in as strings. Array and struct arguments are parsed as JSON
// and checked against the declared shape; everything else passes through so
// the provider layer can do primitive coercion. Results come back as raw Go
// values from the ABI unpacker and are rendered into display strings, with
// struct results becoming name-keyed mappings that keep declaration order.
package abicodec

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Kind tags a SolidityType.
type Kind int

const (
	KindPrimitive Kind = iota
	KindArray
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindArray:
		return "array"
	case KindTuple:
		return "tuple"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DynamicSize marks an array type without a fixed length.
const DynamicSize = -1

// SolidityType is a parameter or return type. Exactly one of the variant
// fields is meaningful per Kind: Elem and Size for arrays, Components for
// tuples. Primitive types carry only Name.
type SolidityType struct {
	Kind Kind
	// Name is the canonical ABI spelling, e.g. "uint256", "tuple[2]".
	Name string

	Elem *SolidityType
	Size int

	Components []Component

	// UserDefined is set for struct types and arrays of them.
	UserDefined bool
	// InternalType is the compiler's struct name when known.
	InternalType string
}

// Component is a named member of a tuple type.
type Component struct {
	Name string
	Type SolidityType
}

// Primitive returns a scalar type such as "uint256" or "bytes32".
func Primitive(name string) SolidityType {
	return SolidityType{Kind: KindPrimitive, Name: name}
}

// ArrayOf returns an array of elem. Pass DynamicSize for T[].
func ArrayOf(elem SolidityType, size int) SolidityType {
	name := elem.Name + "[]"
	if size >= 0 {
		name = fmt.Sprintf("%s[%d]", elem.Name, size)
	}
	e := elem
	return SolidityType{
		Kind:         KindArray,
		Name:         name,
		Elem:         &e,
		Size:         size,
		UserDefined:  elem.UserDefined,
		InternalType: elem.InternalType,
	}
}

// TupleOf returns a struct type with the given ordered components.
func TupleOf(components ...Component) SolidityType {
	return SolidityType{
		Kind:        KindTuple,
		Name:        "tuple",
		Components:  components,
		UserDefined: true,
	}
}

// IsArray reports whether the type is T[] or T[N].
func (t SolidityType) IsArray() bool { return t.Kind == KindArray }

// IsUserDefined reports whether the type is a struct or contains one at
// the top of an array.
func (t SolidityType) IsUserDefined() bool { return t.UserDefined || t.Kind == KindTuple }

// IsPrimitive reports whether the type is neither an array nor a struct.
func (t SolidityType) IsPrimitive() bool { return !t.IsArray() && !t.IsUserDefined() }

func (t SolidityType) String() string {
	if t.Kind != KindTuple {
		return t.Name
	}
	parts := make([]string, len(t.Components))
	for i, c := range t.Components {
		parts[i] = c.Type.String()
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// FromABIType converts a go-ethereum ABI type into a SolidityType.
func FromABIType(t abi.Type) SolidityType {
	switch t.T {
	case abi.SliceTy:
		return ArrayOf(FromABIType(*t.Elem), DynamicSize)
	case abi.ArrayTy:
		return ArrayOf(FromABIType(*t.Elem), t.Size)
	case abi.TupleTy:
		components := make([]Component, len(t.TupleElems))
		for i, elem := range t.TupleElems {
			name := ""
			if i < len(t.TupleRawNames) {
				name = t.TupleRawNames[i]
			}
			components[i] = Component{Name: name, Type: FromABIType(*elem)}
		}
		tuple := TupleOf(components...)
		tuple.InternalType = t.TupleRawName
		return tuple
	default:
		return Primitive(t.String())
	}
}

// Parameter is a named, typed function input or output.
type Parameter struct {
	Name string
	Type SolidityType
}

// Mutability is a function's declared state mutability.
type Mutability string

const (
	Pure       Mutability = "pure"
	View       Mutability = "view"
	Payable    Mutability = "payable"
	NonPayable Mutability = "nonpayable"
)

// ContractFunction describes one callable function of a contract.
type ContractFunction struct {
	Name string
	// Signature is the canonical form, e.g. "transfer(address,uint256)".
	Signature    string
	Params       []Parameter
	ReturnParams []Parameter
	Source       string
	Mutability   Mutability
}

// IsReadOnly reports whether the function can be executed as a call.
func (f ContractFunction) IsReadOnly() bool {
	return f.Mutability == Pure || f.Mutability == View
}

// FunctionFromMethod builds a ContractFunction from a compiled ABI entry.
func FunctionFromMethod(m abi.Method) ContractFunction {
	fn := ContractFunction{
		Name:       m.RawName,
		Signature:  m.Sig,
		Mutability: mutabilityOf(m),
	}
	if fn.Name == "" {
		fn.Name = m.Name
	}
	for _, in := range m.Inputs {
		fn.Params = append(fn.Params, Parameter{Name: in.Name, Type: FromABIType(in.Type)})
	}
	for _, out := range m.Outputs {
		fn.ReturnParams = append(fn.ReturnParams, Parameter{Name: out.Name, Type: FromABIType(out.Type)})
	}
	return fn
}

func mutabilityOf(m abi.Method) Mutability {
	switch m.StateMutability {
	case "pure":
		return Pure
	case "view":
		return View
	case "payable":
		return Payable
	case "nonpayable":
		return NonPayable
	}
	// pre-0.5 ABI entries only carry the constant/payable flags
	switch {
	case m.Constant:
		return View
	case m.Payable:
		return Payable
	default:
		return NonPayable
	}
}
