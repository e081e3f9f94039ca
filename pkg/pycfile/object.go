// Package pycfile reads compiled .pyc containers: the magic header and
// the marshalled object graph, including code objects. It supports the
// on-disk formats of Python 1.0 through the 3.x series.
package pycfile

// ObjectType tags every marshalled value.
type ObjectType int

const (
	TypeInvalid ObjectType = iota
	TypeNull
	TypeNone
	TypeFalse
	TypeTrue
	TypeStopIter
	TypeEllipsis
	TypeInt
	TypeInt64
	TypeFloat
	TypeComplex
	TypeLong
	TypeString
	TypeInterned
	TypeStringRef
	TypeUnicode
	TypeTuple
	TypeList
	TypeDict
	TypeSet
	TypeFrozenSet
	TypeCode
)

// Object is a marshalled Python value.
type Object interface {
	Type() ObjectType
}

// Singleton values.
type singleton struct{ typ ObjectType }

func (s singleton) Type() ObjectType { return s.typ }

var (
	// None is the marshalled None value.
	None Object = singleton{TypeNone}
	// False and True are the marshalled booleans.
	False Object = singleton{TypeFalse}
	True  Object = singleton{TypeTrue}
	// StopIteration and Ellipsis round out the marshal singletons.
	StopIteration Object = singleton{TypeStopIter}
	Ellipsis      Object = singleton{TypeEllipsis}
)

// Int is a 32-bit integer constant.
type Int struct{ Value int32 }

func (Int) Type() ObjectType { return TypeInt }

// Int64 is a 64-bit integer constant.
type Int64 struct{ Value int64 }

func (Int64) Type() ObjectType { return TypeInt64 }

// Float is a floating-point constant. Text preserves the marshalled
// decimal spelling when the value came from the string encoding.
type Float struct {
	Value float64
	Text  string
}

func (Float) Type() ObjectType { return TypeFloat }

// Complex is a complex constant.
type Complex struct{ Real, Imag float64 }

func (Complex) Type() ObjectType { return TypeComplex }

// Long is an arbitrary-precision integer stored as 15-bit digits, least
// significant first. Negative reports the sign.
type Long struct {
	Negative bool
	Digits   []uint16
}

func (Long) Type() ObjectType { return TypeLong }

// String is a byte string. Interned strings and string refs resolve to
// the same representation with a distinguishing type tag.
type String struct {
	Value string
	typ   ObjectType
}

func (s *String) Type() ObjectType { return s.typ }

// NewString returns a plain byte string constant.
func NewString(value string) *String { return &String{Value: value, typ: TypeString} }

// NewInterned returns an interned byte string constant.
func NewInterned(value string) *String { return &String{Value: value, typ: TypeInterned} }

// Unicode is a text string constant.
type Unicode struct{ Value string }

func (*Unicode) Type() ObjectType { return TypeUnicode }

// Tuple is a fixed sequence of values.
type Tuple struct{ Values []Object }

func (*Tuple) Type() ObjectType { return TypeTuple }

// List is a mutable sequence of values.
type List struct{ Values []Object }

func (*List) Type() ObjectType { return TypeList }

// Dict preserves key insertion order: Keys[i] maps to Values[i].
type Dict struct {
	Keys   []Object
	Values []Object
}

func (*Dict) Type() ObjectType { return TypeDict }

// Set is a set or frozenset; frozen distinguishes the two.
type Set struct {
	Values []Object
	Frozen bool
}

func (s *Set) Type() ObjectType {
	if s.Frozen {
		return TypeFrozenSet
	}
	return TypeSet
}

// StringValue returns the text of a string-like object, or "" when the
// object is not string-like.
func StringValue(obj Object) string {
	switch v := obj.(type) {
	case *String:
		return v.Value
	case *Unicode:
		return v.Value
	}
	return ""
}

// IsStringLike reports whether obj carries text: byte strings, interned
// strings, and unicode strings all qualify.
func IsStringLike(obj Object) bool {
	if obj == nil {
		return false
	}
	switch obj.Type() {
	case TypeString, TypeInterned, TypeStringRef, TypeUnicode:
		return true
	}
	return false
}
