package formula

import (
	"strconv"
)

// Kind is the runtime type of a formula value
type Kind int

const (
	KindNumber Kind = iota
	KindString
	KindBool
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a formula runtime value. Only numbers may leave the evaluator;
// the other kinds exist for comparisons and builtin arguments.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	list []Value
	obj  map[string]Value
}

// Number wraps a float
func Number(v float64) Value { return Value{kind: KindNumber, num: v} }

// String wraps a string
func String(v string) Value { return Value{kind: KindString, str: v} }

// Bool wraps a bool
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// Kind returns the value's runtime type
func (v Value) Kind() Kind { return v.kind }

func (v Value) field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	f, ok := v.obj[name]
	return f, ok
}

func (v Value) equal(o Value) bool {
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	}
	return false
}
