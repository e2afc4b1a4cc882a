package jsonutil

import (
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a JSON value held as a tagged variant.
//
// Numbers keep their source literal so that integers of any magnitude survive
// a parse/canonicalize round trip unchanged. The zero Value is null.
type Value struct {
	kind    Kind
	boolean bool
	text    string // string contents or number literal
	items   []Value
	members map[string]Value
}

// Null returns the JSON null value.
func Null() Value { return Value{} }

// Bool returns a JSON boolean.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// String returns a JSON string. Invalid UTF-8 is rejected at canonicalization.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Int returns a JSON integer.
func Int(i int64) Value {
	return Value{kind: KindNumber, text: strconv.FormatInt(i, 10)}
}

// Float returns a JSON number for f. NaN and infinities produce a value that
// fails canonicalization.
func Float(f float64) Value {
	return Value{kind: KindNumber, text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Number returns a JSON number from its literal text.
func Number(literal string) (Value, error) {
	if !validNumber(literal) {
		return Value{}, malformed("not a JSON number: %q", literal)
	}
	return Value{kind: KindNumber, text: literal}, nil
}

// Array returns a JSON array. The slice is retained, not copied.
func Array(items ...Value) Value {
	return Value{kind: KindArray, items: items}
}

// Object returns a JSON object. The map is retained, not copied.
func Object(members map[string]Value) Value {
	return Value{kind: KindObject, members: members}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean and whether v is a boolean.
func (v Value) AsBool() (bool, bool) { return v.boolean, v.kind == KindBool }

// AsString returns the string and whether v is a string.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.text, true
}

// AsNumber returns the number literal and whether v is a number.
func (v Value) AsNumber() (string, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return v.text, true
}

// Float64 parses the number as IEEE-754 binary64.
func (v Value) Float64() (float64, error) {
	if v.kind != KindNumber {
		return 0, malformed("value is %s, not number", v.kind)
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, malformed("number %s out of binary64 range", v.text)
	}
	return f, nil
}

// Items returns the elements of an array, or nil.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.items
}

// Members returns the members of an object, or nil.
func (v Value) Members() map[string]Value {
	if v.kind != KindObject {
		return nil
	}
	return v.members
}

// Get returns the member named key of an object.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	m, ok := v.members[key]
	return m, ok
}

// Path follows a chain of object keys, e.g. v.Path("lineage", "caseId").
func (v Value) Path(keys ...string) (Value, bool) {
	cur := v
	for _, k := range keys {
		next, ok := cur.Get(k)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// Len returns the number of elements or members; 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.members)
	default:
		return 0
	}
}

// MarshalJSON emits the canonical form of v.
func (v Value) MarshalJSON() ([]byte, error) {
	s, err := Canonicalize(v)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// UnmarshalJSON parses data strictly into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// validNumber checks s against the JSON number grammar:
// -? (0 | [1-9][0-9]*) (\.[0-9]+)? ([eE][+-]?[0-9]+)?
func validNumber(s string) bool {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	switch {
	case i < len(s) && s[i] == '0':
		i++
	case i < len(s) && s[i] >= '1' && s[i] <= '9':
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	default:
		return false
	}
	if i < len(s) && s[i] == '.' {
		i++
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	return i == len(s)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
