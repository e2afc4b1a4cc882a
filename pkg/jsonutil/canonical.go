// Package jsonutil implements the canonical JSON form used for sealing and
// verifying telemetry records.
//
// The canonical form of a value is its JSON text with:
//   - object keys sorted by byte-wise UTF-8 comparison (code point order),
//     recursively at every depth
//   - array elements kept in source order
//   - no insignificant whitespace
//   - strings escaped minimally: '"' and '\', the short forms \b \f \n \r \t,
//     and \u00xx (lowercase) for the remaining control characters; all other
//     characters are emitted as raw UTF-8
//   - integer literals (no fraction or exponent) emitted as their exact
//     decimal digits, with -0 written as 0
//   - every other number converted to IEEE-754 binary64 and printed with the
//     ECMAScript Number-to-String rule (shortest round-trip digits)
//
// The form is a compatibility contract: digests sealed today must verify
// against the same bytes forever.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/qube-forensics/sealcheck/pkg/errclass"
)

// Canonicalize returns the canonical serialization of v.
func Canonicalize(v Value) (string, error) {
	e := newEncoder()
	if err := e.write(v); err != nil {
		return "", err
	}
	return e.buf.String(), nil
}

// CanonicalMarshal converts an arbitrary Go value to a Value and returns its
// canonical form. Structs and other types are first passed through
// encoding/json, so their json tags apply.
func CanonicalMarshal(v any) ([]byte, error) {
	val, err := FromAny(v)
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	s, err := Canonicalize(val)
	if err != nil {
		return nil, fmt.Errorf("canonical marshal: %w", err)
	}
	return []byte(s), nil
}

type containerID struct {
	ptr uintptr
	n   int
	obj bool
}

type encoder struct {
	buf    strings.Builder
	active map[containerID]struct{}
	path   []string
}

func newEncoder() *encoder {
	return &encoder{active: make(map[containerID]struct{})}
}

func (e *encoder) location() string {
	return "$" + strings.Join(e.path, "")
}

// enter marks a container as being on the current recursion path. Returns
// false when it is already there.
func (e *encoder) enter(id containerID) bool {
	if id.n == 0 {
		return true
	}
	if _, ok := e.active[id]; ok {
		return false
	}
	e.active[id] = struct{}{}
	return true
}

func (e *encoder) leave(id containerID) {
	delete(e.active, id)
}

func (e *encoder) write(v Value) error {
	switch v.kind {
	case KindNull:
		e.buf.WriteString("null")

	case KindBool:
		if v.boolean {
			e.buf.WriteString("true")
		} else {
			e.buf.WriteString("false")
		}

	case KindNumber:
		s, err := canonicalNumber(v.text)
		if err != nil {
			return fmt.Errorf("at %s: %w", e.location(), err)
		}
		e.buf.WriteString(s)

	case KindString:
		if err := writeString(&e.buf, v.text); err != nil {
			return fmt.Errorf("at %s: %w", e.location(), err)
		}

	case KindArray:
		id := containerID{n: len(v.items)}
		if len(v.items) > 0 {
			id.ptr = reflect.ValueOf(v.items).Pointer()
		}
		if !e.enter(id) {
			return errclass.ErrCyclicStructure.WithMessagef("array at %s contains itself", e.location())
		}
		e.buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			e.path = append(e.path, "["+strconv.Itoa(i)+"]")
			err := e.write(item)
			e.path = e.path[:len(e.path)-1]
			if err != nil {
				return err
			}
		}
		e.buf.WriteByte(']')
		e.leave(id)

	case KindObject:
		id := containerID{n: len(v.members), obj: true}
		if len(v.members) > 0 {
			id.ptr = reflect.ValueOf(v.members).Pointer()
		}
		if !e.enter(id) {
			return errclass.ErrCyclicStructure.WithMessagef("object at %s contains itself", e.location())
		}
		keys := make([]string, 0, len(v.members))
		for k := range v.members {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		e.buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			if err := writeString(&e.buf, k); err != nil {
				return fmt.Errorf("key at %s: %w", e.location(), err)
			}
			e.buf.WriteByte(':')
			e.path = append(e.path, "."+k)
			err := e.write(v.members[k])
			e.path = e.path[:len(e.path)-1]
			if err != nil {
				return err
			}
		}
		e.buf.WriteByte('}')
		e.leave(id)

	default:
		return malformed("unknown value kind %d at %s", v.kind, e.location())
	}
	return nil
}

const hexDigits = "0123456789abcdef"

func writeString(buf *strings.Builder, s string) error {
	if !utf8.ValidString(s) {
		return malformed("string is not valid UTF-8: %q", s)
	}
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if c < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[c>>4])
				buf.WriteByte(hexDigits[c&0xf])
				continue
			}
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('"')
	return nil
}

// canonicalNumber applies the pinned number rule to a JSON number literal.
func canonicalNumber(lit string) (string, error) {
	if !validNumber(lit) {
		return "", malformed("not a JSON number: %q", lit)
	}
	if isIntegerLiteral(lit) {
		if lit == "-0" {
			return "0", nil
		}
		return lit, nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", malformed("number %s out of binary64 range", lit)
	}
	return FormatNumber(f), nil
}

func isIntegerLiteral(lit string) bool {
	return !strings.ContainsAny(lit, ".eE")
}

// FormatNumber prints f following the ECMAScript Number::toString algorithm,
// which JSON.stringify and RFC 8785 both use. f must be finite.
func FormatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	var sb strings.Builder
	if f < 0 {
		sb.WriteByte('-')
		f = -f
	}

	// Shortest round-trip digits in scientific form: d.ddde±xx
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(sci, "e")
	digits := strings.Replace(mant, ".", "", 1)
	e, _ := strconv.Atoi(exp)
	n := e + 1 // value = 0.digits * 10^n
	k := len(digits)

	switch {
	case k <= n && n <= 21:
		sb.WriteString(digits)
		sb.WriteString(strings.Repeat("0", n-k))
	case 0 < n && n <= 21:
		sb.WriteString(digits[:n])
		sb.WriteByte('.')
		sb.WriteString(digits[n:])
	case -6 < n && n <= 0:
		sb.WriteString("0.")
		sb.WriteString(strings.Repeat("0", -n))
		sb.WriteString(digits)
	default:
		sb.WriteByte(digits[0])
		if k > 1 {
			sb.WriteByte('.')
			sb.WriteString(digits[1:])
		}
		sb.WriteByte('e')
		if n-1 >= 0 {
			sb.WriteByte('+')
			sb.WriteString(strconv.Itoa(n - 1))
		} else {
			sb.WriteByte('-')
			sb.WriteString(strconv.Itoa(1 - n))
		}
	}
	return sb.String()
}

// FromAny converts a Go value into a Value. Maps and slices that contain
// themselves are reported as ErrCyclicStructure.
func FromAny(v any) (Value, error) {
	c := &converter{active: make(map[containerID]struct{})}
	return c.convert(v)
}

type converter struct {
	active map[containerID]struct{}
}

func (c *converter) convert(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return val, nil
	case *Value:
		if val == nil {
			return Null(), nil
		}
		return *val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		return Number(string(val))
	case float64:
		return Float(val), nil
	case float32:
		return Float(float64(val)), nil
	case int:
		return Int(int64(val)), nil
	case int8:
		return Int(int64(val)), nil
	case int16:
		return Int(int64(val)), nil
	case int32:
		return Int(int64(val)), nil
	case int64:
		return Int(val), nil
	case uint:
		return Value{kind: KindNumber, text: strconv.FormatUint(uint64(val), 10)}, nil
	case uint8:
		return Int(int64(val)), nil
	case uint16:
		return Int(int64(val)), nil
	case uint32:
		return Int(int64(val)), nil
	case uint64:
		return Value{kind: KindNumber, text: strconv.FormatUint(val, 10)}, nil
	case map[string]Value:
		return Object(val), nil
	case []Value:
		return Array(val...), nil

	case map[string]any:
		id := containerID{n: len(val), obj: true}
		if len(val) > 0 {
			id.ptr = reflect.ValueOf(val).Pointer()
			if _, ok := c.active[id]; ok {
				return Value{}, errclass.ErrCyclicStructure.WithMessage("map contains itself")
			}
			c.active[id] = struct{}{}
			defer delete(c.active, id)
		}
		members := make(map[string]Value, len(val))
		for k, item := range val {
			converted, err := c.convert(item)
			if err != nil {
				return Value{}, err
			}
			members[k] = converted
		}
		return Object(members), nil

	case []any:
		id := containerID{n: len(val)}
		if len(val) > 0 {
			id.ptr = reflect.ValueOf(val).Pointer()
			if _, ok := c.active[id]; ok {
				return Value{}, errclass.ErrCyclicStructure.WithMessage("slice contains itself")
			}
			c.active[id] = struct{}{}
			defer delete(c.active, id)
		}
		items := make([]Value, len(val))
		for i, item := range val {
			converted, err := c.convert(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = converted
		}
		return Array(items...), nil

	default:
		raw, err := json.Marshal(val)
		if err != nil {
			if strings.Contains(err.Error(), "cycle") {
				return Value{}, errclass.ErrCyclicStructure.WithMessage(err.Error())
			}
			return Value{}, malformed("cannot represent %T as JSON: %v", val, err)
		}
		return Parse(raw)
	}
}

func malformed(format string, args ...any) error {
	return errclass.ErrMalformedInput.WithMessagef(format, args...)
}
