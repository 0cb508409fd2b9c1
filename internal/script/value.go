// Package script is the message dispatch table the viewer exposes to key
// bindings and the remote console: named objects carry named methods that
// take a short list of typed values.
package script

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the type held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
)

var kindNames = [...]string{"nil", "bool", "int", "float", "string"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is a small tagged variant.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// Nil is the value of methods that return nothing.
var Nil = Value{}

func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func Int(i int64) Value     { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func (v Value) Kind() Kind  { return v.kind }
func (v Value) IsNil() bool { return v.kind == KindNil }

// AsBool accepts booleans and integers, where non-zero is true.
func (v Value) AsBool() (bool, error) {
	switch v.kind {
	case KindBool:
		return v.b, nil
	case KindInt:
		return v.i != 0, nil
	}
	return false, v.mismatch(KindBool)
}

// AsInt accepts integers and integral floats.
func (v Value) AsInt() (int64, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindFloat:
		if v.f == float64(int64(v.f)) {
			return int64(v.f), nil
		}
	}
	return 0, v.mismatch(KindInt)
}

// AsFloat accepts floats and integers.
func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindInt:
		return float64(v.i), nil
	}
	return 0, v.mismatch(KindFloat)
}

// AsString accepts only strings.
func (v Value) AsString() (string, error) {
	if v.kind == KindString {
		return v.s, nil
	}
	return "", v.mismatch(KindString)
}

func (v Value) mismatch(want Kind) error {
	return fmt.Errorf("%w: want %s, got %s %s", ErrBadArguments, want, v.kind, v)
}

// String formats the value the way the parser reads it back.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		s := strconv.FormatFloat(v.f, 'g', -1, 64)
		if strings.ContainsAny(s, ".eIN") {
			return s
		}
		return s + ".0"
	case KindString:
		return strconv.Quote(v.s)
	}
	return "nil"
}
