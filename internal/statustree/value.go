// Package statustree implements the status tree: a versioned hierarchical
// key/value store addressed by status:// URLs, with wildcard queries and a
// watcher primitive for change notification.
package statustree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind identifies which alternative of Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindSeq
	KindMap
)

// Value is the sum type stored at every status tree node:
// Null | Bool | Int | Float | String | Seq | Map.
//
// Value is immutable from the caller's perspective: Seq and Map contents are
// never aliased across a Clone, so mutating a value obtained from Get can
// never mutate the tree.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	seq  []Value
	m    map[string]Value
}

func Null() Value               { return Value{kind: KindNull} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Int(i int64) Value         { return Value{kind: KindInt, i: i} }
func Float(f float64) Value     { return Value{kind: KindFloat, f: f} }
func String(s string) Value     { return Value{kind: KindString, s: s} }
func Seq(items []Value) Value   { return Value{kind: KindSeq, seq: append([]Value(nil), items...)} }
func Map(m map[string]Value) Value {
	cp := make(map[string]Value, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// EmptyMap returns a fresh, empty mapping node.
func EmptyMap() Value { return Value{kind: KindMap, m: map[string]Value{}} }

func (v Value) Kind() Kind       { return v.kind }
func (v Value) IsNull() bool     { return v.kind == KindNull }
func (v Value) IsMap() bool      { return v.kind == KindMap }
func (v Value) BoolValue() bool  { return v.b }
func (v Value) IntValue() int64  { return v.i }
func (v Value) FloatValue() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}
func (v Value) StringValue() string { return v.s }

// SeqValue returns a copy of the underlying sequence; nil when the
// sequence is empty.
func (v Value) SeqValue() []Value {
	return append([]Value(nil), v.seq...)
}

// MapValue returns a copy of the underlying mapping.
func (v Value) MapValue() map[string]Value {
	cp := make(map[string]Value, len(v.m))
	for k, child := range v.m {
		cp[k] = child
	}
	return cp
}

// Child looks up a named child of a mapping node.
func (v Value) Child(name string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	child, ok := v.m[name]
	return child, ok
}

// WithChild returns a copy of v (which must be a mapping, or null/absent —
// treated as an empty mapping) with the named child replaced.
func (v Value) WithChild(name string, child Value) Value {
	m := map[string]Value{}
	if v.kind == KindMap {
		for k, val := range v.m {
			m[k] = val
		}
	}
	m[name] = child
	return Value{kind: KindMap, m: m}
}

// Clone returns a deep copy, so that mutating the result never mutates v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindSeq:
		out := make([]Value, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.Clone()
		}
		return Value{kind: KindSeq, seq: out}
	case KindMap:
		out := make(map[string]Value, len(v.m))
		for k, item := range v.m {
			out[k] = item.Clone()
		}
		return Value{kind: KindMap, m: out}
	default:
		return v
	}
}

// Equal reports whether two values are structurally identical. Used to
// detect no-op sets, which must not bump any revision.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindSeq:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// FromAny converts a decoded-JSON-style Go value (as produced by
// json.Unmarshal into interface{}, or hand-built from map[string]interface{},
// []interface{}, string, bool, float64/json.Number, nil) into a Value.
func FromAny(in interface{}) Value {
	switch t := in.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i)
		}
		f, _ := t.Float64()
		return Float(f)
	case float64:
		if i := int64(t); float64(i) == t {
			return Int(i)
		}
		return Float(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return Seq(items)
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = FromAny(item)
		}
		return Value{kind: KindMap, m: m}
	case Value:
		return t
	default:
		panic(fmt.Sprintf("statustree: unsupported value type %T", in))
	}
}

// ToAny converts a Value back to plain Go data suitable for json.Marshal or
// for handing to callers that expect interface{}.
func (v Value) ToAny() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindSeq:
		out := make([]interface{}, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.m))
		for k, item := range v.m {
			out[k] = item.ToAny()
		}
		return out
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToAny())
}

// UnmarshalJSON implements json.Unmarshaler, preserving integer vs. float
// distinction via json.Number.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}
