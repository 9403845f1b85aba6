// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package value defines the abstract value tree consumed by the canonical
// encoder.
//
// A Value is an immutable tagged union with one case per serializable shape:
// scalars, the absent/unit value, ordered sequences, key-ordered mappings and
// enum-like tagged variants. Values are built either directly with the
// constructors in this file or from ordinary Go data with Of and Params.
//
// Mappings preserve insertion order. The encoder never re-sorts them, so any
// mapping that feeds a signing payload must be built with SortedMapping,
// SortedTaggedMapping, MapBuilder or Params, or be checked with CheckOrdered.
package value

import (
	"fmt"
	"strconv"
)

// Kind identifies the case of a Value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindBool
	KindSignedInt
	KindUnsignedInt
	KindFloat
	KindText
	KindBytes
	KindNamedUnit
	KindWrapped
	KindTaggedSingle
	KindSequence
	KindTaggedSequence
	KindMapping
	KindTaggedMapping
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindBool:
		return "bool"
	case KindSignedInt:
		return "signed_int"
	case KindUnsignedInt:
		return "unsigned_int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindNamedUnit:
		return "named_unit"
	case KindWrapped:
		return "wrapped"
	case KindTaggedSingle:
		return "tagged_single"
	case KindSequence:
		return "sequence"
	case KindTaggedSequence:
		return "tagged_sequence"
	case KindMapping:
		return "mapping"
	case KindTaggedMapping:
		return "tagged_mapping"
	default:
		return "unknown"
	}
}

// Value is a node of the value tree. The zero Value is Absent.
type Value struct {
	kind Kind

	// Scalars (only the one matching kind is meaningful)
	b bool
	i int64
	u uint64
	f float64
	s string // Text payload, NamedUnit name, or tag of a tagged case
	raw []byte

	// Containers
	inner  *Value
	items  []Value
	pairs  []Pair
	fields []Field
}

// Pair is one entry of a Mapping.
type Pair struct {
	Key   Value
	Value Value
}

// Field is one entry of a TaggedMapping.
type Field struct {
	Key   string
	Value Value
}

// ============================================================
// Constructors
// ============================================================

// Absent returns the "no value" / unit case.
func Absent() Value { return Value{kind: KindAbsent} }

// Bool creates a boolean value.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// SignedInt creates a signed integer value.
func SignedInt(v int64) Value { return Value{kind: KindSignedInt, i: v} }

// UnsignedInt creates an unsigned integer value.
func UnsignedInt(v uint64) Value { return Value{kind: KindUnsignedInt, u: v} }

// Float creates a 64-bit float value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Text creates a string value.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Bytes creates a byte blob. The slice is copied.
func Bytes(v []byte) Value {
	cp := make([]byte, len(v))
	copy(cp, v)
	return Value{kind: KindBytes, raw: cp}
}

// NamedUnit creates a zero-payload tagged case, such as an enum variant
// without data.
func NamedUnit(name string) Value { return Value{kind: KindNamedUnit, s: name} }

// Wrapped creates a single-payload pass-through wrapper.
func Wrapped(inner Value) Value { return Value{kind: KindWrapped, inner: &inner} }

// TaggedSingle creates a named case carrying exactly one payload.
func TaggedSingle(tag string, inner Value) Value {
	return Value{kind: KindTaggedSingle, s: tag, inner: &inner}
}

// Sequence creates an ordered list.
func Sequence(items ...Value) Value {
	return Value{kind: KindSequence, items: append([]Value(nil), items...)}
}

// TaggedSequence creates a named case carrying an ordered list of payloads.
func TaggedSequence(tag string, items ...Value) Value {
	return Value{kind: KindTaggedSequence, s: tag, items: append([]Value(nil), items...)}
}

// Mapping creates an associative value. Pairs are kept in the given order.
func Mapping(pairs ...Pair) Value {
	return Value{kind: KindMapping, pairs: append([]Pair(nil), pairs...)}
}

// TaggedMapping creates a named case carrying key/value fields in the given
// order.
func TaggedMapping(tag string, fields ...Field) Value {
	return Value{kind: KindTaggedMapping, s: tag, fields: append([]Field(nil), fields...)}
}

// P is shorthand for a Mapping pair with a Text key.
func P(key string, v Value) Pair { return Pair{Key: Text(key), Value: v} }

// F is shorthand for a TaggedMapping field.
func F(key string, v Value) Field { return Field{Key: key, Value: v} }

// ============================================================
// Accessors
// ============================================================

// Kind returns the case of v.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v is the absent/unit case.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// AsBool returns the boolean payload.
func (v Value) AsBool() bool { return v.b }

// AsInt returns the signed integer payload.
func (v Value) AsInt() int64 { return v.i }

// AsUint returns the unsigned integer payload.
func (v Value) AsUint() uint64 { return v.u }

// AsFloat returns the float payload.
func (v Value) AsFloat() float64 { return v.f }

// AsText returns the Text payload or the NamedUnit name.
func (v Value) AsText() string { return v.s }

// AsBytes returns the byte blob. Callers must not modify it.
func (v Value) AsBytes() []byte { return v.raw }

// Tag returns the tag of a tagged case.
func (v Value) Tag() string { return v.s }

// Inner returns the payload of Wrapped and TaggedSingle values, or Absent.
func (v Value) Inner() Value {
	if v.inner == nil {
		return Absent()
	}
	return *v.inner
}

// Items returns the elements of a Sequence or TaggedSequence.
func (v Value) Items() []Value { return v.items }

// Pairs returns the entries of a Mapping.
func (v Value) Pairs() []Pair { return v.pairs }

// Fields returns the entries of a TaggedMapping.
func (v Value) Fields() []Field { return v.fields }

// Len returns the number of children of a container, or 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindSequence, KindTaggedSequence:
		return len(v.items)
	case KindMapping:
		return len(v.pairs)
	case KindTaggedMapping:
		return len(v.fields)
	case KindBytes:
		return len(v.raw)
	case KindWrapped, KindTaggedSingle:
		return 1
	}
	return 0
}

// String returns a short debug form. It is not the canonical encoding.
func (v Value) String() string {
	switch v.kind {
	case KindAbsent:
		return "Absent"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindSignedInt:
		return strconv.FormatInt(v.i, 10)
	case KindUnsignedInt:
		return strconv.FormatUint(v.u, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return strconv.Quote(v.s)
	case KindNamedUnit:
		return v.s
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.raw))
	default:
		return fmt.Sprintf("%s(%d)", v.kind, v.Len())
	}
}
