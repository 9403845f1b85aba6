// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// OrderError reports a Mapping or TaggedMapping whose keys are not in strictly
// ascending lexicographic order.
type OrderError struct {
	Path string // Location of the offending container, "$" for the root
	Prev string // Key that precedes Key but sorts at or after it
	Key  string
}

func (e *OrderError) Error() string {
	if e.Prev == e.Key {
		return fmt.Sprintf("duplicate key %q at %s", e.Key, e.Path)
	}
	return fmt.Sprintf("key %q follows %q at %s", e.Key, e.Prev, e.Path)
}

// KeyText returns the text a mapping key is ordered by: its canonical
// encoding. For Text and NamedUnit keys this is the string itself; numbers
// and booleans use their decimal / literal form; Wrapped keys order by their
// inner value; container keys use the full bracketed form.
func KeyText(k Value) string {
	if k.kind == KindText || k.kind == KindNamedUnit {
		return k.s
	}
	var b strings.Builder
	writeKeyText(&b, k)
	return b.String()
}

func writeKeyText(b *strings.Builder, k Value) {
	switch k.kind {
	case KindAbsent:
		b.WriteByte(0)
	case KindBool:
		b.WriteString(strconv.FormatBool(k.b))
	case KindSignedInt:
		b.WriteString(strconv.FormatInt(k.i, 10))
	case KindUnsignedInt:
		b.WriteString(strconv.FormatUint(k.u, 10))
	case KindFloat:
		b.WriteString(strconv.FormatFloat(k.f, 'f', -1, 64))
	case KindText, KindNamedUnit:
		b.WriteString(k.s)
	case KindBytes:
		b.WriteByte('[')
		for i, x := range k.raw {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(strconv.FormatUint(uint64(x), 10))
		}
		b.WriteByte(']')
	case KindWrapped:
		writeKeyText(b, k.Inner())
	case KindTaggedSingle:
		b.WriteString("{" + k.s + ".")
		writeKeyText(b, k.Inner())
		b.WriteByte('}')
	case KindSequence:
		writeKeyItems(b, k.items)
	case KindTaggedSequence:
		b.WriteString("{" + k.s + ".")
		writeKeyItems(b, k.items)
		b.WriteByte('}')
	case KindMapping:
		b.WriteByte('{')
		for i, p := range k.pairs {
			if i > 0 {
				b.WriteByte('.')
			}
			writeKeyText(b, p.Key)
			b.WriteByte('.')
			writeKeyText(b, p.Value)
		}
		b.WriteByte('}')
	case KindTaggedMapping:
		b.WriteString("{" + k.s + ".{")
		for i, f := range k.fields {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(f.Key + ":")
			writeKeyText(b, f.Value)
		}
		b.WriteString("}}")
	}
}

func writeKeyItems(b *strings.Builder, items []Value) {
	b.WriteByte('[')
	for i, it := range items {
		if i > 0 {
			b.WriteByte('.')
		}
		writeKeyText(b, it)
	}
	b.WriteByte(']')
}

// SortedMapping creates a Mapping whose pairs are sorted by key. The sort is
// stable, so duplicate keys keep their relative order (and are still reported
// by CheckOrdered).
func SortedMapping(pairs ...Pair) Value {
	sorted := append([]Pair(nil), pairs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return KeyText(sorted[i].Key) < KeyText(sorted[j].Key)
	})
	return Value{kind: KindMapping, pairs: sorted}
}

// SortedTaggedMapping creates a TaggedMapping whose fields are sorted by key.
func SortedTaggedMapping(tag string, fields ...Field) Value {
	sorted := append([]Field(nil), fields...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Key < sorted[j].Key
	})
	return Value{kind: KindTaggedMapping, s: tag, fields: sorted}
}

// MapBuilder accumulates string-keyed entries and produces a sorted Mapping.
// Setting an existing key replaces its value.
type MapBuilder struct {
	index map[string]int
	pairs []Pair
}

// NewMapBuilder returns an empty builder.
func NewMapBuilder() *MapBuilder {
	return &MapBuilder{index: make(map[string]int)}
}

// Set stores v under key and returns the builder for chaining.
func (b *MapBuilder) Set(key string, v Value) *MapBuilder {
	if i, ok := b.index[key]; ok {
		b.pairs[i].Value = v
		return b
	}
	b.index[key] = len(b.pairs)
	b.pairs = append(b.pairs, P(key, v))
	return b
}

// SetIf stores v under key only when cond is true.
func (b *MapBuilder) SetIf(cond bool, key string, v Value) *MapBuilder {
	if cond {
		b.Set(key, v)
	}
	return b
}

// Len returns the number of distinct keys.
func (b *MapBuilder) Len() int { return len(b.pairs) }

// Build returns the sorted Mapping.
func (b *MapBuilder) Build() Value { return SortedMapping(b.pairs...) }

// BuildTagged returns a sorted TaggedMapping with the given tag.
func (b *MapBuilder) BuildTagged(tag string) Value {
	fields := make([]Field, len(b.pairs))
	for i, p := range b.pairs {
		fields[i] = Field{Key: KeyText(p.Key), Value: p.Value}
	}
	return SortedTaggedMapping(tag, fields...)
}

// Sorted returns a copy of v in which every Mapping and TaggedMapping, at any
// depth, has its entries sorted by key.
func Sorted(v Value) Value {
	switch v.kind {
	case KindWrapped:
		return Wrapped(Sorted(v.Inner()))
	case KindTaggedSingle:
		return TaggedSingle(v.s, Sorted(v.Inner()))
	case KindSequence:
		return Value{kind: KindSequence, items: sortedItems(v.items)}
	case KindTaggedSequence:
		return Value{kind: KindTaggedSequence, s: v.s, items: sortedItems(v.items)}
	case KindMapping:
		pairs := make([]Pair, len(v.pairs))
		for i, p := range v.pairs {
			pairs[i] = Pair{Key: Sorted(p.Key), Value: Sorted(p.Value)}
		}
		return SortedMapping(pairs...)
	case KindTaggedMapping:
		fields := make([]Field, len(v.fields))
		for i, f := range v.fields {
			fields[i] = Field{Key: f.Key, Value: Sorted(f.Value)}
		}
		return SortedTaggedMapping(v.s, fields...)
	}
	return v
}

func sortedItems(items []Value) []Value {
	out := make([]Value, len(items))
	for i, it := range items {
		out[i] = Sorted(it)
	}
	return out
}

// CheckOrdered verifies that every Mapping and TaggedMapping in v has keys in
// strictly ascending order. It returns an *OrderError for the first
// violation found in depth-first order.
func CheckOrdered(v Value) error {
	return checkOrdered(v, "$")
}

func checkOrdered(v Value, path string) error {
	switch v.kind {
	case KindWrapped:
		return checkOrdered(v.Inner(), path)
	case KindTaggedSingle:
		return checkOrdered(v.Inner(), path+"."+v.s)
	case KindSequence, KindTaggedSequence:
		if v.kind == KindTaggedSequence {
			path += "." + v.s
		}
		for i, it := range v.items {
			if err := checkOrdered(it, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case KindMapping:
		for i, p := range v.pairs {
			key := KeyText(p.Key)
			if i > 0 {
				if prev := KeyText(v.pairs[i-1].Key); prev >= key {
					return &OrderError{Path: path, Prev: prev, Key: key}
				}
			}
			if err := checkOrdered(p.Value, path+"."+key); err != nil {
				return err
			}
		}
	case KindTaggedMapping:
		path += "." + v.s
		for i, f := range v.fields {
			if i > 0 && v.fields[i-1].Key >= f.Key {
				return &OrderError{Path: path, Prev: v.fields[i-1].Key, Key: f.Key}
			}
			if err := checkOrdered(f.Value, path+"."+f.Key); err != nil {
				return err
			}
		}
	}
	return nil
}
