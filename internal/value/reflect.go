// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package value

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

var (
	// ErrUnsupportedType indicates a Go type with no Value representation
	// (channels, functions, complex numbers, unsafe pointers).
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrTooDeep indicates the Go value nests deeper than maxReflectDepth,
	// which in practice means a pointer cycle.
	ErrTooDeep = errors.New("value nests too deeply")
)

const maxReflectDepth = 256

// Marshaler is implemented by types that convert themselves to a Value.
// A returned error aborts the conversion.
type Marshaler interface {
	ICXValue() (Value, error)
}

// Variant is implemented by enum-like types. A nil payload produces a
// NamedUnit; a struct payload produces a TaggedMapping; a slice or array
// payload produces a TaggedSequence; anything else produces a TaggedSingle.
type Variant interface {
	ICXVariant() (tag string, payload any)
}

// ConversionError reports a failure converting a Go value of Type.
type ConversionError struct {
	Type reflect.Type
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %v: %v", e.Type, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

var (
	valueType     = reflect.TypeOf(Value{})
	marshalerType = reflect.TypeOf((*Marshaler)(nil)).Elem()
	variantType   = reflect.TypeOf((*Variant)(nil)).Elem()
)

// Of converts an arbitrary Go value to a Value.
//
// Structs become Mappings in field declaration order; use Params when the
// result feeds a signing payload.
func Of(x any) (Value, error) {
	return fromReflect(reflect.ValueOf(x), 0)
}

// Params converts x like Of and then sorts every Mapping and TaggedMapping by
// key, at every depth.
func Params(x any) (Value, error) {
	v, err := Of(x)
	if err != nil {
		return Value{}, err
	}
	return Sorted(v), nil
}

// MustOf is like Of but panics on error. Intended for package-level fixtures.
func MustOf(x any) Value {
	v, err := Of(x)
	if err != nil {
		panic(err)
	}
	return v
}

func fromReflect(rv reflect.Value, depth int) (Value, error) {
	if !rv.IsValid() {
		return Absent(), nil
	}
	if depth > maxReflectDepth {
		return Value{}, &ConversionError{Type: rv.Type(), Err: ErrTooDeep}
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Absent(), nil
		}
	}

	if rv.Type() == valueType {
		if !rv.CanInterface() {
			return Value{}, &ConversionError{Type: rv.Type(), Err: ErrUnsupportedType}
		}
		return rv.Interface().(Value), nil
	}
	if rv.Kind() != reflect.Pointer && rv.CanAddr() && rv.Addr().CanInterface() {
		pt := rv.Addr().Type()
		if !rv.Type().Implements(marshalerType) && pt.Implements(marshalerType) ||
			!rv.Type().Implements(variantType) && pt.Implements(variantType) {
			rv = rv.Addr()
		}
	}
	if rv.Type().Implements(marshalerType) && rv.CanInterface() {
		v, err := rv.Interface().(Marshaler).ICXValue()
		if err != nil {
			return Value{}, &ConversionError{Type: rv.Type(), Err: err}
		}
		return v, nil
	}
	if rv.Type().Implements(variantType) && rv.CanInterface() {
		tag, payload := rv.Interface().(Variant).ICXVariant()
		return fromVariant(rv.Type(), tag, payload, depth)
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return SignedInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return UnsignedInt(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Pointer:
		inner, err := fromReflect(rv.Elem(), depth+1)
		if err != nil {
			return Value{}, err
		}
		return Wrapped(inner), nil
	case reflect.Interface:
		return fromReflect(rv.Elem(), depth+1)
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 && !rv.Type().Elem().Implements(marshalerType) {
			return Bytes(byteSlice(rv)), nil
		}
		items, err := sequenceItems(rv, depth)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindSequence, items: items}, nil
	case reflect.Map:
		return fromMap(rv, depth)
	case reflect.Struct:
		if rv.NumField() == 0 {
			return Absent(), nil
		}
		fields, err := structFields(rv, depth)
		if err != nil {
			return Value{}, err
		}
		pairs := make([]Pair, len(fields))
		for i, f := range fields {
			pairs[i] = P(f.Key, f.Value)
		}
		return Value{kind: KindMapping, pairs: pairs}, nil
	}
	return Value{}, &ConversionError{Type: rv.Type(), Err: ErrUnsupportedType}
}

func fromVariant(t reflect.Type, tag string, payload any, depth int) (Value, error) {
	if payload == nil {
		return NamedUnit(tag), nil
	}
	pv := reflect.ValueOf(payload)
	for pv.Kind() == reflect.Pointer && !pv.IsNil() && pv.Elem().Kind() == reflect.Struct {
		pv = pv.Elem()
	}
	switch {
	case pv.Kind() == reflect.Struct && pv.Type() != valueType &&
		!pv.Type().Implements(marshalerType) && !pv.Type().Implements(variantType):
		fields, err := structFields(pv, depth+1)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindTaggedMapping, s: tag, fields: fields}, nil
	case (pv.Kind() == reflect.Slice || pv.Kind() == reflect.Array) && pv.Type().Elem().Kind() != reflect.Uint8:
		items, err := sequenceItems(pv, depth)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: KindTaggedSequence, s: tag, items: items}, nil
	}
	inner, err := fromReflect(pv, depth+1)
	if err != nil {
		return Value{}, err
	}
	return TaggedSingle(tag, inner), nil
}

func byteSlice(rv reflect.Value) []byte {
	if rv.Kind() == reflect.Slice {
		return rv.Bytes()
	}
	out := make([]byte, rv.Len())
	for i := range out {
		out[i] = byte(rv.Index(i).Uint())
	}
	return out
}

func sequenceItems(rv reflect.Value, depth int) ([]Value, error) {
	items := make([]Value, rv.Len())
	for i := range items {
		item, err := fromReflect(rv.Index(i), depth+1)
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return items, nil
}

// fromMap sorts entries by key text, since Go map iteration order is random.
func fromMap(rv reflect.Value, depth int) (Value, error) {
	pairs := make([]Pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := fromReflect(iter.Key(), depth+1)
		if err != nil {
			return Value{}, err
		}
		v, err := fromReflect(iter.Value(), depth+1)
		if err != nil {
			return Value{}, err
		}
		pairs = append(pairs, Pair{Key: k, Value: v})
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return KeyText(pairs[i].Key) < KeyText(pairs[j].Key)
	})
	return Value{kind: KindMapping, pairs: pairs}, nil
}

// structFields returns exported fields in declaration order. Anonymous
// untagged struct fields are flattened into the parent.
func structFields(rv reflect.Value, depth int) ([]Field, error) {
	t := rv.Type()
	fields := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, omitEmpty, skip := fieldName(sf)
		if skip {
			continue
		}
		fv := rv.Field(i)

		if sf.Anonymous && name == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				embedded, err := structFields(fv, depth+1)
				if err != nil {
					return nil, err
				}
				fields = append(fields, embedded...)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if omitEmpty && fv.IsZero() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		v, err := fromReflect(fv, depth+1)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Key: name, Value: v})
	}
	return fields, nil
}

// fieldName reads the icx tag, falling back to the json tag.
func fieldName(sf reflect.StructField) (name string, omitEmpty, skip bool) {
	tag, ok := sf.Tag.Lookup("icx")
	if !ok {
		tag, ok = sf.Tag.Lookup("json")
	}
	if !ok {
		return "", false, false
	}
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return parts[0], omitEmpty, false
}
