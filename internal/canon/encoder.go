// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package canon produces the canonical text encoding of ICON transactions.
//
// The encoding is the exact byte string that is hashed and signed, so every
// production below is fixed:
//
//	Bool                 true | false
//	SignedInt/UnsignedInt  decimal, sign only if negative
//	Float                shortest round-trip decimal, no exponent
//	Text                 verbatim, no escaping
//	Bytes                [b0.b1...] with each byte in decimal
//	Absent               a single NUL byte
//	NamedUnit            name
//	Wrapped              inner
//	TaggedSingle         {tag.inner}
//	Sequence             [a.b.c]
//	TaggedSequence       {tag.[a.b.c]}
//	Mapping              {k1.v1.k2.v2}
//	TaggedMapping        {tag.{k1:v1.k2:v2}}
//
// Plain mappings separate key from value with '.', tagged mappings with ':'.
// Mapping order is never changed by the encoder.
package canon

import (
	"math"
	"strconv"
	"strings"

	"github.com/aplane-algo/icxsign/internal/value"
)

// DefaultMaxDepth bounds recursion when Options.MaxDepth is not set.
const DefaultMaxDepth = 64

// Options configures an Encoder.
type Options struct {
	// MaxDepth is the deepest container nesting accepted. Values <= 0 select
	// DefaultMaxDepth.
	MaxDepth int

	// CheckOrder rejects bare values whose mappings are out of key order.
	// Transactions are always checked.
	CheckOrder bool
}

// DefaultOptions returns the options used by the package-level functions.
func DefaultOptions() Options {
	return Options{MaxDepth: DefaultMaxDepth}
}

// Encoder encodes values with fixed options. It holds no per-call state and
// is safe for concurrent use.
type Encoder struct {
	opts Options
}

// NewEncoder returns an Encoder using opts.
func NewEncoder(opts Options) *Encoder {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Encoder{opts: opts}
}

var defaultEncoder = NewEncoder(DefaultOptions())

// Encode returns the canonical text of v using default options.
func Encode(v value.Value) (string, error) {
	return defaultEncoder.Encode(v)
}

// EncodeParams returns the canonical text of a Mapping or TaggedMapping with
// the enclosing braces removed, using default options.
func EncodeParams(v value.Value) (string, error) {
	return defaultEncoder.EncodeParams(v)
}

// EncodeAny converts x with value.Of and encodes the result.
func EncodeAny(x any) (string, error) {
	return defaultEncoder.EncodeAny(x)
}

// Encode returns the canonical text of v. On error no partial output is
// returned.
func (e *Encoder) Encode(v value.Value) (string, error) {
	if e.opts.CheckOrder {
		if err := value.CheckOrdered(v); err != nil {
			return "", newError(OrderingViolation, err, "")
		}
	}
	w := writer{maxDepth: e.opts.MaxDepth}
	if err := w.write(v, 0); err != nil {
		return "", err
	}
	return w.sb.String(), nil
}

// EncodeAny converts x with value.Of and encodes the result. Conversion
// failures are reported as Unrepresentable.
func (e *Encoder) EncodeAny(x any) (string, error) {
	v, err := value.Of(x)
	if err != nil {
		return "", newError(Unrepresentable, err, "%T", x)
	}
	return e.Encode(v)
}

// EncodeParams treats a top-level record as a flat parameter list: it encodes
// v and strips the first and last byte (the enclosing braces). Only Mapping
// and TaggedMapping roots are accepted.
func (e *Encoder) EncodeParams(v value.Value) (string, error) {
	switch v.Kind() {
	case value.KindMapping, value.KindTaggedMapping:
	default:
		return "", newError(Unrepresentable, nil, "params root is %s, want mapping", v.Kind())
	}
	s, err := e.Encode(v)
	if err != nil {
		return "", err
	}
	return s[1 : len(s)-1], nil
}

// writer accumulates the output of one encoding call.
type writer struct {
	sb       strings.Builder
	maxDepth int
}

func (w *writer) write(v value.Value, depth int) error {
	if depth > w.maxDepth {
		return newError(DepthExceeded, nil, "limit %d", w.maxDepth)
	}

	switch v.Kind() {
	case value.KindAbsent:
		w.sb.WriteByte(0)

	case value.KindBool:
		w.sb.WriteString(strconv.FormatBool(v.AsBool()))

	case value.KindSignedInt:
		w.sb.WriteString(strconv.FormatInt(v.AsInt(), 10))

	case value.KindUnsignedInt:
		w.sb.WriteString(strconv.FormatUint(v.AsUint(), 10))

	case value.KindFloat:
		return w.writeFloat(v.AsFloat())

	case value.KindText, value.KindNamedUnit:
		w.sb.WriteString(v.AsText())

	case value.KindBytes:
		w.sb.WriteByte('[')
		for i, b := range v.AsBytes() {
			if i > 0 {
				w.sb.WriteByte('.')
			}
			w.sb.WriteString(strconv.FormatUint(uint64(b), 10))
		}
		w.sb.WriteByte(']')

	case value.KindWrapped:
		return w.write(v.Inner(), depth+1)

	case value.KindTaggedSingle:
		w.sb.WriteByte('{')
		w.sb.WriteString(v.Tag())
		w.sb.WriteByte('.')
		if err := w.write(v.Inner(), depth+1); err != nil {
			return err
		}
		w.sb.WriteByte('}')

	case value.KindSequence:
		return w.writeItems(v.Items(), depth)

	case value.KindTaggedSequence:
		w.sb.WriteByte('{')
		w.sb.WriteString(v.Tag())
		w.sb.WriteByte('.')
		if err := w.writeItems(v.Items(), depth); err != nil {
			return err
		}
		w.sb.WriteByte('}')

	case value.KindMapping:
		w.sb.WriteByte('{')
		for i, p := range v.Pairs() {
			if i > 0 {
				w.sb.WriteByte('.')
			}
			if err := w.write(p.Key, depth+1); err != nil {
				return err
			}
			w.sb.WriteByte('.')
			if err := w.write(p.Value, depth+1); err != nil {
				return err
			}
		}
		w.sb.WriteByte('}')

	case value.KindTaggedMapping:
		w.sb.WriteByte('{')
		w.sb.WriteString(v.Tag())
		w.sb.WriteString(".{")
		for i, f := range v.Fields() {
			if i > 0 {
				w.sb.WriteByte('.')
			}
			w.sb.WriteString(f.Key)
			w.sb.WriteByte(':')
			if err := w.write(f.Value, depth+1); err != nil {
				return err
			}
		}
		w.sb.WriteString("}}")

	default:
		return newError(Unrepresentable, nil, "unknown kind %d", v.Kind())
	}
	return nil
}

func (w *writer) writeItems(items []value.Value, depth int) error {
	w.sb.WriteByte('[')
	for i, it := range items {
		if i > 0 {
			w.sb.WriteByte('.')
		}
		if err := w.write(it, depth+1); err != nil {
			return err
		}
	}
	w.sb.WriteByte(']')
	return nil
}

// writeFloat emits the shortest decimal that parses back to f, never in
// exponent form.
func (w *writer) writeFloat(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return newError(NonFinite, nil, "%v", f)
	}
	w.sb.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}
