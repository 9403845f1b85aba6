// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package canon

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/aplane-algo/icxsign/internal/value"
)

func TestEncodeGrammar(t *testing.T) {
	tests := []struct {
		name string
		in   value.Value
		want string
	}{
		{"true", value.Bool(true), "true"},
		{"false", value.Bool(false), "false"},
		{"negative int", value.SignedInt(-5), "-5"},
		{"zero", value.SignedInt(0), "0"},
		{"max uint", value.UnsignedInt(math.MaxUint64), "18446744073709551615"},
		{"min int", value.SignedInt(math.MinInt64), "-9223372036854775808"},
		{"integral float", value.Float(1), "1"},
		{"fraction", value.Float(0.1), "0.1"},
		{"large float", value.Float(1e21), "1000000000000000000000"},
		{"small float", value.Float(1e-7), "0.0000001"},
		{"negative zero", value.Float(math.Copysign(0, -1)), "-0"},
		{"text", value.Text("hx00"), "hx00"},
		{"text is not escaped", value.Text("a.b{c}[d]"), "a.b{c}[d]"},
		{"empty text", value.Text(""), ""},
		{"bytes", value.Bytes([]byte{0, 1, 255}), "[0.1.255]"},
		{"empty bytes", value.Bytes(nil), "[]"},
		{"absent", value.Absent(), "\x00"},
		{"named unit", value.NamedUnit("Active"), "Active"},
		{"wrapped", value.Wrapped(value.SignedInt(3)), "3"},
		{"wrapped absent", value.Wrapped(value.Absent()), "\x00"},
		{"tagged single", value.TaggedSingle("Some", value.Text("x")), "{Some.x}"},
		{"sequence", value.Sequence(value.SignedInt(1), value.SignedInt(2)), "[1.2]"},
		{"empty sequence", value.Sequence(), "[]"},
		{
			"tagged sequence",
			value.TaggedSequence("Pair", value.SignedInt(1), value.Text("a")),
			"{Pair.[1.a]}",
		},
		{
			"mapping",
			value.Mapping(value.P("a", value.SignedInt(1)), value.P("b", value.SignedInt(2))),
			"{a.1.b.2}",
		},
		{"empty mapping", value.Mapping(), "{}"},
		{
			"tagged mapping",
			value.TaggedMapping("Foo", value.F("a", value.SignedInt(1))),
			"{Foo.{a:1}}",
		},
		{
			"tagged mapping two fields",
			value.TaggedMapping("Foo", value.F("a", value.SignedInt(1)), value.F("b", value.Text("x"))),
			"{Foo.{a:1.b:x}}",
		},
		{
			"nested",
			value.Mapping(value.P("data", value.Sequence(value.Mapping(value.P("k", value.Absent()))))),
			"{data.[{k.\x00}]}",
		},
		{
			"non-text keys",
			value.Mapping(value.Pair{Key: value.SignedInt(1), Value: value.Bool(true)}),
			"{1.true}",
		},
		{
			"text ending in bracket keeps separator",
			value.Sequence(value.Text("a["), value.Text("b")),
			"[a[.b]",
		},
		{
			"text ending in brace keeps separator",
			value.Mapping(value.P("k{", value.Text("v"))),
			"{k{.v}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.in)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Encode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	v := value.Mapping(
		value.P("list", value.Sequence(value.Float(2.5), value.Bytes([]byte{7}))),
		value.P("tag", value.TaggedMapping("T", value.F("x", value.NamedUnit("U")))),
	)
	first, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Encode(v)
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if got != first {
			t.Errorf("run %d = %q, want %q", i, got, first)
		}
	}
}

func TestEncodeDoesNotReorder(t *testing.T) {
	ba, _ := Encode(value.Mapping(value.P("b", value.SignedInt(1)), value.P("a", value.SignedInt(2))))
	ab, _ := Encode(value.Mapping(value.P("a", value.SignedInt(2)), value.P("b", value.SignedInt(1))))
	if ba == ab {
		t.Fatalf("encodings of differently ordered mappings are equal: %q", ba)
	}
	if ba != "{b.1.a.2}" {
		t.Errorf("got %q, want {b.1.a.2}", ba)
	}
}

func TestEncodeErrors(t *testing.T) {
	deep := value.SignedInt(1)
	for i := 0; i < DefaultMaxDepth+1; i++ {
		deep = value.Sequence(deep)
	}

	tests := []struct {
		name string
		in   value.Value
		want error
	}{
		{"NaN", value.Float(math.NaN()), ErrNonFinite},
		{"+Inf", value.Float(math.Inf(1)), ErrNonFinite},
		{"nested -Inf", value.Sequence(value.SignedInt(1), value.Float(math.Inf(-1))), ErrNonFinite},
		{"too deep", deep, ErrDepthExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Encode() error = %v, want %v", err, tt.want)
			}
			if got != "" {
				t.Errorf("Encode() returned partial output %q", got)
			}
			var ee *EncodeError
			if !errors.As(err, &ee) {
				t.Errorf("error type = %T, want *EncodeError", err)
			}
		})
	}
}

func TestEncoderMaxDepth(t *testing.T) {
	v := value.Sequence(value.Sequence(value.Sequence(value.SignedInt(1))))

	if _, err := NewEncoder(Options{MaxDepth: 2}).Encode(v); !errors.Is(err, ErrDepthExceeded) {
		t.Errorf("MaxDepth 2: err = %v, want ErrDepthExceeded", err)
	}
	got, err := NewEncoder(Options{MaxDepth: 3}).Encode(v)
	if err != nil {
		t.Fatalf("MaxDepth 3: %v", err)
	}
	if got != "[[[1]]]" {
		t.Errorf("got %q", got)
	}
}

func TestEncoderCheckOrder(t *testing.T) {
	v := value.Mapping(value.P("b", value.SignedInt(1)), value.P("a", value.SignedInt(2)))

	if _, err := NewEncoder(DefaultOptions()).Encode(v); err != nil {
		t.Fatalf("unchecked encoder rejected value: %v", err)
	}

	_, err := NewEncoder(Options{CheckOrder: true}).Encode(v)
	if !errors.Is(err, ErrOrderingViolation) {
		t.Fatalf("err = %v, want ErrOrderingViolation", err)
	}
	var oe *value.OrderError
	if !errors.As(err, &oe) {
		t.Fatalf("err does not wrap *value.OrderError: %v", err)
	}
	if oe.Prev != "b" || oe.Key != "a" {
		t.Errorf("OrderError = %+v", oe)
	}
}

func TestEncodeParams(t *testing.T) {
	tests := []struct {
		name string
		in   value.Value
		want string
	}{
		{
			"mapping",
			value.Mapping(value.P("a", value.SignedInt(1)), value.P("b", value.SignedInt(2))),
			"a.1.b.2",
		},
		{"tagged mapping", value.TaggedMapping("Foo", value.F("a", value.SignedInt(1))), "Foo.{a:1}"},
		{"empty mapping", value.Mapping(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeParams(tt.in)
			if err != nil {
				t.Fatalf("EncodeParams() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EncodeParams() = %q, want %q", got, tt.want)
			}
			full, _ := Encode(tt.in)
			if got != full[1:len(full)-1] {
				t.Errorf("EncodeParams() = %q, not Encode() %q without its ends", got, full)
			}
		})
	}

	if _, err := EncodeParams(value.Sequence()); !errors.Is(err, ErrUnrepresentable) {
		t.Errorf("sequence root: err = %v, want ErrUnrepresentable", err)
	}
}

// The flat parameter form reproduces the serialization published in the ICON
// JSON-RPC v3 documentation for icx_sendTransaction.
func TestEncodeParamsNetworkVector(t *testing.T) {
	params := value.SortedMapping(
		value.P("version", value.Text("0x3")),
		value.P("from", value.Text("hxbe258ceb872e08851f1f59694dac2558708ece11")),
		value.P("to", value.Text("hx5bfdb090f43a808005ffc27c25b213145e80b7cd")),
		value.P("value", value.Text("0xde0b6b3a7640000")),
		value.P("stepLimit", value.Text("0x12345")),
		value.P("timestamp", value.Text("0x563a6cf330136")),
		value.P("nid", value.Text("0x1")),
		value.P("nonce", value.Text("0x1")),
	)
	body, err := EncodeParams(params)
	if err != nil {
		t.Fatalf("EncodeParams: %v", err)
	}
	got := "icx_sendTransaction." + body
	want := "icx_sendTransaction.from.hxbe258ceb872e08851f1f59694dac2558708ece11.nid.0x1.nonce.0x1." +
		"stepLimit.0x12345.timestamp.0x563a6cf330136.to.hx5bfdb090f43a808005ffc27c25b213145e80b7cd." +
		"value.0xde0b6b3a7640000.version.0x3"
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestEncodeAny(t *testing.T) {
	type params struct {
		A string `icx:"a"`
		B []int  `icx:"b"`
	}
	got, err := EncodeAny(params{A: "x", B: []int{1, 2}})
	if err != nil {
		t.Fatalf("EncodeAny: %v", err)
	}
	if got != "{a.x.b.[1.2]}" {
		t.Errorf("got %q", got)
	}

	type marker struct{}
	type holder struct {
		A marker `icx:"A"`
	}
	if got, err := EncodeAny(holder{}); err != nil || got != "{A.\x00}" {
		t.Errorf("zero-size field: got %q, %v; want %q", got, err, "{A.\x00}")
	}
	if got, err := EncodeAny(marker{}); err != nil || got != "\x00" {
		t.Errorf("empty struct: got %q, %v", got, err)
	}
	if got, err := EncodeAny(emptyVariant{}); err != nil || got != "{Empty.{}}" {
		t.Errorf("empty struct variant: got %q, %v; want %q", got, err, "{Empty.{}}")
	}

	_, err = EncodeAny(map[string]any{"c": make(chan int)})
	if !errors.Is(err, ErrUnrepresentable) {
		t.Fatalf("err = %v, want ErrUnrepresentable", err)
	}
	if !errors.Is(err, value.ErrUnsupportedType) {
		t.Errorf("err = %v, want wrapped ErrUnsupportedType", err)
	}
	if !strings.Contains(err.Error(), "map[string]interface {}") {
		t.Errorf("error %q does not name the input type", err)
	}
}

type emptyVariant struct{}

func (emptyVariant) ICXVariant() (string, any) { return "Empty", struct{}{} }
