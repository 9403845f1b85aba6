// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package txfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aplane-algo/icxsign/internal/canon"
	"github.com/aplane-algo/icxsign/internal/value"
)

const sendYAML = `
method: icx_sendTransaction
params:
  version: "0x3"
  from: hxbe258ceb872e08851f1f59694dac2558708ece11
  to: hx5bfdb090f43a808005ffc27c25b213145e80b7cd
  value: "0xde0b6b3a7640000"
  stepLimit: "0x12345"
  timestamp: "0x563a6cf330136"
  nid: "0x1"
  nonce: "0x1"
`

const sendPayload = "icx_sendTransaction.params.from.hxbe258ceb872e08851f1f59694dac2558708ece11.nid.0x1.nonce.0x1.stepLimit.0x12345.timestamp.0x563a6cf330136.to.hx5bfdb090f43a808005ffc27c25b213145e80b7cd.value.0xde0b6b3a7640000.version.0x3"

func encodeFlat(t *testing.T, tx canon.Transaction) string {
	t.Helper()
	body, err := canon.EncodeParams(tx.Params)
	if err != nil {
		t.Fatalf("EncodeParams: %v", err)
	}
	return tx.Method + ".params." + body
}

func TestParseYAML(t *testing.T) {
	tx, err := Parse([]byte(sendYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := encodeFlat(t, tx); got != sendPayload {
		t.Errorf("payload =\n%s\nwant\n%s", got, sendPayload)
	}
	if err := value.CheckOrdered(tx.Params); err != nil {
		t.Errorf("params not ordered: %v", err)
	}
}

func TestParseJSON(t *testing.T) {
	doc := `{"params": {"to": "cx01", "data": {"params": {"b": 2, "a": [1, true, null]}, "method": "transfer"}}, "method": "icx_call"}`
	tx, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := canon.EncodeTransaction(tx)
	if err != nil {
		t.Fatalf("EncodeTransaction: %v", err)
	}
	want := "icx_call.params.{data.{method.transfer.params.{a.[1.true.\x00].b.2}}.to.cx01}"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseScalars(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want value.Value
	}{
		{"decimal int", "x: 42", value.SignedInt(42)},
		{"negative int", "x: -7", value.SignedInt(-7)},
		{"large uint", "x: 18446744073709551615", value.UnsignedInt(18446744073709551615)},
		{"hex literal", "x: 0x10", value.Text("0x10")},
		{"upper hex literal", "x: 0X1F", value.Text("0X1F")},
		{"octal literal", "x: 0o17", value.Text("0o17")},
		{"leading zero literal", "x: 017", value.Text("017")},
		{"negative leading zero", "x: -017", value.Text("-017")},
		{"zero", "x: 0", value.SignedInt(0)},
		{"quoted hex", `x: "0x10"`, value.Text("0x10")},
		{"float", "x: 1.5", value.Float(1.5)},
		{"bool", "x: True", value.Bool(true)},
		{"null", "x: ~", value.Absent()},
		{"binary", "x: !!binary AQID", value.Bytes([]byte{1, 2, 3})},
		{"timestamp", "x: 2026-10-18", value.Text("2026-10-18")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := Parse([]byte("method: m\nparams:\n  " + tt.doc + "\n"))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			got := tx.Params.Pairs()[0].Value
			if got.Kind() != tt.want.Kind() || got.String() != tt.want.String() {
				t.Errorf("got %s %s, want %s %s", got.Kind(), got, tt.want.Kind(), tt.want)
			}
		})
	}
}

func TestParseAliases(t *testing.T) {
	doc := `
method: m
params:
  a: &shared {k: v}
  b: *shared
`
	tx, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := encodeFlat(t, tx); got != "m.params.a.{k.v}.b.{k.v}" {
		t.Errorf("got %q", got)
	}
}

func TestParseNoParams(t *testing.T) {
	tx, err := Parse([]byte("method: icx_getLastBlock\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !tx.Params.IsAbsent() {
		t.Errorf("params = %s, want absent", tx.Params)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"no method", "params: {a: b}", ErrMissingMethod},
		{"empty method", `method: ""`, ErrMissingMethod},
		{"method not string", "method: 5", ErrInvalidDocument},
		{"duplicate top key", "method: a\nmethod: b", ErrDuplicateKey},
		{"duplicate param key", "method: m\nparams:\n  a: 1\n  a: 2", ErrDuplicateKey},
		{"params list", "method: m\nparams: [1]", ErrInvalidDocument},
		{"unknown field", "method: m\nsignature: x", ErrInvalidDocument},
		{"list root", "- 1", ErrInvalidDocument},
		{"empty", "", ErrInvalidDocument},
		{"syntax", "method: [", ErrInvalidDocument},
		{"complex key", "method: m\nparams:\n  ? [a]\n  : 1", ErrInvalidDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.yaml")
	if err := os.WriteFile(path, []byte(sendYAML), 0600); err != nil {
		t.Fatal(err)
	}
	tx, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tx.Method != "icx_sendTransaction" {
		t.Errorf("method = %s", tx.Method)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWithDefault(t *testing.T) {
	tx := canon.Transaction{Method: "m", Params: value.SortedMapping(value.P("to", value.Text("hx2")))}

	got := WithDefault(tx, "nid", value.Text("0x1"))
	if s := encodeFlat(t, got); s != "m.params.nid.0x1.to.hx2" {
		t.Errorf("added: %q", s)
	}

	kept := WithDefault(got, "nid", value.Text("0x3"))
	if s := encodeFlat(t, kept); s != "m.params.nid.0x1.to.hx2" {
		t.Errorf("existing key replaced: %q", s)
	}

	absent := WithDefault(canon.Transaction{Method: "m", Params: value.Absent()}, "from", value.Text("hx1"))
	if s := encodeFlat(t, absent); s != "m.params.from.hx1" {
		t.Errorf("absent params: %q", s)
	}

	seq := canon.Transaction{Method: "m", Params: value.Sequence()}
	if WithDefault(seq, "a", value.Text("b")).Params.Kind() != value.KindSequence {
		t.Error("sequence params changed")
	}
}
