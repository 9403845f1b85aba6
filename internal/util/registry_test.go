// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"errors"
	"sync"
	"testing"
)

func TestStringRegistry_SetGet(t *testing.T) {
	r := NewStringRegistry[int]()

	if !r.Set("a", 1) {
		t.Error("expected Set to return true for new key")
	}
	if r.Set("a", 2) {
		t.Error("expected Set to return false for existing key")
	}

	v, ok := r.Get("a")
	if !ok || v != 1 {
		t.Errorf("expected Get(a) = (1, true), got (%d, %v)", v, ok)
	}
	if _, ok := r.Get("nonexistent"); ok {
		t.Error("expected Get(nonexistent) to return false")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestStringRegistry_Lookup(t *testing.T) {
	r := NewStringRegistry[int]()
	r.Set("sign", 1)
	r.Set("show", 2)
	r.Set("encode", 3)
	r.Set("enc", 4)

	tests := []struct {
		name    string
		input   string
		wantKey string
		wantVal int
		wantErr error
	}{
		{"exact", "sign", "sign", 1, nil},
		{"unique prefix", "si", "sign", 1, nil},
		{"exact beats prefix", "enc", "enc", 4, nil},
		{"longer prefix", "enco", "encode", 3, nil},
		{"ambiguous", "s", "", 0, ErrAmbiguousName},
		{"unknown", "verify", "", 0, ErrUnknownName},
		{"empty", "", "", 0, ErrUnknownName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, v, err := r.Lookup(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if key != tt.wantKey || v != tt.wantVal {
				t.Errorf("Lookup(%q) = (%s, %d), want (%s, %d)", tt.input, key, v, tt.wantKey, tt.wantVal)
			}
		})
	}
}

func TestStringRegistry_KeysValuesSorted(t *testing.T) {
	r := NewStringRegistry[int]()
	r.Set("cherry", 3)
	r.Set("apple", 1)
	r.Set("banana", 2)

	wantKeys := []string{"apple", "banana", "cherry"}
	for i, k := range r.Keys() {
		if k != wantKeys[i] {
			t.Errorf("keys[%d] = %s, want %s", i, k, wantKeys[i])
		}
	}
	for i, v := range r.Values() {
		if v != i+1 {
			t.Errorf("values[%d] = %d, want %d", i, v, i+1)
		}
	}
}

func TestStringRegistry_Concurrent(t *testing.T) {
	r := NewStringRegistry[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			r.Set(string(rune('a'+n%26)), n)
			_, _ = r.Get("a")
			_ = r.Keys()
		}(i)
	}
	wg.Wait()
	if r.Len() != 26 {
		t.Errorf("Len = %d, want 26", r.Len())
	}
}
