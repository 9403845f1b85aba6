// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keystore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aplane-algo/icxsign/internal/crypto"
	"github.com/aplane-algo/icxsign/internal/signing"
)

// testScrypt keeps the suite fast; never use it for real keys.
var testScrypt = crypto.ScryptParams{N: 1 << 10, R: 8, P: 1}

func newKeystoreJSON(t *testing.T, password string) (*signing.Wallet, []byte) {
	t.Helper()
	w, err := signing.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	data, err := w.Export([]byte(password), testScrypt)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	return w, data
}

func TestDirScan(t *testing.T) {
	dir := t.TempDir()
	w1, data1 := newKeystoreJSON(t, "pw")
	w2, data2 := newKeystoreJSON(t, "pw")

	files := map[string][]byte{
		"one.json":    data1,
		"two":         data2,
		"notes.txt":   []byte("hello"),
		".hidden":     data1,
		"broken.json": []byte("{"),
	}
	for name, b := range files {
		if err := os.WriteFile(filepath.Join(dir, name), b, 0600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0700); err != nil {
		t.Fatal(err)
	}

	d := NewDir(dir)
	n, err := d.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if n != 2 {
		t.Fatalf("Scan found %d keys, want 2", n)
	}

	list, err := d.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if list[0].Address > list[1].Address {
		t.Error("List is not sorted by address")
	}
	for _, w := range []*signing.Wallet{w1, w2} {
		m, err := d.GetMetadata(context.Background(), w.Address())
		if err != nil {
			t.Errorf("GetMetadata(%s): %v", w.Address(), err)
			continue
		}
		if m.CoinType != crypto.CoinTypeICX || m.ID == "" {
			t.Errorf("metadata = %+v", m)
		}
	}
}

func TestDirScanMissing(t *testing.T) {
	d := NewDir(filepath.Join(t.TempDir(), "absent"))
	n, err := d.Scan()
	if err != nil || n != 0 {
		t.Errorf("Scan = (%d, %v), want (0, nil)", n, err)
	}
}

func TestDirOpen(t *testing.T) {
	ctx := context.Background()
	w, data := newKeystoreJSON(t, "secret")
	d := NewDir(t.TempDir())
	if _, err := d.Store(ctx, data); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := d.Open(ctx, w.Address(), []byte("secret"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer got.Zero()
	if got.Address() != w.Address() {
		t.Errorf("address = %s, want %s", got.Address(), w.Address())
	}

	if _, err := d.Open(ctx, w.Address(), []byte("wrong")); !errors.Is(err, ErrInvalidPassphrase) {
		t.Errorf("wrong passphrase: err = %v", err)
	}
	if _, err := d.Open(ctx, "hx0000000000000000000000000000000000000000", []byte("secret")); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("unknown address: err = %v", err)
	}
}

func TestDirStoreDelete(t *testing.T) {
	ctx := context.Background()
	w, data := newKeystoreJSON(t, "pw")
	dir := filepath.Join(t.TempDir(), "keys")
	d := NewDir(dir)

	path, err := d.Store(ctx, data)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("stored at %s", path)
	}
	if _, err := d.Store(ctx, data); !errors.Is(err, ErrKeyExists) {
		t.Errorf("duplicate store: err = %v", err)
	}
	if _, err := d.Store(ctx, []byte(`{"version":3,"address":"cx01"}`)); !errors.Is(err, ErrInvalidKeystore) {
		t.Errorf("bad address: err = %v", err)
	}

	// A fresh index sees the stored file.
	other := NewDir(dir)
	if n, _ := other.Scan(); n != 1 {
		t.Errorf("rescan found %d keys", n)
	}

	if err := d.Delete(ctx, w.Address()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("keystore file still exists")
	}
	if err := d.Delete(ctx, w.Address()); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
	if len(d.Addresses()) != 0 {
		t.Error("index not empty after delete")
	}
}

func TestFileName(t *testing.T) {
	ts := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	got := FileName("hx01", ts)
	want := "UTC--2026-10-18T09-30-00.000000000Z--hx01"
	if got != want {
		t.Errorf("FileName = %s, want %s", got, want)
	}
}

func TestDirWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	d := NewDir(dir)
	reloaded := make(chan int, 4)
	if err := d.Watch(ctx, func(n int, err error) {
		if err == nil {
			reloaded <- n
		}
	}); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	_, data := newKeystoreJSON(t, "pw")
	if err := os.WriteFile(filepath.Join(dir, "new.json"), data, 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case n := <-reloaded:
		if n != 1 {
			t.Errorf("reload saw %d keys, want 1", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after file creation")
	}
}

type countingStore struct {
	*Dir
	opens int
}

func (c *countingStore) Open(ctx context.Context, address string, pw []byte) (*signing.Wallet, error) {
	c.opens++
	return c.Dir.Open(ctx, address, pw)
}

func TestSessionCachesPassphrase(t *testing.T) {
	ctx := context.Background()
	w, data := newKeystoreJSON(t, "pw")
	d := NewDir(t.TempDir())
	if _, err := d.Store(ctx, data); err != nil {
		t.Fatal(err)
	}
	store := &countingStore{Dir: d}
	s := NewSession(store)
	defer s.Destroy()

	prompts := 0
	prompt := func() ([]byte, error) {
		prompts++
		return []byte("pw"), nil
	}

	for i := 0; i < 3; i++ {
		got, err := s.Open(ctx, w.Address(), prompt)
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		got.Zero()
	}
	if prompts != 1 {
		t.Errorf("prompted %d times, want 1", prompts)
	}
	if store.opens != 3 {
		t.Errorf("decrypted %d times, want 3", store.opens)
	}

	s.Forget(w.Address())
	if _, err := s.Open(ctx, w.Address(), prompt); err != nil {
		t.Fatal(err)
	}
	if prompts != 2 {
		t.Errorf("prompted %d times after Forget, want 2", prompts)
	}
}

func TestSessionRejectsWrongPassphrase(t *testing.T) {
	ctx := context.Background()
	w, data := newKeystoreJSON(t, "pw")
	d := NewDir(t.TempDir())
	if _, err := d.Store(ctx, data); err != nil {
		t.Fatal(err)
	}
	s := NewSession(d)

	_, err := s.Open(ctx, w.Address(), func() ([]byte, error) { return []byte("bad"), nil })
	if !errors.Is(err, ErrInvalidPassphrase) {
		t.Errorf("err = %v, want ErrInvalidPassphrase", err)
	}
	_, err = s.Open(ctx, w.Address(), func() ([]byte, error) { return nil, errors.New("cancelled") })
	if err == nil {
		t.Error("expected prompt error")
	}
}
