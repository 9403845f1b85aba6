// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keystore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aplane-algo/icxsign/internal/crypto"
	"github.com/aplane-algo/icxsign/internal/fsutil"
	"github.com/aplane-algo/icxsign/internal/signing"
)

// Dir implements KeyStore over a flat directory of keystore JSON files.
// Any file name is accepted; the address is read from the document.
type Dir struct {
	path string

	// address -> metadata, populated by Scan
	cache     map[string]KeyMetadata
	cacheLock sync.RWMutex
}

// NewDir creates a key store rooted at path. Call Scan to populate it.
func NewDir(path string) *Dir {
	return &Dir{
		path:  path,
		cache: make(map[string]KeyMetadata),
	}
}

// Path returns the directory being indexed.
func (d *Dir) Path() string { return d.path }

// Type returns the backend name.
func (d *Dir) Type() string { return "dir" }

// Scan re-reads the directory and replaces the index. Unreadable or
// non-keystore files are skipped. A missing directory yields an empty index.
// Returns the number of keys found.
func (d *Dir) Scan() (int, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("failed to read keystore directory: %w", err)
	}

	cache := make(map[string]KeyMetadata, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		full := filepath.Join(d.path, e.Name())
		ks, err := crypto.LoadKeystore(full)
		if err != nil || !strings.HasPrefix(ks.Address, signing.AddressPrefix) {
			continue
		}
		var mod time.Time
		if info, err := e.Info(); err == nil {
			mod = info.ModTime()
		}
		// On duplicates the newest file wins
		if prev, ok := cache[ks.Address]; ok && prev.ModTime.After(mod) {
			continue
		}
		cache[ks.Address] = KeyMetadata{
			Address:  ks.Address,
			Path:     full,
			ID:       ks.ID,
			CoinType: ks.CoinType,
			ModTime:  mod,
		}
	}

	d.cacheLock.Lock()
	d.cache = cache
	d.cacheLock.Unlock()
	return len(cache), nil
}

// List returns metadata for every indexed key, ordered by address.
func (d *Dir) List(ctx context.Context) ([]KeyMetadata, error) {
	d.cacheLock.RLock()
	defer d.cacheLock.RUnlock()

	out := make([]KeyMetadata, 0, len(d.cache))
	for _, m := range d.cache {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

// GetMetadata returns metadata for address.
func (d *Dir) GetMetadata(ctx context.Context, address string) (*KeyMetadata, error) {
	d.cacheLock.RLock()
	defer d.cacheLock.RUnlock()

	m, ok := d.cache[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, address)
	}
	return &m, nil
}

// Open decrypts the keystore for address.
func (d *Dir) Open(ctx context.Context, address string, passphrase []byte) (*signing.Wallet, error) {
	meta, err := d.GetMetadata(ctx, address)
	if err != nil {
		return nil, err
	}
	w, err := signing.FromKeystore(meta.Path, passphrase)
	if errors.Is(err, crypto.ErrBadPassword) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPassphrase, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open key %s: %w", address, err)
	}
	return w, nil
}

// Store validates keystore JSON, writes it under a wallet-style file name
// and indexes it.
func (d *Dir) Store(ctx context.Context, keystoreJSON []byte) (string, error) {
	ks, err := crypto.ParseKeystore(keystoreJSON)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKeystore, err)
	}
	if !strings.HasPrefix(ks.Address, signing.AddressPrefix) {
		return "", fmt.Errorf("%w: address %q", ErrInvalidKeystore, ks.Address)
	}

	d.cacheLock.Lock()
	defer d.cacheLock.Unlock()

	if _, ok := d.cache[ks.Address]; ok {
		return "", fmt.Errorf("%w: %s", ErrKeyExists, ks.Address)
	}
	if err := fsutil.MkdirAll(d.path); err != nil {
		return "", fmt.Errorf("failed to create keystore directory: %w", err)
	}

	now := time.Now().UTC()
	full := filepath.Join(d.path, FileName(ks.Address, now))
	if err := fsutil.WriteFile(full, keystoreJSON); err != nil {
		return "", fmt.Errorf("failed to write keystore: %w", err)
	}
	d.cache[ks.Address] = KeyMetadata{
		Address:  ks.Address,
		Path:     full,
		ID:       ks.ID,
		CoinType: ks.CoinType,
		ModTime:  now,
	}
	return full, nil
}

// Delete removes the keystore file for address and drops it from the index.
func (d *Dir) Delete(ctx context.Context, address string) error {
	d.cacheLock.Lock()
	defer d.cacheLock.Unlock()

	m, ok := d.cache[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, address)
	}
	if err := os.Remove(m.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete keystore: %w", err)
	}
	delete(d.cache, address)
	return nil
}

// Addresses returns the indexed addresses in order.
func (d *Dir) Addresses() []string {
	d.cacheLock.RLock()
	defer d.cacheLock.RUnlock()

	out := make([]string, 0, len(d.cache))
	for a := range d.cache {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// FileName returns the file name ICON wallets use for a keystore,
// e.g. UTC--2026-10-18T09-30-00.000000000Z--hx....
func FileName(address string, t time.Time) string {
	ts := strings.ReplaceAll(t.UTC().Format("2006-01-02T15:04:05.000000000Z"), ":", "-")
	return "UTC--" + ts + "--" + address
}
