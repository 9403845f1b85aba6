// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package keystore indexes a directory of encrypted ICON keystore files by
// address and opens them into signing wallets on demand.
package keystore

import (
	"context"
	"errors"
	"time"

	"github.com/aplane-algo/icxsign/internal/signing"
)

// Common errors for key store operations
var (
	ErrKeyNotFound       = errors.New("key not found")
	ErrKeyExists         = errors.New("key already exists")
	ErrInvalidKeystore   = errors.New("invalid keystore file")
	ErrInvalidPassphrase = errors.New("invalid passphrase")
)

// KeyMetadata contains non-sensitive information about a stored key.
type KeyMetadata struct {
	Address  string    `json:"address"`
	Path     string    `json:"path"`
	ID       string    `json:"id,omitempty"`
	CoinType string    `json:"coin_type,omitempty"`
	ModTime  time.Time `json:"mod_time"`
}

// KeyStore is the storage backend for wallet keys.
// Keys are decrypted only when Open is called.
type KeyStore interface {
	// List returns metadata for all known keys, ordered by address.
	List(ctx context.Context) ([]KeyMetadata, error)

	// GetMetadata returns metadata for one address.
	GetMetadata(ctx context.Context, address string) (*KeyMetadata, error)

	// Open decrypts the key for address.
	// Caller must call Zero on the returned wallet when done.
	Open(ctx context.Context, address string, passphrase []byte) (*signing.Wallet, error)

	// Store writes keystore JSON and indexes it. Returns the file path.
	Store(ctx context.Context, keystoreJSON []byte) (string, error)

	// Delete removes the keystore file for address.
	Delete(ctx context.Context, address string) error

	// Type returns the backend name.
	Type() string
}
