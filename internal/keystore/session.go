// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package keystore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aplane-algo/icxsign/internal/crypto"
	"github.com/aplane-algo/icxsign/internal/signing"
)

// Session caches one passphrase per address so an interactive shell can sign
// repeatedly without re-prompting. Keys are still decrypted on every Open.
type Session struct {
	store       KeyStore
	passphrases map[string]*crypto.Password
	lock        sync.Mutex
}

// NewSession creates a session backed by store.
func NewSession(store KeyStore) *Session {
	return &Session{
		store:       store,
		passphrases: make(map[string]*crypto.Password),
	}
}

// Open returns the wallet for address, calling prompt when no passphrase is
// cached. A rejected cached passphrase is forgotten and prompt is called once.
func (s *Session) Open(ctx context.Context, address string, prompt func() ([]byte, error)) (*signing.Wallet, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if pw, ok := s.passphrases[address]; ok && !pw.IsEmpty() {
		var w *signing.Wallet
		err := pw.Use(func(b []byte) error {
			var err error
			w, err = s.store.Open(ctx, address, b)
			return err
		})
		if err == nil {
			return w, nil
		}
		if !errors.Is(err, ErrInvalidPassphrase) {
			return nil, err
		}
		pw.Destroy()
		delete(s.passphrases, address)
	}

	raw, err := prompt()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	defer crypto.ZeroBytes(raw)

	w, err := s.store.Open(ctx, address, raw)
	if err != nil {
		return nil, err
	}
	s.passphrases[address] = crypto.NewPassword(raw)
	return w, nil
}

// Forget drops the cached passphrase for address.
func (s *Session) Forget(address string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if pw, ok := s.passphrases[address]; ok {
		pw.Destroy()
		delete(s.passphrases, address)
	}
}

// Destroy zeroes every cached passphrase.
func (s *Session) Destroy() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for a, pw := range s.passphrases {
		pw.Destroy()
		delete(s.passphrases, a)
	}
}
