// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package crypto holds key-at-rest handling: ICON keystore files and helpers
// for wiping secrets from memory.
package crypto

import (
	"crypto/subtle"
	"runtime"
	"sync"
)

// ZeroBytes overwrites b with zeros.
func ZeroBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	runtime.KeepAlive(b)
}

// Password holds a keystore password read from a terminal or file so it can
// be wiped after use.
type Password struct {
	mu   sync.RWMutex
	data []byte
}

// NewPassword copies b. The caller may zero b afterwards.
func NewPassword(b []byte) *Password {
	data := make([]byte, len(b))
	copy(data, b)
	return &Password{data: data}
}

// Use calls fn with the password bytes. fn must not retain the slice.
func (p *Password) Use(fn func([]byte) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return fn(p.data)
}

// Destroy zeros the password. Further calls to Use see an empty password.
func (p *Password) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	ZeroBytes(p.data)
	p.data = nil
}

// IsEmpty reports whether the password has no bytes.
func (p *Password) IsEmpty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.data) == 0
}
