// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package audit keeps an append-only JSON Lines record of signing activity.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aplane-algo/icxsign/internal/fsutil"
	"github.com/aplane-algo/icxsign/internal/util"
)

// EventType represents the type of audit event
type EventType string

const logFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// DefaultMaxSize is the size at which the log rotates to <path>.1.
const DefaultMaxSize = 10 * 1024 * 1024 // 10 MB

const (
	EventSign       EventType = "SIGN"
	EventSignFailed EventType = "SIGN_FAILED"
	EventVerify     EventType = "VERIFY"
	EventKeyCreated EventType = "KEY_CREATED"
	EventKeyReload  EventType = "KEY_RELOAD"
	EventShellStart EventType = "SHELL_START"
	EventShellStop  EventType = "SHELL_STOP"
)

// Entry represents a single audit log entry
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Event     EventType `json:"event"`
	Address   string    `json:"address,omitempty"`   // Signing or verified address
	Method    string    `json:"method,omitempty"`    // Transaction method, if any
	TxHash    string    `json:"tx_hash,omitempty"`   // 0x-prefixed payload hash
	Source    string    `json:"source,omitempty"`    // Input file, or "-" for stdin
	Reason    string    `json:"reason,omitempty"`    // Failure reason
	KeyCount  int       `json:"key_count,omitempty"` // For key reload events
}

// Logger handles append-only audit logging. A nil *Logger discards entries.
type Logger struct {
	file    *os.File
	mu      sync.Mutex
	path    string
	written uint64
	maxSize uint64
}

// Open opens or creates the audit log at path in append-only mode.
func Open(path string) (*Logger, error) {
	if err := fsutil.MkdirAll(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	file, err := fsutil.CreateFile(path, logFlags)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	var written uint64
	if info, err := file.Stat(); err == nil {
		written = uint64(info.Size())
	}

	return &Logger{file: file, path: path, written: written, maxSize: DefaultMaxSize}, nil
}

// Path returns the log file path.
func (a *Logger) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

// Log writes an audit entry. Write failures are reported through the
// process logger and never fail the caller.
func (a *Logger) Log(entry Entry) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		util.Logger.Warn("failed to marshal audit entry", "error", err)
		return
	}

	// Rotate if this write would exceed the size limit
	line := append(data, '\n')
	if a.written > 0 && a.written+uint64(len(line)) > a.maxSize {
		if err := a.rotate(); err != nil {
			util.Logger.Warn("failed to rotate audit log", "error", err)
		}
	}

	if _, err := a.file.Write(line); err != nil {
		util.Logger.Warn("failed to write audit entry", "error", err)
		return
	}
	a.written += uint64(len(line))

	_ = a.file.Sync()
}

// rotate archives the current log file and opens a fresh one.
// Must be called with a.mu held.
func (a *Logger) rotate() error {
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}
	if err := os.Rename(a.path, a.path+".1"); err != nil {
		// Reopen the original path so logging can continue
		a.file, _ = fsutil.CreateFile(a.path, logFlags)
		a.written = 0
		return fmt.Errorf("rename log: %w", err)
	}
	file, err := fsutil.CreateFile(a.path, logFlags)
	if err != nil {
		return fmt.Errorf("open new log: %w", err)
	}
	a.file = file
	a.written = 0
	return nil
}

// Close closes the audit log file
func (a *Logger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// LogSign records a successful signature.
func (a *Logger) LogSign(address, method, txHash, source string) {
	a.Log(Entry{Event: EventSign, Address: address, Method: method, TxHash: txHash, Source: source})
}

// LogSignFailed records a signing attempt that did not produce a signature.
func (a *Logger) LogSignFailed(address, source, reason string) {
	a.Log(Entry{Event: EventSignFailed, Address: address, Source: source, Reason: reason})
}

// LogVerify records a verification; reason is empty on success.
func (a *Logger) LogVerify(address, txHash, reason string) {
	a.Log(Entry{Event: EventVerify, Address: address, TxHash: txHash, Reason: reason})
}

// LogKeyCreated records a new keystore file.
func (a *Logger) LogKeyCreated(address, path string) {
	a.Log(Entry{Event: EventKeyCreated, Address: address, Source: path})
}

// LogKeyReload records a keystore directory rescan.
func (a *Logger) LogKeyReload(keyCount int) {
	a.Log(Entry{Event: EventKeyReload, KeyCount: keyCount})
}

// LogShellStart records the start of an interactive session.
func (a *Logger) LogShellStart(keyCount int) {
	a.Log(Entry{Event: EventShellStart, KeyCount: keyCount})
}

// LogShellStop records the end of an interactive session.
func (a *Logger) LogShellStop() {
	a.Log(Entry{Event: EventShellStop})
}
