// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aplane-algo/icxsign/internal/crypto"

	"golang.org/x/term"
)

// terminalPassword reads secrets without echo when in is a terminal and as
// plain lines otherwise.
func terminalPassword(in *os.File, prompt io.Writer) func(string) ([]byte, error) {
	var reader *bufio.Reader
	return func(msg string) ([]byte, error) {
		_, _ = fmt.Fprint(prompt, msg)
		fd := int(in.Fd()) // #nosec G115 - file descriptors are small integers
		if term.IsTerminal(fd) {
			pw, err := term.ReadPassword(fd)
			_, _ = fmt.Fprintln(prompt)
			return pw, err
		}
		if reader == nil {
			reader = bufio.NewReader(in)
		}
		line, err := reader.ReadBytes('\n')
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			return nil, err
		}
		return bytes.TrimRight(line, "\r\n"), nil
	}
}

// passwordFrom returns the password in file (first line) when file is set,
// otherwise prompts.
func (a *app) passwordFrom(file, prompt string) ([]byte, error) {
	if file == "" {
		return a.readPassword(prompt)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read password file: %w", err)
	}
	defer crypto.ZeroBytes(data)
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	return append([]byte(nil), bytes.TrimRight(line, "\r")...), nil
}

// newPassword prompts twice and requires both entries to match.
func (a *app) newPassword(file string) ([]byte, error) {
	if file != "" {
		return a.passwordFrom(file, "")
	}
	pw1, err := a.readPassword("New keystore password: ")
	if err != nil {
		return nil, err
	}
	pw2, err := a.readPassword("Repeat password: ")
	if err != nil {
		crypto.ZeroBytes(pw1)
		return nil, err
	}
	defer crypto.ZeroBytes(pw2)
	if !bytes.Equal(pw1, pw2) {
		crypto.ZeroBytes(pw1)
		return nil, errors.New("passwords do not match")
	}
	if len(pw1) == 0 {
		return nil, errors.New("password must not be empty")
	}
	return pw1, nil
}
