// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aplane-algo/icxsign/internal/audit"
	"github.com/aplane-algo/icxsign/internal/canon"
	"github.com/aplane-algo/icxsign/internal/keystore"
	"github.com/aplane-algo/icxsign/internal/signing"
	"github.com/aplane-algo/icxsign/internal/util"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

// errExit ends the shell loop.
var errExit = errors.New("exit")

type shellCommand struct {
	usage string
	help  string
	run   func(s *shell, args []string) error
}

// shell is the state of one interactive session.
type shell struct {
	app      *app
	out      io.Writer
	dir      *keystore.Dir
	session  *keystore.Session
	audit    *audit.Logger
	commands *util.StringRegistry[shellCommand]

	address string // key used by sign
	flat    bool   // payload form used by encode/hash/sign/verify
}

func (a *app) newShell() (*shell, error) {
	dir, err := a.keyDir()
	if err != nil {
		return nil, err
	}
	s := &shell{
		app:      a,
		out:      a.stdout,
		dir:      dir,
		session:  keystore.NewSession(dir),
		audit:    a.auditLog(),
		commands: shellCommands(),
		address:  a.config.DefaultAddress,
	}
	if s.address == "" {
		if addrs := dir.Addresses(); len(addrs) == 1 {
			s.address = addrs[0]
		}
	}
	return s, nil
}

func (s *shell) close() {
	s.session.Destroy()
	s.audit.LogShellStop()
	_ = s.audit.Close()
}

func (a *app) cmdShell(args []string) error {
	fs := a.newFlagSet("shell", "shell")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	s, err := a.newShell()
	if err != nil {
		return err
	}
	defer s.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.dir.Watch(ctx, func(n int, err error) {
		if err == nil {
			s.audit.LogKeyReload(n)
			util.Logger.Info("keystore reloaded", "keys", n)
		}
	}); err != nil {
		util.Debug("keystore watch disabled", "error", err)
	}

	s.audit.LogShellStart(len(s.dir.Addresses()))
	_, _ = fmt.Fprintln(s.out, "icxsign shell - type 'help' for commands, 'quit' to exit")

	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) { // #nosec G115 - file descriptors are small integers
		return s.runReadline()
	}
	return s.runBasic(a.stdin, true)
}

func (s *shell) prompt() string {
	p := "icx"
	if s.address != "" {
		p += ":" + s.address[:min(len(s.address), 8)]
	}
	if s.flat {
		p += "[flat]"
	}
	return s.app.style.OK(p+">") + " "
}

// runBasic reads commands line by line. With linePasswords, passwords are
// taken from the same input so piped sessions can sign.
func (s *shell) runBasic(in io.Reader, linePasswords bool) error {
	scanner := bufio.NewScanner(in)
	if linePasswords {
		s.app.readPassword = func(prompt string) ([]byte, error) {
			_, _ = fmt.Fprint(s.out, prompt)
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return nil, err
				}
				return nil, io.EOF
			}
			_, _ = fmt.Fprintln(s.out)
			return append([]byte(nil), bytes.TrimRight(scanner.Bytes(), "\r")...), nil
		}
	}
	for {
		_, _ = fmt.Fprint(s.out, s.prompt())
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(s.out)
			return scanner.Err()
		}
		if err := s.exec(scanner.Text()); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			_, _ = fmt.Fprintf(s.out, "%s %v\n", s.app.style.Error("Error:"), err)
		}
	}
}

func (s *shell) runReadline() error {
	items := make([]readline.PrefixCompleterInterface, 0, s.commands.Len())
	for _, name := range s.commands.Keys() {
		items = append(items, readline.PcItem(name))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            s.prompt(),
		HistoryFile:       filepath.Join(s.app.dataDir, ".icxsign_history"),
		HistoryLimit:      1000,
		AutoComplete:      readline.NewPrefixCompleter(items...),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		_, _ = fmt.Fprintf(s.out, "Failed to create readline instance, falling back to basic input: %v\n", err)
		return s.runBasic(s.app.stdin, false)
	}
	defer func() { _ = rl.Close() }()
	s.out = rl.Stdout()

	// Passwords are read through readline so the terminal state stays consistent.
	s.app.readPassword = func(prompt string) ([]byte, error) {
		return rl.ReadPassword(prompt)
	}

	for {
		rl.SetPrompt(s.prompt())
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					_, _ = fmt.Fprintln(s.out, "Use 'quit' or 'exit' to exit")
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				_, _ = fmt.Fprintln(s.out, "Goodbye!")
				return nil
			}
			return err
		}
		if err := s.exec(line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			_, _ = fmt.Fprintf(s.out, "%s %v\n", s.app.style.Error("Error:"), err)
		}
	}
}

// exec runs one input line.
func (s *shell) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	_, cmd, err := s.commands.Lookup(fields[0])
	if err != nil {
		return err
	}
	return cmd.run(s, fields[1:])
}

func shellCommands() *util.StringRegistry[shellCommand] {
	r := util.NewStringRegistry[shellCommand]()
	r.Set("help", shellCommand{"help", "show this list", (*shell).help})
	r.Set("keys", shellCommand{"keys", "list keystore addresses", (*shell).keys})
	r.Set("use", shellCommand{"use ADDRESS", "select the signing key (unique prefix allowed)", (*shell).use})
	r.Set("flat", shellCommand{"flat on|off", "toggle the flat payload form", (*shell).setFlat})
	r.Set("encode", shellCommand{"encode FILE", "print the signing payload", (*shell).encode})
	r.Set("hash", shellCommand{"hash FILE", "print the transaction hash", (*shell).hash})
	r.Set("sign", shellCommand{"sign FILE", "sign with the selected key", (*shell).sign})
	r.Set("verify", shellCommand{"verify ADDRESS SIGNATURE FILE", "check a signature", (*shell).verify})
	r.Set("reload", shellCommand{"reload", "rescan the keystore directory", (*shell).reload})
	r.Set("forget", shellCommand{"forget", "drop cached passwords", (*shell).forget})
	r.Set("quit", shellCommand{"quit", "leave the shell", func(*shell, []string) error { return errExit }})
	r.Set("exit", shellCommand{"exit", "leave the shell", func(*shell, []string) error { return errExit }})
	return r
}

func (s *shell) help(args []string) error {
	for _, c := range s.commands.Values() {
		_, _ = fmt.Fprintf(s.out, "  %-32s %s\n", c.usage, s.app.style.Label(c.help))
	}
	return nil
}

func (s *shell) keys(args []string) error {
	addrs := s.dir.Addresses()
	if len(addrs) == 0 {
		_, _ = fmt.Fprintf(s.out, "No keys in %s\n", s.dir.Path())
		return nil
	}
	for _, a := range addrs {
		marker := " "
		if a == s.address {
			marker = "*"
		}
		_, _ = fmt.Fprintf(s.out, "%s %s\n", marker, s.app.style.Address(a))
	}
	return nil
}

func (s *shell) use(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: use ADDRESS")
	}
	var matches []string
	for _, a := range s.dir.Addresses() {
		if strings.HasPrefix(a, args[0]) {
			matches = append(matches, a)
		}
	}
	switch len(matches) {
	case 0:
		return fmt.Errorf("%w: %s", keystore.ErrKeyNotFound, args[0])
	case 1:
		s.address = matches[0]
		_, _ = fmt.Fprintf(s.out, "Signing with %s\n", s.app.style.Address(s.address))
		return nil
	}
	sort.Strings(matches)
	return fmt.Errorf("%s matches %d keys", args[0], len(matches))
}

func (s *shell) setFlat(args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return errors.New("usage: flat on|off")
	}
	s.flat = args[0] == "on"
	return nil
}

func (s *shell) load(args []string, want int, usage string) (canon.Transaction, string, error) {
	if len(args) != want {
		return canon.Transaction{}, "", fmt.Errorf("usage: %s", usage)
	}
	return s.app.loadTx(args[want-1])
}

func (s *shell) payload(tx canon.Transaction) (string, error) {
	return s.app.encodeTx(encodeFlags{flat: s.flat}, tx)
}

func (s *shell) encode(args []string) error {
	tx, _, err := s.load(args, 1, "encode FILE")
	if err != nil {
		return err
	}
	p, err := s.payload(tx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "%q\n", p)
	return nil
}

func (s *shell) hash(args []string) error {
	tx, _, err := s.load(args, 1, "hash FILE")
	if err != nil {
		return err
	}
	p, err := s.payload(tx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(s.out, canon.TxHash(p))
	return nil
}

func (s *shell) sign(args []string) error {
	if s.address == "" {
		return errors.New("no key selected (use 'use ADDRESS')")
	}
	tx, source, err := s.load(args, 1, "sign FILE")
	if err != nil {
		return err
	}

	w, err := s.session.Open(context.Background(), s.address, func() ([]byte, error) {
		return s.app.readPassword(fmt.Sprintf("Password for %s: ", s.address))
	})
	if err != nil {
		return err
	}
	defer w.Zero()

	signed, err := s.app.signTx(w, encodeFlags{flat: s.flat}, tx, false)
	if err != nil {
		s.audit.LogSignFailed(w.Address(), source, err.Error())
		return err
	}
	s.audit.LogSign(w.Address(), tx.Method, signed.TxHash, source)

	_, _ = fmt.Fprintf(s.out, "%s %s\n", s.app.style.Label("tx_hash:  "), signed.TxHash)
	_, _ = fmt.Fprintf(s.out, "%s %s\n", s.app.style.Label("signature:"), signed.Signature)
	return nil
}

func (s *shell) verify(args []string) error {
	tx, _, err := s.load(args, 3, "verify ADDRESS SIGNATURE FILE")
	if err != nil {
		return err
	}
	p, err := s.payload(tx)
	if err != nil {
		return err
	}
	if err := signing.Verify(args[0], p, args[1]); err != nil {
		s.audit.LogVerify(args[0], canon.TxHash(p), err.Error())
		return err
	}
	s.audit.LogVerify(args[0], canon.TxHash(p), "")
	_, _ = fmt.Fprintln(s.out, s.app.style.OK("OK"))
	return nil
}

func (s *shell) reload(args []string) error {
	n, err := s.dir.Scan()
	if err != nil {
		return err
	}
	s.audit.LogKeyReload(n)
	_, _ = fmt.Fprintf(s.out, "%d key(s)\n", n)
	return nil
}

func (s *shell) forget(args []string) error {
	s.session.Destroy()
	return nil
}
