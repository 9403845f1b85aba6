// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// icxsign encodes ICON transactions into their canonical signing payload,
// hashes and signs them with keystore-held keys, and verifies signatures.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aplane-algo/icxsign/internal/audit"
	"github.com/aplane-algo/icxsign/internal/canon"
	"github.com/aplane-algo/icxsign/internal/keystore"
	"github.com/aplane-algo/icxsign/internal/util"
	"github.com/aplane-algo/icxsign/internal/version"

	"github.com/spf13/pflag"
)

// app carries the resolved environment of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	dataDir string
	config  util.Config
	style   util.Styler

	// readPassword prompts for a secret. Replaced in tests.
	readPassword func(prompt string) ([]byte, error)
}

func main() {
	util.InitLogger()

	a := &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		style:  util.NewStyler(os.Stdout),
	}
	a.readPassword = terminalPassword(os.Stdin, os.Stderr)

	if err := a.run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", a.style.Error("Error:"), err)
		os.Exit(1)
	}
}

func (a *app) run(args []string) error {
	var dataDir string
	var showVersion bool

	fs := pflag.NewFlagSet("icxsign", pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.SetInterspersed(false)
	fs.StringVarP(&dataDir, "data-dir", "d", "", "data directory (or set "+util.DataDirEnv+")")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.Usage = func() { a.printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		_, _ = fmt.Fprintln(a.stdout, version.String())
		return nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		a.printUsage(fs)
		return errors.New("no command given")
	}

	a.dataDir = util.GetDataDir(dataDir)
	cfg, err := util.LoadConfig(a.dataDir)
	if err != nil {
		return err
	}
	a.config = cfg
	util.Debug("configuration loaded", "data_dir", a.dataDir, "keystore_dir", cfg.KeystoreDir)

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "encode":
		return a.cmdEncode(cmdArgs)
	case "hash":
		return a.cmdHash(cmdArgs)
	case "sign":
		return a.cmdSign(cmdArgs)
	case "verify":
		return a.cmdVerify(cmdArgs)
	case "address":
		return a.cmdAddress(cmdArgs)
	case "keystore":
		return a.cmdKeystore(cmdArgs)
	case "shell":
		return a.cmdShell(cmdArgs)
	case "help":
		a.printUsage(fs)
		return nil
	}
	a.printUsage(fs)
	return fmt.Errorf("unknown command %q", cmd)
}

func (a *app) printUsage(fs *pflag.FlagSet) {
	w := a.stderr
	_, _ = fmt.Fprintf(w, "icxsign - canonical encoding and signing of ICON transactions\n\n")
	_, _ = fmt.Fprintf(w, "Usage:\n")
	_, _ = fmt.Fprintf(w, "  icxsign [-d path] encode [--flat] [FILE]\n")
	_, _ = fmt.Fprintf(w, "  icxsign [-d path] hash [--flat] [FILE]\n")
	_, _ = fmt.Fprintf(w, "  icxsign [-d path] sign [--from ADDRESS | --keystore FILE | --key-file FILE] [FILE]\n")
	_, _ = fmt.Fprintf(w, "  icxsign [-d path] verify --address ADDRESS --signature SIG [FILE]\n")
	_, _ = fmt.Fprintf(w, "  icxsign [-d path] address [--public-key HEX | --keystore FILE | --key-file FILE]\n")
	_, _ = fmt.Fprintf(w, "  icxsign [-d path] keystore <new|import|list|remove>\n")
	_, _ = fmt.Fprintf(w, "  icxsign [-d path] shell\n")
	_, _ = fmt.Fprintf(w, "\nFILE is a YAML or JSON document with method and params; '-' or none reads stdin.\n")
	_, _ = fmt.Fprintf(w, "\nOptions:\n%s", fs.FlagUsages())
	_, _ = fmt.Fprintf(w, "\nExamples:\n")
	_, _ = fmt.Fprintf(w, "  icxsign encode tx.yaml\n")
	_, _ = fmt.Fprintf(w, "  icxsign keystore new\n")
	_, _ = fmt.Fprintf(w, "  icxsign sign --from hx... --json tx.yaml\n")
}

// encoder returns an encoder honouring config and per-command overrides.
func (a *app) encoder(maxDepth int, checkOrder bool) *canon.Encoder {
	opts := canon.DefaultOptions()
	opts.MaxDepth = a.config.MaxDepth
	if maxDepth > 0 {
		opts.MaxDepth = maxDepth
	}
	opts.CheckOrder = a.config.CheckOrder || checkOrder
	return canon.NewEncoder(opts)
}

// keyDir returns the configured keystore directory, scanned.
func (a *app) keyDir() (*keystore.Dir, error) {
	d := keystore.NewDir(a.config.KeystoreDir)
	n, err := d.Scan()
	if err != nil {
		return nil, err
	}
	util.Debug("keystore scanned", "dir", d.Path(), "keys", n)
	return d, nil
}

// auditLog opens the configured audit log. A nil logger is returned when
// auditing is disabled or the log cannot be opened.
func (a *app) auditLog() *audit.Logger {
	if a.config.AuditLog == "" {
		return nil
	}
	l, err := audit.Open(a.config.AuditLog)
	if err != nil {
		util.Logger.Warn("audit log unavailable", "path", a.config.AuditLog, "error", err)
		return nil
	}
	return l
}

// newFlagSet returns a flag set for a subcommand that reports to stderr.
func (a *app) newFlagSet(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(a.stderr, "Usage: icxsign %s\n\n%s", usage, fs.FlagUsages())
	}
	return fs
}

// parseFlags parses args and reports whether the command should continue.
func parseFlags(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
