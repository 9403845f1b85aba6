// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/aplane-algo/icxsign/internal/crypto"
	"github.com/aplane-algo/icxsign/internal/signing"
)

func (a *app) cmdKeystore(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: icxsign keystore <new|import|list|remove>")
	}
	switch args[0] {
	case "new":
		return a.cmdKeystoreNew(args[1:], false)
	case "import":
		return a.cmdKeystoreNew(args[1:], true)
	case "list":
		return a.cmdKeystoreList(args[1:])
	case "remove":
		return a.cmdKeystoreRemove(args[1:])
	}
	return fmt.Errorf("unknown keystore command %q", args[0])
}

// cmdKeystoreNew creates a keystore from a fresh key, or from --key-file
// when importing.
func (a *app) cmdKeystoreNew(args []string, importing bool) error {
	var light bool
	var passwordFile, keyFile string
	name, usage := "keystore new", "keystore new [--light] [--password-file FILE]"
	if importing {
		name, usage = "keystore import", "keystore import --key-file FILE [--light] [--password-file FILE]"
	}
	fs := a.newFlagSet(name, usage)
	fs.BoolVar(&light, "light", false, "use light scrypt parameters (faster, weaker)")
	fs.StringVar(&passwordFile, "password-file", "", "read the new password from this file")
	if importing {
		fs.StringVar(&keyFile, "key-file", "", "file holding the hex private key to import")
	}
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	ctx := context.Background()
	var (
		w   *signing.Wallet
		err error
	)
	if importing {
		if keyFile == "" {
			return errors.New("--key-file is required")
		}
		w, err = a.openWallet(ctx, walletFlags{keyFile: keyFile})
	} else {
		w, err = signing.Generate()
	}
	if err != nil {
		return err
	}
	defer w.Zero()

	dir, err := a.keyDir()
	if err != nil {
		return err
	}

	pw, err := a.newPassword(passwordFile)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(pw)

	params := crypto.StandardScrypt
	if light {
		params = crypto.LightScrypt
	}
	data, err := w.Export(pw, params)
	if err != nil {
		return err
	}
	path, err := dir.Store(ctx, data)
	if err != nil {
		return err
	}

	auditLog := a.auditLog()
	auditLog.LogKeyCreated(w.Address(), path)
	_ = auditLog.Close()

	_, _ = fmt.Fprintf(a.stdout, "%s %s\n", a.style.Label("Address:"), a.style.Address(w.Address()))
	_, err = fmt.Fprintf(a.stdout, "%s %s\n", a.style.Label("File:"), path)
	return err
}

func (a *app) cmdKeystoreList(args []string) error {
	fs := a.newFlagSet("keystore list", "keystore list")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	dir, err := a.keyDir()
	if err != nil {
		return err
	}
	keys, err := dir.List(context.Background())
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		_, err = fmt.Fprintf(a.stdout, "No keys in %s\n", dir.Path())
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, k := range keys {
		marker := ""
		if k.Address == a.config.DefaultAddress {
			marker = "(default)"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", a.style.Address(k.Address), k.Path, marker)
	}
	return tw.Flush()
}

func (a *app) cmdKeystoreRemove(args []string) error {
	var yes bool
	fs := a.newFlagSet("keystore remove", "keystore remove --yes ADDRESS")
	fs.BoolVar(&yes, "yes", false, "confirm deletion of the keystore file")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: icxsign keystore remove --yes ADDRESS")
	}
	if !yes {
		return errors.New("refusing to delete without --yes")
	}
	dir, err := a.keyDir()
	if err != nil {
		return err
	}
	if err := dir.Delete(context.Background(), fs.Arg(0)); err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "Removed %s\n", fs.Arg(0))
	return err
}
