// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aplane-algo/icxsign/internal/canon"
	"github.com/aplane-algo/icxsign/internal/crypto"
	"github.com/aplane-algo/icxsign/internal/signing"
	"github.com/aplane-algo/icxsign/internal/txfile"
	"github.com/aplane-algo/icxsign/internal/value"

	"github.com/spf13/pflag"
)

const sendMethod = "icx_sendTransaction"

// encodeFlags select the payload form and encoder limits.
type encodeFlags struct {
	flat       bool
	maxDepth   int
	checkOrder bool
}

func (f *encodeFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&f.flat, "flat", false, "encode params without braces (method.k.v...), as ICON nodes hash")
	fs.IntVar(&f.maxDepth, "max-depth", 0, "maximum nesting depth (default from config)")
	fs.BoolVar(&f.checkOrder, "check-order", false, "reject unordered mappings in bare values")
}

// walletFlags select the signing key.
type walletFlags struct {
	from         string
	keystore     string
	keyFile      string
	passwordFile string
}

func (f *walletFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.from, "from", "", "address of a key in the keystore directory")
	fs.StringVar(&f.keystore, "keystore", "", "keystore file to sign with")
	fs.StringVar(&f.keyFile, "key-file", "", "file holding a hex private key")
	fs.StringVar(&f.passwordFile, "password-file", "", "read the keystore password from this file")
}

// loadTx reads a transaction document. An empty path or "-" reads stdin.
// The returned source names the input for audit records.
func (a *app) loadTx(path string) (canon.Transaction, string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return canon.Transaction{}, "-", fmt.Errorf("failed to read stdin: %w", err)
		}
		tx, err := txfile.Parse(data)
		return tx, "-", err
	}
	tx, err := txfile.Load(path)
	return tx, path, err
}

func singleArg(fs *pflag.FlagSet) (string, error) {
	switch fs.NArg() {
	case 0:
		return "", nil
	case 1:
		return fs.Arg(0), nil
	}
	return "", fmt.Errorf("expected at most one input file, got %d", fs.NArg())
}

func (a *app) encodeTx(f encodeFlags, tx canon.Transaction) (string, error) {
	enc := a.encoder(f.maxDepth, f.checkOrder)
	if f.flat {
		return enc.EncodeFlat(tx)
	}
	return enc.EncodeTransaction(tx)
}

func (a *app) cmdEncode(args []string) error {
	var ef encodeFlags
	var quote bool
	fs := a.newFlagSet("encode", "encode [--flat] [--quote] [FILE]")
	ef.register(fs)
	fs.BoolVar(&quote, "quote", false, "print the payload as a quoted Go string")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	path, err := singleArg(fs)
	if err != nil {
		return err
	}

	tx, _, err := a.loadTx(path)
	if err != nil {
		return err
	}
	payload, err := a.encodeTx(ef, tx)
	if err != nil {
		return err
	}
	if quote {
		payload = strconv.Quote(payload)
	}
	_, err = fmt.Fprintln(a.stdout, payload)
	return err
}

func (a *app) cmdHash(args []string) error {
	var ef encodeFlags
	fs := a.newFlagSet("hash", "hash [--flat] [FILE]")
	ef.register(fs)
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	path, err := singleArg(fs)
	if err != nil {
		return err
	}

	tx, _, err := a.loadTx(path)
	if err != nil {
		return err
	}
	payload, err := a.encodeTx(ef, tx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, canon.TxHash(payload))
	return err
}

// openWallet resolves the signing key from flags, config and keystore dir.
func (a *app) openWallet(ctx context.Context, f walletFlags) (*signing.Wallet, error) {
	switch {
	case f.keyFile != "":
		data, err := os.ReadFile(f.keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		defer crypto.ZeroBytes(data)
		return signing.FromHex(strings.TrimSpace(string(data)))

	case f.keystore != "":
		pw, err := a.passwordFrom(f.passwordFile, "Keystore password: ")
		if err != nil {
			return nil, err
		}
		defer crypto.ZeroBytes(pw)
		return signing.FromKeystore(f.keystore, pw)
	}

	dir, err := a.keyDir()
	if err != nil {
		return nil, err
	}
	address := f.from
	if address == "" {
		address = a.config.DefaultAddress
	}
	if address == "" {
		addrs := dir.Addresses()
		if len(addrs) != 1 {
			return nil, errors.New("no signing key selected: use --from, --keystore or --key-file, or set default_address")
		}
		address = addrs[0]
	}
	if _, err := dir.GetMetadata(ctx, address); err != nil {
		return nil, err
	}

	pw, err := a.passwordFrom(f.passwordFile, fmt.Sprintf("Password for %s: ", address))
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(pw)
	return dir.Open(ctx, address, pw)
}

// paramText returns the Text value of a top-level params key.
func paramText(params value.Value, key string) (string, bool) {
	if params.Kind() != value.KindMapping {
		return "", false
	}
	for _, p := range params.Pairs() {
		if value.KeyText(p.Key) == key && p.Value.Kind() == value.KindText {
			return p.Value.AsText(), true
		}
	}
	return "", false
}

// prepareSend fills from and nid of a transfer and checks that the sender
// is the signing key.
func (a *app) prepareSend(tx canon.Transaction, address string) (canon.Transaction, error) {
	if tx.Method != sendMethod {
		return tx, nil
	}
	if from, ok := paramText(tx.Params, "from"); ok && from != address {
		return tx, fmt.Errorf("transaction sender %s does not match signing key %s", from, address)
	}
	tx = txfile.WithDefault(tx, "from", value.Text(address))
	if a.config.NetworkID != "" {
		tx = txfile.WithDefault(tx, "nid", value.Text(a.config.NetworkID))
	}
	return tx, nil
}

type signOutput struct {
	Address   string `json:"address"`
	Method    string `json:"method"`
	TxHash    string `json:"tx_hash"`
	Signature string `json:"signature"`
	Payload   string `json:"payload"`
}

func (a *app) cmdSign(args []string) error {
	var ef encodeFlags
	var wf walletFlags
	var asJSON, noDefaults bool
	fs := a.newFlagSet("sign", "sign [--from ADDRESS | --keystore FILE | --key-file FILE] [--json] [FILE]")
	ef.register(fs)
	wf.register(fs)
	fs.BoolVar(&asJSON, "json", false, "print address, hash, signature and payload as JSON")
	fs.BoolVar(&noDefaults, "no-defaults", false, "do not fill from/nid of "+sendMethod)
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	path, err := singleArg(fs)
	if err != nil {
		return err
	}

	tx, source, err := a.loadTx(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	w, err := a.openWallet(ctx, wf)
	if err != nil {
		return err
	}
	defer w.Zero()

	auditLog := a.auditLog()
	defer func() { _ = auditLog.Close() }()

	signed, err := a.signTx(w, ef, tx, noDefaults)
	if err != nil {
		auditLog.LogSignFailed(w.Address(), source, err.Error())
		return err
	}
	auditLog.LogSign(w.Address(), tx.Method, signed.TxHash, source)

	if !asJSON {
		_, err = fmt.Fprintln(a.stdout, signed.Signature)
		return err
	}
	out, err := json.MarshalIndent(signOutput{
		Address:   w.Address(),
		Method:    tx.Method,
		TxHash:    signed.TxHash,
		Signature: signed.Signature,
		Payload:   signed.Payload,
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.stdout, string(out))
	return err
}

func (a *app) signTx(w *signing.Wallet, ef encodeFlags, tx canon.Transaction, noDefaults bool) (*signing.Signed, error) {
	if !noDefaults {
		var err error
		if tx, err = a.prepareSend(tx, w.Address()); err != nil {
			return nil, err
		}
	}
	payload, err := a.encodeTx(ef, tx)
	if err != nil {
		return nil, err
	}
	return w.SignPayload(payload), nil
}

func (a *app) cmdVerify(args []string) error {
	var ef encodeFlags
	var address, signature, payload string
	fs := a.newFlagSet("verify", "verify --address ADDRESS --signature SIG [--payload TEXT | FILE]")
	ef.register(fs)
	fs.StringVar(&address, "address", "", "expected signer address")
	fs.StringVar(&signature, "signature", "", "base64 signature")
	fs.StringVar(&payload, "payload", "", "verify this payload instead of encoding a document")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}
	if address == "" || signature == "" {
		return errors.New("--address and --signature are required")
	}

	if payload == "" {
		path, err := singleArg(fs)
		if err != nil {
			return err
		}
		tx, _, err := a.loadTx(path)
		if err != nil {
			return err
		}
		if payload, err = a.encodeTx(ef, tx); err != nil {
			return err
		}
	}

	auditLog := a.auditLog()
	defer func() { _ = auditLog.Close() }()

	txHash := canon.TxHash(payload)
	if err := signing.Verify(address, payload, signature); err != nil {
		auditLog.LogVerify(address, txHash, err.Error())
		return err
	}
	auditLog.LogVerify(address, txHash, "")
	_, err := fmt.Fprintf(a.stdout, "%s signature by %s over %s\n", a.style.OK("OK"), a.style.Address(address), txHash)
	return err
}

func (a *app) cmdAddress(args []string) error {
	var pubHex, ksPath, keyFile string
	fs := a.newFlagSet("address", "address [--public-key HEX | --keystore FILE | --key-file FILE]")
	fs.StringVar(&pubHex, "public-key", "", "compressed or uncompressed public key in hex")
	fs.StringVar(&ksPath, "keystore", "", "keystore file (address is read without decrypting)")
	fs.StringVar(&keyFile, "key-file", "", "file holding a hex private key")
	if ok, err := parseFlags(fs, args); !ok {
		return err
	}

	var addr string
	switch {
	case pubHex != "":
		pub, err := hex.DecodeString(strings.TrimPrefix(pubHex, "0x"))
		if err != nil {
			return fmt.Errorf("invalid public key hex: %w", err)
		}
		if addr, err = signing.AddressFromPublicKey(pub); err != nil {
			return err
		}
	case ksPath != "":
		ks, err := crypto.LoadKeystore(ksPath)
		if err != nil {
			return err
		}
		addr = ks.Address
	case keyFile != "":
		w, err := a.openWallet(context.Background(), walletFlags{keyFile: keyFile})
		if err != nil {
			return err
		}
		addr = w.Address()
		w.Zero()
	default:
		return errors.New("one of --public-key, --keystore or --key-file is required")
	}
	_, err := fmt.Fprintln(a.stdout, addr)
	return err
}
