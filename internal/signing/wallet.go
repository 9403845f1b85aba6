// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package signing holds secp256k1 wallets for ICON transactions.
//
// A signature covers SHA3-256 of the canonical payload produced by package
// canon and is transported as base64(R || S || V), where V is the public key
// recovery id. Verifiers recover the public key from the signature and compare
// the derived address with the claimed sender.
package signing

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/aplane-algo/icxsign/internal/canon"
	"github.com/aplane-algo/icxsign/internal/crypto"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

const (
	// PrivateKeyLen is the length of a raw secp256k1 private key.
	PrivateKeyLen = 32

	// SignatureLen is the length of a decoded recoverable signature.
	SignatureLen = 65

	// AddressPrefix marks externally owned account addresses.
	AddressPrefix = "hx"

	// compactRecoveryBase is the recovery code offset used by compact
	// signatures for uncompressed public keys.
	compactRecoveryBase = 27
)

var (
	// ErrInvalidKey indicates private key bytes outside [1, N-1].
	ErrInvalidKey = errors.New("invalid private key")

	// ErrInvalidSignature indicates a signature that does not decode to
	// 65 bytes or from which no public key can be recovered.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrSignatureMismatch indicates a valid signature made by a different
	// key than the claimed address.
	ErrSignatureMismatch = errors.New("signature does not match address")
)

// Wallet is a secp256k1 key pair with its ICON address.
type Wallet struct {
	priv    *secp256k1.PrivateKey
	address string
}

// Signed is the result of signing one payload.
type Signed struct {
	Payload   string // Canonical signing payload
	TxHash    string // 0x-prefixed SHA3-256 of Payload
	Signature string // base64(R || S || V)
}

// Generate creates a wallet with a fresh random key.
func Generate() (*Wallet, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return newWallet(priv), nil
}

// FromBytes creates a wallet from a raw 32-byte private key. The input is
// copied.
func FromBytes(key []byte) (*Wallet, error) {
	if len(key) != PrivateKeyLen {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, PrivateKeyLen, len(key))
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(key); overflow || s.IsZero() {
		s.Zero()
		return nil, ErrInvalidKey
	}
	priv := secp256k1.NewPrivateKey(&s)
	s.Zero()
	return newWallet(priv), nil
}

// FromHex creates a wallet from a hex private key, with or without 0x.
func FromHex(key string) (*Wallet, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(key, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	defer crypto.ZeroBytes(raw)
	return FromBytes(raw)
}

// FromKeystore decrypts the keystore file at path and creates a wallet.
// The address recorded in the keystore must match the decrypted key.
func FromKeystore(path string, password []byte) (*Wallet, error) {
	ks, err := crypto.LoadKeystore(path)
	if err != nil {
		return nil, err
	}
	return FromKeystoreDoc(ks, password)
}

// FromKeystoreDoc creates a wallet from an already parsed keystore.
func FromKeystoreDoc(ks *crypto.Keystore, password []byte) (*Wallet, error) {
	raw, err := ks.Decrypt(password)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(raw)

	w, err := FromBytes(raw)
	if err != nil {
		return nil, err
	}
	if ks.Address != "" && ks.Address != w.address {
		w.Zero()
		return nil, fmt.Errorf("keystore address %s does not match key address", ks.Address)
	}
	return w, nil
}

func newWallet(priv *secp256k1.PrivateKey) *Wallet {
	addr, _ := AddressFromPublicKey(priv.PubKey().SerializeUncompressed())
	return &Wallet{priv: priv, address: addr}
}

// Address returns the hx-prefixed address of the wallet.
func (w *Wallet) Address() string { return w.address }

// PublicKey returns the 65-byte uncompressed public key.
func (w *Wallet) PublicKey() []byte { return w.priv.PubKey().SerializeUncompressed() }

// PrivateKeyHex returns the raw private key in hex. Handle with care.
func (w *Wallet) PrivateKeyHex() string {
	raw := w.priv.Serialize()
	defer crypto.ZeroBytes(raw)
	return hex.EncodeToString(raw)
}

// Export encrypts the private key into keystore JSON.
func (w *Wallet) Export(password []byte, params crypto.ScryptParams) ([]byte, error) {
	raw := w.priv.Serialize()
	defer crypto.ZeroBytes(raw)
	return crypto.EncryptKeystore(raw, w.address, password, params)
}

// SignHash returns the 65-byte recoverable signature R || S || V of hash.
// Nonces are deterministic (RFC 6979), so equal inputs give equal signatures.
func (w *Wallet) SignHash(hash [32]byte) []byte {
	compact := ecdsa.SignCompact(w.priv, hash[:], false)
	sig := make([]byte, SignatureLen)
	copy(sig, compact[1:])
	sig[64] = compact[0] - compactRecoveryBase
	return sig
}

// Sign hashes payload with SHA3-256 and returns the base64 signature.
func (w *Wallet) Sign(payload string) string {
	return base64.StdEncoding.EncodeToString(w.SignHash(canon.Hash(payload)))
}

// SignPayload signs an already encoded payload.
func (w *Wallet) SignPayload(payload string) *Signed {
	return &Signed{
		Payload:   payload,
		TxHash:    canon.TxHash(payload),
		Signature: w.Sign(payload),
	}
}

// SignTransaction encodes tx with default options and signs the result.
func (w *Wallet) SignTransaction(tx canon.Transaction) (*Signed, error) {
	payload, err := canon.EncodeTransaction(tx)
	if err != nil {
		return nil, err
	}
	return w.SignPayload(payload), nil
}

// Zero wipes the private key. The wallet must not be used afterwards.
func (w *Wallet) Zero() {
	if w.priv != nil {
		w.priv.Zero()
	}
}

// AddressFromPublicKey derives the hx address of an uncompressed (65-byte)
// or compressed (33-byte) public key.
func AddressFromPublicKey(pub []byte) (string, error) {
	pk, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return "", fmt.Errorf("invalid public key: %w", err)
	}
	digest := sha3.Sum256(pk.SerializeUncompressed()[1:])
	return AddressPrefix + hex.EncodeToString(digest[12:]), nil
}

// Recover returns the address that produced sig over payload.
func Recover(payload, sig string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(raw) != SignatureLen || raw[64] > 3 {
		return "", fmt.Errorf("%w: malformed", ErrInvalidSignature)
	}

	compact := make([]byte, SignatureLen)
	compact[0] = raw[64] + compactRecoveryBase
	copy(compact[1:], raw[:64])

	hash := canon.Hash(payload)
	pub, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return AddressFromPublicKey(pub.SerializeUncompressed())
}

// Verify checks that sig over payload was produced by address.
func Verify(address, payload, sig string) error {
	got, err := Recover(payload, sig)
	if err != nil {
		return err
	}
	if got != address {
		return fmt.Errorf("%w: recovered %s, want %s", ErrSignatureMismatch, got, address)
	}
	return nil
}
