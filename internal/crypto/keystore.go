// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/crypto/sha3"
)

// Keystore file constants (Web3 Secret Storage v3 with the ICON coin type).
const (
	KeystoreVersion = 3
	CoinTypeICX     = "icx"

	cipherAES128CTR = "aes-128-ctr"
	kdfScrypt       = "scrypt"
	kdfPBKDF2       = "pbkdf2"
	prfHMACSHA256   = "hmac-sha256"

	derivedKeyLen = 32
	saltLen       = 32
)

var (
	// ErrBadPassword indicates the keystore MAC did not verify.
	ErrBadPassword = errors.New("could not decrypt key with given password")

	// ErrUnsupportedCipher indicates a cipher other than aes-128-ctr.
	ErrUnsupportedCipher = errors.New("unsupported keystore cipher")

	// ErrUnsupportedKDF indicates a key derivation function other than scrypt
	// or pbkdf2 with hmac-sha256.
	ErrUnsupportedKDF = errors.New("unsupported keystore kdf")

	// ErrUnsupportedVersion indicates a keystore version other than 3.
	ErrUnsupportedVersion = errors.New("unsupported keystore version")
)

// ScryptParams are the cost parameters used when encrypting a keystore.
type ScryptParams struct {
	N int
	R int
	P int
}

// StandardScrypt matches the parameters written by ICON wallets.
var StandardScrypt = ScryptParams{N: 1 << 14, R: 8, P: 1}

// LightScrypt trades strength for speed (about 4MB of memory).
var LightScrypt = ScryptParams{N: 1 << 12, R: 8, P: 6}

// Keystore is the JSON document of an encrypted private key file.
type Keystore struct {
	Address  string         `json:"address"`
	Crypto   KeystoreCrypto `json:"crypto"`
	ID       string         `json:"id"`
	Version  int            `json:"version"`
	CoinType string         `json:"coinType,omitempty"`
}

// KeystoreCrypto holds the cipher and kdf sections of a keystore.
type KeystoreCrypto struct {
	Cipher       string          `json:"cipher"`
	CipherParams CipherParams    `json:"cipherparams"`
	CipherText   string          `json:"ciphertext"`
	KDF          string          `json:"kdf"`
	KDFParams    json.RawMessage `json:"kdfparams"`
	MAC          string          `json:"mac"`
}

// CipherParams holds the AES-CTR initialisation vector.
type CipherParams struct {
	IV string `json:"iv"`
}

type scryptKDFParams struct {
	DKLen int    `json:"dklen"`
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	Salt  string `json:"salt"`
}

type pbkdf2KDFParams struct {
	DKLen int    `json:"dklen"`
	C     int    `json:"c"`
	PRF   string `json:"prf"`
	Salt  string `json:"salt"`
}

// ParseKeystore decodes a keystore document without decrypting it.
func ParseKeystore(data []byte) (*Keystore, error) {
	var ks Keystore
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, fmt.Errorf("failed to parse keystore: %w", err)
	}
	if ks.Version != KeystoreVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, ks.Version)
	}
	return &ks, nil
}

// LoadKeystore reads and parses a keystore file.
func LoadKeystore(path string) (*Keystore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	return ParseKeystore(data)
}

// DecryptKeystore parses data and returns the raw private key.
// Caller is responsible for zeroing the returned key when done.
func DecryptKeystore(data, password []byte) ([]byte, error) {
	ks, err := ParseKeystore(data)
	if err != nil {
		return nil, err
	}
	return ks.Decrypt(password)
}

// Decrypt derives the key encryption key from password, verifies the MAC and
// returns the raw private key.
func (ks *Keystore) Decrypt(password []byte) ([]byte, error) {
	c := ks.Crypto
	if c.Cipher != cipherAES128CTR {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCipher, c.Cipher)
	}

	derived, err := deriveKey(c.KDF, c.KDFParams, password)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(derived)

	ciphertext, err := hex.DecodeString(c.CipherText)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	mac, err := hex.DecodeString(c.MAC)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mac: %w", err)
	}
	if subtle.ConstantTimeCompare(keystoreMAC(derived, ciphertext), mac) != 1 {
		return nil, ErrBadPassword
	}

	iv, err := hex.DecodeString(c.CipherParams.IV)
	if err != nil {
		return nil, fmt.Errorf("failed to decode iv: %w", err)
	}
	return aesCTR(derived[:16], iv, ciphertext)
}

// EncryptKeystore encrypts a raw private key under password and returns the
// keystore JSON.
func EncryptKeystore(key []byte, address string, password []byte, params ScryptParams) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}

	derived, err := scrypt.Key(password, salt, params.N, params.R, params.P, derivedKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	defer ZeroBytes(derived)

	ciphertext, err := aesCTR(derived[:16], iv, key)
	if err != nil {
		return nil, err
	}

	kdfParams, err := json.Marshal(scryptKDFParams{
		DKLen: derivedKeyLen,
		N:     params.N,
		R:     params.R,
		P:     params.P,
		Salt:  hex.EncodeToString(salt),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal kdf params: %w", err)
	}

	ks := Keystore{
		Address: address,
		Crypto: KeystoreCrypto{
			Cipher:       cipherAES128CTR,
			CipherParams: CipherParams{IV: hex.EncodeToString(iv)},
			CipherText:   hex.EncodeToString(ciphertext),
			KDF:          kdfScrypt,
			KDFParams:    kdfParams,
			MAC:          hex.EncodeToString(keystoreMAC(derived, ciphertext)),
		},
		ID:       uuid.NewString(),
		Version:  KeystoreVersion,
		CoinType: CoinTypeICX,
	}
	return json.MarshalIndent(ks, "", "  ")
}

func deriveKey(kdf string, raw json.RawMessage, password []byte) ([]byte, error) {
	switch kdf {
	case kdfScrypt:
		var p scryptKDFParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to parse scrypt params: %w", err)
		}
		salt, err := hex.DecodeString(p.Salt)
		if err != nil {
			return nil, fmt.Errorf("failed to decode salt: %w", err)
		}
		if p.DKLen < derivedKeyLen {
			return nil, fmt.Errorf("%w: dklen %d too short", ErrUnsupportedKDF, p.DKLen)
		}
		key, err := scrypt.Key(password, salt, p.N, p.R, p.P, p.DKLen)
		if err != nil {
			return nil, fmt.Errorf("failed to derive key: %w", err)
		}
		return key, nil

	case kdfPBKDF2:
		var p pbkdf2KDFParams
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to parse pbkdf2 params: %w", err)
		}
		if p.PRF != prfHMACSHA256 {
			return nil, fmt.Errorf("%w: prf %q", ErrUnsupportedKDF, p.PRF)
		}
		if p.DKLen < derivedKeyLen {
			return nil, fmt.Errorf("%w: dklen %d too short", ErrUnsupportedKDF, p.DKLen)
		}
		salt, err := hex.DecodeString(p.Salt)
		if err != nil {
			return nil, fmt.Errorf("failed to decode salt: %w", err)
		}
		return pbkdf2.Key(password, salt, p.C, p.DKLen, sha256.New), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKDF, kdf)
}

// keystoreMAC is Keccak-256(derived[16:32] || ciphertext).
func keystoreMAC(derived, ciphertext []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(derived[16:32])
	h.Write(ciphertext)
	return h.Sum(nil)
}

func aesCTR(key, iv, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("invalid iv length %d", len(iv))
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}
