// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package canon

import (
	"encoding/hex"
	"errors"

	"github.com/aplane-algo/icxsign/internal/value"

	"golang.org/x/crypto/sha3"
)

// paramsSegment separates the method name from the encoded params.
const paramsSegment = ".params."

// ErrEmptyMethod indicates a transaction without a method name.
var ErrEmptyMethod = errors.New("transaction method is empty")

// Transaction is a method name paired with its parameter value. Params is
// normally a Mapping or TaggedMapping whose keys are sorted at every depth.
type Transaction struct {
	Method string
	Params value.Value
}

// Request is implemented by typed transactions that know their own method
// name and can produce their parameter value.
type Request interface {
	Method() string
	Params() (value.Value, error)
}

// EncodeTransaction returns the signing payload of tx using default options.
func EncodeTransaction(tx Transaction) (string, error) {
	return defaultEncoder.EncodeTransaction(tx)
}

// EncodeRequest builds the transaction described by r and encodes it using
// default options.
func EncodeRequest(r Request) (string, error) {
	return defaultEncoder.EncodeRequest(r)
}

// EncodeFlat returns the flat payload of tx using default options.
func EncodeFlat(tx Transaction) (string, error) {
	return defaultEncoder.EncodeFlat(tx)
}

// EncodeTransaction returns method + ".params." + the encoding of the params.
//
// Params mappings must be in ascending key order at every depth; otherwise
// the error matches ErrOrderingViolation.
func (e *Encoder) EncodeTransaction(tx Transaction) (string, error) {
	if tx.Method == "" {
		return "", newError(Unrepresentable, ErrEmptyMethod, "")
	}
	if err := value.CheckOrdered(tx.Params); err != nil {
		return "", newError(OrderingViolation, err, "method %s", tx.Method)
	}
	w := writer{maxDepth: e.opts.MaxDepth}
	w.sb.Grow(len(tx.Method) + len(paramsSegment) + 64)
	w.sb.WriteString(tx.Method)
	w.sb.WriteString(paramsSegment)
	if err := w.write(tx.Params, 0); err != nil {
		return "", err
	}
	return w.sb.String(), nil
}

// EncodeFlat returns method + "." + EncodeParams(params), the form ICON
// nodes hash for icx_sendTransaction. Params must be a Mapping or
// TaggedMapping in ascending key order.
func (e *Encoder) EncodeFlat(tx Transaction) (string, error) {
	if tx.Method == "" {
		return "", newError(Unrepresentable, ErrEmptyMethod, "")
	}
	if err := value.CheckOrdered(tx.Params); err != nil {
		return "", newError(OrderingViolation, err, "method %s", tx.Method)
	}
	body, err := e.EncodeParams(tx.Params)
	if err != nil {
		return "", err
	}
	if body == "" {
		return tx.Method, nil
	}
	return tx.Method + "." + body, nil
}

// EncodeRequest builds the transaction described by r and encodes it. A
// failure of r.Params is reported as Unrepresentable.
func (e *Encoder) EncodeRequest(r Request) (string, error) {
	tx, err := NewTransaction(r)
	if err != nil {
		return "", err
	}
	return e.EncodeTransaction(tx)
}

// NewTransaction builds a Transaction from r.
func NewTransaction(r Request) (Transaction, error) {
	params, err := r.Params()
	if err != nil {
		return Transaction{}, newError(Unrepresentable, err, "params of %s", r.Method())
	}
	return Transaction{Method: r.Method(), Params: params}, nil
}

// Hash returns the SHA3-256 digest of a signing payload.
func Hash(payload string) [32]byte {
	return sha3.Sum256([]byte(payload))
}

// TxHash returns the 0x-prefixed hex form of Hash(payload), the transaction
// hash reported by the network.
func TxHash(payload string) string {
	h := Hash(payload)
	return "0x" + hex.EncodeToString(h[:])
}
