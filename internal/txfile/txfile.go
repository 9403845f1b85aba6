// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package txfile reads transaction documents written in YAML or JSON.
//
// A document has a string "method" and an optional "params" mapping:
//
//	method: icx_sendTransaction
//	params:
//	  to: hx5bfdb090f43a808005ffc27c25b213145e80b7cd
//	  value: "0xde0b6b3a7640000"
//
// Every mapping in params is sorted by key, so documents may list keys in any
// order.
package txfile

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/aplane-algo/icxsign/internal/canon"
	"github.com/aplane-algo/icxsign/internal/value"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingMethod indicates a document without a non-empty method.
	ErrMissingMethod = errors.New("transaction document has no method")

	// ErrDuplicateKey indicates a mapping that repeats a key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidDocument indicates a document that is not a transaction.
	ErrInvalidDocument = errors.New("invalid transaction document")
)

// Load reads the document at path. A path of "-" reads standard input.
func Load(path string) (canon.Transaction, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return canon.Transaction{}, fmt.Errorf("failed to read transaction: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON transaction document.
func Parse(data []byte) (canon.Transaction, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return canon.Transaction{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return canon.Transaction{}, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return canon.Transaction{}, fmt.Errorf("%w: line %d: top level must be a mapping", ErrInvalidDocument, root.Line)
	}

	var (
		tx        canon.Transaction
		paramNode *yaml.Node
		seen      = make(map[string]bool)
	)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if seen[k.Value] {
			return canon.Transaction{}, fmt.Errorf("line %d: %w %q", k.Line, ErrDuplicateKey, k.Value)
		}
		seen[k.Value] = true

		switch k.Value {
		case "method":
			if v.Kind != yaml.ScalarNode || v.Tag != "!!str" {
				return canon.Transaction{}, fmt.Errorf("%w: line %d: method must be a string", ErrInvalidDocument, v.Line)
			}
			tx.Method = v.Value
		case "params":
			paramNode = v
		default:
			return canon.Transaction{}, fmt.Errorf("%w: line %d: unknown field %q", ErrInvalidDocument, k.Line, k.Value)
		}
	}
	if tx.Method == "" {
		return canon.Transaction{}, ErrMissingMethod
	}

	tx.Params = value.Absent()
	if paramNode != nil {
		n := resolve(paramNode)
		switch {
		case n.Kind == yaml.MappingNode:
		case n.Kind == yaml.ScalarNode && n.Tag == "!!null":
		default:
			return canon.Transaction{}, fmt.Errorf("%w: line %d: params must be a mapping", ErrInvalidDocument, n.Line)
		}
		p, err := fromNode(n)
		if err != nil {
			return canon.Transaction{}, err
		}
		tx.Params = p
	}
	return tx, nil
}

// WithDefault returns tx with params[key] = v when params is a Mapping that
// lacks key, or when params is Absent. Otherwise tx is returned unchanged.
func WithDefault(tx canon.Transaction, key string, v value.Value) canon.Transaction {
	switch tx.Params.Kind() {
	case value.KindAbsent:
		tx.Params = value.Mapping(value.P(key, v))
		return tx
	case value.KindMapping:
	default:
		return tx
	}

	pairs := tx.Params.Pairs()
	for _, p := range pairs {
		if value.KeyText(p.Key) == key {
			return tx
		}
	}
	tx.Params = value.SortedMapping(append(append([]value.Pair(nil), pairs...), value.P(key, v))...)
	return tx
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func fromNode(n *yaml.Node) (value.Value, error) {
	n = resolve(n)
	switch n.Kind {
	case yaml.MappingNode:
		pairs := make([]value.Pair, 0, len(n.Content)/2)
		seen := make(map[string]bool, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := resolve(n.Content[i])
			if k.Kind != yaml.ScalarNode {
				return value.Value{}, fmt.Errorf("%w: line %d: mapping keys must be scalars", ErrInvalidDocument, k.Line)
			}
			if seen[k.Value] {
				return value.Value{}, fmt.Errorf("line %d: %w %q", k.Line, ErrDuplicateKey, k.Value)
			}
			seen[k.Value] = true
			v, err := fromNode(n.Content[i+1])
			if err != nil {
				return value.Value{}, err
			}
			pairs = append(pairs, value.P(k.Value, v))
		}
		return value.SortedMapping(pairs...), nil

	case yaml.SequenceNode:
		items := make([]value.Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromNode(c)
			if err != nil {
				return value.Value{}, err
			}
			items = append(items, v)
		}
		return value.Sequence(items...), nil

	case yaml.ScalarNode:
		return fromScalar(n)
	}
	return value.Value{}, fmt.Errorf("%w: line %d: unsupported node", ErrInvalidDocument, n.Line)
}

func fromScalar(n *yaml.Node) (value.Value, error) {
	switch n.Tag {
	case "!!null":
		return value.Absent(), nil

	case "!!bool":
		return value.Bool(strings.EqualFold(n.Value, "true")), nil

	case "!!int":
		s := strings.ReplaceAll(n.Value, "_", "")
		// Hex, octal, binary and leading-zero literals keep their spelling;
		// ICON quantities are hex strings.
		if digits := strings.TrimLeft(s, "+-"); len(digits) > 1 && digits[0] == '0' {
			return value.Text(n.Value), nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return value.SignedInt(i), nil
		}
		if u, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), 10, 64); err == nil {
			return value.UnsignedInt(u), nil
		}
		return value.Value{}, fmt.Errorf("%w: line %d: integer %s out of range", ErrInvalidDocument, n.Line, n.Value)

	case "!!float":
		switch strings.ToLower(n.Value) {
		case ".inf", "+.inf":
			return value.Float(math.Inf(1)), nil
		case "-.inf":
			return value.Float(math.Inf(-1)), nil
		case ".nan":
			return value.Float(math.NaN()), nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(n.Value, "_", ""), 64)
		if err != nil {
			return value.Value{}, fmt.Errorf("%w: line %d: %v", ErrInvalidDocument, n.Line, err)
		}
		return value.Float(f), nil

	case "!!binary":
		b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(n.Value), ""))
		if err != nil {
			return value.Value{}, fmt.Errorf("%w: line %d: %v", ErrInvalidDocument, n.Line, err)
		}
		return value.Bytes(b), nil
	}
	// !!str, !!timestamp and custom tags keep their text
	return value.Text(n.Value), nil
}
