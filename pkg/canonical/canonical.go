// Package canonical produces the deterministic byte form of a record that
// hashing and signing both depend on. Two records with identical field
// values canonicalize to byte-identical output regardless of field order.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// volatileFields are stripped from a record before canonicalization. They
// are either derived from the canonical form (hash, signature) or produced
// as signing side metadata.
var volatileFields = []string{
	"hash",
	"signature",
	"pubkey",
	"signed_at",
	"hash_stored",
	"hash_calc",
}

// Bytes returns the canonical serialization of v minus the volatile fields:
// keys sorted lexicographically at every nesting level, no extraneous
// whitespace, UTF-8, stable number formatting.
func Bytes(v any) ([]byte, error) {
	m, err := ToMap(v)
	if err != nil {
		return nil, err
	}
	for _, f := range volatileFields {
		delete(m, f)
	}
	var buf bytes.Buffer
	if err := encode(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Hash returns the SHA-256 of the canonical form as a lowercase hex string.
func Hash(v any) (string, error) {
	b, err := Bytes(v)
	if err != nil {
		return "", err
	}
	return SHA256Hex(b), nil
}

// JSON serializes v deterministically without stripping any fields. Used for
// the on-disk record layout, which sorts keys for reproducibility.
func JSON(v any) ([]byte, error) {
	m, err := ToMap(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encode(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentHash hashes a content string alone, for fast duplicate detection.
func ContentHash(content string) string {
	return SHA256Hex([]byte(content))
}

// SHA256Hex computes the SHA-256 hash of data as a lowercase hex string.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ToMap converts any value to a map via JSON round-trip. Numbers become
// float64, which json.Marshal renders deterministically.
func ToMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("canonical: not an object: %w", err)
	}
	return m, nil
}

// encode writes v with object keys sorted at every nesting level.
func encode(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encode(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	default:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}
