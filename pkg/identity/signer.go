package identity

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/Gertschi2011/kiana-ledger/pkg/canonical"
	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

// VerifyMode selects how far verification trusts a record.
type VerifyMode int

const (
	// VerifySelf checks the record against its own embedded public key.
	// The record is internally consistent; nothing more.
	VerifySelf VerifyMode = iota

	// VerifyRegistry additionally requires the embedded public key to be
	// known to the registry (owner key or registered agent) and not revoked.
	VerifyRegistry
)

// Signer signs canonical bytes with the node identity and verifies
// signatures on incoming records.
type Signer struct {
	keys     *KeyPair
	registry *Registry
	mode     VerifyMode
}

// NewSigner builds a signer. registry may be nil, which forces VerifySelf
// regardless of mode.
func NewSigner(keys *KeyPair, registry *Registry, mode VerifyMode) *Signer {
	if registry == nil {
		mode = VerifySelf
	}
	return &Signer{keys: keys, registry: registry, mode: mode}
}

// Sign attests the record with the active private key. Timestamp and the
// content hash are filled if unset, since the canonical form covers both;
// the store would otherwise assign them after the fact and break the
// signature.
func (s *Signer) Sign(rec *core.Record) error {
	if rec.Timestamp == "" {
		rec.Timestamp = core.Now()
	}
	if rec.Meta.CanonicalHash == "" {
		rec.Meta.CanonicalHash = canonical.ContentHash(rec.Content)
	}
	sig, err := s.signValue(rec)
	if err != nil {
		return err
	}
	rec.Signature = sig
	rec.PubKey = s.keys.PublicKeyHex
	rec.SignedAt = core.Now()
	return nil
}

// SignEntry attests a chain entry. The canonical form includes block_id and
// previous_hash, binding the signature to the entry's position.
func (s *Signer) SignEntry(e *core.ChainEntry) error {
	if e.Timestamp == "" {
		e.Timestamp = core.Now()
	}
	if e.Meta.CanonicalHash == "" {
		e.Meta.CanonicalHash = canonical.ContentHash(e.Content)
	}
	sig, err := s.signValue(e)
	if err != nil {
		return err
	}
	e.Signature = sig
	e.PubKey = s.keys.PublicKeyHex
	e.SignedAt = core.Now()
	return nil
}

// Verify checks the record's signature. Fails with signature_missing when
// signature or pubkey are absent and signature_invalid when cryptographic
// verification fails. In registry mode the embedded key must additionally be
// registered and not revoked.
func (s *Signer) Verify(rec *core.Record) error {
	return s.verifyValue(rec, rec.Signature, rec.PubKey)
}

// VerifyEntry checks a chain entry's signature the same way.
func (s *Signer) VerifyEntry(e *core.ChainEntry) error {
	return s.verifyValue(e, e.Signature, e.PubKey)
}

func (s *Signer) signValue(v any) (string, error) {
	payload, err := canonical.Bytes(v)
	if err != nil {
		return "", core.WrapError(core.CodeSignatureInvalid, err, "cannot canonicalize for signing")
	}
	sig := ed25519.Sign(s.keys.PrivateKey, payload)
	return hex.EncodeToString(sig), nil
}

func (s *Signer) verifyValue(v any, sigHex, pubHex string) error {
	if sigHex == "" || pubHex == "" {
		return core.NewError(core.CodeSignatureMissing, "record carries no signature")
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return core.NewError(core.CodeSignatureInvalid, "malformed signature")
	}
	pub, err := hex.DecodeString(pubHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return core.NewError(core.CodeSignatureInvalid, "malformed public key")
	}

	payload, err := canonical.Bytes(v)
	if err != nil {
		return core.WrapError(core.CodeSignatureInvalid, err, "cannot canonicalize for verification")
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), payload, sig) {
		return core.NewError(core.CodeSignatureInvalid, "signature does not match canonical form")
	}

	if s.mode == VerifyRegistry {
		if s.registry.IsRevoked(pubHex) {
			return core.NewError(core.CodeSignatureInvalid, "signing key is revoked")
		}
		if pubHex != s.keys.PublicKeyHex {
			if _, ok := s.registry.LookupKey(pubHex); !ok {
				return core.NewError(core.CodeSignatureInvalid, "signing key is not registered")
			}
		}
	}
	return nil
}

var _ core.Signer = (*Signer)(nil)
