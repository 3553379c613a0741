// Package identity manages the Ed25519 key material of the owner and of
// registered sub-agents, and attests records with it.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// KeyPair holds an Ed25519 key pair with a precomputed hex form of the
// public key.
type KeyPair struct {
	PrivateKey   ed25519.PrivateKey
	PublicKey    ed25519.PublicKey
	PublicKeyHex string
}

var roleName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// KeyStore persists key pairs under a directory, one pair per role. Private
// keys are written owner-read only.
type KeyStore struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewKeyStore creates a key store rooted at dir.
func NewKeyStore(dir string, logger *slog.Logger) *KeyStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyStore{dir: dir, logger: logger}
}

// EnsureIdentity loads the key pair for role, generating and persisting one
// if none exists yet. It never regenerates silently: an existing key on disk
// always wins.
func (ks *KeyStore) EnsureIdentity(role string) (*KeyPair, error) {
	if !roleName.MatchString(role) {
		return nil, fmt.Errorf("identity: invalid role name %q", role)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	pair, err := ks.load(role)
	if err == nil {
		return pair, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	return ks.generate(role)
}

// Rekey replaces the key pair for role and returns the new pair plus the
// hex-encoded public key of the old pair, which the caller must add to the
// revocation list. Fails if no identity exists for the role yet.
func (ks *KeyStore) Rekey(role string) (pair *KeyPair, oldPublicKey string, err error) {
	if !roleName.MatchString(role) {
		return nil, "", fmt.Errorf("identity: invalid role name %q", role)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	old, err := ks.load(role)
	if err != nil {
		return nil, "", fmt.Errorf("identity: cannot rekey %q: %w", role, err)
	}

	pair, err = ks.generate(role)
	if err != nil {
		return nil, "", err
	}
	ks.logger.Info("identity rekeyed", "role", role, "old_pubkey", old.PublicKeyHex, "new_pubkey", pair.PublicKeyHex)
	return pair, old.PublicKeyHex, nil
}

func (ks *KeyStore) privatePath(role string) string {
	return filepath.Join(ks.dir, role+".key")
}

func (ks *KeyStore) publicPath(role string) string {
	return filepath.Join(ks.dir, role+".pub")
}

func (ks *KeyStore) load(role string) (*KeyPair, error) {
	priv, err := os.ReadFile(ks.privatePath(role))
	if err != nil {
		return nil, err
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("identity: private key for %q must be %d bytes, got %d", role, ed25519.PrivateKeySize, len(priv))
	}
	key := ed25519.PrivateKey(priv)
	pub := key.Public().(ed25519.PublicKey)
	return &KeyPair{
		PrivateKey:   key,
		PublicKey:    pub,
		PublicKeyHex: hex.EncodeToString(pub),
	}, nil
}

func (ks *KeyStore) generate(role string) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: failed to generate key pair: %w", err)
	}

	if err := os.MkdirAll(ks.dir, 0700); err != nil {
		return nil, fmt.Errorf("identity: failed to create key directory: %w", err)
	}
	if err := os.WriteFile(ks.privatePath(role), priv, 0600); err != nil {
		return nil, fmt.Errorf("identity: failed to persist private key: %w", err)
	}
	if err := os.WriteFile(ks.publicPath(role), pub, 0644); err != nil {
		return nil, fmt.Errorf("identity: failed to persist public key: %w", err)
	}

	ks.logger.Info("identity generated", "role", role, "pubkey", hex.EncodeToString(pub))
	return &KeyPair{
		PrivateKey:   priv,
		PublicKey:    pub,
		PublicKeyHex: hex.EncodeToString(pub),
	}, nil
}
