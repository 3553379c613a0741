package identity

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	lfs "github.com/Gertschi2011/kiana-ledger/pkg/adapters/fs"
	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

// AgentEntry is one registered sub-agent identity.
type AgentEntry struct {
	ID                string `json:"id"`
	PublicKey         string `json:"public_key"`
	AuthorizedByOwner bool   `json:"authorized_by_owner"`
	RegisteredAt      string `json:"registered_at,omitempty"`
}

type registryFile struct {
	Agents      map[string]AgentEntry `json:"agents"`
	RevokedKeys []string              `json:"revoked_keys"`
}

// Registry maps agent identifiers to public keys and records revocations.
// Revocation is permanent and additive; there is no un-revoke.
type Registry struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	data registryFile
}

// LoadRegistry reads the registry file at path, creating an empty registry
// if the file does not exist. Missing optional fields are backfilled and the
// file rewritten with the original backed up; a structurally unreadable file
// is a hard error requiring operator intervention.
func LoadRegistry(path string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{path: path, logger: logger}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		r.data = registryFile{Agents: make(map[string]AgentEntry)}
		return r, nil
	}
	if err != nil {
		return nil, core.WrapError(core.CodeRegistryInconsistent, err, "cannot read registry %s", path)
	}

	if err := json.Unmarshal(raw, &r.data); err != nil {
		return nil, core.WrapError(core.CodeRegistryInconsistent, err, "registry %s is unreadable", path)
	}

	// Self-heal missing optional fields, keeping the original around.
	healed := false
	if r.data.Agents == nil {
		r.data.Agents = make(map[string]AgentEntry)
		healed = true
	}
	for id, entry := range r.data.Agents {
		if entry.ID == "" {
			entry.ID = id
			r.data.Agents[id] = entry
			healed = true
		}
	}
	if healed {
		if err := os.WriteFile(path+".bak", raw, 0644); err != nil {
			return nil, core.WrapError(core.CodeRegistryInconsistent, err, "cannot back up registry before healing")
		}
		if err := r.persistLocked(); err != nil {
			return nil, err
		}
		logger.Warn("registry healed, original backed up", "path", path)
	}

	return r, nil
}

// Register appends or overwrites an agent entry.
func (r *Registry) Register(id, publicKeyHex string, authorizedByOwner bool) error {
	if id == "" || publicKeyHex == "" {
		return core.NewError(core.CodeRegistryInconsistent, "agent id and public key are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data.Agents[id] = AgentEntry{
		ID:                id,
		PublicKey:         publicKeyHex,
		AuthorizedByOwner: authorizedByOwner,
		RegisteredAt:      core.Now(),
	}
	return r.persistLocked()
}

// Revoke appends a public key to the revocation list. Revoking an already
// revoked key is a no-op.
func (r *Registry) Revoke(publicKeyHex string) error {
	if publicKeyHex == "" {
		return core.NewError(core.CodeRegistryInconsistent, "public key is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range r.data.RevokedKeys {
		if k == publicKeyHex {
			return nil
		}
	}
	r.data.RevokedKeys = append(r.data.RevokedKeys, publicKeyHex)
	return r.persistLocked()
}

// IsRevoked reports whether the public key appears on the revocation list.
func (r *Registry) IsRevoked(publicKeyHex string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, k := range r.data.RevokedKeys {
		if k == publicKeyHex {
			return true
		}
	}
	return false
}

// LookupKey finds the agent entry owning the given public key.
func (r *Registry) LookupKey(publicKeyHex string) (AgentEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.data.Agents {
		if entry.PublicKey == publicKeyHex {
			return entry, true
		}
	}
	return AgentEntry{}, false
}

// Agents returns a snapshot of all registered agents.
func (r *Registry) Agents() []AgentEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AgentEntry, 0, len(r.data.Agents))
	for _, entry := range r.data.Agents {
		out = append(out, entry)
	}
	return out
}

func (r *Registry) persistLocked() error {
	b, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return core.WrapError(core.CodeRegistryInconsistent, err, "cannot serialize registry")
	}
	if err := lfs.WriteFileAtomic(r.path, append(b, '\n'), 0644); err != nil {
		return core.WrapError(core.CodeRegistryInconsistent, err, "cannot persist registry %s", r.path)
	}
	return nil
}
