package platform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Gertschi2011/kiana-ledger/pkg/adapters/fs"
	"github.com/Gertschi2011/kiana-ledger/pkg/chain"
	"github.com/Gertschi2011/kiana-ledger/pkg/core"
	"github.com/Gertschi2011/kiana-ledger/pkg/identity"
	"github.com/Gertschi2011/kiana-ledger/pkg/index"
)

// DefaultSystemDir is the hidden metadata directory inside the node base.
const DefaultSystemDir = ".ledger"

// Node bundles the wired components of a running ledger node. The CLI
// commands reach past the service for identity and chain operations.
type Node struct {
	Service  *core.Service
	Keys     *identity.KeyStore
	Identity *identity.KeyPair
	Registry *identity.Registry
	Signer   *identity.Signer
	Chain    *chain.Ledger
	Repo     core.Repository

	BasePath  string
	SystemDir string

	// HTTPTimeout bounds outbound sync requests. Zero means the pull
	// client's default.
	HTTPTimeout time.Duration
}

// New builds a ledger service rooted at the given base directory.
//
//	svc, err := ledger.New("./vault", ledger.WithRole("owner"))
func New(path string, opts ...Option) (*core.Service, error) {
	node, err := NewNode(path, opts...)
	if err != nil {
		return nil, err
	}
	return node.Service, nil
}

// NewNode wires identity, storage, chain, index, and the event broker into
// a Node. The base directory is created on demand; an existing identity is
// never regenerated.
func NewNode(path string, opts ...Option) (*Node, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	systemDir, _ := o.config["system_dir"].(string)
	if systemDir == "" {
		systemDir = DefaultSystemDir
	}
	role, _ := o.config["role"].(string)
	if role == "" {
		role = "owner"
	}
	eventBuffer, _ := o.config["event_buffer"].(int)

	strict := true
	if val, ok := o.config["strict_verify"].(bool); ok {
		strict = val
	}
	httpTimeout, _ := o.config["http_timeout"].(time.Duration)

	sysPath := filepath.Join(path, systemDir)
	recordsDir := filepath.Join(path, "records")
	chainDir := filepath.Join(path, "chain")
	keysDir := filepath.Join(sysPath, "keys")
	registryPath := filepath.Join(sysPath, "registry.json")
	indexPath := filepath.Join(sysPath, "index.json")

	if err := os.MkdirAll(sysPath, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create node base %s: %w", path, err)
	}

	keys := identity.NewKeyStore(keysDir, logger)
	pair, err := keys.EnsureIdentity(role)
	if err != nil {
		return nil, err
	}

	registry, err := identity.LoadRegistry(registryPath, logger)
	if err != nil {
		return nil, err
	}

	mode := identity.VerifyRegistry
	if !strict {
		mode = identity.VerifySelf
	}
	signer := identity.NewSigner(pair, registry, mode)

	ctx := context.Background()

	repo := o.repository
	if repo == nil {
		repo = fs.NewStore(fs.Config{
			Path:      recordsDir,
			SystemDir: systemDir,
			Logger:    logger,
			Signer:    signer,
		})
	}
	if err := repo.Initialize(ctx); err != nil {
		return nil, err
	}

	ledger := chain.New(chainDir, signer, logger)
	if err := ledger.Initialize(ctx); err != nil {
		return nil, err
	}

	searcher := index.New(repo, indexPath, logger)
	broker := core.NewBroker(eventBuffer, logger)
	service := core.NewService(repo, ledger, searcher, signer, broker, logger)

	return &Node{
		Service:     service,
		Keys:        keys,
		Identity:    pair,
		Registry:    registry,
		Signer:      signer,
		Chain:       ledger,
		Repo:        repo,
		BasePath:    path,
		SystemDir:   systemDir,
		HTTPTimeout: httpTimeout,
	}, nil
}
