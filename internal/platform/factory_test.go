package platform_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gertschi2011/kiana-ledger/internal/platform"
	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

func TestNewNode(t *testing.T) {
	base := t.TempDir()
	ctx := context.Background()

	node, err := platform.NewNode(base)
	require.NoError(t, err)
	defer node.Service.Close()

	t.Run("Lays Out The Node Directory", func(t *testing.T) {
		for _, sub := range []string{"records", "chain", ".ledger", filepath.Join(".ledger", "keys")} {
			_, err := os.Stat(filepath.Join(base, sub))
			assert.NoError(t, err, sub)
		}
		_, err := os.Stat(filepath.Join(base, ".ledger", "keys", "owner.key"))
		assert.NoError(t, err, "owner private key")
	})

	t.Run("Carries The Configured HTTP Timeout", func(t *testing.T) {
		timed, err := platform.NewNode(base, platform.WithHTTPTimeout(3*time.Second))
		require.NoError(t, err)
		defer timed.Service.Close()
		assert.Equal(t, 3*time.Second, timed.HTTPTimeout)
		assert.Zero(t, node.HTTPTimeout)
	})

	t.Run("Identity Survives Reopen", func(t *testing.T) {
		reopened, err := platform.NewNode(base)
		require.NoError(t, err)
		defer reopened.Service.Close()
		assert.Equal(t, node.Identity.PublicKeyHex, reopened.Identity.PublicKeyHex)
	})

	t.Run("Full Store Chain Search Cycle", func(t *testing.T) {
		rec := &core.Record{
			Topic:   "Geschichte",
			Title:   "Alter der Erde",
			Content: "Die Erde ist 4.5 Milliarden Jahre alt",
			Meta:    core.Meta{Provenance: node.Identity.PublicKeyHex, Status: core.StatusActive},
		}
		require.NoError(t, node.Signer.Sign(rec))

		res, err := node.Service.Store(ctx, rec)
		require.NoError(t, err)
		assert.NotEmpty(t, res.ID)

		loaded, err := node.Service.Load(ctx, res.ID, true)
		require.NoError(t, err)
		assert.Equal(t, rec.Content, loaded.Content)

		entry, err := node.Service.AppendToLedger(ctx, loaded)
		require.NoError(t, err)
		assert.Equal(t, 0, entry.BlockID)
		require.NoError(t, node.Service.VerifyChain(ctx))

		require.NoError(t, node.Service.RebuildIndex(ctx))
		hits, err := node.Service.Search(ctx, core.SearchFilter{Text: "Milliarden"})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, res.ID, hits[0].ID)

		out, err := node.Service.GetContext(ctx, "Erde", 0)
		require.NoError(t, err)
		assert.Contains(t, out, "Alter der Erde")
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults Without A File", func(t *testing.T) {
		cfg, err := platform.LoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, ":8377", cfg.ListenAddr)
		assert.Equal(t, "owner", cfg.Role)
		assert.Equal(t, 15, cfg.HTTPTimeoutSeconds)
	})

	t.Run("Reads YAML And Backfills", func(t *testing.T) {
		dir := t.TempDir()
		yaml := "listen_addr: \":9000\"\npeers:\n  - http://peer-a:8377\nrole: assistant\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, platform.ConfigFileName), []byte(yaml), 0o644))

		cfg, err := platform.LoadConfig(dir)
		require.NoError(t, err)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, []string{"http://peer-a:8377"}, cfg.Peers)
		assert.Equal(t, "assistant", cfg.Role)
		assert.Equal(t, 15, cfg.HTTPTimeoutSeconds)
	})

	t.Run("Env Overrides File", func(t *testing.T) {
		t.Setenv("LEDGER_LISTEN_ADDR", ":7000")
		t.Setenv("LEDGER_STRICT_VERIFY", "false")

		cfg, err := platform.LoadConfig(t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, ":7000", cfg.ListenAddr)
		require.NotNil(t, cfg.StrictVerify)
		assert.False(t, *cfg.StrictVerify)
	})

	t.Run("Broken YAML Is An Error", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, platform.ConfigFileName), []byte(":\n  - ]["), 0o644))
		_, err := platform.LoadConfig(dir)
		assert.Error(t, err)
	})
}
