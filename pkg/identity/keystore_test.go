package identity_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Gertschi2011/kiana-ledger/pkg/identity"
)

func TestEnsureIdentity(t *testing.T) {
	t.Run("Generates Once And Reloads", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "keys")
		ks := identity.NewKeyStore(dir, nil)

		first, err := ks.EnsureIdentity("owner")
		if err != nil {
			t.Fatalf("EnsureIdentity failed: %v", err)
		}
		if first.PublicKeyHex == "" {
			t.Fatal("expected a public key")
		}

		second, err := ks.EnsureIdentity("owner")
		if err != nil {
			t.Fatalf("second EnsureIdentity failed: %v", err)
		}
		if second.PublicKeyHex != first.PublicKeyHex {
			t.Errorf("identity regenerated: %s vs %s", second.PublicKeyHex, first.PublicKeyHex)
		}
	})

	t.Run("Private Key Is Owner Only", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("file modes are not meaningful on windows")
		}
		dir := filepath.Join(t.TempDir(), "keys")
		ks := identity.NewKeyStore(dir, nil)

		if _, err := ks.EnsureIdentity("owner"); err != nil {
			t.Fatalf("EnsureIdentity failed: %v", err)
		}

		info, err := os.Stat(filepath.Join(dir, "owner.key"))
		if err != nil {
			t.Fatalf("stat private key: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("private key mode = %o, want 600", perm)
		}
	})

	t.Run("Rejects Unsafe Role Names", func(t *testing.T) {
		ks := identity.NewKeyStore(t.TempDir(), nil)
		for _, role := range []string{"", "../evil", "UPPER", ".hidden"} {
			if _, err := ks.EnsureIdentity(role); err == nil {
				t.Errorf("role %q accepted", role)
			}
		}
	})

	t.Run("Distinct Roles Get Distinct Keys", func(t *testing.T) {
		ks := identity.NewKeyStore(t.TempDir(), nil)
		owner, err := ks.EnsureIdentity("owner")
		if err != nil {
			t.Fatalf("EnsureIdentity failed: %v", err)
		}
		agent, err := ks.EnsureIdentity("agent")
		if err != nil {
			t.Fatalf("EnsureIdentity failed: %v", err)
		}
		if owner.PublicKeyHex == agent.PublicKeyHex {
			t.Error("roles share a keypair")
		}
	})
}

func TestRekey(t *testing.T) {
	ks := identity.NewKeyStore(t.TempDir(), nil)

	old, err := ks.EnsureIdentity("owner")
	if err != nil {
		t.Fatalf("EnsureIdentity failed: %v", err)
	}

	fresh, oldKey, err := ks.Rekey("owner")
	if err != nil {
		t.Fatalf("Rekey failed: %v", err)
	}
	if oldKey != old.PublicKeyHex {
		t.Errorf("reported old key %s, want %s", oldKey, old.PublicKeyHex)
	}
	if fresh.PublicKeyHex == old.PublicKeyHex {
		t.Error("rekey returned the same public key")
	}

	// The fresh key is now the persisted identity.
	reloaded, err := ks.EnsureIdentity("owner")
	if err != nil {
		t.Fatalf("EnsureIdentity after rekey failed: %v", err)
	}
	if reloaded.PublicKeyHex != fresh.PublicKeyHex {
		t.Errorf("reloaded %s, want %s", reloaded.PublicKeyHex, fresh.PublicKeyHex)
	}
}
