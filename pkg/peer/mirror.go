package peer

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lfs "github.com/Gertschi2011/kiana-ledger/pkg/adapters/fs"
	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

// MirrorOptions tunes a push pass.
type MirrorOptions struct {
	// Delete removes target files that no longer exist in the source.
	Delete bool
	Logger *slog.Logger
}

// MirrorResult summarizes a push pass.
type MirrorResult struct {
	Copied  int
	Deleted int
	Skipped int
}

// Mirror copies every block and record file from sourceDir into targetDir,
// skipping targets that are already byte-identical. Writes are atomic, so a
// reader of the target never observes a partial file.
func Mirror(ctx context.Context, sourceDir, targetDir string, opts MirrorOptions) (MirrorResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var result MirrorResult

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return result, core.WrapError(core.CodeTransport, err, "cannot create mirror target %s", targetDir)
	}

	seen := make(map[string]bool)

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" || strings.HasPrefix(d.Name(), ".") && rel != "." {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".json") || strings.HasPrefix(d.Name(), lfs.TempFilePrefix) {
			return nil
		}

		seen[rel] = true
		target := filepath.Join(targetDir, rel)

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if existing, err := os.ReadFile(target); err == nil && bytes.Equal(existing, data) {
			result.Skipped++
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := lfs.WriteFileAtomic(target, data, 0o644); err != nil {
			return err
		}
		result.Copied++
		return nil
	})
	if err != nil {
		return result, err
	}

	if opts.Delete {
		deleted, err := pruneTarget(ctx, targetDir, seen)
		result.Deleted = deleted
		if err != nil {
			return result, err
		}
	}

	logger.Info("mirror complete",
		"source", sourceDir,
		"target", targetDir,
		"copied", result.Copied,
		"skipped", result.Skipped,
		"deleted", result.Deleted)
	return result, nil
}

func pruneTarget(ctx context.Context, targetDir string, seen map[string]bool) (int, error) {
	deleted := 0
	err := filepath.WalkDir(targetDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		rel, err := filepath.Rel(targetDir, path)
		if err != nil {
			return err
		}
		if seen[rel] {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		deleted++
		return nil
	})
	return deleted, err
}
