package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Gertschi2011/kiana-ledger/pkg/canonical"
	"github.com/Gertschi2011/kiana-ledger/pkg/chain"
	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

// passIDKey carries the pull pass id so outgoing requests and per-entry
// logs can be correlated with the peer's request log.
type passIDKey struct{}

// DefaultTimeout bounds every HTTP request issued by a Client.
const DefaultTimeout = 15 * time.Second

// maxBodyBytes caps how much of a peer response is read into memory.
const maxBodyBytes = 8 << 20

// ClientConfig wires the collaborators of a pull client.
type ClientConfig struct {
	Ledger  *chain.Ledger
	Repo    core.Repository
	Logger  *slog.Logger
	Metrics *Metrics

	// Timeout bounds each HTTP request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Client pulls chain entries and records from a remote peer. Every entry
// is re-hashed locally before it is persisted; nothing the peer claims is
// trusted as-is.
type Client struct {
	ledger  *chain.Ledger
	repo    core.Repository
	http    *http.Client
	logger  *slog.Logger
	metrics *Metrics
}

// PullOptions tunes a single pull pass.
type PullOptions struct {
	// IncludeRecords also mirrors loose records, not just chain entries.
	IncludeRecords bool
}

// PullFailure records one entry that could not be applied.
type PullFailure struct {
	ID     string
	Reason string
}

// PullResult summarizes a pull pass. Failures never abort the pass; each
// failed entry is recorded and the rest proceed.
type PullResult struct {
	Listed   int
	Written  int
	Skipped  int
	Failures []PullFailure
}

// NewClient builds a pull client.
func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		ledger:  cfg.Ledger,
		repo:    cfg.Repo,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// Pull fetches the remote block listing and imports every chain entry that
// is missing locally. A listing whose hash matches a local entry is skipped
// without a fetch. Entries that fail verification are recorded in
// PullResult.Failures and never persisted.
func (c *Client) Pull(ctx context.Context, baseURL string, opts PullOptions) (PullResult, error) {
	start := time.Now()
	defer func() { c.metrics.ObservePullDuration(time.Since(start)) }()

	pass := uuid.NewString()
	ctx = context.WithValue(ctx, passIDKey{}, pass)

	base := strings.TrimRight(baseURL, "/")
	var result PullResult

	var listing blockListResponse
	if err := c.getJSON(ctx, base+"/blocks", &listing); err != nil {
		return result, core.WrapError(core.CodeTransport, err, "cannot list blocks from %s", base)
	}

	for _, b := range listing.Blocks {
		if b.Origin != core.ChainOrigin {
			continue
		}
		result.Listed++

		if err := ctx.Err(); err != nil {
			return result, err
		}

		local, err := c.ledger.Find(ctx, b.ID)
		if err != nil {
			return result, err
		}
		if local != nil && local.Hash == b.Hash {
			result.Skipped++
			c.metrics.CountPullEntry("skipped")
			continue
		}

		if err := c.pullEntry(ctx, base, b.ID, &result); err != nil {
			return result, err
		}
	}

	if opts.IncludeRecords {
		if err := c.pullRecords(ctx, base, &result); err != nil {
			return result, err
		}
	}

	c.logger.Info("pull complete",
		"pass", pass,
		"peer", base,
		"listed", result.Listed,
		"written", result.Written,
		"skipped", result.Skipped,
		"failures", len(result.Failures))
	return result, nil
}

func (c *Client) pullEntry(ctx context.Context, base, id string, result *PullResult) error {
	var resp blockResponse
	err := c.getJSON(ctx, base+"/block/by-id/"+url.PathEscape(id), &resp)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.fail(ctx, result, id, err.Error())
		return nil
	}
	if resp.Block == nil {
		c.fail(ctx, result, id, "peer returned no block body")
		return nil
	}

	computed, err := canonical.Hash(resp.Block)
	if err != nil {
		c.fail(ctx, result, id, "cannot canonicalize entry: "+err.Error())
		return nil
	}
	if computed != resp.Block.Hash {
		c.fail(ctx, result, id, fmt.Sprintf("hash mismatch: claimed %s, computed %s", resp.Block.Hash, computed))
		return nil
	}

	written, err := c.ledger.Import(ctx, resp.Block)
	if err != nil {
		c.fail(ctx, result, id, err.Error())
		return nil
	}
	if written {
		result.Written++
		c.metrics.CountPullEntry("written")
	} else {
		result.Skipped++
		c.metrics.CountPullEntry("skipped")
	}
	return nil
}

func (c *Client) pullRecords(ctx context.Context, base string, result *PullResult) error {
	var listing recordListResponse
	if err := c.getJSON(ctx, base+"/records", &listing); err != nil {
		return core.WrapError(core.CodeTransport, err, "cannot list records from %s", base)
	}

	for _, r := range listing.Records {
		result.Listed++

		if err := ctx.Err(); err != nil {
			return err
		}

		if local, err := c.repo.Load(ctx, r.ID, false); err == nil && local.Hash == r.Hash {
			result.Skipped++
			c.metrics.CountPullEntry("skipped")
			continue
		}

		var resp recordResponse
		if err := c.getJSON(ctx, base+"/record/by-id/"+url.PathEscape(r.ID), &resp); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.fail(ctx, result, r.ID, err.Error())
			continue
		}
		if resp.Record == nil {
			c.fail(ctx, result, r.ID, "peer returned no record body")
			continue
		}

		computed, err := canonical.Hash(resp.Record)
		if err != nil {
			c.fail(ctx, result, r.ID, "cannot canonicalize record: "+err.Error())
			continue
		}
		if computed != resp.Record.Hash {
			c.fail(ctx, result, r.ID, fmt.Sprintf("hash mismatch: claimed %s, computed %s", resp.Record.Hash, computed))
			continue
		}

		if _, err := c.repo.Store(ctx, resp.Record, core.StoreOptions{}); err != nil {
			c.fail(ctx, result, r.ID, err.Error())
			continue
		}
		result.Written++
		c.metrics.CountPullEntry("written")
	}
	return nil
}

func (c *Client) fail(ctx context.Context, result *PullResult, id, reason string) {
	logger := c.logger
	if pass, ok := ctx.Value(passIDKey{}).(string); ok {
		logger = logger.With("pass", pass)
	}
	logger.Warn("pull entry rejected", "id", id, "reason", reason)
	c.metrics.CountPullEntry("rejected")
	result.Failures = append(result.Failures, PullFailure{ID: id, Reason: reason})
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	if pass, ok := ctx.Value(passIDKey{}).(string); ok {
		req.Header.Set("X-Request-ID", pass)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer returned %s for %s", resp.Status, rawURL)
	}
	return json.Unmarshal(body, out)
}
