package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// Service handles the business logic of the ledger. It owns its stores and
// its lock; there is no ambient global state.
type Service struct {
	repo     Repository
	ledger   Ledger
	searcher Searcher
	signer   Signer
	broker   *Broker
	logger   *slog.Logger
}

// NewService wires the ledger components together.
func NewService(repo Repository, ledger Ledger, searcher Searcher, signer Signer, broker *Broker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if broker == nil {
		broker = NewBroker(0, logger)
	}
	return &Service{
		repo:     repo,
		ledger:   ledger,
		searcher: searcher,
		signer:   signer,
		broker:   broker,
		logger:   logger,
	}
}

// Store validates and persists a candidate record. The record must already
// carry a valid signature; unsigned records are never stored. A best-effort
// notification is published on success and never fails the store.
func (s *Service) Store(ctx context.Context, rec *Record) (StoreResult, error) {
	res, err := s.repo.Store(ctx, rec, StoreOptions{})
	if err != nil {
		return res, err
	}
	if !res.Dedup {
		s.broker.Publish(Event{
			Type:      EventCreate,
			ID:        res.ID,
			Hash:      res.Hash,
			Timestamp: time.Now().Unix(),
		})
	}
	return res, nil
}

// EditOptions describes a supersession. Empty fields keep the old value.
type EditOptions struct {
	Content string
	Status  Status
	Reason  string
}

// Edit supersedes an existing record with a new one whose Meta.PrevID points
// back at it. The original is never mutated or deleted. Returns the new id.
func (s *Service) Edit(ctx context.Context, id string, opts EditOptions) (string, error) {
	old, err := s.repo.Load(ctx, id, true)
	if err != nil {
		return "", err
	}

	rec := old.Clone()
	rec.ID = ""
	rec.Hash = ""
	rec.Signature = ""
	rec.PubKey = ""
	rec.SignedAt = ""
	rec.Timestamp = Now()
	rec.Meta.PrevID = id
	rec.Meta.CanonicalHash = ""
	rec.Meta.ChangeReason = opts.Reason
	if opts.Content != "" {
		rec.Content = opts.Content
	}
	if opts.Status != "" {
		rec.Meta.Status = opts.Status
	} else {
		rec.Meta.Status = StatusActive
	}

	if err := s.signer.Sign(rec); err != nil {
		return "", err
	}

	res, err := s.repo.Store(ctx, rec, StoreOptions{})
	if err != nil {
		return "", err
	}
	if res.Dedup {
		return res.ID, nil
	}

	s.broker.Publish(Event{
		Type:      EventModify,
		ID:        res.ID,
		Hash:      res.Hash,
		Timestamp: time.Now().Unix(),
	})
	return res.ID, nil
}

// Load retrieves a record, verifying hash and signature unless verify is
// disabled explicitly.
func (s *Service) Load(ctx context.Context, id string, verify bool) (*Record, error) {
	return s.repo.Load(ctx, id, verify)
}

// Query runs a filtered scan over stored records.
func (s *Service) Query(ctx context.Context, f QueryFilter) ([]*Record, error) {
	return s.repo.Query(ctx, f)
}

// Search queries the inverted index.
func (s *Service) Search(ctx context.Context, f SearchFilter) ([]IndexMeta, error) {
	return s.searcher.Search(ctx, f)
}

// RebuildIndex recomputes the full search index.
func (s *Service) RebuildIndex(ctx context.Context) error {
	return s.searcher.Rebuild(ctx)
}

// GetContext assembles the top-matching snippets for a free-text query into
// a single block of prompt context, capped at maxChars.
func (s *Service) GetContext(ctx context.Context, query string, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = 2000
	}
	matches, err := s.searcher.Search(ctx, SearchFilter{Text: query, Limit: 10})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, m := range matches {
		rec, err := s.repo.Load(ctx, m.ID, true)
		if err != nil {
			s.logger.Warn("skipping unverifiable record in context", "id", m.ID, "error", err)
			continue
		}

		snippet := rec.Content
		heading := rec.Title
		if heading == "" {
			heading = rec.Topic
		}
		block := snippet
		if heading != "" {
			block = fmt.Sprintf("## %s\n%s", heading, snippet)
		}

		remaining := maxChars - b.Len()
		if remaining <= 0 {
			break
		}
		if len(block) > remaining {
			// Cut back to a rune boundary so the snippet stays valid UTF-8.
			cut := remaining
			for cut > 0 && !utf8.RuneStart(block[cut]) {
				cut--
			}
			block = block[:cut]
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block)
	}
	return b.String(), nil
}

// AppendToLedger commits an audit-significant record to the chain.
func (s *Service) AppendToLedger(ctx context.Context, rec *Record) (*ChainEntry, error) {
	entry, err := s.ledger.Append(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.broker.Publish(Event{
		Type:      EventAppend,
		ID:        entry.ID,
		Hash:      entry.Hash,
		Timestamp: time.Now().Unix(),
	})
	return entry, nil
}

// VerifyChain checks the full chain from genesis, fail-fast.
func (s *Service) VerifyChain(ctx context.Context) error {
	return s.ledger.Verify(ctx)
}

// Subscribe returns a bounded event channel fed by store and chain
// operations. Slow subscribers miss events instead of blocking producers.
func (s *Service) Subscribe() (<-chan Event, func()) {
	return s.broker.Subscribe()
}

// Watch observes external changes in the repository if supported.
func (s *Service) Watch(ctx context.Context, pattern string) (<-chan Event, error) {
	w, ok := s.repo.(Watchable)
	if !ok {
		return nil, fmt.Errorf("repository does not support watching")
	}
	return w.Watch(ctx, pattern)
}

// Repository exposes the underlying record store.
func (s *Service) Repository() Repository { return s.repo }

// Ledger exposes the underlying chain.
func (s *Service) Ledger() Ledger { return s.ledger }

// Close releases the notification broker.
func (s *Service) Close() {
	s.broker.Close()
}
