// Package index builds and queries an inverted index over stored records
// for retrieval by the surrounding assistant.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/Gertschi2011/kiana-ledger/pkg/core"
)

// tagPrefix keys the synthetic postings for tag, topic and source values.
const tagPrefix = "__tag__:"

// topicBonus is the flat score bonus for an exact topic match.
const topicBonus = 5

type indexFile struct {
	Version     int                       `json:"version"`
	BuiltAt     string                    `json:"built_at"`
	RecordCount int                       `json:"record_count"`
	Postings    map[string][]string       `json:"postings"`
	Meta        map[string]core.IndexMeta `json:"meta"`
}

// Index is a full-rebuild inverted index. Search lazily builds (or loads the
// persisted copy) on first use; callers decide when to rebuild after that.
type Index struct {
	repo   core.Repository
	path   string // persisted index file, empty disables persistence
	logger *slog.Logger

	mu    sync.RWMutex
	data  indexFile
	built bool
}

// New creates an index over repo. path is where the built index is
// persisted; pass "" to keep it in memory only.
func New(repo core.Repository, path string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{repo: repo, path: path, logger: logger}
}

// Rebuild recomputes the full index from the repository and persists it.
func (ix *Index) Rebuild(ctx context.Context) error {
	recs, err := ix.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list records for indexing: %w", err)
	}

	data := indexFile{
		Version:     1,
		BuiltAt:     core.Now(),
		RecordCount: len(recs),
		Postings:    make(map[string][]string),
		Meta:        make(map[string]core.IndexMeta),
	}

	seen := make(map[string]map[string]bool) // term -> id set
	post := func(term, id string) {
		if term == "" {
			return
		}
		if seen[term] == nil {
			seen[term] = make(map[string]bool)
		}
		seen[term][id] = true
	}

	for _, rec := range recs {
		if rec.ID == "" {
			continue
		}
		for _, term := range tokenize(rec.Title + " " + rec.Content) {
			post(term, rec.ID)
		}
		for _, tag := range rec.Tags {
			post(tagPrefix+strings.ToLower(tag), rec.ID)
		}
		if rec.Topic != "" {
			post(tagPrefix+strings.ToLower(rec.Topic), rec.ID)
		}
		if rec.Meta.Source != "" {
			post(tagPrefix+strings.ToLower(rec.Meta.Source), rec.ID)
		}

		data.Meta[rec.ID] = core.IndexMeta{
			ID:            rec.ID,
			Title:         rec.Title,
			Topic:         rec.Topic,
			Tags:          append([]string(nil), rec.Tags...),
			Source:        rec.Meta.Source,
			ContentLength: len(rec.Content),
		}
	}

	for term, ids := range seen {
		sorted := make([]string, 0, len(ids))
		for id := range ids {
			sorted = append(sorted, id)
		}
		sort.Strings(sorted)
		data.Postings[term] = sorted
	}

	ix.mu.Lock()
	ix.data = data
	ix.built = true
	ix.mu.Unlock()

	if err := ix.persist(data); err != nil {
		// A stale persisted copy is rebuilt on next load; don't fail the build.
		ix.logger.Warn("failed to persist search index", "error", err)
	}

	ix.logger.Debug("search index rebuilt", "records", data.RecordCount, "terms", len(data.Postings))
	return nil
}

// Search intersects the postings implied by each set filter (AND semantics,
// including across terms within Text), scores candidates by term overlap
// with title/topic/tags, and returns the top Limit matches.
func (ix *Index) Search(ctx context.Context, f core.SearchFilter) ([]core.IndexMeta, error) {
	if err := ix.ensureBuilt(ctx); err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var candidate map[string]bool
	restricted := false

	restrict := func(ids []string) {
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		if !restricted {
			candidate = set
			restricted = true
			return
		}
		for id := range candidate {
			if !set[id] {
				delete(candidate, id)
			}
		}
	}

	if f.Topic != "" {
		restrict(ix.data.Postings[tagPrefix+strings.ToLower(f.Topic)])
	}
	for _, tag := range f.Tags {
		restrict(ix.data.Postings[tagPrefix+strings.ToLower(tag)])
	}
	if f.Source != "" {
		restrict(ix.data.Postings[tagPrefix+strings.ToLower(f.Source)])
	}

	queryTerms := tokenize(f.Text)
	for _, term := range queryTerms {
		restrict(ix.data.Postings[term])
	}

	// No filter restricted anything: fall back to the full id set.
	if !restricted {
		candidate = make(map[string]bool, len(ix.data.Meta))
		for id := range ix.data.Meta {
			candidate[id] = true
		}
	}

	results := make([]core.IndexMeta, 0, len(candidate))
	for id := range candidate {
		meta, ok := ix.data.Meta[id]
		if !ok {
			continue
		}
		meta.Score = score(meta, queryTerms, f.Topic)
		results = append(results, meta)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	limit := f.Limit
	if limit <= 0 || limit > len(results) {
		limit = len(results)
	}
	return results[:limit], nil
}

// score counts the overlap between query terms and the document's title,
// topic and tag terms, with a flat bonus for an exact topic match.
func score(meta core.IndexMeta, queryTerms []string, topic string) int {
	docTerms := make(map[string]bool)
	for _, t := range tokenize(meta.Title) {
		docTerms[t] = true
	}
	for _, t := range tokenize(meta.Topic) {
		docTerms[t] = true
	}
	for _, tag := range meta.Tags {
		for _, t := range tokenize(tag) {
			docTerms[t] = true
		}
	}

	s := 0
	for _, t := range queryTerms {
		if docTerms[t] {
			s++
		}
	}
	if topic != "" && strings.EqualFold(meta.Topic, topic) {
		s += topicBonus
	}
	return s
}

// tokenize splits text into lowercase alphanumeric terms.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ensureBuilt lazily loads the persisted index or builds from scratch.
func (ix *Index) ensureBuilt(ctx context.Context) error {
	ix.mu.RLock()
	built := ix.built
	ix.mu.RUnlock()
	if built {
		return nil
	}

	if ix.path != "" {
		if data, err := os.ReadFile(ix.path); err == nil {
			var loaded indexFile
			if err := json.Unmarshal(data, &loaded); err == nil && loaded.Postings != nil {
				ix.mu.Lock()
				ix.data = loaded
				ix.built = true
				ix.mu.Unlock()
				return nil
			}
			ix.logger.Warn("persisted search index unreadable, rebuilding", "path", ix.path)
		}
	}
	return ix.Rebuild(ctx)
}

func (ix *Index) persist(data indexFile) error {
	if ix.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(ix.path), 0755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ix.path, append(b, '\n'), 0644)
}

var _ core.Searcher = (*Index)(nil)
