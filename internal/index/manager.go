package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/attachmcp/attachmcp/internal/store"
)

// DefaultCacheCapacity bounds how many store indexes stay in memory.
const DefaultCacheCapacity = 10

// DefaultTopN is the result cut applied when the caller gives none.
const DefaultTopN = 5

// RelevanceKeyword marks hits produced by BM25 keyword matching.
const RelevanceKeyword = "keyword"

// ChunkSource supplies the persisted chunks an index is rebuilt from.
type ChunkSource interface {
	ListChunksByStore(ctx context.Context, storeID string) ([]*store.Chunk, error)
	GetChunk(ctx context.Context, id string) (*store.Chunk, error)
}

// SearchOptions tunes one search call.
type SearchOptions struct {
	// TopN caps the result count. Zero or negative means DefaultTopN.
	TopN int
	// Threshold drops hits scoring below it.
	Threshold float64
}

// Hit is one search result with its resolved chunk context.
type Hit struct {
	ContentID     string
	ChunkID       string
	Context       string
	StartLine     int
	EndLine       int
	Score         float64
	RelevanceType string
}

// entry is one store's cached index. Its mutex serializes the
// read-then-add mutation path per store.
type entry struct {
	mu  sync.Mutex
	idx *bm25Index
}

// Manager keeps a query-ready BM25 index per store, bounded by a strict
// LRU cache. An evicted index is rebuilt from persisted chunks on the next
// add or search that touches its store.
type Manager struct {
	source ChunkSource
	cfg    Config
	logger *slog.Logger

	cache *lru.Cache[string, *entry]
	group singleflight.Group

	mu       sync.Mutex
	rebuilds map[string]int
}

// NewManager creates a Manager with the given cache capacity.
// capacity <= 0 falls back to DefaultCacheCapacity.
func NewManager(source ChunkSource, cfg Config, capacity int, logger *slog.Logger) (*Manager, error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		source:   source,
		cfg:      cfg,
		logger:   logger,
		rebuilds: make(map[string]int),
	}

	cache, err := lru.NewWithEvict[string, *entry](capacity, func(storeID string, _ *entry) {
		m.logger.Debug("index evicted", "store_id", storeID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create index cache: %w", err)
	}
	m.cache = cache
	return m, nil
}

// AddChunks feeds freshly persisted chunks into a store's index.
// When no index is cached, the store is rebuilt from all persisted chunks
// instead, which already include the new ones.
func (m *Manager) AddChunks(ctx context.Context, storeID string, chunks []*store.Chunk) error {
	e, ok := m.cache.Get(storeID)
	if !ok {
		_, err := m.rebuild(ctx, storeID)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range chunks {
		if e.idx.Has(ch.ID) {
			continue
		}
		e.idx.Add(ch.ID, ch.Text)
	}
	return nil
}

// Search runs a BM25 query against a store's index, rebuilding it first if
// it is not cached. An empty store yields an empty result, not an error.
func (m *Manager) Search(ctx context.Context, storeID, query string, opts SearchOptions) ([]Hit, error) {
	e, ok := m.cache.Get(storeID)
	if !ok {
		var err error
		e, err = m.rebuild(ctx, storeID)
		if err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	results := e.idx.Search(query)
	e.mu.Unlock()

	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	var hits []Hit
	for _, r := range results {
		if r.Score < opts.Threshold {
			continue
		}
		ch, err := m.source.GetChunk(ctx, r.ID)
		if err != nil {
			// A missing chunk row costs one hit, not the whole search
			m.logger.Warn("failed to resolve search hit", "chunk_id", r.ID, "error", err)
			continue
		}
		hits = append(hits, Hit{
			ContentID:     ch.ContentID,
			ChunkID:       ch.ID,
			Context:       ch.Text,
			StartLine:     ch.StartLine,
			EndLine:       ch.EndLine,
			Score:         r.Score,
			RelevanceType: RelevanceKeyword,
		})
		if len(hits) == topN {
			break
		}
	}
	return hits, nil
}

// Invalidate drops a store's cached index, e.g. after the store is deleted.
func (m *Manager) Invalidate(storeID string) {
	m.cache.Remove(storeID)
}

// Cached reports whether a store's index is currently in memory, without
// touching its recency.
func (m *Manager) Cached(storeID string) bool {
	return m.cache.Contains(storeID)
}

// RebuildCount returns how many times a store's index has been rebuilt.
func (m *Manager) RebuildCount(storeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rebuilds[storeID]
}

// rebuild constructs a store's index from its persisted chunks and caches
// it. Concurrent rebuilds of the same store collapse into one.
func (m *Manager) rebuild(ctx context.Context, storeID string) (*entry, error) {
	v, err, _ := m.group.Do(storeID, func() (any, error) {
		if e, ok := m.cache.Get(storeID); ok {
			return e, nil
		}

		chunks, err := m.source.ListChunksByStore(ctx, storeID)
		if err != nil {
			return nil, fmt.Errorf("failed to load chunks for rebuild: %w", err)
		}

		idx := newBM25Index(m.cfg)
		for _, ch := range chunks {
			idx.Add(ch.ID, ch.Text)
		}

		e := &entry{idx: idx}
		m.cache.Add(storeID, e)

		m.mu.Lock()
		m.rebuilds[storeID]++
		m.mu.Unlock()

		m.logger.Debug("index rebuilt", "store_id", storeID, "chunks", idx.Len())
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}
