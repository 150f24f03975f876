package index

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attachmcp/attachmcp/internal/store"
)

// fakeSource serves chunks from memory and counts rebuild reads.
type fakeSource struct {
	mu     sync.Mutex
	chunks map[string][]*store.Chunk
}

func newFakeSource() *fakeSource {
	return &fakeSource{chunks: make(map[string][]*store.Chunk)}
}

func (f *fakeSource) add(storeID, contentID, text string, idx int) *store.Chunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := &store.Chunk{
		ID:        store.ChunkID(contentID, idx),
		ContentID: contentID,
		StoreID:   storeID,
		Index:     idx,
		Text:      text,
		StartLine: 1,
		EndLine:   1,
	}
	f.chunks[storeID] = append(f.chunks[storeID], ch)
	return ch
}

func (f *fakeSource) ListChunksByStore(_ context.Context, storeID string) ([]*store.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*store.Chunk(nil), f.chunks[storeID]...), nil
}

func (f *fakeSource) GetChunk(_ context.Context, id string) (*store.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, chunks := range f.chunks {
		for _, ch := range chunks {
			if ch.ID == id {
				return ch, nil
			}
		}
	}
	return nil, fmt.Errorf("chunk %s not found", id)
}

func newTestManager(t *testing.T, source ChunkSource, capacity int) *Manager {
	t.Helper()
	m, err := NewManager(source, DefaultConfig(), capacity, nil)
	require.NoError(t, err)
	return m
}

func TestSearchRebuildsLazily(t *testing.T) {
	source := newFakeSource()
	source.add("store_a", "content_1", "the dog ran fast today", 0)
	m := newTestManager(t, source, 10)

	// No index cached yet
	assert.False(t, m.Cached("store_a"))

	hits, err := m.Search(context.Background(), "store_a", "dog", SearchOptions{})
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "content_1", hits[0].ContentID)
	assert.Equal(t, RelevanceKeyword, hits[0].RelevanceType)
	assert.Equal(t, 1, hits[0].StartLine)
	assert.Positive(t, hits[0].Score)
	assert.Equal(t, 1, m.RebuildCount("store_a"))
	assert.True(t, m.Cached("store_a"))
}

func TestSearchEmptyStoreReturnsEmpty(t *testing.T) {
	m := newTestManager(t, newFakeSource(), 10)

	hits, err := m.Search(context.Background(), "store_empty", "anything", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchAppliesThresholdAndTopN(t *testing.T) {
	source := newFakeSource()
	for i := 0; i < 8; i++ {
		source.add("store_a", "content_1", "dog stories volume", i)
	}
	m := newTestManager(t, source, 10)

	hits, err := m.Search(context.Background(), "store_a", "dog", SearchOptions{TopN: 3})
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	// Default cut is five
	hits, err = m.Search(context.Background(), "store_a", "dog", SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, hits, 5)

	// An impossible threshold filters everything out
	hits, err = m.Search(context.Background(), "store_a", "dog", SearchOptions{Threshold: 1e9})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchNoMatchAboveThresholdZero(t *testing.T) {
	source := newFakeSource()
	source.add("store_a", "content_1", "The cat sat. The dog ran fast today.", 0)
	m := newTestManager(t, source, 10)

	hits, err := m.Search(context.Background(), "store_a", "elephant", SearchOptions{Threshold: 0})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestAddChunksIncremental(t *testing.T) {
	source := newFakeSource()
	first := source.add("store_a", "content_1", "alpha beta", 0)
	m := newTestManager(t, source, 10)

	// Cold store: AddChunks triggers a full rebuild
	require.NoError(t, m.AddChunks(context.Background(), "store_a", []*store.Chunk{first}))
	assert.Equal(t, 1, m.RebuildCount("store_a"))

	// Warm store: new chunks are added incrementally, no rebuild
	second := source.add("store_a", "content_2", "gamma delta", 0)
	require.NoError(t, m.AddChunks(context.Background(), "store_a", []*store.Chunk{second}))
	assert.Equal(t, 1, m.RebuildCount("store_a"))

	hits, err := m.Search(context.Background(), "store_a", "gamma", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "content_2", hits[0].ContentID)
}

func TestAddChunksIgnoresAlreadyIndexed(t *testing.T) {
	source := newFakeSource()
	ch := source.add("store_a", "content_1", "unique pelican", 0)
	m := newTestManager(t, source, 10)

	require.NoError(t, m.AddChunks(context.Background(), "store_a", []*store.Chunk{ch}))
	require.NoError(t, m.AddChunks(context.Background(), "store_a", []*store.Chunk{ch}))

	hits, err := m.Search(context.Background(), "store_a", "pelican", SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestEvictionBeyondCapacity(t *testing.T) {
	// Given a cache capped at 10 and 11 distinct stores
	source := newFakeSource()
	m := newTestManager(t, source, 10)

	for i := 0; i < 11; i++ {
		storeID := fmt.Sprintf("store_%d", i)
		source.add(storeID, "content_1", "searchable words here", 0)
		_, err := m.Search(context.Background(), storeID, "words", SearchOptions{})
		require.NoError(t, err)
	}

	// Then the least-recently-touched store was evicted
	assert.False(t, m.Cached("store_0"))
	assert.True(t, m.Cached("store_10"))

	// And its next search triggers an observable rebuild over intact chunks
	hits, err := m.Search(context.Background(), "store_0", "words", SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Equal(t, 2, m.RebuildCount("store_0"))
}

func TestInvalidateDropsCachedIndex(t *testing.T) {
	source := newFakeSource()
	source.add("store_a", "content_1", "something", 0)
	m := newTestManager(t, source, 10)

	_, err := m.Search(context.Background(), "store_a", "something", SearchOptions{})
	require.NoError(t, err)
	require.True(t, m.Cached("store_a"))

	m.Invalidate("store_a")
	assert.False(t, m.Cached("store_a"))
}

func TestConcurrentSearchesSameStore(t *testing.T) {
	source := newFakeSource()
	source.add("store_a", "content_1", "parallel safe search", 0)
	m := newTestManager(t, source, 10)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := m.Search(context.Background(), "store_a", "parallel", SearchOptions{})
			assert.NoError(t, err)
			assert.Len(t, hits, 1)
		}()
	}
	wg.Wait()
}
