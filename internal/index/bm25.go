// Package index maintains per-store BM25 keyword indexes.
//
// Indexes live in memory only. Each one is derivable from the persisted
// chunks of its store, so the manager keeps at most a fixed number cached
// and rebuilds evicted ones on demand.
package index

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Config holds the BM25 ranking parameters.
type Config struct {
	// K1 controls term-frequency saturation.
	K1 float64
	// B controls document-length normalization.
	B float64
}

// DefaultConfig returns the standard BM25 parameters.
func DefaultConfig() Config {
	return Config{K1: 1.2, B: 0.75}
}

// Result is one scored document.
type Result struct {
	// ID is the document (chunk) id.
	ID string
	// Score is the raw BM25 score, always positive.
	Score float64
}

// bm25Index is an in-memory inverted index over one store's chunks.
// Not safe for concurrent use; the manager serializes access per store.
type bm25Index struct {
	cfg Config

	// order preserves insertion order for deterministic tie-breaking.
	order    []string
	seen     map[string]struct{}
	docLen   map[string]int
	totalLen int

	// postings maps term -> doc id -> term frequency.
	postings map[string]map[string]int
}

func newBM25Index(cfg Config) *bm25Index {
	if cfg.K1 <= 0 {
		cfg.K1 = DefaultConfig().K1
	}
	if cfg.B < 0 || cfg.B > 1 {
		cfg.B = DefaultConfig().B
	}
	return &bm25Index{
		cfg:      cfg,
		seen:     make(map[string]struct{}),
		docLen:   make(map[string]int),
		postings: make(map[string]map[string]int),
	}
}

// Add indexes a document. A duplicate id is ignored, so feeding the same
// chunk twice never double-counts its terms.
func (i *bm25Index) Add(id, text string) {
	if _, dup := i.seen[id]; dup {
		return
	}
	i.seen[id] = struct{}{}
	i.order = append(i.order, id)

	tokens := Tokenize(text)
	i.docLen[id] = len(tokens)
	i.totalLen += len(tokens)

	for _, tok := range tokens {
		m, ok := i.postings[tok]
		if !ok {
			m = make(map[string]int)
			i.postings[tok] = m
		}
		m[id]++
	}
}

// Has reports whether a document id is already indexed.
func (i *bm25Index) Has(id string) bool {
	_, ok := i.seen[id]
	return ok
}

// Len returns the number of indexed documents.
func (i *bm25Index) Len() int {
	return len(i.order)
}

// Search scores every document against the query and returns positive-score
// results in descending score order. Ties keep insertion order.
func (i *bm25Index) Search(query string) []Result {
	terms := Tokenize(query)
	if len(terms) == 0 || len(i.order) == 0 {
		return nil
	}

	n := float64(len(i.order))
	avgLen := float64(i.totalLen) / n

	scores := make(map[string]float64)
	for _, term := range terms {
		posting, ok := i.postings[term]
		if !ok {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for id, tf := range posting {
			dl := float64(i.docLen[id])
			norm := 1 - i.cfg.B + i.cfg.B*dl/avgLen
			scores[id] += idf * (float64(tf) * (i.cfg.K1 + 1)) / (float64(tf) + i.cfg.K1*norm)
		}
	}

	// Collect in insertion order so the stable sort breaks ties by it
	results := make([]Result, 0, len(scores))
	for _, id := range i.order {
		if s, ok := scores[id]; ok && s > 0 {
			results = append(results, Result{ID: id, Score: s})
		}
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	return results
}

// Normalize lowercases text, maps punctuation to spaces, and collapses
// whitespace. Documents and queries go through the same normalization.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokenize normalizes text and splits it into terms.
func Tokenize(text string) []string {
	norm := Normalize(text)
	if norm == "" {
		return nil
	}
	return strings.Split(norm, " ")
}
