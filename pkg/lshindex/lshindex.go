// Package lshindex implements random-hyperplane Locality-Sensitive Hashing
// for approximate cosine recall across a fixed-dimension vector space. The
// hyperplane dimension is fixed at construction time (per the design note
// on hyperplane/dimension mismatch): vectors of a different dimension are
// rejected rather than silently triggering a per-hash regeneration. Rebuild
// is the only path that regenerates hyperplanes, and it is always an
// explicit administrative action.
package lshindex

import (
	"errors"
	"math/rand"
	"sort"
	"sync"

	"github.com/chatmind-dev/chatmind/pkg/vecmath"
)

// ErrDimensionMismatch is returned when a vector's dimension does not match
// the index's fixed dimension.
var ErrDimensionMismatch = errors.New("lshindex: vector dimension does not match index")

// Config controls table count, hyperplane count, and bucket sizing.
type Config struct {
	NumTables           int
	HyperplanesPerTable int
	BucketSizeLimit     int // soft cap; buckets are allowed to exceed it
	Dimension           int
	Seed                int64
}

// DefaultConfig returns the documented defaults for a given dimension.
func DefaultConfig(dimension int) Config {
	return Config{
		NumTables:           5,
		HyperplanesPerTable: 10,
		BucketSizeLimit:     200,
		Dimension:           dimension,
	}
}

// Result is one ranked search hit.
type Result struct {
	ID         string
	Similarity float64
}

type table struct {
	hyperplanes [][]float64          // HyperplanesPerTable x Dimension, unit vectors
	buckets     map[string][]string  // hash -> ids, insertion order preserved
	bucketOf    map[string]string    // id -> hash, for O(1) removal on re-insert
}

// Index is the LSH candidate-selection structure. Safe for concurrent use;
// callers serialise writers externally per the shared vector-DB lock, but
// Search also takes its own read lock so it is safe standalone.
type Index struct {
	mu      sync.RWMutex
	cfg     Config
	tables  []*table
	vectors map[string][]float64 // id -> vector, needed to re-rank candidates by true cosine
	order   []string             // insertion order, for stable tie-breaking
	rng     *rand.Rand
}

// New builds an LSH index with freshly sampled hyperplanes.
func New(cfg Config) *Index {
	if cfg.NumTables <= 0 {
		cfg.NumTables = 5
	}
	if cfg.HyperplanesPerTable <= 0 {
		cfg.HyperplanesPerTable = 10
	}
	idx := &Index{
		cfg:     cfg,
		vectors: make(map[string][]float64),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}
	idx.tables = idx.freshTables()
	return idx
}

func (idx *Index) freshTables() []*table {
	tables := make([]*table, idx.cfg.NumTables)
	for t := range tables {
		planes := make([][]float64, idx.cfg.HyperplanesPerTable)
		for i := range planes {
			planes[i] = randomUnitVector(idx.rng, idx.cfg.Dimension)
		}
		tables[t] = &table{
			hyperplanes: planes,
			buckets:     make(map[string][]string),
			bucketOf:    make(map[string]string),
		}
	}
	return tables
}

func randomUnitVector(rng *rand.Rand, dim int) []float64 {
	v := make([]float64, dim)
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	return vecmath.Normalise(v)
}

func hashFor(v []float64, planes [][]float64) string {
	bits := make([]byte, len(planes))
	for i, plane := range planes {
		dot, _ := vecmath.Dot(v, plane)
		if dot >= 0 {
			bits[i] = '1'
		} else {
			bits[i] = '0'
		}
	}
	return string(bits)
}

// Insert hashes v into every table and records it for candidate re-ranking.
// Returns ErrDimensionMismatch if v's length differs from the index's fixed
// dimension.
func (idx *Index) Insert(id string, v []float64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.insertLocked(id, v)
}

func (idx *Index) insertLocked(id string, v []float64) error {
	if len(v) != idx.cfg.Dimension {
		return ErrDimensionMismatch
	}
	if _, exists := idx.vectors[id]; !exists {
		idx.order = append(idx.order, id)
	} else {
		idx.removeFromTablesLocked(id)
	}
	idx.vectors[id] = v
	for _, t := range idx.tables {
		h := hashFor(v, t.hyperplanes)
		if existingHash, ok := t.bucketOf[id]; ok && existingHash == h {
			continue
		}
		t.bucketOf[id] = h
		t.buckets[h] = appendIfAbsent(t.buckets[h], id)
	}
	return nil
}

func (idx *Index) removeFromTablesLocked(id string) {
	for _, t := range idx.tables {
		if h, ok := t.bucketOf[id]; ok {
			t.buckets[h] = removeString(t.buckets[h], id)
			delete(t.bucketOf, id)
		}
	}
}

// Delete removes id from every table and from the candidate vector set.
func (idx *Index) Delete(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeFromTablesLocked(id)
	delete(idx.vectors, id)
	idx.order = removeString(idx.order, id)
}

// Search unions the ids colliding with query across all tables, ranks
// candidates by collision count (ties broken by insertion order), evaluates
// true cosine similarity for up to min(3*limit, 100) of the top candidates,
// filters by threshold, sorts by similarity descending, and truncates to
// limit.
func (idx *Index) Search(query []float64, limit int, threshold float64) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(query) != idx.cfg.Dimension {
		return nil, ErrDimensionMismatch
	}
	if limit <= 0 {
		return nil, nil
	}

	collisions := make(map[string]int)
	for _, t := range idx.tables {
		h := hashFor(query, t.hyperplanes)
		for _, id := range t.buckets[h] {
			collisions[id]++
		}
	}
	if len(collisions) == 0 {
		return nil, nil
	}

	orderIndex := make(map[string]int, len(idx.order))
	for i, id := range idx.order {
		orderIndex[id] = i
	}

	candidates := make([]string, 0, len(collisions))
	for id := range collisions {
		candidates = append(candidates, id)
	}
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := collisions[candidates[i]], collisions[candidates[j]]
		if ci != cj {
			return ci > cj
		}
		return orderIndex[candidates[i]] < orderIndex[candidates[j]]
	})

	evalCount := limit * 3
	if evalCount > 100 {
		evalCount = 100
	}
	if evalCount > len(candidates) {
		evalCount = len(candidates)
	}
	candidates = candidates[:evalCount]

	results := make([]Result, 0, len(candidates))
	for _, id := range candidates {
		sim, err := vecmath.Cosine(query, idx.vectors[id])
		if err != nil {
			continue
		}
		if sim >= threshold {
			results = append(results, Result{ID: id, Similarity: sim})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Rebuild clears every table, regenerates hyperplanes, and re-hashes every
// stored vector. This is always an explicit administrative action; the
// index never regenerates hyperplanes implicitly.
func (idx *Index) Rebuild() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ids := make([]string, len(idx.order))
	copy(ids, idx.order)
	vectors := idx.vectors

	idx.tables = idx.freshTables()
	idx.vectors = make(map[string][]float64, len(vectors))
	idx.order = nil

	for _, id := range ids {
		_ = idx.insertLocked(id, vectors[id])
	}
}

// Dimension returns the index's fixed vector dimension.
func (idx *Index) Dimension() int { return idx.cfg.Dimension }

func appendIfAbsent(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeString(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
