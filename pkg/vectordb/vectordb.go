// Package vectordb is the facade combining the vector store, the LSH
// index, and the metadata indexes: it decides per-query whether to route
// through LSH or fall back to a filtered cosine scan, and keeps all three
// sub-structures consistent under a single-writer-multi-reader lock.
package vectordb

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/chatmind-dev/chatmind/pkg/kvcodec"
	"github.com/chatmind-dev/chatmind/pkg/lshindex"
	"github.com/chatmind-dev/chatmind/pkg/metaindex"
	"github.com/chatmind-dev/chatmind/pkg/store"
	"github.com/chatmind-dev/chatmind/pkg/vecmath"
)

// recognisedIndexPattern matches filter keys that only the metadata index
// can answer (timestamp ranges, text tokens, explicit "_range" fields).
// Any filter key matching this forces a metadata-index-backed scan instead
// of LSH, since LSH has no notion of these predicates.
var recognisedIndexPattern = regexp.MustCompile(`^timestamp_|_text$|_range$`)

// DB is the vector DB facade. Safe for concurrent use.
type DB struct {
	mu        sync.RWMutex
	store     *store.Store
	lsh       *lshindex.Index
	lshEnabled bool
	meta      *metaindex.Index
	dimension int
}

// Config controls LSH enablement and declared metadata fields.
type Config struct {
	Dimension    int
	EnableLSH    bool
	LSH          lshindex.Config // ignored if EnableLSH is false
	ExactFields  []string
	RangeFields  []string
	TextFields   []string
}

// Open builds a facade over a vector store at path.
func Open(path string, cfg Config) (*DB, error) {
	s, err := store.Open(path, func(v []float64) bool {
		return vecmath.IsValid(v) && len(v) == cfg.Dimension
	})
	if err != nil {
		return nil, err
	}

	meta := metaindex.New()
	for _, f := range cfg.ExactFields {
		meta.DeclareField(f, metaindex.Exact)
	}
	for _, f := range cfg.RangeFields {
		meta.DeclareField(f, metaindex.Range)
	}
	for _, f := range cfg.TextFields {
		meta.DeclareField(f, metaindex.Text)
	}

	db := &DB{
		store:      s,
		meta:       meta,
		lshEnabled: cfg.EnableLSH,
		dimension:  cfg.Dimension,
	}
	if cfg.EnableLSH {
		lshCfg := cfg.LSH
		lshCfg.Dimension = cfg.Dimension
		db.lsh = lshindex.New(lshCfg)
	}

	if err := db.loadExistingLocked(); err != nil {
		s.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) loadExistingLocked() error {
	ids, err := db.store.AllIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		rec, err := db.store.Get(id)
		if err != nil {
			continue
		}
		db.indexRecord(id, rec)
	}
	return nil
}

func (db *DB) indexRecord(id string, rec store.Record) {
	if db.lshEnabled && len(rec.Vector) == db.dimension {
		_ = db.lsh.Insert(id, rec.Vector)
	}
	db.meta.IndexRecord(id, rec.Metadata)
}

// Close closes the backing store.
func (db *DB) Close() error {
	return db.store.Close()
}

// Insert writes a new (or replaces an existing) record and updates every
// index.
func (db *DB) Insert(id string, vector []float64, meta kvcodec.Metadata) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.insertLocked(id, vector, meta)
}

func (db *DB) insertLocked(id string, vector []float64, meta kvcodec.Metadata) error {
	if err := db.store.Put(id, vector, meta); err != nil {
		return err
	}
	db.meta.Remove(id)
	db.indexRecord(id, store.Record{ID: id, Vector: vector, Metadata: meta})
	return nil
}

// InsertBatch is best-effort and returns the count successfully written.
func (db *DB) InsertBatch(entries map[string]struct {
	Vector []float64
	Meta   kvcodec.Metadata
}) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for id, e := range entries {
		if err := db.insertLocked(id, e.Vector, e.Meta); err == nil {
			n++
		}
	}
	return n
}

// Update merges changes into id's metadata and re-indexes; the vector is
// left unchanged.
func (db *DB) Update(id string, changes kvcodec.Metadata) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	rec, err := db.store.Get(id)
	if err != nil {
		return err
	}
	merged := kvcodec.Metadata{}
	for k, v := range rec.Metadata {
		merged[k] = v
	}
	for k, v := range changes {
		merged[k] = v
	}
	return db.insertLocked(id, rec.Vector, merged)
}

// Delete removes id from the store and every index.
func (db *DB) Delete(id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.deleteLocked(id)
}

func (db *DB) deleteLocked(id string) error {
	if err := db.store.Delete(id); err != nil {
		return err
	}
	if db.lshEnabled {
		db.lsh.Delete(id)
	}
	db.meta.Remove(id)
	return nil
}

// DeleteWhere deletes every record matching filters.
func (db *DB) DeleteWhere(filters metaindex.Filters) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	allIDs, err := db.store.AllIDs()
	if err != nil {
		return 0, err
	}
	candidates := db.meta.FilterCandidates(filters, allIDs)
	n := 0
	for _, id := range candidates {
		if err := db.deleteLocked(id); err == nil {
			n++
		}
	}
	return n, nil
}

// Get returns the record for id.
func (db *DB) Get(id string) (store.Record, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.store.Get(id)
}

// Exists reports whether id has a record.
func (db *DB) Exists(id string) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, err := db.store.Get(id)
	return err == nil
}

// Query describes a similarity search request.
type Query struct {
	Vector    []float64
	Limit     int
	Threshold float64
	Filters   metaindex.Filters
}

// SearchResult is one ranked hit.
type SearchResult struct {
	ID         string
	Similarity float64
	Record     store.Record
}

// Search routes to LSH when it is enabled and no filter key requires the
// metadata index (timestamp ranges, text tokens, explicit range fields);
// otherwise it resolves candidates through the metadata index and cosine-
// scans only those ids.
func (db *DB) Search(q Query) ([]SearchResult, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.lshEnabled && !db.filtersRequireMetaIndex(q.Filters) {
		hits, err := db.lsh.Search(q.Vector, q.Limit, q.Threshold)
		if err != nil {
			return nil, err
		}
		return db.hydrate(hits)
	}
	return db.scanLocked(q)
}

func (db *DB) filtersRequireMetaIndex(filters metaindex.Filters) bool {
	for key := range filters {
		if recognisedIndexPattern.MatchString(key) {
			return true
		}
	}
	return false
}

func (db *DB) hydrate(hits []lshindex.Result) ([]SearchResult, error) {
	out := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		rec, err := db.store.Get(h.ID)
		if err != nil {
			continue
		}
		out = append(out, SearchResult{ID: h.ID, Similarity: h.Similarity, Record: rec})
	}
	return out, nil
}

func (db *DB) scanLocked(q Query) ([]SearchResult, error) {
	allIDs, err := db.store.AllIDs()
	if err != nil {
		return nil, err
	}
	candidates := db.meta.FilterCandidates(q.Filters, allIDs)

	results := make([]SearchResult, 0, len(candidates))
	for _, id := range candidates {
		rec, err := db.store.Get(id)
		if err != nil {
			continue
		}
		sim, err := vecmath.Cosine(q.Vector, rec.Vector)
		if err != nil {
			continue
		}
		if sim >= q.Threshold {
			results = append(results, SearchResult{ID: id, Similarity: sim, Record: rec})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, nil
}

// KNN finds the k nearest neighbours of v via whichever path Search would
// choose. Filters narrow the candidates only on the metadata-index scan
// path; when Search routes to LSH they are not applied.
func (db *DB) KNN(v []float64, k int, filters metaindex.Filters) ([]SearchResult, error) {
	return db.Search(Query{Vector: v, Limit: k, Threshold: -1, Filters: filters})
}

// SearchByDistance returns every record within [minSim, maxSim] of v.
func (db *DB) SearchByDistance(v []float64, minSim, maxSim float64, filters metaindex.Filters) ([]SearchResult, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	allIDs, err := db.store.AllIDs()
	if err != nil {
		return nil, err
	}
	candidates := db.meta.FilterCandidates(filters, allIDs)

	var out []SearchResult
	for _, id := range candidates {
		rec, err := db.store.Get(id)
		if err != nil {
			continue
		}
		sim, err := vecmath.Cosine(v, rec.Vector)
		if err != nil {
			continue
		}
		if sim >= minSim && sim <= maxSim {
			out = append(out, SearchResult{ID: id, Similarity: sim, Record: rec})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out, nil
}

// FindOutliers returns the ids whose mean cosine similarity to every other
// record falls below threshold — a cheap proxy for "doesn't belong to any
// cluster", evaluated by brute-force pairwise comparison.
func (db *DB) FindOutliers(threshold float64) ([]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	ids, err := db.store.AllIDs()
	if err != nil {
		return nil, err
	}
	records := make(map[string]store.Record, len(ids))
	for _, id := range ids {
		rec, err := db.store.Get(id)
		if err != nil {
			continue
		}
		records[id] = rec
	}

	var outliers []string
	for _, id := range ids {
		rec, ok := records[id]
		if !ok {
			continue
		}
		var sum float64
		count := 0
		for otherID, other := range records {
			if otherID == id {
				continue
			}
			sim, err := vecmath.Cosine(rec.Vector, other.Vector)
			if err != nil {
				continue
			}
			sum += sim
			count++
		}
		if count == 0 {
			continue
		}
		if sum/float64(count) < threshold {
			outliers = append(outliers, id)
		}
	}
	sort.Strings(outliers)
	return outliers, nil
}

// ValidationReport summarises store integrity.
type ValidationReport struct {
	Total      int
	Valid      int
	InvalidIDs []string
	Integrity  float64
}

// Validate checks every stored record's vector for validity.
func (db *DB) Validate() (ValidationReport, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	ids, err := db.store.AllIDs()
	if err != nil {
		return ValidationReport{}, err
	}
	report := ValidationReport{Total: len(ids)}
	for _, id := range ids {
		rec, err := db.store.Get(id)
		if err != nil || !vecmath.IsValid(rec.Vector) || len(rec.Vector) != db.dimension {
			report.InvalidIDs = append(report.InvalidIDs, id)
			continue
		}
		report.Valid++
	}
	if report.Total > 0 {
		report.Integrity = float64(report.Valid) / float64(report.Total)
	}
	return report, nil
}

// RebuildIndexes clears and regenerates the LSH index (new hyperplanes) and
// the metadata index, re-hashing/re-indexing every stored record. This is
// always an explicit administrative action — never triggered implicitly by
// a dimension mismatch.
func (db *DB) RebuildIndexes() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	ids, err := db.store.AllIDs()
	if err != nil {
		return err
	}

	if db.lshEnabled {
		db.lsh.Rebuild()
	}
	db.meta = metaindexWithSameFields(db.meta)

	for _, id := range ids {
		rec, err := db.store.Get(id)
		if err != nil {
			continue
		}
		db.meta.IndexRecord(id, rec.Metadata)
		if db.lshEnabled {
			_ = db.lsh.Insert(id, rec.Vector)
		}
	}
	return nil
}

func metaindexWithSameFields(old *metaindex.Index) *metaindex.Index {
	fresh := metaindex.New()
	for field, ft := range old.Fields() {
		fresh.DeclareField(field, ft)
	}
	return fresh
}

// Stats summarises the facade's current state.
type Stats struct {
	Count        int
	LSHEnabled   bool
	Dimension    int
}

// Stats returns a snapshot of facade-level counters.
func (db *DB) Stats() (Stats, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	count, err := db.store.Count()
	if err != nil {
		return Stats{}, fmt.Errorf("vectordb: stats: %w", err)
	}
	return Stats{Count: count, LSHEnabled: db.lshEnabled, Dimension: db.dimension}, nil
}
