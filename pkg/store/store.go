// Package store owns the on-disk message record store: three bbolt
// buckets — vectors, metadata, and an id registry — keyed as
// "vec:<id>", "meta:<id>", and "all_ids". It is the only package that
// touches the backing database file; everything above it (LSH, metadata
// indexes, the vector DB facade) works through the Record type this
// package returns.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/chatmind-dev/chatmind/pkg/kvcodec"
)

// ErrNotFound indicates the requested id has no record.
var ErrNotFound = errors.New("store: not found")

// ErrInvalidVector indicates a vector failed validity checks at write time.
var ErrInvalidVector = errors.New("store: invalid vector")

// ErrEmptyID indicates an empty id was supplied to a mutating operation.
var ErrEmptyID = errors.New("store: empty id")

// StoreError names the operation a store failure occurred in, so a caller
// logging it has enough context without string-matching the message.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

var (
	bucketVectors  = []byte("vectors")
	bucketMetadata = []byte("metadata")
	bucketIndex    = []byte("index")
	keyAllIDs      = []byte("all_ids")
)

// Record is a fully decoded message record.
type Record struct {
	ID       string
	Vector   []float64
	Metadata kvcodec.Metadata
}

// Validate is injected by callers that need vector validity rules beyond
// "non-empty" (the vecmath package defines the canonical check); kept as a
// function value so store has no import-cycle dependency on vecmath.
type Validate func(v []float64) bool

// Store is the single-writer-multi-reader vector store.
type Store struct {
	db       *bbolt.DB
	validate Validate
	mu       sync.RWMutex // serialises registry read-modify-write across Put/Delete
	logger   *slog.Logger
}

// Open opens (creating if necessary) the bbolt-backed store at path and
// ensures the three named buckets exist.
func Open(path string, validate Validate) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketVectors, bucketMetadata, bucketIndex} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initialising buckets: %w", err)
	}
	return &Store{
		db:       db,
		validate: validate,
		logger:   slog.Default().With("component", "vector-store"),
	}, nil
}

// Close closes the backing database.
func (s *Store) Close() error {
	return s.db.Close()
}

func vecKey(id string) []byte  { return []byte("vec:" + id) }
func metaKey(id string) []byte { return []byte("meta:" + id) }

// Put writes vector and meta for id, and ensures id is present in the
// registry (idempotent — re-putting an existing id does not duplicate it).
func (s *Store) Put(id string, vector []float64, meta kvcodec.Metadata) error {
	if id == "" {
		return &StoreError{Op: "put", Err: ErrEmptyID}
	}
	if s.validate != nil && !s.validate(vector) {
		return &StoreError{Op: "put", Err: ErrInvalidVector}
	}

	vecBlob := kvcodec.EncodeVector(vector)
	metaBlob, err := kvcodec.EncodeMetadata(meta)
	if err != nil {
		return fmt.Errorf("store: encoding metadata for %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketVectors).Put(vecKey(id), []byte(vecBlob)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketMetadata).Put(metaKey(id), []byte(metaBlob)); err != nil {
			return err
		}
		return addToRegistry(tx, id)
	})
}

// PutBatch is best-effort: it writes every entry it can and returns the
// count successfully written, without aborting on the first failure.
func (s *Store) PutBatch(entries map[string]struct {
	Vector []float64
	Meta   kvcodec.Metadata
}) int {
	n := 0
	for id, e := range entries {
		if err := s.Put(id, e.Vector, e.Meta); err != nil {
			s.logger.Warn("put_batch entry failed", "id", id, "error", err)
			continue
		}
		n++
	}
	return n
}

// Get returns the decoded record for id, or ErrNotFound.
func (s *Store) Get(id string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		vecBlob := tx.Bucket(bucketVectors).Get(vecKey(id))
		if vecBlob == nil {
			return &StoreError{Op: "get", Err: ErrNotFound}
		}
		vector, err := kvcodec.DecodeVector(string(vecBlob))
		if err != nil {
			return fmt.Errorf("decoding vector for %s: %w", id, err)
		}
		metaBlob := tx.Bucket(bucketMetadata).Get(metaKey(id))
		meta, err := kvcodec.DecodeMetadata(string(metaBlob))
		if err != nil {
			return fmt.Errorf("decoding metadata for %s: %w", id, err)
		}
		rec = Record{ID: id, Vector: vector, Metadata: meta}
		return nil
	})
	return rec, err
}

// Delete removes both blobs for id and drops it from the registry.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketVectors).Delete(vecKey(id)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketMetadata).Delete(metaKey(id)); err != nil {
			return err
		}
		return removeFromRegistry(tx, id)
	})
}

// Count returns the number of ids in the registry.
func (s *Store) Count() (int, error) {
	ids, err := s.AllIDs()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// AllIDs returns every id in the registry, in insertion order.
func (s *Store) AllIDs() ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		ids = readRegistry(tx)
		return nil
	})
	return ids, err
}

func readRegistry(tx *bbolt.Tx) []string {
	blob := tx.Bucket(bucketIndex).Get(keyAllIDs)
	if len(blob) == 0 {
		return nil
	}
	return splitCSV(string(blob))
}

func writeRegistry(tx *bbolt.Tx, ids []string) error {
	return tx.Bucket(bucketIndex).Put(keyAllIDs, []byte(joinCSV(ids)))
}

func addToRegistry(tx *bbolt.Tx, id string) error {
	ids := readRegistry(tx)
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	return writeRegistry(tx, ids)
}

func removeFromRegistry(tx *bbolt.Tx, id string) error {
	ids := readRegistry(tx)
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return writeRegistry(tx, out)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func joinCSV(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}
