// Package vectorstore is the hybrid embedding store: durable vector
// rows in SQLite plus an in-memory similarity index. The index
// strategy is resolved once at construction — a layered HNSW graph, or
// an exact brute-force scan when HNSW is disabled — and both sides of
// that choice serve the same search contract, so callers never know
// which is active.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/skillsync/skillsync/internal/db"
)

const searchCacheSize = 256

// Options configures the store. Zero fields take defaults.
type Options struct {
	Dimensions     int
	M              int
	EfConstruction int
	EfSearch       int
	MaxElements    int
	UseHNSW        bool
	SnapshotPath   string
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		Dimensions:     384,
		M:              16,
		EfConstruction: 200,
		EfSearch:       50,
		MaxElements:    10000,
		UseHNSW:        true,
	}
}

func (o *Options) fillDefaults() {
	def := DefaultOptions()
	if o.Dimensions <= 0 {
		o.Dimensions = def.Dimensions
	}
	if o.M <= 0 {
		o.M = def.M
	}
	if o.EfConstruction <= 0 {
		o.EfConstruction = def.EfConstruction
	}
	if o.EfSearch <= 0 {
		o.EfSearch = def.EfSearch
	}
	if o.MaxElements <= 0 {
		o.MaxElements = def.MaxElements
	}
}

// Store is the durable, queryable embedding store.
//
// All mutations are serialized under one lock because the index is not
// safe under concurrent mutation; reads share an RLock and may run
// concurrently with each other but never overlap a mutation.
type Store struct {
	db       *db.DB
	opts     Options
	mu       sync.RWMutex
	index    vectorIndex
	fallback bool
	cache    *lru.Cache[string, []Hit]
}

// Stats is a read-only snapshot of the store's state.
type Stats struct {
	VectorCount        int     `json:"vector_count"`
	UtilizationPercent float64 `json:"utilization_percent"`
	Dimensions         int     `json:"dimensions"`
	IsHNSWEnabled      bool    `json:"is_hnsw_enabled"`
	M                  int     `json:"m"`
	EfConstruction     int     `json:"ef_construction"`
	EfSearch           int     `json:"ef_search"`
	MaxElements        int     `json:"max_elements"`
}

// BatchItem is one embedding in a bulk insert.
type BatchItem struct {
	SkillID    string
	Vector     []float32
	SourceText string
}

// BatchError records a single failed item.
type BatchError struct {
	SkillID string `json:"skill_id"`
	Error   string `json:"error"`
}

// BatchResult summarizes a bulk insert. Failures are isolated per
// item; the batch is never transactional-all-or-nothing.
type BatchResult struct {
	Inserted   int          `json:"inserted"`
	Updated    int          `json:"updated"`
	Failed     int          `json:"failed"`
	Errors     []BatchError `json:"errors,omitempty"`
	DurationMS int64        `json:"duration_ms"`
}

// Open migrates the embedding table and builds the in-memory index,
// from a snapshot when one is present and compatible, otherwise by
// replaying all persisted vectors. Opening is the only potentially
// slow operation; everything after is CPU-bound.
func Open(ctx context.Context, d *db.DB, opts Options) (*Store, error) {
	opts.fillDefaults()

	schema := `
	CREATE TABLE IF NOT EXISTS skill_embeddings (
		skill_id    TEXT PRIMARY KEY,
		vector      BLOB NOT NULL,
		dimensions  INTEGER NOT NULL,
		source_text TEXT NOT NULL DEFAULT '',
		updated_at  TEXT NOT NULL
	);`
	if _, err := d.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("migrate embeddings: %w", err)
	}

	// The dimension is fixed per database. Changing it requires a
	// full reindex, never an in-place migration.
	var storedDims sql.NullInt64
	err := d.QueryRowContext(ctx,
		`SELECT dimensions FROM skill_embeddings LIMIT 1`).Scan(&storedDims)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("check dimensions: %w", err)
	}
	if storedDims.Valid && int(storedDims.Int64) != opts.Dimensions {
		return nil, fmt.Errorf("database has %d-dimension vectors, configured for %d: reindex required",
			storedDims.Int64, opts.Dimensions)
	}

	cache, err := lru.New[string, []Hit](searchCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Store{db: d, opts: opts, cache: cache}

	if err := s.buildIndex(ctx); err != nil {
		return nil, err
	}
	if s.index.Len() > opts.MaxElements {
		return nil, fmt.Errorf("%w: %d vectors exceed capacity %d",
			ErrCapacityExceeded, s.index.Len(), opts.MaxElements)
	}
	return s, nil
}

// buildIndex resolves the index strategy and populates it.
func (s *Store) buildIndex(ctx context.Context) error {
	if !s.opts.UseHNSW {
		s.fallback = true
		idx := newBruteIndex()
		if err := s.replay(ctx, idx); err != nil {
			return err
		}
		s.index = idx
		slog.Info("vector index ready", "mode", "bruteforce", "vectors", idx.Len())
		return nil
	}

	cfg := hnswConfig{m: s.opts.M, efConstruction: s.opts.EfConstruction, efSearch: s.opts.EfSearch}

	if idx := s.loadSnapshot(ctx, cfg); idx != nil {
		s.index = idx
		slog.Info("vector index ready", "mode", "hnsw", "vectors", idx.Len(), "source", "snapshot")
		return nil
	}

	idx := newHNSWIndex(cfg)
	if err := s.replay(ctx, idx); err != nil {
		return err
	}
	s.index = idx
	slog.Info("vector index ready", "mode", "hnsw", "vectors", idx.Len(), "source", "rebuild")
	return nil
}

// replay streams every persisted vector into the index.
func (s *Store) replay(ctx context.Context, idx vectorIndex) error {
	rows, err := s.db.QueryContext(ctx, `SELECT skill_id, vector FROM skill_embeddings`)
	if err != nil {
		return fmt.Errorf("replay vectors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return fmt.Errorf("decode vector for %s: %w", id, err)
		}
		idx.Add(id, vec)
	}
	return rows.Err()
}

// loadSnapshot returns a usable index or nil. A stale or incompatible
// snapshot is never an error, just a rebuild.
func (s *Store) loadSnapshot(ctx context.Context, cfg hnswConfig) *hnswIndex {
	if s.opts.SnapshotPath == "" {
		return nil
	}
	data, err := os.ReadFile(s.opts.SnapshotPath)
	if err != nil {
		return nil
	}
	idx, err := unmarshalSnapshot(data, s.opts.Dimensions, cfg)
	if err != nil {
		slog.Warn("ignoring index snapshot", "error", err)
		return nil
	}

	// The snapshot must cover exactly the persisted rows; otherwise
	// the table has moved on and the graph must be rebuilt.
	rows, err := s.db.QueryContext(ctx, `SELECT skill_id FROM skill_embeddings`)
	if err != nil {
		return nil
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil
		}
		if _, ok := idx.pos[id]; !ok {
			slog.Warn("ignoring index snapshot", "reason", "stale id set")
			return nil
		}
		count++
	}
	if count != idx.Len() {
		slog.Warn("ignoring index snapshot", "reason", "stale id set")
		return nil
	}
	return idx
}

// SaveSnapshot persists the current graph so the next open can skip
// the rebuild. No-op in fallback mode or without a configured path.
func (s *Store) SaveSnapshot() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.index.(*hnswIndex)
	if !ok || s.opts.SnapshotPath == "" {
		return nil
	}
	data := idx.marshalSnapshot(s.opts.Dimensions)
	tmp := s.opts.SnapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, s.opts.SnapshotPath)
}

// Close saves the snapshot. The database handle is shared and closed
// by its owner, not here.
func (s *Store) Close() error {
	return s.SaveSnapshot()
}

// UsingFallback reports whether exact brute-force search is active.
func (s *Store) UsingFallback() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback
}

func (s *Store) validateDims(vec []float32) error {
	if len(vec) != s.opts.Dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), s.opts.Dimensions)
	}
	return nil
}

// StoreEmbedding validates, then upserts the persisted row and the
// index entry. Re-storing an existing id replaces both. Validation
// failures reject before any mutation.
func (s *Store) StoreEmbedding(ctx context.Context, skillID string, vec []float32, sourceText string) error {
	_, err := s.storeOne(ctx, skillID, vec, sourceText)
	return err
}

// storeOne reports whether the write replaced an existing row.
func (s *Store) storeOne(ctx context.Context, skillID string, vec []float32, sourceText string) (bool, error) {
	if err := s.validateDims(vec); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM skill_embeddings WHERE skill_id = ?`, skillID).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}
	updating := err == nil

	if !updating && s.index.Len() >= s.opts.MaxElements {
		return false, fmt.Errorf("%w: capacity %d reached", ErrCapacityExceeded, s.opts.MaxElements)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO skill_embeddings (skill_id, vector, dimensions, source_text, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		skillID, encodeVector(vec), s.opts.Dimensions, sourceText,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("store embedding %s: %w", skillID, err)
	}

	s.index.Add(skillID, vec)
	s.cache.Purge()
	return updating, nil
}

// GetEmbedding returns the exact persisted vector, or nil when absent.
func (s *Store) GetEmbedding(ctx context.Context, skillID string) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT vector FROM skill_embeddings WHERE skill_id = ?`, skillID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeVector(blob)
}

// GetAllEmbeddings materializes every stored vector. Maintenance use
// only, not a hot path.
func (s *Store) GetAllEmbeddings(ctx context.Context) (map[string][]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT skill_id, vector FROM skill_embeddings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all := make(map[string][]float32)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		all[id] = vec
	}
	return all, rows.Err()
}

// FindSimilar returns up to topK hits by descending cosine similarity.
// An empty store yields an empty result, not an error.
func (s *Store) FindSimilar(queryVec []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}
	if err := s.validateDims(queryVec); err != nil {
		return nil, err
	}

	key := cacheKey(queryVec, topK)
	if hits, ok := s.cache.Get(key); ok {
		return hits, nil
	}

	s.mu.RLock()
	hits := s.index.Search(queryVec, topK)
	if hits == nil {
		hits = []Hit{}
	}
	// Cache while still holding the read lock: a mutation's Purge runs
	// under the write lock, so it cannot slip between the search and
	// the cache fill and leave pre-mutation hits behind.
	s.cache.Add(key, hits)
	s.mu.RUnlock()

	return hits, nil
}

// BatchInsert processes items one by one; a bad item is recorded and
// skipped, never aborting the rest.
func (s *Store) BatchInsert(ctx context.Context, items []BatchItem) *BatchResult {
	start := time.Now()
	result := &BatchResult{}

	for _, item := range items {
		updated, err := s.storeOne(ctx, item.SkillID, item.Vector, item.SourceText)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BatchError{SkillID: item.SkillID, Error: err.Error()})
			continue
		}
		if updated {
			result.Updated++
		} else {
			result.Inserted++
		}
	}

	result.DurationMS = time.Since(start).Milliseconds()
	return result
}

// RemoveEmbedding deletes from both the table and the index. Returns
// false (not an error) when the id was absent.
func (s *Store) RemoveEmbedding(ctx context.Context, skillID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM skill_embeddings WHERE skill_id = ?`, skillID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	removed := s.index.Remove(skillID)
	if n > 0 || removed {
		s.cache.Purge()
	}
	return n > 0 || removed, nil
}

// Stats returns a point-in-time snapshot. No side effects.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		VectorCount:        s.index.Len(),
		UtilizationPercent: float64(s.index.Len()) / float64(s.opts.MaxElements) * 100,
		Dimensions:         s.opts.Dimensions,
		IsHNSWEnabled:      !s.fallback,
		M:                  s.opts.M,
		EfConstruction:     s.opts.EfConstruction,
		EfSearch:           s.opts.EfSearch,
		MaxElements:        s.opts.MaxElements,
	}
}

// Reindex rebuilds the in-memory index from the persisted rows.
func (s *Store) Reindex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var idx vectorIndex
	if s.fallback {
		idx = newBruteIndex()
	} else {
		idx = newHNSWIndex(hnswConfig{
			m: s.opts.M, efConstruction: s.opts.EfConstruction, efSearch: s.opts.EfSearch,
		})
	}
	if err := s.replay(ctx, idx); err != nil {
		return err
	}
	s.index = idx
	s.cache.Purge()
	return nil
}

// Dimensions returns the fixed vector dimension for this database.
func (s *Store) Dimensions() int { return s.opts.Dimensions }

func cacheKey(vec []float32, k int) string {
	h := fnv.New64a()
	h.Write(encodeVector(vec))
	return strconv.FormatUint(h.Sum64(), 16) + ":" + strconv.Itoa(k)
}
