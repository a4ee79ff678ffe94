// Package memory is an in-process db.Store. Vector search is an exact
// cosine scan over the hashes covered by an index.
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/vec/search"

	"github.com/kailas-cloud/sieve/internal/db"
	"github.com/kailas-cloud/sieve/internal/domain/search/predicate"
)

type kvEntry struct {
	value    []byte
	expireAt time.Time
}

// Store keeps hashes, plain values and index definitions in maps.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	hashes  map[string]map[string]string
	kv      map[string]kvEntry
	indexes map[string]*db.IndexDefinition
	now     func() time.Time
}

var _ db.Store = (*Store)(nil)

// Option configures Store.
type Option func(*Store)

// WithClock overrides the clock used for TTL expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		hashes:  make(map[string]map[string]string),
		kv:      make(map[string]kvEntry),
		indexes: make(map[string]*db.IndexDefinition),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// --- hashes ---

// HSet merges fields into a hash.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hsetLocked(key, fields)
	return nil
}

// HSetMulti writes several hashes under one lock.
func (s *Store) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.hsetLocked(it.Key, it.Fields)
	}
	return nil
}

func (s *Store) hsetLocked(key string, fields map[string]string) {
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
}

// HGetAll returns a copy of a hash. A missing key yields an empty map,
// as HGETALL does.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyFields(s.hashes[key]), nil
}

// HGetAllMulti returns copies of several hashes; a missing key yields an empty map.
func (s *Store) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = copyFields(s.hashes[k])
	}
	return out, nil
}

// Del removes a hash or value.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, key)
	delete(s.kv, key)
	return nil
}

// Exists reports whether a hash or live value is stored under key.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.hashes[key]; ok {
		return true, nil
	}
	_, ok := s.liveLocked(key)
	return ok, nil
}

// Scan returns keys matching a glob pattern, sorted.
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.hashes {
		ok, err := path.Match(pattern, k)
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		if ok {
			keys = append(keys, k)
		}
	}
	for k := range s.kv {
		if _, live := s.liveLocked(k); !live {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// --- plain values ---

// Get returns a live value, or db.ErrKeyNotFound.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.liveLocked(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a value that expires after ttl (never when ttl <= 0).
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := kvEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expireAt = s.now().Add(ttl)
	}
	s.kv[key] = e
	return nil
}

func (s *Store) liveLocked(key string) (kvEntry, bool) {
	e, ok := s.kv[key]
	if !ok {
		return kvEntry{}, false
	}
	if !e.expireAt.IsZero() && !s.now().Before(e.expireAt) {
		return kvEntry{}, false
	}
	return e, true
}

// --- indexes ---

// CreateIndex registers an index definition.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[def.Name]; ok {
		return &db.Error{Op: db.OpCreateIndex, Err: db.ErrIndexExists}
	}
	cp := *def
	cp.Fields = append([]db.IndexField(nil), def.Fields...)
	cp.Prefixes = append([]string(nil), def.Prefixes...)
	s.indexes[def.Name] = &cp
	return nil
}

// DropIndex forgets an index. Indexed hashes are kept.
func (s *Store) DropIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[name]; !ok {
		return &db.Error{Op: db.OpDropIndex, Err: db.ErrIndexNotFound}
	}
	delete(s.indexes, name)
	return nil
}

// IndexExists reports whether an index is registered.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[name]
	return ok, nil
}

// --- search ---

type scored struct {
	key   string
	score float64
}

// SearchKNN scores every hash under the index prefixes that passes the
// filter and returns the K most similar, most similar first.
func (s *Store) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}
	separators := tagSeparators(idx)

	var candidates []scored
	for key, h := range s.hashes {
		if !hasPrefix(key, idx.Prefixes) {
			continue
		}
		if !accepts(q.Filter, h, separators) {
			continue
		}
		v, err := db.DecodeVector(h[db.VectorField])
		if err != nil || len(v) != len(q.Vector) {
			continue
		}
		dist := search.Float32s(v).CosineDistance(q.Vector)
		candidates = append(candidates, scored{key: key, score: min(1, 1-float64(dist))})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].key < candidates[j].key
	})
	if len(candidates) > q.K {
		candidates = candidates[:q.K]
	}

	entries := make([]db.SearchEntry, len(candidates))
	for i, c := range candidates {
		entries[i] = db.SearchEntry{
			Key:    c.key,
			Score:  c.score,
			Fields: returnFields(s.hashes[c.key], q.ReturnFields),
		}
	}
	return &db.SearchResult{Total: len(entries), Entries: entries}, nil
}

func accepts(p predicate.Predicate, h map[string]string, separators map[string]string) bool {
	for _, c := range p.Must() {
		if !anyTag(c, h[c.Key()], separators[c.Key()]) {
			return false
		}
	}
	for _, c := range p.MustNot() {
		if anyTag(c, h[c.Key()], separators[c.Key()]) {
			return false
		}
	}
	return true
}

func anyTag(c predicate.Condition, raw, sep string) bool {
	if raw == "" {
		return false
	}
	if sep == "" {
		sep = ","
	}
	for _, tag := range strings.Split(raw, sep) {
		if c.Accepts(strings.TrimSpace(tag)) {
			return true
		}
	}
	return false
}

func tagSeparators(idx *db.IndexDefinition) map[string]string {
	out := make(map[string]string)
	for _, f := range idx.Fields {
		if f.Type == db.IndexFieldTag {
			out[f.Name] = f.TagSeparator
		}
	}
	return out
}

func hasPrefix(key string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func returnFields(h map[string]string, want []string) map[string]string {
	if len(want) == 0 {
		out := copyFields(h)
		delete(out, db.VectorField)
		return out
	}
	out := make(map[string]string, len(want))
	for _, f := range want {
		if v, ok := h[f]; ok {
			out[f] = v
		}
	}
	return out
}

func copyFields(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
