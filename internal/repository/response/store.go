// Package response persists query responses in the key/value store so that
// statistics and answers can be computed after the search returned.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/sieve/internal/db"
	"github.com/kailas-cloud/sieve/internal/domain"
	domresp "github.com/kailas-cloud/sieve/internal/domain/search/response"
)

// DefaultTTL is used when the store is created with a non-positive TTL.
const DefaultTTL = 24 * time.Hour

// store is the consumer interface for response persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Store saves responses as JSON under {prefix}response:{id}.
type Store struct {
	store     store
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

// New creates a response store.
func New(s store, keyPrefix string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{store: s, keyPrefix: keyPrefix + "response:", ttl: ttl, now: time.Now}
}

// Save assigns an id and creation time when missing and stores r.
func (s *Store) Save(ctx context.Context, r *domresp.Response) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal response %s: %w", r.ID, err)
	}
	if err := s.store.SetWithTTL(ctx, s.key(r.ID), data, s.ttl); err != nil {
		return fmt.Errorf("save response %s: %w", r.ID, err)
	}
	return nil
}

// Get loads a response. Expired and unknown ids are domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*domresp.Response, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("response %q: %w", id, domain.ErrNotFound)
	}
	data, err := s.store.Get(ctx, s.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("response %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get response %s: %w", id, err)
	}
	var r domresp.Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode response %s: %w", id, err)
	}
	return &r, nil
}

func (s *Store) key(id string) string { return s.keyPrefix + id }
