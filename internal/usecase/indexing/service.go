// Package indexing embeds document chunks and writes them to the vector
// index of their collection, reporting an outcome per chunk.
package indexing

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sieve/internal/domain"
	dombatch "github.com/kailas-cloud/sieve/internal/domain/batch"
	domchunk "github.com/kailas-cloud/sieve/internal/domain/chunk"
	"github.com/kailas-cloud/sieve/internal/logger"
)

// MaxBatchSize is the maximum number of chunks per request.
const MaxBatchSize = 500

// DefaultEmbedBatchSize is the number of texts sent per embedding call.
const DefaultEmbedBatchSize = 64

// Service indexes chunks with per-item error reporting.
type Service struct {
	colls          CollectionReader
	chunks         ChunkStore
	models         Models
	maxBatchSize   int
	embedBatchSize int
}

// New creates an indexing service.
func New(colls CollectionReader, chunks ChunkStore, models Models) *Service {
	return &Service{
		colls:          colls,
		chunks:         chunks,
		models:         models,
		maxBatchSize:   MaxBatchSize,
		embedBatchSize: DefaultEmbedBatchSize,
	}
}

// WithMaxBatchSize configures the maximum batch size.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// WithEmbedBatchSize configures how many texts go into one embedding call.
func (s *Service) WithEmbedBatchSize(size int) *Service {
	if size > 0 {
		s.embedBatchSize = size
	}
	return s
}

// IndexChunks embeds items with the collection's model and stores them.
// Chunks of documents marked out of search are skipped. Results are
// aligned with items.
func (s *Service) IndexChunks(ctx context.Context, collectionName string, items []domchunk.Chunk) []dombatch.Result {
	if len(items) > s.maxBatchSize {
		return failAll(items, fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrInvalidInput))
	}

	col, err := s.colls.GetCollection(ctx, collectionName)
	if err != nil {
		return failAll(items, fmt.Errorf("get collection: %w", err))
	}
	binding, err := s.models.Embedder(col.EmbedderModel())
	if err != nil {
		return failAll(items, fmt.Errorf("collection %s: %w", col.Name(), err))
	}
	hidden, err := s.unsearchable(ctx, col.Name(), items)
	if err != nil {
		return failAll(items, err)
	}
	if err := s.chunks.EnsureIndex(ctx, col); err != nil {
		return failAll(items, fmt.Errorf("ensure index: %w", err))
	}

	results := make([]dombatch.Result, len(items))
	pending := make([]int, 0, len(items))
	for i, c := range items {
		if hidden[c.DocumentName()] {
			results[i] = dombatch.NewSkipped(c.ID())
			continue
		}
		pending = append(pending, i)
	}

	valid := make([]domchunk.Chunk, 0, len(pending))
	validIdx := make([]int, 0, len(pending))

	for offset := 0; offset < len(pending); offset += s.embedBatchSize {
		part := pending[offset:min(offset+s.embedBatchSize, len(pending))]

		texts := make([]string, len(part))
		for j, i := range part {
			texts[j] = items[i].Text()
		}
		emb, err := domain.EmbedAll(ctx, binding.Client, texts)
		if err == nil && len(emb.Embeddings) != len(part) {
			err = fmt.Errorf("%w: %d vectors for %d texts", domain.ErrEmbeddingProviderError, len(emb.Embeddings), len(part))
		}
		if err != nil {
			err = fmt.Errorf("vectorize: %w", err)
			if errors.Is(err, domain.ErrRateLimited) {
				// the provider will refuse the remaining batches too
				for _, i := range pending[offset:] {
					results[i] = dombatch.NewError(items[i].ID(), dombatch.StageVectorize, err)
				}
				break
			}
			for _, i := range part {
				results[i] = dombatch.NewError(items[i].ID(), dombatch.StageVectorize, err)
			}
			continue
		}
		domain.UsageFromContext(ctx).AddEmbedding(emb.TotalTokens)

		for j, vec := range emb.Embeddings {
			i := part[j]
			if len(vec) != col.VectorDim() {
				results[i] = dombatch.NewError(items[i].ID(), dombatch.StageVectorize, fmt.Errorf(
					"%w: got %d, collection expects %d", domain.ErrVectorDimMismatch, len(vec), col.VectorDim()))
				continue
			}
			valid = append(valid, items[i].WithVector(vec))
			validIdx = append(validIdx, i)
		}
	}

	if len(valid) > 0 {
		if err := s.chunks.Upsert(ctx, col.Name(), valid); err != nil {
			for _, i := range validIdx {
				results[i] = dombatch.NewError(items[i].ID(), dombatch.StageStore, fmt.Errorf("upsert: %w", err))
			}
			return results
		}
		for _, i := range validIdx {
			results[i] = dombatch.NewOK(items[i].ID())
		}
	}

	indexed, failed := dombatch.Tally(results)
	logger.FromContext(ctx).Debug("Chunks indexed",
		zap.String("collection", col.Name()),
		zap.Int("items", len(items)),
		zap.Int("indexed", indexed),
		zap.Int("failed", failed),
		zap.Int("skipped", len(items)-len(pending)),
	)
	return results
}

// unsearchable returns the names of catalog documents of items that are
// marked out of search. Chunks of unknown documents are indexed.
func (s *Service) unsearchable(ctx context.Context, collection string, items []domchunk.Chunk) (map[string]bool, error) {
	names := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, c := range items {
		if !seen[c.DocumentName()] {
			seen[c.DocumentName()] = true
			names = append(names, c.DocumentName())
		}
	}
	docs, err := s.colls.Documents(ctx, collection, names)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	hidden := make(map[string]bool)
	for _, d := range docs {
		if !d.UseInSearch() {
			hidden[d.Name()] = true
		}
	}
	return hidden, nil
}

func failAll(items []domchunk.Chunk, err error) []dombatch.Result {
	results := make([]dombatch.Result, len(items))
	for i, item := range items {
		results[i] = dombatch.NewError(item.ID(), dombatch.StageSetup, err)
	}
	return results
}
