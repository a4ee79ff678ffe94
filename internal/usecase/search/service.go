// Package search orchestrates a query: filter resolution, vector search,
// statistics and persistence of the response.
package search

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sieve/internal/domain"
	domcol "github.com/kailas-cloud/sieve/internal/domain/collection"
	domdoc "github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/search/hit"
	"github.com/kailas-cloud/sieve/internal/domain/search/request"
	domresp "github.com/kailas-cloud/sieve/internal/domain/search/response"
	"github.com/kailas-cloud/sieve/internal/domain/search/stats"
	"github.com/kailas-cloud/sieve/internal/logger"
	"github.com/kailas-cloud/sieve/internal/metrics"
	"github.com/kailas-cloud/sieve/internal/repository/chunk"
	"github.com/kailas-cloud/sieve/internal/usecase/filtering"
	"github.com/kailas-cloud/sieve/internal/usecase/templating"
)

// DefaultSurroundingChunks is the number of neighbours fetched on each side
// of a hit.
const DefaultSurroundingChunks = 2

// Service runs searches and serves stored responses.
type Service struct {
	resolver    Resolver
	catalog     Catalog
	chunks      Chunks
	responses   Responses
	models      Models
	surrounding int
}

// Option configures a Service.
type Option func(*Service)

// WithSurroundingChunks sets how many neighbouring chunks extend each hit.
// Zero disables the lookup.
func WithSurroundingChunks(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.surrounding = n
		}
	}
}

// New creates a search service.
func New(
	resolver Resolver, catalog Catalog, chunks Chunks, responses Responses, models Models,
	opts ...Option,
) *Service {
	s := &Service{
		resolver:    resolver,
		catalog:     catalog,
		chunks:      chunks,
		responses:   responses,
		models:      models,
		surrounding: DefaultSurroundingChunks,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Search answers a query within a collection and persists the response.
// A short-circuited filter yields a stored response without hits.
func (s *Service) Search(
	ctx context.Context, collectionName string, req *request.Request,
) (*domresp.Response, error) {
	start := time.Now()
	resp, err := s.search(ctx, collectionName, req)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case resp.ShortCircuit:
		outcome = "short_circuit"
	}
	metrics.SearchRequestsTotal.WithLabelValues(collectionName, outcome).Inc()
	metrics.SearchDuration.WithLabelValues(collectionName).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	metrics.SearchHits.WithLabelValues(collectionName).Observe(float64(len(resp.Hits)))
	return resp, nil
}

func (s *Service) search(
	ctx context.Context, collectionName string, req *request.Request,
) (*domresp.Response, error) {
	col, err := s.catalog.GetCollection(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}

	res, err := s.resolver.Resolve(ctx, col.Name(), req.Filter())
	if err != nil {
		return nil, fmt.Errorf("resolve filter: %w", err)
	}

	resp := &domresp.Response{
		Collection:   col.Name(),
		Query:        req.Query(),
		Language:     req.Language(),
		Filter:       req.Filter(),
		Candidates:   res.Candidates,
		ShortCircuit: res.ShortCircuit,
		Reason:       res.Reason,
		Prompts:      res.Prompts,
		Hits:         []hit.Hit{},
		Stats:        stats.NewTable(),
	}
	for _, t := range res.Templates {
		resp.Templates = append(resp.Templates, domresp.TemplateRef{ID: t.ID(), Name: t.Name()})
	}

	if !res.ShortCircuit {
		if res.Restricted() {
			metrics.CandidateDocuments.WithLabelValues(col.Name()).Observe(float64(len(res.Candidates)))
		}
		if err := s.fill(ctx, col, req, res, resp); err != nil {
			return nil, err
		}
	}

	if err := s.responses.Save(ctx, resp); err != nil {
		return nil, fmt.Errorf("save response: %w", err)
	}

	logger.FromContext(ctx).Debug("Search completed",
		zap.String("collection", col.Name()),
		zap.String("response_id", resp.ID),
		zap.Bool("short_circuit", resp.ShortCircuit),
		zap.Int("candidates", len(resp.Candidates)),
		zap.Int("hits", len(resp.Hits)),
		zap.Int("documents", resp.Stats.Len()),
	)
	return resp, nil
}

// fill runs the vector search and derives hits, statistics and structured
// results of resp.
func (s *Service) fill(
	ctx context.Context, col domcol.Collection, req *request.Request,
	res filtering.Resolution, resp *domresp.Response,
) error {
	hits, err := s.retrieve(ctx, col, req, res)
	if err != nil {
		return err
	}

	// Statistics are undefined for non-positive similarity.
	hits = slices.DeleteFunc(hits, func(h hit.Hit) bool {
		return h.Score <= 0 || h.Score < req.MinScore()
	})

	if req.Rerank() && col.HasReranker() && len(hits) > 1 {
		if hits, err = s.rerank(ctx, col, req.Query(), hits); err != nil {
			return err
		}
	}

	if s.surrounding > 0 && len(hits) > 0 {
		if hits, err = s.chunks.Surrounding(ctx, col.Name(), hits, s.surrounding); err != nil {
			return fmt.Errorf("surrounding chunks: %w", err)
		}
	}

	table, err := stats.Aggregate(hits)
	if err != nil {
		return fmt.Errorf("aggregate stats: %w", err)
	}
	resp.Hits = hits
	resp.Stats = table

	if len(res.Templates) > 0 && len(hits) > 0 {
		docs, err := s.documentsOf(ctx, col.Name(), hits, res.Documents)
		if err != nil {
			return err
		}
		resp.Structured = templating.Structured(res.Templates, hits, docs)
	}
	return nil
}

// retrieve embeds the query with the collection's model and runs KNN.
func (s *Service) retrieve(
	ctx context.Context, col domcol.Collection, req *request.Request, res filtering.Resolution,
) ([]hit.Hit, error) {
	binding, err := s.models.Embedder(col.EmbedderModel())
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", col.Name(), err)
	}

	emb, err := binding.Client.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	domain.UsageFromContext(ctx).AddEmbedding(emb.TotalTokens)

	if len(emb.Embedding) != col.VectorDim() {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, collection %s expects %d",
			domain.ErrVectorDimMismatch, len(emb.Embedding), col.Name(), col.VectorDim())
	}

	hits, err := s.chunks.Search(ctx, chunk.Query{
		Collection:    col.Name(),
		Vector:        emb.Embedding,
		Candidates:    res.Candidates,
		RelativePaths: res.RelativePaths,
		Language:      req.Language(),
		TopK:          req.TopK(),
	})
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	return hits, nil
}

// rerank reorders hits by cross-encoder relevance. Similarity scores are
// kept because statistics are defined over them.
func (s *Service) rerank(
	ctx context.Context, col domcol.Collection, query string, hits []hit.Hit,
) ([]hit.Hit, error) {
	binding, err := s.models.Reranker(col.RerankerModel())
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", col.Name(), err)
	}

	passages := make([]string, len(hits))
	for i, h := range hits {
		passages[i] = h.Text
	}
	scores, err := binding.Client.Rerank(ctx, query, passages)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	if len(scores) != len(hits) {
		return nil, fmt.Errorf("%w: %d scores for %d passages", domain.ErrRerankerError, len(scores), len(hits))
	}

	order := make([]int, len(hits))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		}
		return 0
	})
	out := make([]hit.Hit, len(hits))
	for i, idx := range order {
		out[i] = hits[idx]
	}
	return out, nil
}

// documentsOf returns the catalog documents of the hits, reusing those
// already loaded during filter resolution.
func (s *Service) documentsOf(
	ctx context.Context, collection string, hits []hit.Hit, loaded map[string]domdoc.Document,
) (map[string]domdoc.Document, error) {
	out := make(map[string]domdoc.Document, len(loaded))
	var missing []string
	for _, name := range hit.DocumentNames(hits) {
		if d, ok := loaded[name]; ok {
			out[name] = d
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return out, nil
	}
	docs, err := s.catalog.Documents(ctx, collection, missing)
	if err != nil {
		return nil, fmt.Errorf("load hit documents: %w", err)
	}
	for _, d := range docs {
		out[d.Name()] = d
	}
	return out, nil
}

// Response returns a stored response.
func (s *Service) Response(ctx context.Context, id string) (*domresp.Response, error) {
	resp, err := s.responses.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get response: %w", err)
	}
	return resp, nil
}

// Stats returns the statistics of a stored response restricted to documents
// with at least minHits hits on at least minPages pages.
func (s *Service) Stats(ctx context.Context, id string, minHits, minPages int) (*stats.Table, error) {
	resp, err := s.Response(ctx, id)
	if err != nil {
		return nil, err
	}
	return stats.FilterForDisplay(resp.DocumentStats(), minHits, minPages), nil
}
