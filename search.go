package sieve

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/sieve/internal/domain/metadata"
	"github.com/kailas-cloud/sieve/internal/domain/search/filter"
	"github.com/kailas-cloud/sieve/internal/domain/search/request"
	domresp "github.com/kailas-cloud/sieve/internal/domain/search/response"
	"github.com/kailas-cloud/sieve/internal/domain/search/stats"
	answeruc "github.com/kailas-cloud/sieve/internal/usecase/answer"
)

// SearchService executes search queries against a single collection.
type SearchService struct {
	collection string
	client     *Client
}

// SearchOptions configures a search query. The zero value searches every
// searchable document and returns up to 50 hits.
type SearchOptions struct {
	Language             string
	Categories           []string
	Documents            []string
	RelativePaths        []string
	RelativePathContains []string
	Templates            []int64
	// MetadataFilters are metadata expressions, e.g.
	// map[string]any{"operator": "gt", "field": map[string]any{"date": map[string]any{"end": "2024-01-01"}}}.
	MetadataFilters       []any
	UseAndOperator        bool
	OnlyTemplateDocuments bool
	MaxResults            int
	Rerank                bool
	MinScore              float64
	// Strict rejects malformed metadata expressions instead of skipping them.
	Strict bool
}

// Query runs a search and stores the response for Stats and Answer.
func (s *SearchService) Query(ctx context.Context, query string, opts *SearchOptions) (*SearchResult, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	spec, err := toInternalFilter(opts)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	if opts.Strict {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
	}
	req, err := request.New(query, opts.Language, spec, opts.MinScore)
	if err != nil {
		return nil, fmt.Errorf("query: %w: %w", ErrInvalidInput, err)
	}

	resp, err := s.client.app.SearchSvc.Search(ctx, s.collection, &req)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return fromInternalResponse(resp), nil
}

// Stats returns the document statistics of a stored response, keeping
// documents with at least minHits hits on at least minPages pages.
func (c *Client) Stats(ctx context.Context, responseID string, minHits, minPages int) ([]DocumentStats, error) {
	t, err := c.app.SearchSvc.Stats(ctx, responseID, minHits, minPages)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return fromInternalStats(t), nil
}

// AnswerOptions configures answer generation.
type AnswerOptions struct {
	// RankMass is a fraction in (0, 1] or a percentage in (1, 100]; zero
	// uses the client default.
	RankMass                   float64
	DocNamePrefix              bool
	DontAnswerWithoutDocuments bool
	SystemPrompt               string
}

// Answer generates an answer to instruction from the documents of a stored
// response that hold the requested share of relevance mass.
func (c *Client) Answer(ctx context.Context, responseID, instruction string, opts *AnswerOptions) (*Answer, error) {
	if opts == nil {
		opts = &AnswerOptions{}
	}
	res, err := c.app.Answerer().Answer(ctx, answeruc.Request{
		ResponseID:                 responseID,
		Instruction:                instruction,
		RankMass:                   opts.RankMass,
		DocNamePrefix:              opts.DocNamePrefix,
		DontAnswerWithoutDocuments: opts.DontAnswerWithoutDocuments,
		SystemPrompt:               opts.SystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}
	return &Answer{Text: res.Answer, Documents: res.Documents, Generated: res.Generated}, nil
}

func toInternalFilter(opts *SearchOptions) (filter.Spec, error) {
	exprs := make([]metadata.Value, 0, len(opts.MetadataFilters))
	for _, raw := range opts.MetadataFilters {
		v, err := metadata.FromAny(raw)
		if err != nil {
			return filter.Spec{}, fmt.Errorf("%w: metadata filter: %w", ErrInvalidFilter, err)
		}
		exprs = append(exprs, v)
	}
	return filter.New(filter.Params{ //nolint:wrapcheck // already a domain error
		Categories:            opts.Categories,
		Documents:             opts.Documents,
		RelativePaths:         opts.RelativePaths,
		RelativePathContains:  opts.RelativePathContains,
		Templates:             opts.Templates,
		MetadataFilters:       exprs,
		UseAndOperator:        opts.UseAndOperator,
		OnlyTemplateDocuments: opts.OnlyTemplateDocuments,
		MaxResults:            opts.MaxResults,
		RerankResults:         opts.Rerank,
	})
}

func fromInternalResponse(resp *domresp.Response) *SearchResult {
	out := &SearchResult{
		ID:           resp.ID,
		Hits:         make([]Hit, len(resp.Hits)),
		Stats:        fromInternalStats(resp.DocumentStats()),
		Templates:    make([]string, len(resp.Templates)),
		ShortCircuit: resp.ShortCircuit,
		Reason:       resp.Reason,
	}
	for i, h := range resp.Hits {
		out.Hits[i] = Hit{
			DocumentName: h.DocumentName,
			RelativePath: h.RelativePath,
			PageNumber:   h.PageNumber,
			TextNumber:   h.TextNumber,
			Score:        h.Score,
			Language:     h.Language,
			Text:         h.WithContext(),
		}
	}
	for i, t := range resp.Templates {
		out.Templates[i] = t.Name
	}
	return out
}

func fromInternalStats(t *stats.Table) []DocumentStats {
	rows := t.Rows()
	out := make([]DocumentStats, len(rows))
	for i, r := range rows {
		out[i] = DocumentStats{
			DocumentName:        r.DocumentName,
			RelativePath:        r.RelativePath,
			Hits:                r.Hits,
			Pages:               r.Pages,
			Score:               r.Score,
			ScoreWeighted:       r.ScoreWeighted,
			ScoreWeightedScaled: r.ScoreWeightedScaled,
		}
	}
	return out
}
