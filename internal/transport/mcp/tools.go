package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sieve/internal/domain/search/filter"
	"github.com/kailas-cloud/sieve/internal/domain/search/hit"
	"github.com/kailas-cloud/sieve/internal/domain/search/request"
	"github.com/kailas-cloud/sieve/internal/metrics"
	answeruc "github.com/kailas-cloud/sieve/internal/usecase/answer"
)

const (
	toolSearch = "semantic_search"
	toolAnswer = "answer"
)

// SearchInput is the input schema of semantic_search.
type SearchInput struct {
	Query      string         `json:"query" jsonschema:"the question to search the knowledge base for"`
	Collection string         `json:"collection,omitempty" jsonschema:"collection to search, the server default when empty"`
	TopK       int            `json:"top_k,omitempty" jsonschema:"maximum number of hits (default 5)"`
	Filters    map[string]any `json:"filters,omitempty" jsonschema:"filter specification: categories, documents, templates, metadata_filters and so on"`
}

// SearchOutput is the output schema of semantic_search.
type SearchOutput struct {
	ResponseID   string     `json:"response_id"`
	Results      []hit.Hit  `json:"results"`
	Stats        []StatsRow `json:"stats"`
	ShortCircuit string     `json:"short_circuit_reason,omitempty"`
}

// StatsRow is the per-document aggregate of a search.
type StatsRow struct {
	DocumentName        string  `json:"document_name"`
	RelativePath        string  `json:"relative_path,omitempty"`
	Hits                int     `json:"hits"`
	Pages               []int   `json:"pages"`
	Score               float64 `json:"score"`
	ScoreWeighted       float64 `json:"score_weighted"`
	ScoreWeightedScaled float64 `json:"score_weighted_scaled"`
}

// AnswerInput is the input schema of answer.
type AnswerInput struct {
	ResponseID  string  `json:"response_id" jsonschema:"id returned by semantic_search"`
	Instruction string  `json:"instruction,omitempty" jsonschema:"what to do with the retrieved documents"`
	RankMass    float64 `json:"rank_mass,omitempty" jsonschema:"share of the total score to keep, 0-1 or a percentage (default 0.8)"`
}

// AnswerOutput is the output schema of answer.
type AnswerOutput struct {
	Answer    string   `json:"answer"`
	Documents []string `json:"documents"`
	Generated bool     `json:"generated"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolSearch,
		Description: "Semantic search over the indexed documents. Returns hits, per-document statistics and a response id for the answer tool.",
	}, s.handleSearch)

	if s.answer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        toolAnswer,
			Description: "Generate an answer from the best documents of a previous semantic_search response.",
		}, s.handleAnswer)
	}
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	in SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	out, err := s.doSearch(ctx, in)
	s.observe(toolSearch, err)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) doSearch(ctx context.Context, in SearchInput) (SearchOutput, error) {
	collection := in.Collection
	if collection == "" {
		collection = s.cfg.DefaultCollection
	}
	if collection == "" {
		return SearchOutput{}, errors.New("collection is required")
	}

	spec, err := s.filterSpec(in)
	if err != nil {
		return SearchOutput{}, err
	}
	req, err := request.New(in.Query, "", spec, 0)
	if err != nil {
		return SearchOutput{}, err
	}

	resp, err := s.search.Search(ctx, collection, &req)
	if err != nil {
		s.logger.Warn("MCP search failed", zap.String("collection", collection), zap.Error(err))
		return SearchOutput{}, fmt.Errorf("search: %w", err)
	}

	out := SearchOutput{
		ResponseID:   resp.ID,
		Results:      resp.Hits,
		ShortCircuit: resp.Reason,
	}
	if out.Results == nil {
		out.Results = []hit.Hit{}
	}
	rows := resp.DocumentStats().Rows()
	out.Stats = make([]StatsRow, len(rows))
	for i, r := range rows {
		out.Stats[i] = StatsRow{
			DocumentName:        r.DocumentName,
			RelativePath:        r.RelativePath,
			Hits:                r.Hits,
			Pages:               r.Pages,
			Score:               r.Score,
			ScoreWeighted:       r.ScoreWeighted,
			ScoreWeightedScaled: r.ScoreWeightedScaled,
		}
	}
	return out, nil
}

// filterSpec decodes the filters argument; top_k overrides max_results.
func (s *Server) filterSpec(in SearchInput) (filter.Spec, error) {
	raw := map[string]any{}
	for k, v := range in.Filters {
		raw[k] = v
	}
	switch {
	case in.TopK > 0:
		raw["max_results"] = in.TopK
	case raw["max_results"] == nil:
		raw["max_results"] = s.cfg.DefaultTopK
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return filter.Spec{}, fmt.Errorf("encode filters: %w", err)
	}
	return filter.Parse(data)
}

func (s *Server) handleAnswer(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	in AnswerInput,
) (*mcp.CallToolResult, AnswerOutput, error) {
	if in.ResponseID == "" {
		err := errors.New("response_id is required")
		s.observe(toolAnswer, err)
		return nil, AnswerOutput{}, err
	}
	res, err := s.answer.Answer(ctx, answeruc.Request{
		ResponseID:  in.ResponseID,
		Instruction: in.Instruction,
		RankMass:    in.RankMass,
	})
	s.observe(toolAnswer, err)
	if err != nil {
		s.logger.Warn("MCP answer failed", zap.String("response_id", in.ResponseID), zap.Error(err))
		return nil, AnswerOutput{}, fmt.Errorf("answer: %w", err)
	}
	out := AnswerOutput{Answer: res.Answer, Documents: res.Documents, Generated: res.Generated}
	if out.Documents == nil {
		out.Documents = []string{}
	}
	return nil, out, nil
}

func (s *Server) observe(tool string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.MCPToolCallsTotal.WithLabelValues(tool, status).Inc()
}
