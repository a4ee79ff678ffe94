// Package filter holds the per-query filter specification.
package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/domain/metadata"
	"github.com/kailas-cloud/sieve/internal/domain/search/expression"
)

// Result limits.
const (
	DefaultMaxResults = 50
	MaxMaxResults     = 1000
)

// MetadataFilter is one metadata_filters entry. Malformed entries are kept
// (with their error) so that lenient resolution can treat them as rejecting
// and strict entry points can report them.
type MetadataFilter struct {
	raw  metadata.Value
	expr expression.Expression
	err  error
}

// NewMetadataFilter parses a raw expression without failing.
func NewMetadataFilter(raw metadata.Value) MetadataFilter {
	expr, err := expression.FromValue(raw)
	return MetadataFilter{raw: raw, expr: expr, err: err}
}

// Expression returns the parsed expression (zero when Err is set).
func (f MetadataFilter) Expression() expression.Expression { return f.expr }

// Err returns the validation error, if any.
func (f MetadataFilter) Err() error { return f.err }

// Raw returns the expression as received.
func (f MetadataFilter) Raw() metadata.Value { return f.raw }

// Params are the inputs to New.
type Params struct {
	Categories            []string
	Documents             []string
	RelativePaths         []string
	RelativePathContains  []string
	Templates             []int64
	MetadataFilters       []metadata.Value
	UseAndOperator        bool
	OnlyTemplateDocuments bool
	MaxResults            int
	RerankResults         bool
}

// Spec is a normalized filter specification (immutable value object).
// Empty string entries are dropped and duplicates removed, so an empty
// list and an absent list are the same thing.
type Spec struct {
	categories            []string
	documents             []string
	relativePaths         []string
	relativePathContains  []string
	templates             []int64
	metadataFilters       []MetadataFilter
	useAndOperator        bool
	onlyTemplateDocuments bool
	maxResults            int
	rerankResults         bool
}

// New normalizes and validates parameters. Malformed metadata expressions
// do not fail here; see Validate.
func New(p Params) (Spec, error) {
	if p.MaxResults < 0 {
		return Spec{}, fmt.Errorf("%w: max_results must not be negative", domain.ErrInvalidFilter)
	}
	if p.MaxResults == 0 {
		p.MaxResults = DefaultMaxResults
	}
	if p.MaxResults > MaxMaxResults {
		return Spec{}, fmt.Errorf("%w: max_results too large (max %d)", domain.ErrInvalidFilter, MaxMaxResults)
	}

	mf := make([]MetadataFilter, 0, len(p.MetadataFilters))
	for _, raw := range p.MetadataFilters {
		mf = append(mf, NewMetadataFilter(raw))
	}

	return Spec{
		categories:            normalize(p.Categories),
		documents:             normalize(p.Documents),
		relativePaths:         normalize(p.RelativePaths),
		relativePathContains:  normalize(p.RelativePathContains),
		templates:             uniqueIDs(p.Templates),
		metadataFilters:       mf,
		useAndOperator:        p.UseAndOperator,
		onlyTemplateDocuments: p.OnlyTemplateDocuments,
		maxResults:            p.MaxResults,
		rerankResults:         p.RerankResults,
	}, nil
}

// Empty returns the spec with no constraints.
func Empty() Spec {
	s, _ := New(Params{})
	return s
}

// Categories returns category names.
func (s Spec) Categories() []string { return s.categories }

// Documents returns explicit document names.
func (s Spec) Documents() []string { return s.documents }

// RelativePaths returns exact relative paths.
func (s Spec) RelativePaths() []string { return s.relativePaths }

// RelativePathContains returns relative path substrings.
func (s Spec) RelativePathContains() []string { return s.relativePathContains }

// Templates returns requested template IDs.
func (s Spec) Templates() []int64 { return s.templates }

// MetadataFilters returns metadata expressions in request order.
func (s Spec) MetadataFilters() []MetadataFilter { return s.metadataFilters }

// UseAndOperator reports AND (true) or OR (false) combination.
func (s Spec) UseAndOperator() bool { return s.useAndOperator }

// OnlyTemplateDocuments reports whether only template-admitted documents count.
func (s Spec) OnlyTemplateDocuments() bool { return s.onlyTemplateDocuments }

// MaxResults returns the vector search result limit.
func (s Spec) MaxResults() int { return s.maxResults }

// RerankResults reports whether hits should be reranked.
func (s Spec) RerankResults() bool { return s.rerankResults }

// IsEmpty reports a spec without any filter category.
func (s Spec) IsEmpty() bool {
	return len(s.categories) == 0 && len(s.documents) == 0 && len(s.relativePaths) == 0 &&
		len(s.relativePathContains) == 0 && len(s.templates) == 0 && len(s.metadataFilters) == 0
}

// Validate is the strict check: every metadata expression must be well-formed.
func (s Spec) Validate() error {
	for i, f := range s.metadataFilters {
		if f.err != nil {
			return fmt.Errorf("metadata_filters[%d]: %w", i, f.err)
		}
	}
	return nil
}

type wireSpec struct {
	Categories            []string        `json:"categories,omitempty"`
	Documents             []string        `json:"documents,omitempty"`
	RelativePaths         []string        `json:"relative_paths,omitempty"`
	RelativePathContains  []string        `json:"relative_path_contains,omitempty"`
	Templates             json.RawMessage `json:"templates,omitempty"`
	MetadataFilters       json.RawMessage `json:"metadata_filters,omitempty"`
	UseAndOperator        *bool           `json:"use_and_operator,omitempty"`
	OnlyTemplateDocuments *bool           `json:"only_template_documents,omitempty"`
	MaxResults            *int            `json:"max_results,omitempty"`
	RerankResults         *bool           `json:"rerank_results,omitempty"`
}

// Parse decodes the JSON wire format. "templates" may be a single id or a
// list; "metadata_filters" may be a single expression or a list.
func Parse(data []byte) (Spec, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return Empty(), nil
	}
	var w wireSpec
	if err := json.Unmarshal(data, &w); err != nil {
		return Spec{}, fmt.Errorf("%w: %w", domain.ErrInvalidFilter, err)
	}
	return w.toSpec()
}

// UnmarshalJSON implements json.Unmarshaler via Parse.
func (s *Spec) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalJSON renders the wire format.
func (s Spec) MarshalJSON() ([]byte, error) {
	filters := make([]metadata.Value, len(s.metadataFilters))
	for i, f := range s.metadataFilters {
		filters[i] = f.raw
	}
	return json.Marshal(struct {
		Categories            []string         `json:"categories,omitempty"`
		Documents             []string         `json:"documents,omitempty"`
		RelativePaths         []string         `json:"relative_paths,omitempty"`
		RelativePathContains  []string         `json:"relative_path_contains,omitempty"`
		Templates             []int64          `json:"templates,omitempty"`
		MetadataFilters       []metadata.Value `json:"metadata_filters,omitempty"`
		UseAndOperator        bool             `json:"use_and_operator"`
		OnlyTemplateDocuments bool             `json:"only_template_documents"`
		MaxResults            int              `json:"max_results"`
		RerankResults         bool             `json:"rerank_results"`
	}{
		s.categories, s.documents, s.relativePaths, s.relativePathContains, s.templates,
		filters, s.useAndOperator, s.onlyTemplateDocuments, s.maxResults, s.rerankResults,
	})
}

func (w wireSpec) toSpec() (Spec, error) {
	p := Params{
		Categories:           w.Categories,
		Documents:            w.Documents,
		RelativePaths:        w.RelativePaths,
		RelativePathContains: w.RelativePathContains,
	}
	if w.UseAndOperator != nil {
		p.UseAndOperator = *w.UseAndOperator
	}
	if w.OnlyTemplateDocuments != nil {
		p.OnlyTemplateDocuments = *w.OnlyTemplateDocuments
	}
	if w.MaxResults != nil {
		p.MaxResults = *w.MaxResults
	}
	if w.RerankResults != nil {
		p.RerankResults = *w.RerankResults
	}

	ids, err := decodeTemplateIDs(w.Templates)
	if err != nil {
		return Spec{}, err
	}
	p.Templates = ids

	filters, err := decodeMetadataFilters(w.MetadataFilters)
	if err != nil {
		return Spec{}, err
	}
	p.MetadataFilters = filters

	return New(p)
}

func decodeTemplateIDs(raw json.RawMessage) ([]int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var one int64
	if err := json.Unmarshal(raw, &one); err == nil {
		return []int64{one}, nil
	}
	var many []int64
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, fmt.Errorf("%w: templates must be an id or a list of ids", domain.ErrInvalidFilter)
	}
	return many, nil
}

func decodeMetadataFilters(raw json.RawMessage) ([]metadata.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	v, err := metadata.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata_filters: %w", domain.ErrInvalidFilter, err)
	}
	switch v.Kind() {
	case metadata.KindMap:
		if v.Len() == 0 {
			return nil, nil
		}
		return []metadata.Value{v}, nil
	case metadata.KindList:
		return v.Items(), nil
	default:
		return nil, fmt.Errorf("%w: metadata_filters must be an object or a list", domain.ErrInvalidFilter)
	}
}

func normalize(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func uniqueIDs(in []int64) []int64 {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(in))
	out := make([]int64, 0, len(in))
	for _, id := range in {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
