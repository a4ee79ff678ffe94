package request

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/sieve/internal/domain/search/filter"
)

// MaxQueryLength is the maximum allowed search query length in runes.
const MaxQueryLength = 4096

// Request is a validated search query.
type Request struct {
	query    string
	language string
	filter   filter.Spec
	minScore float64
}

// New validates and normalizes search parameters.
// language is an optional language tag restricting hits ("" = any).
func New(query, language string, spec filter.Spec, minScore float64) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, fmt.Errorf("query is empty")
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		return Request{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	language = strings.ToLower(strings.TrimSpace(language))
	if len(language) > 8 || strings.ContainsAny(language, " ,|{}") {
		return Request{}, fmt.Errorf("invalid language %q", language)
	}
	if minScore < 0 || minScore > 1 {
		return Request{}, fmt.Errorf("min_score must be between 0 and 1")
	}
	return Request{query: query, language: language, filter: spec, minScore: minScore}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Language returns the language restriction, empty for any.
func (r *Request) Language() string { return r.language }

// Filter returns the filter specification.
func (r *Request) Filter() filter.Spec { return r.filter }

// TopK returns the number of hits to retrieve.
func (r *Request) TopK() int { return r.filter.MaxResults() }

// Rerank reports whether hits are reordered by the collection's reranker.
func (r *Request) Rerank() bool { return r.filter.RerankResults() }

// MinScore returns the minimum similarity threshold.
func (r *Request) MinScore() float64 { return r.minScore }
