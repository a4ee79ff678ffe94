// Package response holds the persisted outcome of a search, reused later
// for statistics and answer generation.
package response

import (
	"time"

	"github.com/kailas-cloud/sieve/internal/domain/search/filter"
	"github.com/kailas-cloud/sieve/internal/domain/search/hit"
	"github.com/kailas-cloud/sieve/internal/domain/search/stats"
	"github.com/kailas-cloud/sieve/internal/domain/template"
)

// TemplateRef identifies a matched template.
type TemplateRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Response is one answered search.
type Response struct {
	ID           string                      `json:"id"`
	Collection   string                      `json:"collection"`
	Query        string                      `json:"query"`
	Language     string                      `json:"language,omitempty"`
	Filter       filter.Spec                 `json:"filter"`
	Candidates   []string                    `json:"candidates,omitempty"`
	ShortCircuit bool                        `json:"short_circuit"`
	Reason       string                      `json:"short_circuit_reason,omitempty"`
	Templates    []TemplateRef               `json:"templates,omitempty"`
	Prompts      []string                    `json:"template_prompts,omitempty"`
	Hits         []hit.Hit                   `json:"hits"`
	Stats        *stats.Table                `json:"stats"`
	Structured   []template.StructuredRecord `json:"structured_results,omitempty"`
	CreatedAt    time.Time                   `json:"created_at"`
}

// IsEmpty reports a response without hits.
func (r *Response) IsEmpty() bool { return len(r.Hits) == 0 }

// DocumentStats returns the stats table, never nil.
func (r *Response) DocumentStats() *stats.Table {
	if r.Stats == nil {
		return stats.NewTable()
	}
	return r.Stats
}

// HitsOf returns the hits of the named documents in hit order. A nil set
// keeps every hit.
func (r *Response) HitsOf(names []string) []hit.Hit {
	if names == nil {
		return r.Hits
	}
	keep := make(map[string]struct{}, len(names))
	for _, n := range names {
		keep[n] = struct{}{}
	}
	var out []hit.Hit
	for _, h := range r.Hits {
		if _, ok := keep[h.DocumentName]; ok {
			out = append(out, h)
		}
	}
	return out
}
