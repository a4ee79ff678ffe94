// Package hit defines a single chunk returned by vector search.
package hit

import (
	"fmt"
	"strings"
)

// Chunk is a neighbouring text fragment of the same document page.
type Chunk struct {
	TextNumber int    `json:"text_number"`
	Text       string `json:"text"`
}

// Hit is one retrieved chunk with its similarity score.
type Hit struct {
	DocumentName string  `json:"document_name"`
	RelativePath string  `json:"relative_path,omitempty"`
	PageNumber   int     `json:"page_number"`
	TextNumber   int     `json:"text_number"`
	Score        float64 `json:"score"`
	Language     string  `json:"language,omitempty"`
	Text         string  `json:"text,omitempty"`
	LeftContext  []Chunk `json:"left_context,omitempty"`
	RightContext []Chunk `json:"right_context,omitempty"`
}

// Validate checks the fields aggregation depends on.
func (h Hit) Validate() error {
	if h.DocumentName == "" {
		return fmt.Errorf("hit document_name is required")
	}
	if h.PageNumber < 0 || h.TextNumber < 0 {
		return fmt.Errorf("hit %q: page and text numbers must not be negative", h.DocumentName)
	}
	return nil
}

// WithContext returns the hit text surrounded by its neighbouring chunks.
func (h Hit) WithContext() string {
	parts := make([]string, 0, len(h.LeftContext)+1+len(h.RightContext))
	for _, c := range h.LeftContext {
		parts = append(parts, c.Text)
	}
	parts = append(parts, h.Text)
	for _, c := range h.RightContext {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}

// DocumentNames returns distinct document names in hit order.
func DocumentNames(hits []Hit) []string {
	seen := make(map[string]struct{}, len(hits))
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		if _, ok := seen[h.DocumentName]; ok {
			continue
		}
		seen[h.DocumentName] = struct{}{}
		names = append(names, h.DocumentName)
	}
	return names
}
