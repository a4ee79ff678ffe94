// Package stats turns raw chunk hits into per-document relevance
// statistics and selects the documents forwarded to generation.
package stats

import (
	"encoding/json"
	"fmt"
)

// DefaultSmoothing is the lower bound of a scaled share.
const DefaultSmoothing = 0.0001

// Display thresholds used when no explicit values are given.
const (
	DefaultDisplayMinHits  = 5
	DefaultDisplayMinPages = 3
)

// DocumentStats is the aggregate of all hits of one document.
type DocumentStats struct {
	RelativePath        string  `json:"relative_path,omitempty"`
	Hits                int     `json:"hits"`
	Pages               []int   `json:"pages"`
	PagesCount          int     `json:"pages_count"`
	Score               float64 `json:"score"`
	ScoreWeighted       float64 `json:"score_weighted"`
	ScoreWeightedScaled float64 `json:"score_weighted_scaled"`
}

// Table maps document names to stats and remembers insertion order,
// which is the order documents first appeared in the hit list.
type Table struct {
	order []string
	rows  map[string]DocumentStats
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{rows: make(map[string]DocumentStats)}
}

// Put inserts or replaces a row. New names are appended to the order.
func (t *Table) Put(name string, s DocumentStats) {
	if t.rows == nil {
		t.rows = make(map[string]DocumentStats)
	}
	if _, ok := t.rows[name]; !ok {
		t.order = append(t.order, name)
	}
	t.rows[name] = s
}

// Get returns the stats of a document.
func (t *Table) Get(name string) (DocumentStats, bool) {
	if t == nil {
		return DocumentStats{}, false
	}
	s, ok := t.rows[name]
	return s, ok
}

// Names returns document names in insertion order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.order...)
}

// Len returns the number of documents.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// Row is a named table entry used for serialization.
type Row struct {
	DocumentName string `json:"document_name"`
	DocumentStats
}

// Rows returns named entries in insertion order.
func (t *Table) Rows() []Row {
	rows := make([]Row, 0, t.Len())
	for _, name := range t.Names() {
		rows = append(rows, Row{DocumentName: name, DocumentStats: t.rows[name]})
	}
	return rows
}

// MarshalJSON renders the table as an ordered list of rows.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Rows())
}

// UnmarshalJSON restores a table from its row list.
func (t *Table) UnmarshalJSON(data []byte) error {
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("decode stats: %w", err)
	}
	*t = Table{rows: make(map[string]DocumentStats, len(rows))}
	for _, r := range rows {
		t.Put(r.DocumentName, r.DocumentStats)
	}
	return nil
}

// FilterForDisplay keeps documents with at least minHits hits and
// minPages distinct pages. The input table is not modified.
func FilterForDisplay(t *Table, minHits, minPages int) *Table {
	out := NewTable()
	for _, name := range t.Names() {
		s := t.rows[name]
		if s.Hits >= minHits && s.PagesCount >= minPages {
			out.Put(name, s)
		}
	}
	return out
}
