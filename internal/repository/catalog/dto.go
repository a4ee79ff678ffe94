package catalog

import (
	"encoding/json"
	"fmt"

	domcol "github.com/kailas-cloud/sieve/internal/domain/collection"
	domdoc "github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/metadata"
	"github.com/kailas-cloud/sieve/internal/domain/template"
)

type collectionRow struct {
	Name          string `db:"name"`
	EmbedderModel string `db:"embedder_model"`
	RerankerModel string `db:"reranker_model"`
	IndexType     string `db:"index_type"`
	VectorDim     int    `db:"vector_dim"`
	CreatedAt     int64  `db:"created_at"`
	Revision      int    `db:"revision"`
}

func collectionToRow(c domcol.Collection) collectionRow {
	return collectionRow{
		Name:          c.Name(),
		EmbedderModel: c.EmbedderModel(),
		RerankerModel: c.RerankerModel(),
		IndexType:     string(c.IndexType()),
		VectorDim:     c.VectorDim(),
		CreatedAt:     c.CreatedAt(),
		Revision:      c.Revision(),
	}
}

func (r collectionRow) toDomain() domcol.Collection {
	return domcol.Reconstruct(
		r.Name, r.EmbedderModel, r.RerankerModel, domcol.IndexType(r.IndexType),
		r.VectorDim, r.CreatedAt, r.Revision,
	)
}

type documentRow struct {
	Collection   string `db:"collection"`
	Name         string `db:"name"`
	Path         string `db:"path"`
	RelativePath string `db:"relative_path"`
	Category     string `db:"category"`
	Metadata     string `db:"metadata"`
	UseInSearch  bool   `db:"use_in_search"`
}

func documentToRow(collection string, d domdoc.Document) (documentRow, error) {
	meta, err := json.Marshal(d.Metadata())
	if err != nil {
		return documentRow{}, fmt.Errorf("marshal metadata of %q: %w", d.Name(), err)
	}
	return documentRow{
		Collection:   collection,
		Name:         d.Name(),
		Path:         d.Path(),
		RelativePath: d.RelativePath(),
		Category:     d.Category(),
		Metadata:     string(meta),
		UseInSearch:  d.UseInSearch(),
	}, nil
}

func (r documentRow) toDomain() (domdoc.Document, error) {
	meta, err := metadata.Parse([]byte(r.Metadata))
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("parse metadata of %q: %w", r.Name, err)
	}
	return domdoc.Reconstruct(r.Name, r.Path, r.RelativePath, r.Category, meta, r.UseInSearch), nil
}

type templateRow struct {
	ID                    int64  `db:"id"`
	Name                  string `db:"name"`
	Display               string `db:"display"`
	IsActive              bool   `db:"is_active"`
	GrammarType           string `db:"grammar_type"`
	DataConnector         string `db:"data_connector"`
	DataFilterExpressions string `db:"data_filter_expressions"`
	StructuredIfExists    bool   `db:"structured_response_if_exists"`
	StructuredFields      string `db:"structured_response_data_fields"`
	SystemPrompt          string `db:"system_prompt"`
}

func templateToRow(t template.Template) (templateRow, error) {
	conn, err := json.Marshal(t.DataConnector())
	if err != nil {
		return templateRow{}, fmt.Errorf("marshal data_connector of %q: %w", t.Name(), err)
	}
	filters, err := json.Marshal(t.DataFilterExpressions())
	if err != nil {
		return templateRow{}, fmt.Errorf("marshal data_filter_expressions of %q: %w", t.Name(), err)
	}
	fields := t.StructuredFields()
	if fields == nil {
		fields = []string{}
	}
	structured, err := json.Marshal(fields)
	if err != nil {
		return templateRow{}, fmt.Errorf("marshal structured fields of %q: %w", t.Name(), err)
	}
	return templateRow{
		ID:                    t.ID(),
		Name:                  t.Name(),
		Display:               t.Display(),
		IsActive:              t.Active(),
		GrammarType:           string(t.Grammar()),
		DataConnector:         string(conn),
		DataFilterExpressions: string(filters),
		StructuredIfExists:    t.StructuredIfExists(),
		StructuredFields:      string(structured),
		SystemPrompt:          t.SystemPrompt(),
	}, nil
}

// toDomain hydrates a template. Rules that no longer compile are kept as
// the template error so that matching rejects instead of failing the load.
func (r templateRow) toDomain() (template.Template, error) {
	var conn map[string]metadata.Value
	if err := json.Unmarshal([]byte(r.DataConnector), &conn); err != nil {
		return template.Template{}, fmt.Errorf("parse data_connector of %q: %w", r.Name, err)
	}
	filters, err := metadata.Parse([]byte(r.DataFilterExpressions))
	if err != nil {
		return template.Template{}, fmt.Errorf("parse data_filter_expressions of %q: %w", r.Name, err)
	}
	var fields []string
	if err := json.Unmarshal([]byte(r.StructuredFields), &fields); err != nil {
		return template.Template{}, fmt.Errorf("parse structured fields of %q: %w", r.Name, err)
	}
	return template.Reconstruct(template.Params{
		ID:                    r.ID,
		Name:                  r.Name,
		Display:               r.Display,
		Active:                r.IsActive,
		DataConnector:         conn,
		DataFilterExpressions: filters,
		StructuredIfExists:    r.StructuredIfExists,
		StructuredFields:      fields,
		SystemPrompt:          r.SystemPrompt,
		Grammar:               template.GrammarType(r.GrammarType),
	}), nil
}
