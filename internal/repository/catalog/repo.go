package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kailas-cloud/sieve/internal/domain"
	domcol "github.com/kailas-cloud/sieve/internal/domain/collection"
	domdoc "github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/template"
)

const (
	collectionColumns = `name, embedder_model, reranker_model, index_type, vector_dim, created_at, revision`
	documentColumns   = `collection, name, path, relative_path, category, metadata, use_in_search`
	templateColumns   = `id, name, display, is_active, grammar_type, data_connector, data_filter_expressions,
		structured_response_if_exists, structured_response_data_fields, system_prompt`
)

// --- collections ---

// CreateCollection stores a new collection.
func (r *Repo) CreateCollection(ctx context.Context, c domcol.Collection) error {
	if _, err := r.GetCollection(ctx, c.Name()); err == nil {
		return fmt.Errorf("collection %s: %w", c.Name(), domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO collections (`+collectionColumns+`)
		 VALUES (:name, :embedder_model, :reranker_model, :index_type, :vector_dim, :created_at, :revision)`,
		collectionToRow(c))
	if err != nil {
		return fmt.Errorf("insert collection %s: %w", c.Name(), err)
	}
	return nil
}

// GetCollection returns a collection by name.
func (r *Repo) GetCollection(ctx context.Context, name string) (domcol.Collection, error) {
	var row collectionRow
	err := r.db.GetContext(ctx, &row,
		r.db.Rebind(`SELECT `+collectionColumns+` FROM collections WHERE name = ?`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return domcol.Collection{}, fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("get collection %s: %w", name, err)
	}
	return row.toDomain(), nil
}

// ListCollections returns all collections by creation time.
func (r *Repo) ListCollections(ctx context.Context) ([]domcol.Collection, error) {
	var rows []collectionRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+collectionColumns+` FROM collections ORDER BY created_at, name`); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	out := make([]domcol.Collection, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// DeleteCollection removes a collection and its documents.
func (r *Repo) DeleteCollection(ctx context.Context, name string) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM documents WHERE collection = ?`), name); err != nil {
			return fmt.Errorf("delete documents of %s: %w", name, err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM collections WHERE name = ?`), name)
		if err != nil {
			return fmt.Errorf("delete collection %s: %w", name, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
		}
		return nil
	})
}

// --- documents ---

// UpsertDocuments inserts or replaces documents of a collection.
func (r *Repo) UpsertDocuments(ctx context.Context, collection string, docs []domdoc.Document) error {
	if len(docs) == 0 {
		return nil
	}
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, d := range docs {
			row, err := documentToRow(collection, d)
			if err != nil {
				return err
			}
			_, err = tx.NamedExecContext(ctx,
				`INSERT INTO documents (`+documentColumns+`)
				 VALUES (:collection, :name, :path, :relative_path, :category, :metadata, :use_in_search)
				 ON CONFLICT (collection, name) DO UPDATE SET
				   path = excluded.path,
				   relative_path = excluded.relative_path,
				   category = excluded.category,
				   metadata = excluded.metadata,
				   use_in_search = excluded.use_in_search`,
				row)
			if err != nil {
				return fmt.Errorf("upsert document %s: %w", d.Name(), err)
			}
		}
		return nil
	})
}

// SearchableDocuments lists documents of a collection with use_in_search set.
func (r *Repo) SearchableDocuments(ctx context.Context, collection string) ([]domdoc.Document, error) {
	var rows []documentRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(
		`SELECT `+documentColumns+` FROM documents
		 WHERE collection = ? AND use_in_search = ? ORDER BY name`), collection, true)
	if err != nil {
		return nil, fmt.Errorf("list searchable documents of %s: %w", collection, err)
	}
	return documentsFromRows(rows)
}

// Documents returns the named documents of a collection; unknown names are
// ignored.
func (r *Repo) Documents(ctx context.Context, collection string, names []string) ([]domdoc.Document, error) {
	if len(names) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT `+documentColumns+` FROM documents WHERE collection = ? AND name IN (?) ORDER BY name`,
		collection, names)
	if err != nil {
		return nil, fmt.Errorf("build documents query: %w", err)
	}
	var rows []documentRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get documents of %s: %w", collection, err)
	}
	return documentsFromRows(rows)
}

// PatchDocument applies a partial update to one document.
func (r *Repo) PatchDocument(ctx context.Context, collection, name string, p domdoc.Patch) (domdoc.Document, error) {
	docs, err := r.Documents(ctx, collection, []string{name})
	if err != nil {
		return domdoc.Document{}, err
	}
	if len(docs) == 0 {
		return domdoc.Document{}, fmt.Errorf("document %s: %w", name, domain.ErrNotFound)
	}
	updated := docs[0].Apply(p)
	if err := r.UpsertDocuments(ctx, collection, []domdoc.Document{updated}); err != nil {
		return domdoc.Document{}, err
	}
	return updated, nil
}

func documentsFromRows(rows []documentRow) ([]domdoc.Document, error) {
	out := make([]domdoc.Document, 0, len(rows))
	for _, row := range rows {
		d, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// --- templates ---

// Templates returns the templates with the given ids in id order; unknown
// ids are ignored.
func (r *Repo) Templates(ctx context.Context, ids []int64) ([]template.Template, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+templateColumns+` FROM templates WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("build templates query: %w", err)
	}
	var rows []templateRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get templates: %w", err)
	}
	return templatesFromRows(rows)
}

// ListTemplates returns every template in id order.
func (r *Repo) ListTemplates(ctx context.Context) ([]template.Template, error) {
	var rows []templateRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+templateColumns+` FROM templates ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templatesFromRows(rows)
}

// UpsertTemplates inserts or replaces templates.
func (r *Repo) UpsertTemplates(ctx context.Context, tpls []template.Template) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		return upsertTemplates(ctx, tx, tpls)
	})
}

// ReplaceGrammar deactivates every template of a grammar and upserts tpls,
// so that a template file is the full list of active templates of its grammar.
func (r *Repo) ReplaceGrammar(ctx context.Context, grammar template.GrammarType, tpls []template.Template) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE templates SET is_active = ? WHERE grammar_type = ?`),
			false, string(grammar)); err != nil {
			return fmt.Errorf("deactivate %s templates: %w", grammar, err)
		}
		return upsertTemplates(ctx, tx, tpls)
	})
}

func upsertTemplates(ctx context.Context, tx *sqlx.Tx, tpls []template.Template) error {
	for _, t := range tpls {
		row, err := templateToRow(t)
		if err != nil {
			return err
		}
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO templates (`+templateColumns+`)
			 VALUES (:id, :name, :display, :is_active, :grammar_type, :data_connector, :data_filter_expressions,
			         :structured_response_if_exists, :structured_response_data_fields, :system_prompt)
			 ON CONFLICT (id) DO UPDATE SET
			   name = excluded.name,
			   display = excluded.display,
			   is_active = excluded.is_active,
			   grammar_type = excluded.grammar_type,
			   data_connector = excluded.data_connector,
			   data_filter_expressions = excluded.data_filter_expressions,
			   structured_response_if_exists = excluded.structured_response_if_exists,
			   structured_response_data_fields = excluded.structured_response_data_fields,
			   system_prompt = excluded.system_prompt`,
			row)
		if err != nil {
			return fmt.Errorf("upsert template %d: %w", t.ID(), err)
		}
	}
	return nil
}

func templatesFromRows(rows []templateRow) ([]template.Template, error) {
	out := make([]template.Template, 0, len(rows))
	for _, row := range rows {
		t, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Repo) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
