// Package catalog administers collections, their documents and the query
// templates.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sieve/internal/db"
	"github.com/kailas-cloud/sieve/internal/domain"
	domcol "github.com/kailas-cloud/sieve/internal/domain/collection"
	domdoc "github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/template"
	"github.com/kailas-cloud/sieve/internal/logger"
)

// MaxDocumentsPerRequest bounds UpsertDocuments.
const MaxDocumentsPerRequest = 1000

// CollectionParams are the inputs of CreateCollection.
type CollectionParams struct {
	Name          string
	EmbedderModel string
	RerankerModel string
	IndexType     domcol.IndexType
}

// Service handles catalog administration.
type Service struct {
	repo   Repository
	index  IndexManager
	models Models
}

// New creates a catalog service.
func New(repo Repository, index IndexManager, models Models) *Service {
	return &Service{repo: repo, index: index, models: models}
}

// CreateCollection validates models, stores the collection and creates its
// vector index. The vector dimension comes from the embedder model.
func (s *Service) CreateCollection(ctx context.Context, p CollectionParams) (domcol.Collection, error) {
	emb, err := s.models.Embedder(p.EmbedderModel)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("create collection: %w", err)
	}
	if p.RerankerModel != "" {
		if _, err := s.models.Reranker(p.RerankerModel); err != nil {
			return domcol.Collection{}, fmt.Errorf("create collection: %w", err)
		}
	}

	col, err := domcol.New(p.Name, p.EmbedderModel, p.RerankerModel, p.IndexType, emb.Model.VectorSize)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("validate collection: %w: %w", domain.ErrInvalidInput, err)
	}
	if err := s.repo.CreateCollection(ctx, col); err != nil {
		return domcol.Collection{}, fmt.Errorf("create collection: %w", err)
	}
	if err := s.index.EnsureIndex(ctx, col); err != nil {
		return domcol.Collection{}, fmt.Errorf("create collection index: %w", err)
	}
	return col, nil
}

// GetCollection retrieves a collection by name.
func (s *Service) GetCollection(ctx context.Context, name string) (domcol.Collection, error) {
	col, err := s.repo.GetCollection(ctx, name)
	if err != nil {
		return domcol.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	return col, nil
}

// ListCollections returns all collections.
func (s *Service) ListCollections(ctx context.Context) ([]domcol.Collection, error) {
	cols, err := s.repo.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return cols, nil
}

// DeleteCollection removes a collection, its documents and its index.
// A missing index is not an error.
func (s *Service) DeleteCollection(ctx context.Context, name string) error {
	if err := s.repo.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if err := s.index.DropIndex(ctx, name); err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil
		}
		logger.FromContext(ctx).Warn("Collection deleted but index drop failed",
			zap.String("collection", name), zap.Error(err))
		return fmt.Errorf("drop collection index: %w", err)
	}
	return nil
}

// UpsertDocuments stores catalog documents of an existing collection.
func (s *Service) UpsertDocuments(ctx context.Context, collection string, docs []domdoc.Document) error {
	if len(docs) > MaxDocumentsPerRequest {
		return fmt.Errorf("%w: at most %d documents per request", domain.ErrInvalidInput, MaxDocumentsPerRequest)
	}
	if _, err := s.GetCollection(ctx, collection); err != nil {
		return err
	}
	if err := s.repo.UpsertDocuments(ctx, collection, docs); err != nil {
		return fmt.Errorf("upsert documents: %w", err)
	}
	return nil
}

// PatchDocument applies a partial update to a document.
func (s *Service) PatchDocument(
	ctx context.Context, collection, name string, p domdoc.Patch,
) (domdoc.Document, error) {
	doc, err := s.repo.PatchDocument(ctx, collection, name, p)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("patch document: %w", err)
	}
	return doc, nil
}

// UpsertTemplates stores templates as given.
func (s *Service) UpsertTemplates(ctx context.Context, tpls []template.Template) error {
	if err := s.repo.UpsertTemplates(ctx, tpls); err != nil {
		return fmt.Errorf("upsert templates: %w", err)
	}
	return nil
}

// ImportTemplates loads the templates of one configuration file. With a
// grammar, the file is the full set of active templates of that grammar
// and templates it no longer lists are deactivated.
func (s *Service) ImportTemplates(
	ctx context.Context, grammar template.GrammarType, tpls []template.Template,
) error {
	for _, t := range tpls {
		if grammar != "" && t.Grammar() != grammar {
			return fmt.Errorf("%w: template %d has grammar %q, file declares %q",
				domain.ErrInvalidTemplate, t.ID(), t.Grammar(), grammar)
		}
	}
	if grammar == "" {
		return s.UpsertTemplates(ctx, tpls)
	}
	if err := s.repo.ReplaceGrammar(ctx, grammar, tpls); err != nil {
		return fmt.Errorf("replace %s templates: %w", grammar, err)
	}
	logger.FromContext(ctx).Info("Templates imported",
		zap.String("grammar", string(grammar)), zap.Int("templates", len(tpls)))
	return nil
}

// ListTemplates returns every template.
func (s *Service) ListTemplates(ctx context.Context) ([]template.Template, error) {
	tpls, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return tpls, nil
}
