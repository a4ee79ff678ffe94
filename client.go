// Package sieve is the in-process client of the sieve retrieval engine:
// filtered vector search over chunked documents, per-document relevance
// statistics and answers generated from the documents holding most of the
// relevance mass.
package sieve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sieve/internal/app"
	"github.com/kailas-cloud/sieve/internal/config"
	domchunk "github.com/kailas-cloud/sieve/internal/domain/chunk"
	domcol "github.com/kailas-cloud/sieve/internal/domain/collection"
	domdoc "github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/metadata"
	"github.com/kailas-cloud/sieve/internal/repository/templatefile"
	cataloguc "github.com/kailas-cloud/sieve/internal/usecase/catalog"
)

// Client is the sieve SDK entry point.
type Client struct {
	app *app.App
}

// New creates a Client. Without options it keeps everything in memory and
// has no models; register at least one embedder with WithEmbedder.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{driver: "memory"}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.driver == "redis" && len(cfg.addrs) == 0 {
		return nil, errors.New("sieve: redis address required")
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}
	appOpts := []app.Option{app.WithModels(registry)}
	if cfg.generator != nil {
		appOpts = append(appOpts, app.WithGenerator(&generatorAdapter{inner: cfg.generator}))
	}

	a, err := app.New(context.Background(), appConfig(cfg), cfg.logger, appOpts...)
	if err != nil {
		return nil, fmt.Errorf("sieve: %w", err)
	}
	return &Client{app: a}, nil
}

func appConfig(c *clientConfig) config.Config {
	var cfg config.Config
	cfg.Database = config.DatabaseConfig{Driver: c.driver, Addrs: c.addrs, Password: c.password}
	cfg.Catalog = config.CatalogConfig{Driver: c.catalogDriver, DSN: c.catalogDSN, AutoMigrate: true}
	if cfg.Catalog.Driver == "" {
		cfg.Catalog.Driver = "sqlite"
	}
	if cfg.Catalog.DSN == "" && cfg.Catalog.Driver == "sqlite" {
		cfg.Catalog.DSN = ":memory:"
	}
	if c.templatesPath != "" {
		cfg.Templates = config.TemplatesConfig{Source: "file", Path: c.templatesPath}
	}
	cfg.Storage.KeyPrefix = c.keyPrefix
	cfg.Index.HNSWM = c.hnswM
	cfg.Index.HNSWEFConstruct = c.hnswEFConstruct
	cfg.Search.SurroundingChunks = c.surroundingChunks
	cfg.Search.RankMass = c.rankMass
	cfg.ApplyDefaults()
	return cfg
}

// Close releases all resources.
func (c *Client) Close() {
	if c.app != nil {
		c.app.Close()
	}
}

// Ping checks the vector store and the catalog.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.app.Store.Ping(ctx); err != nil {
		return fmt.Errorf("ping vector store: %w", err)
	}
	if err := c.app.Catalog.Ping(ctx); err != nil {
		return fmt.Errorf("ping catalog: %w", err)
	}
	return nil
}

// CreateCollection creates a collection embedded with the named model.
// reranker may be empty.
func (c *Client) CreateCollection(ctx context.Context, name, embedder, reranker string) (Collection, error) {
	col, err := c.app.CatalogSvc.CreateCollection(ctx, cataloguc.CollectionParams{
		Name:          name,
		EmbedderModel: embedder,
		RerankerModel: reranker,
	})
	if err != nil {
		return Collection{}, fmt.Errorf("create collection: %w", err)
	}
	return fromInternalCollection(col), nil
}

// UpsertDocuments inserts or replaces catalog documents.
func (c *Client) UpsertDocuments(ctx context.Context, collection string, docs []Document) error {
	internal := make([]domdoc.Document, 0, len(docs))
	for _, d := range docs {
		meta := metadata.Null()
		if d.Metadata != nil {
			var err error
			if meta, err = metadata.FromAny(d.Metadata); err != nil {
				return fmt.Errorf("document %s: %w", d.Name, err)
			}
		}
		doc, err := domdoc.New(d.Name, d.Path, d.RelativePath, d.Category, meta, d.UseInSearch)
		if err != nil {
			return fmt.Errorf("document %s: %w", d.Name, err)
		}
		internal = append(internal, doc)
	}
	if err := c.app.CatalogSvc.UpsertDocuments(ctx, collection, internal); err != nil {
		return fmt.Errorf("upsert documents: %w", err)
	}
	return nil
}

// IndexChunks embeds and stores chunks. Results are aligned with chunks;
// invalid chunks fail individually.
func (c *Client) IndexChunks(ctx context.Context, collection string, chunks []Chunk) []ItemResult {
	out := make([]ItemResult, len(chunks))
	valid := make([]domchunk.Chunk, 0, len(chunks))
	pos := make([]int, 0, len(chunks))
	for i, ch := range chunks {
		out[i].ID = domchunk.ID(ch.DocumentName, ch.PageNumber, ch.TextNumber)
		item, err := domchunk.New(domchunk.Params{
			DocumentName: ch.DocumentName,
			RelativePath: ch.RelativePath,
			Language:     ch.Language,
			PageNumber:   ch.PageNumber,
			TextNumber:   ch.TextNumber,
			Text:         ch.Text,
		})
		if err != nil {
			out[i].Err = fmt.Errorf("%w: %w", ErrInvalidInput, err)
			continue
		}
		valid = append(valid, item)
		pos = append(pos, i)
	}
	if len(valid) == 0 {
		return out
	}
	for j, r := range c.app.IndexSvc.IndexChunks(ctx, collection, valid) {
		out[pos[j]].Err = r.Err()
	}
	return out
}

// ImportTemplates loads a template file (yaml, json or toml) into the
// catalog. A file declaring a grammar replaces the active templates of
// that grammar.
func (c *Client) ImportTemplates(ctx context.Context, path string) (int, error) {
	f, err := templatefile.Load(path)
	if err != nil {
		return 0, fmt.Errorf("import templates: %w", err)
	}
	if err := c.app.CatalogSvc.ImportTemplates(ctx, f.Grammar, f.Templates); err != nil {
		return 0, fmt.Errorf("import templates: %w", err)
	}
	return len(f.Templates), nil
}

// Search returns the search service for a given collection.
func (c *Client) Search(collection string) *SearchService {
	return &SearchService{collection: collection, client: c}
}

func fromInternalCollection(col domcol.Collection) Collection {
	return Collection{
		Name:          col.Name(),
		EmbedderModel: col.EmbedderModel(),
		RerankerModel: col.RerankerModel(),
		VectorDim:     col.VectorDim(),
		CreatedAt:     time.UnixMilli(col.CreatedAt()),
	}
}
