package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sieve/internal/config"
	"github.com/kailas-cloud/sieve/internal/db"
	"github.com/kailas-cloud/sieve/internal/db/memory"
	dbRedis "github.com/kailas-cloud/sieve/internal/db/redis"
	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/template"
	"github.com/kailas-cloud/sieve/internal/metrics"
	catalogrepo "github.com/kailas-cloud/sieve/internal/repository/catalog"
	"github.com/kailas-cloud/sieve/internal/repository/embcache"
	"github.com/kailas-cloud/sieve/internal/repository/templatefile"
	openaiTransport "github.com/kailas-cloud/sieve/internal/transport/openai"
	"github.com/kailas-cloud/sieve/internal/transport/rerank"
	answeruc "github.com/kailas-cloud/sieve/internal/usecase/answer"
	embeddinguc "github.com/kailas-cloud/sieve/internal/usecase/embedding"
	"github.com/kailas-cloud/sieve/internal/usecase/filtering"
)

func openStore(ctx context.Context, cfg config.DatabaseConfig) (db.Store, error) {
	var store db.Store
	switch cfg.Driver {
	case "memory":
		store = memory.New()
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("vector store not ready: %w", err)
	}
	return store, nil
}

func openCatalog(ctx context.Context, cfg config.CatalogConfig) (*catalogrepo.Repo, error) {
	repo, err := catalogrepo.Open(ctx, catalogrepo.Config{
		Driver:       cfg.Driver,
		DSN:          cfg.DSN,
		MaxOpenConns: cfg.MaxOpenConns,
	})
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close()
			return nil, err
		}
	}
	return repo, nil
}

// buildModels binds every active model to its client.
func buildModels(cfg config.Config, store db.KVStore, logger *zap.Logger) (*domain.ModelRegistry, error) {
	var embedders []domain.EmbedderBinding
	for _, e := range cfg.ActiveEmbedders() {
		embedders = append(embedders, domain.EmbedderBinding{
			Model: domain.EmbedderModel{
				Name:       e.Name,
				Path:       e.Path,
				VectorSize: e.VectorSize,
				Device:     e.Device,
			},
			Client: buildEmbedder(e, cfg.Providers[e.Provider], cfg.Storage.KeyPrefix, store, logger),
		})
	}

	var rerankers []domain.RerankerBinding
	for _, r := range cfg.ActiveRerankers() {
		var opts []rerank.Option
		if r.APIKey != "" {
			opts = append(opts, rerank.WithAPIKey(r.APIKey))
		}
		rerankers = append(rerankers, domain.RerankerBinding{
			Model:  domain.RerankerModel{Name: r.Name, Path: r.Path, Device: r.Device},
			Client: rerank.New(r.URL, opts...),
		})
	}

	registry, err := domain.NewModelRegistry(embedders, rerankers)
	if err != nil {
		return nil, fmt.Errorf("build model registry: %w", err)
	}
	return registry, nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
func buildEmbedder(
	e config.EmbedderConfig,
	provider config.ProviderConfig,
	keyPrefix string,
	store db.KVStore,
	logger *zap.Logger,
) domain.Embedder {
	var embedder domain.Embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     provider.APIKey,
		BaseURL:    provider.BaseURL,
		Model:      e.APIModel(),
		Dimensions: e.VectorSize,
		Provider:   e.Provider,
		Logger:     logger,
	})

	if e.CacheTTLSec >= 0 {
		embedder = embcache.New(embedder, store, keyPrefix, e.Name, logger,
			embcache.WithTTL(time.Duration(e.CacheTTLSec)*time.Second),
			embcache.WithCounter(metrics.EmbeddingCacheTotal))
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, e.Provider, e.APIModel(), logger,
		embeddinguc.WithRateLimit(e.RequestsPerSecond, e.Burst),
		embeddinguc.WithMaxBatchSize(e.MaxBatchSize))

	// outermost, so that cache keys include the instruction
	if e.Instruction != "" {
		return domain.NewInstructionEmbedder(embedder, e.Instruction)
	}
	return embedder
}

func buildGenerator(cfg config.GenerationConfig, logger *zap.Logger) *openaiTransport.Generator {
	return openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Logger:  logger,
	})
}

// buildTemplates returns the catalog view the filter resolver reads. With
// the file source, templates come from files and documents from SQL.
func buildTemplates(
	cfg config.TemplatesConfig, repo *catalogrepo.Repo, logger *zap.Logger,
) (filtering.Catalog, *templatefile.Watcher, error) {
	if cfg.Source != "file" {
		return repo, nil, nil
	}
	source, err := templatefile.NewSource(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("load templates: %w", err)
	}
	logger.Info("Templates loaded from files",
		zap.String("path", cfg.Path), zap.Int("files", len(source.Files())))

	var watcher *templatefile.Watcher
	if cfg.Watch {
		watcher = templatefile.NewWatcher(source, logger)
	}
	return fileCatalog{docs: repo, templates: source}, watcher, nil
}

type documentLister interface {
	SearchableDocuments(ctx context.Context, collection string) ([]document.Document, error)
}

type templateReader interface {
	Templates(ctx context.Context, ids []int64) ([]template.Template, error)
}

type fileCatalog struct {
	docs      documentLister
	templates templateReader
}

func (c fileCatalog) SearchableDocuments(ctx context.Context, collection string) ([]document.Document, error) {
	return c.docs.SearchableDocuments(ctx, collection) //nolint:wrapcheck // pass-through
}

func (c fileCatalog) Templates(ctx context.Context, ids []int64) ([]template.Template, error) {
	return c.templates.Templates(ctx, ids) //nolint:wrapcheck // pass-through
}

// disabledAnswerer serves the answer endpoint when no generator is configured.
type disabledAnswerer struct{}

func (disabledAnswerer) Answer(context.Context, answeruc.Request) (answeruc.Result, error) {
	return answeruc.Result{}, fmt.Errorf("%w: answer generation is not configured", domain.ErrGenerationFailed)
}
