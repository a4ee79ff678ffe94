// Package app assembles the sieve services from configuration. It is
// shared by the HTTP server and the operator CLI.
package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sieve/internal/config"
	"github.com/kailas-cloud/sieve/internal/db"
	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/metrics"
	catalogrepo "github.com/kailas-cloud/sieve/internal/repository/catalog"
	"github.com/kailas-cloud/sieve/internal/repository/chunk"
	"github.com/kailas-cloud/sieve/internal/repository/response"
	"github.com/kailas-cloud/sieve/internal/repository/templatefile"
	answeruc "github.com/kailas-cloud/sieve/internal/usecase/answer"
	cataloguc "github.com/kailas-cloud/sieve/internal/usecase/catalog"
	"github.com/kailas-cloud/sieve/internal/usecase/filtering"
	healthuc "github.com/kailas-cloud/sieve/internal/usecase/health"
	"github.com/kailas-cloud/sieve/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/sieve/internal/usecase/search"
	"github.com/kailas-cloud/sieve/internal/usecase/templating"
)

// App holds the wired services and the resources they own.
type App struct {
	Store    db.Store
	Catalog  *catalogrepo.Repo
	Registry *domain.ModelRegistry

	CatalogSvc *cataloguc.Service
	IndexSvc   *indexing.Service
	SearchSvc  *searchuc.Service
	// AnswerSvc is nil when no generator is configured.
	AnswerSvc *answeruc.Service
	HealthSvc *healthuc.Service

	watcher *templatefile.Watcher
	logger  *zap.Logger
}

// Option overrides a part of the configuration-driven wiring.
type Option func(*overrides)

type overrides struct {
	registry  *domain.ModelRegistry
	generator domain.Generator
}

// WithModels binds the given registry instead of the configured models.
func WithModels(r *domain.ModelRegistry) Option {
	return func(o *overrides) { o.registry = r }
}

// WithGenerator answers with g instead of the configured generator.
func WithGenerator(g domain.Generator) Option {
	return func(o *overrides) { o.generator = g }
}

// New connects the stores, binds the models and wires the use cases.
// Metrics collectors must be registered by the caller.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to vector store", zap.String("driver", cfg.Database.Driver))

	catalogRepo, err := openCatalog(ctx, cfg.Catalog)
	if err != nil {
		store.Close()
		return nil, err
	}
	logger.Info("Connected to catalog", zap.String("driver", cfg.Catalog.Driver))

	a, err := wire(cfg, store, catalogRepo, logger, o)
	if err != nil {
		store.Close()
		_ = catalogRepo.Close()
		return nil, err
	}
	return a, nil
}

func wire(
	cfg config.Config, store db.Store, catalogRepo *catalogrepo.Repo, logger *zap.Logger, o overrides,
) (*App, error) {
	registry := o.registry
	if registry == nil {
		var err error
		if registry, err = buildModels(cfg, store, logger); err != nil {
			return nil, err
		}
	}
	logger.Info("Models bound", zap.Strings("embedders", registry.EmbedderNames()))

	templates, watcher, err := buildTemplates(cfg.Templates, catalogRepo, logger)
	if err != nil {
		return nil, err
	}

	chunks := chunk.New(store, cfg.Storage.KeyPrefix).WithHNSW(chunk.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
	responses := response.New(store, cfg.Storage.KeyPrefix, time.Duration(cfg.Search.ResponseTTLSec)*time.Second)

	matcher := templating.NewMatcher(templating.WithStrict(cfg.Search.StrictTemplates))
	resolver := filtering.New(templates, matcher)

	surrounding := searchuc.DefaultSurroundingChunks
	if cfg.Search.SurroundingChunks != nil {
		surrounding = *cfg.Search.SurroundingChunks
	}

	a := &App{
		Store:      store,
		Catalog:    catalogRepo,
		Registry:   registry,
		CatalogSvc: cataloguc.New(catalogRepo, chunks, registry),
		IndexSvc:   indexing.New(catalogRepo, chunks, registry).WithMaxBatchSize(cfg.Index.MaxBatchSize),
		SearchSvc: searchuc.New(resolver, catalogRepo, chunks, responses, registry,
			searchuc.WithSurroundingChunks(surrounding)),
		watcher: watcher,
		logger:  logger,
	}

	models := map[string]healthuc.ModelChecker{}
	for name, hc := range registry.HealthCheckers() {
		models[name] = hc
	}
	var generator domain.Generator = o.generator
	if generator == nil && cfg.Generation.Enabled() {
		generator = buildGenerator(cfg.Generation, logger)
	}
	if generator != nil {
		if hc, ok := generator.(domain.HealthChecker); ok {
			models["generator:"+cfg.Generation.Model] = hc
		}
		a.AnswerSvc = answeruc.New(responses, generator, answeruc.Config{
			Model:             cfg.Generation.Model,
			RankMass:          cfg.Search.RankMass,
			MaxTokens:         cfg.Generation.MaxTokens,
			Temperature:       cfg.Generation.Temperature,
			RequestsPerSecond: cfg.Generation.RequestsPerSecond,
			Burst:             cfg.Generation.Burst,
		})
	}

	a.HealthSvc = healthuc.New(map[string]healthuc.Pinger{
		"vectors": store,
		"catalog": catalogRepo,
	}, models)
	return a, nil
}

// Answerer returns the answer service, or one that always fails with
// ErrGenerationFailed when generation is disabled.
func (a *App) Answerer() Answerer {
	if a.AnswerSvc == nil {
		return disabledAnswerer{}
	}
	return a.AnswerSvc
}

// Answerer generates answers over stored responses.
type Answerer interface {
	Answer(ctx context.Context, req answeruc.Request) (answeruc.Result, error)
}

// RunWatcher reloads template files until ctx is done. It returns at once
// when file watching is off.
func (a *App) RunWatcher(ctx context.Context) {
	if a.watcher == nil {
		return
	}
	if err := a.watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Template watcher stopped", zap.Error(err))
	}
}

// Close releases the stores.
func (a *App) Close() {
	a.Store.Close()
	if err := a.Catalog.Close(); err != nil {
		a.logger.Warn("Failed to close catalog", zap.Error(err))
	}
}

// RegisterMetrics registers every collector the services report to.
func RegisterMetrics() {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()
	metrics.RegisterHTTPMetrics()
}
