package sieve

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/sieve/internal/domain"
)

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

type rerankerAdapter struct {
	inner Reranker
}

func (a *rerankerAdapter) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	scores, err := a.inner.Rerank(ctx, query, passages)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRerankerError, err)
	}
	return scores, nil
}

type generatorAdapter struct {
	inner Generator
}

func (a *generatorAdapter) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	r, err := a.inner.Generate(ctx, GenerationRequest{
		SystemPrompt: req.SystemPrompt,
		Prompt:       req.Prompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	})
	if err != nil {
		if errors.Is(err, domain.ErrGenerationFailed) {
			return domain.GenerationResult{}, err
		}
		return domain.GenerationResult{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}
	return domain.GenerationResult{
		Text:             r.Text,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
	}, nil
}

func buildRegistry(cfg *clientConfig) (*domain.ModelRegistry, error) {
	embedders := make([]domain.EmbedderBinding, 0, len(cfg.embedders))
	for _, e := range cfg.embedders {
		var client domain.Embedder
		if e.e != nil {
			client = &embedderAdapter{inner: e.e}
		}
		embedders = append(embedders, domain.EmbedderBinding{
			Model:  domain.EmbedderModel{Name: e.name, VectorSize: e.dims},
			Client: client,
		})
	}
	rerankers := make([]domain.RerankerBinding, 0, len(cfg.rerankers))
	for _, r := range cfg.rerankers {
		var client domain.Reranker
		if r.r != nil {
			client = &rerankerAdapter{inner: r.r}
		}
		rerankers = append(rerankers, domain.RerankerBinding{
			Model:  domain.RerankerModel{Name: r.name},
			Client: client,
		})
	}
	registry, err := domain.NewModelRegistry(embedders, rerankers)
	if err != nil {
		return nil, fmt.Errorf("sieve: %w", err)
	}
	return registry, nil
}
