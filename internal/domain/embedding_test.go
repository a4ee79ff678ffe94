package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = append(s.got, text)
	return s.result, s.err
}

type stubBatchEmbedder struct {
	stubEmbedder
	batches int
}

func (s *stubBatchEmbedder) BatchEmbed(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
	s.batches++
	s.got = append(s.got, texts...)
	out := BatchEmbeddingResult{TotalTokens: len(texts)}
	for range texts {
		out.Embeddings = append(out.Embeddings, []float32{1})
	}
	return out, nil
}

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "query: ")

	result, err := emb.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got[0] != "query: hello world" {
		t.Errorf("expected prepended text, got %q", inner.got[0])
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	emb := NewInstructionEmbedder(&stubEmbedder{err: innerErr}, "query: ")

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestEmbedAll_UsesNativeBatch(t *testing.T) {
	inner := &stubBatchEmbedder{}

	res, err := EmbedAll(context.Background(), inner, []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batches != 1 {
		t.Errorf("expected one batch call, got %d", inner.batches)
	}
	if len(res.Embeddings) != 2 || res.TotalTokens != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestEmbedAll_FallbackSumsTokens(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{1}, PromptTokens: 2, TotalTokens: 3}}

	res, err := EmbedAll(context.Background(), inner, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.got) != 3 {
		t.Errorf("expected 3 Embed calls, got %d", len(inner.got))
	}
	if res.PromptTokens != 6 || res.TotalTokens != 9 {
		t.Errorf("expected 6/9 tokens, got %d/%d", res.PromptTokens, res.TotalTokens)
	}
}

func TestInstructionEmbedder_BatchPrefixesEveryText(t *testing.T) {
	inner := &stubBatchEmbedder{}
	emb := NewInstructionEmbedder(inner, "passage: ")

	if _, err := emb.BatchEmbed(context.Background(), []string{"x", "y"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got[0] != "passage: x" || inner.got[1] != "passage: y" {
		t.Errorf("unexpected texts: %v", inner.got)
	}
}

type stubReranker struct{}

func (stubReranker) Rerank(_ context.Context, _ string, p []string) ([]float64, error) {
	return make([]float64, len(p)), nil
}

func TestModelRegistry_Lookup(t *testing.T) {
	reg, err := NewModelRegistry(
		[]EmbedderBinding{{Model: EmbedderModel{Name: "e5", VectorSize: 768}, Client: &stubEmbedder{}}},
		[]RerankerBinding{{Model: RerankerModel{Name: "bge"}, Client: stubReranker{}}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := reg.Embedder("e5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Model.VectorSize != 768 {
		t.Errorf("expected vector size 768, got %d", b.Model.VectorSize)
	}
	if _, err := reg.Reranker("bge"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := reg.Embedder("missing"); !errors.Is(err, ErrModelNotRegistered) {
		t.Errorf("expected ErrModelNotRegistered, got %v", err)
	}
	if _, err := reg.Reranker("missing"); !errors.Is(err, ErrModelNotRegistered) {
		t.Errorf("expected ErrModelNotRegistered, got %v", err)
	}
}

func TestModelRegistry_Validation(t *testing.T) {
	tests := []struct {
		name      string
		embedders []EmbedderBinding
	}{
		{"no name", []EmbedderBinding{{Model: EmbedderModel{VectorSize: 3}, Client: &stubEmbedder{}}}},
		{"zero size", []EmbedderBinding{{Model: EmbedderModel{Name: "a"}, Client: &stubEmbedder{}}}},
		{"no client", []EmbedderBinding{{Model: EmbedderModel{Name: "a", VectorSize: 3}}}},
		{"duplicate", []EmbedderBinding{
			{Model: EmbedderModel{Name: "a", VectorSize: 3}, Client: &stubEmbedder{}},
			{Model: EmbedderModel{Name: "a", VectorSize: 3}, Client: &stubEmbedder{}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewModelRegistry(tt.embedders, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	err := NewDomainError("a.pdf", 0)
	if !errors.Is(err, ErrDomain) {
		t.Errorf("expected ErrDomain, got %v", err)
	}
	var de *DomainError
	if !errors.As(err, &de) || de.Document != "a.pdf" {
		t.Errorf("expected DomainError for a.pdf, got %v", err)
	}
}

func TestTokenUsage_NilSafe(t *testing.T) {
	var u *TokenUsage
	u.AddEmbedding(5)
	u.AddGeneration(5)

	ctx, usage := NewContextWithUsage(context.Background())
	UsageFromContext(ctx).AddEmbedding(3)
	UsageFromContext(ctx).AddGeneration(4)
	if usage.EmbeddingTokens != 3 || usage.GenerationTokens != 4 {
		t.Errorf("unexpected usage: %+v", usage)
	}
	if UsageFromContext(context.Background()) != nil {
		t.Error("expected nil usage for bare context")
	}
}

type checkedEmbedder struct {
	stubEmbedder
	err error
}

func (c *checkedEmbedder) HealthCheck(context.Context) error { return c.err }

func TestInstructionEmbedder_HealthCheckForwards(t *testing.T) {
	down := errors.New("down")
	if err := NewInstructionEmbedder(&checkedEmbedder{err: down}, "q: ").HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("expected inner health error, got %v", err)
	}
	if err := NewInstructionEmbedder(&stubEmbedder{}, "q: ").HealthCheck(context.Background()); err != nil {
		t.Errorf("expected nil for embedder without health check, got %v", err)
	}
}
