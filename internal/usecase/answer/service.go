// Package answer generates answers from stored search responses: the
// documents carrying the requested rank mass become the model context.
package answer

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/domain/search/hit"
	"github.com/kailas-cloud/sieve/internal/domain/search/stats"
	"github.com/kailas-cloud/sieve/internal/logger"
	"github.com/kailas-cloud/sieve/internal/metrics"
)

// NoContentAnswer is returned without calling the model when no document
// qualifies and the request forbids answering without documents.
const NoContentAnswer = "No content matches the search parameters."

// DefaultRankMass is used when a request does not set one.
const DefaultRankMass = 0.8

// Request asks for an answer to a stored response.
type Request struct {
	ResponseID  string
	Instruction string
	// RankMass is a fraction in (0, 1] or a percentage in (1, 100].
	RankMass float64
	// DocNamePrefix prefixes every context passage with its document name.
	DocNamePrefix bool
	// DontAnswerWithoutDocuments returns NoContentAnswer when the
	// selection is empty.
	DontAnswerWithoutDocuments bool
	// SystemPrompt overrides the template prompts of the response.
	SystemPrompt string
}

// Result is a generated answer.
type Result struct {
	Answer     string   `json:"answer"`
	Documents  []string `json:"documents"`
	UsedPrompt string   `json:"used_prompt,omitempty"`
	Generated  bool     `json:"generated"`
}

// Config holds generation parameters.
type Config struct {
	Model string
	// RankMass applies to requests without one; zero means DefaultRankMass.
	RankMass          float64
	MaxTokens         int
	Temperature       float32
	RequestsPerSecond float64
	Burst             int
}

// Service answers questions over stored responses.
type Service struct {
	responses Responses
	generator domain.Generator
	limiter   *rate.Limiter
	cfg       Config
	pick      func(n int) int
}

// Option configures a Service.
type Option func(*Service)

// WithPicker replaces the random choice among template prompts.
func WithPicker(pick func(n int) int) Option {
	return func(s *Service) { s.pick = pick }
}

// New creates an answer service. A non-positive rate disables limiting.
func New(responses Responses, generator domain.Generator, cfg Config, opts ...Option) *Service {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.RankMass <= 0 {
		cfg.RankMass = DefaultRankMass
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	s := &Service{
		responses: responses,
		generator: generator,
		limiter:   rate.NewLimiter(limit, burst),
		cfg:       cfg,
		pick:      rand.IntN,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Answer selects documents by rank mass and asks the model.
func (s *Service) Answer(ctx context.Context, req Request) (Result, error) {
	if req.RankMass < 0 || req.RankMass > 100 {
		return Result{}, fmt.Errorf("%w: rank_mass must be between 0 and 100", domain.ErrInvalidFilter)
	}
	if req.RankMass == 0 {
		req.RankMass = s.cfg.RankMass
	}

	resp, err := s.responses.Get(ctx, req.ResponseID)
	if err != nil {
		return Result{}, fmt.Errorf("get response: %w", err)
	}

	selected := stats.Select(resp.DocumentStats(), req.RankMass)
	metrics.SelectedDocuments.Observe(float64(len(selected)))
	log := logger.FromContext(ctx).With(
		zap.String("response_id", resp.ID),
		zap.Float64("rank_mass", req.RankMass),
		zap.Int("selected", len(selected)),
	)

	if len(selected) == 0 && req.DontAnswerWithoutDocuments {
		log.Debug("No documents selected, model not called")
		return Result{Answer: NoContentAnswer, Documents: selected}, nil
	}

	var keep []string
	if len(selected) > 0 {
		keep = selected
	}
	passages := contextPassages(resp.HitsOf(keep), req.DocNamePrefix)
	if len(passages) == 0 {
		log.Debug("Empty context, model not called")
		return Result{Answer: NoContentAnswer, Documents: selected}, nil
	}

	prompt := req.SystemPrompt
	if strings.TrimSpace(prompt) == "" && len(resp.Prompts) > 0 {
		prompt = resp.Prompts[s.pick(len(resp.Prompts))]
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}

	start := time.Now()
	gen, err := s.generator.Generate(ctx, domain.GenerationRequest{
		SystemPrompt: prompt,
		Prompt:       userPrompt(resp.Query, req.Instruction, passages),
		MaxTokens:    s.cfg.MaxTokens,
		Temperature:  s.cfg.Temperature,
	})
	metrics.GenerationDuration.WithLabelValues(s.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(s.cfg.Model, "error").Inc()
		log.Error("Generation failed", zap.Error(err))
		if errors.Is(err, domain.ErrGenerationFailed) || errors.Is(err, domain.ErrRateLimited) {
			return Result{}, fmt.Errorf("generate: %w", err)
		}
		return Result{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(s.cfg.Model, "ok").Inc()
	metrics.GenerationTokensTotal.WithLabelValues(s.cfg.Model, "prompt").Add(float64(gen.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(s.cfg.Model, "completion").Add(float64(gen.CompletionTokens))
	domain.UsageFromContext(ctx).AddGeneration(gen.PromptTokens + gen.CompletionTokens)

	log.Debug("Answer generated",
		zap.Int("passages", len(passages)),
		zap.Bool("template_prompt", req.SystemPrompt == "" && prompt != ""),
		zap.Duration("duration", time.Since(start)),
	)
	return Result{Answer: gen.Text, Documents: selected, UsedPrompt: prompt, Generated: true}, nil
}

// contextPassages returns the non-blank hit texts with their neighbours,
// in hit order.
func contextPassages(hits []hit.Hit, docNamePrefix bool) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		text := strings.TrimSpace(h.WithContext())
		if text == "" {
			continue
		}
		if docNamePrefix {
			text = h.DocumentName + ": " + text
		}
		out = append(out, text)
	}
	return out
}

func userPrompt(query, instruction string, passages []string) string {
	var b strings.Builder
	if instruction = strings.TrimSpace(instruction); instruction != "" {
		b.WriteString(instruction)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\nContext:\n")
	b.WriteString(strings.Join(passages, "\n\n"))
	return b.String()
}
