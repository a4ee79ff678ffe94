// Package templating decides which documents query templates admit.
package templating

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/template"
	"github.com/kailas-cloud/sieve/internal/logger"
)

// Matcher evaluates templates against documents. It holds no per-query
// state and is safe for concurrent use.
type Matcher struct {
	now    func() time.Time
	strict bool
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithClock sets the clock used by date rules and grammar actions.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

// WithStrict makes the first evaluation error abort matching.
// By default the failing document is skipped and the error logged.
func WithStrict(strict bool) Option {
	return func(m *Matcher) { m.strict = strict }
}

// NewMatcher creates a Matcher.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Strict reports whether evaluation errors abort matching.
func (m *Matcher) Strict() bool { return m.strict }

// Qualifies reports whether doc qualifies for tpl. Inactive templates and
// documents excluded from search never qualify.
func (m *Matcher) Qualifies(tpl template.Template, doc document.Document) (bool, error) {
	if !tpl.Active() || !doc.UseInSearch() {
		return false, nil
	}
	return tpl.Admits(doc.Metadata(), m.now())
}

// Result is the outcome of matching a template set.
type Result struct {
	// Templates are the active requested templates, in request order.
	// Empty when no document is admitted.
	Templates []template.Template
	// Admitted holds names admitted by every active template, in document order.
	Admitted []string
	// ByTemplate maps a template id to the names it admitted on its own.
	ByTemplate map[int64][]string
	// Prompts are the non-blank system prompts of Templates.
	Prompts []string
}

// Match evaluates every template on every document. Templates combine
// conjunctively: a document is admitted only when each active template
// admits it. Inactive templates take no part.
func (m *Matcher) Match(
	ctx context.Context, templates []template.Template, docs []document.Document,
) (Result, error) {
	res := Result{ByTemplate: make(map[int64][]string, len(templates))}
	now := m.now()
	votes := make(map[string]int, len(docs))

	var active []template.Template
	for _, tpl := range templates {
		if !tpl.Active() {
			logger.FromContext(ctx).Debug("template inactive, skipped",
				zap.Int64("template_id", tpl.ID()), zap.String("template", tpl.Name()))
			continue
		}
		active = append(active, tpl)
		var names []string
		for _, doc := range docs {
			if !doc.UseInSearch() {
				continue
			}
			ok, err := tpl.Admits(doc.Metadata(), now)
			if err != nil {
				if m.strict {
					return Result{}, fmt.Errorf("template %d on document %q: %w", tpl.ID(), doc.Name(), err)
				}
				logger.FromContext(ctx).Warn("template evaluation failed, document skipped",
					zap.Int64("template_id", tpl.ID()),
					zap.String("document", doc.Name()),
					zap.Error(err))
				continue
			}
			if ok {
				names = append(names, doc.Name())
				votes[doc.Name()]++
			}
		}
		res.ByTemplate[tpl.ID()] = names
	}
	if len(active) == 0 {
		return res, nil
	}

	for _, doc := range docs {
		if votes[doc.Name()] != len(active) {
			continue
		}
		delete(votes, doc.Name())
		res.Admitted = append(res.Admitted, doc.Name())
	}
	if len(res.Admitted) == 0 {
		return res, nil
	}
	res.Templates = active
	for _, tpl := range active {
		if tpl.HasSystemPrompt() {
			res.Prompts = append(res.Prompts, tpl.SystemPrompt())
		}
	}
	return res, nil
}
