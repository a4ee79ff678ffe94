// Package template holds query templates: configured document selections
// with side effects (system prompt, structured response fields).
package template

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/domain/metadata"
	"github.com/kailas-cloud/sieve/internal/domain/template/rule"
)

// FieldRule is one compiled data filter rule. Sub is empty for rules that
// apply to metadata[Field] directly.
type FieldRule struct {
	Field string
	Sub   string
	Rule  *rule.Rule
}

// Params are the inputs to New and Reconstruct.
type Params struct {
	ID                    int64
	Name                  string
	Display               string
	Active                bool
	DataConnector         map[string]metadata.Value
	DataFilterExpressions metadata.Value
	StructuredIfExists    bool
	StructuredFields      []string
	SystemPrompt          string
	Grammar               GrammarType
}

// Template is a query template (immutable value object).
type Template struct {
	id               int64
	name             string
	display          string
	active           bool
	connector        map[string]metadata.Value
	filters          metadata.Value
	rules            []FieldRule
	err              error
	structured       bool
	structuredFields []string
	systemPrompt     string
	grammar          GrammarType
}

// New validates p and compiles its data filter rules.
func New(p Params) (Template, error) {
	if strings.TrimSpace(p.Name) == "" {
		return Template{}, fmt.Errorf("%w: template name is required", domain.ErrInvalidTemplate)
	}
	if p.ID <= 0 {
		return Template{}, fmt.Errorf("%w: template %q: id must be positive", domain.ErrInvalidTemplate, p.Name)
	}
	if p.Grammar != "" {
		g, err := ParseGrammarType(string(p.Grammar))
		if err != nil {
			return Template{}, fmt.Errorf("template %q: %w", p.Name, err)
		}
		p.Grammar = g
	}
	for k := range p.DataConnector {
		if k == "" {
			return Template{}, fmt.Errorf("%w: template %q: empty data connector key", domain.ErrInvalidTemplate, p.Name)
		}
	}
	t := Reconstruct(p)
	if t.err != nil {
		return Template{}, t.err
	}
	return t, nil
}

// Reconstruct creates a Template without rejecting it (storage hydration).
// A rule that fails to compile is kept as Err; such a template never admits
// a document.
func Reconstruct(p Params) Template {
	if g, err := ParseGrammarType(string(p.Grammar)); err == nil {
		p.Grammar = g
	}
	rules, err := compileRules(p.Name, p.DataFilterExpressions)
	conn := make(map[string]metadata.Value, len(p.DataConnector))
	for k, v := range p.DataConnector {
		conn[k] = v
	}
	return Template{
		id:               p.ID,
		name:             p.Name,
		display:          p.Display,
		active:           p.Active,
		connector:        conn,
		filters:          p.DataFilterExpressions,
		rules:            rules,
		err:              err,
		structured:       p.StructuredIfExists,
		structuredFields: slices.Clone(p.StructuredFields),
		systemPrompt:     p.SystemPrompt,
		grammar:          p.Grammar,
	}
}

func compileRules(name string, raw metadata.Value) ([]FieldRule, error) {
	if raw.IsNull() {
		return nil, nil
	}
	if !raw.IsMap() {
		return nil, fmt.Errorf("%w: template %q: data_filter_expressions must be an object",
			domain.ErrInvalidTemplate, name)
	}
	var out []FieldRule
	for _, field := range raw.Keys() {
		v, _ := raw.Get(field)
		if !v.IsMap() {
			r, err := compileOne(name, field, v)
			if err != nil {
				return nil, err
			}
			out = append(out, FieldRule{Field: field, Rule: r})
			continue
		}
		for _, sub := range v.Keys() {
			sv, _ := v.Get(sub)
			if sv.IsMap() {
				return nil, fmt.Errorf("%w: template %q: nested rule map under %s.%s is not supported",
					domain.ErrInvalidTemplate, name, field, sub)
			}
			r, err := compileOne(name, field+"."+sub, sv)
			if err != nil {
				return nil, err
			}
			out = append(out, FieldRule{Field: field, Sub: sub, Rule: r})
		}
	}
	return out, nil
}

func compileOne(name, field string, v metadata.Value) (*rule.Rule, error) {
	src, ok := v.AsString()
	if !ok {
		return nil, fmt.Errorf("%w: template %q: rule for %s must be a string",
			domain.ErrInvalidTemplate, name, field)
	}
	r, err := rule.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("template %q, field %s: %w", name, field, err)
	}
	return r, nil
}

// ID returns the template id.
func (t Template) ID() int64 { return t.id }

// Name returns the template name.
func (t Template) Name() string { return t.name }

// Display returns the human-readable label.
func (t Template) Display() string { return t.display }

// Active reports whether the template takes part in matching.
func (t Template) Active() bool { return t.active }

// DataConnector returns a copy of the exact-match pre-filter.
func (t Template) DataConnector() map[string]metadata.Value {
	out := make(map[string]metadata.Value, len(t.connector))
	for k, v := range t.connector {
		out[k] = v
	}
	return out
}

// DataFilterExpressions returns the rule map as configured.
func (t Template) DataFilterExpressions() metadata.Value { return t.filters }

// Rules returns the compiled rules.
func (t Template) Rules() []FieldRule { return t.rules }

// Err returns the compile error of a reconstructed template.
func (t Template) Err() error { return t.err }

// StructuredIfExists reports whether matched documents yield structured results.
func (t Template) StructuredIfExists() bool { return t.structured }

// StructuredFields returns the metadata fields of a structured result.
func (t Template) StructuredFields() []string { return slices.Clone(t.structuredFields) }

// SystemPrompt returns the system prompt, empty when none.
func (t Template) SystemPrompt() string { return t.systemPrompt }

// HasSystemPrompt reports whether a non-blank prompt is configured.
func (t Template) HasSystemPrompt() bool { return strings.TrimSpace(t.systemPrompt) != "" }

// Grammar returns the grammar type the template expects of its documents.
func (t Template) Grammar() GrammarType { return t.grammar }

// ConnectorAccepts checks the data connector against top-level metadata.
// An empty connector accepts everything.
func (t Template) ConnectorAccepts(meta metadata.Value) bool {
	for k, want := range t.connector {
		got, ok := meta.Get(k)
		if !ok || !metadata.Equal(want, got) {
			return false
		}
	}
	return true
}

// FiltersAccept evaluates the data filter rules on meta.
//
// Empty metadata is rejected and a template without rules accepts. Rules
// whose value is absent are skipped; any evaluation error rejects.
func (t Template) FiltersAccept(meta metadata.Value, now time.Time) (bool, error) {
	if t.err != nil {
		return false, t.err
	}
	if meta.IsEmpty() {
		return false, nil
	}
	for _, fr := range t.rules {
		v, ok := meta.Get(fr.Field)
		if !ok || v.IsNull() {
			continue
		}
		if fr.Sub != "" {
			if !v.IsMap() {
				continue
			}
			if v, ok = v.Get(fr.Sub); !ok || v.IsNull() {
				continue
			}
		}
		accept, err := fr.Rule.Eval(v, now)
		if err != nil {
			return false, fmt.Errorf("template %q, field %s: %w", t.name, fr.Field, err)
		}
		if !accept {
			return false, nil
		}
	}
	return true, nil
}

// Admits reports whether a document with the given metadata qualifies:
// the connector, the grammar search action and the data filters must all
// accept it.
func (t Template) Admits(meta metadata.Value, now time.Time) (bool, error) {
	if !t.ConnectorAccepts(meta) {
		return false, nil
	}
	ok, err := UsableInSearch(meta, t.grammar, now)
	if err != nil || !ok {
		return false, err
	}
	return t.FiltersAccept(meta, now)
}

// StructuredRecord carries the structured response fields of one document.
type StructuredRecord struct {
	Name         string                    `json:"name"`
	Path         string                    `json:"path,omitempty"`
	RelativePath string                    `json:"relative_path,omitempty"`
	Fields       map[string]metadata.Value `json:"fields"`
}
