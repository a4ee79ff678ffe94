// Package rule implements the small typed language of template data
// filters, e.g.
//
//	date(value) <= now + 8d
//	lower(value) in ['warszawa', 'kraków'] and not value == ''
//
// "value" is the document's metadata value. Rules are compiled once and
// evaluated per document; evaluation never executes user code.
package rule

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/domain/metadata"
)

// Placeholder is the legacy spelling of "value".
const Placeholder = "DATA_VALUE"

// Rule is a compiled filter rule. Safe for concurrent use.
type Rule struct {
	src  string
	root node
}

// Compile parses a rule.
func Compile(src string) (*Rule, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, fmt.Errorf("%w: rule %q: %w", domain.ErrInvalidTemplate, src, err)
	}
	p := &parser{toks: toks}
	root, err := p.parseRule()
	if err != nil {
		return nil, fmt.Errorf("%w: rule %q: %w", domain.ErrInvalidTemplate, src, err)
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("%w: rule %q: unexpected %s", domain.ErrInvalidTemplate, src, t)
	}
	return &Rule{src: src, root: root}, nil
}

// MustCompile is Compile for rules known to be valid.
func MustCompile(src string) *Rule {
	r, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the rule source.
func (r *Rule) String() string { return r.src }

// Eval substitutes v for "value" and evaluates the rule at the given time.
// A result that is not a bool is ErrTypeMismatch.
func (r *Rule) Eval(v metadata.Value, now time.Time) (bool, error) {
	conv, err := fromMetadata(v)
	if err != nil {
		return false, err
	}
	ok, err := truth(r.root, &env{value: conv, now: now})
	if err != nil {
		return false, fmt.Errorf("rule %q: %w", r.src, err)
	}
	return ok, nil
}
