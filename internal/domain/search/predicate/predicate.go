// Package predicate describes the pre-filter handed to the vector store
// together with the query embedding.
package predicate

import "fmt"

// MaxValuesPerSet bounds the size of a single rendered tag set.
// Larger conditions are split into several sets OR'ed together.
const MaxValuesPerSet = 4096

// Well-known tag keys stored with every chunk.
const (
	KeyDocument     = "document_name"
	KeyRelativePath = "relative_path"
	KeyLanguage     = "language"
)

// Predicate is a conjunction of tag-set conditions (immutable).
// An empty predicate means "no restriction".
type Predicate struct {
	must    []Condition
	mustNot []Condition
}

// New validates and creates a Predicate.
func New(must, mustNot []Condition) (Predicate, error) {
	for _, c := range append(append([]Condition(nil), must...), mustNot...) {
		if c.key == "" || len(c.values) == 0 {
			return Predicate{}, fmt.Errorf("condition must be built with NewIn")
		}
	}
	return Predicate{must: must, mustNot: mustNot}, nil
}

// Must returns conditions every hit has to satisfy.
func (p Predicate) Must() []Condition { return p.must }

// MustNot returns conditions no hit may satisfy.
func (p Predicate) MustNot() []Condition { return p.mustNot }

// IsEmpty reports whether the predicate has no conditions.
func (p Predicate) IsEmpty() bool { return len(p.must) == 0 && len(p.mustNot) == 0 }

// Condition matches a tag against a set of values (OR inside the set).
type Condition struct {
	key    string
	values []string
}

// NewIn creates a tag set condition.
func NewIn(key string, values ...string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("condition key is required")
	}
	if len(values) == 0 {
		return Condition{}, fmt.Errorf("at least one value is required for key %q", key)
	}
	for _, v := range values {
		if v == "" {
			return Condition{}, fmt.Errorf("empty value for key %q", key)
		}
	}
	return Condition{key: key, values: append([]string(nil), values...)}, nil
}

// Key returns the tag name.
func (c Condition) Key() string { return c.key }

// Values returns the accepted tag values.
func (c Condition) Values() []string { return c.values }

// Sets splits the values into consecutive sets of at most MaxValuesPerSet.
func (c Condition) Sets() [][]string {
	if len(c.values) <= MaxValuesPerSet {
		return [][]string{c.values}
	}
	sets := make([][]string, 0, (len(c.values)+MaxValuesPerSet-1)/MaxValuesPerSet)
	for start := 0; start < len(c.values); start += MaxValuesPerSet {
		end := min(start+MaxValuesPerSet, len(c.values))
		sets = append(sets, c.values[start:end])
	}
	return sets
}

// Accepts reports whether a tag value satisfies the condition.
func (c Condition) Accepts(v string) bool {
	for _, want := range c.values {
		if want == v {
			return true
		}
	}
	return false
}

// Matches evaluates the predicate against chunk tags.
func (p Predicate) Matches(tags map[string]string) bool {
	for _, c := range p.must {
		if !c.Accepts(tags[c.key]) {
			return false
		}
	}
	for _, c := range p.mustNot {
		if c.Accepts(tags[c.key]) {
			return false
		}
	}
	return true
}
