package expression

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/domain/metadata"
)

func parse(t *testing.T, raw string) Expression {
	t.Helper()
	var e Expression
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	return e
}

func meta(t *testing.T, raw string) metadata.Value {
	t.Helper()
	v, err := metadata.Parse([]byte(raw))
	require.NoError(t, err)
	return v
}

func TestParse_NestedPath(t *testing.T) {
	e := parse(t, `{"operator":"LT","field":{"category":{"where":{"deep":100}}}}`)

	assert.Equal(t, OpLt, e.Operator())
	assert.Equal(t, []string{"category", "where", "deep"}, e.Path())
	n, _ := e.Value().AsNumber()
	assert.Equal(t, 100.0, n)
}

func TestParse_Aliases(t *testing.T) {
	assert.Equal(t, OpGe, parse(t, `{"operator":"gte","field":{"a":1}}`).Operator())
	assert.Equal(t, OpLe, parse(t, `{"operator":"lte","field":{"a":1}}`).Operator())
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing operator", `{"field":{"a":1}}`},
		{"missing field", `{"operator":"eq"}`},
		{"null field", `{"operator":"eq","field":null}`},
		{"unknown operator", `{"operator":"like","field":{"a":1}}`},
		{"operator not string", `{"operator":1,"field":{"a":1}}`},
		{"two keys on a level", `{"operator":"eq","field":{"a":1,"b":2}}`},
		{"empty field", `{"operator":"eq","field":{}}`},
		{"scalar field", `{"operator":"eq","field":"a"}`},
		{"not an object", `[1]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Expression
			err := json.Unmarshal([]byte(tt.raw), &e)
			assert.ErrorIs(t, err, domain.ErrInvalidExpression)
		})
	}
}

func TestMatches_Operators(t *testing.T) {
	doc := meta(t, `{
		"type": "event",
		"pages": 40,
		"tags": ["sport", "city"],
		"title": "annual report",
		"details": {"rank": {"value": 7}}
	}`)

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"eq match", `{"operator":"eq","field":{"type":"event"}}`, true},
		{"eq miss", `{"operator":"eq","field":{"type":"address"}}`, false},
		{"ne", `{"operator":"ne","field":{"type":"address"}}`, true},
		{"gt: expr > meta", `{"operator":"gt","field":{"pages":100}}`, true},
		{"gt false", `{"operator":"gt","field":{"pages":10}}`, false},
		{"lt: expr < meta", `{"operator":"lt","field":{"pages":10}}`, true},
		{"ge equal", `{"operator":"ge","field":{"pages":40}}`, true},
		{"le equal", `{"operator":"le","field":{"pages":40}}`, true},
		{"in list", `{"operator":"in","field":{"tags":"sport"}}`, true},
		{"in list miss", `{"operator":"in","field":{"tags":"music"}}`, false},
		{"in substring", `{"operator":"in","field":{"title":"report"}}`, true},
		{"nested", `{"operator":"eq","field":{"details":{"rank":{"value":7}}}}`, true},
		{"missing key", `{"operator":"eq","field":{"author":"x"}}`, false},
		{"missing nested key", `{"operator":"eq","field":{"details":{"nope":{"value":7}}}}`, false},
		{"path through scalar", `{"operator":"eq","field":{"type":{"inner":1}}}`, false},
		{"hse list vs list", `{"operator":"hse","field":{"tags":["city","music"]}}`, true},
		{"hse scalar vs list", `{"operator":"hse","field":{"tags":"city"}}`, true},
		{"hse no overlap", `{"operator":"hse","field":{"tags":["music"]}}`, false},
		{"hse scalar vs scalar", `{"operator":"hse","field":{"type":"event"}}`, true},
		{"hse vs map", `{"operator":"hse","field":{"details":"rank"}}`, false},
		{"type mismatch is a non-match", `{"operator":"gt","field":{"type":1}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parse(t, tt.expr).Matches(doc))
		})
	}
}

func TestEvaluate_StrictTypeMismatch(t *testing.T) {
	doc := meta(t, `{"type":"event"}`)
	_, err := parse(t, `{"operator":"gt","field":{"type":1}}`).Evaluate(doc)
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)
}

func TestEvaluate_EmptyMetadata(t *testing.T) {
	ok, err := parse(t, `{"operator":"ne","field":{"a":1}}`).Evaluate(metadata.Null())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluate_ZeroExpression(t *testing.T) {
	var e Expression
	_, err := e.Evaluate(meta(t, `{"a":1}`))
	assert.ErrorIs(t, err, domain.ErrInvalidExpression)
	assert.False(t, e.Matches(meta(t, `{"a":1}`)))
}

func TestHse_Symmetric(t *testing.T) {
	values := []metadata.Value{
		metadata.String("a"),
		metadata.Number(1),
		metadata.List(metadata.String("a"), metadata.String("b")),
		metadata.List(metadata.Number(1)),
		metadata.List(),
		metadata.Map(map[string]metadata.Value{"a": metadata.Number(1)}),
	}
	for _, a := range values {
		for _, b := range values {
			assert.Equal(t, hasSameElement(a, b), hasSameElement(b, a), "%v vs %v", a, b)
			if a.IsMap() || b.IsMap() {
				assert.False(t, hasSameElement(a, b))
			}
		}
	}
}

func TestMarshalJSON_RoundTrip(t *testing.T) {
	in := `{"operator":"hse","field":{"a":{"b":["x","y"]}}}`
	out, err := json.Marshal(parse(t, in))
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}
