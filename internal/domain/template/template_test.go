package template

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/domain/metadata"
)

var now = time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)

func meta(t *testing.T, js string) metadata.Value {
	t.Helper()
	v, err := metadata.Parse([]byte(js))
	require.NoError(t, err)
	return v
}

func eventsTemplate(t *testing.T) Template {
	t.Helper()
	tpl, err := New(Params{
		ID:            7,
		Name:          "events",
		Display:       "Upcoming events",
		Active:        true,
		DataConnector: map[string]metadata.Value{"kind": metadata.String("event")},
		DataFilterExpressions: meta(t, `{
			"date": {
				"begin": "date(value) <= now + 8d",
				"end": "date(DATA_VALUE) >= today"
			}
		}`),
		StructuredIfExists: true,
		StructuredFields:   []string{"date", "place"},
		SystemPrompt:       "You answer about events.",
		Grammar:            GrammarEvent,
	})
	require.NoError(t, err)
	return tpl
}

func TestNew(t *testing.T) {
	tpl := eventsTemplate(t)
	assert.Equal(t, int64(7), tpl.ID())
	assert.Equal(t, "events", tpl.Name())
	assert.True(t, tpl.Active())
	assert.Len(t, tpl.Rules(), 2)
	assert.True(t, tpl.HasSystemPrompt())
	assert.Equal(t, []string{"date", "place"}, tpl.StructuredFields())
	assert.NoError(t, tpl.Err())
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"no name", Params{ID: 1}},
		{"no id", Params{Name: "x"}},
		{"bad grammar", Params{ID: 1, Name: "x", Grammar: "concert"}},
		{"filters not object", Params{ID: 1, Name: "x", DataFilterExpressions: metadata.String("value == 1")}},
		{"rule not string", Params{ID: 1, Name: "x", DataFilterExpressions: metadata.MustFromAny(map[string]any{"a": 1})}},
		{"rule does not compile", Params{ID: 1, Name: "x", DataFilterExpressions: metadata.MustFromAny(map[string]any{"a": "value =="})}},
		{"nested too deep", Params{ID: 1, Name: "x", DataFilterExpressions: metadata.MustFromAny(map[string]any{
			"a": map[string]any{"b": map[string]any{"c": "value == 1"}},
		})}},
		{"empty connector key", Params{ID: 1, Name: "x", DataConnector: map[string]metadata.Value{"": metadata.Bool(true)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidTemplate), err)
		})
	}
}

func TestReconstruct_KeepsCompileError(t *testing.T) {
	tpl := Reconstruct(Params{ID: 1, Name: "broken", Active: true,
		DataFilterExpressions: metadata.MustFromAny(map[string]any{"a": "value ="})})
	require.Error(t, tpl.Err())

	ok, err := tpl.FiltersAccept(meta(t, `{"a": 1}`), now)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrInvalidTemplate)
}

func TestConnectorAccepts(t *testing.T) {
	tpl := eventsTemplate(t)
	assert.True(t, tpl.ConnectorAccepts(meta(t, `{"kind": "event", "x": 1}`)))
	assert.False(t, tpl.ConnectorAccepts(meta(t, `{"kind": "address"}`)))
	assert.False(t, tpl.ConnectorAccepts(meta(t, `{"x": 1}`)))

	open, err := New(Params{ID: 2, Name: "all"})
	require.NoError(t, err)
	assert.True(t, open.ConnectorAccepts(metadata.Null()))
}

func TestFiltersAccept(t *testing.T) {
	tpl := eventsTemplate(t)
	tests := []struct {
		name string
		meta string
		want bool
	}{
		{"inside window", `{"date": {"begin": "2024-05-12", "end": "2024-05-20"}}`, true},
		{"begins too late", `{"date": {"begin": "2024-06-12", "end": "2024-06-20"}}`, false},
		{"ended yesterday", `{"date": {"begin": "2024-05-01", "end": "2024-05-09"}}`, false},
		{"ends today", `{"date": {"begin": "2024-05-01", "end": "2024-05-10"}}`, true},
		{"only end present", `{"date": {"end": "2024-05-11"}}`, true},
		{"every rule skipped", `{"place": "Kraków"}`, true},
		{"unparseable date rejects", `{"date": {"begin": "soon"}}`, false},
		{"empty metadata", `{}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := tpl.FiltersAccept(meta(t, tt.meta), now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFiltersAccept_ErrorSurfaces(t *testing.T) {
	tpl := eventsTemplate(t)
	ok, err := tpl.FiltersAccept(meta(t, `{"date": {"begin": "soon"}}`), now)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)
}

func TestFiltersAccept_NoRules(t *testing.T) {
	tpl, err := New(Params{ID: 3, Name: "plain"})
	require.NoError(t, err)

	ok, err := tpl.FiltersAccept(meta(t, `{"a": 1}`), now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tpl.FiltersAccept(metadata.Null(), now)
	require.NoError(t, err)
	assert.False(t, ok, "empty metadata never qualifies")
}

func TestAdmits(t *testing.T) {
	tpl := eventsTemplate(t)
	tests := []struct {
		name string
		meta string
		want bool
	}{
		{"upcoming event", `{"kind": "event", "date": {"begin": "2024-05-11", "end": "2024-05-12"}}`, true},
		{"connector mismatch", `{"kind": "news", "date": {"end": "2024-05-12"}}`, false},
		{"event without end date", `{"kind": "event"}`, false},
		{"ended event", `{"kind": "event", "date": {"begin": "2024-05-01", "end": "2024-05-09"}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tpl.Admits(meta(t, tt.meta), now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdmits_ConnectorOnlyIgnoresDates(t *testing.T) {
	tpl, err := New(Params{
		ID: 9, Name: "all events", Active: true,
		DataConnector: map[string]metadata.Value{"type": metadata.String("event")},
	})
	require.NoError(t, err)

	for _, js := range []string{
		`{"type": "event", "date": {"end": "2020-01-01"}}`,
		`{"type": "event"}`,
		`{"type": "event", "date": {"end": "2030-01-01"}}`,
	} {
		ok, err := tpl.Admits(meta(t, js), now)
		require.NoError(t, err)
		assert.True(t, ok, js)
	}
	ok, err := tpl.Admits(meta(t, `{"type": "address"}`), now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNew_NormalizesGrammar(t *testing.T) {
	tpl, err := New(Params{
		ID: 10, Name: "events", Active: true, Grammar: " Event ",
		DataConnector: map[string]metadata.Value{"type": metadata.String("event")},
	})
	require.NoError(t, err)
	assert.Equal(t, GrammarEvent, tpl.Grammar())

	ok, err := tpl.Admits(meta(t, `{"type": "event", "date": {"end": "2024-05-09"}}`), now)
	require.NoError(t, err)
	assert.False(t, ok, "ended events are dropped whatever the grammar case")

	assert.Equal(t, GrammarAddress, Reconstruct(Params{ID: 11, Name: "a", Grammar: "ADDRESS"}).Grammar())
}

func TestUsableInSearch(t *testing.T) {
	tests := []struct {
		name    string
		meta    string
		g       GrammarType
		want    bool
		wantErr bool
	}{
		{"event ends tomorrow", `{"date": {"end": "2024-05-11"}}`, GrammarEvent, true, false},
		{"event ended", `{"date": {"end": "2024-05-09"}}`, GrammarEvent, false, false},
		{"event end rfc3339 today", `{"date": {"end": "2024-05-10T01:00:00Z"}}`, GrammarEvent, true, false},
		{"event blank end", `{"date": {"end": "  "}}`, GrammarEvent, false, false},
		{"event without date", `{"title": "x"}`, GrammarEvent, false, false},
		{"event bad end", `{"date": {"end": "tomorrow"}}`, GrammarEvent, false, true},
		{"address ignores dates", `{"date": {"end": "2024-05-09"}}`, GrammarAddress, true, false},
		{"other", `{"x": 1}`, GrammarOther, true, false},
		{"unset grammar", `{"x": 1}`, "", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UsableInSearch(meta(t, tt.meta), tt.g, now)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseGrammarType(t *testing.T) {
	g, err := ParseGrammarType(" Event ")
	require.NoError(t, err)
	assert.Equal(t, GrammarEvent, g)

	_, err = ParseGrammarType("concert")
	assert.ErrorIs(t, err, domain.ErrInvalidTemplate)
}
