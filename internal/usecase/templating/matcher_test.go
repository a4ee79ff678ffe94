package templating

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/domain/document"
	"github.com/kailas-cloud/sieve/internal/domain/metadata"
	"github.com/kailas-cloud/sieve/internal/domain/search/hit"
	"github.com/kailas-cloud/sieve/internal/domain/template"
)

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func doc(t *testing.T, name string, meta map[string]any, useInSearch bool) document.Document {
	t.Helper()
	d, err := document.New(name, "/data/"+name, "docs/"+name, "", metadata.MustFromAny(meta), useInSearch)
	if err != nil {
		t.Fatalf("document.New: %v", err)
	}
	return d
}

func tpl(t *testing.T, p template.Params) template.Template {
	t.Helper()
	out, err := template.New(p)
	if err != nil {
		t.Fatalf("template.New: %v", err)
	}
	return out
}

func corpus(t *testing.T) []document.Document {
	return []document.Document{
		doc(t, "concert", map[string]any{"type": "event", "date": map[string]any{"end": "2024-05-12"}}, true),
		doc(t, "old-fair", map[string]any{"type": "event", "date": map[string]any{"end": "2024-01-12"}}, true),
		doc(t, "city-hall", map[string]any{"type": "address", "city": "Kraków"}, true),
		doc(t, "hidden", map[string]any{"type": "event", "date": map[string]any{"end": "2024-05-12"}}, false),
		doc(t, "bad-date", map[string]any{"type": "event", "date": map[string]any{"end": "someday"}}, true),
		doc(t, "warsaw", map[string]any{"type": "address", "city": "Warszawa"}, true),
	}
}

func names(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("admitted = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("admitted[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMatch_ConnectorOnly(t *testing.T) {
	// Without a grammar the connector alone decides, whatever the dates.
	events := tpl(t, template.Params{
		ID: 1, Name: "events", Active: true,
		DataConnector: map[string]metadata.Value{"type": metadata.String("event")},
		SystemPrompt:  "events prompt",
	})
	m := NewMatcher(WithClock(clock))

	res, err := m.Match(context.Background(), []template.Template{events}, corpus(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names(t, res.Admitted, "concert", "old-fair", "bad-date")
	if len(res.Templates) != 1 || res.Templates[0].ID() != 1 {
		t.Errorf("templates = %v", res.Templates)
	}
	if len(res.Prompts) != 1 || res.Prompts[0] != "events prompt" {
		t.Errorf("prompts = %v", res.Prompts)
	}
}

func TestMatch_EventGrammar(t *testing.T) {
	events := tpl(t, template.Params{
		ID: 1, Name: "events", Active: true, Grammar: template.GrammarEvent,
		DataConnector: map[string]metadata.Value{"type": metadata.String("event")},
	})
	res, err := NewMatcher(WithClock(clock)).Match(context.Background(), []template.Template{events}, corpus(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names(t, res.Admitted, "concert")
	if got := res.ByTemplate[1]; len(got) != 1 {
		t.Errorf("by template = %v", got)
	}
}

func TestMatch_RulesSkippedWhenFieldAbsent(t *testing.T) {
	places := tpl(t, template.Params{
		ID: 2, Name: "places", Active: true, Grammar: template.GrammarAddress,
		DataFilterExpressions: metadata.MustFromAny(map[string]any{"city": "lower(value) == 'kraków'"}),
	})
	res, err := NewMatcher(WithClock(clock)).Match(context.Background(), []template.Template{places}, corpus(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names(t, res.Admitted, "concert", "old-fair", "city-hall", "bad-date")
}

func TestMatch_ConjunctionAcrossTemplates(t *testing.T) {
	events := tpl(t, template.Params{
		ID: 1, Name: "events", Active: true,
		DataConnector: map[string]metadata.Value{"type": metadata.String("event")},
		SystemPrompt:  "first",
	})
	krakow := tpl(t, template.Params{
		ID: 2, Name: "krakow", Active: true,
		DataConnector: map[string]metadata.Value{"city": metadata.String("Kraków")},
		SystemPrompt:  "second",
	})
	res, err := NewMatcher(WithClock(clock)).Match(context.Background(),
		[]template.Template{events, krakow}, corpus(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Admitted) != 0 {
		t.Errorf("connectors must all hold, admitted %v", res.Admitted)
	}
	if len(res.Templates) != 0 || len(res.Prompts) != 0 {
		t.Errorf("nothing admitted, got templates %v prompts %v", res.Templates, res.Prompts)
	}
	names(t, res.ByTemplate[1], "concert", "old-fair", "bad-date")
	names(t, res.ByTemplate[2], "city-hall")
}

func TestMatch_ConjunctionNarrows(t *testing.T) {
	addresses := tpl(t, template.Params{
		ID: 1, Name: "addresses", Active: true,
		DataConnector: map[string]metadata.Value{"type": metadata.String("address")},
		SystemPrompt:  "first",
	})
	places := tpl(t, template.Params{
		ID: 2, Name: "places", Active: true, Grammar: template.GrammarAddress,
		DataFilterExpressions: metadata.MustFromAny(map[string]any{"city": "lower(value) == 'kraków'"}),
		SystemPrompt:          "second",
	})
	off := tpl(t, template.Params{ID: 3, Name: "off", Active: false, SystemPrompt: "ignored"})

	res, err := NewMatcher(WithClock(clock)).Match(context.Background(),
		[]template.Template{places, off, addresses}, corpus(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names(t, res.Admitted, "city-hall")
	if len(res.Templates) != 2 || res.Templates[0].ID() != 2 || res.Templates[1].ID() != 1 {
		t.Errorf("templates = %v", res.Templates)
	}
	if len(res.Prompts) != 2 || res.Prompts[0] != "second" || res.Prompts[1] != "first" {
		t.Errorf("prompts = %v", res.Prompts)
	}
}

func TestMatch_InactiveAndEmpty(t *testing.T) {
	off := tpl(t, template.Params{ID: 3, Name: "off", Active: false, SystemPrompt: "p"})
	never := tpl(t, template.Params{
		ID: 4, Name: "never", Active: true, SystemPrompt: "p",
		DataConnector: map[string]metadata.Value{"type": metadata.String("recipe")},
	})
	res, err := NewMatcher(WithClock(clock)).Match(context.Background(), []template.Template{off, never}, corpus(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Templates) != 0 || len(res.Admitted) != 0 || len(res.Prompts) != 0 {
		t.Errorf("expected nothing matched, got %+v", res)
	}
}

func TestMatch_StrictAbortsOnError(t *testing.T) {
	events := tpl(t, template.Params{
		ID: 5, Name: "events", Active: true, Grammar: template.GrammarEvent,
		DataConnector: map[string]metadata.Value{"type": metadata.String("event")},
	})
	m := NewMatcher(WithClock(clock), WithStrict(true))
	if !m.Strict() {
		t.Fatal("expected strict matcher")
	}
	_, err := m.Match(context.Background(), []template.Template{events}, corpus(t))
	if !errors.Is(err, domain.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestMatch_BrokenTemplateLenient(t *testing.T) {
	broken := template.Reconstruct(template.Params{
		ID: 6, Name: "broken", Active: true,
		DataFilterExpressions: metadata.MustFromAny(map[string]any{"city": "value ="}),
	})
	res, err := NewMatcher(WithClock(clock)).Match(context.Background(), []template.Template{broken}, corpus(t))
	if err != nil {
		t.Fatalf("lenient matcher returned error: %v", err)
	}
	if len(res.Admitted) != 0 {
		t.Errorf("broken template admitted %v", res.Admitted)
	}
}

func TestQualifies(t *testing.T) {
	events := tpl(t, template.Params{
		ID: 1, Name: "events", Active: true, Grammar: template.GrammarEvent,
		DataConnector: map[string]metadata.Value{"type": metadata.String("event")},
	})
	m := NewMatcher(WithClock(clock))
	docs := corpus(t)

	tests := []struct {
		doc  document.Document
		want bool
	}{
		{docs[0], true},
		{docs[1], false},
		{docs[2], false},
		{docs[3], false},
	}
	for _, tt := range tests {
		got, err := m.Qualifies(events, tt.doc)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.doc.Name(), err)
		}
		if got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.doc.Name(), got, tt.want)
		}
	}
	if _, err := m.Qualifies(events, docs[4]); err == nil {
		t.Error("expected error for unparseable end date")
	}
}

func TestStructured(t *testing.T) {
	plain := tpl(t, template.Params{ID: 1, Name: "plain", Active: true})
	rich := tpl(t, template.Params{
		ID: 2, Name: "rich", Active: true,
		StructuredIfExists: true, StructuredFields: []string{"city", "date"},
	})
	docs := map[string]document.Document{}
	for _, d := range corpus(t) {
		docs[d.Name()] = d
	}
	hits := []hit.Hit{
		{DocumentName: "city-hall", Score: 0.9},
		{DocumentName: "concert", Score: 0.8},
		{DocumentName: "city-hall", Score: 0.7},
		{DocumentName: "unknown", Score: 0.5},
	}

	recs := Structured([]template.Template{plain, rich}, hits, docs)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Name != "city-hall" || recs[1].Name != "concert" {
		t.Errorf("unexpected order: %s, %s", recs[0].Name, recs[1].Name)
	}
	if _, ok := recs[0].Fields["city"]; !ok {
		t.Error("city-hall should carry city")
	}
	if _, ok := recs[1].Fields["date"]; !ok {
		t.Error("concert should carry date")
	}
	if recs[0].RelativePath != "docs/city-hall" {
		t.Errorf("relative path = %q", recs[0].RelativePath)
	}

	if Structured([]template.Template{plain}, hits, docs) != nil {
		t.Error("expected nil without a structured template")
	}
}
