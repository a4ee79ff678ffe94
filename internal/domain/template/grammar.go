package template

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/domain/metadata"
	"github.com/kailas-cloud/sieve/internal/domain/template/rule"
)

// GrammarType is the high-level category of a templated document.
type GrammarType string

// Grammar types.
const (
	GrammarEvent   GrammarType = "event"
	GrammarAddress GrammarType = "address"
	GrammarOther   GrammarType = "other"
)

// Metadata keys the event action reads.
const (
	MetaDate = "date"
	MetaEnd  = "end"
)

// ParseGrammarType validates a grammar type name.
func ParseGrammarType(s string) (GrammarType, error) {
	switch g := GrammarType(strings.ToLower(strings.TrimSpace(s))); g {
	case GrammarEvent, GrammarAddress, GrammarOther:
		return g, nil
	default:
		return "", fmt.Errorf("%w: unknown grammar type %q", domain.ErrInvalidTemplate, s)
	}
}

// UsableInSearch runs the search-stage grammar action of g for a document.
// Events whose metadata date.end lies before today are excluded; address,
// other and unset grammars have no search action.
func UsableInSearch(meta metadata.Value, g GrammarType, now time.Time) (bool, error) {
	if g != GrammarEvent {
		return true, nil
	}
	return endDateNotBefore(meta, now)
}

func endDateNotBefore(meta metadata.Value, now time.Time) (bool, error) {
	v, ok := meta.Lookup(MetaDate, MetaEnd)
	if !ok {
		return false, nil
	}
	s, isText := v.AsString()
	if !isText || strings.TrimSpace(s) == "" {
		return false, nil
	}
	end, err := rule.ParseDate(s, now.Location())
	if err != nil {
		return false, fmt.Errorf("event end date: %w", err)
	}
	return !day(end.In(now.Location())).Before(day(now)), nil
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
