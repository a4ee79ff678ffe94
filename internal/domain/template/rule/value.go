package rule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/domain/metadata"
)

type kind uint8

const (
	kindText kind = iota
	kindNumber
	kindBool
	kindTime
	kindList
)

func (k kind) String() string {
	return [...]string{"text", "number", "bool", "time", "list"}[k]
}

type value struct {
	kind kind
	text string
	num  float64
	b    bool
	t    time.Time
	list []value
}

func textValue(s string) value      { return value{kind: kindText, text: s} }
func numberValue(n float64) value   { return value{kind: kindNumber, num: n} }
func boolValue(b bool) value        { return value{kind: kindBool, b: b} }
func timeValue(t time.Time) value   { return value{kind: kindTime, t: t} }
func listValue(items []value) value { return value{kind: kindList, list: items} }

func (v value) render() string {
	switch v.kind {
	case kindText:
		return v.text
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindBool:
		return strconv.FormatBool(v.b)
	case kindTime:
		return v.t.Format(time.RFC3339)
	default:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.render()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
}

func fromMetadata(m metadata.Value) (value, error) {
	switch m.Kind() {
	case metadata.KindString:
		s, _ := m.AsString()
		return textValue(s), nil
	case metadata.KindNumber:
		n, _ := m.AsNumber()
		return numberValue(n), nil
	case metadata.KindBool:
		b, _ := m.AsBool()
		return boolValue(b), nil
	case metadata.KindList:
		items := make([]value, 0, m.Len())
		for _, item := range m.Items() {
			conv, err := fromMetadata(item)
			if err != nil {
				return value{}, err
			}
			items = append(items, conv)
		}
		return listValue(items), nil
	default:
		return value{}, fmt.Errorf("%w: %s metadata cannot be used in a rule", domain.ErrTypeMismatch, m.Kind())
	}
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate parses YYYY-MM-DD or RFC 3339 (and the space separated form)
// in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a date", domain.ErrTypeMismatch, s)
}

func equal(a, b value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case kindText:
		return a.text == b.text
	case kindNumber:
		return a.num == b.num
	case kindBool:
		return a.b == b.b
	case kindTime:
		return a.t.Equal(b.t)
	default:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	}
}

func order(a, b value) (int, error) {
	if a.kind != b.kind {
		return 0, fmt.Errorf("%w: cannot order %s and %s", domain.ErrTypeMismatch, a.kind, b.kind)
	}
	switch a.kind {
	case kindText:
		return strings.Compare(a.text, b.text), nil
	case kindNumber:
		switch {
		case a.num < b.num:
			return -1, nil
		case a.num > b.num:
			return 1, nil
		}
		return 0, nil
	case kindTime:
		return a.t.Compare(b.t), nil
	default:
		return 0, fmt.Errorf("%w: %s values are not ordered", domain.ErrTypeMismatch, a.kind)
	}
}
