package rule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/sieve/internal/domain"
)

type env struct {
	value value
	now   time.Time
}

type node interface {
	eval(e *env) (value, error)
}

type literal struct{ v value }

func (n literal) eval(*env) (value, error) { return n.v, nil }

type docValue struct{}

func (docValue) eval(e *env) (value, error) { return e.value, nil }

type clock struct{ today bool }

func (n clock) eval(e *env) (value, error) {
	if n.today {
		y, m, d := e.now.Date()
		return timeValue(time.Date(y, m, d, 0, 0, 0, 0, e.now.Location())), nil
	}
	return timeValue(e.now), nil
}

type list struct{ items []node }

func (n list) eval(e *env) (value, error) {
	out := make([]value, len(n.items))
	for i, item := range n.items {
		v, err := item.eval(e)
		if err != nil {
			return value{}, err
		}
		out[i] = v
	}
	return listValue(out), nil
}

type call struct {
	fn  string
	arg node
}

var functions = map[string]bool{"date": true, "number": true, "text": true, "lower": true}

func (n call) eval(e *env) (value, error) {
	arg, err := n.arg.eval(e)
	if err != nil {
		return value{}, err
	}
	switch n.fn {
	case "date":
		switch arg.kind {
		case kindTime:
			return arg, nil
		case kindText:
			t, err := ParseDate(arg.text, e.now.Location())
			if err != nil {
				return value{}, err
			}
			return timeValue(t), nil
		}
	case "number":
		switch arg.kind {
		case kindNumber:
			return arg, nil
		case kindText:
			f, err := strconv.ParseFloat(strings.TrimSpace(arg.text), 64)
			if err != nil {
				return value{}, fmt.Errorf("%w: %q is not a number", domain.ErrTypeMismatch, arg.text)
			}
			return numberValue(f), nil
		}
	case "text":
		if arg.kind != kindList {
			return textValue(arg.render()), nil
		}
	case "lower":
		if arg.kind == kindText {
			return textValue(strings.ToLower(arg.text)), nil
		}
	}
	return value{}, fmt.Errorf("%w: %s() does not accept %s", domain.ErrTypeMismatch, n.fn, arg.kind)
}

type shift struct {
	base node
	by   time.Duration
}

func (n shift) eval(e *env) (value, error) {
	v, err := n.base.eval(e)
	if err != nil {
		return value{}, err
	}
	if v.kind != kindTime {
		return value{}, fmt.Errorf("%w: durations apply to time, got %s", domain.ErrTypeMismatch, v.kind)
	}
	return timeValue(v.t.Add(n.by)), nil
}

type compare struct {
	op          string
	left, right node
}

func (n compare) eval(e *env) (value, error) {
	l, err := n.left.eval(e)
	if err != nil {
		return value{}, err
	}
	r, err := n.right.eval(e)
	if err != nil {
		return value{}, err
	}
	switch n.op {
	case "==":
		return boolValue(equal(l, r)), nil
	case "!=":
		return boolValue(!equal(l, r)), nil
	case "in":
		switch r.kind {
		case kindList:
			for _, item := range r.list {
				if equal(l, item) {
					return boolValue(true), nil
				}
			}
			return boolValue(false), nil
		case kindText:
			if l.kind == kindText {
				return boolValue(strings.Contains(r.text, l.text)), nil
			}
		}
		return value{}, fmt.Errorf("%w: %s in %s", domain.ErrTypeMismatch, l.kind, r.kind)
	}
	c, err := order(l, r)
	if err != nil {
		return value{}, err
	}
	switch n.op {
	case "<":
		return boolValue(c < 0), nil
	case "<=":
		return boolValue(c <= 0), nil
	case ">":
		return boolValue(c > 0), nil
	default:
		return boolValue(c >= 0), nil
	}
}

type logical struct {
	and         bool
	left, right node
}

func (n logical) eval(e *env) (value, error) {
	l, err := truth(n.left, e)
	if err != nil {
		return value{}, err
	}
	if n.and && !l {
		return boolValue(false), nil
	}
	if !n.and && l {
		return boolValue(true), nil
	}
	r, err := truth(n.right, e)
	if err != nil {
		return value{}, err
	}
	return boolValue(r), nil
}

type not struct{ inner node }

func (n not) eval(e *env) (value, error) {
	v, err := truth(n.inner, e)
	if err != nil {
		return value{}, err
	}
	return boolValue(!v), nil
}

func truth(n node, e *env) (bool, error) {
	v, err := n.eval(e)
	if err != nil {
		return false, err
	}
	if v.kind != kindBool {
		return false, fmt.Errorf("%w: expected bool, got %s", domain.ErrTypeMismatch, v.kind)
	}
	return v.b, nil
}
