package rule

import (
	"fmt"
	"strconv"
	"time"
)

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == word
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, fmt.Errorf("expected %s, got %s", what, t)
	}
	return t, nil
}

func (p *parser) parseRule() (node, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = logical{and: false, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = logical{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.isKeyword("not") {
		p.next()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return not{inner: inner}, nil
	}
	return p.parseCompare()
}

var compareOps = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

func (p *parser) parseCompare() (node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	var op string
	switch {
	case t.kind == tokOp && compareOps[t.text]:
		op = t.text
	case t.kind == tokIdent && t.text == "in":
		op = "in"
	default:
		return left, nil
	}
	p.next()
	right, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	return compare{op: op, left: left, right: right}, nil
}

func (p *parser) parseSum() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return base, nil
		}
		p.next()
		dt, err := p.expect(tokDuration, "duration such as 8d")
		if err != nil {
			return nil, err
		}
		d, err := parseDuration(dt.text)
		if err != nil {
			return nil, err
		}
		if t.text == "-" {
			d = -d
		}
		base = shift{base: base, by: d}
	}
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %s", t)
		}
		return literal{numberValue(f)}, nil
	case tokString:
		return literal{textValue(t.text)}, nil
	case tokOp:
		if t.text == "-" && p.peek().kind == tokNumber {
			n := p.next()
			f, err := strconv.ParseFloat(n.text, 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %s", n)
			}
			return literal{numberValue(-f)}, nil
		}
	case tokLParen:
		inner, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokLBracket:
		var items []node
		if p.peek().kind == tokRBracket {
			p.next()
			return list{}, nil
		}
		for {
			item, err := p.parseSum()
			if err != nil {
				return nil, err
			}
			items = append(items, item)
			sep := p.next()
			if sep.kind == tokRBracket {
				return list{items: items}, nil
			}
			if sep.kind != tokComma {
				return nil, fmt.Errorf("expected , or ], got %s", sep)
			}
		}
	case tokIdent:
		switch t.text {
		case "value", Placeholder:
			return docValue{}, nil
		case "now":
			return clock{}, nil
		case "today":
			return clock{today: true}, nil
		case "true":
			return literal{boolValue(true)}, nil
		case "false":
			return literal{boolValue(false)}, nil
		}
		if functions[t.text] {
			if _, err := p.expect(tokLParen, "("); err != nil {
				return nil, err
			}
			arg, err := p.parseSum()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRParen, ")"); err != nil {
				return nil, err
			}
			return call{fn: t.text, arg: arg}, nil
		}
		return nil, fmt.Errorf("unknown name %s", t)
	}
	return nil, fmt.Errorf("unexpected %s", t)
}

func parseDuration(s string) (time.Duration, error) {
	unit := s[len(s)-1]
	n, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("bad duration %q", s)
	}
	var base time.Duration
	switch unit {
	case 'd':
		base = 24 * time.Hour
	case 'h':
		base = time.Hour
	case 'm':
		base = time.Minute
	default:
		base = time.Second
	}
	return time.Duration(n * float64(base)), nil
}
