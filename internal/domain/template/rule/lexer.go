package rule

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokDuration
	tokOp
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of rule"
	}
	return fmt.Sprintf("%q at %d", t.text, t.pos)
}

func lex(src string) ([]token, error) {
	var out []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			out = append(out, token{tokLParen, "(", i})
			i++
		case r == ')':
			out = append(out, token{tokRParen, ")", i})
			i++
		case r == '[':
			out = append(out, token{tokLBracket, "[", i})
			i++
		case r == ']':
			out = append(out, token{tokRBracket, "]", i})
			i++
		case r == ',':
			out = append(out, token{tokComma, ",", i})
			i++
		case r == '\'' || r == '"':
			start := i
			i++
			var b strings.Builder
			for i < len(rs) && rs[i] != r {
				if rs[i] == '\\' && i+1 < len(rs) {
					i++
				}
				b.WriteRune(rs[i])
				i++
			}
			if i >= len(rs) {
				return nil, fmt.Errorf("unterminated string at %d", start)
			}
			i++
			out = append(out, token{tokString, b.String(), start})
		case strings.ContainsRune("=!<>", r):
			start := i
			if i+1 < len(rs) && rs[i+1] == '=' {
				out = append(out, token{tokOp, string(rs[i : i+2]), start})
				i += 2
				continue
			}
			if r == '=' || r == '!' {
				return nil, fmt.Errorf("unexpected %q at %d", r, start)
			}
			out = append(out, token{tokOp, string(r), start})
			i++
		case r == '+' || r == '-':
			out = append(out, token{tokOp, string(r), i})
			i++
		case unicode.IsDigit(r):
			start := i
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.') {
				i++
			}
			if i < len(rs) && strings.ContainsRune("dhms", rs[i]) &&
				(i+1 == len(rs) || !isIdentRune(rs[i+1])) {
				i++
				out = append(out, token{tokDuration, string(rs[start:i]), start})
				continue
			}
			out = append(out, token{tokNumber, string(rs[start:i]), start})
		case isIdentRune(r):
			start := i
			for i < len(rs) && (isIdentRune(rs[i]) || unicode.IsDigit(rs[i])) {
				i++
			}
			out = append(out, token{tokIdent, string(rs[start:i]), start})
		default:
			return nil, fmt.Errorf("unexpected %q at %d", r, i)
		}
	}
	return append(out, token{kind: tokEOF, pos: len(rs)}), nil
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}
