package expression

import (
	"fmt"

	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/domain/metadata"
)

// Evaluate applies the expression to a metadata record.
// A key absent at any level of the path is a non-match, not an error.
// Errors are reserved for operands that cannot be compared.
func (e Expression) Evaluate(meta metadata.Value) (bool, error) {
	if e.IsZero() {
		return false, fmt.Errorf("%w: empty expression", domain.ErrInvalidExpression)
	}
	if meta.IsEmpty() {
		return false, nil
	}
	return descend(e.op, e.path, e.value, meta)
}

// Matches is the lenient form of Evaluate: any error is a non-match.
func (e Expression) Matches(meta metadata.Value) bool {
	ok, err := e.Evaluate(meta)
	return err == nil && ok
}

func descend(op Operator, path []string, want, meta metadata.Value) (bool, error) {
	if len(path) == 0 {
		return compare(op, want, meta)
	}
	child, ok := meta.Get(path[0])
	if !ok {
		return false, nil
	}
	return descend(op, path[1:], want, child)
}

func compare(op Operator, want, got metadata.Value) (bool, error) {
	switch op {
	case OpIn:
		return got.Contains(want)
	case OpEq:
		return metadata.Equal(want, got), nil
	case OpNe:
		return !metadata.Equal(want, got), nil
	case OpGt, OpLt, OpGe, OpLe:
		c, err := metadata.Compare(want, got)
		if err != nil {
			return false, err
		}
		switch op {
		case OpGt:
			return c > 0, nil
		case OpLt:
			return c < 0, nil
		case OpGe:
			return c >= 0, nil
		default:
			return c <= 0, nil
		}
	case OpHse:
		return hasSameElement(want, got), nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", domain.ErrInvalidExpression, op)
	}
}

// hasSameElement is true iff both sides share at least one element.
// Non-list operands count as singleton lists; maps never match.
func hasSameElement(a, b metadata.Value) bool {
	if a.IsMap() || b.IsMap() {
		return false
	}
	left, right := asList(a), asList(b)
	for _, x := range left {
		for _, y := range right {
			if metadata.Equal(x, y) {
				return true
			}
		}
	}
	return false
}

func asList(v metadata.Value) []metadata.Value {
	if v.IsList() {
		return v.Items()
	}
	return []metadata.Value{v}
}
