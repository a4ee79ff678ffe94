// Package expression evaluates metadata filter expressions of the form
//
//	{"operator": "gt", "field": {"details": {"pages": 100}}}
//
// against a document's metadata tree. The field is a key path ending in the
// expression value; the comparison reads "expression value OP metadata value".
package expression

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/sieve/internal/domain"
	"github.com/kailas-cloud/sieve/internal/domain/metadata"
)

// Operator is a leaf comparison.
type Operator string

// Supported operators.
const (
	OpIn  Operator = "in"
	OpEq  Operator = "eq"
	OpNe  Operator = "ne"
	OpGt  Operator = "gt"
	OpLt  Operator = "lt"
	OpGe  Operator = "ge"
	OpLe  Operator = "le"
	OpHse Operator = "hse"
)

var aliases = map[string]Operator{
	"in": OpIn, "eq": OpEq, "ne": OpNe,
	"gt": OpGt, "lt": OpLt,
	"ge": OpGe, "gte": OpGe,
	"le": OpLe, "lte": OpLe,
	"hse": OpHse,
}

// ParseOperator normalizes an operator name. gte/lte are accepted as ge/le.
func ParseOperator(s string) (Operator, error) {
	op, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: unknown operator %q", domain.ErrInvalidExpression, s)
	}
	return op, nil
}

// Expression is a validated metadata filter (immutable value object).
type Expression struct {
	op    Operator
	path  []string
	value metadata.Value
}

// New validates and creates an Expression.
func New(op Operator, path []string, value metadata.Value) (Expression, error) {
	if _, err := ParseOperator(string(op)); err != nil {
		return Expression{}, err
	}
	if len(path) == 0 {
		return Expression{}, fmt.Errorf("%w: field path is required", domain.ErrInvalidExpression)
	}
	for _, key := range path {
		if key == "" {
			return Expression{}, fmt.Errorf("%w: empty key in field path", domain.ErrInvalidExpression)
		}
	}
	if value.IsMap() {
		return Expression{}, fmt.Errorf("%w: leaf value cannot be a map", domain.ErrInvalidExpression)
	}
	return Expression{op: op, path: append([]string(nil), path...), value: value}, nil
}

// FromValue builds an Expression from its wire form. Each level of "field"
// must hold exactly one key; nesting continues while the value is a map.
func FromValue(v metadata.Value) (Expression, error) {
	if !v.IsMap() {
		return Expression{}, fmt.Errorf("%w: expression must be an object", domain.ErrInvalidExpression)
	}
	rawOp, ok := v.Get("operator")
	if !ok || rawOp.IsNull() {
		return Expression{}, fmt.Errorf("%w: operator is required", domain.ErrInvalidExpression)
	}
	opName, ok := rawOp.AsString()
	if !ok {
		return Expression{}, fmt.Errorf("%w: operator must be a string", domain.ErrInvalidExpression)
	}
	op, err := ParseOperator(opName)
	if err != nil {
		return Expression{}, err
	}

	field, ok := v.Get("field")
	if !ok || field.IsNull() {
		return Expression{}, fmt.Errorf("%w: field is required", domain.ErrInvalidExpression)
	}

	var path []string
	cur := field
	for cur.IsMap() {
		keys := cur.Keys()
		if len(keys) != 1 {
			return Expression{}, fmt.Errorf("%w: field level must have exactly one key, got %d",
				domain.ErrInvalidExpression, len(keys))
		}
		path = append(path, keys[0])
		cur, _ = cur.Get(keys[0])
	}
	return New(op, path, cur)
}

// Operator returns the normalized operator.
func (e Expression) Operator() Operator { return e.op }

// Path returns the metadata key path.
func (e Expression) Path() []string { return e.path }

// Value returns the expression operand.
func (e Expression) Value() metadata.Value { return e.value }

// IsZero reports an unset expression.
func (e Expression) IsZero() bool { return e.op == "" }

// MarshalJSON renders the wire form.
func (e Expression) MarshalJSON() ([]byte, error) {
	var field any = e.value.Any()
	for i := len(e.path) - 1; i >= 0; i-- {
		field = map[string]any{e.path[i]: field}
	}
	return json.Marshal(map[string]any{"operator": string(e.op), "field": field})
}

// UnmarshalJSON parses and validates the wire form.
func (e *Expression) UnmarshalJSON(data []byte) error {
	v, err := metadata.Parse(data)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidExpression, err)
	}
	parsed, err := FromValue(v)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
