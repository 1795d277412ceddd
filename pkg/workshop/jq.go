package workshop

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/itchyny/gojq"
)

// JQExpr wraps a jq expression with its pre-parsed query.
// Expressions are parsed during deserialization so a malformed module
// definition fails at load time, not in the middle of a turn.
type JQExpr struct {
	Expr  string      // original expression string
	Query *gojq.Query // pre-parsed query (not serialized)
}

// MarshalJSON implements json.Marshaler.
func (e JQExpr) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Expr)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *JQExpr) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &e.Expr); err != nil {
		return err
	}
	return e.compile()
}

// MarshalYAML implements yaml.InterfaceMarshaler.
func (e JQExpr) MarshalYAML() (any, error) {
	return e.Expr, nil
}

// UnmarshalYAML implements yaml.BytesUnmarshaler.
func (e *JQExpr) UnmarshalYAML(b []byte) error {
	if err := yaml.Unmarshal(b, &e.Expr); err != nil {
		return err
	}
	return e.compile()
}

func (e *JQExpr) compile() error {
	if e.Expr == "" {
		e.Query = nil
		return nil
	}
	query, err := gojq.Parse(e.Expr)
	if err != nil {
		return fmt.Errorf("invalid jq expression %q: %w", e.Expr, err)
	}
	e.Query = query
	return nil
}

// Eval runs the query against input and returns the first result.
func (e *JQExpr) Eval(input any) (any, error) {
	if e == nil || e.Query == nil {
		return nil, nil
	}
	iter := e.Query.Run(input)
	v, ok := iter.Next()
	if !ok {
		return nil, fmt.Errorf("jq expression %q returned no result", e.Expr)
	}
	if err, ok := v.(error); ok {
		return nil, fmt.Errorf("jq expression %q: %w", e.Expr, err)
	}
	return v, nil
}

// EvalBool reports whether the first result is truthy under jq rules:
// everything except null and false. Evaluation errors count as false.
func (e *JQExpr) EvalBool(input any) bool {
	v, err := e.Eval(input)
	if err != nil || v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
