package expressions

import (
	"context"
	"sync"

	"github.com/itchyny/gojq"
	"github.com/rendis/ffts/pkg/schema"
)

// tableVar binds the whole table document, so filters that descend into
// .contexts can still reach the header and the expanded successor map.
const tableVar = "$table"

// GoJQEngine runs jq filters over TableData documents, e.g.
//
//	[.contexts[] | select(.type == "label") | .id]
//	.contexts[] | select($table.successors[.id|tostring] | length > 25) | .owner_node
//
// Compiled filters are cached per source text and shared across goroutines.
type GoJQEngine struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

func NewGoJQEngine() *GoJQEngine {
	return &GoJQEngine{cache: make(map[string]*gojq.Code)}
}

func (e *GoJQEngine) Name() string { return "jq" }

// Evaluate collapses the filter's outputs: nothing yields nil, a single
// output is returned as is, several come back as []any.
func (e *GoJQEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	out, err := e.Stream(ctx, expression, data)
	if err != nil {
		return nil, err
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0], nil
	}
	return out, nil
}

// Stream returns every output of the filter in emission order, the way the
// jq command prints them one per line.
func (e *GoJQEngine) Stream(ctx context.Context, expression string, data map[string]any) ([]any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty jq expression")
	}
	code, err := e.compiled(expression)
	if err != nil {
		return nil, err
	}

	var out []any
	iter := code.RunWithContext(ctx, data, data)
	for {
		v, ok := iter.Next()
		if !ok {
			return out, nil
		}
		if err, isErr := v.(error); isErr {
			return nil, jqError(schema.ErrCodeExpression, "jq evaluation failed", expression, err)
		}
		out = append(out, v)
	}
}

func (e *GoJQEngine) compiled(expression string) (*gojq.Code, error) {
	e.mu.RLock()
	code, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return code, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, jqError(schema.ErrCodeValidation, "jq parse error", expression, err)
	}
	code, err = gojq.Compile(query,
		gojq.WithVariables([]string{tableVar}),
		// No $ENV: queries only see the table.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, jqError(schema.ErrCodeValidation, "jq compile error", expression, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.cache[expression]; ok {
		return prev, nil
	}
	e.cache[expression] = code
	return code, nil
}

func jqError(code, what, expression string, err error) *schema.FftsError {
	return schema.NewErrorf(code, "%s in %q: %s", what, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"expression": expression})
}

var _ Engine = (*GoJQEngine)(nil)
