package expressions

import "context"

// Engine evaluates expressions over build data.
// Three implementations: CEL (mode rules), Expr (table queries), GoJQ (transforms).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
