package visibility

import (
	"errors"
	"fmt"

	"github.com/roach88/uispec/internal/ir"
	"github.com/roach88/uispec/internal/pointer"
)

// MismatchError records an ordered comparison whose operands are not both
// numbers. Such comparisons evaluate to false.
type MismatchError struct {
	Op    Op
	Left  string // ir.Kind of the resolved left operand
	Right string // ir.Kind of the resolved right operand
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: cannot order %s against %s", e.Op, e.Left, e.Right)
}

// Evaluate reports whether c holds in ctx. A nil condition is true.
func Evaluate(c Condition, ctx Context) bool {
	return eval(c, ctx, nil)
}

// Explain evaluates c and also returns every comparison mismatch met along
// the way, joined with errors.Join. The boolean result is identical to
// Evaluate.
func Explain(c Condition, ctx Context) (bool, error) {
	var errs []error
	result := eval(c, ctx, &errs)
	return result, errors.Join(errs...)
}

// EvaluateValue parses and evaluates a condition document. A malformed
// condition yields false together with the parse error.
func EvaluateValue(v ir.Value, ctx Context) (bool, error) {
	c, err := Parse(v)
	if err != nil {
		return false, err
	}
	return Explain(c, ctx)
}

func eval(c Condition, ctx Context, errs *[]error) bool {
	switch cond := c.(type) {
	case nil:
		return true
	case Literal:
		return bool(cond)
	case Path:
		return ir.Truthy(pointer.Lookup(ctx.Data, cond.Path))
	case Auth:
		signedIn := ctx.Auth != nil && ctx.Auth.SignedIn
		if cond.Requirement == SignedOutRequirement {
			return !signedIn
		}
		return signedIn
	case And:
		for _, sub := range cond.Conditions {
			if !eval(sub, ctx, errs) {
				return false
			}
		}
		return true
	case Or:
		for _, sub := range cond.Conditions {
			if eval(sub, ctx, errs) {
				return true
			}
		}
		return false
	case Not:
		return !eval(cond.Condition, ctx, errs)
	case Compare:
		return compare(cond, ctx, errs)
	}
	return false
}

func compare(c Compare, ctx Context, errs *[]error) bool {
	left := resolve(c.Left, ctx)
	right := resolve(c.Right, ctx)

	switch c.Op {
	case OpEq:
		return ir.Equal(left, right)
	case OpNeq:
		return !ir.Equal(left, right)
	}

	l, lok := left.(ir.Number)
	r, rok := right.(ir.Number)
	if !lok || !rok {
		if errs != nil {
			*errs = append(*errs, &MismatchError{Op: c.Op, Left: ir.Kind(left), Right: ir.Kind(right)})
		}
		return false
	}

	switch c.Op {
	case OpGt:
		return l > r
	case OpGte:
		return l >= r
	case OpLt:
		return l < r
	case OpLte:
		return l <= r
	}
	return false
}

func resolve(o Operand, ctx Context) ir.Value {
	if o.IsRef {
		return pointer.Lookup(ctx.Data, o.Ref)
	}
	return o.Literal
}
