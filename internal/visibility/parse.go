package visibility

import (
	"fmt"

	"github.com/roach88/uispec/internal/ir"
)

// ParseError reports a malformed condition document.
type ParseError struct {
	Path    string // location inside the condition, e.g. "and[1].not"
	Message string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return "visibility: " + e.Message
	}
	return fmt.Sprintf("visibility: %s: %s", e.Path, e.Message)
}

// Parse converts a condition document into a Condition. An undefined or
// null document parses to nil (always visible).
func Parse(v ir.Value) (Condition, error) {
	return parse(v, "")
}

// MustParse is like Parse but panics on error.
// Use only in tests or for conditions known to be valid.
func MustParse(v ir.Value) Condition {
	c, err := Parse(v)
	if err != nil {
		panic(err)
	}
	return c
}

func parse(v ir.Value, at string) (Condition, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.Bool:
		return Literal(val), nil
	case ir.Object:
		return parseObject(val, at)
	default:
		return nil, &ParseError{Path: at, Message: fmt.Sprintf("condition must be a boolean or object, got %s", ir.Kind(v))}
	}
}

func parseObject(obj ir.Object, at string) (Condition, error) {
	keys := obj.SortedKeys()
	if len(keys) != 1 {
		return nil, &ParseError{Path: at, Message: fmt.Sprintf("condition must have exactly one operator, got %v", keys)}
	}

	key := keys[0]
	arg := obj[key]
	here := join(at, key)
	switch key {
	case "path":
		p, ok := arg.(ir.String)
		if !ok {
			return nil, &ParseError{Path: here, Message: "path must be a string"}
		}
		return Path{Path: string(p)}, nil

	case "auth":
		req, ok := arg.(ir.String)
		if !ok || (req != SignedInRequirement && req != SignedOutRequirement) {
			return nil, &ParseError{Path: here, Message: `auth must be "signedIn" or "signedOut"`}
		}
		return Auth{Requirement: string(req)}, nil

	case "and", "or":
		list, ok := arg.(ir.Array)
		if !ok {
			return nil, &ParseError{Path: here, Message: key + " must be an array"}
		}
		conds := make([]Condition, 0, len(list))
		for i, item := range list {
			c, err := parse(item, fmt.Sprintf("%s[%d]", here, i))
			if err != nil {
				return nil, err
			}
			if c == nil {
				c = Literal(true)
			}
			conds = append(conds, c)
		}
		if key == "and" {
			return And{Conditions: conds}, nil
		}
		return Or{Conditions: conds}, nil

	case "not":
		c, err := parse(arg, here)
		if err != nil {
			return nil, err
		}
		if c == nil {
			c = Literal(true)
		}
		return Not{Condition: c}, nil

	default:
		op, ok := operators[key]
		if !ok {
			return nil, &ParseError{Path: at, Message: fmt.Sprintf("unknown operator %q", key)}
		}
		pair, ok := arg.(ir.Array)
		if !ok || len(pair) != 2 {
			return nil, &ParseError{Path: here, Message: key + " takes exactly two operands"}
		}
		return Compare{Op: op, Left: parseOperand(pair[0]), Right: parseOperand(pair[1])}, nil
	}
}

// parseOperand treats an object whose only key is a string "path" as a
// reference; anything else is a literal.
func parseOperand(v ir.Value) Operand {
	if obj, ok := v.(ir.Object); ok && len(obj) == 1 {
		if p, ok := obj["path"].(ir.String); ok {
			return Ref(string(p))
		}
	}
	return Val(v)
}

func join(at, key string) string {
	if at == "" {
		return key
	}
	return at + "." + key
}

// ToValue converts a condition back into its document form.
func ToValue(c Condition) ir.Value {
	switch cond := c.(type) {
	case nil:
		return nil
	case Literal:
		return ir.Bool(cond)
	case Path:
		return ir.Object{"path": ir.String(cond.Path)}
	case Auth:
		return ir.Object{"auth": ir.String(cond.Requirement)}
	case And:
		return ir.Object{"and": toValues(cond.Conditions)}
	case Or:
		return ir.Object{"or": toValues(cond.Conditions)}
	case Not:
		return ir.Object{"not": ToValue(cond.Condition)}
	case Compare:
		return ir.Object{string(cond.Op): ir.Array{operandValue(cond.Left), operandValue(cond.Right)}}
	}
	return nil
}

func toValues(conds []Condition) ir.Array {
	out := make(ir.Array, len(conds))
	for i, c := range conds {
		out[i] = ToValue(c)
	}
	return out
}

func operandValue(o Operand) ir.Value {
	if o.IsRef {
		return ir.Object{"path": ir.String(o.Ref)}
	}
	if o.Literal == nil {
		return ir.Null{}
	}
	return o.Literal
}
