package visibility

import "github.com/roach88/uispec/internal/ir"

// Builders for conditions assembled in Go rather than parsed from a document.

var (
	Always    Condition = Literal(true)
	Never     Condition = Literal(false)
	SignedIn  Condition = Auth{Requirement: SignedInRequirement}
	SignedOut Condition = Auth{Requirement: SignedOutRequirement}
)

// When is visible while the value at path is truthy.
func When(path string) Condition { return Path{Path: path} }

func AllOf(conds ...Condition) Condition { return And{Conditions: conds} }

func AnyOf(conds ...Condition) Condition { return Or{Conditions: conds} }

func Negate(c Condition) Condition { return Not{Condition: c} }

func Eq(a, b Operand) Condition  { return Compare{Op: OpEq, Left: a, Right: b} }
func Neq(a, b Operand) Condition { return Compare{Op: OpNeq, Left: a, Right: b} }
func Gt(a, b Operand) Condition  { return Compare{Op: OpGt, Left: a, Right: b} }
func Gte(a, b Operand) Condition { return Compare{Op: OpGte, Left: a, Right: b} }
func Lt(a, b Operand) Condition  { return Compare{Op: OpLt, Left: a, Right: b} }
func Lte(a, b Operand) Condition { return Compare{Op: OpLte, Left: a, Right: b} }

// Num is a numeric literal operand.
func Num(f float64) Operand { return Val(ir.Number(f)) }

// Str is a string literal operand.
func Str(s string) Operand { return Val(ir.String(s)) }
