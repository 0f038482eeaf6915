package visibility

import "github.com/roach88/uispec/internal/ir"

// Condition is a parsed visibility condition.
//
// This is a sealed interface - only types in this package implement it.
// A nil Condition means "always visible".
type Condition interface {
	conditionNode()
}

// Literal is a constant condition.
type Literal bool

func (Literal) conditionNode() {}

// Path is true when the value at Path is truthy.
type Path struct {
	Path string
}

func (Path) conditionNode() {}

// Auth requirements.
const (
	SignedInRequirement  = "signedIn"
	SignedOutRequirement = "signedOut"
)

// Auth tests the host-supplied sign-in state.
type Auth struct {
	Requirement string // SignedInRequirement or SignedOutRequirement
}

func (Auth) conditionNode() {}

// And is true when every condition is true. An empty And is true.
type And struct {
	Conditions []Condition
}

func (And) conditionNode() {}

// Or is true when any condition is true. An empty Or is false.
type Or struct {
	Conditions []Condition
}

func (Or) conditionNode() {}

// Not negates a condition.
type Not struct {
	Condition Condition
}

func (Not) conditionNode() {}

// Op is a comparison operator.
type Op string

// Comparison operators.
const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

// Ordered reports whether the operator requires numeric operands.
func (o Op) Ordered() bool {
	switch o {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

var operators = map[string]Op{
	"eq": OpEq, "neq": OpNeq, "gt": OpGt, "gte": OpGte, "lt": OpLt, "lte": OpLte,
}

// Compare applies Op to two operands.
type Compare struct {
	Op    Op
	Left  Operand
	Right Operand
}

func (Compare) conditionNode() {}

// Operand is either a literal value or a reference to a data model path.
type Operand struct {
	Ref     string   // data model path when IsRef
	IsRef   bool
	Literal ir.Value // used when !IsRef
}

// Ref returns an operand that resolves path against the data model.
func Ref(path string) Operand {
	return Operand{Ref: path, IsRef: true}
}

// Val returns a literal operand.
func Val(v ir.Value) Operand {
	return Operand{Literal: v}
}

// AuthState is the host's sign-in state for one render pass.
type AuthState struct {
	SignedIn bool
	User     ir.Value
}

// Context is the read-only input to evaluation. A nil Auth means the host
// supplied no auth state.
type Context struct {
	Data ir.Value
	Auth *AuthState
}
