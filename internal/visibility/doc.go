// Package visibility implements the condition language that decides whether
// an element is shown.
//
// A condition is one of:
//   - a boolean literal
//   - {"path": "/p"}: truthiness of the value at /p (missing is false)
//   - {"auth": "signedIn" | "signedOut"}
//   - {"and": [...]}, {"or": [...]}, {"not": c}
//   - {"eq"|"neq"|"gt"|"gte"|"lt"|"lte": [a, b]} where each operand is a
//     literal or a {"path"} reference
//
// Conditions are parsed once into a sealed AST and evaluated as pure
// functions of a read-only Context, so evaluation is safe to call
// concurrently.
//
// Ordered comparisons (gt, gte, lt, lte) are defined only for two numbers.
// Any other operand pair evaluates to false; Explain reports such pairs as
// *MismatchError values. eq and neq use structural equality, so the number
// 1 never equals the string "1".
package visibility
