package engine

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/golang/groupcache/lru"

	"github.com/roach88/uispec/internal/ir"
	"github.com/roach88/uispec/internal/pointer"
)

// CheckFunc is a field validation function. args are already resolved:
// {path} references have been replaced by the values they point at.
type CheckFunc func(value ir.Value, args ir.Object) bool

// Validation triggers.
const (
	ValidateOnChange = "change"
	ValidateOnBlur   = "blur"
	ValidateOnSubmit = "submit"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// builtinChecks are available to every element without registration.
var builtinChecks = map[string]CheckFunc{
	"required":  checkRequired,
	"email":     checkEmail,
	"minLength": checkMinLength,
	"maxLength": checkMaxLength,
	"pattern":   checkPattern,
	"min":       checkMin,
	"max":       checkMax,
	"numeric":   checkNumeric,
	"url":       checkURL,
	"matches":   checkMatches,
}

// FieldResult is the outcome of validating one field.
type FieldResult struct {
	Valid  bool
	Errors []string // messages of the failing checks, in declaration order
}

// FieldValidator runs an element's validation checks.
type FieldValidator struct {
	custom map[string]CheckFunc
}

// NewFieldValidator creates a validator with the built-in checks plus
// custom. A custom check with a built-in name overrides it.
func NewFieldValidator(custom map[string]CheckFunc) *FieldValidator {
	return &FieldValidator{custom: custom}
}

// Validate runs every check of schema against value. Args are token-rewritten
// under scope and {path} args resolve against data. An unknown check
// function fails with its message, so a typo never passes silently.
func (v *FieldValidator) Validate(schema *ir.ValidationSchema, value ir.Value, data ir.Value, scope *pointer.RepeatScope) FieldResult {
	res := FieldResult{Valid: true}
	if schema == nil {
		return res
	}
	for _, check := range schema.Checks {
		fn := v.lookup(check.Fn)
		var args ir.Object
		if check.Args != nil {
			args = resolveRefs(pointer.Rewrite(check.Args, scope).(ir.Object), data)
		}
		if fn == nil || !fn(value, args) {
			res.Valid = false
			res.Errors = append(res.Errors, check.Message)
		}
	}
	return res
}

func (v *FieldValidator) lookup(name string) CheckFunc {
	if fn, ok := v.custom[name]; ok {
		return fn
	}
	return builtinChecks[name]
}

// resolveRefs replaces each top-level {path: "..."} value in obj with the
// data it points at. obj is not modified.
func resolveRefs(obj ir.Object, data ir.Value) ir.Object {
	var out ir.Object
	for k, v := range obj {
		path, ok := refPath(v)
		if !ok {
			continue
		}
		if out == nil {
			out = obj.Clone()
		}
		out[k] = pointer.Lookup(data, path)
	}
	if out == nil {
		return obj
	}
	return out
}

// refPath reports whether v is a {path: string} reference.
func refPath(v ir.Value) (string, bool) {
	obj, ok := v.(ir.Object)
	if !ok || len(obj) != 1 {
		return "", false
	}
	p, ok := obj["path"].(ir.String)
	return string(p), ok
}

func checkRequired(v ir.Value, _ ir.Object) bool {
	switch val := v.(type) {
	case nil, ir.Null:
		return false
	case ir.String:
		return strings.TrimSpace(string(val)) != ""
	case ir.Array:
		return len(val) > 0
	}
	return true
}

func checkEmail(v ir.Value, _ ir.Object) bool {
	s, ok := v.(ir.String)
	return ok && emailPattern.MatchString(string(s))
}

func checkMinLength(v ir.Value, args ir.Object) bool {
	n, ok := length(v)
	lo, hasMin := args["min"].(ir.Number)
	return ok && hasMin && float64(n) >= float64(lo)
}

func checkMaxLength(v ir.Value, args ir.Object) bool {
	n, ok := length(v)
	hi, hasMax := args["max"].(ir.Number)
	return ok && hasMax && float64(n) <= float64(hi)
}

func length(v ir.Value) (int, bool) {
	switch val := v.(type) {
	case ir.String:
		return utf8.RuneCountInString(string(val)), true
	case ir.Array:
		return len(val), true
	}
	return 0, false
}

// maxCachedPatterns bounds the compiled pattern cache. Patterns come from
// the generator, so the set is open-ended.
const maxCachedPatterns = 256

var (
	patternMu    sync.Mutex
	patternCache = lru.New(maxCachedPatterns)
)

func checkPattern(v ir.Value, args ir.Object) bool {
	s, ok := v.(ir.String)
	expr, hasExpr := args["pattern"].(ir.String)
	if !ok || !hasExpr {
		return false
	}
	re := compilePattern(string(expr))
	return re != nil && re.MatchString(string(s))
}

// compilePattern returns the compiled expr, or nil when it does not
// compile. Failures are cached too.
func compilePattern(expr string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	if cached, ok := patternCache.Get(expr); ok {
		return cached.(*regexp.Regexp)
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		re = nil
	}
	patternCache.Add(expr, re)
	return re
}

func checkMin(v ir.Value, args ir.Object) bool {
	f, ok := number(v)
	lo, hasMin := args["min"].(ir.Number)
	return ok && hasMin && f >= float64(lo)
}

func checkMax(v ir.Value, args ir.Object) bool {
	f, ok := number(v)
	hi, hasMax := args["max"].(ir.Number)
	return ok && hasMax && f <= float64(hi)
}

func checkNumeric(v ir.Value, _ ir.Object) bool {
	_, ok := number(v)
	return ok
}

// number accepts numbers and strings holding a decimal number, since form
// inputs deliver text.
func number(v ir.Value) (float64, bool) {
	switch val := v.(type) {
	case ir.Number:
		return float64(val), true
	case ir.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
		return f, err == nil
	}
	return 0, false
}

func checkURL(v ir.Value, _ ir.Object) bool {
	s, ok := v.(ir.String)
	if !ok {
		return false
	}
	u, err := url.Parse(string(s))
	return err == nil && u.Scheme != "" && u.Host != ""
}

func checkMatches(v ir.Value, args ir.Object) bool {
	other, ok := args["other"]
	return ok && ir.Equal(v, other)
}
