package catalog

import (
	stderrors "errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/uispec/internal/ir"
)

// Kinds of validated subjects.
const (
	KindComponent = "component"
	KindAction    = "action"
)

// Sentinel causes, matchable with errors.Is.
var (
	ErrUnknownComponent = stderrors.New("unknown component type")
	ErrUnknownAction    = stderrors.New("unknown action")
	ErrSchema           = stderrors.New("schema validation failed")
)

// ValidationError reports props or params that do not satisfy the catalog.
type ValidationError struct {
	Kind    string // KindComponent or KindAction
	Name    string // component type or action name
	Field   string // dotted path inside props/params; empty for whole-object failures
	Message string
	cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s %q: %s: %s", e.Kind, e.Name, e.Field, e.Message)
	}
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Name, e.Message)
}

// Unwrap returns the sentinel cause.
func (e *ValidationError) Unwrap() error {
	return e.cause
}

// ValidateProps checks an element's props against its component schema.
// A failure wraps one *ValidationError per offending field, joined with
// errors.Join; use errors.As to inspect them.
func (c *Catalog) ValidateProps(typ string, props ir.Object) error {
	comp, ok := c.Components[typ]
	if !ok {
		return &ValidationError{Kind: KindComponent, Name: typ, Message: "not declared in catalog", cause: ErrUnknownComponent}
	}
	if !comp.HasSchema {
		return nil
	}
	return c.validate(KindComponent, typ, comp.Props, comp.fields, props)
}

// ValidateParams checks action params against the action's schema.
func (c *Catalog) ValidateParams(name string, params ir.Object) error {
	def, ok := c.Actions[name]
	if !ok {
		return &ValidationError{Kind: KindAction, Name: name, Message: "not declared in catalog", cause: ErrUnknownAction}
	}
	if !def.HasSchema {
		return nil
	}
	return c.validate(KindAction, name, def.Params, def.fields, params)
}

func (c *Catalog) validate(kind, name string, schema cue.Value, fields []string, obj ir.Object) error {
	if obj == nil {
		obj = ir.Object{}
	}

	var errs []error
	if c.Strict {
		declared := make(map[string]bool, len(fields))
		for _, f := range fields {
			declared[f] = true
		}
		for _, k := range obj.SortedKeys() {
			if !declared[k] {
				errs = append(errs, &ValidationError{Kind: kind, Name: name, Field: k, Message: "field not allowed", cause: ErrSchema})
			}
		}
	}

	c.mu.Lock()
	encoded := c.ctx.Encode(ir.ToAny(obj))
	var err error
	if err = encoded.Err(); err == nil {
		err = schema.Unify(encoded).Validate(cue.Concrete(true))
	}
	prefix := len(schema.Path().Selectors())
	if err != nil {
		cueErrs := errors.Errors(err)
		if len(cueErrs) == 0 {
			errs = append(errs, &ValidationError{Kind: kind, Name: name, Message: err.Error(), cause: ErrSchema})
		}
		for _, e := range cueErrs {
			errs = append(errs, &ValidationError{
				Kind:    kind,
				Name:    name,
				Field:   trimPath(e.Path(), prefix),
				Message: message(e),
				cause:   ErrSchema,
			})
		}
	}
	c.mu.Unlock()

	return stderrors.Join(errs...)
}

// trimPath drops the schema's own location from an error path.
func trimPath(path []string, prefix int) string {
	if len(path) >= prefix {
		path = path[prefix:]
	}
	return strings.Join(path, ".")
}

func message(e errors.Error) string {
	format, args := e.Msg()
	return fmt.Sprintf(format, args...)
}
