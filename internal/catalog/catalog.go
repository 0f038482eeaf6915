package catalog

import (
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Catalog is the compiled set of components and actions a tree may use.
type Catalog struct {
	Name       string
	Strict     bool
	Components map[string]*Component
	Actions    map[string]*ActionDef

	// mu serialises use of the underlying CUE runtime, which is not safe
	// for concurrent use.
	mu  sync.Mutex
	ctx *cue.Context
}

// Component describes one renderable type.
type Component struct {
	Name        string
	Description string
	Slots       []string
	Props       cue.Value // schema; valid only when HasSchema
	HasSchema   bool
	fields      []string
}

// ActionDef describes one action the host can execute.
type ActionDef struct {
	Name        string
	Description string
	Params      cue.Value // schema; valid only when HasSchema
	HasSchema   bool
	fields      []string
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(field string, err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &CompileError{Field: field, Message: err.Error()}
	}

	first := errs[0]
	ce := &CompileError{Field: field, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}

// CompileString compiles CUE source. The catalog is read from the top-level
// "catalog" field when present, otherwise from the whole document.
func CompileString(src string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("catalog.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError("cue", err)
	}
	if c := v.LookupPath(cue.ParsePath("catalog")); c.Exists() {
		v = c
	}
	return Compile(v)
}

// Compile builds a Catalog from the CUE value of a catalog struct.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	cat, err := Compile(v.LookupPath(cue.ParsePath("catalog")))
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError("cue", err)
	}
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: "catalog", Message: "catalog must be a struct", Pos: v.Pos()}
	}

	cat := &Catalog{
		Components: map[string]*Component{},
		Actions:    map[string]*ActionDef{},
		ctx:        v.Context(),
	}

	if name := v.LookupPath(cue.ParsePath("name")); name.Exists() {
		s, err := name.String()
		if err != nil {
			return nil, formatCUEError("name", err)
		}
		cat.Name = s
	}
	if strict := v.LookupPath(cue.ParsePath("strict")); strict.Exists() {
		b, err := strict.Bool()
		if err != nil {
			return nil, formatCUEError("strict", err)
		}
		cat.Strict = b
	}

	components := v.LookupPath(cue.ParsePath("components"))
	if !components.Exists() {
		return nil, &CompileError{Field: "components", Message: "at least one component is required", Pos: v.Pos()}
	}
	if err := eachField(components, "components", func(name string, cv cue.Value) error {
		comp, err := compileComponent(name, cv)
		if err != nil {
			return err
		}
		cat.Components[name] = comp
		return nil
	}); err != nil {
		return nil, err
	}
	if len(cat.Components) == 0 {
		return nil, &CompileError{Field: "components", Message: "at least one component is required", Pos: components.Pos()}
	}

	if actions := v.LookupPath(cue.ParsePath("actions")); actions.Exists() {
		if err := eachField(actions, "actions", func(name string, av cue.Value) error {
			def, err := compileAction(name, av)
			if err != nil {
				return err
			}
			cat.Actions[name] = def
			return nil
		}); err != nil {
			return nil, err
		}
	}

	return cat, nil
}

// eachField calls fn for every regular field of a struct value.
func eachField(v cue.Value, field string, fn func(name string, v cue.Value) error) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(field, err)
	}
	for iter.Next() {
		sel := iter.Selector()
		if !sel.IsString() {
			continue
		}
		if err := fn(sel.Unquoted(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func compileComponent(name string, v cue.Value) (*Component, error) {
	field := "components." + name
	comp := &Component{Name: name}

	desc, err := optionalString(v, "description", field)
	if err != nil {
		return nil, err
	}
	comp.Description = desc

	if slots := v.LookupPath(cue.ParsePath("slots")); slots.Exists() {
		iter, err := slots.List()
		if err != nil {
			return nil, formatCUEError(field+".slots", err)
		}
		for iter.Next() {
			s, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(field+".slots", err)
			}
			comp.Slots = append(comp.Slots, s)
		}
	}

	if props := v.LookupPath(cue.ParsePath("props")); props.Exists() {
		if props.IncompleteKind() != cue.StructKind {
			return nil, &CompileError{Field: field + ".props", Message: "props schema must be a struct", Pos: props.Pos()}
		}
		comp.Props = props
		comp.HasSchema = true
		comp.fields, err = schemaFields(props, field+".props")
		if err != nil {
			return nil, err
		}
	}
	return comp, nil
}

func compileAction(name string, v cue.Value) (*ActionDef, error) {
	field := "actions." + name
	def := &ActionDef{Name: name}

	desc, err := optionalString(v, "description", field)
	if err != nil {
		return nil, err
	}
	def.Description = desc

	if params := v.LookupPath(cue.ParsePath("params")); params.Exists() {
		if params.IncompleteKind() != cue.StructKind {
			return nil, &CompileError{Field: field + ".params", Message: "params schema must be a struct", Pos: params.Pos()}
		}
		def.Params = params
		def.HasSchema = true
		def.fields, err = schemaFields(params, field+".params")
		if err != nil {
			return nil, err
		}
	}
	return def, nil
}

func optionalString(v cue.Value, name, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(field+"."+name, err)
	}
	return s, nil
}

// schemaFields lists the declared field names of a schema, optional ones
// included.
func schemaFields(v cue.Value, field string) ([]string, error) {
	iter, err := v.Fields(cue.Optional(true))
	if err != nil {
		return nil, formatCUEError(field, err)
	}
	var names []string
	for iter.Next() {
		if sel := iter.Selector(); sel.IsString() {
			names = append(names, sel.Unquoted())
		}
	}
	sort.Strings(names)
	return names, nil
}

// HasComponent reports whether typ is a registered component type.
func (c *Catalog) HasComponent(typ string) bool {
	_, ok := c.Components[typ]
	return ok
}

// HasAction reports whether name is a declared action.
func (c *Catalog) HasAction(name string) bool {
	_, ok := c.Actions[name]
	return ok
}

// ComponentNames returns component types in sorted order.
func (c *Catalog) ComponentNames() []string {
	names := make([]string, 0, len(c.Components))
	for n := range c.Components {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ActionNames returns action names in sorted order.
func (c *Catalog) ActionNames() []string {
	names := make([]string, 0, len(c.Actions))
	for n := range c.Actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
