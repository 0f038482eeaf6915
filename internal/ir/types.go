package ir

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Spec is a flat, key-addressed UI tree: a root pointer plus a mapping of
// element keys to elements. State carries the generator's initial data
// model, if any.
type Spec struct {
	Root     string              `json:"root"`
	Elements map[string]*Element `json:"elements"`
	State    Object              `json:"state,omitempty"`
}

// NewSpec returns an empty spec with no root.
func NewSpec() Spec {
	return Spec{Elements: map[string]*Element{}}
}

// Keys returns element keys in sorted order.
func (s Spec) Keys() []string {
	keys := make([]string, 0, len(s.Elements))
	for k := range s.Elements {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToValue converts the spec into its JSON document form.
func (s Spec) ToValue() Object {
	elements := make(Object, len(s.Elements))
	for k, el := range s.Elements {
		elements[k] = el.ToValue()
	}
	doc := Object{"elements": elements}
	if s.Root == "" {
		doc["root"] = Null{}
	} else {
		doc["root"] = String(s.Root)
	}
	if s.State != nil {
		doc["state"] = s.State
	}
	return doc
}

// SpecFromValue decodes a spec document. Elements that fail to decode are
// returned as errors alongside the partial spec so one bad element does not
// hide the rest of the tree.
func SpecFromValue(v Value) (Spec, []error) {
	spec := NewSpec()
	doc, ok := v.(Object)
	if !ok {
		return spec, []error{fmt.Errorf("spec must be an object, got %s", Kind(v))}
	}

	var errs []error
	switch root := doc["root"].(type) {
	case nil, Null:
	case String:
		spec.Root = string(root)
	default:
		errs = append(errs, fmt.Errorf("root must be a string or null, got %s", Kind(root)))
	}

	if elements, ok := doc["elements"].(Object); ok {
		for _, key := range elements.SortedKeys() {
			el, err := ElementFromValue(key, elements[key])
			if err != nil {
				errs = append(errs, err)
				continue
			}
			spec.Elements[key] = el
		}
	}
	if state, ok := doc["state"].(Object); ok {
		spec.State = state
	}
	return spec, errs
}

// UnmarshalJSON implements json.Unmarshaler for Spec.
func (s *Spec) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalValue(data)
	if err != nil {
		return err
	}
	spec, errs := SpecFromValue(v)
	if len(errs) > 0 {
		return errs[0]
	}
	*s = spec
	return nil
}

// MarshalJSON implements json.Marshaler for Spec.
func (s Spec) MarshalJSON() ([]byte, error) {
	return s.ToValue().MarshalJSON()
}

// Element is one node of the tree.
type Element struct {
	Key        string            `json:"key"`
	Type       string            `json:"type"`
	Props      Object            `json:"props"`
	Children   []string          `json:"children,omitempty"`
	Visible    Value             `json:"visible,omitempty"` // nil means always visible
	Validation *ValidationSchema `json:"validation,omitempty"`
	Repeat     *RepeatSpec       `json:"repeat,omitempty"`
}

// RepeatSpec renders an element's children once per item of the array at Path.
// Key names the item field used as the stable per-item render key.
type RepeatSpec struct {
	Path string `json:"path"`
	Key  string `json:"key,omitempty"`
}

// ValidationSchema declares field checks for input elements.
type ValidationSchema struct {
	Checks     []ValidationCheck `json:"checks"`
	ValidateOn string            `json:"validateOn,omitempty"` // "change", "blur" or "submit"
}

// ValidationCheck names a check function, its arguments and the message
// reported when it fails.
type ValidationCheck struct {
	Fn      string `json:"fn"`
	Args    Object `json:"args,omitempty"`
	Message string `json:"message"`
}

// ElementFromValue decodes an element document stored under key.
// The key argument wins over any "key" field in the document.
func ElementFromValue(key string, v Value) (*Element, error) {
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("element %q: must be an object, got %s", key, Kind(v))
	}

	el := &Element{Key: key, Props: Object{}}

	typ, ok := obj["type"].(String)
	if !ok || typ == "" {
		return nil, fmt.Errorf("element %q: type must be a non-empty string", key)
	}
	el.Type = string(typ)

	switch props := obj["props"].(type) {
	case nil, Null:
	case Object:
		el.Props = props
	default:
		return nil, fmt.Errorf("element %q: props must be an object, got %s", key, Kind(props))
	}

	switch children := obj["children"].(type) {
	case nil, Null:
	case Array:
		el.Children = make([]string, 0, len(children))
		for i, c := range children {
			s, ok := c.(String)
			if !ok {
				return nil, fmt.Errorf("element %q: children[%d] must be a string key", key, i)
			}
			el.Children = append(el.Children, string(s))
		}
	default:
		return nil, fmt.Errorf("element %q: children must be an array, got %s", key, Kind(children))
	}

	if vis, present := obj["visible"]; present {
		el.Visible = vis
	}

	if raw, present := obj["repeat"]; present {
		r, ok := raw.(Object)
		if !ok {
			return nil, fmt.Errorf("element %q: repeat must be an object", key)
		}
		path, ok := r["path"].(String)
		if !ok {
			return nil, fmt.Errorf("element %q: repeat.path must be a string", key)
		}
		el.Repeat = &RepeatSpec{Path: string(path)}
		if k, ok := r["key"].(String); ok {
			el.Repeat.Key = string(k)
		}
	}

	if raw, present := obj["validation"]; present {
		schema, err := validationFromValue(raw)
		if err != nil {
			return nil, fmt.Errorf("element %q: %w", key, err)
		}
		el.Validation = schema
	}

	return el, nil
}

func validationFromValue(v Value) (*ValidationSchema, error) {
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("validation must be an object")
	}
	schema := &ValidationSchema{}
	if on, ok := obj["validateOn"].(String); ok {
		schema.ValidateOn = string(on)
	}
	checks, _ := obj["checks"].(Array)
	for i, c := range checks {
		co, ok := c.(Object)
		if !ok {
			return nil, fmt.Errorf("validation.checks[%d] must be an object", i)
		}
		fn, ok := co["fn"].(String)
		if !ok || fn == "" {
			return nil, fmt.Errorf("validation.checks[%d].fn must be a non-empty string", i)
		}
		check := ValidationCheck{Fn: string(fn)}
		if args, ok := co["args"].(Object); ok {
			check.Args = args
		}
		if msg, ok := co["message"].(String); ok {
			check.Message = string(msg)
		}
		schema.Checks = append(schema.Checks, check)
	}
	return schema, nil
}

// ToValue converts the element into its JSON document form.
func (e *Element) ToValue() Object {
	obj := Object{
		"key":   String(e.Key),
		"type":  String(e.Type),
		"props": e.Props,
	}
	if e.Props == nil {
		obj["props"] = Object{}
	}
	if e.Children != nil {
		children := make(Array, len(e.Children))
		for i, c := range e.Children {
			children[i] = String(c)
		}
		obj["children"] = children
	}
	if e.Visible != nil {
		obj["visible"] = e.Visible
	}
	if e.Repeat != nil {
		r := Object{"path": String(e.Repeat.Path)}
		if e.Repeat.Key != "" {
			r["key"] = String(e.Repeat.Key)
		}
		obj["repeat"] = r
	}
	if e.Validation != nil {
		checks := make(Array, len(e.Validation.Checks))
		for i, c := range e.Validation.Checks {
			co := Object{"fn": String(c.Fn), "message": String(c.Message)}
			if c.Args != nil {
				co["args"] = c.Args
			}
			checks[i] = co
		}
		v := Object{"checks": checks}
		if e.Validation.ValidateOn != "" {
			v["validateOn"] = String(e.Validation.ValidateOn)
		}
		obj["validation"] = v
	}
	return obj
}

// MarshalJSON implements json.Marshaler for Element.
func (e *Element) MarshalJSON() ([]byte, error) {
	return e.ToValue().MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler for Element.
func (e *Element) UnmarshalJSON(data []byte) error {
	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	key, _ := obj["key"].(String)
	el, err := ElementFromValue(string(key), obj)
	if err != nil {
		return err
	}
	*e = *el
	return nil
}
