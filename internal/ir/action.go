package ir

import (
	"fmt"
	"sort"
	"strings"
)

// Action is a named side effect declared in the tree and executed by a
// host-registered handler.
type Action struct {
	Name      string       `json:"name"`
	Params    Object       `json:"params,omitempty"`
	Confirm   *ConfirmSpec `json:"confirm,omitempty"`
	OnSuccess *SetSpec     `json:"onSuccess,omitempty"`
	OnError   *SetSpec     `json:"onError,omitempty"`
}

// ConfirmSpec is the payload surfaced to the user before a gated action runs.
type ConfirmSpec struct {
	Title        string `json:"title"`
	Message      string `json:"message"`
	Variant      string `json:"variant,omitempty"` // "default" or "danger"
	ConfirmLabel string `json:"confirmLabel,omitempty"`
	CancelLabel  string `json:"cancelLabel,omitempty"`
}

// SetSpec lists data model writes applied when an action resolves.
type SetSpec struct {
	Set Object `json:"set"`
}

// Paths returns the write targets in sorted order so writes apply
// deterministically.
func (s *SetSpec) Paths() []string {
	if s == nil {
		return nil
	}
	paths := make([]string, 0, len(s.Set))
	for p := range s.Set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ParseAction decodes an action. A bare string is shorthand for an action
// with no params.
func ParseAction(v Value) (Action, error) {
	switch val := v.(type) {
	case String:
		if val == "" {
			return Action{}, fmt.Errorf("action name must not be empty")
		}
		return Action{Name: string(val)}, nil
	case Object:
		return actionFromObject(val)
	default:
		return Action{}, fmt.Errorf("action must be a string or object, got %s", Kind(v))
	}
}

func actionFromObject(obj Object) (Action, error) {
	name, ok := obj["name"].(String)
	if !ok || name == "" {
		return Action{}, fmt.Errorf("action name must be a non-empty string")
	}
	a := Action{Name: string(name)}

	switch params := obj["params"].(type) {
	case nil, Null:
	case Object:
		a.Params = params
	default:
		return Action{}, fmt.Errorf("action %q: params must be an object, got %s", name, Kind(params))
	}

	if raw, present := obj["confirm"]; present {
		c, ok := raw.(Object)
		if !ok {
			return Action{}, fmt.Errorf("action %q: confirm must be an object", name)
		}
		a.Confirm = &ConfirmSpec{
			Title:        stringField(c, "title"),
			Message:      stringField(c, "message"),
			Variant:      stringField(c, "variant"),
			ConfirmLabel: stringField(c, "confirmLabel"),
			CancelLabel:  stringField(c, "cancelLabel"),
		}
	}

	var err error
	if a.OnSuccess, err = setSpecFromValue(obj["onSuccess"]); err != nil {
		return Action{}, fmt.Errorf("action %q: onSuccess: %w", name, err)
	}
	if a.OnError, err = setSpecFromValue(obj["onError"]); err != nil {
		return Action{}, fmt.Errorf("action %q: onError: %w", name, err)
	}
	return a, nil
}

func setSpecFromValue(v Value) (*SetSpec, error) {
	switch val := v.(type) {
	case nil, Null:
		return nil, nil
	case Object:
		set, ok := val["set"].(Object)
		if !ok {
			return nil, fmt.Errorf("set must be an object")
		}
		return &SetSpec{Set: set}, nil
	default:
		return nil, fmt.Errorf("must be an object, got %s", Kind(v))
	}
}

func stringField(obj Object, key string) string {
	s, _ := obj[key].(String)
	return string(s)
}

// ToValue converts the action into its JSON document form.
func (a Action) ToValue() Object {
	obj := Object{"name": String(a.Name)}
	if a.Params != nil {
		obj["params"] = a.Params
	}
	if a.Confirm != nil {
		c := Object{"title": String(a.Confirm.Title), "message": String(a.Confirm.Message)}
		if a.Confirm.Variant != "" {
			c["variant"] = String(a.Confirm.Variant)
		}
		if a.Confirm.ConfirmLabel != "" {
			c["confirmLabel"] = String(a.Confirm.ConfirmLabel)
		}
		if a.Confirm.CancelLabel != "" {
			c["cancelLabel"] = String(a.Confirm.CancelLabel)
		}
		obj["confirm"] = c
	}
	if a.OnSuccess != nil {
		obj["onSuccess"] = Object{"set": a.OnSuccess.Set}
	}
	if a.OnError != nil {
		obj["onError"] = Object{"set": a.OnError.Set}
	}
	return obj
}

// IsActionProp reports whether a prop name conventionally carries an action:
// "action" itself, or any name ending in "Action" such as "submitAction".
func IsActionProp(name string) bool {
	return name == "action" || (len(name) > len("Action") && strings.HasSuffix(name, "Action"))
}

// Actions returns the actions declared in an element's props, keyed by prop
// name. Props that do not decode as actions are skipped.
func (e *Element) Actions() map[string]Action {
	var out map[string]Action
	for name, v := range e.Props {
		if !IsActionProp(name) {
			continue
		}
		a, err := ParseAction(v)
		if err != nil {
			continue
		}
		if out == nil {
			out = make(map[string]Action)
		}
		out[name] = a
	}
	return out
}
