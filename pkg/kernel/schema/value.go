package schema

import (
	"sort"
	"strings"
)

// RefPrefix marks a string input as a reference to a run variable.
const RefPrefix = "$"

// Value is a step input: a Literal, a Ref or an Object.
type Value interface {
	isValue()
}

// Literal is passed to the operation unchanged. Lists are literals; their
// elements are never inspected for references.
type Literal struct {
	V any
}

// Ref names a run variable. Name carries no prefix.
type Ref struct {
	Name string
}

// Object is a nested input mapping resolved key by key.
type Object map[string]Value

func (Literal) isValue() {}
func (Ref) isValue()     {}
func (Object) isValue()  {}

// ParseValue converts a decoded JSON value into a Value. Strings starting
// with RefPrefix become references, objects recurse, everything else is a
// literal.
func ParseValue(raw any) Value {
	switch v := raw.(type) {
	case string:
		if name, ok := strings.CutPrefix(v, RefPrefix); ok {
			return Ref{Name: name}
		}
		return Literal{V: v}
	case map[string]any:
		obj := make(Object, len(v))
		for k, item := range v {
			obj[k] = ParseValue(item)
		}
		return obj
	default:
		return Literal{V: v}
	}
}

// Keys returns the object's keys in sorted order.
func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Refs returns every reference name in v, walking objects depth-first in
// key order.
func Refs(v Value) []string {
	var out []string
	walkRefs(v, func(name string) bool {
		out = append(out, name)
		return true
	})
	return out
}

// WalkRefs calls fn for each reference in v until fn returns false. It
// reports whether the walk completed.
func WalkRefs(v Value, fn func(name string) bool) bool {
	return walkRefs(v, fn)
}

func walkRefs(v Value, fn func(string) bool) bool {
	switch x := v.(type) {
	case Ref:
		return fn(x.Name)
	case Object:
		for _, k := range x.Keys() {
			if !walkRefs(x[k], fn) {
				return false
			}
		}
	}
	return true
}
