// Package contract defines operation contracts: the keyword inputs an
// operation accepts and the output keys it promises to produce.
package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Contract describes the declared interface of a registered operation.
type Contract struct {
	Description string              `yaml:"description,omitempty" json:"description,omitempty"`
	Inputs      map[string]ParamDef `yaml:"inputs,omitempty"      json:"inputs,omitempty"`
	Outputs     []string            `yaml:"outputs,omitempty"     json:"outputs,omitempty"`
}

// ParamDef describes a single keyword input.
type ParamDef struct {
	Type        string `yaml:"type"                  json:"type"`
	Required    bool   `yaml:"required,omitempty"    json:"required,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// InputNames returns the declared input names in sorted order.
func (c Contract) InputNames() []string {
	names := make([]string, 0, len(c.Inputs))
	for name := range c.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RequiredInputs returns the names of required inputs in sorted order.
func (c Contract) RequiredInputs() []string {
	var names []string
	for _, name := range c.InputNames() {
		if c.Inputs[name].Required {
			names = append(names, name)
		}
	}
	return names
}

// InputSchema returns the JSON Schema document for the contract's keyword
// inputs. Unknown keywords are rejected, mirroring a call with an
// unexpected keyword argument.
func (c Contract) InputSchema() map[string]any {
	props := make(map[string]any, len(c.Inputs))
	for name, p := range c.Inputs {
		prop := map[string]any{}
		if t := jsonType(p.Type); t != "" {
			prop["type"] = t
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[name] = prop
	}
	s := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if req := c.RequiredInputs(); len(req) > 0 {
		reqAny := make([]any, len(req))
		for i, r := range req {
			reqAny[i] = r
		}
		s["required"] = reqAny
	}
	return s
}

func jsonType(t string) string {
	switch t {
	case "string", "boolean", "object", "array", "number", "integer", "null":
		return t
	case "bool":
		return "boolean"
	case "int":
		return "integer"
	case "float":
		return "number"
	default:
		return ""
	}
}

// Binder validates keyword arguments against a contract's compiled input
// schema.
type Binder struct {
	name   string
	schema *jsonschema.Schema
}

// NewBinder compiles the input schema of c. name identifies the operation
// in error messages.
func NewBinder(name string, c Contract) (*Binder, error) {
	url := name + ".inputs.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, c.InputSchema()); err != nil {
		return nil, fmt.Errorf("add input schema for %s: %w", name, err)
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile input schema for %s: %w", name, err)
	}
	return &Binder{name: name, schema: sch}, nil
}

// MustBinder is like NewBinder but panics on error. Intended for contracts
// declared in Go source.
func MustBinder(name string, c Contract) *Binder {
	b, err := NewBinder(name, c)
	if err != nil {
		panic(err)
	}
	return b
}

// Bind checks args against the contract. The error lists every violation.
func (b *Binder) Bind(args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	// Round-trip through JSON so Go-native values (ints, typed maps) are
	// seen by the validator as plain JSON values.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%s: encode arguments: %w", b.name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%s: decode arguments: %w", b.name, err)
	}
	if err := b.schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			var msgs []string
			for _, cause := range Flatten(ve) {
				loc := strings.Join(cause.InstanceLocation, "/")
				if loc == "" {
					msgs = append(msgs, Describe(cause))
				} else {
					msgs = append(msgs, loc+": "+Describe(cause))
				}
			}
			return fmt.Errorf("%s: invalid arguments: %s", b.name, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%s: invalid arguments: %w", b.name, err)
	}
	return nil
}

// Describe renders the error kind of a single validation error.
func Describe(ve *jsonschema.ValidationError) string {
	return ve.ErrorKind.LocalizedString(printer)
}

// Flatten recursively collects all leaf validation errors.
func Flatten(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var flat []*jsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, Flatten(cause)...)
	}
	return flat
}
