// Package registry maps action names to the operations that implement them.
// A registry is built once, before any run, and is read-only afterwards.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ormasoftchile/triage/pkg/kernel/contract"
)

// ErrUnknownOperation is returned when a plan names an action that has no
// registered operation.
var ErrUnknownOperation = errors.New("unknown operation")

// Operation is a named unit of work invoked with keyword arguments.
// The returned output is usually a map[string]any whose keys become run
// variables; any other value is logged but not merged.
type Operation interface {
	Contract() contract.Contract
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// Func adapts a plain function and its contract to Operation.
type Func struct {
	C  contract.Contract
	Fn func(ctx context.Context, args map[string]any) (any, error)
}

func (f Func) Contract() contract.Contract { return f.C }

func (f Func) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f.Fn(ctx, args)
}

// Registry is an immutable action table.
type Registry struct {
	ops map[string]Operation
}

// New builds a registry from the given table. Names must be non-empty and
// operations non-nil.
func New(ops map[string]Operation) (*Registry, error) {
	table := make(map[string]Operation, len(ops))
	for name, op := range ops {
		if name == "" {
			return nil, fmt.Errorf("register operation: empty name")
		}
		if op == nil {
			return nil, fmt.Errorf("register operation %s: nil operation", name)
		}
		table[name] = op
	}
	return &Registry{ops: table}, nil
}

// MustNew is like New but panics on error.
func MustNew(ops map[string]Operation) *Registry {
	r, err := New(ops)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the operation registered under name.
func (r *Registry) Lookup(name string) (Operation, error) {
	op, ok := r.ops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return op, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.ops[name]
	return ok
}

// Names returns the registered action names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RequiredOutputs returns the output keys the named operation promises.
// Unknown names have none.
func (r *Registry) RequiredOutputs(name string) []string {
	op, ok := r.ops[name]
	if !ok {
		return nil
	}
	return op.Contract().Outputs
}

// Contracts returns every registered contract keyed by action name.
func (r *Registry) Contracts() map[string]contract.Contract {
	out := make(map[string]contract.Contract, len(r.ops))
	for name, op := range r.ops {
		out[name] = op.Contract()
	}
	return out
}
