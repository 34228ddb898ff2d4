// Package registry maps function names to the callables a scheduler may run.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Func is the shape of every schedulable function. args arrive with every
// future input already resolved to its value.
type Func func(ctx context.Context, args ...any) (any, error)

// Registry is a concurrency-safe name -> Func table. Submission resolves a
// name exactly once, at admission, so later registry changes never affect
// tasks already admitted.
type Registry struct {
	mu  sync.RWMutex
	fns map[string]Func
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{fns: make(map[string]Func)}
}

// Register binds name to fn. Names must be non-empty and unused; rebinding
// a live name is rejected rather than silently replacing it.
func (r *Registry) Register(name string, fn Func) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("registry: empty name")
	}
	if fn == nil {
		return fmt.Errorf("registry: nil func for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fns[name]; ok {
		return fmt.Errorf("registry: %q already registered", name)
	}
	r.fns[name] = fn
	zap.L().Debug("function registered", zap.String("fn", name))
	return nil
}

// MustRegister panics on Register error. Meant for program init.
func (r *Registry) MustRegister(name string, fn Func) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Deregister removes name and reports whether it was present.
func (r *Registry) Deregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fns[name]; !ok {
		return false
	}
	delete(r.fns, name)
	zap.L().Debug("function deregistered", zap.String("fn", name))
	return true
}

// Lookup returns the callable bound to name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[name]
	return fn, ok
}

// List returns all registered names, sorted for stable output.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fns))
	for n := range r.fns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of registered functions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fns)
}
