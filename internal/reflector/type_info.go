// Package reflector names Go types for the wire and maps those names back
// to types on the receiving side.
package reflector

import (
	"reflect"
	"sync"
)

var (
	muCache sync.RWMutex
	cache   = make(map[reflect.Type]TypeInfo)
)

// TypeInfo is the qualified name of a type together with the type itself.
type TypeInfo struct {
	Name string // "pkg/path.TypeName"; builtin types carry no package path
	Type reflect.Type
}

func TypeInfoOf(x any) TypeInfo {
	return TypeInfoForType(reflect.TypeOf(x))
}

func TypeInfoFor[T any]() TypeInfo {
	return TypeInfoForType(reflect.TypeFor[T]())
}

// TypeInfoForType unwraps one level of pointer and returns the cached info.
func TypeInfoForType(t reflect.Type) TypeInfo {
	if t == nil {
		return TypeInfo{}
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	muCache.RLock()
	ti, ok := cache[t]
	muCache.RUnlock()
	if ok {
		return ti
	}

	ti = TypeInfo{Name: qualifiedName(t), Type: t}

	muCache.Lock()
	cache[t] = ti
	muCache.Unlock()
	return ti
}

func qualifiedName(t reflect.Type) string {
	if t.PkgPath() == "" {
		// builtins, and unnamed composites such as []string
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// Registry resolves qualified type names back to types. Go has no runtime
// lookup by name, so every type that may travel by name has to be
// registered up front.
type Registry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]reflect.Type)}
}

// Register records t and returns the name it is known by.
func (r *Registry) Register(t reflect.Type) string {
	ti := TypeInfoForType(t)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[ti.Name] = ti.Type
	return ti.Name
}

func (r *Registry) Lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

// Register adds T to r.
func Register[T any](r *Registry) string {
	return r.Register(reflect.TypeFor[T]())
}
