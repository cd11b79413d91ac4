// Package factory builds retrievers by type name. A Registry maps each
// type to a constructor and a default config; DefaultRegistry knows every
// built-in strategy and callers may register their own at init.
package factory

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	aerrors "github.com/milad-o/agenticflow-sub002/internal/errors"
	"github.com/milad-o/agenticflow-sub002/pkg/composite"
	"github.com/milad-o/agenticflow-sub002/pkg/embed"
	"github.com/milad-o/agenticflow-sub002/pkg/retriever"
)

// Dependencies are the collaborators a constructor may need besides the
// data source and config.
type Dependencies struct {
	// Provider embeds text for the dense vector strategies. Optional.
	Provider embed.Provider

	// Children feed ensemble and fusion.
	Children []retriever.Retriever

	// Dense and Sparse feed hybrid.
	Dense  retriever.Retriever
	Sparse retriever.Retriever

	// Base feeds contextual.
	Base retriever.Retriever

	// Reranker is applied by fusion. Optional.
	Reranker composite.NeuralReranker

	// Logger is passed to every retriever built. Optional.
	Logger *slog.Logger
}

func (d Dependencies) options() []retriever.PipelineOption {
	if d.Logger == nil {
		return nil
	}
	return []retriever.PipelineOption{retriever.WithLogger(d.Logger)}
}

// Constructor builds a retriever. cfg is nil, a config value or a pointer
// to one, of the type the registration's NewConfig returns.
type Constructor func(src any, cfg any, deps Dependencies) (retriever.Retriever, error)

// Registration describes one retriever type.
type Registration struct {
	Constructor Constructor

	// NewConfig returns a pointer to a fresh default config.
	NewConfig func() any

	// Composite types take child retrievers through Dependencies.
	Composite bool
}

// Registry maps type names to registrations. It is safe for concurrent
// use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Registration)}
}

// Register adds a type. Registering a name twice is an error.
func (r *Registry) Register(kind string, reg Registration) error {
	if kind == "" || reg.Constructor == nil || reg.NewConfig == nil {
		return retriever.ConfigurationError("registration needs a type name, constructor and config factory", nil)
	}
	if kind == Auto {
		return retriever.ConfigurationError(fmt.Sprintf("%q is reserved", Auto), nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[kind]; exists {
		return retriever.ConfigurationError(fmt.Sprintf("retriever type %q already registered", kind), nil)
	}
	r.entries[kind] = reg
	return nil
}

// MustRegister is Register that panics, for init-time registration.
func (r *Registry) MustRegister(kind string, reg Registration) {
	if err := r.Register(kind, reg); err != nil {
		panic(err)
	}
}

// Types lists the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Lookup returns the registration for kind.
func (r *Registry) Lookup(kind string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[kind]
	return reg, ok
}

// NewConfig returns a pointer to kind's default config.
func (r *Registry) NewConfig(kind string) (any, error) {
	reg, ok := r.Lookup(kind)
	if !ok {
		return nil, r.unknown(kind)
	}
	return reg.NewConfig(), nil
}

// Create builds a retriever of kind over src. The kind Auto picks a leaf
// type with DetectType.
func (r *Registry) Create(kind string, src any, cfg any, deps Dependencies) (retriever.Retriever, error) {
	if kind == Auto {
		kind = DetectType(src)
	}
	reg, ok := r.Lookup(kind)
	if !ok {
		return nil, r.unknown(kind)
	}
	return reg.Constructor(src, cfg, deps)
}

func (r *Registry) unknown(kind string) error {
	return aerrors.UnknownStrategy(kind).
		WithDetail("available", fmt.Sprint(r.Types()))
}

// configAs resolves cfg to a C: nil yields the default, C and *C are
// accepted as is.
func configAs[C any](cfg any, def func() C) (C, error) {
	switch c := cfg.(type) {
	case nil:
		return def(), nil
	case C:
		return c, nil
	case *C:
		if c == nil {
			return def(), nil
		}
		return *c, nil
	default:
		var zero C
		return zero, retriever.ConfigurationError(fmt.Sprintf("config has type %T, want %T", cfg, zero), nil)
	}
}

// leaf registers a constructor that takes a typed config.
func leaf[C any](def func() C, build func(src any, cfg C, deps Dependencies) (retriever.Retriever, error)) Registration {
	return Registration{
		NewConfig: func() any {
			c := def()
			return &c
		},
		Constructor: func(src any, cfg any, deps Dependencies) (retriever.Retriever, error) {
			c, err := configAs(cfg, def)
			if err != nil {
				return nil, err
			}
			return build(src, c, deps)
		},
	}
}

// as converts a concrete constructor result without leaking a typed nil.
func as[R retriever.Retriever](r R, err error) (retriever.Retriever, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}
