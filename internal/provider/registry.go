package provider

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Constructor builds a provider for one call.
type Constructor func(deps Deps) Provider

// Registry maps stable provider identifiers to constructors.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Default returns a registry with every built-in source.
func Default() *Registry {
	r := NewRegistry()
	for _, site := range []Site{UAKino(), AniTube(), AnimeOn(), UAFlix()} {
		r.RegisterSite(site)
	}
	return r
}

// Register binds id to c, replacing any previous binding.
func (r *Registry) Register(id string, c Constructor) {
	r.constructors[id] = c
}

// RegisterSite registers an Adapter constructor for site.
func (r *Registry) RegisterSite(site Site) {
	r.Register(site.ID, func(deps Deps) Provider {
		return NewAdapter(site, deps)
	})
}

// New builds a fresh provider for id. A miss returns ErrUnknownProvider.
func (r *Registry) New(id string, deps Deps) (Provider, error) {
	c, ok := r.constructors[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownProvider, "%q", id)
	}
	return c(deps), nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.constructors[id]
	return ok
}

// IDs returns the registered identifiers sorted.
func (r *Registry) IDs() []string {
	ids := lo.Keys(r.constructors)
	slices.Sort(ids)
	return ids
}
