package provider

import (
	"fmt"
	"slices"
	"sync"
)

// Registry is a concurrency-safe table of validated descriptors.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
}

// NewRegistry validates and registers ds. Duplicate names are rejected.
func NewRegistry(ds ...Descriptor) (*Registry, error) {
	r := &Registry{descriptors: make(map[string]Descriptor, len(ds))}
	for _, d := range ds {
		if _, exists := r.descriptors[d.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProvider, d.Name)
		}
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates d and stores a copy of it, replacing any descriptor
// with the same name.
func (r *Registry) Register(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[d.Name] = d.Clone()
	return nil
}

// Get returns a copy of the named descriptor.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[name]
	if !ok {
		return Descriptor{}, false
	}
	return d.Clone(), true
}

// Lookup is Get returning ErrUnknownProvider for missing names.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	d, ok := r.Get(name)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return d, nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
