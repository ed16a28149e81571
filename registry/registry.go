// Package registry holds the immutable catalog of metered event types.
//
// A Registry is built once at process start and passed explicitly to the
// engine. It has no setters, so concurrent reads need no synchronization.
// Lookup never fails: an event type the catalog does not know resolves to a
// zero-cost definition in the "unknown" category, which keeps metering and
// reporting available while callers roll out new event types.
package registry

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
)

// CategoryUnknown is reported for event types missing from the catalog.
const CategoryUnknown = "unknown"

var (
	ErrInvalidDefinition = errors.New("registry: invalid event definition")
	ErrDuplicateEvent    = errors.New("registry: duplicate event type")
)

// Bounds limits the complexity multiplier applied to an event's base cost.
type Bounds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Definition describes one metered event type.
type Definition struct {
	EventType   string `json:"event_type" yaml:"event_type"`
	Description string `json:"description" yaml:"description"`
	Category    string `json:"category" yaml:"category"`
	BaseCost    int64  `json:"base_cost" yaml:"base_cost"`
	Endpoint    string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Complexity narrows the engine-wide complexity bounds for this event.
	Complexity *Bounds `json:"complexity,omitempty" yaml:"complexity,omitempty"`

	// Features are flat credit add-ons charged when the caller reports the
	// named feature as used.
	Features map[string]int64 `json:"features,omitempty" yaml:"features,omitempty"`
}

// Validate checks a definition before it enters a registry.
func (d Definition) Validate() error {
	switch {
	case d.EventType == "":
		return fmt.Errorf("%w: empty event type", ErrInvalidDefinition)
	case d.Category == "":
		return fmt.Errorf("%w: %s: empty category", ErrInvalidDefinition, d.EventType)
	case d.BaseCost < 0:
		return fmt.Errorf("%w: %s: negative base cost %d", ErrInvalidDefinition, d.EventType, d.BaseCost)
	case d.Complexity != nil && (d.Complexity.Min <= 0 || d.Complexity.Max < d.Complexity.Min):
		return fmt.Errorf("%w: %s: complexity bounds [%v, %v]", ErrInvalidDefinition, d.EventType, d.Complexity.Min, d.Complexity.Max)
	}
	for name, credits := range d.Features {
		if name == "" || credits < 0 {
			return fmt.Errorf("%w: %s: feature %q costs %d", ErrInvalidDefinition, d.EventType, name, credits)
		}
	}
	return nil
}

// Registry is an immutable event catalog.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// New builds a registry from the given definitions.
func New(defs ...Definition) (*Registry, error) {
	r := &Registry{
		defs:  make(map[string]Definition, len(defs)),
		order: make([]string, 0, len(defs)),
	}
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, ok := r.defs[d.EventType]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEvent, d.EventType)
		}
		d.Features = maps.Clone(d.Features)
		if d.Complexity != nil {
			b := *d.Complexity
			d.Complexity = &b
		}
		r.defs[d.EventType] = d
		r.order = append(r.order, d.EventType)
	}
	return r, nil
}

// MustNew is like New but panics on error.
func MustNew(defs ...Definition) *Registry {
	r, err := New(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns a registry over the built-in catalog.
func Default() *Registry {
	return MustNew(Defaults()...)
}

// Lookup returns the definition for eventType, or a zero-cost definition in
// CategoryUnknown when the type is not registered.
func (r *Registry) Lookup(eventType string) Definition {
	d, ok := r.defs[eventType]
	if !ok {
		return Definition{
			EventType:   eventType,
			Description: eventType,
			Category:    CategoryUnknown,
		}
	}
	d.Features = maps.Clone(d.Features)
	if d.Complexity != nil {
		b := *d.Complexity
		d.Complexity = &b
	}
	return d
}

// Known reports whether eventType is registered.
func (r *Registry) Known(eventType string) bool {
	_, ok := r.defs[eventType]
	return ok
}

// CategoryMembers returns the sorted event types in category.
func (r *Registry) CategoryMembers(category string) []string {
	var members []string
	for _, et := range r.order {
		if r.defs[et].Category == category {
			members = append(members, et)
		}
	}
	sort.Strings(members)
	return members
}

// Categories returns the sorted distinct categories.
func (r *Registry) Categories() []string {
	seen := make(map[string]struct{})
	for _, d := range r.defs {
		seen[d.Category] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// All returns every definition in registration order.
func (r *Registry) All() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, et := range r.order {
		out = append(out, r.Lookup(et))
	}
	return out
}

// Len returns the number of registered event types.
func (r *Registry) Len() int { return len(r.order) }
