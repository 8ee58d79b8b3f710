// Package kb holds the shared, mutex-guarded state that entity goroutines and
// the render loop exchange: single-value cells and the entity registry.
package kb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/star-system-simulator/model"
)

var (
	// ErrEntityExists indicates an entity ID was registered twice.
	ErrEntityExists = errors.New("entity already exists")
	// ErrEntityNotFound indicates a requested entity is not registered.
	ErrEntityNotFound = errors.New("entity not found")
)

// Cell guards a single value. Load and Store each hold the lock only for the
// copy, so a reader never sees a half-written value and a writer is never
// blocked for longer than one copy.
type Cell[T any] struct {
	mu sync.RWMutex
	v  T
}

// NewCell returns a cell holding v.
func NewCell[T any](v T) *Cell[T] {
	return &Cell[T]{v: v}
}

// Load returns a copy of the current value.
func (c *Cell[T]) Load() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// Store replaces the value as one unit.
func (c *Cell[T]) Store(v T) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

// Entity is anything the registry can sample. Sprite must take at most the
// entity's own lock and only for the duration of the copy.
type Entity interface {
	ID() string
	Sprite() model.Sprite
}

// Registry is the set of entities drawn each frame, kept in registration
// order. Entities are registered once at start-up; sampling runs concurrently
// with the entity goroutines.
type Registry struct {
	mu sync.RWMutex

	order    []Entity
	entities map[string]Entity
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]Entity)}
}

// Register adds an entity. It returns ErrEntityExists if the ID is taken.
func (r *Registry) Register(e Entity) error {
	if e == nil {
		return fmt.Errorf("register: nil entity")
	}
	id := e.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[id]; exists {
		return fmt.Errorf("%w: %q", ErrEntityExists, id)
	}
	r.entities[id] = e
	r.order = append(r.order, e)
	return nil
}

// Get returns the entity with the given ID.
func (r *Registry) Get(id string) (Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEntityNotFound, id)
	}
	return e, nil
}

// List returns a snapshot slice of all entities in registration order.
func (r *Registry) List() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entity(nil), r.order...)
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Sprites samples every entity once, in registration order. The registry
// lock is released before any entity is read and each entity is read
// independently, so there is no cross-entity consistency: two sprites may
// come from ticks a few microseconds apart.
func (r *Registry) Sprites() []model.Sprite {
	entities := r.List()
	out := make([]model.Sprite, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Sprite())
	}
	return out
}

// Position samples one entity's current position.
func (r *Registry) Position(id string) (model.Vec2, error) {
	e, err := r.Get(id)
	if err != nil {
		return model.Vec2{}, err
	}
	return e.Sprite().Position, nil
}
