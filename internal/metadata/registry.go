package metadata

import (
	"strings"
	"sync"
)

// Registry maps resource names to entity descriptors. Lookups are
// case-insensitive so /api/Church and /api/church hit the same entity.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Entity
}

func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]*Entity)}
}

// GetEntity returns the entity with the given name, or nil.
func (r *Registry) GetEntity(name string) *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities[strings.ToLower(name)]
}

// AllEntities returns all registered entities.
func (r *Registry) AllEntities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entities := make([]*Entity, 0, len(r.entities))
	for _, e := range r.entities {
		entities = append(entities, e)
	}
	return entities
}

// Load replaces all entities in the registry. Called once at startup.
func (r *Registry) Load(entities []*Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = make(map[string]*Entity, len(entities))
	for _, e := range entities {
		r.entities[strings.ToLower(e.Name)] = e
	}
}
