// Package entity is the lifecycle authority for entities: it hands out entity handles from two
// fixed-capacity partitions, tracks which are active and enabled, and announces every lifecycle
// transition on an event.Bus so dependent subsystems can keep their own storage in step.
package entity

import (
	"github.com/argus-labs/entitycore/pkg/partition"
)

// Entity is a handle to one slot of the registry. It carries nothing but its partition index;
// all per-entity data lives in partition.Set instances keyed by that index.
//
// The zero Entity is invalid. Registry mutations panic on it and predicates report false.
type Entity struct {
	idx partition.Index
}

// FromIndex rebuilds a handle from an index, e.g. one read back out of a subsystem's own
// partition.Set. It performs no liveness check.
func FromIndex(idx partition.Index) Entity {
	return Entity{idx: idx}
}

// Index returns the partition index of the entity, nil for the zero Entity.
func (e Entity) Index() partition.Index {
	return e.idx
}

// IsGlobal reports whether the entity lives in the Global partition.
func (e Entity) IsGlobal() bool {
	return e.idx != nil && e.idx.IsGlobal()
}

// IsValid reports whether the handle carries a partition index.
func (e Entity) IsValid() bool {
	return partition.Valid(e.idx)
}

// Active reports whether the entity is active in r.
func (e Entity) Active(r *Registry) bool {
	return r.IsActive(e)
}

// Enabled reports whether the entity is enabled in r.
func (e Entity) Enabled(r *Registry) bool {
	return r.IsEnabled(e)
}

func (e Entity) String() string {
	if !e.IsValid() {
		return "entity(invalid)"
	}
	return "entity(" + e.idx.String() + ")"
}
