package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/argus-labs/entitycore/pkg/entity"
	"github.com/argus-labs/entitycore/pkg/event"
	"github.com/argus-labs/entitycore/pkg/partition"
)

// Health is stored by value, one slot per entity.
type Health struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Nameplate is stored by reference.
type Nameplate struct {
	Name string `json:"name"`
}

// world is a gameplay subsystem that owns its own per-entity storage and keeps it in step with
// the registry by listening to lifecycle events.
type world struct {
	registry   *entity.Registry
	health     *partition.Set[Health]
	nameplates *partition.RefSet[Nameplate]
	log        zerolog.Logger
	unsubs     []func()
}

func newWorld(registry *entity.Registry, log zerolog.Logger) *world {
	stats := registry.Stats()
	w := &world{
		registry:   registry,
		health:     partition.NewSet[Health](stats.GlobalCapacity, stats.SceneCapacity),
		nameplates: partition.NewRefSet[Nameplate](stats.GlobalCapacity, stats.SceneCapacity),
		log:        log,
	}
	w.unsubs = []func(){
		event.Subscribe(registry.Bus(), w.onPreDeactivated),
	}
	return w
}

func (w *world) close() {
	for _, unsub := range w.unsubs {
		unsub()
	}
}

// spawn activates an entity in the requested partition and gives it full health and a name.
func (w *world) spawn(global bool, name string, maxHealth int) (entity.Entity, error) {
	activate := w.registry.Activate
	if global {
		activate = w.registry.ActivateGlobal
	}
	e, err := activate()
	if err != nil {
		return entity.Entity{}, err
	}

	w.health.Set(e.Index(), Health{Current: maxHealth, Max: maxHealth})
	w.nameplates.Set(e.Index(), &Nameplate{Name: name})
	return e, nil
}

// damage lowers the health of e in place and reports whether it dropped to zero.
func (w *world) damage(e entity.Entity, amount int) bool {
	ref := w.health.GetMut(e.Index())
	defer ref.Release()

	h := ref.Value()
	h.Current = max(h.Current-amount, 0)
	return h.Current == 0
}

// totalHealth sums the health of every enabled entity.
func (w *world) totalHealth() int {
	total := 0
	for e := range w.registry.EnabledEntities() {
		if h, ok := w.health.Get(e.Index()); ok {
			total += h.Current
		}
	}
	return total
}

// onPreDeactivated tears down this subsystem's data while the entity is still active.
func (w *world) onPreDeactivated(ev entity.PreDeactivated) {
	idx := ev.Entity.Index()
	if plate, err := w.nameplates.At(idx); err == nil {
		w.log.Trace().Stringer("entity", ev.Entity).Str("name", plate.Name).Msg("despawn")
	}
	w.health.Remove(idx)
	w.nameplates.Remove(idx)
}

func entityName(scene, i int) string {
	return fmt.Sprintf("scene%d-mob%d", scene, i)
}
