package entity

import (
	"context"
	"iter"
	"sync"

	"github.com/google/uuid"
	"github.com/kelindar/bitmap"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/argus-labs/entitycore/pkg/assert"
	"github.com/argus-labs/entitycore/pkg/event"
	"github.com/argus-labs/entitycore/pkg/partition"
)

const tracerName = "github.com/argus-labs/entitycore/pkg/entity"

// Registry owns the active and enabled state of every entity slot in both partitions and is
// the only place entities are created and destroyed. A process should build exactly one
// registry in its composition root and pass it to whatever needs it.
//
// Free slots are found by a round-robin scan from a per-partition cursor, so a slot that was
// just freed is the last one to be handed out again.
//
// Lifecycle events are published without holding any registry lock. Handlers may call back into
// the registry, with two exceptions: deactivating the entity a PreDeactivated is about, and
// publishing SceneReset or Shutdown from inside a handler that runs during a reset or shutdown.
type Registry struct {
	id      uuid.UUID
	active  *partition.Set[bool]
	enabled *partition.Set[bool]

	mu           sync.Mutex // Serializes every state change and guards the cursors
	globalCursor int
	sceneCursor  int

	resetMu sync.Mutex // Serializes Reset and Shutdown and guards scratch
	scratch []int      // Index snapshot for bulk deactivation, sized for the larger partition

	bus    *event.Bus
	unsubs []func()
	log    zerolog.Logger
	tracer trace.Tracer
}

// NewRegistry creates a registry and subscribes it to the SceneReset and Shutdown signals on its
// bus. Options left zero are taken from ENTITY_* environment variables, then from defaults.
func NewRegistry(opts Options) (*Registry, error) {
	cfg, err := loadRegistryConfig()
	if err != nil {
		return nil, eris.Wrap(err, "failed to load registry config")
	}
	options := newDefaultOptions()
	cfg.applyToOptions(&options)
	options.apply(opts)
	if err := options.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid registry options")
	}

	if options.Bus == nil {
		options.Bus = event.NewBus()
	}
	if options.Tracer == nil {
		options.Tracer = otel.Tracer(tracerName)
	}
	logger := zerolog.Nop()
	if options.Logger != nil {
		logger = *options.Logger
	}

	id := uuid.New()
	r := &Registry{
		id:      id,
		active:  partition.NewSet[bool](options.GlobalCapacity, options.SceneCapacity),
		enabled: partition.NewSet[bool](options.GlobalCapacity, options.SceneCapacity),
		scratch: make([]int, 0, max(options.GlobalCapacity, options.SceneCapacity)),
		bus:     options.Bus,
		log:     logger.With().Str("registry_id", id.String()).Logger(),
		tracer:  options.Tracer,
	}
	r.unsubs = []func(){
		event.Subscribe(r.bus, func(SceneReset) { r.Reset(context.Background()) }),
		event.Subscribe(r.bus, func(Shutdown) { r.Shutdown(context.Background()) }),
	}

	r.log.Debug().
		Int("global_capacity", options.GlobalCapacity).
		Int("scene_capacity", options.SceneCapacity).
		Msg("entity registry created")
	return r, nil
}

// ID returns the instance id the registry tags its logs with.
func (r *Registry) ID() uuid.UUID { return r.id }

// Bus returns the bus lifecycle events are published on.
func (r *Registry) Bus() *event.Bus { return r.bus }

// Activate claims a free Scene slot and returns its entity, active and enabled. Returns an error
// wrapping ErrCapacityExhausted, and changes nothing, when every Scene slot is active.
func (r *Registry) Activate() (Entity, error) {
	return r.activate(r.active.Scene(), &r.sceneCursor, func(i int) partition.Index {
		return partition.Scene(i) //nolint:gosec // bounded by the scene capacity
	})
}

// ActivateGlobal is Activate for the Global partition.
func (r *Registry) ActivateGlobal() (Entity, error) {
	return r.activate(r.active.Global(), &r.globalCursor, func(i int) partition.Index {
		return partition.Global(i) //nolint:gosec // bounded by the global capacity
	})
}

// Deactivate frees the slot of e. It publishes PreDeactivated while e is still active, clears
// its state, then publishes PostDeactivated. Inactive entities are ignored.
func (r *Registry) Deactivate(e Entity) {
	r.checkHandle(e)
	r.deactivate(e)
}

// Enable marks an active entity as enabled and publishes Enabled. Enabling an enabled entity is
// a no-op. Panics with ErrInvalidHandle if e is not active.
func (r *Registry) Enable(e Entity) {
	r.checkHandle(e)

	r.mu.Lock()
	if !r.active.Has(e.idx) {
		r.mu.Unlock()
		panic(eris.Wrapf(ErrInvalidHandle, "cannot enable inactive %s", e))
	}
	if r.enabled.Has(e.idx) {
		r.mu.Unlock()
		return
	}
	r.enabled.Set(e.idx, true)
	r.mu.Unlock()

	event.Publish(r.bus, Enabled{Entity: e})
}

// Disable clears the enabled flag of e and publishes Disabled. Disabling a disabled entity is a
// no-op. Disabling an inactive entity is a no-op in release builds and panics otherwise.
func (r *Registry) Disable(e Entity) {
	r.checkHandle(e)

	r.mu.Lock()
	active := r.active.Has(e.idx)
	removed := r.enabled.Remove(e.idx)
	r.mu.Unlock()
	assert.That(active, "cannot disable inactive %s", e)
	if !removed {
		return
	}
	event.Publish(r.bus, Disabled{Entity: e})
}

// IsActive reports whether e occupies a slot.
func (r *Registry) IsActive(e Entity) bool {
	return e.IsValid() && r.active.Has(e.idx)
}

// IsEnabled reports whether e is active and enabled.
func (r *Registry) IsEnabled(e Entity) bool {
	return e.IsValid() && r.enabled.Has(e.idx)
}

// ActiveGlobalEntities iterates the active Global entities. The loop body runs under a shared
// lock on the active set and must not activate or deactivate entities.
func (r *Registry) ActiveGlobalEntities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for i := range r.active.Global().Indices() {
			if !yield(Entity{idx: partition.Global(i)}) { //nolint:gosec // bounded by the global capacity
				return
			}
		}
	}
}

// ActiveSceneEntities iterates the active Scene entities, with the same rules as
// ActiveGlobalEntities.
func (r *Registry) ActiveSceneEntities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for i := range r.active.Scene().Indices() {
			if !yield(Entity{idx: partition.Scene(i)}) { //nolint:gosec // bounded by the scene capacity
				return
			}
		}
	}
}

// EnabledEntities iterates the enabled entities of both partitions, Global first. The loop body
// must not enable or disable entities.
func (r *Registry) EnabledEntities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for idx := range r.enabled.All() {
			if !yield(Entity{idx: idx}) {
				return
			}
		}
	}
}

// EnabledSceneMask overwrites dst with the slot numbers of the enabled Scene entities, for
// intersecting with masks built by other subsystems.
func (r *Registry) EnabledSceneMask(dst *bitmap.Bitmap) {
	r.enabled.Scene().Mask(dst)
}

// Reset deactivates every active Scene entity, publishing the usual events for each, and rewinds
// the Scene cursor. Global entities are untouched. It always runs to completion; ctx only
// carries the trace span.
func (r *Registry) Reset(ctx context.Context) {
	_, span := r.tracer.Start(ctx, "entity.Registry.Reset")
	defer span.End()

	r.resetMu.Lock()
	defer r.resetMu.Unlock()

	n := r.deactivateAll(r.active.Scene(), func(i int) partition.Index {
		return partition.Scene(i) //nolint:gosec // bounded by the scene capacity
	})

	r.mu.Lock()
	r.sceneCursor = 0
	r.mu.Unlock()

	span.SetAttributes(attribute.Int("entity.deactivated.scene", n))
	r.log.Info().Int("deactivated", n).Msg("scene reset")
}

// Shutdown deactivates every active entity of both partitions and rewinds both cursors.
func (r *Registry) Shutdown(ctx context.Context) {
	_, span := r.tracer.Start(ctx, "entity.Registry.Shutdown")
	defer span.End()

	r.resetMu.Lock()
	defer r.resetMu.Unlock()

	nScene := r.deactivateAll(r.active.Scene(), func(i int) partition.Index {
		return partition.Scene(i) //nolint:gosec // bounded by the scene capacity
	})
	nGlobal := r.deactivateAll(r.active.Global(), func(i int) partition.Index {
		return partition.Global(i) //nolint:gosec // bounded by the global capacity
	})

	r.mu.Lock()
	r.sceneCursor = 0
	r.globalCursor = 0
	r.mu.Unlock()

	span.SetAttributes(
		attribute.Int("entity.deactivated.scene", nScene),
		attribute.Int("entity.deactivated.global", nGlobal),
	)
	r.log.Info().Int("scene", nScene).Int("global", nGlobal).Msg("registry shut down")
}

// Stats is a point-in-time summary of a registry.
type Stats struct {
	ID             string `json:"id"`
	GlobalCapacity int    `json:"global_capacity"`
	SceneCapacity  int    `json:"scene_capacity"`
	ActiveGlobal   int    `json:"active_global"`
	ActiveScene    int    `json:"active_scene"`
	Enabled        int    `json:"enabled"`
}

// Stats returns the current capacities and occupancy. The counts are read one after another and
// may be inconsistent with each other while other goroutines mutate the registry.
func (r *Registry) Stats() Stats {
	return Stats{
		ID:             r.id.String(),
		GlobalCapacity: r.active.Global().Cap(),
		SceneCapacity:  r.active.Scene().Cap(),
		ActiveGlobal:   r.active.Global().Len(),
		ActiveScene:    r.active.Scene().Len(),
		Enabled:        r.enabled.Len(),
	}
}

// Close detaches the registry from the SceneReset and Shutdown signals. Entities keep their
// state; call Shutdown first to free them. Safe to call more than once.
func (r *Registry) Close() {
	for _, unsub := range r.unsubs {
		unsub()
	}
}

// -------------------------------------------------------------------------------------------------
// Internal
// -------------------------------------------------------------------------------------------------

type activeSet interface {
	Cap() int
	Has(index int) bool
}

func (r *Registry) activate(
	slots activeSet, cursor *int, toIndex func(int) partition.Index,
) (Entity, error) {
	r.mu.Lock()
	capacity := slots.Cap()
	for n := range capacity {
		i := (*cursor + n) % capacity
		if slots.Has(i) {
			continue
		}

		e := Entity{idx: toIndex(i)}
		r.active.Set(e.idx, true)
		r.enabled.Set(e.idx, true)
		*cursor = (i + 1) % capacity
		r.mu.Unlock()

		r.log.Debug().Stringer("entity", e).Msg("entity activated")
		event.Publish(r.bus, Activated{Entity: e})
		return e, nil
	}
	r.mu.Unlock()

	err := eris.Wrapf(ErrCapacityExhausted, "all %d slots are active", capacity)
	r.log.Error().Err(err).Int("capacity", capacity).Msg("failed to activate entity")
	return Entity{}, err
}

// deactivate reports whether this call freed the slot of e.
func (r *Registry) deactivate(e Entity) bool {
	if !r.active.Has(e.idx) {
		return false
	}

	event.Publish(r.bus, PreDeactivated{Entity: e})

	// The enabled flag goes first so that an enabled entity is always active.
	r.mu.Lock()
	if !r.active.Has(e.idx) {
		// Freed concurrently by another goroutine, which publishes PostDeactivated itself.
		r.mu.Unlock()
		return false
	}
	r.enabled.Remove(e.idx)
	r.active.Remove(e.idx)
	r.mu.Unlock()

	r.log.Debug().Stringer("entity", e).Msg("entity deactivated")
	event.Publish(r.bus, PostDeactivated{Entity: e})
	return true
}

type indexSnapshotter interface {
	AppendIndices(dst []int) []int
}

// deactivateAll expects the caller to hold resetMu. Returns the number of entities it freed;
// handlers that cascade into other entities of the snapshot reduce the count.
func (r *Registry) deactivateAll(slots indexSnapshotter, toIndex func(int) partition.Index) int {
	r.scratch = slots.AppendIndices(r.scratch[:0])
	n := 0
	for _, i := range r.scratch {
		if r.deactivate(Entity{idx: toIndex(i)}) {
			n++
		}
	}
	return n
}

func (r *Registry) checkHandle(e Entity) {
	if !e.IsValid() {
		panic(eris.Wrap(ErrInvalidHandle, "zero-value entity"))
	}
}
