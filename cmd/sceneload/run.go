package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/argus-labs/entitycore/pkg/entity"
	"github.com/argus-labs/entitycore/pkg/event"
	"github.com/argus-labs/entitycore/pkg/telemetry"
)

const (
	globalMaxHealth = 1000
	sceneMaxHealth  = 100
)

type sceneReport struct {
	Scene       int          `json:"scene"`
	Loaded      int          `json:"loaded"`
	Samples     int          `json:"samples"`
	Defeated    int          `json:"defeated"`
	SceneHealth int          `json:"scene_health"`
	TotalHealth int          `json:"total_health"`
	Registry    entity.Stats `json:"registry"`
	ElapsedMS   int64        `json:"elapsed_ms"`
}

type report struct {
	Interrupted bool          `json:"interrupted"`
	Scenes      []sceneReport `json:"scenes"`
	Final       entity.Stats  `json:"final"`
}

func run(ctx context.Context, cfg *runConfig, out io.Writer) error {
	tel, err := telemetry.New(telemetry.Options{
		ServiceName: "sceneload",
		LogLevel:    cfg.LogLevel,
		LogFormat:   telemetry.ParseLogFormat(cfg.LogFormat),
		Writer:      os.Stderr,
	})
	if err != nil {
		return eris.Wrap(err, "failed to initialize telemetry")
	}
	log := tel.GetLogger("main")
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to shut down telemetry")
		}
	}()

	registryLog := tel.GetLogger("registry")
	registry, err := entity.NewRegistry(entity.Options{
		GlobalCapacity: cfg.GlobalCapacity,
		SceneCapacity:  cfg.SceneCapacity,
		Logger:         &registryLog,
		Tracer:         tel.Tracer,
	})
	if err != nil {
		return eris.Wrap(err, "failed to create entity registry")
	}
	defer registry.Close()

	w := newWorld(registry, tel.GetLogger("world"))
	defer w.close()

	// Whatever happens below, every entity is released before exit.
	defer event.Publish(registry.Bus(), entity.Shutdown{})

	for i := range cfg.Globals {
		if _, err := w.spawn(true, fmt.Sprintf("global%d", i), globalMaxHealth); err != nil {
			log.Error().Str("error", eris.ToString(err, true)).Msg("failed to spawn global entities")
			return eris.Wrap(err, "failed to spawn global entities")
		}
	}

	var rep report
	for scene := range cfg.Scenes {
		if ctx.Err() != nil {
			rep.Interrupted = true
			break
		}

		sr, err := runScene(ctx, tel, w, cfg, scene)
		if eris.Is(err, context.Canceled) {
			log.Warn().Int("scene", scene).Msg("interrupted while loading")
			rep.Interrupted = true
			break
		}
		if err != nil {
			log.Error().Str("error", eris.ToString(err, true)).Int("scene", scene).Msg("scene load failed")
			return err
		}
		rep.Scenes = append(rep.Scenes, sr)

		event.Publish(registry.Bus(), entity.SceneReset{})
	}

	event.Publish(registry.Bus(), entity.Shutdown{})
	rep.Final = registry.Stats()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return eris.Wrap(err, "failed to write report")
	}
	return nil
}

// runScene loads one scene while a second goroutine samples the world, then plays one round of
// damage over it.
func runScene(
	ctx context.Context, tel telemetry.Telemetry, w *world, cfg *runConfig, scene int,
) (sceneReport, error) {
	ctx, span := tel.Tracer.Start(ctx, "sceneload.scene", trace.WithAttributes(attribute.Int("scene", scene)))
	defer span.End()
	log := tel.GetLoggerWithTrace(ctx, "scene")
	start := time.Now()

	loaded := make(chan struct{})
	spawned := make([]entity.Entity, 0, cfg.EntitiesPerRun)
	samples := 0

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(loaded)
		for i := range cfg.EntitiesPerRun {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "scene load interrupted")
			}
			e, err := w.spawn(false, entityName(scene, i), sceneMaxHealth)
			if err != nil {
				return eris.Wrapf(err, "failed to load entity %d of scene %d", i, scene)
			}
			if cfg.DisableEvery > 0 && i%cfg.DisableEvery == cfg.DisableEvery-1 {
				w.registry.Disable(e)
			}
			spawned = append(spawned, e)
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-loaded:
				return nil
			case <-gctx.Done():
				return nil
			default:
				w.totalHealth()
				samples++
				runtime.Gosched()
			}
		}
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scene load failed")
		return sceneReport{}, err
	}
	log.Debug().Int("loaded", len(spawned)).Int("samples", samples).Msg("scene loaded")

	defeated := 0
	for _, e := range spawned {
		if !e.Enabled(w.registry) {
			continue
		}
		if w.damage(e, cfg.Damage) {
			w.registry.Deactivate(e)
			defeated++
		}
	}

	// Loading is over and this goroutine is the only writer left, so the unlocked cursor is safe.
	sceneHealth := 0
	for c := w.health.Scene().Cursor(); c.Next(); {
		sceneHealth += c.Value().Current
	}

	sr := sceneReport{
		Scene:       scene,
		Loaded:      len(spawned),
		Samples:     samples,
		Defeated:    defeated,
		SceneHealth: sceneHealth,
		TotalHealth: w.totalHealth(),
		Registry:    w.registry.Stats(),
		ElapsedMS:   time.Since(start).Milliseconds(),
	}
	span.SetAttributes(attribute.Int("loaded", sr.Loaded), attribute.Int("defeated", sr.Defeated))
	log.Info().
		Int("loaded", sr.Loaded).
		Int("defeated", sr.Defeated).
		Int("active_scene", sr.Registry.ActiveScene).
		Msg("scene played")
	return sr, nil
}
