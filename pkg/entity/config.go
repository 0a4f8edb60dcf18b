package entity

import (
	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/argus-labs/entitycore/pkg/event"
	"github.com/argus-labs/entitycore/pkg/partition"
)

const (
	DefaultGlobalCapacity = 256
	DefaultSceneCapacity  = 16384
)

// registryConfig holds the registry settings that can be set via environment variables.
type registryConfig struct {
	// Number of slots in the Global partition.
	GlobalCapacity int `env:"ENTITY_GLOBAL_CAPACITY" envDefault:"256"`

	// Number of slots in the Scene partition.
	SceneCapacity int `env:"ENTITY_SCENE_CAPACITY" envDefault:"16384"`
}

// loadRegistryConfig loads the registry configuration from environment variables.
func loadRegistryConfig() (registryConfig, error) {
	cfg := registryConfig{}

	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse registry config")
	}
	return cfg, nil
}

// applyToOptions applies the configuration values to the given Options.
func (cfg *registryConfig) applyToOptions(opt *Options) {
	opt.GlobalCapacity = cfg.GlobalCapacity
	opt.SceneCapacity = cfg.SceneCapacity
}

// Options configures a Registry. Zero fields fall back to the environment, then to defaults.
type Options struct {
	GlobalCapacity int             // Slots in the Global partition, at most partition.MaxGlobal
	SceneCapacity  int             // Slots in the Scene partition, at most partition.MaxScene
	Bus            *event.Bus      // Bus for lifecycle events and signals, a private one if nil
	Logger         *zerolog.Logger // Defaults to a no-op logger
	Tracer         trace.Tracer    // Defaults to the global otel tracer provider
}

// newDefaultOptions creates Options with default values.
func newDefaultOptions() Options {
	return Options{
		GlobalCapacity: DefaultGlobalCapacity,
		SceneCapacity:  DefaultSceneCapacity,
		Bus:            nil,
		Logger:         nil,
		Tracer:         nil,
	}
}

// apply merges the given options into the current options, overriding non-zero values.
func (opt *Options) apply(newOpt Options) {
	if newOpt.GlobalCapacity != 0 {
		opt.GlobalCapacity = newOpt.GlobalCapacity
	}
	if newOpt.SceneCapacity != 0 {
		opt.SceneCapacity = newOpt.SceneCapacity
	}
	if newOpt.Bus != nil {
		opt.Bus = newOpt.Bus
	}
	if newOpt.Logger != nil {
		opt.Logger = newOpt.Logger
	}
	if newOpt.Tracer != nil {
		opt.Tracer = newOpt.Tracer
	}
}

// validate checks that all options are set and within the partition limits.
func (opt *Options) validate() error {
	if opt.GlobalCapacity <= 0 {
		return eris.Errorf("global capacity must be positive, got %d", opt.GlobalCapacity)
	}
	if opt.GlobalCapacity > partition.MaxGlobal {
		return eris.Errorf("global capacity %d exceeds %d", opt.GlobalCapacity, partition.MaxGlobal)
	}
	if opt.SceneCapacity <= 0 {
		return eris.Errorf("scene capacity must be positive, got %d", opt.SceneCapacity)
	}
	if int64(opt.SceneCapacity) > partition.MaxScene {
		return eris.Errorf("scene capacity %d exceeds %d", opt.SceneCapacity, partition.MaxScene)
	}
	return nil
}
