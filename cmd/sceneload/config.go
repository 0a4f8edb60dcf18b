package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
)

type runConfig struct {
	Scenes         int
	EntitiesPerRun int
	Globals        int
	GlobalCapacity int
	SceneCapacity  int
	DisableEvery   int
	Damage         int
	LogLevel       string
	LogFormat      string
}

func defaultRunConfig() *runConfig {
	return &runConfig{
		Scenes:         3,
		EntitiesPerRun: 1000,
		Globals:        4,
		DisableEvery:   10,
		Damage:         25,
	}
}

// bindFlags registers the flags on fs. Capacities and log settings default to zero values so the
// ENTITY_*, LOG_* and OTEL_* environment variables apply unless a flag is given.
func (c *runConfig) bindFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&c.Scenes, "scenes", "s", c.Scenes, "number of scenes to load")
	fs.IntVarP(&c.EntitiesPerRun, "entities", "n", c.EntitiesPerRun, "scene entities spawned per scene")
	fs.IntVar(&c.Globals, "globals", c.Globals, "global entities spawned before the first scene")
	fs.IntVar(&c.GlobalCapacity, "global-capacity", 0, "global partition capacity (default from env)")
	fs.IntVar(&c.SceneCapacity, "scene-capacity", 0, "scene partition capacity (default from env)")
	fs.IntVar(&c.DisableEvery, "disable-every", c.DisableEvery, "disable every n-th scene entity, 0 for none")
	fs.IntVar(&c.Damage, "damage", c.Damage, "damage dealt to every enabled scene entity per scene")
	fs.StringVar(&c.LogLevel, "log-level", "", "log level (default from LOG_LEVEL)")
	fs.StringVar(&c.LogFormat, "log-format", "", "log format, json or pretty (default from LOG_FORMAT)")
	fs.SortFlags = false
}

func (c *runConfig) validate() error {
	if c.Scenes < 0 {
		return eris.Errorf("scenes must not be negative, got %d", c.Scenes)
	}
	if c.EntitiesPerRun < 0 {
		return eris.Errorf("entities must not be negative, got %d", c.EntitiesPerRun)
	}
	if c.Globals < 0 {
		return eris.Errorf("globals must not be negative, got %d", c.Globals)
	}
	if c.DisableEvery < 0 {
		return eris.Errorf("disable-every must not be negative, got %d", c.DisableEvery)
	}
	if c.Damage < 0 {
		return eris.Errorf("damage must not be negative, got %d", c.Damage)
	}
	return nil
}
