package entity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/entitycore/pkg/event"
	"github.com/argus-labs/entitycore/pkg/partition"
)

// These tests modify the process environment and must not run in parallel.

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("ENTITY_GLOBAL_CAPACITY", "")
	t.Setenv("ENTITY_SCENE_CAPACITY", "")

	r, err := NewRegistry(Options{})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, DefaultGlobalCapacity, r.Stats().GlobalCapacity)
	assert.Equal(t, DefaultSceneCapacity, r.Stats().SceneCapacity)
	assert.NotNil(t, r.Bus())
}

func TestConfig_EnvThenOptions(t *testing.T) {
	t.Setenv("ENTITY_GLOBAL_CAPACITY", "8")
	t.Setenv("ENTITY_SCENE_CAPACITY", "32")

	r, err := NewRegistry(Options{SceneCapacity: 16})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 8, r.Stats().GlobalCapacity, "env overrides the default")
	assert.Equal(t, 16, r.Stats().SceneCapacity, "options override env")
}

func TestConfig_BadEnv(t *testing.T) {
	t.Setenv("ENTITY_GLOBAL_CAPACITY", "lots")

	_, err := NewRegistry(Options{})
	require.Error(t, err)
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opt     Options
		wantErr bool
	}{
		{name: "defaults", opt: newDefaultOptions()},
		{name: "max global", opt: Options{GlobalCapacity: partition.MaxGlobal, SceneCapacity: 1}},
		{name: "global too big", opt: Options{GlobalCapacity: partition.MaxGlobal + 1, SceneCapacity: 1}, wantErr: true},
		{name: "zero global", opt: Options{GlobalCapacity: 0, SceneCapacity: 1}, wantErr: true},
		{name: "negative scene", opt: Options{GlobalCapacity: 1, SceneCapacity: -4}, wantErr: true},
	}
	if int64(math.MaxInt) > partition.MaxScene {
		tooBig := partition.MaxScene + 1
		tests = append(tests, struct {
			name    string
			opt     Options
			wantErr bool
		}{name: "scene too big", opt: Options{GlobalCapacity: 1, SceneCapacity: int(tooBig)}, wantErr: true})
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opt.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOptions_Apply(t *testing.T) {
	bus := event.NewBus()
	opt := newDefaultOptions()
	opt.apply(Options{SceneCapacity: 7, Bus: bus})

	assert.Equal(t, DefaultGlobalCapacity, opt.GlobalCapacity)
	assert.Equal(t, 7, opt.SceneCapacity)
	assert.Same(t, bus, opt.Bus)
	assert.Nil(t, opt.Logger)
}
