//go:build !release

package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/entitycore/pkg/entity"
	"github.com/argus-labs/entitycore/pkg/event"
	"github.com/argus-labs/entitycore/pkg/partition"
)

func TestRegistry_DisableInactivePanics(t *testing.T) {
	t.Parallel()

	r := newRegistry(t, 2, 4)
	var disabled int
	event.Subscribe(r.Bus(), func(entity.Disabled) { disabled++ })

	never := entity.FromIndex(partition.Scene(3))
	assert.Panics(t, func() { r.Disable(never) })

	e, err := r.Activate()
	require.NoError(t, err)
	r.Deactivate(e)
	assert.Panics(t, func() { r.Disable(e) })

	assert.Zero(t, disabled)
	assert.False(t, never.Active(r))

	// The registry is still usable after the fault.
	e, err = r.Activate()
	require.NoError(t, err)
	r.Disable(e)
	assert.Equal(t, 1, disabled)
}
