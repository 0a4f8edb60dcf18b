package entity

// Lifecycle events. They are published synchronously on the registry's bus by the goroutine
// performing the transition.
type (
	// Activated follows a successful Activate or ActivateGlobal.
	Activated struct{ Entity Entity }

	// PreDeactivated is published while the entity is still active, so handlers can read its
	// data and tear down their own storage for it.
	PreDeactivated struct{ Entity Entity }

	// PostDeactivated is published after the entity's slot has been freed.
	PostDeactivated struct{ Entity Entity }

	Enabled  struct{ Entity Entity }
	Disabled struct{ Entity Entity }
)

// Lifecycle signals. Publishing one on a registry's bus runs the matching registry operation.
type (
	// SceneReset deactivates every Scene entity. Global entities survive.
	SceneReset struct{}

	// Shutdown deactivates every entity in both partitions.
	Shutdown struct{}
)
