// Package renderer defines what a host UI provides to the scene layer, and
// the text markup shared by the hosts.
package renderer

import "context"

// View ids mounted by the hosts.
const (
	ViewMain    = "main"
	ViewMinimap = "minimap"
)

// Host mounts scene views into its own containers and drives the update
// loop. Implementations include the Ebiten window and the terminal.
type Host interface {
	// Run blocks until the host is closed or ctx is cancelled.
	Run(ctx context.Context) error

	// Mount creates the surface of view id. The session replays the
	// current map and entities into it.
	Mount(id string) error

	// Unmount destroys the surface of view id.
	Unmount(id string) bool

	// Mounted reports whether view id is mounted.
	Mounted(id string) bool
}

// Current holds the active host
var Current Host

// SetHost sets the active host
func SetHost(h Host) {
	Current = h
}
