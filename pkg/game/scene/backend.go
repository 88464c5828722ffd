// Package scene manages rendering surfaces and the graphics resources they
// own.
//
// A Registry maps view ids to Surfaces. Each Surface keeps three layers
// (background, grid, entity) that always share one view transform, an
// EntityRegistry for the dynamic entities on the entity layer, and a canvas
// obtained from the Backend. A Guard sits between surfaces and the graphics
// device: it refuses effects on an unusable device, strips effects when the
// device is lost and orders teardown so nothing touches a released device.
//
// Everything in this package is driven from a single goroutine (the host
// update loop). Only the texture cache is shared with other goroutines.
package scene

// Container is the host-side slot a surface is mounted into.
type Container interface {
	// Size reports the container's current size in pixels. Zero means the
	// host has not laid it out yet.
	Size() (w, h int)
}

// Backend creates canvases bound to containers.
type Backend interface {
	NewCanvas(c Container, w, h int) (Canvas, error)
}

// Canvas is the physical render target of one surface.
type Canvas interface {
	Size() (w, h int)
	Resize(w, h int)
	Device() Device
	// Detach unmounts the canvas from its container.
	Detach()
	// Release frees the canvas memory. The canvas is unusable afterwards.
	Release()
}

// Device is the graphics context a canvas draws with.
type Device interface {
	// Class names the graphics API family (for example "opengl" or "metal").
	Class() string
	// Err is non-nil while the device is lost or otherwise broken.
	Err() error
	// Flush submits pending commands.
	Flush()
	// ReleasePool frees textures queued for deferred release.
	ReleasePool()
}

// Effect is a post-processing filter attached to a node.
type Effect interface {
	Name() string
	// Prepare binds the effect to the device. A failure leaves the node
	// without effects.
	Prepare(d Device) error
	Release()
}
