package ebiten

import (
	"errors"
	"image"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"worldview/pkg/game/scene"
	"worldview/pkg/game/texture"
)

// errDeviceLost is reported by the device while a loss is simulated. Ebiten
// restores its own context, so real losses never surface here.
var errDeviceLost = errors.New("graphics device lost")

// device is the one graphics context shared by all canvases of a window.
type device struct {
	mu      sync.Mutex
	class   string
	err     error
	pending []*ebiten.Image
	flushes int
}

func newDevice() *device {
	return &device{}
}

// Class names the graphics library Ebiten picked. It is only known once
// the game loop runs; until then the class is "unknown".
func (d *device) Class() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.class == "" {
		var info ebiten.DebugInfo
		ebiten.ReadDebugInfo(&info)
		name := strings.ToLower(info.GraphicsLibrary.String())
		if info.GraphicsLibrary == ebiten.GraphicsLibraryUnknown || name == "" {
			return "unknown"
		}
		d.class = name
	}
	return d.class
}

func (d *device) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Flush is counted only. Ebiten submits queued commands at the end of each
// frame and offers no way to force it earlier.
func (d *device) Flush() {
	d.mu.Lock()
	d.flushes++
	d.mu.Unlock()
}

// ReleasePool deallocates images queued by deferRelease.
func (d *device) ReleasePool() {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, img := range pending {
		img.Deallocate()
	}
}

// deferRelease queues img for the next ReleasePool. Used for images that may
// still be referenced by commands of the current frame.
func (d *device) deferRelease(img *ebiten.Image) {
	if img == nil {
		return
	}
	d.mu.Lock()
	d.pending = append(d.pending, img)
	d.mu.Unlock()
}

func (d *device) lose() {
	d.mu.Lock()
	d.err = errDeviceLost
	d.mu.Unlock()
}

func (d *device) restore() {
	d.mu.Lock()
	d.err = nil
	d.mu.Unlock()
}

// backend creates offscreen canvases for panels.
type backend struct {
	dev *device
}

func newBackend() *backend {
	return &backend{dev: newDevice()}
}

// NewCanvas creates an offscreen image of w x h and mounts it into c when c
// is one of the host's panels.
func (b *backend) NewCanvas(c scene.Container, w, h int) (scene.Canvas, error) {
	cv := &canvas{dev: b.dev}
	cv.Resize(w, h)
	if p, ok := c.(*panel); ok {
		if p.canvas != nil {
			p.canvas.Detach()
		}
		p.canvas = cv
		cv.panel = p
	}
	return cv, nil
}

// canvas is the render target of one surface.
type canvas struct {
	dev   *device
	img   *ebiten.Image
	w, h  int
	panel *panel
}

func (c *canvas) Size() (int, int)     { return c.w, c.h }
func (c *canvas) Device() scene.Device { return c.dev }

// Resize replaces the offscreen image. The old one is released with the
// device pool.
func (c *canvas) Resize(w, h int) {
	w, h = max(w, 1), max(h, 1)
	if c.img != nil && w == c.w && h == c.h {
		return
	}
	c.dev.deferRelease(c.img)
	c.img = ebiten.NewImage(w, h)
	c.w, c.h = w, h
}

func (c *canvas) Detach() {
	if c.panel != nil && c.panel.canvas == c {
		c.panel.canvas = nil
	}
	c.panel = nil
}

func (c *canvas) Release() {
	if c.img != nil {
		c.img.Deallocate()
		c.img = nil
	}
}

// image returns the offscreen image, nil after Release.
func (c *canvas) image() *ebiten.Image { return c.img }

// imageHandle is a texture living on the GPU.
type imageHandle struct {
	img *ebiten.Image
	// sub handles share their page's memory and never deallocate it.
	sub bool
}

func (h *imageHandle) Size() (int, int) {
	if h.img == nil {
		return 0, 0
	}
	b := h.img.Bounds()
	return b.Dx(), b.Dy()
}

func (h *imageHandle) Release() {
	if h.img != nil && !h.sub {
		h.img.Deallocate()
	}
	h.img = nil
}

// Sub slices an atlas frame out of the page.
func (h *imageHandle) Sub(r image.Rectangle) texture.Handle {
	if h.img == nil {
		return texture.Blank
	}
	sub, ok := h.img.SubImage(r.Add(h.img.Bounds().Min)).(*ebiten.Image)
	if !ok {
		return texture.Blank
	}
	return &imageHandle{img: sub, sub: true}
}

// uploader turns decoded images into GPU textures for the texture cache.
// Ebiten accepts image creation from any goroutine.
type uploader struct{}

func (uploader) Upload(img image.Image) (texture.Handle, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("empty image")
	}
	return &imageHandle{img: ebiten.NewImageFromImage(img)}, nil
}

// NewUploader returns the texture uploader for this host.
func NewUploader() texture.Uploader { return uploader{} }
